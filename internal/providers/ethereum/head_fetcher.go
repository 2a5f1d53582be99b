package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/untron/untron-v3-engine/internal/adapter"
	"github.com/untron/untron-v3-engine/internal/block"
)

// headFetcher implements block.HeadFetcher over JSON-RPC
type headFetcher struct {
	client adapter.EthClient
}

// NewHeadFetcher creates a head fetcher for an EVM chain
func NewHeadFetcher(client adapter.EthClient) block.HeadFetcher {
	return &headFetcher{client: client}
}

// FetchLatestHead fetches the latest header
func (f *headFetcher) FetchLatestHead(ctx context.Context) (block.Head, error) {
	header, err := f.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return block.Head{}, fmt.Errorf("failed to get latest header: %w", err)
	}
	return block.Head{Number: header.Number.Uint64(), Timestamp: header.Time}, nil
}

// FetchBlockTimestamp fetches the timestamp of a block from its header
func (f *headFetcher) FetchBlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	header, err := f.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, fmt.Errorf("failed to get header %d: %w", number, err)
	}
	return header.Time, nil
}
