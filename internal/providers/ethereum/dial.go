package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/untron/untron-v3-engine/internal/adapter"
)

// Dial connects to an RPC endpoint and checks that it serves chainID.
// A zero chainID skips the check.
func Dial(ctx context.Context, dialer adapter.EthClientDialer, rawurl string, chainID uint64) (adapter.EthClient, error) {
	client, err := dialer.Dial(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rawurl, err)
	}
	if chainID == 0 {
		return client, nil
	}

	got, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	if got.Cmp(new(big.Int).SetUint64(chainID)) != 0 {
		client.Close()
		return nil, fmt.Errorf("rpc serves chain %s, expected %d", got, chainID)
	}
	return client, nil
}
