package controller

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/untron/untron-v3-engine/internal/adapter"
	"github.com/untron/untron-v3-engine/internal/block"
	"github.com/untron/untron-v3-engine/internal/codec"
	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/logger"
)

// Batch is a run of remote event chain entries read from a block range
type Batch struct {
	Entries []domain.EventChainEntry
	// NextBlock is the first block the following poll should read
	NextBlock uint64
}

// Source reads the controller's event chain from its chain
//
//go:generate mockgen -source=source.go -destination=../mocks/controller_source.go -package=mocks -mock_names=Source=MockControllerSource
type Source interface {
	// Poll returns the entries found in blocks starting at fromBlock
	Poll(ctx context.Context, fromBlock uint64) (Batch, error)
}

// EthSource reads EventAppended logs of the controller contract over JSON-RPC
type EthSource struct {
	client    adapter.EthClient
	heads     block.HeadProvider
	address   common.Address
	batchSize uint64
}

// NewEthSource creates a source for the controller deployed at address
func NewEthSource(client adapter.EthClient, heads block.HeadProvider, address common.Address, batchSize uint64) *EthSource {
	if batchSize == 0 {
		batchSize = 1
	}
	return &EthSource{
		client:    client,
		heads:     heads,
		address:   address,
		batchSize: batchSize,
	}
}

// Poll reads at most batchSize blocks starting at fromBlock, bounded by the current head
func (s *EthSource) Poll(ctx context.Context, fromBlock uint64) (Batch, error) {
	head, err := s.heads.LatestHead(ctx)
	if err != nil {
		return Batch{}, fmt.Errorf("failed to get controller head: %w", err)
	}
	if fromBlock > head.Number {
		return Batch{NextBlock: fromBlock}, nil
	}

	toBlock := fromBlock + s.batchSize - 1
	if toBlock > head.Number {
		toBlock = head.Number
	}

	logs, err := s.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{s.address},
		Topics:    [][]common.Hash{{codec.EventTopic(codec.EventEventAppended)}},
	})
	if err != nil {
		return Batch{}, fmt.Errorf("failed to filter controller logs [%d, %d]: %w", fromBlock, toBlock, err)
	}

	entries := make([]domain.EventChainEntry, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			logger.WarnCtx(ctx, "Skipping removed controller log",
				zap.Uint64("block", l.BlockNumber),
				logger.Hash("tx_hash", l.TxHash),
			)
			continue
		}

		timestamp, err := s.heads.BlockTimestamp(ctx, l.BlockNumber)
		if err != nil {
			return Batch{}, fmt.Errorf("failed to get timestamp of block %d: %w", l.BlockNumber, err)
		}

		entry, err := DecodeEventAppended(l.Topics, l.Data, l.BlockNumber, timestamp)
		if err != nil {
			return Batch{}, fmt.Errorf("failed to decode controller log in block %d: %w", l.BlockNumber, err)
		}
		entries = append(entries, entry)
	}

	return Batch{Entries: entries, NextBlock: toBlock + 1}, nil
}

// DecodeEventAppended turns an EventAppended log into the entry it announces
func DecodeEventAppended(topics []common.Hash, data []byte, blockNumber, blockTimestamp uint64) (domain.EventChainEntry, error) {
	values, err := codec.UnpackEvent(codec.EventEventAppended, topics, data)
	if err != nil {
		return domain.EventChainEntry{}, err
	}

	seq, ok := values["eventSeq"].(*big.Int)
	if !ok || !seq.IsUint64() {
		return domain.EventChainEntry{}, fmt.Errorf("%w: eventSeq", codec.ErrCodecMalformed)
	}
	prevTip, err := toHash(values["prevTip"])
	if err != nil {
		return domain.EventChainEntry{}, err
	}
	newTip, err := toHash(values["newTip"])
	if err != nil {
		return domain.EventChainEntry{}, err
	}
	signature, err := toHash(values["eventSignature"])
	if err != nil {
		return domain.EventChainEntry{}, err
	}
	payload, ok := values["abiEncodedEventData"].([]byte)
	if !ok {
		return domain.EventChainEntry{}, fmt.Errorf("%w: abiEncodedEventData", codec.ErrCodecMalformed)
	}

	return domain.EventChainEntry{
		Seq:            seq.Uint64(),
		PrevTip:        prevTip,
		NewTip:         newTip,
		BlockNumber:    blockNumber,
		BlockTimestamp: blockTimestamp,
		Signature:      signature,
		Payload:        payload,
	}, nil
}

func toHash(v interface{}) (common.Hash, error) {
	switch h := v.(type) {
	case [32]byte:
		return common.Hash(h), nil
	case common.Hash:
		return h, nil
	default:
		return common.Hash{}, fmt.Errorf("%w: expected bytes32, got %T", codec.ErrCodecMalformed, v)
	}
}
