package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/untron/untron-v3-engine/internal/domain"
)

// TokenLedger moves the hub's tokens. Transfers debit the hub's own balance.
//
//go:generate mockgen -source=interfaces.go -destination=../mocks/engine.go -package=mocks -mock_names=TokenLedger=MockTokenLedger,Bridger=MockBridger,SwapExecutor=MockSwapExecutor,EventSink=MockEventSink,Persister=MockPersister
type TokenLedger interface {
	// BalanceOf returns the token balance of holder
	BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error)

	// Transfer sends amount of token from the hub to to
	Transfer(ctx context.Context, token, to common.Address, amount *big.Int) error

	// TransferFrom pulls amount of token from from into the hub, spending an allowance
	TransferFrom(ctx context.Context, token, from common.Address, amount *big.Int) error
}

// Bridger delivers tokens to a beneficiary on another chain. The engine funds it by
// transferring the amount to Address() before calling Bridge.
type Bridger interface {
	// Address returns the address that receives the tokens to bridge
	Address() common.Address

	// Bridge sends amount of token to beneficiary on chainID
	Bridge(ctx context.Context, token common.Address, amount *big.Int, chainID *big.Int, beneficiary common.Address) error
}

// SwapExecutor converts USDT into a target token by running caller supplied calls.
// The engine transfers the USDT to Address() first; the output must land on the hub.
type SwapExecutor interface {
	// Address returns the address that receives the USDT to swap
	Address() common.Address

	// Execute runs the calls, consuming amountUSDT and producing targetToken
	Execute(ctx context.Context, targetToken common.Address, amountUSDT *big.Int, calls []domain.Call) error
}

// EventSink receives the events of every committed operation, in commit order
type EventSink interface {
	// Name identifies the sink in logs and metrics
	Name() string

	// HandleEvents consumes one committed batch
	HandleEvents(ctx context.Context, records []*domain.EventRecord) error
}

// Persister makes commits durable. A batch and the engine state it produced are stored
// atomically; storing the same batch twice is a no-op.
type Persister interface {
	// SaveCommit stores the committed records and the serialized engine state
	SaveCommit(ctx context.Context, records []*domain.EventRecord, state []byte) error
}

type sinkFunc struct {
	name string
	fn   func(ctx context.Context, records []*domain.EventRecord) error
}

// NewSink adapts a function into an EventSink
func NewSink(name string, fn func(ctx context.Context, records []*domain.EventRecord) error) EventSink {
	return &sinkFunc{name: name, fn: fn}
}

func (s *sinkFunc) Name() string {
	return s.name
}

func (s *sinkFunc) HandleEvents(ctx context.Context, records []*domain.EventRecord) error {
	return s.fn(ctx, records)
}
