package store

import (
	"context"

	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/store/schema"
)

// Store defines the interface for database operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	CursorStore

	// SaveEvents persists a committed batch: chain entries and emitted logs.
	// Saving a batch twice is a no-op.
	SaveEvents(ctx context.Context, records []*domain.EventRecord) error
	// SaveCommit persists a committed batch together with the engine state it produced
	SaveCommit(ctx context.Context, records []*domain.EventRecord, state []byte) error
	// LoadEngineState returns the engine state saved with the last commit, nil when none
	LoadEngineState(ctx context.Context) ([]byte, error)
	// LoadEventChain returns every persisted hub event chain entry ordered by seq
	LoadEventChain(ctx context.Context) ([]domain.EventChainEntry, error)
	// GetEventChainHead returns the highest persisted seq and its tip, (0, zero) when empty
	GetEventChainHead(ctx context.Context) (uint64, string, error)
	// GetEvents retrieves emitted events with optional filters and pagination
	GetEvents(ctx context.Context, filter EventQueryFilter) ([]*schema.EmittedEvent, uint64, error)
	// SetKeyValue sets a key-value pair in the key-value store
	SetKeyValue(ctx context.Context, key string, value string) error
	// GetKeyValue retrieves a value by key, "" when missing
	GetKeyValue(ctx context.Context, key string) (string, error)
}

// EventQueryFilter selects emitted events
type EventQueryFilter struct {
	// Names restricts the event names
	Names []string
	// FromSeq is the inclusive lower bound of the event seq
	FromSeq *uint64
	// ToSeq is the inclusive upper bound of the event seq
	ToSeq *uint64
	// Limit caps the number of rows (default 100)
	Limit int
	// Offset skips rows
	Offset uint64
	// OrderDesc orders by seq descending
	OrderDesc bool
}
