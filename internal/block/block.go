package block

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/untron/untron-v3-engine/internal/adapter"
	"github.com/untron/untron-v3-engine/internal/logger"
)

// Head is the latest block of a chain
type Head struct {
	Number    uint64
	Timestamp uint64
}

// cachedHead is a head together with the time it was fetched
type cachedHead struct {
	head     Head
	cachedAt time.Time
}

// cachedTimestamp is a block timestamp together with the time it was fetched
type cachedTimestamp struct {
	timestamp uint64
	cachedAt  time.Time
}

// HeadProvider provides cached access to the chain head and to block timestamps.
// The engine stamps hub event chain entries with the head block; the controller relay
// needs remote block timestamps to recompute remote tips.
//
//go:generate mockgen -source=block.go -destination=../mocks/block_provider.go -package=mocks -mock_names=HeadProvider=MockHeadProvider
type HeadProvider interface {
	// LatestHead returns the latest block, potentially from cache
	LatestHead(ctx context.Context) (Head, error)

	// BlockTimestamp returns the timestamp of a block, potentially from cache
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// HeadFetcher reads block information from a node
//
//go:generate mockgen -source=block.go -destination=../mocks/block_provider.go -package=mocks -mock_names=HeadFetcher=MockHeadFetcher
type HeadFetcher interface {
	// FetchLatestHead fetches the latest block
	FetchLatestHead(ctx context.Context) (Head, error)

	// FetchBlockTimestamp fetches the timestamp of a block
	FetchBlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// Config holds configuration for the HeadProvider
type Config struct {
	// TTL is how long to cache the head
	TTL time.Duration

	// StaleWindow is how long to use stale data if fetching fails
	StaleWindow time.Duration

	// BlockTimestampTTL is how long to cache block timestamps, 0 caches forever
	BlockTimestampTTL time.Duration
}

// headProvider implements HeadProvider with TTL-based caching
type headProvider struct {
	fetcher HeadFetcher
	config  Config
	clock   adapter.Clock

	mu         sync.RWMutex
	head       *cachedHead
	timestamps map[uint64]*cachedTimestamp
}

// NewHeadProvider creates a new HeadProvider with caching
func NewHeadProvider(fetcher HeadFetcher, config Config, clock adapter.Clock) HeadProvider {
	return &headProvider{
		fetcher:    fetcher,
		config:     config,
		clock:      clock,
		timestamps: make(map[uint64]*cachedTimestamp),
	}
}

// LatestHead returns the latest head, using cache if valid
func (p *headProvider) LatestHead(ctx context.Context) (Head, error) {
	p.mu.RLock()
	cached := p.head
	p.mu.RUnlock()

	now := p.clock.Now()

	if cached != nil && now.Sub(cached.cachedAt) < p.config.TTL {
		return cached.head, nil
	}

	logger.DebugCtx(ctx, "Fetching latest head")
	head, err := p.fetcher.FetchLatestHead(ctx)
	if err != nil {
		if cached != nil && now.Sub(cached.cachedAt) < p.config.StaleWindow {
			logger.WarnCtx(ctx, "Using stale head", zap.Uint64("block_number", cached.head.Number), zap.Error(err))
			return cached.head, nil
		}
		return Head{}, fmt.Errorf("failed to fetch latest head and no valid cache available: %w", err)
	}

	p.mu.Lock()
	p.head = &cachedHead{head: head, cachedAt: now}
	p.mu.Unlock()

	return head, nil
}

// BlockTimestamp returns the timestamp of a block, using cache if valid
func (p *headProvider) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	p.mu.RLock()
	cached := p.timestamps[number]
	p.mu.RUnlock()

	now := p.clock.Now()

	if cached != nil && (p.config.BlockTimestampTTL == 0 || now.Sub(cached.cachedAt) < p.config.BlockTimestampTTL) {
		return cached.timestamp, nil
	}

	logger.DebugCtx(ctx, "Fetching block timestamp", zap.Uint64("block_number", number))
	ts, err := p.fetcher.FetchBlockTimestamp(ctx, number)
	if err != nil {
		if cached != nil && now.Sub(cached.cachedAt) < p.config.StaleWindow {
			return cached.timestamp, nil
		}
		return 0, fmt.Errorf("failed to fetch timestamp of block %d and no valid cache available: %w", number, err)
	}

	p.mu.Lock()
	p.timestamps[number] = &cachedTimestamp{timestamp: ts, cachedAt: now}
	p.mu.Unlock()

	return ts, nil
}
