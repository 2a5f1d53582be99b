package controller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/untron/untron-v3-engine/internal/adapter"
	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/logger"
	"github.com/untron/untron-v3-engine/internal/metrics"
)

// Processor applies verified controller entries to the hub state
type Processor interface {
	// ProcessControllerEvent advances the mirror and runs the entry's handler
	ProcessControllerEvent(ctx context.Context, entry domain.EventChainEntry) error

	// ControllerCursor returns the mirror cursor
	ControllerCursor() domain.ControllerCursor
}

// ProgressStore persists how far the relay got
type ProgressStore interface {
	// SetControllerProgress stores the cursor and the next block to read
	SetControllerProgress(ctx context.Context, cursor domain.ControllerCursor, nextBlock uint64) error
}

// RelayConfig holds configuration for the relay
type RelayConfig struct {
	StartBlock   uint64        // First controller block to read
	PollInterval time.Duration // Time to sleep when caught up
	MaxBackoff   time.Duration // Upper bound of the retry interval on source failures
}

// Relay polls the controller's event chain and feeds new entries to the processor
type Relay struct {
	config    *RelayConfig
	source    Source
	processor Processor
	store     ProgressStore
	clock     adapter.Clock
	nextBlock atomic.Uint64
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewRelay creates a relay. store may be nil when progress is not persisted.
func NewRelay(config *RelayConfig, source Source, processor Processor, store ProgressStore, clock adapter.Clock) *Relay {
	r := &Relay{
		config:    config,
		source:    source,
		processor: processor,
		store:     store,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	r.nextBlock.Store(config.StartBlock)
	return r
}

// Name returns the relay's name
func (r *Relay) Name() string {
	return "controller-relay"
}

// NextBlock returns the next controller block the relay will read
func (r *Relay) NextBlock() uint64 {
	return r.nextBlock.Load()
}

// Start runs the relay until the context is canceled or Stop is called
func (r *Relay) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return fmt.Errorf("relay already running")
	}
	defer func() {
		r.running.Store(false)
		close(r.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting controller relay",
		zap.Uint64("next_block", r.NextBlock()),
		zap.Duration("poll_interval", r.config.PollInterval),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Controller relay stopping due to context cancellation", zap.Error(ctx.Err()))
			return nil
		case <-r.stopChan:
			logger.InfoCtx(ctx, "Controller relay stop requested")
			return nil
		default:
		}

		caughtUp, err := r.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.ErrorCtx(ctx, err, zap.Uint64("next_block", r.NextBlock()))
		}
		if caughtUp || err != nil {
			// interruptions are picked up at the top of the loop
			_ = r.sleep(ctx, r.config.PollInterval)
		}
	}
}

// Stop gracefully stops the relay
func (r *Relay) Stop(ctx context.Context) error {
	if !r.running.CompareAndSwap(true, false) {
		return nil
	}

	logger.InfoCtx(ctx, "Stopping controller relay")
	close(r.stopChan)

	select {
	case <-r.stoppedCh:
		logger.InfoCtx(ctx, "Controller relay stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Controller relay stop interrupted by context timeout")
		return ctx.Err()
	}
}

// RunOnce reads one batch and processes it. It reports whether the relay reached the
// controller head. Entries already mirrored are skipped; a rejected entry stops the batch
// and leaves the next block unchanged so the range is read again.
func (r *Relay) RunOnce(ctx context.Context) (bool, error) {
	from := r.NextBlock()
	batch, err := r.poll(ctx, from)
	if err != nil {
		metrics.RelayErrors.WithLabelValues("poll").Inc()
		return false, err
	}

	cursor := r.processor.ControllerCursor()
	for _, entry := range batch.Entries {
		if entry.Seq <= cursor.LastSeq {
			continue
		}
		if err := r.processor.ProcessControllerEvent(ctx, entry); err != nil {
			metrics.RelayErrors.WithLabelValues("process").Inc()
			return false, fmt.Errorf("failed to process controller entry %d: %w", entry.Seq, err)
		}
		cursor = r.processor.ControllerCursor()
		metrics.ControllerEventSeq.Set(float64(cursor.LastSeq))

		// The entry's own block is read again after a restart; its seq is skipped then
		if err := r.saveProgress(ctx, cursor, entry.BlockNumber); err != nil {
			metrics.RelayErrors.WithLabelValues("persist").Inc()
			return false, err
		}
	}

	if err := r.saveProgress(ctx, cursor, batch.NextBlock); err != nil {
		metrics.RelayErrors.WithLabelValues("persist").Inc()
		return false, err
	}
	r.nextBlock.Store(batch.NextBlock)

	return batch.NextBlock == from, nil
}

func (r *Relay) poll(ctx context.Context, from uint64) (Batch, error) {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = r.config.MaxBackoff
	if b.MaxInterval <= 0 {
		b.MaxInterval = time.Minute
	}
	b.InitialInterval = min(time.Second, b.MaxInterval)
	b.MaxElapsedTime = 5 * b.MaxInterval
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5

	var batch Batch
	operation := func() error {
		var err error
		batch, err = r.source.Poll(ctx, from)
		return err
	}

	var attemptCount int
	notifyOnError := func(err error, duration time.Duration) {
		attemptCount++
		logger.WarnCtx(ctx, "Controller poll failed, retrying",
			zap.Error(err),
			zap.Uint64("from_block", from),
			zap.Int("attempt", attemptCount),
			zap.Duration("next_retry_in", duration),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notifyOnError); err != nil {
		return Batch{}, fmt.Errorf("failed to poll controller after %d attempts: %w", attemptCount+1, err)
	}
	return batch, nil
}

func (r *Relay) saveProgress(ctx context.Context, cursor domain.ControllerCursor, nextBlock uint64) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.SetControllerProgress(ctx, cursor, nextBlock); err != nil {
		return fmt.Errorf("failed to persist controller progress: %w", err)
	}
	return nil
}

// sleep waits for the duration and reports false when interrupted
func (r *Relay) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-r.clock.After(duration):
		return true
	case <-ctx.Done():
		return false
	case <-r.stopChan:
		return false
	}
}
