package controller_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untron/untron-v3-engine/internal/controller"
	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/mocks"
)

// mirrorProcessor applies entries to a bare mirror
type mirrorProcessor struct {
	mirror    *controller.Mirror
	processed []uint64
}

func (p *mirrorProcessor) ProcessControllerEvent(_ context.Context, entry domain.EventChainEntry) error {
	if err := p.mirror.Advance(entry); err != nil {
		return err
	}
	p.processed = append(p.processed, entry.Seq)
	return nil
}

func (p *mirrorProcessor) ControllerCursor() domain.ControllerCursor {
	return p.mirror.Cursor()
}

type progress struct {
	cursor    domain.ControllerCursor
	nextBlock uint64
}

type memoryProgressStore struct {
	mu    sync.Mutex
	saved []progress
}

func (s *memoryProgressStore) SetControllerProgress(_ context.Context, cursor domain.ControllerCursor, nextBlock uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, progress{cursor: cursor, nextBlock: nextBlock})
	return nil
}

func (s *memoryProgressStore) last() progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[len(s.saved)-1]
}

// testRelayMocks contains all the mocks needed for testing the relay
type testRelayMocks struct {
	ctrl      *gomock.Controller
	source    *mocks.MockControllerSource
	clock     *mocks.MockClock
	processor *mirrorProcessor
	store     *memoryProgressStore
	relay     *controller.Relay
}

func setupRelayTest(t *testing.T) *testRelayMocks {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockControllerSource(ctrl)
	clock := mocks.NewMockClock(ctrl)
	processor := &mirrorProcessor{mirror: newMirror(nil)}
	store := &memoryProgressStore{}

	relay := controller.NewRelay(&controller.RelayConfig{
		StartBlock:   100,
		PollInterval: time.Second,
		MaxBackoff:   10 * time.Millisecond,
	}, source, processor, store, clock)

	return &testRelayMocks{
		ctrl:      ctrl,
		source:    source,
		clock:     clock,
		processor: processor,
		store:     store,
		relay:     relay,
	}
}

func tearDownRelayTest(tm *testRelayMocks) {
	tm.ctrl.Finish()
}

func TestRelay_RunOnce(t *testing.T) {
	tm := setupRelayTest(t)
	defer tearDownRelayTest(tm)

	ctx := context.Background()
	entries := remoteEntries(3)
	tm.source.EXPECT().Poll(ctx, uint64(100)).Return(controller.Batch{Entries: entries, NextBlock: 150}, nil)

	caughtUp, err := tm.relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, caughtUp)
	assert.Equal(t, []uint64{1, 2, 3}, tm.processor.processed)
	assert.Equal(t, uint64(150), tm.relay.NextBlock())

	last := tm.store.last()
	assert.Equal(t, uint64(3), last.cursor.LastSeq)
	assert.Equal(t, uint64(150), last.nextBlock)
}

func TestRelay_SkipsMirroredEntries(t *testing.T) {
	tm := setupRelayTest(t)
	defer tearDownRelayTest(tm)

	ctx := context.Background()
	entries := remoteEntries(3)
	require.NoError(t, tm.processor.mirror.Advance(entries[0]))

	tm.source.EXPECT().Poll(ctx, uint64(100)).Return(controller.Batch{Entries: entries, NextBlock: 101}, nil)

	_, err := tm.relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, tm.processor.processed)
}

func TestRelay_RejectedEntryKeepsBlock(t *testing.T) {
	tm := setupRelayTest(t)
	defer tearDownRelayTest(tm)

	ctx := context.Background()
	entries := remoteEntries(3)
	tm.source.EXPECT().Poll(ctx, uint64(100)).
		Return(controller.Batch{Entries: []domain.EventChainEntry{entries[0], entries[2]}, NextBlock: 150}, nil)

	_, err := tm.relay.RunOnce(ctx)
	assert.ErrorIs(t, err, domain.ErrNotEventChainTip)
	assert.Equal(t, uint64(100), tm.relay.NextBlock())
	assert.Equal(t, uint64(1), tm.processor.ControllerCursor().LastSeq)
	assert.Equal(t, entries[0].BlockNumber, tm.store.last().nextBlock)
}

func TestRelay_CaughtUp(t *testing.T) {
	tm := setupRelayTest(t)
	defer tearDownRelayTest(tm)

	ctx := context.Background()
	tm.source.EXPECT().Poll(ctx, uint64(100)).Return(controller.Batch{NextBlock: 100}, nil)

	caughtUp, err := tm.relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, caughtUp)
}

func TestRelay_PollRetries(t *testing.T) {
	tm := setupRelayTest(t)
	defer tearDownRelayTest(tm)

	ctx := context.Background()
	gomock.InOrder(
		tm.source.EXPECT().Poll(ctx, uint64(100)).Return(controller.Batch{}, errors.New("timeout")),
		tm.source.EXPECT().Poll(ctx, uint64(100)).Return(controller.Batch{NextBlock: 120}, nil),
	)

	_, err := tm.relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), tm.relay.NextBlock())
}

func TestRelay_StartStop(t *testing.T) {
	tm := setupRelayTest(t)
	defer tearDownRelayTest(tm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	polled := make(chan struct{})
	var once sync.Once
	tm.source.EXPECT().Poll(gomock.Any(), uint64(100)).
		DoAndReturn(func(context.Context, uint64) (controller.Batch, error) {
			once.Do(func() { close(polled) })
			return controller.Batch{NextBlock: 100}, nil
		}).AnyTimes()
	tm.clock.EXPECT().After(time.Second).Return(make(chan time.Time)).AnyTimes()

	done := make(chan error, 1)
	go func() {
		done <- tm.relay.Start(ctx)
	}()

	select {
	case <-polled:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not poll")
	}
	require.NoError(t, tm.relay.Stop(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
