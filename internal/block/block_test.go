package block_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untron/untron-v3-engine/internal/block"
	"github.com/untron/untron-v3-engine/internal/logger"
	"github.com/untron/untron-v3-engine/internal/mocks"
)

func TestMain(m *testing.M) {
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// testHeadProviderMocks contains all the mocks needed for testing the head provider
type testHeadProviderMocks struct {
	ctrl     *gomock.Controller
	fetcher  *mocks.MockHeadFetcher
	clock    *mocks.MockClock
	provider block.HeadProvider
}

func setupTest(t *testing.T) *testHeadProviderMocks {
	ctrl := gomock.NewController(t)

	mockFetcher := mocks.NewMockHeadFetcher(ctrl)
	mockClock := mocks.NewMockClock(ctrl)

	provider := block.NewHeadProvider(mockFetcher, block.Config{
		TTL:               10 * time.Second,
		StaleWindow:       2 * time.Minute,
		BlockTimestampTTL: 0,
	}, mockClock)

	return &testHeadProviderMocks{
		ctrl:     ctrl,
		fetcher:  mockFetcher,
		clock:    mockClock,
		provider: provider,
	}
}

func tearDownTest(tm *testHeadProviderMocks) {
	tm.ctrl.Finish()
}

func TestHeadProvider_LatestHead_FirstFetch(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tm.clock.EXPECT().Now().Return(now)
	tm.fetcher.EXPECT().FetchLatestHead(ctx).Return(block.Head{Number: 1000, Timestamp: 1_735_689_600}, nil)

	head, err := tm.provider.LatestHead(ctx)

	assert.NoError(t, err)
	assert.Equal(t, uint64(1000), head.Number)
	assert.Equal(t, uint64(1_735_689_600), head.Timestamp)
}

func TestHeadProvider_LatestHead_UsesCache_WithinTTL(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tm.clock.EXPECT().Now().Return(now)
	tm.fetcher.EXPECT().FetchLatestHead(ctx).Return(block.Head{Number: 1000}, nil)
	_, err := tm.provider.LatestHead(ctx)
	require.NoError(t, err)

	tm.clock.EXPECT().Now().Return(now.Add(5 * time.Second))
	head, err := tm.provider.LatestHead(ctx)

	assert.NoError(t, err)
	assert.Equal(t, uint64(1000), head.Number)
}

func TestHeadProvider_LatestHead_RefreshesAfterTTL(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	gomock.InOrder(
		tm.fetcher.EXPECT().FetchLatestHead(ctx).Return(block.Head{Number: 1000}, nil),
		tm.fetcher.EXPECT().FetchLatestHead(ctx).Return(block.Head{Number: 1005}, nil),
	)
	tm.clock.EXPECT().Now().Return(now)
	_, err := tm.provider.LatestHead(ctx)
	require.NoError(t, err)

	tm.clock.EXPECT().Now().Return(now.Add(11 * time.Second))
	head, err := tm.provider.LatestHead(ctx)

	assert.NoError(t, err)
	assert.Equal(t, uint64(1005), head.Number)
}

func TestHeadProvider_LatestHead_UsesStaleCacheOnError(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tm.clock.EXPECT().Now().Return(now)
	tm.fetcher.EXPECT().FetchLatestHead(ctx).Return(block.Head{Number: 1000}, nil)
	_, err := tm.provider.LatestHead(ctx)
	require.NoError(t, err)

	tm.clock.EXPECT().Now().Return(now.Add(30 * time.Second))
	tm.fetcher.EXPECT().FetchLatestHead(ctx).Return(block.Head{}, errors.New("rpc unavailable"))
	head, err := tm.provider.LatestHead(ctx)

	assert.NoError(t, err)
	assert.Equal(t, uint64(1000), head.Number)
}

func TestHeadProvider_LatestHead_ErrorBeyondStaleWindow(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tm.clock.EXPECT().Now().Return(now)
	tm.fetcher.EXPECT().FetchLatestHead(ctx).Return(block.Head{Number: 1000}, nil)
	_, err := tm.provider.LatestHead(ctx)
	require.NoError(t, err)

	tm.clock.EXPECT().Now().Return(now.Add(3 * time.Minute))
	tm.fetcher.EXPECT().FetchLatestHead(ctx).Return(block.Head{}, errors.New("rpc unavailable"))
	_, err = tm.provider.LatestHead(ctx)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rpc unavailable")
}

func TestHeadProvider_LatestHead_NoCacheAndFetchFails(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	ctx := context.Background()
	tm.clock.EXPECT().Now().Return(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	tm.fetcher.EXPECT().FetchLatestHead(ctx).Return(block.Head{}, errors.New("rpc unavailable"))

	_, err := tm.provider.LatestHead(ctx)
	assert.Error(t, err)
}

func TestHeadProvider_BlockTimestamp_CachedForever(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tm.clock.EXPECT().Now().Return(now)
	tm.fetcher.EXPECT().FetchBlockTimestamp(ctx, uint64(42)).Return(uint64(1_700_000_042), nil)
	ts, err := tm.provider.BlockTimestamp(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_700_000_042), ts)

	tm.clock.EXPECT().Now().Return(now.Add(24 * time.Hour))
	ts, err = tm.provider.BlockTimestamp(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_700_000_042), ts)
}

func TestHeadProvider_ConcurrentAccess(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tm.clock.EXPECT().Now().Return(now).AnyTimes()
	tm.fetcher.EXPECT().FetchLatestHead(ctx).Return(block.Head{Number: 7}, nil).MinTimes(1)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			head, err := tm.provider.LatestHead(ctx)
			assert.NoError(t, err)
			assert.Equal(t, uint64(7), head.Number)
		}()
	}
	wg.Wait()
}
