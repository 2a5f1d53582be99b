package engine_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/engine"
	"github.com/untron/untron-v3-engine/internal/mocks"
)

var bridgerAddress = common.HexToAddress("0xb000000000000000000000000000000000000001")

// flakyBridger returns a mock bridger whose failOn-th Bridge call fails; amounts are recorded in order
func flakyBridger(ctrl *gomock.Controller, token common.Address, failOn int, bridged *[]int64) *mocks.MockBridger {
	bridger := mocks.NewMockBridger(ctrl)
	bridger.EXPECT().Address().Return(bridgerAddress).AnyTimes()
	bridger.EXPECT().Bridge(gomock.Any(), token, gomock.Any(), gomock.Any(), beneficiary).
		DoAndReturn(func(_ context.Context, _ common.Address, amount, _ *big.Int, _ common.Address) error {
			*bridged = append(*bridged, amount.Int64())
			if len(*bridged) == failOn {
				return errors.New("bridge endpoint unavailable")
			}
			return nil
		}).AnyTimes()
	return bridger
}

// capturingPersister keeps the last state handed to SaveCommit
type capturingPersister struct {
	mu      sync.Mutex
	state   []byte
	commits [][]*domain.EventRecord
}

func (p *capturingPersister) expect(m *mocks.MockPersister) {
	m.EXPECT().SaveCommit(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, records []*domain.EventRecord, state []byte) error {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.state = state
			p.commits = append(p.commits, records)
			return nil
		}).AnyTimes()
}

func (p *capturingPersister) last() ([]byte, []*domain.EventRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.commits[len(p.commits)-1]
}

func newRestoredEngine(t *testing.T, h *harness, state []byte) *engine.Engine {
	t.Helper()
	seq, _ := h.engine.EventChainHead()
	entries, err := h.engine.EventChainRange(1, seq)
	require.NoError(t, err)

	restored := engine.New(engine.Config{HubChainID: hubChainID, HubAddress: hubAddress, Owner: owner},
		h.clock, nil, h.ledger, nil, nil)
	require.NoError(t, restored.Restore(entries, nil, state))
	return restored
}

func TestFill_RetryAfterBridgeFailureDoesNotPayTwice(t *testing.T) {
	h := setupEngine(t)
	ctrl := gomock.NewController(t)
	var bridged []int64
	require.NoError(t, h.engine.SetBridger(h.ctx, owner, usdt, remoteChain, flakyBridger(ctrl, usdt, 2, &bridged)))

	leaseID := h.createLease(t, salt(1), payout(usdt, remoteChain), 3600, 0, 0)
	_, err := h.deposit(salt(1), txID(1), 1_000, 1)
	require.NoError(t, err)
	_, err = h.deposit(salt(1), txID(2), 2_000, 2)
	require.NoError(t, err)
	seq, tip := h.engine.EventChainHead()

	_, err = h.engine.Fill(h.ctx, usdt, 2, nil)
	require.Error(t, err)
	assert.Equal(t, 2, h.engine.Queue(usdt).Pending)
	afterSeq, afterTip := h.engine.EventChainHead()
	assert.Equal(t, seq, afterSeq)
	assert.Equal(t, tip, afterTip)
	assert.Equal(t, int64(3_000), h.ledger.get(usdt, bridgerAddress).Int64())

	result, err := h.engine.Fill(h.ctx, usdt, 2, nil)
	require.NoError(t, err)
	require.Len(t, result.Filled, 2)

	// the first claim is not bridged again and the second is not funded again
	assert.Equal(t, []int64{1_000, 2_000, 2_000}, bridged)
	assert.Equal(t, int64(3_000), h.ledger.get(usdt, bridgerAddress).Int64())
	assert.Equal(t, hubUSDTFunds.Int64()-3_000, h.ledger.get(usdt, hubAddress).Int64())
	assert.Equal(t, int64(3_000), h.engine.FrontedLiquidity().Int64())
	assert.Equal(t, 0, h.engine.Queue(usdt).Pending)
	assert.Len(t, h.sink.named("ClaimFilled"), 2)
	h.assertBalanced(t, leaseID)
}

func TestFill_RetryAfterBridgeFailureDoesNotSwapTwice(t *testing.T) {
	ctrl := gomock.NewController(t)
	executorAddress := common.HexToAddress("0xe000000000000000000000000000000000000000")
	h := setupEngineWith(t, func(ledger *fakeLedger) engine.SwapExecutor {
		executor := mocks.NewMockSwapExecutor(ctrl)
		executor.EXPECT().Address().Return(executorAddress).AnyTimes()
		executor.EXPECT().Execute(gomock.Any(), otherToken, gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, targetToken common.Address, amountUSDT *big.Int, _ []domain.Call) error {
				ledger.mu.Lock()
				defer ledger.mu.Unlock()
				if err := ledger.move(usdt, executorAddress, common.Address{}, amountUSDT); err != nil {
					return err
				}
				out := ledger.balance(targetToken, hubAddress)
				out.Add(out, new(big.Int).Mul(amountUSDT, big.NewInt(2)))
				return nil
			}).Times(1)
		return executor
	})
	var bridged []int64
	require.NoError(t, h.engine.SetBridger(h.ctx, owner, otherToken, remoteChain, flakyBridger(ctrl, otherToken, 2, &bridged)))

	h.createLease(t, salt(1), payout(otherToken, remoteChain), 3600, 0, 0)
	_, err := h.deposit(salt(1), txID(1), 1_000, 1)
	require.NoError(t, err)
	_, err = h.deposit(salt(1), txID(2), 3_000, 2)
	require.NoError(t, err)

	_, err = h.engine.Fill(h.ctx, otherToken, 2, nil)
	require.Error(t, err)
	assert.Equal(t, 2, h.engine.Queue(otherToken).Pending)

	result, err := h.engine.Fill(h.ctx, otherToken, 2, nil)
	require.NoError(t, err)
	require.Len(t, result.Filled, 2)
	assert.Equal(t, int64(2_000), result.Filled[0].Delivered.Int64())
	assert.Equal(t, int64(6_000), result.Filled[1].Delivered.Int64())

	assert.Equal(t, []int64{2_000, 6_000, 6_000}, bridged)
	assert.Equal(t, int64(8_000), h.ledger.get(otherToken, bridgerAddress).Int64())
	assert.Equal(t, 0, h.ledger.get(otherToken, hubAddress).Sign())
	assert.Equal(t, hubUSDTFunds.Int64()-4_000, h.ledger.get(usdt, hubAddress).Int64())
}

func TestFill_ReentrancyWithoutGuardedContextIsRejected(t *testing.T) {
	h := setupEngine(t)
	ctrl := gomock.NewController(t)

	var innerErr error
	bridger := mocks.NewMockBridger(ctrl)
	bridger.EXPECT().Address().Return(bridgerAddress).AnyTimes()
	bridger.EXPECT().Bridge(gomock.Any(), usdt, gomock.Any(), gomock.Any(), beneficiary).
		DoAndReturn(func(context.Context, common.Address, *big.Int, *big.Int, common.Address) error {
			_, innerErr = h.engine.Fill(context.Background(), usdt, 1, nil)
			return nil
		}).Times(1)
	require.NoError(t, h.engine.SetBridger(h.ctx, owner, usdt, remoteChain, bridger))

	h.createLease(t, salt(1), payout(usdt, remoteChain), 3600, 0, 0)
	_, err := h.deposit(salt(1), txID(1), 1_000, 1)
	require.NoError(t, err)
	_, err = h.deposit(salt(1), txID(2), 2_000, 2)
	require.NoError(t, err)

	result, err := h.engine.Fill(h.ctx, usdt, 1, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, innerErr, domain.ErrReentrancy)
	assert.Len(t, result.Filled, 1)
	assert.Equal(t, 1, h.engine.Queue(usdt).Pending)

	// outside of an external call the engine accepts operations again
	require.NoError(t, h.engine.SetRealtor(context.Background(), owner, lessee, true))
}

func TestRestore_ResumesFullState(t *testing.T) {
	h := setupEngine(t)
	ctrl := gomock.NewController(t)
	persister := mocks.NewMockPersister(ctrl)
	captured := &capturingPersister{}
	captured.expect(persister)
	h.engine.SetPersister(persister)

	leaseID := h.createLease(t, salt(1), payout(usdt, hubChainID), 3600, 0, 0)
	_, err := h.deposit(salt(1), txID(1), 1_000, 1)
	require.NoError(t, err)
	_, err = h.deposit(salt(1), txID(2), 2_000, 2)
	require.NoError(t, err)
	_, err = h.engine.Fill(h.ctx, usdt, 1, nil)
	require.NoError(t, err)
	require.NoError(t, h.engine.SetChainDeprecated(h.ctx, owner, remoteChain, true))

	state, records := captured.last()
	require.NotEmpty(t, state)
	assert.NotEmpty(t, records)

	restored := newRestoredEngine(t, h, state)

	assert.True(t, restored.DepositProcessed(txID(1)))
	assert.True(t, restored.DepositProcessed(txID(2)))
	assert.Equal(t, h.engine.LastReceiverPull(salt(1), tronUSDT), restored.LastReceiverPull(salt(1), tronUSDT))

	original, err := h.engine.Lease(leaseID)
	require.NoError(t, err)
	l, err := restored.Lease(leaseID)
	require.NoError(t, err)
	assert.Equal(t, original.Status, l.Status)
	assert.Equal(t, original.NukeableAfter, l.NukeableAfter)
	assert.Equal(t, original.Payout.Beneficiary, l.Payout.Beneficiary)
	assert.Equal(t, 0, original.RecognizedRaw.Cmp(l.RecognizedRaw))
	assert.Equal(t, h.engine.LeaseCount(), restored.LeaseCount())

	assert.Equal(t, h.engine.Queue(usdt), restored.Queue(usdt))
	pending := restored.PendingClaims(usdt, 10)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(2), pending[0].ID)
	assert.Equal(t, int64(2_000), pending[0].AmountUSDT.Int64())

	assert.Equal(t, 0, h.engine.PnL().Cmp(restored.PnL()))
	assert.Equal(t, 0, h.engine.FrontedLiquidity().Cmp(restored.FrontedLiquidity()))
	assert.Equal(t, 0, lpPrincipal.Cmp(restored.LpPrincipal(lp)))
	assert.Equal(t, 0, lpPrincipal.Cmp(restored.TotalLpPrincipal()))

	settings := restored.Settings()
	assert.True(t, settings.Initialized)
	assert.Equal(t, h.engine.Settings().Identities, settings.Identities)
	assert.Equal(t, []string{remoteChain.String()}, settings.DeprecatedChains)
	assert.Contains(t, settings.Realtors, realtor)
	assert.Equal(t, h.engine.ControllerCursor(), restored.ControllerCursor())

	replay := engine.Deposit{ReceiverSalt: salt(1), Token: tronUSDT, RawAmount: big.NewInt(2_000), TxID: txID(2), Timestamp: 3}
	_, err = restored.RecognizeDeposit(h.ctx, tronReader, replay)
	assert.ErrorIs(t, err, domain.ErrDepositAlreadyProcessed)

	// the restored engine keeps numbering claims and paying from the same queue
	res, err := restored.RecognizeDeposit(h.ctx, tronReader, engine.Deposit{
		ReceiverSalt: salt(1), Token: tronUSDT, RawAmount: big.NewInt(500), TxID: txID(3), Timestamp: 4,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Claim)
	assert.Equal(t, uint64(3), res.Claim.ID)

	result, err := restored.Fill(h.ctx, usdt, 10, nil)
	require.NoError(t, err)
	require.Len(t, result.Filled, 2)
	assert.Equal(t, int64(3_500), h.ledger.get(usdt, beneficiary).Int64())
}

func TestRestore_KeepsDeliveriesOfRevertedFill(t *testing.T) {
	h := setupEngine(t)
	ctrl := gomock.NewController(t)
	persister := mocks.NewMockPersister(ctrl)
	captured := &capturingPersister{}
	captured.expect(persister)
	h.engine.SetPersister(persister)

	var bridged []int64
	bridger := flakyBridger(ctrl, usdt, 2, &bridged)
	require.NoError(t, h.engine.SetBridger(h.ctx, owner, usdt, remoteChain, bridger))
	h.createLease(t, salt(1), payout(usdt, remoteChain), 3600, 0, 0)
	_, err := h.deposit(salt(1), txID(1), 1_000, 1)
	require.NoError(t, err)
	_, err = h.deposit(salt(1), txID(2), 2_000, 2)
	require.NoError(t, err)

	_, err = h.engine.Fill(h.ctx, usdt, 2, nil)
	require.Error(t, err)

	// the reverted fill stores no events but still stores what left the hub
	state, records := captured.last()
	assert.Empty(t, records)

	restored := newRestoredEngine(t, h, state)
	assert.Equal(t, 2, restored.Queue(usdt).Pending)
	require.NoError(t, restored.SetBridger(h.ctx, owner, usdt, remoteChain, bridger))

	result, err := restored.Fill(h.ctx, usdt, 2, nil)
	require.NoError(t, err)
	require.Len(t, result.Filled, 2)
	assert.Equal(t, []int64{1_000, 2_000, 2_000}, bridged)
	assert.Equal(t, int64(3_000), h.ledger.get(usdt, bridgerAddress).Int64())
	assert.Equal(t, hubUSDTFunds.Int64()-3_000, h.ledger.get(usdt, hubAddress).Int64())
}

func TestRestore_RejectsStateOfAnotherChainHead(t *testing.T) {
	h := setupEngine(t)
	ctrl := gomock.NewController(t)
	persister := mocks.NewMockPersister(ctrl)
	captured := &capturingPersister{}
	captured.expect(persister)
	h.engine.SetPersister(persister)

	require.NoError(t, h.engine.SetRealtor(h.ctx, owner, lessee, true))
	state, _ := captured.last()

	seq, _ := h.engine.EventChainHead()
	entries, err := h.engine.EventChainRange(1, seq-1)
	require.NoError(t, err)
	restored := engine.New(engine.Config{HubChainID: hubChainID, HubAddress: hubAddress, Owner: owner},
		h.clock, nil, h.ledger, nil, nil)
	assert.Error(t, restored.Restore(entries, nil, state))
}

func newPersistedEngine(t *testing.T, persister engine.Persister, sink engine.EventSink) *engine.Engine {
	t.Helper()
	clock := &fakeClock{}
	clock.set(0)
	dispatcher := engine.NewDispatcher(1, 4, sink)
	t.Cleanup(dispatcher.Close)

	e := engine.New(engine.Config{
		HubChainID:     hubChainID,
		HubAddress:     hubAddress,
		Owner:          owner,
		PersistTimeout: 10 * time.Millisecond,
	}, clock, nil, newFakeLedger(), nil, dispatcher)
	e.SetPersister(persister)
	return e
}

func TestPersistFailure_HaltsEngine(t *testing.T) {
	ctrl := gomock.NewController(t)
	persister := mocks.NewMockPersister(ctrl)
	sink := &recordingSink{}
	e := newPersistedEngine(t, persister, engine.NewSink("recorder", sink.handle))
	ctx := context.Background()

	persister.EXPECT().SaveCommit(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)
	require.NoError(t, e.SetRealtor(ctx, owner, realtor, true))
	dispatched := sink.count()
	require.NotZero(t, dispatched)

	persister.EXPECT().SaveCommit(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("database unavailable")).MinTimes(1)
	err := e.SetRealtor(ctx, owner, lessee, true)
	assert.ErrorIs(t, err, engine.ErrHalted)
	assert.Equal(t, dispatched, sink.count())

	// nothing builds on a commit that was never stored
	assert.ErrorIs(t, e.Pause(ctx, owner), engine.ErrHalted)
	assert.ErrorIs(t, e.SetRealtor(ctx, owner, sponsor, true), engine.ErrHalted)
	assert.Equal(t, dispatched, sink.count())
}

func TestPersist_OutlivesCanceledCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	persister := mocks.NewMockPersister(ctrl)
	var sinkErr error
	sink := engine.NewSink("recorder", func(ctx context.Context, _ []*domain.EventRecord) error {
		sinkErr = ctx.Err()
		return nil
	})
	e := newPersistedEngine(t, persister, sink)

	var persistErr error
	persister.EXPECT().SaveCommit(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, records []*domain.EventRecord, state []byte) error {
			persistErr = ctx.Err()
			return nil
		}).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.SetRealtor(ctx, owner, realtor, true))
	assert.NoError(t, persistErr)
	assert.NoError(t, sinkErr)
}
