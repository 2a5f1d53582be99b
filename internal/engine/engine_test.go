package engine_test

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/engine"
	"github.com/untron/untron-v3-engine/internal/lease"
	"github.com/untron/untron-v3-engine/internal/logger"
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

var (
	owner       = common.HexToAddress("0x0000000000000000000000000000000000000001")
	hubAddress  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	usdt        = common.HexToAddress("0x2000000000000000000000000000000000000002")
	tronUSDT    = common.HexToAddress("0x3000000000000000000000000000000000000003")
	tronReader  = common.HexToAddress("0x4000000000000000000000000000000000000004")
	controller  = common.HexToAddress("0x5000000000000000000000000000000000000005")
	realtor     = common.HexToAddress("0x6000000000000000000000000000000000000006")
	lessee      = common.HexToAddress("0x7000000000000000000000000000000000000007")
	lp          = common.HexToAddress("0x8000000000000000000000000000000000000008")
	sponsor     = common.HexToAddress("0x9000000000000000000000000000000000000009")
	beneficiary = common.HexToAddress("0x000000000000000000000000000000000000bEEF")
	otherToken  = common.HexToAddress("0xa00000000000000000000000000000000000000a")

	hubChainID  = big.NewInt(10)
	remoteChain = big.NewInt(1)
	lpPrincipal = big.NewInt(10_000_000)
	// hubUSDTFunds is what the hub holds once the LP principal has been pulled in
	hubUSDTFunds = big.NewInt(10_000_000)
)

// fakeClock is a settable clock in whole seconds
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

func (c *fakeClock) Sleep(time.Duration) {}

func (c *fakeClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

func (c *fakeClock) set(seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Unix(seconds, 0)
}

// fakeLedger keeps token balances; transfers debit the hub
type fakeLedger struct {
	mu       sync.Mutex
	balances map[common.Address]map[common.Address]*big.Int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[common.Address]map[common.Address]*big.Int)}
}

func (l *fakeLedger) balance(token, holder common.Address) *big.Int {
	if l.balances[token] == nil {
		l.balances[token] = make(map[common.Address]*big.Int)
	}
	if l.balances[token][holder] == nil {
		l.balances[token][holder] = new(big.Int)
	}
	return l.balances[token][holder]
}

func (l *fakeLedger) BalanceOf(_ context.Context, token, holder common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(token, holder)), nil
}

func (l *fakeLedger) Transfer(_ context.Context, token, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(token, hubAddress, to, amount)
}

func (l *fakeLedger) TransferFrom(_ context.Context, token, from common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(token, from, hubAddress, amount)
}

func (l *fakeLedger) move(token, from, to common.Address, amount *big.Int) error {
	src := l.balance(token, from)
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient %s balance of %s", token.Hex(), from.Hex())
	}
	src.Sub(src, amount)
	dst := l.balance(token, to)
	dst.Add(dst, amount)
	return nil
}

func (l *fakeLedger) mint(token, holder common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.balance(token, holder)
	b.Add(b, amount)
}

func (l *fakeLedger) get(token, holder common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(token, holder))
}

type bridgeCall struct {
	token       common.Address
	amount      *big.Int
	chainID     *big.Int
	beneficiary common.Address
}

// fakeBridger records bridge calls and runs an optional hook inside Bridge
type fakeBridger struct {
	address  common.Address
	calls    []bridgeCall
	onBridge func(ctx context.Context) error
}

func (b *fakeBridger) Address() common.Address {
	return b.address
}

func (b *fakeBridger) Bridge(ctx context.Context, token common.Address, amount *big.Int, chainID *big.Int, to common.Address) error {
	b.calls = append(b.calls, bridgeCall{token: token, amount: new(big.Int).Set(amount), chainID: chainID, beneficiary: to})
	if b.onBridge != nil {
		return b.onBridge(ctx)
	}
	return nil
}

// fakeExecutor swaps the USDT it received into target token at ratePPM and sends it to the hub
type fakeExecutor struct {
	address common.Address
	ledger  *fakeLedger
	ratePPM int64
	calls   [][]domain.Call
}

func (x *fakeExecutor) Address() common.Address {
	return x.address
}

func (x *fakeExecutor) Execute(_ context.Context, targetToken common.Address, amountUSDT *big.Int, calls []domain.Call) error {
	x.calls = append(x.calls, calls)
	x.ledger.mu.Lock()
	defer x.ledger.mu.Unlock()
	if err := x.ledger.move(usdt, x.address, common.Address{}, amountUSDT); err != nil {
		return err
	}
	out := new(big.Int).Mul(amountUSDT, big.NewInt(x.ratePPM))
	out.Div(out, big.NewInt(1_000_000))
	b := x.ledger.balance(targetToken, hubAddress)
	b.Add(b, out)
	return nil
}

// recordingSink captures every dispatched record
type recordingSink struct {
	mu      sync.Mutex
	records []*domain.EventRecord
}

func (s *recordingSink) handle(_ context.Context, records []*domain.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *recordingSink) named(name string) []*domain.EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.EventRecord
	for _, r := range s.records {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// harness is an initialized engine with an allowlisted realtor and a funded LP
type harness struct {
	ctx      context.Context
	clock    *fakeClock
	ledger   *fakeLedger
	executor *fakeExecutor
	sink     *recordingSink
	engine   *engine.Engine
}

func setupEngine(t *testing.T) *harness {
	t.Helper()

	var executor *fakeExecutor
	h := setupEngineWith(t, func(ledger *fakeLedger) engine.SwapExecutor {
		executor = &fakeExecutor{
			address: common.HexToAddress("0xe000000000000000000000000000000000000000"),
			ledger:  ledger,
			ratePPM: 2_000_000,
		}
		return executor
	})
	h.executor = executor
	return h
}

// setupEngineWith builds the harness around the swap executor returned by newExecutor
func setupEngineWith(t *testing.T, newExecutor func(ledger *fakeLedger) engine.SwapExecutor) *harness {
	t.Helper()

	ctx := context.Background()
	clock := &fakeClock{}
	clock.set(0)
	ledger := newFakeLedger()
	ledger.mint(usdt, lp, hubUSDTFunds)
	executor := newExecutor(ledger)
	sink := &recordingSink{}
	dispatcher := engine.NewDispatcher(2, 16, engine.NewSink("recorder", sink.handle))
	t.Cleanup(dispatcher.Close)

	e := engine.New(engine.Config{
		HubChainID: hubChainID,
		HubAddress: hubAddress,
		Owner:      owner,
	}, clock, nil, ledger, executor, dispatcher)

	require.NoError(t, e.InitializeIdentities(ctx, owner, engine.Identities{
		USDT:       usdt,
		TronUSDT:   tronUSDT,
		TronReader: tronReader,
		Controller: controller,
	}))
	require.NoError(t, e.SetRealtor(ctx, owner, realtor, true))
	require.NoError(t, e.SetLpAllowed(ctx, owner, lp, true))
	require.NoError(t, e.LpDeposit(ctx, lp, lpPrincipal))

	return &harness{
		ctx:    ctx,
		clock:  clock,
		ledger: ledger,
		sink:   sink,
		engine: e,
	}
}

func salt(n byte) common.Hash {
	return common.BytesToHash([]byte{0x5a, n})
}

func txID(n byte) common.Hash {
	return common.BytesToHash([]byte{0x7e, n})
}

func payout(token common.Address, chainID *big.Int) domain.PayoutConfig {
	return domain.PayoutConfig{TargetChainID: chainID, TargetToken: token, Beneficiary: beneficiary}
}

func (h *harness) createLease(t *testing.T, s common.Hash, p domain.PayoutConfig, duration uint64, feePPM uint32, flatFee uint64) uint64 {
	t.Helper()
	id, err := h.engine.CreateLease(h.ctx, realtor, engine.LeaseRequest{
		ReceiverSalt:    s,
		Lessee:          lessee,
		DurationSeconds: duration,
		FeePPM:          feePPM,
		FlatFee:         flatFee,
		Payout:          p,
	})
	require.NoError(t, err)
	return id
}

func (h *harness) deposit(s common.Hash, tx common.Hash, raw int64, timestamp uint64) (engine.RecognizeResult, error) {
	return h.engine.RecognizeDeposit(h.ctx, tronReader, engine.Deposit{
		ReceiverSalt: s,
		Token:        tronUSDT,
		RawAmount:    big.NewInt(raw),
		TxID:         tx,
		Timestamp:    timestamp,
	})
}

func (h *harness) assertBalanced(t *testing.T, leaseID uint64) {
	t.Helper()
	l, err := h.engine.Lease(leaseID)
	require.NoError(t, err)
	assert.True(t, lease.Balanced(l), "lease %d raw accounting is unbalanced", leaseID)
}

// A remote USDT payout is funded to the bridger net of the lease fees
func TestFill_SingleUSDTClaimThroughBridger(t *testing.T) {
	h := setupEngine(t)
	bridger := &fakeBridger{address: common.HexToAddress("0xb000000000000000000000000000000000000001")}
	require.NoError(t, h.engine.SetBridger(h.ctx, owner, usdt, remoteChain, bridger))

	leaseID := h.createLease(t, salt(1), payout(usdt, remoteChain), 3600, 10_000, 1)
	res, err := h.deposit(salt(1), txID(1), 1_000_000, 1)
	require.NoError(t, err)
	require.NotNil(t, res.Claim)
	assert.Equal(t, int64(1_000_000), res.Claim.AmountUSDT.Int64())

	result, err := h.engine.Fill(h.ctx, usdt, 1, nil)
	require.NoError(t, err)

	require.Len(t, result.Filled, 1)
	assert.Equal(t, int64(10_001), result.Filled[0].Fee.Int64())
	assert.Equal(t, int64(989_999), result.Filled[0].Payout.Int64())
	assert.Len(t, h.sink.named("ClaimFilled"), 1)

	require.Len(t, bridger.calls, 1)
	assert.Equal(t, int64(989_999), bridger.calls[0].amount.Int64())
	assert.Equal(t, beneficiary, bridger.calls[0].beneficiary)
	assert.Equal(t, 0, bridger.calls[0].chainID.Cmp(remoteChain))
	assert.Equal(t, int64(989_999), h.ledger.get(usdt, bridger.address).Int64())

	assert.Equal(t, int64(10_001), h.engine.PnL().Int64())
	assert.Equal(t, int64(989_999), h.engine.FrontedLiquidity().Int64())
	assert.Equal(t, 0, h.engine.Queue(usdt).Pending)
	h.assertBalanced(t, leaseID)
}

// A bridger calling back into Fill during delivery gets a reentrancy error
func TestFill_ReentrancyFromBridgerIsRejected(t *testing.T) {
	h := setupEngine(t)
	var innerErr error
	bridger := &fakeBridger{address: common.HexToAddress("0xb000000000000000000000000000000000000001")}
	bridger.onBridge = func(ctx context.Context) error {
		_, innerErr = h.engine.Fill(ctx, usdt, 1, nil)
		return nil
	}
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
}

// A tron transaction is recognized at most once
func TestRecognizeDeposit_ReplayIsRejected(t *testing.T) {
	h := setupEngine(t)
	h.createLease(t, salt(1), payout(usdt, hubChainID), 3600, 0, 0)
	tx := common.HexToHash("0xaaaa000000000000000000000000000000000000000000000000000000000000")

	_, err := h.deposit(salt(1), tx, 1_000, 1)
	require.NoError(t, err)
	assert.True(t, h.engine.DepositProcessed(tx))

	seq, tip := h.engine.EventChainHead()
	_, err = h.deposit(salt(1), tx, 1_000, 2)
	assert.ErrorIs(t, err, domain.ErrDepositAlreadyProcessed)

	afterSeq, afterTip := h.engine.EventChainHead()
	assert.Equal(t, seq, afterSeq)
	assert.Equal(t, tip, afterTip)
	assert.Equal(t, 1, h.engine.Queue(usdt).Pending)
	assert.Equal(t, uint64(1), h.engine.LastReceiverPull(salt(1), tronUSDT))
}

// Nuking an expired lease drops its claims and books the loss
func TestNukeLease_AfterTimeout(t *testing.T) {
	h := setupEngine(t)
	leaseID := h.createLease(t, salt(1), payout(usdt, hubChainID), 1000, 0, 0)
	l, err := h.engine.Lease(leaseID)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), l.NukeableAfter)

	_, err = h.deposit(salt(1), txID(1), 500, 1)
	require.NoError(t, err)

	h.clock.set(999)
	_, err = h.engine.NukeLease(h.ctx, leaseID)
	assert.ErrorIs(t, err, domain.ErrLeaseNotNukeableYet)
	assert.Equal(t, 1, h.engine.Queue(usdt).Pending)

	h.clock.set(1000)
	result, err := h.engine.NukeLease(h.ctx, leaseID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.DroppedClaims)
	assert.Equal(t, int64(500), result.DroppedUSDT.Int64())

	assert.Equal(t, int64(-500), h.engine.PnL().Int64())
	assert.Equal(t, 0, h.engine.Queue(usdt).Pending)
	assert.Empty(t, h.engine.PendingClaims(usdt, 10))

	updates := h.sink.named("ProtocolPnlUpdated")
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, "-500", last.Args["delta"])
	assert.Equal(t, uint8(domain.PnlReasonNuke), last.Args["reason"])
	assert.Len(t, h.sink.named("ClaimDropped"), 1)
	assert.Len(t, h.sink.named("LeaseNuked"), 1)

	l, err = h.engine.Lease(leaseID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeaseStatusNuked, l.Status)
	h.assertBalanced(t, leaseID)

	// a nuked lease accepts no further deposits
	_, err = h.deposit(salt(1), txID(2), 500, 2)
	assert.ErrorIs(t, err, domain.ErrNoActiveLease)
}

func TestFill_QueueIsFIFO(t *testing.T) {
	h := setupEngine(t)
	h.createLease(t, salt(1), payout(usdt, hubChainID), 3600, 0, 0)
	for i := byte(1); i <= 3; i++ {
		_, err := h.deposit(salt(1), txID(i), int64(i)*100, uint64(i))
		require.NoError(t, err)
	}

	result, err := h.engine.Fill(h.ctx, usdt, 10, nil)
	require.NoError(t, err)
	require.Len(t, result.Filled, 3)
	for i, f := range result.Filled {
		assert.Equal(t, uint64(i+1), f.Claim.ID)
		assert.Equal(t, uint64(i), f.Claim.QueueIndex)
	}
	assert.Equal(t, int64(600), h.ledger.get(usdt, beneficiary).Int64())

	// an empty queue changes nothing and emits nothing
	emitted := h.sink.count()
	seq, _ := h.engine.EventChainHead()
	result, err = h.engine.Fill(h.ctx, usdt, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Filled)
	assert.Equal(t, emitted, h.sink.count())
	afterSeq, _ := h.engine.EventChainHead()
	assert.Equal(t, seq, afterSeq)
}

func TestFill_BalanceMismatchReverts(t *testing.T) {
	h := setupEngine(t)
	bridger := &fakeBridger{address: common.HexToAddress("0xb000000000000000000000000000000000000001")}
	bridger.onBridge = func(context.Context) error {
		// the bridger pulls one unit more than it was funded with
		h.ledger.mu.Lock()
		defer h.ledger.mu.Unlock()
		return h.ledger.move(usdt, hubAddress, bridger.address, big.NewInt(1))
	}
	require.NoError(t, h.engine.SetBridger(h.ctx, owner, usdt, remoteChain, bridger))

	leaseID := h.createLease(t, salt(1), payout(usdt, remoteChain), 3600, 0, 0)
	_, err := h.deposit(salt(1), txID(1), 1_000, 1)
	require.NoError(t, err)
	seq, tip := h.engine.EventChainHead()

	_, err = h.engine.Fill(h.ctx, usdt, 1, nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientUsdtBalance)

	afterSeq, afterTip := h.engine.EventChainHead()
	assert.Equal(t, seq, afterSeq)
	assert.Equal(t, tip, afterTip)
	assert.Equal(t, 1, h.engine.Queue(usdt).Pending)
	assert.Equal(t, 0, h.engine.PnL().Sign())
	assert.Equal(t, 0, h.engine.FrontedLiquidity().Sign())
	assert.Empty(t, h.sink.named("ClaimFilled"))
	h.assertBalanced(t, leaseID)
}

func TestFill_NoBridgerForRemoteChain(t *testing.T) {
	h := setupEngine(t)
	h.createLease(t, salt(1), payout(usdt, remoteChain), 3600, 0, 0)
	_, err := h.deposit(salt(1), txID(1), 1_000, 1)
	require.NoError(t, err)

	_, err = h.engine.Fill(h.ctx, usdt, 1, nil)
	assert.ErrorIs(t, err, domain.ErrNoBridger)
	assert.Equal(t, 1, h.engine.Queue(usdt).Pending)
}

func TestFill_Guards(t *testing.T) {
	h := setupEngine(t)

	_, err := h.engine.Fill(h.ctx, common.Address{}, 1, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTargetToken)

	require.NoError(t, h.engine.Pause(h.ctx, owner))
	_, err = h.engine.Fill(h.ctx, usdt, 1, nil)
	assert.ErrorIs(t, err, domain.ErrEnforcedPause)

	require.NoError(t, h.engine.Unpause(h.ctx, owner))
	_, err = h.engine.Fill(h.ctx, usdt, 1, nil)
	assert.NoError(t, err)
}

func TestFill_SwapSplitsOutputProRata(t *testing.T) {
	h := setupEngine(t)
	h.createLease(t, salt(1), payout(otherToken, hubChainID), 3600, 0, 0)
	_, err := h.deposit(salt(1), txID(1), 1_000, 1)
	require.NoError(t, err)
	_, err = h.deposit(salt(1), txID(2), 3_000, 2)
	require.NoError(t, err)

	calls := []domain.Call{{To: common.HexToAddress("0xd000000000000000000000000000000000000d00"), Value: big.NewInt(0), Data: []byte{0x01}}}
	result, err := h.engine.Fill(h.ctx, otherToken, 2, calls)
	require.NoError(t, err)
	require.Len(t, result.Filled, 2)

	assert.Equal(t, int64(2_000), result.Filled[0].Delivered.Int64())
	assert.Equal(t, int64(6_000), result.Filled[1].Delivered.Int64())
	assert.Equal(t, int64(8_000), h.ledger.get(otherToken, beneficiary).Int64())
	assert.Equal(t, int64(4_000), result.TotalPayout.Int64())
	require.Len(t, h.executor.calls, 1)
	assert.Equal(t, calls, h.executor.calls[0])
	assert.Equal(t, hubUSDTFunds.Int64()-4_000, h.ledger.get(usdt, hubAddress).Int64())
}

func TestFill_DeprecatedChainReroutesToUSDT(t *testing.T) {
	h := setupEngine(t)
	h.createLease(t, salt(1), payout(otherToken, remoteChain), 3600, 0, 0)
	_, err := h.deposit(salt(1), txID(1), 1_000, 1)
	require.NoError(t, err)
	require.Equal(t, 1, h.engine.Queue(otherToken).Pending)

	require.NoError(t, h.engine.SetChainDeprecated(h.ctx, owner, remoteChain, true))

	result, err := h.engine.Fill(h.ctx, otherToken, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Filled)
	assert.Equal(t, 1, result.Rerouted)
	assert.Len(t, h.sink.named("ClaimRerouted"), 1)
	assert.Equal(t, 0, h.engine.Queue(otherToken).Pending)
	assert.Equal(t, 1, h.engine.Queue(usdt).Pending)

	claim, err := h.engine.Claim(1)
	require.NoError(t, err)
	assert.Equal(t, usdt, claim.TargetToken)
	assert.Equal(t, 0, claim.TargetChainID.Cmp(hubChainID))

	result, err = h.engine.Fill(h.ctx, usdt, 1, nil)
	require.NoError(t, err)
	require.Len(t, result.Filled, 1)
	assert.Equal(t, int64(1_000), h.ledger.get(usdt, beneficiary).Int64())

	// deposits after deprecation enqueue straight into the USDT queue
	_, err = h.deposit(salt(1), txID(2), 700, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, h.engine.Queue(usdt).Pending)
	assert.Equal(t, 0, h.engine.Queue(otherToken).Pending)
}

func TestFill_InsufficientLpPrincipal(t *testing.T) {
	h := setupEngine(t)
	h.createLease(t, salt(1), payout(usdt, hubChainID), 3600, 0, 0)
	_, err := h.deposit(salt(1), txID(1), lpPrincipal.Int64()+1, 1)
	require.NoError(t, err)
	h.ledger.mint(usdt, hubAddress, big.NewInt(1))

	_, err = h.engine.Fill(h.ctx, usdt, 1, nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientLpPrincipal)
}

func TestEventChain_IsContinuous(t *testing.T) {
	h := setupEngine(t)
	h.createLease(t, salt(1), payout(usdt, hubChainID), 3600, 0, 0)
	_, err := h.deposit(salt(1), txID(1), 1_000, 1)
	require.NoError(t, err)
	_, err = h.engine.Fill(h.ctx, usdt, 1, nil)
	require.NoError(t, err)

	seq, tip := h.engine.EventChainHead()
	entries, err := h.engine.EventChainRange(1, seq)
	require.NoError(t, err)
	require.Len(t, entries, int(seq))
	for i := range entries {
		assert.Equal(t, uint64(i+1), entries[i].Seq)
		if i > 0 {
			assert.Equal(t, entries[i-1].NewTip, entries[i].PrevTip)
		}
	}
	assert.Equal(t, tip, entries[len(entries)-1].NewTip)

	// every chained event is also announced by an EventAppended record
	assert.Len(t, h.sink.named("EventAppended"), int(seq))
}
