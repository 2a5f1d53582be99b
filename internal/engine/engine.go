package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/untron/untron-v3-engine/internal/adapter"
	"github.com/untron/untron-v3-engine/internal/block"
	"github.com/untron/untron-v3-engine/internal/codec"
	"github.com/untron/untron-v3-engine/internal/controller"
	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/eventchain"
	"github.com/untron/untron-v3-engine/internal/journal"
	"github.com/untron/untron-v3-engine/internal/lease"
	"github.com/untron/untron-v3-engine/internal/logger"
	"github.com/untron/untron-v3-engine/internal/metrics"
	"github.com/untron/untron-v3-engine/internal/pnl"
	"github.com/untron/untron-v3-engine/internal/predictor"
	"github.com/untron/untron-v3-engine/internal/queue"
	"github.com/untron/untron-v3-engine/internal/ratelimit"
)

var (
	// ErrIdentitiesNotInitialized is returned when an operation needs the bound identities
	ErrIdentitiesNotInitialized = errors.New("identities not initialized")

	// ErrNoSwapExecutor is returned when a non-USDT fill has no swap executor
	ErrNoSwapExecutor = errors.New("no swap executor configured")

	// ErrHalted is returned by every operation once a commit could not be persisted
	ErrHalted = errors.New("engine halted")
)

const defaultPersistTimeout = 30 * time.Second

// Config holds the construction parameters of the engine
type Config struct {
	// HubChainID is the chain the hub settles on; claims for it are paid without a bridger
	HubChainID *big.Int
	// HubAddress is the hub's own address: balances are read for it and events carry it
	HubAddress common.Address
	// Owner is the initial owner
	Owner common.Address

	FloorPPM                uint32
	FloorFlatFee            uint64
	MaxLeaseDurationSeconds uint64
	PayoutRateLimit         domain.RateLimit

	// ReceiverInitCodeHash is keccak256 of the receiver creation code
	ReceiverInitCodeHash common.Hash

	// PersistTimeout bounds the retries of a failing commit persistence (default 30s)
	PersistTimeout time.Duration
}

// Identities are the addresses bound once by InitializeIdentities
type Identities struct {
	USDT       common.Address `json:"usdt"`
	TronUSDT   common.Address `json:"tron_usdt"`
	TronReader common.Address `json:"tron_reader"`
	Controller common.Address `json:"controller"`
}

type realtorFee struct {
	ppm  uint32
	flat uint64
}

type bridgerKey struct {
	token   common.Address
	chainID string
}

type pullKey struct {
	salt  common.Hash
	token common.Address
}

// recognizedDeposit is a deposit recognized on a receiver that the controller has not pulled yet
type recognizedDeposit struct {
	timestamp uint64
	raw       *big.Int
}

// guardKey marks contexts handed to external collaborators during an operation
type guardKey struct{}

// Engine is the hub state machine. Operations are serialized; each either commits all of
// its state changes and events or none of them.
type Engine struct {
	// opMu serializes operations
	opMu sync.Mutex
	// mu guards the state below; it is released around external calls
	mu         sync.RWMutex
	inCritical bool
	// inExternal is set while an operation waits on an external collaborator
	inExternal bool
	// halted is the persistence failure that stopped the engine; guarded by opMu
	halted error

	config     Config
	clock      adapter.Clock
	heads      block.HeadProvider
	ledger     TokenLedger
	executor   SwapExecutor
	dispatcher *Dispatcher
	persister  Persister

	journal       *journal.Journal
	chain         *eventchain.Chain
	mirror        *controller.Mirror
	leases        *lease.Book
	queue         *queue.Queue
	pnl           *pnl.Ledger
	leaseLimiter  *ratelimit.Window[common.Address]
	payoutLimiter *ratelimit.Window[common.Address]
	predictor     *predictor.Predictor

	owner              common.Address
	paused             bool
	identities         Identities
	initialized        bool
	floorPPM           uint32
	floorFlatFee       uint64
	maxLeaseDuration   uint64
	payoutRateLimit    domain.RateLimit
	realtors           map[common.Address]bool
	realtorMinFee      map[common.Address]realtorFee
	realtorMaxDuration map[common.Address]uint64
	realtorLeaseLimit  map[common.Address]domain.RateLimit
	swapRates          map[common.Address]*big.Int
	bridgers           map[bridgerKey]Bridger
	deprecated         map[string]bool
	lpAllowed          map[common.Address]bool
	sponsors           map[common.Address]bool

	processed       map[common.Hash]bool
	lastPull        map[pullKey]uint64
	unpulled        map[pullKey][]recognizedDeposit
	preEntitlements map[common.Hash]*domain.SubjectivePreEntitlement
	claimKeys       map[uint64]domain.ClaimKey
	nextClaimID     uint64

	// deliveries is guarded by opMu only and survives reverts
	deliveries map[uint64]*delivery
}

// New creates an engine. heads may be nil, in which case events carry block number 0;
// executor may be nil when only USDT is filled.
func New(config Config, clock adapter.Clock, heads block.HeadProvider, ledger TokenLedger, executor SwapExecutor, dispatcher *Dispatcher) *Engine {
	if config.HubChainID == nil {
		config.HubChainID = new(big.Int)
	}
	if config.PersistTimeout <= 0 {
		config.PersistTimeout = defaultPersistTimeout
	}
	j := journal.New()
	return &Engine{
		config:             config,
		clock:              clock,
		heads:              heads,
		ledger:             ledger,
		executor:           executor,
		dispatcher:         dispatcher,
		journal:            j,
		chain:              eventchain.New(domain.HubChainName, j),
		mirror:             controller.NewMirror(eventchain.GenesisTip(domain.ControllerChainName), j),
		leases:             lease.New(j),
		queue:              queue.New(j),
		pnl:                pnl.New(j),
		leaseLimiter:       ratelimit.NewWindow[common.Address](j),
		payoutLimiter:      ratelimit.NewWindow[common.Address](j),
		owner:              config.Owner,
		floorPPM:           config.FloorPPM,
		floorFlatFee:       config.FloorFlatFee,
		maxLeaseDuration:   config.MaxLeaseDurationSeconds,
		payoutRateLimit:    config.PayoutRateLimit,
		realtors:           make(map[common.Address]bool),
		realtorMinFee:      make(map[common.Address]realtorFee),
		realtorMaxDuration: make(map[common.Address]uint64),
		realtorLeaseLimit:  make(map[common.Address]domain.RateLimit),
		swapRates:          make(map[common.Address]*big.Int),
		bridgers:           make(map[bridgerKey]Bridger),
		deprecated:         make(map[string]bool),
		lpAllowed:          make(map[common.Address]bool),
		sponsors:           make(map[common.Address]bool),
		processed:          make(map[common.Hash]bool),
		lastPull:           make(map[pullKey]uint64),
		unpulled:           make(map[pullKey][]recognizedDeposit),
		preEntitlements:    make(map[common.Hash]*domain.SubjectivePreEntitlement),
		claimKeys:          make(map[uint64]domain.ClaimKey),
		nextClaimID:        1,
		deliveries:         make(map[uint64]*delivery),
	}
}

// SetPersister makes every commit durable before its events are dispatched. It must be
// set before the first operation.
func (e *Engine) SetPersister(p Persister) {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	e.persister = p
}

// Restore rebuilds the engine from persisted state: the hub event chain, then the engine
// state saved with its last commit. Without a saved state only the chain and the
// controller cursor are positioned. It must run before the first operation.
func (e *Engine) Restore(entries []domain.EventChainEntry, cursor *domain.ControllerCursor, state []byte) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.chain.Restore(entries); err != nil {
		return fmt.Errorf("failed to restore hub event chain: %w", err)
	}
	if cursor != nil {
		e.mirror.Restore(*cursor)
	}
	if len(state) > 0 {
		if err := e.loadState(state); err != nil {
			return err
		}
	}
	seq, tip := e.chain.Head()
	metrics.HubEventSeq.Set(float64(seq))
	logger.Info("Restored engine state",
		zap.Uint64("hub_seq", seq),
		logger.Hash("hub_tip", tip),
		zap.Uint64("controller_seq", e.mirror.Cursor().LastSeq),
	)
	return nil
}

// operation is the context of one serialized engine operation
type operation struct {
	engine  *Engine
	ctx     context.Context
	name    string
	now     uint64
	head    block.Head
	records []*domain.EventRecord
	commits []func()
	// delivered is set once the operation recorded a delivery, which outlives a revert
	delivered bool
}

// external runs fn with the state lock released. Any operation entered while fn runs,
// through the guarded context or not, is rejected with Reentrancy.
func (op *operation) external(fn func(ctx context.Context) error) error {
	e := op.engine
	e.inExternal = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inExternal = false
	}()
	return fn(op.ctx)
}

// onCommit registers fn to run once the operation has committed
func (op *operation) onCommit(fn func()) {
	op.commits = append(op.commits, fn)
}

func (e *Engine) reentered(ctx context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.inExternal {
		return true
	}
	marked, ok := ctx.Value(guardKey{}).(*Engine)
	return ok && marked == e && e.inCritical
}

// execute runs fn as one atomic operation: on error every journaled change is reverted
// and no event leaves the engine. A committed operation is persisted before its events
// are dispatched; if that keeps failing the engine halts.
func (e *Engine) execute(ctx context.Context, name string, fn func(op *operation) error) error {
	if e.reentered(ctx) {
		metrics.OperationErrors.WithLabelValues(name, domain.ErrReentrancy.Name).Inc()
		return domain.ErrReentrancy
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.halted != nil {
		return fmt.Errorf("%w: %v", ErrHalted, e.halted)
	}

	started := e.clock.Now()
	head, err := e.latestHead(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.inCritical = true
	snapshot := e.journal.Snapshot()
	op := &operation{
		engine: e,
		ctx:    context.WithValue(ctx, guardKey{}, e),
		name:   name,
		now:    adapter.UnixSeconds(started),
		head:   head,
	}

	err = fn(op)
	if err != nil {
		e.journal.RevertToSnapshot(snapshot)
	}
	e.journal.Reset()
	e.inCritical = false
	seq := e.chain.CurrentSeq()
	var state []byte
	var stateErr error
	if e.persister != nil && (err == nil || op.delivered) {
		state, stateErr = e.marshalState()
	}
	e.mu.Unlock()

	// the caller may go away; what was decided here still has to be stored and announced
	detached := context.WithoutCancel(ctx)

	metrics.OperationDuration.WithLabelValues(name).Observe(e.clock.Since(started).Seconds())
	if err != nil {
		metrics.OperationsTotal.WithLabelValues(name, "reverted").Inc()
		metrics.OperationErrors.WithLabelValues(name, errorName(err)).Inc()
		logger.DebugCtx(ctx, "Operation reverted", zap.String("operation", name), zap.Error(err))
		if op.delivered {
			if perr := e.persist(detached, name, nil, state, stateErr); perr != nil {
				return perr
			}
		}
		return err
	}

	if err := e.persist(detached, name, op.records, state, stateErr); err != nil {
		return err
	}

	metrics.OperationsTotal.WithLabelValues(name, "committed").Inc()
	metrics.HubEventSeq.Set(float64(seq))
	for _, fn := range op.commits {
		fn()
	}
	e.dispatcher.Dispatch(detached, op.records)
	return nil
}

// persist stores a commit with its resulting state, retrying with backoff. When it gives
// up the engine halts: memory is ahead of storage and no further operation may build on it.
func (e *Engine) persist(ctx context.Context, name string, records []*domain.EventRecord, state []byte, stateErr error) error {
	if e.persister == nil {
		return nil
	}

	err := stateErr
	if err == nil {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = min(100*time.Millisecond, e.config.PersistTimeout)
		b.MaxInterval = max(e.config.PersistTimeout/4, b.InitialInterval)
		b.MaxElapsedTime = e.config.PersistTimeout

		attempt := 0
		err = backoff.RetryNotify(func() error {
			attempt++
			return e.persister.SaveCommit(ctx, records, state)
		}, b, func(err error, next time.Duration) {
			logger.WarnCtx(ctx, "Failed to persist commit, retrying",
				zap.String("operation", name),
				zap.Int("attempt", attempt),
				zap.Duration("next_retry_in", next),
				zap.Error(err),
			)
		})
	}
	if err == nil {
		metrics.EventsDispatched.WithLabelValues("persister", "ok").Inc()
		return nil
	}

	metrics.EventsDispatched.WithLabelValues("persister", "error").Inc()
	e.halted = err
	logger.ErrorCtx(ctx, fmt.Errorf("engine halted, commit of %s not persisted: %w", name, err),
		zap.Int("records", len(records)),
	)
	return fmt.Errorf("%w: %v", ErrHalted, err)
}

func (e *Engine) latestHead(ctx context.Context) (block.Head, error) {
	if e.heads == nil {
		return block.Head{}, nil
	}
	head, err := e.heads.LatestHead(ctx)
	if err != nil {
		return block.Head{}, fmt.Errorf("failed to get hub head: %w", err)
	}
	return head, nil
}

func errorName(err error) string {
	if pe, ok := domain.AsProtocolError(err); ok {
		return pe.Name
	}
	return "internal"
}

// emit appends an event to the hub event chain and queues both the event and its
// EventAppended record for dispatch
func (e *Engine) emit(op *operation, name string, values ...interface{}) error {
	rec, err := codec.PackEvent(name, values...)
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", name, err)
	}
	payload, err := codec.EventPayload(name, values...)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", name, err)
	}

	entry := e.chain.Append(rec.Topics[0], payload, op.head.Number, op.now)
	rec.Address = e.config.HubAddress
	rec.Entry = &entry

	appended, err := codec.PackEvent(codec.EventEventAppended,
		u256(entry.Seq), entry.PrevTip, entry.NewTip, entry.Signature, payload)
	if err != nil {
		return fmt.Errorf("failed to pack EventAppended: %w", err)
	}
	appended.Address = e.config.HubAddress

	op.records = append(op.records, rec, appended)
	return nil
}

// applyPnl adds delta to the protocol PnL and emits ProtocolPnlUpdated
func (e *Engine) applyPnl(op *operation, delta *big.Int, reason domain.PnlReason) error {
	if delta.Sign() == 0 {
		return nil
	}
	update, err := e.pnl.Apply(delta, reason)
	if err != nil {
		return err
	}
	op.onCommit(e.observeAccounting)
	return e.emit(op, codec.EventProtocolPnlUpdated, update.PnL, update.Delta, uint8(reason))
}

func (e *Engine) observeAccounting() {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pnlValue, _ := new(big.Float).SetInt(e.pnl.PnL()).Float64()
	fronted, _ := new(big.Float).SetInt(e.pnl.Fronted()).Float64()
	metrics.ProtocolPnL.Set(pnlValue)
	metrics.FrontedLiquidity.Set(fronted)
}

func (e *Engine) requireOwner(caller common.Address) error {
	if caller != e.owner {
		return domain.ErrUnauthorized
	}
	return nil
}

func (e *Engine) requireNotPaused() error {
	if e.paused {
		return domain.ErrEnforcedPause
	}
	return nil
}

func (e *Engine) requireInitialized() error {
	if !e.initialized {
		return ErrIdentitiesNotInitialized
	}
	return nil
}

func (e *Engine) isDeprecated(chainID *big.Int) bool {
	if chainID == nil {
		return false
	}
	return e.deprecated[chainID.String()]
}

func (e *Engine) isHubChain(chainID *big.Int) bool {
	return chainID != nil && chainID.Cmp(e.config.HubChainID) == 0
}

// rateFor returns the raw to USDT conversion rate of a source token in ppm.
// Tron USDT converts 1:1 unless configured otherwise.
func (e *Engine) rateFor(token common.Address) (*big.Int, error) {
	if rate, ok := e.swapRates[token]; ok && rate.Sign() > 0 {
		return rate, nil
	}
	if e.initialized && token == e.identities.TronUSDT {
		return domain.PPM(), nil
	}
	return nil, domain.ErrRateNotSet
}

// fee returns amount*fee_ppm/1e6 + flat_fee, capped at amount
func fee(amount *big.Int, l *domain.Lease) *big.Int {
	f := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(l.FeePPM)))
	f.Div(f, domain.PPM())
	f.Add(f, new(big.Int).SetUint64(l.FlatFee))
	if f.Cmp(amount) > 0 {
		f.Set(amount)
	}
	return f
}

func u256(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// receiverInitCodeHash falls back to the hash of an empty init code when none is configured
func (e *Engine) receiverInitCodeHash() common.Hash {
	if e.config.ReceiverInitCodeHash == (common.Hash{}) {
		return crypto.Keccak256Hash(nil)
	}
	return e.config.ReceiverInitCodeHash
}
