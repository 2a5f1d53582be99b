package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/lease"
	"github.com/untron/untron-v3-engine/internal/pnl"
	"github.com/untron/untron-v3-engine/internal/predictor"
	"github.com/untron/untron-v3-engine/internal/queue"
	"github.com/untron/untron-v3-engine/internal/ratelimit"
)

// delivery is the payment progress of one claim across fill attempts. It is not
// journaled: a reverted fill keeps the record of what already left the hub.
type delivery struct {
	// Amount is the target token share owed to the claim
	Amount *big.Int `json:"amount"`
	// Funded is set once the share left the hub, to the beneficiary or to Bridger
	Funded  bool           `json:"funded"`
	Bridger common.Address `json:"bridger,omitempty"`
	// Sent is set once the share reached the beneficiary or the bridger accepted it
	Sent bool `json:"sent"`
}

type feeFloorState struct {
	PPM  uint32 `json:"ppm"`
	Flat uint64 `json:"flat"`
}

type pullState struct {
	Salt      common.Hash    `json:"salt"`
	Token     common.Address `json:"token"`
	Timestamp uint64         `json:"timestamp"`
}

type unpulledState struct {
	Salt     common.Hash      `json:"salt"`
	Token    common.Address   `json:"token"`
	Deposits []depositedState `json:"deposits"`
}

type depositedState struct {
	Timestamp uint64   `json:"timestamp"`
	Raw       *big.Int `json:"raw"`
}

// engineState is everything the engine needs to resume after a restart. Bridgers are
// live collaborators and are registered again by the daemon.
type engineState struct {
	Seq    uint64                  `json:"seq"`
	Tip    common.Hash             `json:"tip"`
	Cursor domain.ControllerCursor `json:"controller_cursor"`

	Owner            common.Address   `json:"owner"`
	Paused           bool             `json:"paused"`
	Identities       Identities       `json:"identities"`
	Initialized      bool             `json:"initialized"`
	FloorPPM         uint32           `json:"floor_ppm"`
	FloorFlatFee     uint64           `json:"floor_flat_fee"`
	MaxLeaseDuration uint64           `json:"max_lease_duration"`
	PayoutRateLimit  domain.RateLimit `json:"payout_rate_limit"`

	Realtors           []common.Address                    `json:"realtors"`
	RealtorMinFee      map[common.Address]feeFloorState    `json:"realtor_min_fee"`
	RealtorMaxDuration map[common.Address]uint64           `json:"realtor_max_duration"`
	RealtorLeaseLimit  map[common.Address]domain.RateLimit `json:"realtor_lease_limit"`
	SwapRates          map[common.Address]*big.Int         `json:"swap_rates"`
	Deprecated         []string                            `json:"deprecated_chains"`
	LpAllowed          []common.Address                    `json:"lp_allowed"`
	Sponsors           []common.Address                    `json:"sponsors"`

	Processed       []common.Hash                      `json:"processed"`
	LastPulls       []pullState                        `json:"last_pulls"`
	Unpulled        []unpulledState                    `json:"unpulled"`
	PreEntitlements []*domain.SubjectivePreEntitlement `json:"pre_entitlements"`
	ClaimKeys       map[uint64]domain.ClaimKey         `json:"claim_keys"`
	NextClaimID     uint64                             `json:"next_claim_id"`

	Leases        lease.State                         `json:"leases"`
	Queue         queue.State                         `json:"queue"`
	Pnl           pnl.State                           `json:"pnl"`
	LeaseLimiter  map[common.Address]ratelimit.Bucket `json:"lease_limiter"`
	PayoutLimiter map[common.Address]ratelimit.Bucket `json:"payout_limiter"`
	Deliveries    map[uint64]*delivery                `json:"deliveries"`
}

// marshalState serializes the engine state; the caller holds mu
func (e *Engine) marshalState() ([]byte, error) {
	seq, tip := e.chain.Head()
	s := engineState{
		Seq:                seq,
		Tip:                tip,
		Cursor:             e.mirror.Cursor(),
		Owner:              e.owner,
		Paused:             e.paused,
		Identities:         e.identities,
		Initialized:        e.initialized,
		FloorPPM:           e.floorPPM,
		FloorFlatFee:       e.floorFlatFee,
		MaxLeaseDuration:   e.maxLeaseDuration,
		PayoutRateLimit:    e.payoutRateLimit,
		Realtors:           allowed(e.realtors),
		RealtorMinFee:      make(map[common.Address]feeFloorState, len(e.realtorMinFee)),
		RealtorMaxDuration: e.realtorMaxDuration,
		RealtorLeaseLimit:  e.realtorLeaseLimit,
		SwapRates:          e.swapRates,
		LpAllowed:          allowed(e.lpAllowed),
		Sponsors:           allowed(e.sponsors),
		ClaimKeys:          e.claimKeys,
		NextClaimID:        e.nextClaimID,
		Leases:             e.leases.Export(),
		Queue:              e.queue.Export(),
		Pnl:                e.pnl.Export(),
		LeaseLimiter:       e.leaseLimiter.Export(),
		PayoutLimiter:      e.payoutLimiter.Export(),
		Deliveries:         e.deliveries,
	}
	for realtor, f := range e.realtorMinFee {
		s.RealtorMinFee[realtor] = feeFloorState{PPM: f.ppm, Flat: f.flat}
	}
	for chainID, deprecated := range e.deprecated {
		if deprecated {
			s.Deprecated = append(s.Deprecated, chainID)
		}
	}
	slices.Sort(s.Deprecated)
	for txID, done := range e.processed {
		if done {
			s.Processed = append(s.Processed, txID)
		}
	}
	slices.SortFunc(s.Processed, func(a, b common.Hash) int { return bytes.Compare(a[:], b[:]) })
	for k, ts := range e.lastPull {
		s.LastPulls = append(s.LastPulls, pullState{Salt: k.salt, Token: k.token, Timestamp: ts})
	}
	slices.SortFunc(s.LastPulls, func(a, b pullState) int { return comparePull(a.Salt, a.Token, b.Salt, b.Token) })
	for k, deps := range e.unpulled {
		u := unpulledState{Salt: k.salt, Token: k.token, Deposits: make([]depositedState, 0, len(deps))}
		for _, d := range deps {
			u.Deposits = append(u.Deposits, depositedState{Timestamp: d.timestamp, Raw: d.raw})
		}
		s.Unpulled = append(s.Unpulled, u)
	}
	slices.SortFunc(s.Unpulled, func(a, b unpulledState) int { return comparePull(a.Salt, a.Token, b.Salt, b.Token) })
	for _, pe := range e.preEntitlements {
		s.PreEntitlements = append(s.PreEntitlements, pe)
	}
	slices.SortFunc(s.PreEntitlements, func(a, b *domain.SubjectivePreEntitlement) int {
		return bytes.Compare(a.TxID[:], b.TxID[:])
	})

	return json.Marshal(s)
}

// loadState replaces the engine state with a serialized one; the caller holds mu
func (e *Engine) loadState(data []byte) error {
	var s engineState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to parse engine state: %w", err)
	}

	seq, tip := e.chain.Head()
	if s.Seq != seq || s.Tip != tip {
		return fmt.Errorf("engine state at seq %d does not match the hub event chain head %d", s.Seq, seq)
	}

	if err := e.leases.Import(s.Leases); err != nil {
		return fmt.Errorf("failed to restore leases: %w", err)
	}
	if err := e.queue.Import(s.Queue); err != nil {
		return fmt.Errorf("failed to restore claim queues: %w", err)
	}
	if err := e.pnl.Import(s.Pnl); err != nil {
		return fmt.Errorf("failed to restore pnl ledger: %w", err)
	}
	e.leaseLimiter.Import(s.LeaseLimiter)
	e.payoutLimiter.Import(s.PayoutLimiter)
	e.mirror.Restore(s.Cursor)

	e.owner = s.Owner
	e.paused = s.Paused
	e.identities = s.Identities
	e.initialized = s.Initialized
	e.floorPPM = s.FloorPPM
	e.floorFlatFee = s.FloorFlatFee
	e.maxLeaseDuration = s.MaxLeaseDuration
	e.payoutRateLimit = s.PayoutRateLimit
	if e.initialized {
		e.predictor = predictor.New(e.identities.Controller, e.receiverInitCodeHash())
	}

	e.realtors = toSet(s.Realtors)
	e.lpAllowed = toSet(s.LpAllowed)
	e.sponsors = toSet(s.Sponsors)
	e.realtorMinFee = make(map[common.Address]realtorFee, len(s.RealtorMinFee))
	for realtor, f := range s.RealtorMinFee {
		e.realtorMinFee[realtor] = realtorFee{ppm: f.PPM, flat: f.Flat}
	}
	e.realtorMaxDuration = orEmpty(s.RealtorMaxDuration)
	e.realtorLeaseLimit = orEmpty(s.RealtorLeaseLimit)
	e.swapRates = orEmpty(s.SwapRates)
	e.deprecated = make(map[string]bool, len(s.Deprecated))
	for _, chainID := range s.Deprecated {
		e.deprecated[chainID] = true
	}

	e.processed = make(map[common.Hash]bool, len(s.Processed))
	for _, txID := range s.Processed {
		e.processed[txID] = true
	}
	e.lastPull = make(map[pullKey]uint64, len(s.LastPulls))
	for _, p := range s.LastPulls {
		e.lastPull[pullKey{salt: p.Salt, token: p.Token}] = p.Timestamp
	}
	e.unpulled = make(map[pullKey][]recognizedDeposit, len(s.Unpulled))
	for _, u := range s.Unpulled {
		deps := make([]recognizedDeposit, 0, len(u.Deposits))
		for _, d := range u.Deposits {
			deps = append(deps, recognizedDeposit{timestamp: d.Timestamp, raw: bigOrZero(d.Raw)})
		}
		e.unpulled[pullKey{salt: u.Salt, token: u.Token}] = deps
	}
	e.preEntitlements = make(map[common.Hash]*domain.SubjectivePreEntitlement, len(s.PreEntitlements))
	for _, pe := range s.PreEntitlements {
		if pe != nil {
			e.preEntitlements[pe.TxID] = pe
		}
	}
	e.claimKeys = orEmpty(s.ClaimKeys)
	e.nextClaimID = max(s.NextClaimID, 1)
	e.deliveries = orEmpty(s.Deliveries)
	return nil
}

func allowed(set map[common.Address]bool) []common.Address {
	out := make([]common.Address, 0, len(set))
	for addr, ok := range set {
		if ok {
			out = append(out, addr)
		}
	}
	slices.SortFunc(out, func(a, b common.Address) int { return bytes.Compare(a[:], b[:]) })
	return out
}

func toSet(addrs []common.Address) map[common.Address]bool {
	set := make(map[common.Address]bool, len(addrs))
	for _, addr := range addrs {
		set[addr] = true
	}
	return set
}

func orEmpty[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return make(map[K]V)
	}
	return m
}

func comparePull(saltA common.Hash, tokenA common.Address, saltB common.Hash, tokenB common.Address) int {
	if c := bytes.Compare(saltA[:], saltB[:]); c != 0 {
		return c
	}
	return bytes.Compare(tokenA[:], tokenB[:])
}
