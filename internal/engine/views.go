package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/untron/untron-v3-engine/internal/domain"
)

// Settings is a snapshot of the owner-managed configuration
type Settings struct {
	Owner                   common.Address              `json:"owner"`
	Paused                  bool                        `json:"paused"`
	Initialized             bool                        `json:"initialized"`
	Identities              Identities                  `json:"identities"`
	HubChainID              *big.Int                    `json:"hub_chain_id"`
	HubAddress              common.Address              `json:"hub_address"`
	FloorPPM                uint32                      `json:"floor_ppm"`
	FloorFlatFee            uint64                      `json:"floor_flat_fee"`
	MaxLeaseDurationSeconds uint64                      `json:"max_lease_duration_seconds"`
	PayoutRateLimit         domain.RateLimit            `json:"payout_rate_limit"`
	SwapRates               map[string]string           `json:"swap_rates"`
	DeprecatedChains        []string                    `json:"deprecated_chains"`
	Realtors                []common.Address            `json:"realtors"`
	LeaseRateLimits         map[string]domain.RateLimit `json:"lease_rate_limits"`
}

// QueueInfo describes one target token queue
type QueueInfo struct {
	TargetToken common.Address `json:"target_token"`
	HeadIndex   uint64         `json:"head_index"`
	NextIndex   uint64         `json:"next_index"`
	Pending     int            `json:"pending"`
}

// Lease returns a copy of the lease with the given id
func (e *Engine) Lease(id uint64) (*domain.Lease, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	l, ok := e.leases.Get(id)
	if !ok {
		return nil, domain.ErrLeaseNotFound
	}
	return l.Clone(), nil
}

// LeasesBySalt returns every lease of a receiver salt, oldest first
func (e *Engine) LeasesBySalt(salt common.Hash) []*domain.Lease {
	e.mu.RLock()
	defer e.mu.RUnlock()
	leases := e.leases.BySalt(salt)
	out := make([]*domain.Lease, len(leases))
	for i, l := range leases {
		out[i] = l.Clone()
	}
	return out
}

// ActiveLease returns the open lease of a receiver salt
func (e *Engine) ActiveLease(salt common.Hash) (*domain.Lease, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	l, ok := e.leases.Active(salt)
	if !ok {
		return nil, false
	}
	return l.Clone(), true
}

// LeaseCount returns the number of leases ever created
func (e *Engine) LeaseCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.leases.Count()
}

// Claim returns a copy of a queued claim. Filled and dropped claims are not found.
func (e *Engine) Claim(id uint64) (*domain.Claim, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	key, ok := e.claimKeys[id]
	if !ok {
		return nil, domain.ErrClaimNotFound
	}
	loc, ok := e.queue.LocatorOf(key)
	if !ok {
		return nil, domain.ErrClaimNotFound
	}
	c, ok := e.queue.ClaimAt(loc)
	if !ok {
		return nil, domain.ErrClaimNotFound
	}
	return c.Clone(), nil
}

// ClaimLocator maps (lease id, seq in lease) to the claim's queue slot
func (e *Engine) ClaimLocator(leaseID, seqInLease uint64) (domain.Locator, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.queue.LocatorOf(domain.ClaimKey{LeaseID: leaseID, SeqInLease: seqInLease})
}

// Queue returns the indices of a target token queue
func (e *Engine) Queue(token common.Address) QueueInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return QueueInfo{
		TargetToken: token,
		HeadIndex:   e.queue.HeadIndex(token),
		NextIndex:   e.queue.NextIndex(token),
		Pending:     e.queue.Pending(token),
	}
}

// Queues returns every target token queue
func (e *Engine) Queues() []QueueInfo {
	e.mu.RLock()
	tokens := e.queue.Tokens()
	e.mu.RUnlock()

	out := make([]QueueInfo, 0, len(tokens))
	for _, token := range tokens {
		out = append(out, e.Queue(token))
	}
	return out
}

// PendingClaims returns up to limit claims from the head of a queue
func (e *Engine) PendingClaims(token common.Address, limit uint64) []*domain.Claim {
	e.mu.RLock()
	defer e.mu.RUnlock()
	claims := e.queue.PeekHeadBatch(token, limit)
	out := make([]*domain.Claim, len(claims))
	for i, c := range claims {
		out[i] = c.Clone()
	}
	return out
}

// EventChainHead returns the hub event chain's seq and tip
func (e *Engine) EventChainHead() (uint64, common.Hash) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.chain.Head()
}

// EventChainRange returns hub event chain entries with from <= seq <= to
func (e *Engine) EventChainRange(from, to uint64) ([]domain.EventChainEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.chain.Range(from, to)
}

// PnL returns the protocol PnL
func (e *Engine) PnL() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pnl.PnL()
}

// LpPrincipal returns an LP's principal
func (e *Engine) LpPrincipal(lp common.Address) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pnl.Principal(lp)
}

// TotalLpPrincipal returns the sum of LP principal
func (e *Engine) TotalLpPrincipal() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pnl.TotalPrincipal()
}

// FrontedLiquidity returns the liquidity paid out ahead of controller rebalances
func (e *Engine) FrontedLiquidity() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pnl.Fronted()
}

// DepositProcessed reports whether a Tron tx id was recognized
func (e *Engine) DepositProcessed(txID common.Hash) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.processed[txID]
}

// LastReceiverPull returns the last pull timestamp of a (receiver salt, token) pair
func (e *Engine) LastReceiverPull(salt common.Hash, token common.Address) uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastPull[pullKey{salt: salt, token: token}]
}

// PreEntitlement returns the outstanding sponsor reservation of a tx id
func (e *Engine) PreEntitlement(txID common.Hash) (*domain.SubjectivePreEntitlement, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pe, ok := e.preEntitlements[txID]
	if !ok {
		return nil, false
	}
	cp := *pe
	return &cp, true
}

// PredictReceiver returns the receiver address of a salt under the bound controller
func (e *Engine) PredictReceiver(salt common.Hash) (common.Address, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.predictor == nil {
		return common.Address{}, ErrIdentitiesNotInitialized
	}
	return e.predictor.PredictDefault(salt), nil
}

// Paused reports whether user operations are stopped
func (e *Engine) Paused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paused
}

// Owner returns the current owner
func (e *Engine) Owner() common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.owner
}

// Settings returns a snapshot of the configuration
func (e *Engine) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Settings{
		Owner:                   e.owner,
		Paused:                  e.paused,
		Initialized:             e.initialized,
		Identities:              e.identities,
		HubChainID:              new(big.Int).Set(e.config.HubChainID),
		HubAddress:              e.config.HubAddress,
		FloorPPM:                e.floorPPM,
		FloorFlatFee:            e.floorFlatFee,
		MaxLeaseDurationSeconds: e.maxLeaseDuration,
		PayoutRateLimit:         e.payoutRateLimit,
		SwapRates:               make(map[string]string, len(e.swapRates)),
		DeprecatedChains:        make([]string, 0, len(e.deprecated)),
		Realtors:                make([]common.Address, 0, len(e.realtors)),
		LeaseRateLimits:         make(map[string]domain.RateLimit, len(e.realtorLeaseLimit)),
	}
	for token, rate := range e.swapRates {
		s.SwapRates[token.Hex()] = rate.String()
	}
	for chain := range e.deprecated {
		s.DeprecatedChains = append(s.DeprecatedChains, chain)
	}
	for realtor := range e.realtors {
		s.Realtors = append(s.Realtors, realtor)
	}
	for realtor, limit := range e.realtorLeaseLimit {
		s.LeaseRateLimits[realtor.Hex()] = limit
	}
	return s
}
