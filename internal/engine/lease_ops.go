package engine

import (
	"context"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/untron/untron-v3-engine/internal/codec"
	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/logger"
	"github.com/untron/untron-v3-engine/internal/metrics"
)

// LeaseRequest are the parameters of a new lease
type LeaseRequest struct {
	ReceiverSalt    common.Hash         `json:"receiver_salt"`
	Lessee          common.Address      `json:"lessee"`
	DurationSeconds uint64              `json:"duration_seconds"`
	FeePPM          uint32              `json:"lease_fee_ppm"`
	FlatFee         uint64              `json:"flat_fee"`
	Payout          domain.PayoutConfig `json:"payout"`
}

// PayoutUpdate changes the payout config of a lease. Without a signature the caller must
// be the lessee; with one, the lessee must have signed it over the current nonce.
type PayoutUpdate struct {
	LeaseID   uint64              `json:"lease_id"`
	Payout    domain.PayoutConfig `json:"payout"`
	Deadline  uint64              `json:"deadline"`
	Signature []byte              `json:"signature,omitempty"`
}

// CreateLease opens a lease on a receiver salt for the calling realtor
func (e *Engine) CreateLease(ctx context.Context, realtor common.Address, req LeaseRequest) (uint64, error) {
	var id uint64
	err := e.execute(ctx, "create_lease", func(op *operation) error {
		if err := e.requireNotPaused(); err != nil {
			return err
		}
		if !e.realtors[realtor] {
			return domain.ErrNotRealtor
		}
		if req.DurationSeconds == 0 {
			return domain.ErrInvalidLeaseTimeframe
		}
		if limit := e.maxDurationFor(realtor); limit > 0 && req.DurationSeconds > limit {
			return domain.ErrLeaseDurationTooLong
		}
		// nukeable_after must not wrap, which an uncapped duration could otherwise do
		if req.DurationSeconds > math.MaxUint64-op.now {
			return domain.ErrLeaseDurationTooLong
		}
		minPPM, minFlat := e.feeFloorsFor(realtor)
		if req.FeePPM < minPPM {
			return domain.ErrLeaseFeeTooLow
		}
		if req.FlatFee < minFlat {
			return domain.ErrLeaseFlatFeeTooLow
		}
		if err := e.validatePayout(req.Payout); err != nil {
			return err
		}

		if current, ok := e.leases.Active(req.ReceiverSalt); ok {
			if op.now < current.NukeableAfter {
				return domain.ErrLeaseNotNukeableYet
			}
			e.leases.SetStatus(current, domain.LeaseStatusClosed)
			if err := e.emit(op, codec.EventLeaseClosed, u256(current.ID), realtor); err != nil {
				return err
			}
		}

		limit := e.realtorLeaseLimit[realtor]
		if !e.leaseLimiter.Allow(realtor, op.now, limit.Max, limit.WindowSeconds) {
			return domain.ErrLeaseRateLimitExceeded
		}

		l := e.leases.Create(&domain.Lease{
			ReceiverSalt:  req.ReceiverSalt,
			Realtor:       realtor,
			Lessee:        req.Lessee,
			StartTime:     op.now,
			NukeableAfter: op.now + req.DurationSeconds,
			FeePPM:        req.FeePPM,
			FlatFee:       req.FlatFee,
			Payout:        req.Payout.Clone(),
		})
		id = l.ID

		return e.emit(op, codec.EventLeaseCreated,
			u256(l.ID), l.ReceiverSalt, l.Realtor,
			u256(l.LeaseNumber), l.Lessee, l.StartTime, l.NukeableAfter,
			l.FeePPM, l.FlatFee, bigOrZero(l.Payout.TargetChainID), l.Payout.TargetToken, l.Payout.Beneficiary,
		)
	})
	return id, err
}

// UpdatePayout overwrites the payout config of an open lease and consumes its nonce
func (e *Engine) UpdatePayout(ctx context.Context, caller common.Address, upd PayoutUpdate) error {
	return e.execute(ctx, "update_payout", func(op *operation) error {
		if err := e.requireNotPaused(); err != nil {
			return err
		}
		l, ok := e.leases.Get(upd.LeaseID)
		if !ok {
			return domain.ErrInvalidLeaseID
		}
		if !l.IsOpen() {
			return domain.ErrNoActiveLease
		}

		if len(upd.Signature) == 0 {
			if caller != l.Lessee {
				return domain.ErrNotLessee
			}
		} else if err := e.verifyPayoutSignature(op, l, upd); err != nil {
			return err
		}

		if err := e.validatePayout(upd.Payout); err != nil {
			return err
		}
		if !e.payoutLimiter.Allow(l.Lessee, op.now, e.payoutRateLimit.Max, e.payoutRateLimit.WindowSeconds) {
			return domain.ErrPayoutConfigRateLimitExceeded
		}

		nonce := e.leases.ConsumeNonce(l)
		e.leases.SetPayout(l, upd.Payout)

		if err := e.emit(op, codec.EventPayoutConfigUpdated,
			u256(l.ID), bigOrZero(l.Payout.TargetChainID), l.Payout.TargetToken, l.Payout.Beneficiary,
		); err != nil {
			return err
		}
		return e.emit(op, codec.EventLeaseNonceUpdated, u256(l.ID), u256(nonce))
	})
}

func (e *Engine) verifyPayoutSignature(op *operation, l *domain.Lease, upd PayoutUpdate) error {
	if op.now > upd.Deadline {
		return domain.ErrSignatureExpired
	}
	separator, err := codec.DomainSeparator(e.config.HubChainID, e.config.HubAddress)
	if err != nil {
		return err
	}
	digest, err := codec.PayoutUpdateDigest(separator, l.ID, l.Nonce, upd.Payout, upd.Deadline)
	if err != nil {
		return err
	}
	signer, err := codec.RecoverSigner(digest, upd.Signature)
	if err != nil {
		logger.DebugCtx(op.ctx, "Payout signature recovery failed", zap.Uint64("lease_id", l.ID), zap.Error(err))
		return domain.ErrInvalidSignature
	}
	if signer != l.Lessee {
		return domain.ErrInvalidSignature
	}
	return nil
}

// CloseLease closes an open lease. Queued claims stay and are filled normally.
func (e *Engine) CloseLease(ctx context.Context, caller common.Address, leaseID uint64) error {
	return e.execute(ctx, "close_lease", func(op *operation) error {
		l, ok := e.leases.Get(leaseID)
		if !ok {
			return domain.ErrInvalidLeaseID
		}
		if caller != l.Lessee {
			return domain.ErrNotLessee
		}
		if !l.IsOpen() {
			return domain.ErrNoActiveLease
		}
		e.leases.SetStatus(l, domain.LeaseStatusClosed)
		return e.emit(op, codec.EventLeaseClosed, u256(l.ID), caller)
	})
}

// NukeResult summarizes the claims dropped by a nuke
type NukeResult struct {
	DroppedClaims uint64   `json:"dropped_claims"`
	DroppedUSDT   *big.Int `json:"dropped_usdt"`
}

// NukeLease terminates an open lease past nukeable_after. Its queued claims are
// tombstoned and their USDT amount is debited from PnL.
func (e *Engine) NukeLease(ctx context.Context, leaseID uint64) (NukeResult, error) {
	var result NukeResult
	err := e.execute(ctx, "nuke_lease", func(op *operation) error {
		l, ok := e.leases.Get(leaseID)
		if !ok {
			return domain.ErrInvalidLeaseID
		}
		if !l.IsOpen() {
			return domain.ErrNoActiveLease
		}
		if op.now < l.NukeableAfter {
			return domain.ErrLeaseNotNukeableYet
		}

		dropped := uint64(0)
		total := new(big.Int)
		for seq := uint64(0); seq < l.ClaimCount; seq++ {
			loc, ok := e.queue.LocatorOf(domain.ClaimKey{LeaseID: l.ID, SeqInLease: seq})
			if !ok {
				continue
			}
			claim, ok := e.queue.Drop(loc)
			if !ok {
				continue
			}
			e.leases.Settle(l, bigOrZero(claim.Origin.RawAmount))
			dropped++
			total.Add(total, claim.AmountUSDT)

			if err := e.emit(op, codec.EventClaimDropped,
				u256(claim.ID), u256(l.ID), claim.TargetToken, u256(loc.QueueIndex), claim.AmountUSDT,
			); err != nil {
				return err
			}
		}

		if err := e.applyPnl(op, new(big.Int).Neg(total), domain.PnlReasonNuke); err != nil {
			return err
		}
		e.leases.SetStatus(l, domain.LeaseStatusNuked)
		result = NukeResult{DroppedClaims: dropped, DroppedUSDT: total}

		op.onCommit(func() {
			metrics.ClaimsDropped.Add(float64(dropped))
			e.observeQueues()
		})
		return e.emit(op, codec.EventLeaseNuked, u256(l.ID), u256(dropped), total)
	})
	return result, err
}

// maxDurationFor returns the smaller of the protocol and realtor duration caps; 0 means uncapped
func (e *Engine) maxDurationFor(realtor common.Address) uint64 {
	limit := e.maxLeaseDuration
	if r := e.realtorMaxDuration[realtor]; r > 0 && (limit == 0 || r < limit) {
		limit = r
	}
	return limit
}

// feeFloorsFor returns the fee floors a realtor's leases must meet. Realtor floors only raise the protocol floors.
func (e *Engine) feeFloorsFor(realtor common.Address) (uint32, uint64) {
	ppm, flat := e.floorPPM, e.floorFlatFee
	if r, ok := e.realtorMinFee[realtor]; ok {
		ppm = max(ppm, r.ppm)
		flat = max(flat, r.flat)
	}
	return ppm, flat
}

func (e *Engine) validatePayout(p domain.PayoutConfig) error {
	if p.TargetToken == (common.Address{}) || p.TargetChainID == nil || p.TargetChainID.Sign() < 0 {
		return domain.ErrInvalidTargetToken
	}
	if e.isDeprecated(p.TargetChainID) {
		return domain.ErrChainDeprecated
	}
	return nil
}

// observeQueues refreshes the pending claims gauge of every token queue
func (e *Engine) observeQueues() {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, token := range e.queue.Tokens() {
		metrics.PendingClaims.WithLabelValues(token.Hex()).Set(float64(e.queue.Pending(token)))
	}
}
