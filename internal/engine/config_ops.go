package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/untron/untron-v3-engine/internal/codec"
	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/journal"
	"github.com/untron/untron-v3-engine/internal/predictor"
	"github.com/untron/untron-v3-engine/internal/ratelimit"
)

// InitializeIdentities binds the token, reader and controller addresses. It succeeds once.
func (e *Engine) InitializeIdentities(ctx context.Context, caller common.Address, ids Identities) error {
	return e.execute(ctx, "initialize_identities", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if e.initialized {
			return domain.ErrAlreadyInitialized
		}
		if ids.USDT == (common.Address{}) {
			return domain.ErrInvalidTargetToken
		}

		journal.Set(e.journal, &e.identities, ids)
		journal.Set(e.journal, &e.initialized, true)
		journal.Set(e.journal, &e.predictor, predictor.New(ids.Controller, e.receiverInitCodeHash()))

		return e.emit(op, codec.EventIdentitiesInitialized, ids.USDT, ids.TronUSDT, ids.TronReader, ids.Controller)
	})
}

// SetProtocolFloors sets the global fee floors and the lease duration cap. A cap of 0
// leaves durations uncapped; nukeable_after is still bounded by the uint64 range.
func (e *Engine) SetProtocolFloors(ctx context.Context, caller common.Address, floorPPM uint32, floorFlatFee, maxLeaseDurationSeconds uint64) error {
	return e.execute(ctx, "set_protocol_floors", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		journal.Set(e.journal, &e.floorPPM, floorPPM)
		journal.Set(e.journal, &e.floorFlatFee, floorFlatFee)
		journal.Set(e.journal, &e.maxLeaseDuration, maxLeaseDurationSeconds)
		return e.emit(op, codec.EventProtocolFloorsSet, floorPPM, floorFlatFee, maxLeaseDurationSeconds)
	})
}

// SetRealtor allowlists or removes a realtor
func (e *Engine) SetRealtor(ctx context.Context, caller, realtor common.Address, allowed bool) error {
	return e.execute(ctx, "set_realtor", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		setFlag(e.journal, e.realtors, realtor, allowed)
		return e.emit(op, codec.EventRealtorSet, realtor, allowed)
	})
}

// SetRealtorMinFee raises the fee floors for one realtor's leases
func (e *Engine) SetRealtorMinFee(ctx context.Context, caller, realtor common.Address, minFeePPM uint32, minFlatFee uint64) error {
	return e.execute(ctx, "set_realtor_min_fee", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		journal.SetMap(e.journal, e.realtorMinFee, realtor, realtorFee{ppm: minFeePPM, flat: minFlatFee})
		return e.emit(op, codec.EventRealtorMinFeeSet, realtor, minFeePPM, minFlatFee)
	})
}

// SetRealtorMaxLeaseDuration caps lease duration for one realtor; 0 removes the cap
func (e *Engine) SetRealtorMaxLeaseDuration(ctx context.Context, caller, realtor common.Address, seconds uint64) error {
	return e.execute(ctx, "set_realtor_max_lease_duration", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		journal.SetMap(e.journal, e.realtorMaxDuration, realtor, seconds)
		return e.emit(op, codec.EventRealtorMaxLeaseDurationSet, realtor, seconds)
	})
}

// SetLeaseRateLimit limits lease creation of one realtor
func (e *Engine) SetLeaseRateLimit(ctx context.Context, caller, realtor common.Address, limit domain.RateLimit) error {
	return e.execute(ctx, "set_lease_rate_limit", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if !ratelimit.ValidConfig(limit.Max, limit.WindowSeconds) {
			return domain.ErrLeaseRateLimitConfigInvalid
		}
		journal.SetMap(e.journal, e.realtorLeaseLimit, realtor, limit)
		return e.emit(op, codec.EventLeaseRateLimitSet, realtor, u256(limit.Max), u256(limit.WindowSeconds))
	})
}

// SetPayoutConfigRateLimit limits payout updates per lessee
func (e *Engine) SetPayoutConfigRateLimit(ctx context.Context, caller common.Address, limit domain.RateLimit) error {
	return e.execute(ctx, "set_payout_config_rate_limit", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if !ratelimit.ValidConfig(limit.Max, limit.WindowSeconds) {
			return domain.ErrPayoutConfigRateLimitConfigInvalid
		}
		journal.Set(e.journal, &e.payoutRateLimit, limit)
		return e.emit(op, codec.EventPayoutConfigRateLimitSet, u256(limit.Max), u256(limit.WindowSeconds))
	})
}

// SetSwapRate sets the raw to USDT rate of a source token in ppm
func (e *Engine) SetSwapRate(ctx context.Context, caller, token common.Address, ratePPM *big.Int) error {
	return e.execute(ctx, "set_swap_rate", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		rate := new(big.Int).Set(bigOrZero(ratePPM))
		if rate.Sign() < 0 {
			return domain.ErrRateNotSet
		}
		journal.SetMap(e.journal, e.swapRates, token, rate)
		return e.emit(op, codec.EventSwapRateSet, token, rate)
	})
}

// SetBridger routes payouts of token on chainID through bridger; nil removes the route
func (e *Engine) SetBridger(ctx context.Context, caller, token common.Address, chainID *big.Int, bridger Bridger) error {
	return e.execute(ctx, "set_bridger", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		chain := new(big.Int).Set(bigOrZero(chainID))
		key := bridgerKey{token: token, chainID: chain.String()}

		var address common.Address
		if bridger == nil {
			journal.DeleteMap(e.journal, e.bridgers, key)
		} else {
			address = bridger.Address()
			journal.SetMap(e.journal, e.bridgers, key, bridger)
		}
		return e.emit(op, codec.EventBridgerSet, token, chain, address)
	})
}

// SetChainDeprecated marks a target chain as deprecated
func (e *Engine) SetChainDeprecated(ctx context.Context, caller common.Address, chainID *big.Int, deprecated bool) error {
	return e.execute(ctx, "set_chain_deprecated", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		chain := new(big.Int).Set(bigOrZero(chainID))
		setFlag(e.journal, e.deprecated, chain.String(), deprecated)
		return e.emit(op, codec.EventChainDeprecatedSet, chain, deprecated)
	})
}

// SetLpAllowed allows or disallows an LP to deposit principal
func (e *Engine) SetLpAllowed(ctx context.Context, caller, lp common.Address, allowed bool) error {
	return e.execute(ctx, "set_lp_allowed", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		setFlag(e.journal, e.lpAllowed, lp, allowed)
		return e.emit(op, codec.EventLpAllowedSet, lp, allowed)
	})
}

// SetSubjectiveSponsor allows or disallows a sponsor to pre-entitle deposits
func (e *Engine) SetSubjectiveSponsor(ctx context.Context, caller, sponsor common.Address, allowed bool) error {
	return e.execute(ctx, "set_subjective_sponsor", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		setFlag(e.journal, e.sponsors, sponsor, allowed)
		return e.emit(op, codec.EventSubjectiveSponsorSet, sponsor, allowed)
	})
}

// Pause stops user operations
func (e *Engine) Pause(ctx context.Context, caller common.Address) error {
	return e.execute(ctx, "pause", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if e.paused {
			return domain.ErrEnforcedPause
		}
		journal.Set(e.journal, &e.paused, true)
		return e.emit(op, codec.EventPaused, caller)
	})
}

// Unpause resumes user operations
func (e *Engine) Unpause(ctx context.Context, caller common.Address) error {
	return e.execute(ctx, "unpause", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if !e.paused {
			return domain.ErrExpectedPause
		}
		journal.Set(e.journal, &e.paused, false)
		return e.emit(op, codec.EventUnpaused, caller)
	})
}

// TransferOwnership hands the owner role to newOwner
func (e *Engine) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	return e.execute(ctx, "transfer_ownership", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if newOwner == (common.Address{}) {
			return domain.ErrNewOwnerIsZeroAddress
		}
		previous := e.owner
		journal.Set(e.journal, &e.owner, newOwner)
		return e.emit(op, codec.EventOwnershipTransferred, previous, newOwner)
	})
}

// setFlag stores true flags and deletes false ones so maps only hold members
func setFlag[K comparable](j *journal.Journal, m map[K]bool, k K, v bool) {
	if v {
		journal.SetMap(j, m, k, true)
		return
	}
	journal.DeleteMap(j, m, k)
}
