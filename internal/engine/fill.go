package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/untron/untron-v3-engine/internal/codec"
	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/logger"
	"github.com/untron/untron-v3-engine/internal/metrics"
)

// ErrSwapNoOutput is returned when the swap executor produced none of the target token
var ErrSwapNoOutput = errors.New("swap produced no output")

// FilledClaim is one claim paid by a fill
type FilledClaim struct {
	Claim *domain.Claim `json:"claim"`
	Fee   *big.Int      `json:"fee"`
	// Payout is the USDT value paid out: amount minus fee
	Payout *big.Int `json:"payout"`
	// Delivered is the amount of target token sent to the beneficiary or its bridger
	Delivered *big.Int       `json:"delivered"`
	Bridger   common.Address `json:"bridger,omitempty"`

	bridger Bridger
}

// FillResult summarizes a fill
type FillResult struct {
	TargetToken common.Address `json:"target_token"`
	Filled      []FilledClaim  `json:"filled"`
	Rerouted    int            `json:"rerouted"`
	TotalAmount *big.Int       `json:"total_amount_usdt"`
	TotalFees   *big.Int       `json:"total_fees"`
	TotalPayout *big.Int       `json:"total_payout"`
}

// Fill drains up to maxClaims claims from the head of the target token's queue and pays
// them out. USDT claims are paid directly or through the bridger of their chain; other
// tokens are bought with USDT by the swap executor running calls, and the output is
// split across the claims pro rata. The hub's USDT balance must drop by exactly what
// this attempt paid, otherwise the whole fill reverts.
//
// A fill that fails after some transfers went out is retried safely: per claim the
// engine remembers what already left the hub and does not pay it again.
func (e *Engine) Fill(ctx context.Context, targetToken common.Address, maxClaims uint64, calls []domain.Call) (FillResult, error) {
	result := FillResult{
		TargetToken: targetToken,
		TotalAmount: new(big.Int),
		TotalFees:   new(big.Int),
		TotalPayout: new(big.Int),
	}

	err := e.execute(ctx, "fill", func(op *operation) error {
		if err := e.requireNotPaused(); err != nil {
			return err
		}
		if targetToken == (common.Address{}) || !e.initialized {
			return domain.ErrInvalidTargetToken
		}
		if e.queue.Pending(targetToken) == 0 || maxClaims == 0 {
			return nil
		}

		usdt := e.identities.USDT
		if targetToken != usdt && e.executor == nil {
			return ErrNoSwapExecutor
		}

		var before *big.Int
		if err := op.external(func(ctx context.Context) error {
			var err error
			before, err = e.ledger.BalanceOf(ctx, usdt, e.config.HubAddress)
			return err
		}); err != nil {
			return fmt.Errorf("failed to read USDT balance: %w", err)
		}

		for n := uint64(0); n < maxClaims; n++ {
			head := e.queue.PeekHeadBatch(targetToken, 1)
			if len(head) == 0 {
				break
			}
			claim := head[0]
			deprecated := e.isDeprecated(claim.TargetChainID)

			if deprecated && targetToken != usdt && e.deliveries[claim.ID] == nil {
				if err := e.rerouteToUSDT(op, claim); err != nil {
					return err
				}
				result.Rerouted++
				continue
			}

			filled, err := e.settleClaim(op, claim, deprecated)
			if err != nil {
				return err
			}
			result.Filled = append(result.Filled, filled)
			result.TotalAmount.Add(result.TotalAmount, claim.AmountUSDT)
			result.TotalFees.Add(result.TotalFees, filled.Fee)
			result.TotalPayout.Add(result.TotalPayout, filled.Payout)
		}

		if len(result.Filled) == 0 {
			return nil
		}

		expected, err := e.deliver(op, targetToken, result.Filled, calls)
		if err != nil {
			logger.WarnCtx(op.ctx, "Fill delivery failed, reverting engine state; shares already sent are kept for the retry",
				logger.Address("target_token", targetToken),
				zap.Int("claims", len(result.Filled)),
				zap.Error(err),
			)
			return err
		}

		var after *big.Int
		if err := op.external(func(ctx context.Context) error {
			var err error
			after, err = e.ledger.BalanceOf(ctx, usdt, e.config.HubAddress)
			return err
		}); err != nil {
			return fmt.Errorf("failed to read USDT balance: %w", err)
		}

		spent := new(big.Int).Sub(before, after)
		if spent.Cmp(expected) != 0 {
			logger.WarnCtx(op.ctx, "USDT balance does not reconcile with fill payouts",
				logger.BigInt("spent", spent),
				logger.BigInt("expected", expected),
				logger.BigInt("payout", result.TotalPayout),
			)
			return domain.ErrInsufficientUsdtBalance
		}

		// the claims leave the queue with this commit, so their delivery records go too
		for _, f := range result.Filled {
			delete(e.deliveries, f.Claim.ID)
		}

		filledCount := len(result.Filled)
		op.onCommit(func() {
			metrics.ClaimsFilled.WithLabelValues(targetToken.Hex()).Add(float64(filledCount))
			e.observeQueues()
		})
		return nil
	})
	if err != nil {
		return FillResult{}, err
	}
	return result, nil
}

// rerouteToUSDT moves the head claim of a non-USDT queue to the USDT queue on the hub chain
func (e *Engine) rerouteToUSDT(op *operation, claim *domain.Claim) error {
	from := claim.TargetToken
	fromIndex := claim.QueueIndex
	if _, ok := e.queue.PopHead(from); !ok {
		return fmt.Errorf("claim %d vanished from the head of its queue", claim.ID)
	}

	moved := claim.Clone()
	moved.TargetToken = e.identities.USDT
	moved.TargetChainID = new(big.Int).Set(e.config.HubChainID)
	toIndex := e.queue.Enqueue(moved)

	logger.InfoCtx(op.ctx, "Rerouted claim of deprecated chain to USDT",
		zap.Uint64("claim_id", claim.ID),
		logger.BigInt("chain_id", claim.TargetChainID),
	)
	return e.emit(op, codec.EventClaimRerouted,
		u256(claim.ID), from, moved.TargetToken, u256(fromIndex), u256(toIndex))
}

// settleClaim pops the head claim and books its fee and payout. Claims of a deprecated
// chain, or of the hub chain, are paid without a bridger.
func (e *Engine) settleClaim(op *operation, claim *domain.Claim, deprecated bool) (FilledClaim, error) {
	l, ok := e.leases.Get(claim.LeaseID)
	if !ok {
		return FilledClaim{}, domain.ErrInvalidLeaseID
	}

	f := fee(claim.AmountUSDT, l)
	payout := new(big.Int).Sub(claim.AmountUSDT, f)
	filled := FilledClaim{Claim: claim.Clone(), Fee: f, Payout: payout}

	if !deprecated && !e.isHubChain(claim.TargetChainID) {
		b, ok := e.bridgers[bridgerKey{token: claim.TargetToken, chainID: bigOrZero(claim.TargetChainID).String()}]
		if !ok {
			return FilledClaim{}, domain.ErrNoBridger
		}
		filled.bridger = b
		filled.Bridger = b.Address()
	}

	if _, ok := e.queue.PopHead(claim.TargetToken); !ok {
		return FilledClaim{}, fmt.Errorf("claim %d vanished from the head of its queue", claim.ID)
	}
	e.leases.Settle(l, bigOrZero(claim.Origin.RawAmount))
	if err := e.applyPnl(op, f, domain.PnlReasonFillFee); err != nil {
		return FilledClaim{}, err
	}
	if err := e.pnl.Front(payout); err != nil {
		return FilledClaim{}, err
	}
	op.onCommit(e.observeAccounting)

	return filled, e.emit(op, codec.EventClaimFilled,
		u256(claim.ID), u256(claim.LeaseID), claim.TargetToken,
		u256(claim.QueueIndex), claim.AmountUSDT, f, payout,
		bigOrZero(claim.TargetChainID), claim.Beneficiary,
	)
}

// deliver performs the external transfers of a fill with the state lock released and
// returns the USDT the hub spends on them in this attempt. Shares sent by an earlier
// attempt are skipped, and target token already bought for a claim is not bought again.
func (e *Engine) deliver(op *operation, targetToken common.Address, filled []FilledClaim, calls []domain.Call) (*big.Int, error) {
	usdt := e.identities.USDT
	spent := new(big.Int)

	if targetToken == usdt {
		for i := range filled {
			filled[i].Delivered = new(big.Int).Set(filled[i].Payout)
			if d := e.deliveries[filled[i].Claim.ID]; d == nil || !d.Funded {
				spent.Add(spent, filled[i].Payout)
			}
		}
		return spent, e.sendAll(op, usdt, filled)
	}

	var fresh []int
	freshPayout := new(big.Int)
	for i := range filled {
		if d := e.deliveries[filled[i].Claim.ID]; d != nil {
			filled[i].Delivered = new(big.Int).Set(d.Amount)
			continue
		}
		fresh = append(fresh, i)
		freshPayout.Add(freshPayout, filled[i].Payout)
	}

	if len(fresh) > 0 {
		shares := make([]FilledClaim, len(fresh))
		for j, i := range fresh {
			shares[j] = filled[i]
		}
		if freshPayout.Sign() > 0 {
			out, err := e.swap(op, targetToken, freshPayout, calls)
			if err != nil {
				return spent, err
			}
			spent.Set(freshPayout)
			splitProRata(shares, out, freshPayout)
		} else {
			for j := range shares {
				shares[j].Delivered = new(big.Int)
			}
		}
		for j, i := range fresh {
			filled[i].Delivered = shares[j].Delivered
			e.deliveries[filled[i].Claim.ID] = &delivery{Amount: new(big.Int).Set(shares[j].Delivered)}
		}
		op.delivered = true
	}

	return spent, e.sendAll(op, targetToken, filled)
}

// swap buys targetToken with amountUSDT through the swap executor and returns the output
func (e *Engine) swap(op *operation, targetToken common.Address, amountUSDT *big.Int, calls []domain.Call) (*big.Int, error) {
	var out *big.Int
	err := op.external(func(ctx context.Context) error {
		before, err := e.ledger.BalanceOf(ctx, targetToken, e.config.HubAddress)
		if err != nil {
			return fmt.Errorf("failed to read target token balance: %w", err)
		}
		if err := e.ledger.Transfer(ctx, e.identities.USDT, e.executor.Address(), amountUSDT); err != nil {
			return fmt.Errorf("failed to fund swap executor: %w", err)
		}
		if err := e.executor.Execute(ctx, targetToken, amountUSDT, calls); err != nil {
			return fmt.Errorf("swap execution failed: %w", err)
		}
		after, err := e.ledger.BalanceOf(ctx, targetToken, e.config.HubAddress)
		if err != nil {
			return fmt.Errorf("failed to read target token balance: %w", err)
		}
		out = new(big.Int).Sub(after, before)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Sign() <= 0 {
		return nil, ErrSwapNoOutput
	}
	return out, nil
}

// sendAll delivers every share that has not reached its beneficiary yet
func (e *Engine) sendAll(op *operation, token common.Address, filled []FilledClaim) error {
	for _, f := range filled {
		if err := e.send(op, token, f); err != nil {
			return err
		}
	}
	return nil
}

// send delivers one claim's share, through its bridger when it has one. Each step that
// completes is recorded, so a retry resumes where the last attempt stopped.
func (e *Engine) send(op *operation, token common.Address, f FilledClaim) error {
	id := f.Claim.ID
	d := e.deliveries[id]
	if d == nil {
		d = &delivery{Amount: new(big.Int).Set(f.Delivered)}
		e.deliveries[id] = d
	}
	if d.Sent || d.Amount.Sign() == 0 {
		return nil
	}

	if !d.Funded {
		to := f.Claim.Beneficiary
		if f.bridger != nil {
			to = f.bridger.Address()
		}
		if err := op.external(func(ctx context.Context) error {
			return e.ledger.Transfer(ctx, token, to, d.Amount)
		}); err != nil {
			if f.bridger != nil {
				return fmt.Errorf("failed to fund bridger for claim %d: %w", id, err)
			}
			return fmt.Errorf("failed to pay claim %d: %w", id, err)
		}
		d.Funded = true
		d.Bridger = to
		op.delivered = true
		if f.bridger == nil {
			d.Sent = true
			return nil
		}
	}

	if f.bridger == nil || f.bridger.Address() != d.Bridger {
		return fmt.Errorf("claim %d was funded to bridger %s which is no longer its bridger", id, d.Bridger.Hex())
	}
	if err := op.external(func(ctx context.Context) error {
		return f.bridger.Bridge(ctx, token, d.Amount, f.Claim.TargetChainID, f.Claim.Beneficiary)
	}); err != nil {
		return fmt.Errorf("failed to bridge claim %d: %w", id, err)
	}
	d.Sent = true
	return nil
}

// splitProRata assigns out across the claims by payout weight; the last claim takes the rounding remainder
func splitProRata(filled []FilledClaim, out, totalPayout *big.Int) {
	remaining := new(big.Int).Set(out)
	for i := range filled {
		if i == len(filled)-1 {
			filled[i].Delivered = remaining
			return
		}
		share := new(big.Int).Mul(out, filled[i].Payout)
		share.Div(share, totalPayout)
		filled[i].Delivered = share
		remaining = new(big.Int).Sub(remaining, share)
	}
}
