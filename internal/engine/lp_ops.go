package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/untron/untron-v3-engine/internal/codec"
	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/logger"
)

// LpDeposit pulls USDT principal from an allowlisted LP and books it. The LP must have
// approved the hub; the principal is booked only for what actually arrived.
func (e *Engine) LpDeposit(ctx context.Context, lp common.Address, amount *big.Int) error {
	return e.execute(ctx, "lp_deposit", func(op *operation) error {
		if err := e.requireNotPaused(); err != nil {
			return err
		}
		if !e.lpAllowed[lp] {
			return domain.ErrLpNotAllowlisted
		}
		if err := e.requireInitialized(); err != nil {
			return err
		}
		amount = bigOrZero(amount)
		if err := e.pnl.Deposit(lp, amount); err != nil {
			return err
		}
		if err := e.pullUSDT(op, lp, amount); err != nil {
			return err
		}
		return e.emit(op, codec.EventLpDeposited, lp, amount)
	})
}

// pullUSDT moves amount of USDT from from to the hub and checks the hub balance grew by it
func (e *Engine) pullUSDT(op *operation, from common.Address, amount *big.Int) error {
	usdt := e.identities.USDT
	var received *big.Int
	if err := op.external(func(ctx context.Context) error {
		before, err := e.ledger.BalanceOf(ctx, usdt, e.config.HubAddress)
		if err != nil {
			return fmt.Errorf("failed to read USDT balance: %w", err)
		}
		if err := e.ledger.TransferFrom(ctx, usdt, from, amount); err != nil {
			return fmt.Errorf("failed to pull %s USDT from %s: %w", amount, from.Hex(), err)
		}
		after, err := e.ledger.BalanceOf(ctx, usdt, e.config.HubAddress)
		if err != nil {
			return fmt.Errorf("failed to read USDT balance: %w", err)
		}
		received = new(big.Int).Sub(after, before)
		return nil
	}); err != nil {
		return err
	}
	if received.Cmp(amount) < 0 {
		logger.WarnCtx(op.ctx, "USDT pull credited less than requested",
			logger.Address("from", from),
			logger.BigInt("requested", amount),
			logger.BigInt("received", received),
		)
		return domain.ErrInsufficientUsdtBalance
	}
	return nil
}

// LpWithdraw returns principal to an LP. Principal backing fronted liquidity stays locked.
func (e *Engine) LpWithdraw(ctx context.Context, lp common.Address, amount *big.Int) error {
	return e.execute(ctx, "lp_withdraw", func(op *operation) error {
		if err := e.requireInitialized(); err != nil {
			return err
		}
		if !e.lpAllowed[lp] {
			return domain.ErrLpNotAllowlisted
		}
		amount = bigOrZero(amount)
		if err := e.pnl.Withdraw(lp, amount); err != nil {
			return err
		}
		if err := e.emit(op, codec.EventLpWithdrawn, lp, amount); err != nil {
			return err
		}
		return e.payOut(op, e.identities.USDT, lp, amount)
	})
}

// WithdrawProtocolProfit sends realised protocol profit to to
func (e *Engine) WithdrawProtocolProfit(ctx context.Context, caller, to common.Address, amount *big.Int) error {
	return e.execute(ctx, "withdraw_protocol_profit", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if err := e.requireInitialized(); err != nil {
			return err
		}
		amount = bigOrZero(amount)
		update, err := e.pnl.WithdrawProfit(amount)
		if err != nil {
			return err
		}
		op.onCommit(e.observeAccounting)
		if err := e.emit(op, codec.EventProtocolPnlUpdated, update.PnL, update.Delta, uint8(update.Reason)); err != nil {
			return err
		}
		if err := e.emit(op, codec.EventProtocolProfitWithdrawn, to, amount); err != nil {
			return err
		}
		return e.payOut(op, e.identities.USDT, to, amount)
	})
}

// RescueTokens sends tokens stuck on the hub to to. USDT is accounted and cannot be rescued.
func (e *Engine) RescueTokens(ctx context.Context, caller, token, to common.Address, amount *big.Int) error {
	return e.execute(ctx, "rescue_tokens", func(op *operation) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if err := e.requireInitialized(); err != nil {
			return err
		}
		if token == e.identities.USDT {
			return domain.ErrCannotRescueUSDT
		}
		amount = bigOrZero(amount)
		if amount.Sign() <= 0 {
			return domain.ErrZeroAmount
		}
		if err := e.emit(op, codec.EventTokensRescued, token, to, amount); err != nil {
			return err
		}
		return e.payOut(op, token, to, amount)
	})
}

func (e *Engine) payOut(op *operation, token, to common.Address, amount *big.Int) error {
	return op.external(func(ctx context.Context) error {
		if err := e.ledger.Transfer(ctx, token, to, amount); err != nil {
			return fmt.Errorf("failed to transfer %s to %s: %w", amount, to.Hex(), err)
		}
		return nil
	})
}
