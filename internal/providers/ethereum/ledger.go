package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/untron/untron-v3-engine/internal/codec"
	"github.com/untron/untron-v3-engine/internal/logger"
)

// TokenLedger moves ERC-20 tokens held by the custody account of the transactor
type TokenLedger struct {
	tx *Transactor
}

// NewTokenLedger creates a ledger whose transfers are signed by tx
func NewTokenLedger(tx *Transactor) *TokenLedger {
	return &TokenLedger{tx: tx}
}

// BalanceOf returns the token balance of holder
func (l *TokenLedger) BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	data, err := codec.EncodeBalanceOf(holder)
	if err != nil {
		return nil, err
	}
	out, err := l.tx.Call(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf on %s: %w", token.Hex(), err)
	}
	balance, err := codec.DecodeUint256(out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode balanceOf of %s: %w", token.Hex(), err)
	}
	return balance, nil
}

// Transfer sends amount of token from the custody account to to
func (l *TokenLedger) Transfer(ctx context.Context, token, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	data, err := codec.EncodeTransfer(to, amount)
	if err != nil {
		return err
	}

	receipt, err := l.tx.Send(ctx, token, nil, data)
	if err != nil {
		return fmt.Errorf("failed to transfer %s of %s to %s: %w", amount, token.Hex(), to.Hex(), err)
	}

	logger.InfoCtx(ctx, "Token transfer mined",
		logger.Address("token", token),
		logger.Address("to", to),
		logger.BigInt("amount", amount),
		logger.Hash("tx_hash", receipt.TxHash),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
	)
	return nil
}

// TransferFrom pulls amount of token from from into the custody account. from must have
// approved the custody account beforehand.
func (l *TokenLedger) TransferFrom(ctx context.Context, token, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	data, err := codec.EncodeTransferFrom(from, l.tx.Address(), amount)
	if err != nil {
		return err
	}

	receipt, err := l.tx.Send(ctx, token, nil, data)
	if err != nil {
		return fmt.Errorf("failed to pull %s of %s from %s: %w", amount, token.Hex(), from.Hex(), err)
	}

	logger.InfoCtx(ctx, "Token pull mined",
		logger.Address("token", token),
		logger.Address("from", from),
		logger.BigInt("amount", amount),
		logger.Hash("tx_hash", receipt.TxHash),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
	)
	return nil
}
