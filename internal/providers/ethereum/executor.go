package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/logger"
)

// CallExecutor runs swap calls as transactions from its own account. The engine funds the
// account with USDT before Execute; the calls must deliver the target token to the hub.
type CallExecutor struct {
	tx *Transactor
}

// NewCallExecutor creates an executor whose calls are signed by tx
func NewCallExecutor(tx *Transactor) *CallExecutor {
	return &CallExecutor{tx: tx}
}

// Address returns the account that receives the USDT to swap
func (x *CallExecutor) Address() common.Address {
	return x.tx.Address()
}

// Execute sends the calls in order and stops at the first failure
func (x *CallExecutor) Execute(ctx context.Context, targetToken common.Address, amountUSDT *big.Int, calls []domain.Call) error {
	for i, call := range calls {
		receipt, err := x.tx.Send(ctx, call.To, call.Value, call.Data)
		if err != nil {
			return fmt.Errorf("swap call %d to %s failed: %w", i, call.To.Hex(), err)
		}
		logger.DebugCtx(ctx, "Swap call mined",
			zap.Int("index", i),
			logger.Address("to", call.To),
			logger.Hash("tx_hash", receipt.TxHash),
		)
	}

	logger.InfoCtx(ctx, "Swap executed",
		logger.Address("target_token", targetToken),
		logger.BigInt("amount_usdt", amountUSDT),
		zap.Int("calls", len(calls)),
	)
	return nil
}
