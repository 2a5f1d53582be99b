package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/untron/untron-v3-engine/internal/codec"
	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/journal"
	"github.com/untron/untron-v3-engine/internal/logger"
)

// ProcessControllerEvent advances the controller mirror by one entry and applies the
// entry's effect on the hub. A handler rejected with a protocol error is skipped: the
// cursor still advances so the relay cannot wedge on one entry.
func (e *Engine) ProcessControllerEvent(ctx context.Context, entry domain.EventChainEntry) error {
	return e.execute(ctx, "process_controller_event", func(op *operation) error {
		if err := e.mirror.Advance(entry); err != nil {
			return err
		}
		if err := e.emit(op, codec.EventControllerEventProcessed,
			u256(entry.Seq), entry.PrevTip, entry.NewTip, entry.Signature, entry.Payload,
		); err != nil {
			return err
		}

		snapshot := e.journal.Snapshot()
		records, commits := len(op.records), len(op.commits)

		err := e.handleControllerEntry(op, entry)
		if err == nil {
			return nil
		}
		pe, ok := domain.AsProtocolError(err)
		if !ok {
			return err
		}

		e.journal.RevertToSnapshot(snapshot)
		op.records = op.records[:records]
		op.commits = op.commits[:commits]
		logger.WarnCtx(ctx, "Controller event effect rejected, cursor advanced without it",
			zap.Uint64("seq", entry.Seq),
			logger.Hash("signature", entry.Signature),
			zap.String("error", pe.Name),
		)
		return nil
	})
}

func (e *Engine) handleControllerEntry(op *operation, entry domain.EventChainEntry) error {
	switch entry.Signature {
	case codec.EventTopic(codec.EventReceiverPulled):
		values, err := codec.UnpackPayload(codec.EventReceiverPulled, entry.Payload)
		if err != nil {
			return fmt.Errorf("failed to decode ReceiverPulled: %w", err)
		}
		salt, ok1 := values["receiverSalt"].([32]byte)
		token, ok2 := values["token"].(common.Address)
		raw, ok3 := values["rawAmount"].(*big.Int)
		if !ok1 || !ok2 || !ok3 {
			return fmt.Errorf("%w: ReceiverPulled payload", codec.ErrCodecMalformed)
		}
		return e.receiverPulled(op, entry, common.Hash(salt), token, raw)

	case codec.EventTopic(codec.EventUsdtRebalanced):
		values, err := codec.UnpackPayload(codec.EventUsdtRebalanced, entry.Payload)
		if err != nil {
			return fmt.Errorf("failed to decode UsdtRebalanced: %w", err)
		}
		amount, ok := values["amount"].(*big.Int)
		if !ok {
			return fmt.Errorf("%w: UsdtRebalanced payload", codec.ErrCodecMalformed)
		}
		released := e.pnl.Rebalance(amount)
		op.onCommit(e.observeAccounting)
		return e.emit(op, codec.EventFrontedLiquidityReleased, released, e.pnl.Fronted())

	default:
		logger.DebugCtx(op.ctx, "Controller event without hub effect", logger.Hash("signature", entry.Signature))
		return nil
	}
}

// receiverPulled books a controller sweep of a receiver. Deposits already recognized
// on the receiver up to the pull are part of the pulled amount; only the excess is
// recognized, as a receiver pull claim.
func (e *Engine) receiverPulled(op *operation, entry domain.EventChainEntry, salt common.Hash, token common.Address, raw *big.Int) error {
	key := pullKey{salt: salt, token: token}
	if entry.BlockTimestamp > e.lastPull[key] {
		journal.SetMap(e.journal, e.lastPull, key, entry.BlockTimestamp)
	}

	covered := new(big.Int)
	var later []recognizedDeposit
	for _, d := range e.unpulled[key] {
		if d.timestamp <= entry.BlockTimestamp {
			covered.Add(covered, d.raw)
			continue
		}
		later = append(later, d)
	}
	if len(later) == 0 {
		journal.DeleteMap(e.journal, e.unpulled, key)
	} else {
		journal.SetMap(e.journal, e.unpulled, key, later)
	}

	excess := new(big.Int).Sub(raw, covered)
	if excess.Sign() <= 0 {
		return nil
	}

	l, ok := e.leases.Active(salt)
	if !ok {
		return domain.ErrNoActiveLease
	}
	if _, err := e.recognizeForLease(op, l, domain.Origin{
		Kind:      domain.OriginKindReceiverPull,
		ID:        entry.NewTip,
		Actor:     e.identities.Controller,
		Token:     token,
		Timestamp: entry.BlockTimestamp,
		RawAmount: excess,
	}); err != nil {
		return err
	}
	return e.emit(op, codec.EventDepositRecognized,
		entry.NewTip, salt, token, u256(l.ID), excess, u256(entry.BlockTimestamp), uint8(domain.OriginKindReceiverPull))
}

// ControllerCursor returns the controller mirror cursor
func (e *Engine) ControllerCursor() domain.ControllerCursor {
	return e.mirror.Cursor()
}
