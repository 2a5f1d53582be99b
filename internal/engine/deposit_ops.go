package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/untron/untron-v3-engine/internal/codec"
	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/journal"
	"github.com/untron/untron-v3-engine/internal/logger"
	"github.com/untron/untron-v3-engine/internal/metrics"
)

// Deposit is a Tron-side deposit into a receiver, as proven by the Tron reader
type Deposit struct {
	ReceiverSalt common.Hash    `json:"receiver_salt"`
	Token        common.Address `json:"token"`
	RawAmount    *big.Int       `json:"raw_amount"`
	TxID         common.Hash    `json:"tx_id"`
	Timestamp    uint64         `json:"timestamp"`
	// Calldata is the optional TRC-20 transfer calldata of the deposit transaction
	Calldata []byte `json:"calldata,omitempty"`
}

// PreEntitlementRequest reserves a claim for a deposit that is not recognized yet
type PreEntitlementRequest struct {
	TxID         common.Hash `json:"tx_id"`
	ReceiverSalt common.Hash `json:"receiver_salt"`
	RawAmount    *big.Int    `json:"raw_amount"`
}

// RecognizeResult describes what a recognition produced. Claim is nil when the entitled
// amount did not cover the lease fees or a pre-entitlement was consumed.
type RecognizeResult struct {
	LeaseID  uint64            `json:"lease_id"`
	Kind     domain.OriginKind `json:"origin_kind"`
	Claim    *domain.Claim     `json:"claim,omitempty"`
	Consumed bool              `json:"consumed_pre_entitlement"`
}

// RecognizeDeposit credits a proven Tron deposit to the lease of its receiver and
// enqueues the resulting claim. A deposit pre-entitled by a sponsor consumes the
// reservation instead.
func (e *Engine) RecognizeDeposit(ctx context.Context, caller common.Address, dep Deposit) (RecognizeResult, error) {
	var result RecognizeResult
	err := e.execute(ctx, "recognize_deposit", func(op *operation) error {
		if err := e.requireNotPaused(); err != nil {
			return err
		}
		if err := e.requireInitialized(); err != nil {
			return err
		}
		if caller != e.identities.TronReader {
			return domain.ErrUnauthorized
		}

		raw := bigOrZero(dep.RawAmount)
		if len(dep.Calldata) > 0 {
			decoded, err := e.checkTransferCalldata(dep)
			if err != nil {
				return err
			}
			raw = decoded
		}
		if raw.Sign() <= 0 {
			return domain.ErrZeroAmount
		}

		if e.processed[dep.TxID] {
			return domain.ErrDepositAlreadyProcessed
		}
		journal.SetMap(e.journal, e.processed, dep.TxID, true)

		key := pullKey{salt: dep.ReceiverSalt, token: dep.Token}
		if dep.Timestamp <= e.lastPull[key] {
			return domain.ErrDepositNotAfterLastReceiverPull
		}
		journal.SetMap(e.journal, e.lastPull, key, dep.Timestamp)
		pending := e.unpulled[key]
		journal.SetMap(e.journal, e.unpulled, key,
			append(pending[:len(pending):len(pending)], recognizedDeposit{timestamp: dep.Timestamp, raw: new(big.Int).Set(raw)}))

		if pe, ok := e.preEntitlements[dep.TxID]; ok {
			if err := e.consumePreEntitlement(op, pe, dep.Token, raw); err != nil {
				return err
			}
			result = RecognizeResult{LeaseID: pe.LeaseID, Kind: domain.OriginKindSubjective, Consumed: true}
			return e.emit(op, codec.EventDepositRecognized,
				dep.TxID, dep.ReceiverSalt, dep.Token, u256(pe.LeaseID), raw, u256(dep.Timestamp), uint8(domain.OriginKindSubjective))
		}

		l, ok := e.leases.Active(dep.ReceiverSalt)
		if !ok {
			return domain.ErrNoActiveLease
		}
		claim, err := e.recognizeForLease(op, l, domain.Origin{
			Kind:      domain.OriginKindDeposit,
			ID:        dep.TxID,
			Actor:     caller,
			Token:     dep.Token,
			Timestamp: dep.Timestamp,
			RawAmount: raw,
		})
		if err != nil {
			return err
		}
		result = RecognizeResult{LeaseID: l.ID, Kind: domain.OriginKindDeposit, Claim: claim}

		return e.emit(op, codec.EventDepositRecognized,
			dep.TxID, dep.ReceiverSalt, dep.Token, u256(l.ID), raw, u256(dep.Timestamp), uint8(domain.OriginKindDeposit))
	})
	return result, err
}

// checkTransferCalldata validates the TRC-20 transfer of a deposit and returns its amount
func (e *Engine) checkTransferCalldata(dep Deposit) (*big.Int, error) {
	if dep.Token != e.identities.TronUSDT {
		return nil, domain.ErrNotTronUsdt
	}
	to, amount, err := codec.DecodeTronTransfer(dep.Calldata)
	if err != nil {
		if pe, ok := domain.AsProtocolError(err); ok {
			return nil, pe
		}
		return nil, domain.ErrTronInvalidCalldataLength
	}
	if to != e.predictor.PredictDefault(dep.ReceiverSalt) {
		return nil, domain.ErrInvalidReceiverForSalt
	}
	return amount, nil
}

// consumePreEntitlement settles a sponsor reservation against the recognized deposit.
// The difference between the recognized and the reserved USDT value is absorbed by PnL.
func (e *Engine) consumePreEntitlement(op *operation, pe *domain.SubjectivePreEntitlement, token common.Address, raw *big.Int) error {
	l, ok := e.leases.Get(pe.LeaseID)
	if !ok {
		return domain.ErrInvalidLeaseID
	}
	rate, err := e.rateFor(token)
	if err != nil {
		return err
	}

	if surplus := new(big.Int).Sub(raw, pe.RawAmount); surplus.Sign() > 0 {
		e.leases.Recognize(l, surplus)
	}
	actual := new(big.Int).Mul(raw, rate)
	actual.Div(actual, domain.PPM())
	if err := e.applyPnl(op, new(big.Int).Sub(actual, pe.AmountUSDT), domain.PnlReasonSubjectiveForward); err != nil {
		return err
	}

	journal.DeleteMap(e.journal, e.preEntitlements, pe.TxID)
	return e.emit(op, codec.EventSubjectivePreEntitlementConsumed, pe.TxID, u256(pe.LeaseID), pe.RawAmount, raw)
}

// PreEntitle lets a trusted sponsor reserve a claim for a deposit before it is recognized
func (e *Engine) PreEntitle(ctx context.Context, sponsor common.Address, req PreEntitlementRequest) (*domain.SubjectivePreEntitlement, error) {
	var out *domain.SubjectivePreEntitlement
	err := e.execute(ctx, "pre_entitle", func(op *operation) error {
		if err := e.requireNotPaused(); err != nil {
			return err
		}
		if err := e.requireInitialized(); err != nil {
			return err
		}
		if !e.sponsors[sponsor] {
			return domain.ErrUnauthorized
		}
		raw := bigOrZero(req.RawAmount)
		if raw.Sign() <= 0 {
			return domain.ErrZeroAmount
		}
		if e.processed[req.TxID] {
			return domain.ErrDepositAlreadyProcessed
		}
		if _, ok := e.preEntitlements[req.TxID]; ok {
			return domain.ErrSubjectivePreEntitlementAlreadyExists
		}
		l, ok := e.leases.Active(req.ReceiverSalt)
		if !ok {
			return domain.ErrNoActiveLease
		}

		entitled, err := e.entitled(e.identities.TronUSDT, raw)
		if err != nil {
			return err
		}
		if !coversFee(entitled, l) {
			return domain.ErrSubjectiveNetOutZero
		}

		e.leases.Recognize(l, raw)
		claim, err := e.enqueueClaim(op, l, entitled, domain.Origin{
			Kind:      domain.OriginKindSubjective,
			ID:        req.TxID,
			Actor:     sponsor,
			Token:     e.identities.TronUSDT,
			Timestamp: op.now,
			RawAmount: new(big.Int).Set(raw),
		})
		if err != nil {
			return err
		}

		pe := &domain.SubjectivePreEntitlement{
			TxID:       req.TxID,
			Sponsor:    sponsor,
			LeaseID:    l.ID,
			RawAmount:  new(big.Int).Set(raw),
			AmountUSDT: new(big.Int).Set(entitled),
			QueueIndex: claim.QueueIndex,
			ClaimID:    claim.ID,
		}
		journal.SetMap(e.journal, e.preEntitlements, req.TxID, pe)
		snapshot := *pe
		out = &snapshot

		return e.emit(op, codec.EventSubjectivePreEntitled,
			pe.TxID, pe.Sponsor, u256(pe.LeaseID), pe.RawAmount, pe.AmountUSDT, u256(pe.QueueIndex), u256(pe.ClaimID))
	})
	return out, err
}

// recognizeForLease accrues raw value on the lease and enqueues the entitled claim.
// An entitlement that does not cover the lease fees stays recognized and unbacked.
func (e *Engine) recognizeForLease(op *operation, l *domain.Lease, origin domain.Origin) (*domain.Claim, error) {
	entitled, err := e.entitled(origin.Token, origin.RawAmount)
	if err != nil {
		return nil, err
	}
	e.leases.Recognize(l, origin.RawAmount)

	if !coversFee(entitled, l) {
		logger.DebugCtx(op.ctx, "Recognized amount does not cover lease fees, no claim created",
			zap.Uint64("lease_id", l.ID),
			logger.BigInt("entitled_usdt", entitled),
			zap.String("origin", origin.Kind.String()),
		)
		return nil, nil
	}
	return e.enqueueClaim(op, l, entitled, origin)
}

// entitled converts a raw amount of token into USDT at the configured swap rate
func (e *Engine) entitled(token common.Address, raw *big.Int) (*big.Int, error) {
	rate, err := e.rateFor(token)
	if err != nil {
		return nil, err
	}
	v := new(big.Int).Mul(raw, rate)
	return v.Div(v, domain.PPM()), nil
}

// coversFee reports whether a claim of amount would pay out something after the lease fees
func coversFee(amount *big.Int, l *domain.Lease) bool {
	return amount.Sign() > 0 && fee(amount, l).Cmp(amount) < 0
}

// enqueueClaim creates a claim for the lease's payout and backs it with the origin's raw
// amount. Claims for a deprecated target chain fall back to USDT on the hub chain.
func (e *Engine) enqueueClaim(op *operation, l *domain.Lease, amountUSDT *big.Int, origin domain.Origin) (*domain.Claim, error) {
	if !l.IsOpen() {
		return nil, domain.ErrNoActiveLease
	}

	token := l.Payout.TargetToken
	chainID := bigOrZero(l.Payout.TargetChainID)
	if e.isDeprecated(chainID) {
		token = e.identities.USDT
		chainID = e.config.HubChainID
	}

	id := e.nextClaimID
	journal.Set(e.journal, &e.nextClaimID, id+1)

	claim := &domain.Claim{
		ID:            id,
		LeaseID:       l.ID,
		SeqInLease:    e.leases.NextClaimSeq(l),
		TargetToken:   token,
		AmountUSDT:    new(big.Int).Set(amountUSDT),
		TargetChainID: new(big.Int).Set(chainID),
		Beneficiary:   l.Payout.Beneficiary,
		Origin:        origin,
	}
	e.queue.Enqueue(claim)
	journal.SetMap(e.journal, e.claimKeys, id, claim.Key())
	e.leases.Back(l, origin.RawAmount)
	if l.Status == domain.LeaseStatusCreated {
		e.leases.SetStatus(l, domain.LeaseStatusActive)
	}

	op.onCommit(func() {
		metrics.ClaimsCreated.WithLabelValues(token.Hex(), origin.Kind.String()).Inc()
		e.observeQueues()
	})

	return claim, e.emit(op, codec.EventClaimCreated,
		u256(claim.ID), u256(claim.LeaseID), claim.TargetToken,
		u256(claim.SeqInLease), u256(claim.QueueIndex), claim.AmountUSDT, claim.TargetChainID, claim.Beneficiary,
		uint8(origin.Kind), origin.ID, origin.Actor, origin.Token,
		u256(origin.Timestamp), bigOrZero(origin.RawAmount),
	)
}
