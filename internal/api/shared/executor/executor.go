package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/untron/untron-v3-engine/internal/api/shared/dto"
	apierrors "github.com/untron/untron-v3-engine/internal/api/shared/errors"
	"github.com/untron/untron-v3-engine/internal/api/shared/types"
	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/engine"
	"github.com/untron/untron-v3-engine/internal/logger"
	"github.com/untron/untron-v3-engine/internal/store"
)

// Engine is the part of the hub engine the API drives
type Engine interface {
	// Views
	Settings() engine.Settings
	Lease(id uint64) (*domain.Lease, error)
	LeasesBySalt(salt common.Hash) []*domain.Lease
	ActiveLease(salt common.Hash) (*domain.Lease, bool)
	Claim(id uint64) (*domain.Claim, error)
	Queues() []engine.QueueInfo
	Queue(token common.Address) engine.QueueInfo
	PendingClaims(token common.Address, limit uint64) []*domain.Claim
	EventChainHead() (uint64, common.Hash)
	EventChainRange(from, to uint64) ([]domain.EventChainEntry, error)
	ControllerCursor() domain.ControllerCursor
	PnL() *big.Int
	LpPrincipal(lp common.Address) *big.Int
	TotalLpPrincipal() *big.Int
	FrontedLiquidity() *big.Int
	DepositProcessed(txID common.Hash) bool
	PreEntitlement(txID common.Hash) (*domain.SubjectivePreEntitlement, bool)
	LastReceiverPull(salt common.Hash, token common.Address) uint64
	PredictReceiver(salt common.Hash) (common.Address, error)

	// Operations
	CreateLease(ctx context.Context, realtor common.Address, req engine.LeaseRequest) (uint64, error)
	UpdatePayout(ctx context.Context, caller common.Address, upd engine.PayoutUpdate) error
	CloseLease(ctx context.Context, caller common.Address, leaseID uint64) error
	NukeLease(ctx context.Context, leaseID uint64) (engine.NukeResult, error)
	RecognizeDeposit(ctx context.Context, caller common.Address, dep engine.Deposit) (engine.RecognizeResult, error)
	PreEntitle(ctx context.Context, sponsor common.Address, req engine.PreEntitlementRequest) (*domain.SubjectivePreEntitlement, error)
	Fill(ctx context.Context, targetToken common.Address, maxClaims uint64, calls []domain.Call) (engine.FillResult, error)
	LpDeposit(ctx context.Context, lp common.Address, amount *big.Int) error
	LpWithdraw(ctx context.Context, lp common.Address, amount *big.Int) error
	WithdrawProtocolProfit(ctx context.Context, caller, to common.Address, amount *big.Int) error
	RescueTokens(ctx context.Context, caller, token, to common.Address, amount *big.Int) error

	// Owner configuration
	SetProtocolFloors(ctx context.Context, caller common.Address, floorPPM uint32, floorFlatFee, maxLeaseDurationSeconds uint64) error
	SetRealtor(ctx context.Context, caller, realtor common.Address, allowed bool) error
	SetRealtorMinFee(ctx context.Context, caller, realtor common.Address, minFeePPM uint32, minFlatFee uint64) error
	SetRealtorMaxLeaseDuration(ctx context.Context, caller, realtor common.Address, seconds uint64) error
	SetLeaseRateLimit(ctx context.Context, caller, realtor common.Address, limit domain.RateLimit) error
	SetPayoutConfigRateLimit(ctx context.Context, caller common.Address, limit domain.RateLimit) error
	SetSwapRate(ctx context.Context, caller, token common.Address, ratePPM *big.Int) error
	SetChainDeprecated(ctx context.Context, caller common.Address, chainID *big.Int, deprecated bool) error
	SetLpAllowed(ctx context.Context, caller, lp common.Address, allowed bool) error
	SetSubjectiveSponsor(ctx context.Context, caller, sponsor common.Address, allowed bool) error
	Pause(ctx context.Context, caller common.Address) error
	Unpause(ctx context.Context, caller common.Address) error
	TransferOwnership(ctx context.Context, caller, newOwner common.Address) error
}

// Allowlist names one of the owner-managed allowlists
type Allowlist string

const (
	AllowlistRealtor Allowlist = "realtors"
	AllowlistLP      Allowlist = "lps"
	AllowlistSponsor Allowlist = "sponsors"
)

// Executor is the business logic behind the REST handlers
//
//go:generate mockgen -source=executor.go -destination=../../../mocks/api_executor.go -package=mocks -mock_names=Executor=MockAPIExecutor
type Executor interface {
	// GetSettings returns the hub configuration
	GetSettings(ctx context.Context) engine.Settings
	// GetLease retrieves a lease by id
	GetLease(ctx context.Context, id uint64) (*domain.Lease, error)
	// GetReceiver lists the leases of a receiver salt with its predicted address
	GetReceiver(ctx context.Context, salt common.Hash) (*dto.LeaseListResponse, error)
	// GetClaim retrieves a queued claim by id
	GetClaim(ctx context.Context, id uint64) (*domain.Claim, error)
	// GetQueues lists every target token queue
	GetQueues(ctx context.Context) []engine.QueueInfo
	// GetPendingClaims lists the claims at the head of a target token queue
	GetPendingClaims(ctx context.Context, token common.Address, limit uint64) *dto.PendingClaimsResponse
	// GetEventChainHead returns the hub event chain head
	GetEventChainHead(ctx context.Context) *dto.EventChainHeadResponse
	// GetEventChainRange returns hub event chain entries with from <= seq <= to
	GetEventChainRange(ctx context.Context, from, to uint64) (*dto.EventChainRangeResponse, error)
	// GetControllerCursor returns how far the controller event chain is mirrored
	GetControllerCursor(ctx context.Context) domain.ControllerCursor
	// GetEvents lists persisted hub events
	GetEvents(ctx context.Context, names []string, fromSeq, toSeq *uint64, limit int, offset uint64, order types.Order) (*dto.EventListResponse, error)
	// GetAccounting returns the protocol accounting and, when lp is set, its principal
	GetAccounting(ctx context.Context, lp *common.Address) *dto.AccountingResponse
	// GetDeposit reports whether a Tron deposit was processed or pre-entitled
	GetDeposit(ctx context.Context, txID common.Hash) *dto.DepositResponse
	// GetReceiverPull reports the last controller pull of a receiver for a token
	GetReceiverPull(ctx context.Context, salt common.Hash, token common.Address) *dto.ReceiverPullResponse

	// CreateLease opens a lease for the calling realtor
	CreateLease(ctx context.Context, req dto.CreateLeaseRequest) (*dto.CreateLeaseResponse, error)
	// UpdatePayout changes the payout route of a lease
	UpdatePayout(ctx context.Context, leaseID uint64, req dto.UpdatePayoutRequest) (*dto.OperationResponse, error)
	// CloseLease closes a lease on behalf of its lessee
	CloseLease(ctx context.Context, leaseID uint64, caller common.Address) (*dto.OperationResponse, error)
	// NukeLease terminates an expired lease
	NukeLease(ctx context.Context, leaseID uint64) (*engine.NukeResult, error)
	// RecognizeDeposit credits a proven Tron deposit
	RecognizeDeposit(ctx context.Context, req dto.RecognizeDepositRequest) (*engine.RecognizeResult, error)
	// PreEntitle reserves a claim for a not yet recognized deposit
	PreEntitle(ctx context.Context, req dto.PreEntitleRequest) (*domain.SubjectivePreEntitlement, error)
	// Fill pays out claims from a target token queue
	Fill(ctx context.Context, req dto.FillRequest) (*engine.FillResult, error)
	// LpDeposit books LP principal
	LpDeposit(ctx context.Context, req dto.AmountRequest) (*dto.OperationResponse, error)
	// LpWithdraw returns LP principal
	LpWithdraw(ctx context.Context, req dto.AmountRequest) (*dto.OperationResponse, error)

	// WithdrawProtocolProfit sends protocol profit out
	WithdrawProtocolProfit(ctx context.Context, req dto.TransferRequest) (*dto.OperationResponse, error)
	// RescueTokens sends stray tokens out
	RescueTokens(ctx context.Context, req dto.TransferRequest) (*dto.OperationResponse, error)
	// SetAllowed toggles an account on an allowlist
	SetAllowed(ctx context.Context, list Allowlist, req dto.AllowlistRequest) (*dto.OperationResponse, error)
	// SetProtocolFloors sets the protocol fee floors
	SetProtocolFloors(ctx context.Context, req dto.ProtocolFloorsRequest) (*dto.OperationResponse, error)
	// SetRealtorSettings sets the given per-realtor settings, in order, stopping at the first failure
	SetRealtorSettings(ctx context.Context, realtor common.Address, req dto.RealtorSettingsRequest) (*dto.OperationResponse, error)
	// SetPayoutRateLimit sets the payout update rate limit
	SetPayoutRateLimit(ctx context.Context, req dto.RateLimitRequest) (*dto.OperationResponse, error)
	// SetSwapRate sets the expected rate of a target token
	SetSwapRate(ctx context.Context, token common.Address, req dto.SwapRateRequest) (*dto.OperationResponse, error)
	// SetChainDeprecated marks a target chain deprecated
	SetChainDeprecated(ctx context.Context, chainID *big.Int, req dto.ChainDeprecatedRequest) (*dto.OperationResponse, error)
	// SetPaused pauses or unpauses user operations
	SetPaused(ctx context.Context, paused bool, req dto.Operator) (*dto.OperationResponse, error)
	// TransferOwnership hands the hub to a new owner
	TransferOwnership(ctx context.Context, req dto.TransferOwnershipRequest) (*dto.OperationResponse, error)
}

type executor struct {
	engine Engine
	store  store.Store
}

// NewExecutor creates an executor. The store is optional; without it event queries fail.
func NewExecutor(engine Engine, store store.Store) Executor {
	return &executor{engine: engine, store: store}
}

// committed acknowledges an operation with the hub head observed right after it
func (e *executor) committed(ctx context.Context) *dto.OperationResponse {
	seq, tip := e.engine.EventChainHead()
	return &dto.OperationResponse{
		RequestID: logger.RequestID(ctx),
		Status:    "committed",
		HubSeq:    seq,
		HubTip:    tip,
	}
}

func (e *executor) ack(ctx context.Context, err error) (*dto.OperationResponse, error) {
	if err != nil {
		return nil, err
	}
	return e.committed(ctx), nil
}

func (e *executor) GetSettings(ctx context.Context) engine.Settings {
	return e.engine.Settings()
}

func (e *executor) GetLease(ctx context.Context, id uint64) (*domain.Lease, error) {
	return e.engine.Lease(id)
}

func (e *executor) GetReceiver(ctx context.Context, salt common.Hash) (*dto.LeaseListResponse, error) {
	receiver, err := e.engine.PredictReceiver(salt)
	if err != nil {
		return nil, apierrors.NewServiceError("Receiver cannot be predicted", err.Error())
	}

	resp := &dto.LeaseListResponse{
		ReceiverSalt: salt,
		Receiver:     receiver,
		Leases:       e.engine.LeasesBySalt(salt),
	}
	if active, ok := e.engine.ActiveLease(salt); ok {
		id := active.ID
		resp.ActiveLeaseID = &id
	}
	return resp, nil
}

func (e *executor) GetClaim(ctx context.Context, id uint64) (*domain.Claim, error) {
	return e.engine.Claim(id)
}

func (e *executor) GetQueues(ctx context.Context) []engine.QueueInfo {
	return e.engine.Queues()
}

func (e *executor) GetPendingClaims(ctx context.Context, token common.Address, limit uint64) *dto.PendingClaimsResponse {
	q := e.engine.Queue(token)
	return &dto.PendingClaimsResponse{
		TargetToken: token,
		HeadIndex:   q.HeadIndex,
		NextIndex:   q.NextIndex,
		Claims:      e.engine.PendingClaims(token, limit),
	}
}

func (e *executor) GetEventChainHead(ctx context.Context) *dto.EventChainHeadResponse {
	seq, tip := e.engine.EventChainHead()
	return &dto.EventChainHeadResponse{Seq: seq, Tip: tip}
}

func (e *executor) GetEventChainRange(ctx context.Context, from, to uint64) (*dto.EventChainRangeResponse, error) {
	entries, err := e.engine.EventChainRange(from, to)
	if err != nil {
		return nil, err
	}
	return &dto.EventChainRangeResponse{From: from, To: to, Entries: dto.EntriesFromDomain(entries)}, nil
}

func (e *executor) GetControllerCursor(ctx context.Context) domain.ControllerCursor {
	return e.engine.ControllerCursor()
}

func (e *executor) GetEvents(ctx context.Context, names []string, fromSeq, toSeq *uint64, limit int, offset uint64, order types.Order) (*dto.EventListResponse, error) {
	if e.store == nil {
		return nil, apierrors.NewServiceError("Event history is not available")
	}

	rows, total, err := e.store.GetEvents(ctx, store.EventQueryFilter{
		Names:     names,
		FromSeq:   fromSeq,
		ToSeq:     toSeq,
		Limit:     limit,
		Offset:    offset,
		OrderDesc: order.Desc(),
	})
	if err != nil {
		return nil, err
	}

	events := make([]dto.Event, 0, len(rows))
	for _, row := range rows {
		var topics []string
		if err := json.Unmarshal(row.Topics, &topics); err != nil {
			return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to decode topics of event %d", row.ID))
		}
		var args map[string]interface{}
		if len(row.Args) > 0 {
			if err := json.Unmarshal(row.Args, &args); err != nil {
				return nil, apierrors.NewDatabaseError(fmt.Sprintf("Failed to decode args of event %d", row.ID))
			}
		}
		events = append(events, dto.EventFromSchema(row, topics, args))
	}

	return &dto.EventListResponse{
		Events: events,
		Total:  total,
		Offset: offset,
		Limit:  limit,
	}, nil
}

func (e *executor) GetAccounting(ctx context.Context, lp *common.Address) *dto.AccountingResponse {
	resp := &dto.AccountingResponse{
		PnL:              e.engine.PnL(),
		TotalLpPrincipal: e.engine.TotalLpPrincipal(),
		FrontedLiquidity: e.engine.FrontedLiquidity(),
	}
	if lp != nil {
		resp.LP = lp
		resp.LpPrincipal = e.engine.LpPrincipal(*lp)
	}
	return resp
}

func (e *executor) GetDeposit(ctx context.Context, txID common.Hash) *dto.DepositResponse {
	resp := &dto.DepositResponse{
		TxID:      txID,
		Processed: e.engine.DepositProcessed(txID),
	}
	if pe, ok := e.engine.PreEntitlement(txID); ok {
		resp.PreEntitlement = pe
	}
	return resp
}

func (e *executor) GetReceiverPull(ctx context.Context, salt common.Hash, token common.Address) *dto.ReceiverPullResponse {
	return &dto.ReceiverPullResponse{
		ReceiverSalt:  salt,
		Token:         token,
		LastPulledAt:  e.engine.LastReceiverPull(salt, token),
		ControllerSeq: e.engine.ControllerCursor().LastSeq,
	}
}

func (e *executor) CreateLease(ctx context.Context, req dto.CreateLeaseRequest) (*dto.CreateLeaseResponse, error) {
	id, err := e.engine.CreateLease(ctx, req.Caller, engine.LeaseRequest{
		ReceiverSalt:    req.ReceiverSalt,
		Lessee:          req.Lessee,
		DurationSeconds: req.DurationSeconds,
		FeePPM:          req.FeePPM,
		FlatFee:         req.FlatFee,
		Payout:          req.Payout.Domain(),
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.CreateLeaseResponse{
		OperationResponse: *e.committed(ctx),
		LeaseID:           id,
	}
	if receiver, err := e.engine.PredictReceiver(req.ReceiverSalt); err == nil {
		resp.Receiver = receiver
	}
	return resp, nil
}

func (e *executor) UpdatePayout(ctx context.Context, leaseID uint64, req dto.UpdatePayoutRequest) (*dto.OperationResponse, error) {
	return e.ack(ctx, e.engine.UpdatePayout(ctx, req.Caller, engine.PayoutUpdate{
		LeaseID:   leaseID,
		Payout:    req.Payout.Domain(),
		Deadline:  req.Deadline,
		Signature: req.Signature,
	}))
}

func (e *executor) CloseLease(ctx context.Context, leaseID uint64, caller common.Address) (*dto.OperationResponse, error) {
	return e.ack(ctx, e.engine.CloseLease(ctx, caller, leaseID))
}

func (e *executor) NukeLease(ctx context.Context, leaseID uint64) (*engine.NukeResult, error) {
	result, err := e.engine.NukeLease(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (e *executor) RecognizeDeposit(ctx context.Context, req dto.RecognizeDepositRequest) (*engine.RecognizeResult, error) {
	result, err := e.engine.RecognizeDeposit(ctx, req.Caller, engine.Deposit{
		ReceiverSalt: req.ReceiverSalt,
		Token:        req.Token,
		RawAmount:    dto.BigInt(req.RawAmount),
		TxID:         req.TxID,
		Timestamp:    req.Timestamp,
		Calldata:     req.Calldata,
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (e *executor) PreEntitle(ctx context.Context, req dto.PreEntitleRequest) (*domain.SubjectivePreEntitlement, error) {
	return e.engine.PreEntitle(ctx, req.Caller, engine.PreEntitlementRequest{
		TxID:         req.TxID,
		ReceiverSalt: req.ReceiverSalt,
		RawAmount:    dto.BigInt(req.RawAmount),
	})
}

func (e *executor) Fill(ctx context.Context, req dto.FillRequest) (*engine.FillResult, error) {
	result, err := e.engine.Fill(ctx, req.TargetToken, req.MaxClaims, req.DomainCalls())
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (e *executor) LpDeposit(ctx context.Context, req dto.AmountRequest) (*dto.OperationResponse, error) {
	return e.ack(ctx, e.engine.LpDeposit(ctx, req.Caller, dto.BigInt(req.Amount)))
}

func (e *executor) LpWithdraw(ctx context.Context, req dto.AmountRequest) (*dto.OperationResponse, error) {
	return e.ack(ctx, e.engine.LpWithdraw(ctx, req.Caller, dto.BigInt(req.Amount)))
}

func (e *executor) WithdrawProtocolProfit(ctx context.Context, req dto.TransferRequest) (*dto.OperationResponse, error) {
	return e.ack(ctx, e.engine.WithdrawProtocolProfit(ctx, req.Caller, req.To, dto.BigInt(req.Amount)))
}

func (e *executor) RescueTokens(ctx context.Context, req dto.TransferRequest) (*dto.OperationResponse, error) {
	return e.ack(ctx, e.engine.RescueTokens(ctx, req.Caller, req.Token, req.To, dto.BigInt(req.Amount)))
}

func (e *executor) SetAllowed(ctx context.Context, list Allowlist, req dto.AllowlistRequest) (*dto.OperationResponse, error) {
	var err error
	switch list {
	case AllowlistRealtor:
		err = e.engine.SetRealtor(ctx, req.Caller, req.Account, req.Allowed)
	case AllowlistLP:
		err = e.engine.SetLpAllowed(ctx, req.Caller, req.Account, req.Allowed)
	case AllowlistSponsor:
		err = e.engine.SetSubjectiveSponsor(ctx, req.Caller, req.Account, req.Allowed)
	default:
		return nil, apierrors.NewBadRequestError(fmt.Sprintf("unknown allowlist: %s", list))
	}
	return e.ack(ctx, err)
}

func (e *executor) SetProtocolFloors(ctx context.Context, req dto.ProtocolFloorsRequest) (*dto.OperationResponse, error) {
	return e.ack(ctx, e.engine.SetProtocolFloors(ctx, req.Caller, req.FloorPPM, req.FloorFlatFee, req.MaxLeaseDurationSeconds))
}

func (e *executor) SetRealtorSettings(ctx context.Context, realtor common.Address, req dto.RealtorSettingsRequest) (*dto.OperationResponse, error) {
	if req.MinFeePPM != nil {
		if err := e.engine.SetRealtorMinFee(ctx, req.Caller, realtor, *req.MinFeePPM, *req.MinFlatFee); err != nil {
			return nil, err
		}
	}
	if req.MaxLeaseDurationSeconds != nil {
		if err := e.engine.SetRealtorMaxLeaseDuration(ctx, req.Caller, realtor, *req.MaxLeaseDurationSeconds); err != nil {
			return nil, err
		}
	}
	if req.LeaseRateLimit != nil {
		if err := e.engine.SetLeaseRateLimit(ctx, req.Caller, realtor, *req.LeaseRateLimit); err != nil {
			return nil, err
		}
	}
	return e.committed(ctx), nil
}

func (e *executor) SetPayoutRateLimit(ctx context.Context, req dto.RateLimitRequest) (*dto.OperationResponse, error) {
	return e.ack(ctx, e.engine.SetPayoutConfigRateLimit(ctx, req.Caller, req.Limit))
}

func (e *executor) SetSwapRate(ctx context.Context, token common.Address, req dto.SwapRateRequest) (*dto.OperationResponse, error) {
	return e.ack(ctx, e.engine.SetSwapRate(ctx, req.Caller, token, dto.BigInt(req.RatePPM)))
}

func (e *executor) SetChainDeprecated(ctx context.Context, chainID *big.Int, req dto.ChainDeprecatedRequest) (*dto.OperationResponse, error) {
	return e.ack(ctx, e.engine.SetChainDeprecated(ctx, req.Caller, chainID, req.Deprecated))
}

func (e *executor) SetPaused(ctx context.Context, paused bool, req dto.Operator) (*dto.OperationResponse, error) {
	if paused {
		return e.ack(ctx, e.engine.Pause(ctx, req.Caller))
	}
	return e.ack(ctx, e.engine.Unpause(ctx, req.Caller))
}

func (e *executor) TransferOwnership(ctx context.Context, req dto.TransferOwnershipRequest) (*dto.OperationResponse, error) {
	return e.ack(ctx, e.engine.TransferOwnership(ctx, req.Caller, req.NewOwner))
}
