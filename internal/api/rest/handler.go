package rest

import (
	"errors"
	"io"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"github.com/untron/untron-v3-engine/internal/api/middleware"
	"github.com/untron/untron-v3-engine/internal/api/shared/dto"
	"github.com/untron/untron-v3-engine/internal/api/shared/executor"
)

// Handler defines the interface for REST API handlers
//
//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)

	// GetSettings returns the owner-managed configuration
	// GET /api/v1/settings
	GetSettings(c *gin.Context)

	// GetLease retrieves a lease by id
	// GET /api/v1/leases/:id
	GetLease(c *gin.Context)

	// GetReceiver lists the leases of a receiver salt
	// GET /api/v1/receivers/:salt
	GetReceiver(c *gin.Context)

	// GetReceiverPull reports the last controller pull of a receiver for a token
	// GET /api/v1/receivers/:salt/pulls/:token
	GetReceiverPull(c *gin.Context)

	// GetClaim retrieves a claim by id
	// GET /api/v1/claims/:id
	GetClaim(c *gin.Context)

	// ListQueues lists the target token queues
	// GET /api/v1/queues
	ListQueues(c *gin.Context)

	// GetPendingClaims lists the claims at the head of a queue
	// GET /api/v1/queues/:token/claims?limit=<limit>
	GetPendingClaims(c *gin.Context)

	// GetEventChainHead returns the hub event chain head
	// GET /api/v1/event-chain/head
	GetEventChainHead(c *gin.Context)

	// GetEventChainRange returns hub event chain entries
	// GET /api/v1/event-chain/entries?from=<seq>&to=<seq>
	GetEventChainRange(c *gin.Context)

	// GetControllerCursor returns the controller mirror cursor
	// GET /api/v1/controller/cursor
	GetControllerCursor(c *gin.Context)

	// ListEvents lists persisted hub events
	// GET /api/v1/events?name=<name>&from_seq=<seq>&to_seq=<seq>&limit=<limit>&offset=<offset>&order=<order>
	ListEvents(c *gin.Context)

	// GetAccounting returns the protocol accounting
	// GET /api/v1/accounting?lp=<address>
	GetAccounting(c *gin.Context)

	// GetDeposit reports the state of a Tron deposit
	// GET /api/v1/deposits/:tx_id
	GetDeposit(c *gin.Context)

	// CreateLease opens a lease (requires authentication)
	// POST /api/v1/leases
	CreateLease(c *gin.Context)

	// UpdatePayout changes the payout route of a lease (requires authentication)
	// POST /api/v1/leases/:id/payout
	UpdatePayout(c *gin.Context)

	// CloseLease closes a lease (requires authentication)
	// POST /api/v1/leases/:id/close
	CloseLease(c *gin.Context)

	// NukeLease terminates an expired lease (requires authentication)
	// POST /api/v1/leases/:id/nuke
	NukeLease(c *gin.Context)

	// RecognizeDeposit credits a proven Tron deposit (requires authentication)
	// POST /api/v1/deposits
	RecognizeDeposit(c *gin.Context)

	// PreEntitle reserves a claim for an unproven deposit (requires authentication)
	// POST /api/v1/pre-entitlements
	PreEntitle(c *gin.Context)

	// Fill pays out queued claims (requires authentication)
	// POST /api/v1/fills
	Fill(c *gin.Context)

	// LpDeposit books LP principal (requires authentication)
	// POST /api/v1/lp/deposit
	LpDeposit(c *gin.Context)

	// LpWithdraw returns LP principal (requires authentication)
	// POST /api/v1/lp/withdraw
	LpWithdraw(c *gin.Context)

	// SetAllowed toggles an account on an allowlist (realtors, lps, sponsors)
	// POST /api/v1/admin/allowlists/:list
	SetAllowed(c *gin.Context)

	// SetProtocolFloors sets the protocol fee floors
	// POST /api/v1/admin/protocol-floors
	SetProtocolFloors(c *gin.Context)

	// SetRealtorSettings sets per-realtor settings
	// POST /api/v1/admin/realtors/:address
	SetRealtorSettings(c *gin.Context)

	// SetPayoutRateLimit sets the payout update rate limit
	// POST /api/v1/admin/payout-rate-limit
	SetPayoutRateLimit(c *gin.Context)

	// SetSwapRate sets the expected rate of a target token
	// POST /api/v1/admin/swap-rates/:token
	SetSwapRate(c *gin.Context)

	// SetChainDeprecated marks a target chain deprecated
	// POST /api/v1/admin/chains/:chain_id/deprecated
	SetChainDeprecated(c *gin.Context)

	// Pause pauses user operations
	// POST /api/v1/admin/pause
	Pause(c *gin.Context)

	// Unpause resumes user operations
	// POST /api/v1/admin/unpause
	Unpause(c *gin.Context)

	// TransferOwnership hands the hub to a new owner
	// POST /api/v1/admin/ownership
	TransferOwnership(c *gin.Context)

	// WithdrawProtocolProfit sends protocol profit out
	// POST /api/v1/admin/profit/withdraw
	WithdrawProtocolProfit(c *gin.Context)

	// RescueTokens sends stray tokens out
	// POST /api/v1/admin/rescue
	RescueTokens(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	executor executor.Executor
}

// NewHandler creates a new REST API handler using the shared executor
func NewHandler(exec executor.Executor) Handler {
	return &handler{
		executor: exec,
	}
}

// operatorRequest is a request body acting for a caller
type operatorRequest interface {
	SetCaller(caller common.Address)
	Validate() error
}

// bindOperation binds and validates an operation body. An address-shaped JWT subject
// replaces the caller named in the body, so an empty body is accepted.
func bindOperation(c *gin.Context, req operatorRequest) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		respondBadRequest(c, "Invalid request body", err.Error())
		return false
	}
	if subject, ok := middleware.SubjectAddress(c); ok {
		req.SetCaller(subject)
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return false
	}
	return true
}

// parseHashParam parses a 32-byte hex path parameter
func parseHashParam(c *gin.Context, name string) (common.Hash, bool) {
	b, err := hexutil.Decode(c.Param(name))
	if err != nil || len(b) != common.HashLength {
		respondBadRequest(c, "Invalid "+name, c.Param(name))
		return common.Hash{}, false
	}
	return common.BytesToHash(b), true
}

// parseAddressParam parses a hex address path parameter
func parseAddressParam(c *gin.Context, name string) (common.Address, bool) {
	v := c.Param(name)
	if !common.IsHexAddress(v) {
		respondBadRequest(c, "Invalid "+name, v)
		return common.Address{}, false
	}
	return common.HexToAddress(v), true
}

// parseIDParam parses a numeric path parameter
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, err := parseUintParam(c, name)
	if err != nil {
		respondBadRequest(c, err.Error())
		return 0, false
	}
	return id, true
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	head := h.executor.GetEventChainHead(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"hub_seq": head.Seq,
	})
}

func (h *handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.executor.GetSettings(c.Request.Context()))
}

func (h *handler) GetLease(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	lease, err := h.executor.GetLease(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, lease)
}

func (h *handler) GetReceiver(c *gin.Context) {
	salt, ok := parseHashParam(c, "salt")
	if !ok {
		return
	}

	resp, err := h.executor.GetReceiver(c.Request.Context(), salt)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *handler) GetReceiverPull(c *gin.Context) {
	salt, ok := parseHashParam(c, "salt")
	if !ok {
		return
	}
	token, ok := parseAddressParam(c, "token")
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.executor.GetReceiverPull(c.Request.Context(), salt, token))
}

func (h *handler) GetClaim(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	claim, err := h.executor.GetClaim(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, claim)
}

func (h *handler) ListQueues(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"queues": h.executor.GetQueues(c.Request.Context())})
}

func (h *handler) GetPendingClaims(c *gin.Context) {
	token, ok := parseAddressParam(c, "token")
	if !ok {
		return
	}

	queryParams, err := ParsePendingClaimsQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, h.executor.GetPendingClaims(c.Request.Context(), token, queryParams.Limit))
}

func (h *handler) GetEventChainHead(c *gin.Context) {
	c.JSON(http.StatusOK, h.executor.GetEventChainHead(c.Request.Context()))
}

func (h *handler) GetEventChainRange(c *gin.Context) {
	queryParams, err := ParseEventChainRangeQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	resp, err := h.executor.GetEventChainRange(c.Request.Context(), queryParams.From, queryParams.To)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *handler) GetControllerCursor(c *gin.Context) {
	c.JSON(http.StatusOK, h.executor.GetControllerCursor(c.Request.Context()))
}

func (h *handler) ListEvents(c *gin.Context) {
	queryParams, err := ParseListEventsQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	resp, err := h.executor.GetEvents(
		c.Request.Context(),
		queryParams.Names,
		queryParams.FromSeq,
		queryParams.ToSeq,
		queryParams.Limit,
		queryParams.Offset,
		queryParams.Order,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *handler) GetAccounting(c *gin.Context) {
	var lp *common.Address
	if v := c.Query("lp"); v != "" {
		if !common.IsHexAddress(v) {
			respondBadRequest(c, "Invalid lp", v)
			return
		}
		addr := common.HexToAddress(v)
		lp = &addr
	}

	c.JSON(http.StatusOK, h.executor.GetAccounting(c.Request.Context(), lp))
}

func (h *handler) GetDeposit(c *gin.Context) {
	txID, ok := parseHashParam(c, "tx_id")
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.executor.GetDeposit(c.Request.Context(), txID))
}

func (h *handler) CreateLease(c *gin.Context) {
	var req dto.CreateLeaseRequest
	if !bindOperation(c, &req) {
		return
	}

	resp, err := h.executor.CreateLease(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *handler) UpdatePayout(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.UpdatePayoutRequest
	if !bindOperation(c, &req) {
		return
	}

	h.respondOperation(c)(h.executor.UpdatePayout(c.Request.Context(), id, req))
}

func (h *handler) CloseLease(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.Operator
	if !bindOperation(c, &req) {
		return
	}

	h.respondOperation(c)(h.executor.CloseLease(c.Request.Context(), id, req.Caller))
}

func (h *handler) NukeLease(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.executor.NukeLease(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *handler) RecognizeDeposit(c *gin.Context) {
	var req dto.RecognizeDepositRequest
	if !bindOperation(c, &req) {
		return
	}

	result, err := h.executor.RecognizeDeposit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *handler) PreEntitle(c *gin.Context) {
	var req dto.PreEntitleRequest
	if !bindOperation(c, &req) {
		return
	}

	pe, err := h.executor.PreEntitle(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, pe)
}

func (h *handler) Fill(c *gin.Context) {
	var req dto.FillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.executor.Fill(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *handler) LpDeposit(c *gin.Context) {
	var req dto.AmountRequest
	if !bindOperation(c, &req) {
		return
	}

	h.respondOperation(c)(h.executor.LpDeposit(c.Request.Context(), req))
}

func (h *handler) LpWithdraw(c *gin.Context) {
	var req dto.AmountRequest
	if !bindOperation(c, &req) {
		return
	}

	h.respondOperation(c)(h.executor.LpWithdraw(c.Request.Context(), req))
}

func (h *handler) SetAllowed(c *gin.Context) {
	list := executor.Allowlist(c.Param("list"))
	var req dto.AllowlistRequest
	if !bindOperation(c, &req) {
		return
	}

	h.respondOperation(c)(h.executor.SetAllowed(c.Request.Context(), list, req))
}

func (h *handler) SetProtocolFloors(c *gin.Context) {
	var req dto.ProtocolFloorsRequest
	if !bindOperation(c, &req) {
		return
	}

	h.respondOperation(c)(h.executor.SetProtocolFloors(c.Request.Context(), req))
}

func (h *handler) SetRealtorSettings(c *gin.Context) {
	realtor, ok := parseAddressParam(c, "address")
	if !ok {
		return
	}
	var req dto.RealtorSettingsRequest
	if !bindOperation(c, &req) {
		return
	}

	h.respondOperation(c)(h.executor.SetRealtorSettings(c.Request.Context(), realtor, req))
}

func (h *handler) SetPayoutRateLimit(c *gin.Context) {
	var req dto.RateLimitRequest
	if !bindOperation(c, &req) {
		return
	}

	h.respondOperation(c)(h.executor.SetPayoutRateLimit(c.Request.Context(), req))
}

func (h *handler) SetSwapRate(c *gin.Context) {
	token, ok := parseAddressParam(c, "token")
	if !ok {
		return
	}
	var req dto.SwapRateRequest
	if !bindOperation(c, &req) {
		return
	}

	h.respondOperation(c)(h.executor.SetSwapRate(c.Request.Context(), token, req))
}

func (h *handler) SetChainDeprecated(c *gin.Context) {
	chainID, ok := new(big.Int).SetString(c.Param("chain_id"), 10)
	if !ok || chainID.Sign() < 0 {
		respondBadRequest(c, "Invalid chain_id", c.Param("chain_id"))
		return
	}
	var req dto.ChainDeprecatedRequest
	if !bindOperation(c, &req) {
		return
	}

	h.respondOperation(c)(h.executor.SetChainDeprecated(c.Request.Context(), chainID, req))
}

func (h *handler) Pause(c *gin.Context) {
	h.setPaused(c, true)
}

func (h *handler) Unpause(c *gin.Context) {
	h.setPaused(c, false)
}

func (h *handler) setPaused(c *gin.Context, paused bool) {
	var req dto.Operator
	if !bindOperation(c, &req) {
		return
	}

	h.respondOperation(c)(h.executor.SetPaused(c.Request.Context(), paused, req))
}

func (h *handler) TransferOwnership(c *gin.Context) {
	var req dto.TransferOwnershipRequest
	if !bindOperation(c, &req) {
		return
	}

	h.respondOperation(c)(h.executor.TransferOwnership(c.Request.Context(), req))
}

func (h *handler) WithdrawProtocolProfit(c *gin.Context) {
	var req dto.TransferRequest
	if !bindOperation(c, &req) {
		return
	}

	h.respondOperation(c)(h.executor.WithdrawProtocolProfit(c.Request.Context(), req))
}

func (h *handler) RescueTokens(c *gin.Context) {
	var req dto.TransferRequest
	if !bindOperation(c, &req) {
		return
	}

	h.respondOperation(c)(h.executor.RescueTokens(c.Request.Context(), req))
}

// respondOperation writes the acknowledgement of a committed operation or its error
func (h *handler) respondOperation(c *gin.Context) func(*dto.OperationResponse, error) {
	return func(resp *dto.OperationResponse, err error) {
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
