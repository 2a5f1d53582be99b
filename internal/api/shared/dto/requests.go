package dto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/untron/untron-v3-engine/internal/api/shared/constants"
	apierrors "github.com/untron/untron-v3-engine/internal/api/shared/errors"
	"github.com/untron/untron-v3-engine/internal/domain"
)

// Amount is a uint256 given either as a decimal or a 0x-prefixed hex string
type Amount = math.HexOrDecimal256

// BigInt returns the amount as a big.Int, zero when nil
func BigInt(a *Amount) *big.Int {
	if a == nil {
		return new(big.Int)
	}
	return new(big.Int).Set((*big.Int)(a))
}

// Operator carries the account an operator request acts for. When the caller authenticated
// with a JWT whose subject is an address, the subject takes precedence.
type Operator struct {
	Caller common.Address `json:"caller"`
}

// SetCaller overrides the caller named in the body
func (o *Operator) SetCaller(caller common.Address) {
	o.Caller = caller
}

// Validate validates the caller
func (o *Operator) Validate() error {
	if o.Caller == (common.Address{}) {
		return apierrors.NewValidationError("caller is required")
	}
	return nil
}

// PayoutConfig is the payout route of a lease
type PayoutConfig struct {
	TargetChainID *Amount        `json:"target_chain_id"`
	TargetToken   common.Address `json:"target_token"`
	Beneficiary   common.Address `json:"beneficiary"`
}

// Domain converts the payout route to its domain form
func (p PayoutConfig) Domain() domain.PayoutConfig {
	return domain.PayoutConfig{
		TargetChainID: BigInt(p.TargetChainID),
		TargetToken:   p.TargetToken,
		Beneficiary:   p.Beneficiary,
	}
}

// CreateLeaseRequest represents the request body for opening a lease
type CreateLeaseRequest struct {
	Operator
	ReceiverSalt    common.Hash    `json:"receiver_salt"`
	Lessee          common.Address `json:"lessee"`
	DurationSeconds uint64         `json:"duration_seconds"`
	FeePPM          uint32         `json:"lease_fee_ppm"`
	FlatFee         uint64         `json:"flat_fee"`
	Payout          PayoutConfig   `json:"payout"`
}

// Validate validates the request body
func (r *CreateLeaseRequest) Validate() error {
	if err := r.Operator.Validate(); err != nil {
		return err
	}
	if r.Payout.TargetChainID == nil {
		return apierrors.NewValidationError("payout.target_chain_id is required")
	}
	return nil
}

// UpdatePayoutRequest represents the request body for changing the payout route of a lease.
// Without a signature the caller must be the lessee.
type UpdatePayoutRequest struct {
	Operator
	Payout    PayoutConfig  `json:"payout"`
	Deadline  uint64        `json:"deadline"`
	Signature hexutil.Bytes `json:"signature,omitempty"`
}

// Validate validates the request body
func (r *UpdatePayoutRequest) Validate() error {
	if len(r.Signature) == 0 {
		if err := r.Operator.Validate(); err != nil {
			return err
		}
	}
	if r.Payout.TargetChainID == nil {
		return apierrors.NewValidationError("payout.target_chain_id is required")
	}
	return nil
}

// RecognizeDepositRequest represents the request body for recognizing a proven Tron deposit
type RecognizeDepositRequest struct {
	Operator
	ReceiverSalt common.Hash    `json:"receiver_salt"`
	Token        common.Address `json:"token"`
	RawAmount    *Amount        `json:"raw_amount"`
	TxID         common.Hash    `json:"tx_id"`
	Timestamp    uint64         `json:"timestamp"`
	Calldata     hexutil.Bytes  `json:"calldata,omitempty"`
}

// Validate validates the request body
func (r *RecognizeDepositRequest) Validate() error {
	if err := r.Operator.Validate(); err != nil {
		return err
	}
	if r.RawAmount == nil {
		return apierrors.NewValidationError("raw_amount is required")
	}
	if r.TxID == (common.Hash{}) {
		return apierrors.NewValidationError("tx_id is required")
	}
	return nil
}

// PreEntitleRequest represents the request body of a sponsor reserving a claim
type PreEntitleRequest struct {
	Operator
	TxID         common.Hash `json:"tx_id"`
	ReceiverSalt common.Hash `json:"receiver_salt"`
	RawAmount    *Amount     `json:"raw_amount"`
}

// Validate validates the request body
func (r *PreEntitleRequest) Validate() error {
	if err := r.Operator.Validate(); err != nil {
		return err
	}
	if r.RawAmount == nil {
		return apierrors.NewValidationError("raw_amount is required")
	}
	return nil
}

// Call is one call run by the swap executor
type Call struct {
	To    common.Address `json:"to"`
	Value *Amount        `json:"value"`
	Data  hexutil.Bytes  `json:"data"`
}

// FillRequest represents the request body for filling claims of a target token queue
type FillRequest struct {
	TargetToken common.Address `json:"target_token"`
	MaxClaims   uint64         `json:"max_claims"`
	Calls       []Call         `json:"calls"`
}

// Validate validates the request body and applies the default claim count
func (r *FillRequest) Validate() error {
	if r.MaxClaims == 0 {
		r.MaxClaims = constants.DEFAULT_FILL_MAX_CLAIMS
	}
	if r.MaxClaims > constants.MAX_CLAIMS_PER_FILL {
		return apierrors.NewValidationError(fmt.Sprintf("maximum %d claims per fill", constants.MAX_CLAIMS_PER_FILL))
	}
	return nil
}

// DomainCalls converts the calls to their domain form
func (r *FillRequest) DomainCalls() []domain.Call {
	calls := make([]domain.Call, len(r.Calls))
	for i, c := range r.Calls {
		calls[i] = domain.Call{To: c.To, Value: BigInt(c.Value), Data: c.Data}
	}
	return calls
}

// AmountRequest moves an amount on behalf of the caller (LP deposits and withdrawals)
type AmountRequest struct {
	Operator
	Amount *Amount `json:"amount"`
}

// Validate validates the request body
func (r *AmountRequest) Validate() error {
	if err := r.Operator.Validate(); err != nil {
		return err
	}
	if r.Amount == nil {
		return apierrors.NewValidationError("amount is required")
	}
	return nil
}

// TransferRequest sends an amount of a token to an address (profit withdrawal, rescue)
type TransferRequest struct {
	Operator
	Token  common.Address `json:"token"`
	To     common.Address `json:"to"`
	Amount *Amount        `json:"amount"`
}

// Validate validates the request body
func (r *TransferRequest) Validate() error {
	if err := r.Operator.Validate(); err != nil {
		return err
	}
	if r.Amount == nil {
		return apierrors.NewValidationError("amount is required")
	}
	return nil
}

// AllowlistRequest toggles an account on one of the allowlists (realtors, LPs, sponsors)
type AllowlistRequest struct {
	Operator
	Account common.Address `json:"account"`
	Allowed bool           `json:"allowed"`
}

// ProtocolFloorsRequest sets the protocol-wide fee floors and lease duration cap
type ProtocolFloorsRequest struct {
	Operator
	FloorPPM                uint32 `json:"floor_ppm"`
	FloorFlatFee            uint64 `json:"floor_flat_fee"`
	MaxLeaseDurationSeconds uint64 `json:"max_lease_duration_seconds"`
}

// RealtorSettingsRequest sets the per-realtor fee floors, duration cap and lease rate limit
type RealtorSettingsRequest struct {
	Operator
	MinFeePPM               *uint32           `json:"min_fee_ppm,omitempty"`
	MinFlatFee              *uint64           `json:"min_flat_fee,omitempty"`
	MaxLeaseDurationSeconds *uint64           `json:"max_lease_duration_seconds,omitempty"`
	LeaseRateLimit          *domain.RateLimit `json:"lease_rate_limit,omitempty"`
}

// Validate validates the request body
func (r *RealtorSettingsRequest) Validate() error {
	if err := r.Operator.Validate(); err != nil {
		return err
	}
	if (r.MinFeePPM == nil) != (r.MinFlatFee == nil) {
		return apierrors.NewValidationError("min_fee_ppm and min_flat_fee must be set together")
	}
	if r.MinFeePPM == nil && r.MaxLeaseDurationSeconds == nil && r.LeaseRateLimit == nil {
		return apierrors.NewValidationError("no realtor setting given")
	}
	return nil
}

// RateLimitRequest sets the payout config update rate limit
type RateLimitRequest struct {
	Operator
	Limit domain.RateLimit `json:"limit"`
}

// SwapRateRequest sets the expected swap rate of a target token
type SwapRateRequest struct {
	Operator
	RatePPM *Amount `json:"rate_ppm"`
}

// Validate validates the request body
func (r *SwapRateRequest) Validate() error {
	if err := r.Operator.Validate(); err != nil {
		return err
	}
	if r.RatePPM == nil {
		return apierrors.NewValidationError("rate_ppm is required")
	}
	return nil
}

// ChainDeprecatedRequest marks a target chain deprecated
type ChainDeprecatedRequest struct {
	Operator
	Deprecated bool `json:"deprecated"`
}

// TransferOwnershipRequest hands the hub to a new owner
type TransferOwnershipRequest struct {
	Operator
	NewOwner common.Address `json:"new_owner"`
}
