package domain

import (
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
)

// ProtocolError is a named failure of a hub operation. Callers identify it by its
// 4-byte selector, keccak256(name + "()")[:4].
type ProtocolError struct {
	Name string
}

func (e *ProtocolError) Error() string {
	return e.Name
}

// Selector returns the 4-byte error selector
func (e *ProtocolError) Selector() [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(e.Name + "()"))[:4])
	return sel
}

var protocolErrors = map[string]*ProtocolError{}

func newProtocolError(name string) *ProtocolError {
	e := &ProtocolError{Name: name}
	protocolErrors[name] = e
	return e
}

// ProtocolErrorByName returns the registered protocol error with the given name
func ProtocolErrorByName(name string) (*ProtocolError, bool) {
	e, ok := protocolErrors[name]
	return e, ok
}

// ProtocolErrors returns every registered protocol error
func ProtocolErrors() []*ProtocolError {
	out := make([]*ProtocolError, 0, len(protocolErrors))
	for _, e := range protocolErrors {
		out = append(out, e)
	}
	return out
}

// AsProtocolError extracts the protocol error wrapped in err, if any
func AsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// Authorisation
var (
	ErrUnauthorized          = newProtocolError("Unauthorized")
	ErrNotRealtor            = newProtocolError("NotRealtor")
	ErrNotLessee             = newProtocolError("NotLessee")
	ErrLpNotAllowlisted      = newProtocolError("LpNotAllowlisted")
	ErrNewOwnerIsZeroAddress = newProtocolError("NewOwnerIsZeroAddress")
)

// State machine
var (
	ErrAlreadyInitialized                    = newProtocolError("AlreadyInitialized")
	ErrNoActiveLease                         = newProtocolError("NoActiveLease")
	ErrInvalidLeaseID                        = newProtocolError("InvalidLeaseId")
	ErrLeaseNotNukeableYet                   = newProtocolError("LeaseNotNukeableYet")
	ErrDepositAlreadyProcessed               = newProtocolError("DepositAlreadyProcessed")
	ErrSubjectivePreEntitlementAlreadyExists = newProtocolError("SubjectivePreEntitlementAlreadyExists")
)

// Value and range
var (
	ErrZeroAmount             = newProtocolError("ZeroAmount")
	ErrAmountTooLargeForInt   = newProtocolError("AmountTooLargeForInt")
	ErrLeaseFeeTooLow         = newProtocolError("LeaseFeeTooLow")
	ErrLeaseFlatFeeTooLow     = newProtocolError("LeaseFlatFeeTooLow")
	ErrLeaseDurationTooLong   = newProtocolError("LeaseDurationTooLong")
	ErrInvalidLeaseTimeframe  = newProtocolError("InvalidLeaseTimeframe")
	ErrInvalidTargetToken     = newProtocolError("InvalidTargetToken")
	ErrInvalidReceiverForSalt = newProtocolError("InvalidReceiverForSalt")
	ErrSubjectiveNetOutZero   = newProtocolError("SubjectiveNetOutZero")
)

// Resources
var (
	ErrInsufficientUsdtBalance    = newProtocolError("InsufficientUsdtBalance")
	ErrInsufficientLpPrincipal    = newProtocolError("InsufficientLpPrincipal")
	ErrInsufficientProtocolProfit = newProtocolError("InsufficientProtocolProfit")
	ErrWithdrawExceedsPrincipal   = newProtocolError("WithdrawExceedsPrincipal")
	ErrNoBridger                  = newProtocolError("NoBridger")
	ErrRateNotSet                 = newProtocolError("RateNotSet")
)

// Rate limits
var (
	ErrLeaseRateLimitExceeded             = newProtocolError("LeaseRateLimitExceeded")
	ErrPayoutConfigRateLimitExceeded      = newProtocolError("PayoutConfigRateLimitExceeded")
	ErrLeaseRateLimitConfigInvalid        = newProtocolError("LeaseRateLimitConfigInvalid")
	ErrPayoutConfigRateLimitConfigInvalid = newProtocolError("PayoutConfigRateLimitConfigInvalid")
)

// Protocol integrity
var (
	ErrReentrancy                      = newProtocolError("Reentrancy")
	ErrEnforcedPause                   = newProtocolError("EnforcedPause")
	ErrExpectedPause                   = newProtocolError("ExpectedPause")
	ErrEventTipMismatch                = newProtocolError("EventTipMismatch")
	ErrNotEventChainTip                = newProtocolError("NotEventChainTip")
	ErrEventRelayNoProgress            = newProtocolError("EventRelayNoProgress")
	ErrDepositNotAfterLastReceiverPull = newProtocolError("DepositNotAfterLastReceiverPull")
	ErrChainDeprecated                 = newProtocolError("ChainDeprecated")
	ErrCannotRescueUSDT                = newProtocolError("CannotRescueUSDT")
	ErrNotTronUsdt                     = newProtocolError("NotTronUsdt")
	ErrTronInvalidCalldataLength       = newProtocolError("TronInvalidCalldataLength")
)

// Signatures
var (
	ErrInvalidSignature = newProtocolError("InvalidSignature")
	ErrSignatureExpired = newProtocolError("SignatureExpired")
)

var (
	// ErrLeaseNotFound is returned by lookups of an unknown lease id
	ErrLeaseNotFound = errors.New("lease not found")

	// ErrClaimNotFound is returned by lookups of an unknown claim
	ErrClaimNotFound = errors.New("claim not found")

	// ErrEntryNotFound is returned when an event chain entry does not exist
	ErrEntryNotFound = errors.New("event chain entry not found")

	// ErrUnknownEvent is returned when a query names an event the hub does not emit
	ErrUnknownEvent = errors.New("unknown event")
)
