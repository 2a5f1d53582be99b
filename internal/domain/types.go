package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LeaseStatus represents the lifecycle state of a lease
type LeaseStatus string

const (
	// LeaseStatusCreated is a lease that has not recognized any deposit yet
	LeaseStatusCreated LeaseStatus = "created"
	// LeaseStatusActive is a lease that has recognized at least one deposit
	LeaseStatusActive LeaseStatus = "active"
	// LeaseStatusClosed is a lease closed by its lessee or superseded after expiry
	LeaseStatusClosed LeaseStatus = "closed"
	// LeaseStatusNuked is a lease forcibly terminated after nukeable_after
	LeaseStatusNuked LeaseStatus = "nuked"
)

// PayoutConfig describes where the proceeds of a lease's claims are sent
type PayoutConfig struct {
	TargetChainID *big.Int       `json:"target_chain_id"`
	TargetToken   common.Address `json:"target_token"`
	Beneficiary   common.Address `json:"beneficiary"`
}

// Clone returns a deep copy of the payout config
func (p PayoutConfig) Clone() PayoutConfig {
	return PayoutConfig{
		TargetChainID: cloneBig(p.TargetChainID),
		TargetToken:   p.TargetToken,
		Beneficiary:   p.Beneficiary,
	}
}

// Lease is a time-boxed reservation of a receiver salt to a (realtor, lessee) pair
type Lease struct {
	ID            uint64         `json:"id"`
	ReceiverSalt  common.Hash    `json:"receiver_salt"`
	LeaseNumber   uint64         `json:"lease_number"`
	Realtor       common.Address `json:"realtor"`
	Lessee        common.Address `json:"lessee"`
	StartTime     uint64         `json:"start_time"`
	NukeableAfter uint64         `json:"nukeable_after"`
	FeePPM        uint32         `json:"lease_fee_ppm"`
	FlatFee       uint64         `json:"flat_fee"`
	Payout        PayoutConfig   `json:"payout"`
	Nonce         uint64         `json:"nonce"`
	Status        LeaseStatus    `json:"status"`

	// RecognizedRaw is the total raw amount recognized against the lease
	RecognizedRaw *big.Int `json:"recognized_raw"`
	// BackedRaw is the raw amount backing claims that are still queued
	BackedRaw *big.Int `json:"backed_raw"`
	// UnbackedRaw is the raw amount recognized without a claim
	UnbackedRaw *big.Int `json:"unbacked_raw"`
	// SettledRaw is the raw amount of claims that were filled or dropped
	SettledRaw *big.Int `json:"settled_raw"`

	// ClaimCount is the number of claims ever created for the lease (next seq_in_lease)
	ClaimCount uint64 `json:"claim_count"`
}

// IsOpen reports whether the lease may still accrue claims
func (l *Lease) IsOpen() bool {
	return l.Status == LeaseStatusCreated || l.Status == LeaseStatusActive
}

// Clone returns a deep copy of the lease
func (l *Lease) Clone() *Lease {
	if l == nil {
		return nil
	}
	c := *l
	c.Payout = l.Payout.Clone()
	c.RecognizedRaw = cloneBig(l.RecognizedRaw)
	c.BackedRaw = cloneBig(l.BackedRaw)
	c.UnbackedRaw = cloneBig(l.UnbackedRaw)
	c.SettledRaw = cloneBig(l.SettledRaw)
	return &c
}

// OriginKind identifies what produced a claim
type OriginKind uint8

const (
	// OriginKindDeposit is a claim created from a recognized Tron deposit
	OriginKindDeposit OriginKind = iota
	// OriginKindSubjective is a claim reserved by a trusted sponsor before the deposit is recognized
	OriginKindSubjective
	// OriginKindReceiverPull is a claim created from a controller receiver pull
	OriginKindReceiverPull
)

func (k OriginKind) String() string {
	switch k {
	case OriginKindDeposit:
		return "deposit"
	case OriginKindSubjective:
		return "subjective"
	case OriginKindReceiverPull:
		return "receiver_pull"
	default:
		return "unknown"
	}
}

// Origin describes the event a claim was born from
type Origin struct {
	Kind      OriginKind     `json:"kind"`
	ID        common.Hash    `json:"id"`
	Actor     common.Address `json:"actor"`
	Token     common.Address `json:"token"`
	Timestamp uint64         `json:"timestamp"`
	RawAmount *big.Int       `json:"raw_amount"`
}

// Claim is an outstanding obligation to pay a lease beneficiary
type Claim struct {
	ID            uint64         `json:"id"`
	LeaseID       uint64         `json:"lease_id"`
	SeqInLease    uint64         `json:"seq_in_lease"`
	TargetToken   common.Address `json:"target_token"`
	QueueIndex    uint64         `json:"queue_index"`
	AmountUSDT    *big.Int       `json:"amount_usdt"`
	TargetChainID *big.Int       `json:"target_chain_id"`
	Beneficiary   common.Address `json:"beneficiary"`
	Origin        Origin         `json:"origin"`
}

// Key returns the (lease_id, seq_in_lease) key of the claim
func (c *Claim) Key() ClaimKey {
	return ClaimKey{LeaseID: c.LeaseID, SeqInLease: c.SeqInLease}
}

// Clone returns a deep copy of the claim
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	cp := *c
	cp.AmountUSDT = cloneBig(c.AmountUSDT)
	cp.TargetChainID = cloneBig(c.TargetChainID)
	cp.Origin.RawAmount = cloneBig(c.Origin.RawAmount)
	return &cp
}

// ClaimKey locates a claim inside its lease
type ClaimKey struct {
	LeaseID    uint64 `json:"lease_id"`
	SeqInLease uint64 `json:"seq_in_lease"`
}

// Locator locates a claim inside its target token queue
type Locator struct {
	TargetToken common.Address `json:"target_token"`
	QueueIndex  uint64         `json:"queue_index"`
}

// Call is a single sub-call handed to the swap executor.
// Field names follow the (address to, uint256 value, bytes data) tuple.
type Call struct {
	To    common.Address `json:"to"`
	Value *big.Int       `json:"value"`
	Data  []byte         `json:"data"`
}

// EventChainEntry is one link of a hash-linked event chain
type EventChainEntry struct {
	Seq            uint64      `json:"seq"`
	PrevTip        common.Hash `json:"prev_tip"`
	NewTip         common.Hash `json:"new_tip"`
	BlockNumber    uint64      `json:"block_number"`
	BlockTimestamp uint64      `json:"block_timestamp"`
	Signature      common.Hash `json:"event_signature"`
	Payload        []byte      `json:"abi_encoded_payload"`
}

// ControllerCursor tracks how far the controller event chain has been mirrored
type ControllerCursor struct {
	LastSeq   uint64      `json:"last_seq"`
	LastTip   common.Hash `json:"last_tip"`
	NextIndex uint64      `json:"next_index"`
}

// SubjectivePreEntitlement is a sponsor's reservation for a not-yet-recognized deposit
type SubjectivePreEntitlement struct {
	TxID       common.Hash    `json:"tx_id"`
	Sponsor    common.Address `json:"sponsor"`
	LeaseID    uint64         `json:"lease_id"`
	RawAmount  *big.Int       `json:"raw_amount"`
	AmountUSDT *big.Int       `json:"amount_usdt"`
	QueueIndex uint64         `json:"queue_index"`
	ClaimID    uint64         `json:"claim_id"`
}

// PnlReason tags a protocol PnL delta
type PnlReason uint8

const (
	PnlReasonFillFee PnlReason = iota
	PnlReasonNuke
	PnlReasonLpDeposit
	PnlReasonLpWithdraw
	PnlReasonRescue
	PnlReasonSubjectiveForward
	// PnlReasonProfitWithdraw is protocol profit withdrawn by the owner
	PnlReasonProfitWithdraw
)

func (r PnlReason) String() string {
	switch r {
	case PnlReasonFillFee:
		return "fill_fee"
	case PnlReasonNuke:
		return "nuke"
	case PnlReasonLpDeposit:
		return "lp_deposit"
	case PnlReasonLpWithdraw:
		return "lp_withdraw"
	case PnlReasonRescue:
		return "rescue"
	case PnlReasonSubjectiveForward:
		return "subjective_forward"
	case PnlReasonProfitWithdraw:
		return "profit_withdraw"
	default:
		return "unknown"
	}
}

// RateLimit is a (max operations, window) pair
type RateLimit struct {
	Max           uint64 `json:"max" mapstructure:"max"`
	WindowSeconds uint64 `json:"window_seconds" mapstructure:"window_seconds"`
}

// Enabled reports whether the limit is configured
func (r RateLimit) Enabled() bool {
	return r.Max > 0 && r.WindowSeconds > 0
}

// EventRecord is a log emitted by the hub: topics plus data, as an EVM log would carry them
type EventRecord struct {
	Name    string                 `json:"name"`
	Address common.Address         `json:"address"`
	Topics  []common.Hash          `json:"topics"`
	Data    []byte                 `json:"data"`
	Args    map[string]interface{} `json:"args"`
	// Entry is the event chain link the event was appended as; nil for EventAppended itself
	Entry *EventChainEntry `json:"entry,omitempty"`
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
