package dto

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/store/schema"
)

// OperationResponse acknowledges a committed operation
type OperationResponse struct {
	RequestID string      `json:"request_id"`
	Status    string      `json:"status"`
	HubSeq    uint64      `json:"hub_seq"`
	HubTip    common.Hash `json:"hub_tip"`
}

// CreateLeaseResponse is returned after opening a lease
type CreateLeaseResponse struct {
	OperationResponse
	LeaseID  uint64         `json:"lease_id"`
	Receiver common.Address `json:"receiver"`
}

// LeaseListResponse lists the leases of a receiver salt, oldest first
type LeaseListResponse struct {
	ReceiverSalt  common.Hash     `json:"receiver_salt"`
	Receiver      common.Address  `json:"receiver"`
	ActiveLeaseID *uint64         `json:"active_lease_id,omitempty"`
	Leases        []*domain.Lease `json:"leases"`
}

// PendingClaimsResponse lists the claims at the head of a queue
type PendingClaimsResponse struct {
	TargetToken common.Address  `json:"target_token"`
	HeadIndex   uint64          `json:"head_index"`
	NextIndex   uint64          `json:"next_index"`
	Claims      []*domain.Claim `json:"claims"`
}

// EventChainHeadResponse is the current head of an event chain
type EventChainHeadResponse struct {
	Seq uint64      `json:"seq"`
	Tip common.Hash `json:"tip"`
}

// EventChainEntry is one event chain link
type EventChainEntry struct {
	Seq            uint64        `json:"seq"`
	PrevTip        common.Hash   `json:"prev_tip"`
	NewTip         common.Hash   `json:"new_tip"`
	BlockNumber    uint64        `json:"block_number"`
	BlockTimestamp uint64        `json:"block_timestamp"`
	EventSignature common.Hash   `json:"event_signature"`
	Payload        hexutil.Bytes `json:"abi_encoded_event_data"`
}

// EventChainRangeResponse lists a contiguous range of event chain entries
type EventChainRangeResponse struct {
	From    uint64            `json:"from"`
	To      uint64            `json:"to"`
	Entries []EventChainEntry `json:"entries"`
}

// Event is a persisted log emitted by the hub
type Event struct {
	Seq       uint64                 `json:"seq"`
	Name      string                 `json:"name"`
	Address   string                 `json:"address"`
	Topics    []string               `json:"topics"`
	Data      hexutil.Bytes          `json:"data"`
	Args      map[string]interface{} `json:"args"`
	CreatedAt time.Time              `json:"created_at"`
}

// EventListResponse is a page of persisted events
type EventListResponse struct {
	Events []Event `json:"events"`
	Total  uint64  `json:"total"`
	Offset uint64  `json:"offset"`
	Limit  int     `json:"limit"`
}

// AccountingResponse reports the protocol accounting, with an LP's principal when asked
type AccountingResponse struct {
	PnL              *big.Int        `json:"pnl"`
	TotalLpPrincipal *big.Int        `json:"total_lp_principal"`
	FrontedLiquidity *big.Int        `json:"fronted_liquidity"`
	LP               *common.Address `json:"lp,omitempty"`
	LpPrincipal      *big.Int        `json:"lp_principal,omitempty"`
}

// DepositResponse reports what the hub knows about a Tron deposit
type DepositResponse struct {
	TxID           common.Hash                      `json:"tx_id"`
	Processed      bool                             `json:"processed"`
	PreEntitlement *domain.SubjectivePreEntitlement `json:"pre_entitlement,omitempty"`
}

// ReceiverPullResponse reports the last controller pull of a receiver for a token
type ReceiverPullResponse struct {
	ReceiverSalt  common.Hash    `json:"receiver_salt"`
	Token         common.Address `json:"token"`
	LastPulledAt  uint64         `json:"last_pulled_at"`
	ControllerSeq uint64         `json:"controller_seq"`
}

// EntriesFromDomain converts event chain entries
func EntriesFromDomain(entries []domain.EventChainEntry) []EventChainEntry {
	out := make([]EventChainEntry, len(entries))
	for i, e := range entries {
		out[i] = EventChainEntry{
			Seq:            e.Seq,
			PrevTip:        e.PrevTip,
			NewTip:         e.NewTip,
			BlockNumber:    e.BlockNumber,
			BlockTimestamp: e.BlockTimestamp,
			EventSignature: e.Signature,
			Payload:        e.Payload,
		}
	}
	return out
}

// EventFromSchema converts a persisted event
func EventFromSchema(e *schema.EmittedEvent, topics []string, args map[string]interface{}) Event {
	return Event{
		Seq:       e.EventSeq,
		Name:      e.Name,
		Address:   e.Address,
		Topics:    topics,
		Data:      e.Data,
		Args:      args,
		CreatedAt: e.CreatedAt,
	}
}
