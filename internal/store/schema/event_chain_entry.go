package schema

import "time"

// EventChainEntry represents the event_chain_entries table - the persisted hub event chain
type EventChainEntry struct {
	// Seq is the position of the entry in the chain, starting at 1
	Seq uint64 `gorm:"column:seq;primaryKey;autoIncrement:false"`
	// PrevTip is the tip the entry extends (0x-prefixed hex)
	PrevTip string `gorm:"column:prev_tip;not null;type:text"`
	// NewTip is the tip after the entry (0x-prefixed hex)
	NewTip string `gorm:"column:new_tip;not null;type:text;uniqueIndex:idx_event_chain_entries_new_tip"`
	// BlockNumber is the hub block the entry was stamped with
	BlockNumber uint64 `gorm:"column:block_number;not null;type:bigint"`
	// BlockTimestamp is the hub block timestamp the entry was stamped with
	BlockTimestamp uint64 `gorm:"column:block_timestamp;not null;type:bigint"`
	// EventSignature is topic0 of the appended event
	EventSignature string `gorm:"column:event_signature;not null;type:text"`
	// EventName is the name of the appended event
	EventName string `gorm:"column:event_name;not null;type:text;index:idx_event_chain_entries_event_name"`
	// Payload is abi.encode of every event argument
	Payload []byte `gorm:"column:payload;type:bytea"`
	// CreatedAt is the timestamp when this record was persisted
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the EventChainEntry model
func (EventChainEntry) TableName() string {
	return "event_chain_entries"
}
