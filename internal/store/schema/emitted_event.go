package schema

import (
	"time"

	"gorm.io/datatypes"
)

// EmittedEvent represents the emitted_events table - every log the hub emitted, decoded
type EmittedEvent struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// EventSeq is the hub event chain seq the log belongs to
	EventSeq uint64 `gorm:"column:event_seq;not null;type:bigint;uniqueIndex:idx_emitted_events_seq_name"`
	// Name is the event name
	Name string `gorm:"column:name;not null;type:text;uniqueIndex:idx_emitted_events_seq_name;index:idx_emitted_events_name"`
	// Address is the emitting contract
	Address string `gorm:"column:address;not null;type:text"`
	// Topics holds topic0 and the indexed arguments as hex strings
	Topics datatypes.JSON `gorm:"column:topics;not null;type:jsonb"`
	// Data is the non-indexed arguments, head-tail encoded
	Data []byte `gorm:"column:data;type:bytea"`
	// Args contains the decoded arguments keyed by parameter name
	Args datatypes.JSON `gorm:"column:args;type:jsonb;index:idx_emitted_events_args,type:gin"`
	// CreatedAt is the timestamp when this record was persisted
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the EmittedEvent model
func (EmittedEvent) TableName() string {
	return "emitted_events"
}
