package messaging

import (
	"context"

	"github.com/untron/untron-v3-engine/internal/domain"
)

// Publisher defines the interface for publishing committed protocol events to a message broker
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// Name identifies the publisher as an event sink
	Name() string
	// HandleEvents publishes one committed batch, in order
	HandleEvents(ctx context.Context, records []*domain.EventRecord) error
	// Close closes the connection
	Close()
}

// Message is the body of a published event
type Message struct {
	Seq     uint64                 `json:"seq"`
	Name    string                 `json:"name"`
	Address string                 `json:"address"`
	Topics  []string               `json:"topics"`
	Data    string                 `json:"data"`
	Args    map[string]interface{} `json:"args"`
	PrevTip string                 `json:"prevTip,omitempty"`
	NewTip  string                 `json:"newTip,omitempty"`
}
