package jetstream

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/untron/untron-v3-engine/internal/adapter"
	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/logger"
	"github.com/untron/untron-v3-engine/internal/messaging"
)

const (
	// PublisherName is the sink name of the publisher
	PublisherName = "jetstream"

	defaultDuplicateWindow = 24 * time.Hour
)

// Config holds the configuration for NATS JetStream connection
type Config struct {
	URL            string
	StreamName     string
	SubjectPrefix  string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	// DuplicateWindow is how long the stream remembers message ids
	DuplicateWindow time.Duration
}

type publisher struct {
	nc            adapter.NatsConn
	js            adapter.JetStream
	subjectPrefix string
	json          adapter.JSON
}

// NewPublisher connects to NATS, makes sure the event stream exists and returns a publisher
func NewPublisher(ctx context.Context, cfg Config, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON) (messaging.Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	window := cfg.DuplicateWindow
	if window == 0 {
		window = defaultDuplicateWindow
	}
	err = js.EnsureStream(ctx, jetstream.StreamConfig{
		Name:       cfg.StreamName,
		Subjects:   []string{cfg.SubjectPrefix + ".>"},
		Storage:    jetstream.FileStorage,
		Duplicates: window,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.StreamName, err)
	}

	logger.Info("Connected to NATS JetStream",
		zap.String("url", nc.ConnectedUrl()),
		zap.String("stream", cfg.StreamName))

	return &publisher{
		nc:            nc,
		js:            js,
		subjectPrefix: cfg.SubjectPrefix,
		json:          jsonAdapter,
	}, nil
}

// Name returns the sink name
func (p *publisher) Name() string {
	return PublisherName
}

// HandleEvents publishes every record of a committed batch. The message id is derived from
// the hub event seq so a republished batch is dropped by the stream.
func (p *publisher) HandleEvents(ctx context.Context, records []*domain.EventRecord) error {
	var seq uint64
	for _, r := range records {
		if r.Entry != nil {
			seq = r.Entry.Seq
		}

		msg := BuildMessage(seq, r)
		data, err := p.json.MarshalCanonical(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", r.Name, err)
		}

		_, err = p.js.Publish(ctx, p.subject(r.Name), data, jetstream.WithMsgID(MessageID(seq, r.Name)))
		if err != nil {
			return fmt.Errorf("failed to publish event %s (seq %d): %w", r.Name, seq, err)
		}

		logger.DebugCtx(ctx, "Published event", zap.String("event", r.Name), zap.Uint64("seq", seq))
	}

	return nil
}

// subject constructs the NATS subject of an event, e.g. untron.events.ClaimCreated
func (p *publisher) subject(name string) string {
	return fmt.Sprintf("%s.%s", p.subjectPrefix, name)
}

// Close closes the NATS connection
func (p *publisher) Close() {
	if p.nc == nil {
		return
	}

	p.nc.Close()
}

// MessageID is the deduplication id of an event: EventAppended shares its seq with the event it announces
func MessageID(seq uint64, name string) string {
	return fmt.Sprintf("hub-%d-%s", seq, name)
}

// BuildMessage converts a record into its published form
func BuildMessage(seq uint64, r *domain.EventRecord) messaging.Message {
	topics := make([]string, len(r.Topics))
	for i, t := range r.Topics {
		topics[i] = t.Hex()
	}

	msg := messaging.Message{
		Seq:     seq,
		Name:    r.Name,
		Address: r.Address.Hex(),
		Topics:  topics,
		Data:    hexutil.Encode(r.Data),
		Args:    r.Args,
	}
	if r.Entry != nil {
		msg.PrevTip = r.Entry.PrevTip.Hex()
		msg.NewTip = r.Entry.NewTip.Hex()
	}
	return msg
}
