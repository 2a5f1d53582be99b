package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/untron/untron-v3-engine/internal/codec"
	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/logger"
	"github.com/untron/untron-v3-engine/internal/store/schema"
)

const (
	defaultEventsLimit = 100

	engineStateKey = "engine_state"
)

type pgStore struct {
	CursorStore
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{
		CursorStore: NewCursorStore(db),
		db:          db,
	}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// It accesses the underlying *sql.DB and sets the pool configuration.
// If any of the pool settings are 0 or empty, reasonable defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// calculateSafeBatchSize computes the batch size for bulk inserts that stays under
// PostgreSQL's limit of 65535 parameters per query, keeping a fixed headroom for
// GORM-added columns and the ON CONFLICT clause.
func calculateSafeBatchSize(totalRecords int, fieldsPerRecord int) int {
	const maxParams = 65535
	const totalHeadroom = 1000

	availableParams := maxParams - totalHeadroom
	safeBatchSize := max(availableParams/fieldsPerRecord, 1)

	if safeBatchSize > totalRecords {
		return totalRecords
	}

	return safeBatchSize
}

// SaveEvents persists the chain entries and logs of a committed batch in one transaction.
// An EventAppended log is stored under the seq of the entry it announces.
func (s *pgStore) SaveEvents(ctx context.Context, records []*domain.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveEvents(tx, records)
	})
}

// SaveCommit persists a committed batch and the engine state it produced in one
// transaction. A batch without records only replaces the state.
func (s *pgStore) SaveCommit(ctx context.Context, records []*domain.EventRecord, state []byte) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveEvents(tx, records); err != nil {
			return err
		}
		kv := schema.KeyValueStore{
			Key:   engineStateKey,
			Value: string(state),
		}
		if err := tx.Save(&kv).Error; err != nil {
			return fmt.Errorf("failed to save engine state: %w", err)
		}
		return nil
	})
}

// LoadEngineState returns the engine state saved with the last commit, nil when none
func (s *pgStore) LoadEngineState(ctx context.Context) ([]byte, error) {
	value, err := s.GetKeyValue(ctx, engineStateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load engine state: %w", err)
	}
	if value == "" {
		return nil, nil
	}
	return []byte(value), nil
}

func saveEvents(tx *gorm.DB, records []*domain.EventRecord) error {
	if len(records) == 0 {
		return nil
	}

	entries := make([]schema.EventChainEntry, 0, len(records)/2)
	events := make([]schema.EmittedEvent, 0, len(records))

	var seq uint64
	for _, r := range records {
		if r.Entry != nil {
			seq = r.Entry.Seq
			entries = append(entries, schema.EventChainEntry{
				Seq:            r.Entry.Seq,
				PrevTip:        r.Entry.PrevTip.Hex(),
				NewTip:         r.Entry.NewTip.Hex(),
				BlockNumber:    r.Entry.BlockNumber,
				BlockTimestamp: r.Entry.BlockTimestamp,
				EventSignature: r.Entry.Signature.Hex(),
				EventName:      r.Name,
				Payload:        r.Entry.Payload,
			})
		}

		topics := make([]string, len(r.Topics))
		for i, t := range r.Topics {
			topics[i] = t.Hex()
		}
		topicsJSON, err := json.Marshal(topics)
		if err != nil {
			return fmt.Errorf("failed to marshal topics of %s: %w", r.Name, err)
		}
		argsJSON, err := json.Marshal(r.Args)
		if err != nil {
			return fmt.Errorf("failed to marshal args of %s: %w", r.Name, err)
		}

		events = append(events, schema.EmittedEvent{
			EventSeq: seq,
			Name:     r.Name,
			Address:  r.Address.Hex(),
			Topics:   topicsJSON,
			Data:     r.Data,
			Args:     argsJSON,
		})
	}

	if len(entries) > 0 {
		batchSize := calculateSafeBatchSize(len(entries), 8)
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "seq"}},
			DoNothing: true,
		}).CreateInBatches(&entries, batchSize).Error; err != nil {
			return fmt.Errorf("failed to save event chain entries: %w", err)
		}
	}

	batchSize := calculateSafeBatchSize(len(events), 6)
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_seq"}, {Name: "name"}},
		DoNothing: true,
	}).CreateInBatches(&events, batchSize).Error; err != nil {
		return fmt.Errorf("failed to save emitted events: %w", err)
	}

	return nil
}

// LoadEventChain returns every persisted hub event chain entry ordered by seq
func (s *pgStore) LoadEventChain(ctx context.Context) ([]domain.EventChainEntry, error) {
	var rows []schema.EventChainEntry
	err := s.db.WithContext(ctx).Order("seq ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load event chain: %w", err)
	}

	entries := make([]domain.EventChainEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.EventChainEntry{
			Seq:            row.Seq,
			PrevTip:        common.HexToHash(row.PrevTip),
			NewTip:         common.HexToHash(row.NewTip),
			BlockNumber:    row.BlockNumber,
			BlockTimestamp: row.BlockTimestamp,
			Signature:      common.HexToHash(row.EventSignature),
			Payload:        row.Payload,
		})
	}

	logger.DebugCtx(ctx, "Loaded hub event chain", zap.Int("entries", len(entries)))
	return entries, nil
}

// GetEventChainHead returns the highest persisted seq and its tip
func (s *pgStore) GetEventChainHead(ctx context.Context) (uint64, string, error) {
	var row schema.EventChainEntry
	err := s.db.WithContext(ctx).Order("seq DESC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, "", nil
		}
		return 0, "", fmt.Errorf("failed to get event chain head: %w", err)
	}

	return row.Seq, row.NewTip, nil
}

// GetEvents retrieves emitted events with optional filters and pagination
func (s *pgStore) GetEvents(ctx context.Context, filter EventQueryFilter) ([]*schema.EmittedEvent, uint64, error) {
	query := s.db.WithContext(ctx).Model(&schema.EmittedEvent{})

	if len(filter.Names) > 0 {
		for _, name := range filter.Names {
			if _, ok := codec.Event(name); !ok {
				return nil, 0, fmt.Errorf("%w: %s", domain.ErrUnknownEvent, name)
			}
		}
		query = query.Where("name IN ?", filter.Names)
	}
	if filter.FromSeq != nil {
		query = query.Where("event_seq >= ?", *filter.FromSeq)
	}
	if filter.ToSeq != nil {
		query = query.Where("event_seq <= ?", *filter.ToSeq)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count emitted events: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventsLimit
	}
	order := "event_seq ASC, id ASC"
	if filter.OrderDesc {
		order = "event_seq DESC, id DESC"
	}

	var events []*schema.EmittedEvent
	err := query.Order(order).Limit(limit).Offset(int(filter.Offset)).Find(&events).Error //nolint:gosec,G115
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get emitted events: %w", err)
	}

	return events, uint64(total), nil //nolint:gosec,G115
}

// SetKeyValue sets a key-value pair in the key-value store
func (s *pgStore) SetKeyValue(ctx context.Context, key string, value string) error {
	kv := schema.KeyValueStore{
		Key:   key,
		Value: value,
	}

	err := s.db.WithContext(ctx).Save(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set key-value: %w", err)
	}

	return nil
}

// GetKeyValue retrieves a value by key from the key-value store
func (s *pgStore) GetKeyValue(ctx context.Context, key string) (string, error) {
	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get key-value: %w", err)
	}

	return kv.Value, nil
}
