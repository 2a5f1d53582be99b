package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/store/schema"
)

const controllerProgressKey = "controller_progress"

// ControllerProgress is how far the controller relay got
type ControllerProgress struct {
	Cursor    domain.ControllerCursor `json:"cursor"`
	NextBlock uint64                  `json:"next_block"`
}

// CursorStore defines the interface for storing and retrieving the controller relay progress
type CursorStore interface {
	// GetControllerProgress retrieves the relay progress, nil if none was stored
	GetControllerProgress(ctx context.Context) (*ControllerProgress, error)
	// SetControllerProgress stores the mirror cursor and the next controller block to read
	SetControllerProgress(ctx context.Context, cursor domain.ControllerCursor, nextBlock uint64) error
}

type cursorStore struct {
	db *gorm.DB
}

// NewCursorStore creates a new cursor store
func NewCursorStore(db *gorm.DB) CursorStore {
	return &cursorStore{db: db}
}

// GetControllerProgress retrieves the relay progress
func (s *cursorStore) GetControllerProgress(ctx context.Context) (*ControllerProgress, error) {
	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", controllerProgressKey).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // Nothing relayed yet
		}
		return nil, fmt.Errorf("failed to get controller progress: %w", err)
	}

	var progress ControllerProgress
	if err := json.Unmarshal([]byte(kv.Value), &progress); err != nil {
		return nil, fmt.Errorf("failed to parse controller progress: %w", err)
	}

	return &progress, nil
}

// SetControllerProgress stores the relay progress
func (s *cursorStore) SetControllerProgress(ctx context.Context, cursor domain.ControllerCursor, nextBlock uint64) error {
	value, err := json.Marshal(ControllerProgress{Cursor: cursor, NextBlock: nextBlock})
	if err != nil {
		return fmt.Errorf("failed to marshal controller progress: %w", err)
	}

	kv := schema.KeyValueStore{
		Key:   controllerProgressKey,
		Value: string(value),
	}

	err = s.db.WithContext(ctx).Save(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set controller progress: %w", err)
	}

	return nil
}
