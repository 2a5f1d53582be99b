package controller

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/eventchain"
	"github.com/untron/untron-v3-engine/internal/journal"
)

// Mirror is a cursor over the controller's event chain. It accepts remote entries strictly
// in order and only when they extend the last accepted tip.
type Mirror struct {
	mu      sync.RWMutex
	journal *journal.Journal
	genesis common.Hash
	cursor  domain.ControllerCursor
}

// NewMirror creates a cursor positioned at the genesis tip of the controller chain
func NewMirror(genesis common.Hash, j *journal.Journal) *Mirror {
	return &Mirror{
		journal: j,
		genesis: genesis,
		cursor:  domain.ControllerCursor{LastTip: genesis},
	}
}

// Genesis returns the tip the cursor started from
func (m *Mirror) Genesis() common.Hash {
	return m.genesis
}

// Cursor returns the current cursor
func (m *Mirror) Cursor() domain.ControllerCursor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cursor
}

// Restore positions the cursor at a persisted state
func (m *Mirror) Restore(cursor domain.ControllerCursor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cursor.LastSeq == 0 && cursor.LastTip == (common.Hash{}) {
		cursor.LastTip = m.genesis
	}
	m.cursor = cursor
}

// Advance accepts the next remote entry. On failure the cursor is unchanged.
func (m *Mirror) Advance(entry domain.EventChainEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.PrevTip != m.cursor.LastTip {
		return domain.ErrNotEventChainTip
	}
	if entry.Seq <= m.cursor.LastSeq {
		return domain.ErrEventRelayNoProgress
	}
	// A correct prev tip with a skipped seq cannot extend the chain either
	if entry.Seq != m.cursor.LastSeq+1 {
		return domain.ErrNotEventChainTip
	}
	if !eventchain.Verify(entry) {
		return domain.ErrEventTipMismatch
	}

	prev := m.cursor
	m.cursor = domain.ControllerCursor{
		LastSeq:   entry.Seq,
		LastTip:   entry.NewTip,
		NextIndex: prev.NextIndex + 1,
	}
	m.journal.Append(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cursor = prev
	})
	return nil
}
