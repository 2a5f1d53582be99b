package lease

import (
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/untron/untron-v3-engine/internal/domain"
)

// State is a serializable copy of the book
type State struct {
	NextID uint64          `json:"next_id"`
	Leases []*domain.Lease `json:"leases"`
}

// Export returns a deep copy of the book with leases ordered by id
func (b *Book) Export() State {
	ids := make([]uint64, 0, len(b.leases))
	for id := range b.leases {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	s := State{NextID: b.nextID, Leases: make([]*domain.Lease, 0, len(ids))}
	for _, id := range ids {
		s.Leases = append(s.Leases, b.leases[id].Clone())
	}
	return s
}

// Import replaces the book's contents with s. It bypasses the journal, so it must not
// run inside an operation.
func (b *Book) Import(s State) error {
	nextID := max(s.NextID, 1)
	sorted := slices.Clone(s.Leases)
	slices.SortFunc(sorted, func(x, y *domain.Lease) int {
		switch {
		case x == nil || y == nil:
			return 0
		case x.ID < y.ID:
			return -1
		case x.ID > y.ID:
			return 1
		}
		return 0
	})

	leases := make(map[uint64]*domain.Lease, len(sorted))
	bySalt := make(map[common.Hash][]uint64)
	for _, l := range sorted {
		if l == nil || l.ID == 0 || l.ID >= nextID {
			return fmt.Errorf("lease outside of the id range [1, %d)", nextID)
		}
		if _, dup := leases[l.ID]; dup {
			return fmt.Errorf("duplicate lease %d", l.ID)
		}
		c := l.Clone()
		leases[c.ID] = c
		bySalt[c.ReceiverSalt] = append(bySalt[c.ReceiverSalt], c.ID)
	}

	b.leases = leases
	b.bySalt = bySalt
	b.nextID = nextID
	return nil
}
