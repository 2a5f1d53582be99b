package lease

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/journal"
)

// Book owns every lease record. Lease ids start at 1; lease numbers count per receiver salt.
// All mutations go through the book so that they are journaled.
type Book struct {
	journal *journal.Journal
	leases  map[uint64]*domain.Lease
	bySalt  map[common.Hash][]uint64
	nextID  uint64
}

// New creates an empty lease book
func New(j *journal.Journal) *Book {
	return &Book{
		journal: j,
		leases:  make(map[uint64]*domain.Lease),
		bySalt:  make(map[common.Hash][]uint64),
		nextID:  1,
	}
}

// Create registers a lease, assigning its id and lease number
func (b *Book) Create(l *domain.Lease) *domain.Lease {
	ids := b.bySalt[l.ReceiverSalt]

	l.ID = b.nextID
	l.LeaseNumber = uint64(len(ids)) + 1
	l.Status = domain.LeaseStatusCreated
	for _, v := range []**big.Int{&l.RecognizedRaw, &l.BackedRaw, &l.UnbackedRaw, &l.SettledRaw} {
		if *v == nil {
			*v = new(big.Int)
		}
	}

	journal.Set(b.journal, &b.nextID, b.nextID+1)
	journal.SetMap(b.journal, b.leases, l.ID, l)
	journal.SetMap(b.journal, b.bySalt, l.ReceiverSalt, append(ids[:len(ids):len(ids)], l.ID))
	return l
}

// Get returns the lease with the given id
func (b *Book) Get(id uint64) (*domain.Lease, bool) {
	l, ok := b.leases[id]
	return l, ok
}

// Latest returns the most recent lease on a receiver salt
func (b *Book) Latest(salt common.Hash) (*domain.Lease, bool) {
	ids := b.bySalt[salt]
	if len(ids) == 0 {
		return nil, false
	}
	return b.leases[ids[len(ids)-1]], true
}

// Active returns the open lease on a receiver salt
func (b *Book) Active(salt common.Hash) (*domain.Lease, bool) {
	l, ok := b.Latest(salt)
	if !ok || !l.IsOpen() {
		return nil, false
	}
	return l, true
}

// BySalt returns every lease on a receiver salt, oldest first
func (b *Book) BySalt(salt common.Hash) []*domain.Lease {
	ids := b.bySalt[salt]
	out := make([]*domain.Lease, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.leases[id])
	}
	return out
}

// Count returns the number of leases ever created
func (b *Book) Count() uint64 {
	return b.nextID - 1
}

// SetStatus moves the lease to a new lifecycle state
func (b *Book) SetStatus(l *domain.Lease, status domain.LeaseStatus) {
	journal.Set(b.journal, &l.Status, status)
}

// SetPayout overwrites the payout config
func (b *Book) SetPayout(l *domain.Lease, payout domain.PayoutConfig) {
	journal.Set(b.journal, &l.Payout, payout.Clone())
}

// ConsumeNonce increments the lease nonce and returns the new value
func (b *Book) ConsumeNonce(l *domain.Lease) uint64 {
	journal.Set(b.journal, &l.Nonce, l.Nonce+1)
	return l.Nonce
}

// NextClaimSeq reserves the next seq_in_lease
func (b *Book) NextClaimSeq(l *domain.Lease) uint64 {
	seq := l.ClaimCount
	journal.Set(b.journal, &l.ClaimCount, seq+1)
	return seq
}

// Recognize accrues raw deposit value as recognized and unbacked
func (b *Book) Recognize(l *domain.Lease, raw *big.Int) {
	journal.Set(b.journal, &l.RecognizedRaw, new(big.Int).Add(l.RecognizedRaw, raw))
	journal.Set(b.journal, &l.UnbackedRaw, new(big.Int).Add(l.UnbackedRaw, raw))
}

// Back moves raw value from unbacked to backed when a claim is enqueued for it
func (b *Book) Back(l *domain.Lease, raw *big.Int) {
	journal.Set(b.journal, &l.UnbackedRaw, new(big.Int).Sub(l.UnbackedRaw, raw))
	journal.Set(b.journal, &l.BackedRaw, new(big.Int).Add(l.BackedRaw, raw))
}

// Settle releases backing of a claim that was filled or dropped
func (b *Book) Settle(l *domain.Lease, raw *big.Int) {
	journal.Set(b.journal, &l.BackedRaw, new(big.Int).Sub(l.BackedRaw, raw))
	journal.Set(b.journal, &l.SettledRaw, new(big.Int).Add(l.SettledRaw, raw))
}

// Balanced reports whether backed + unbacked == recognized - settled
func Balanced(l *domain.Lease) bool {
	lhs := new(big.Int).Add(l.BackedRaw, l.UnbackedRaw)
	rhs := new(big.Int).Sub(l.RecognizedRaw, l.SettledRaw)
	return lhs.Cmp(rhs) == 0 && l.BackedRaw.Sign() >= 0 && l.UnbackedRaw.Sign() >= 0
}
