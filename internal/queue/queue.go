package queue

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/journal"
)

// tokenQueue holds the claims of one target token. Slots in [head, next) are either live
// claims or tombstones left by Drop; only the head slot is ever physically removed.
type tokenQueue struct {
	head   uint64
	next   uint64
	claims map[uint64]*domain.Claim
}

// Queue is the set of per-target-token FIFO claim queues
type Queue struct {
	journal  *journal.Journal
	queues   map[common.Address]*tokenQueue
	locators map[domain.ClaimKey]domain.Locator
}

// New creates an empty claim queue set
func New(j *journal.Journal) *Queue {
	return &Queue{
		journal:  j,
		queues:   make(map[common.Address]*tokenQueue),
		locators: make(map[domain.ClaimKey]domain.Locator),
	}
}

func (q *Queue) queue(token common.Address, create bool) *tokenQueue {
	tq, ok := q.queues[token]
	if !ok && create {
		tq = &tokenQueue{claims: make(map[uint64]*domain.Claim)}
		journal.SetMap(q.journal, q.queues, token, tq)
	}
	return tq
}

// Enqueue appends the claim to the queue of claim.TargetToken and returns its queue index
func (q *Queue) Enqueue(claim *domain.Claim) uint64 {
	tq := q.queue(claim.TargetToken, true)
	idx := tq.next

	journal.Set(q.journal, &claim.QueueIndex, idx)
	journal.SetMap(q.journal, tq.claims, idx, claim)
	journal.Set(q.journal, &tq.next, idx+1)
	journal.SetMap(q.journal, q.locators, claim.Key(), domain.Locator{TargetToken: claim.TargetToken, QueueIndex: idx})
	return idx
}

// PeekHeadBatch returns up to n live claims from the head, in queue order
func (q *Queue) PeekHeadBatch(token common.Address, n uint64) []*domain.Claim {
	tq := q.queue(token, false)
	if tq == nil || n == 0 {
		return nil
	}
	out := make([]*domain.Claim, 0)
	for idx := tq.head; idx < tq.next && uint64(len(out)) < n; idx++ {
		if c, ok := tq.claims[idx]; ok {
			out = append(out, c)
		}
	}
	return out
}

// PopHead removes and returns the head claim. An empty queue is left unchanged.
func (q *Queue) PopHead(token common.Address) (*domain.Claim, bool) {
	tq := q.queue(token, false)
	if tq == nil || tq.head == tq.next {
		return nil, false
	}
	claim, ok := tq.claims[tq.head]
	if !ok {
		return nil, false
	}
	journal.DeleteMap(q.journal, tq.claims, tq.head)
	journal.DeleteMap(q.journal, q.locators, claim.Key())
	journal.Set(q.journal, &tq.head, tq.head+1)
	q.skipTombstones(tq)
	return claim, true
}

// Drop tombstones a claim in place. The slot is reclaimed once it reaches the head.
func (q *Queue) Drop(loc domain.Locator) (*domain.Claim, bool) {
	tq := q.queue(loc.TargetToken, false)
	if tq == nil {
		return nil, false
	}
	claim, ok := tq.claims[loc.QueueIndex]
	if !ok {
		return nil, false
	}
	journal.DeleteMap(q.journal, tq.claims, loc.QueueIndex)
	journal.DeleteMap(q.journal, q.locators, claim.Key())
	q.skipTombstones(tq)
	return claim, true
}

func (q *Queue) skipTombstones(tq *tokenQueue) {
	head := tq.head
	for head < tq.next {
		if _, ok := tq.claims[head]; ok {
			break
		}
		head++
	}
	if head != tq.head {
		journal.Set(q.journal, &tq.head, head)
	}
}

// LocatorOf maps (lease_id, seq_in_lease) to the claim's queue slot
func (q *Queue) LocatorOf(key domain.ClaimKey) (domain.Locator, bool) {
	loc, ok := q.locators[key]
	return loc, ok
}

// ClaimAt returns the live claim at a queue slot
func (q *Queue) ClaimAt(loc domain.Locator) (*domain.Claim, bool) {
	tq := q.queue(loc.TargetToken, false)
	if tq == nil {
		return nil, false
	}
	c, ok := tq.claims[loc.QueueIndex]
	return c, ok
}

// HeadIndex returns the queue index of the head slot
func (q *Queue) HeadIndex(token common.Address) uint64 {
	if tq := q.queue(token, false); tq != nil {
		return tq.head
	}
	return 0
}

// NextIndex returns the index the next enqueued claim will receive
func (q *Queue) NextIndex(token common.Address) uint64 {
	if tq := q.queue(token, false); tq != nil {
		return tq.next
	}
	return 0
}

// Pending returns the number of live claims in the token's queue
func (q *Queue) Pending(token common.Address) int {
	if tq := q.queue(token, false); tq != nil {
		return len(tq.claims)
	}
	return 0
}

// Tokens returns every target token that has a queue
func (q *Queue) Tokens() []common.Address {
	out := make([]common.Address, 0, len(q.queues))
	for token := range q.queues {
		out = append(out, token)
	}
	return out
}
