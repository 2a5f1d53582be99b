package queue

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/untron/untron-v3-engine/internal/domain"
)

// TokenState is a serializable copy of one token queue. Claims holds the live claims
// only; tombstoned slots are implied by the gaps between Head and Next.
type TokenState struct {
	Token  common.Address  `json:"token"`
	Head   uint64          `json:"head"`
	Next   uint64          `json:"next"`
	Claims []*domain.Claim `json:"claims"`
}

// State is a serializable copy of every token queue
type State struct {
	Queues []TokenState `json:"queues"`
}

// Export returns a deep copy of the queues ordered by token, claims in queue order
func (q *Queue) Export() State {
	tokens := q.Tokens()
	slices.SortFunc(tokens, func(a, b common.Address) int {
		return bytes.Compare(a.Bytes(), b.Bytes())
	})

	s := State{Queues: make([]TokenState, 0, len(tokens))}
	for _, token := range tokens {
		tq := q.queues[token]
		ts := TokenState{Token: token, Head: tq.head, Next: tq.next, Claims: make([]*domain.Claim, 0, len(tq.claims))}
		for idx := tq.head; idx < tq.next; idx++ {
			if c, ok := tq.claims[idx]; ok {
				ts.Claims = append(ts.Claims, c.Clone())
			}
		}
		s.Queues = append(s.Queues, ts)
	}
	return s
}

// Import replaces every queue with s and rebuilds the claim locators. It bypasses the
// journal, so it must not run inside an operation.
func (q *Queue) Import(s State) error {
	queues := make(map[common.Address]*tokenQueue, len(s.Queues))
	locators := make(map[domain.ClaimKey]domain.Locator)

	for _, ts := range s.Queues {
		if ts.Head > ts.Next {
			return fmt.Errorf("queue %s head %d is past next %d", ts.Token.Hex(), ts.Head, ts.Next)
		}
		if _, dup := queues[ts.Token]; dup {
			return fmt.Errorf("duplicate queue %s", ts.Token.Hex())
		}
		tq := &tokenQueue{head: ts.Head, next: ts.Next, claims: make(map[uint64]*domain.Claim, len(ts.Claims))}
		for _, claim := range ts.Claims {
			if claim == nil || claim.TargetToken != ts.Token || claim.QueueIndex < ts.Head || claim.QueueIndex >= ts.Next {
				return fmt.Errorf("claim outside of queue %s", ts.Token.Hex())
			}
			if _, dup := tq.claims[claim.QueueIndex]; dup {
				return fmt.Errorf("duplicate slot %d in queue %s", claim.QueueIndex, ts.Token.Hex())
			}
			c := claim.Clone()
			tq.claims[c.QueueIndex] = c
			locators[c.Key()] = domain.Locator{TargetToken: ts.Token, QueueIndex: c.QueueIndex}
		}
		queues[ts.Token] = tq
	}

	q.queues = queues
	q.locators = locators
	return nil
}
