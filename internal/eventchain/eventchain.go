package eventchain

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/journal"
)

var (
	// ErrBrokenLink is returned when restored entries do not chain
	ErrBrokenLink = errors.New("event chain link broken")

	// ErrInvalidRange is returned for an empty or inverted range
	ErrInvalidRange = errors.New("invalid event chain range")
)

// GenesisTip returns the tip of an empty chain: keccak256(name ‖ ".genesis")
func GenesisTip(name string) common.Hash {
	return crypto.Keccak256Hash([]byte(name + ".genesis"))
}

// ComputeTip returns keccak256(prevTip ‖ word(seq) ‖ word(block) ‖ word(timestamp) ‖ signature ‖ payload)
func ComputeTip(prevTip common.Hash, seq, blockNumber, blockTimestamp uint64, signature common.Hash, payload []byte) common.Hash {
	return crypto.Keccak256Hash(
		prevTip[:],
		word(seq),
		word(blockNumber),
		word(blockTimestamp),
		signature[:],
		payload,
	)
}

func word(v uint64) []byte {
	return common.BigToHash(new(big.Int).SetUint64(v)).Bytes()
}

// Verify reports whether the entry's new tip matches its contents
func Verify(e domain.EventChainEntry) bool {
	return ComputeTip(e.PrevTip, e.Seq, e.BlockNumber, e.BlockTimestamp, e.Signature, e.Payload) == e.NewTip
}

// Chain is an append-only hash-linked event log
type Chain struct {
	mu      sync.RWMutex
	name    string
	genesis common.Hash
	seq     uint64
	tip     common.Hash
	// entries[i] holds seq base+i+1
	base    uint64
	entries []domain.EventChainEntry
	journal *journal.Journal
}

// New creates an empty chain. Appends are recorded in j so they can be reverted.
func New(name string, j *journal.Journal) *Chain {
	genesis := GenesisTip(name)
	return &Chain{
		name:    name,
		genesis: genesis,
		tip:     genesis,
		journal: j,
	}
}

// Name returns the chain name
func (c *Chain) Name() string {
	return c.name
}

// Genesis returns the genesis tip
func (c *Chain) Genesis() common.Hash {
	return c.genesis
}

// Append links a new entry onto the chain and returns it
func (c *Chain) Append(signature common.Hash, payload []byte, blockNumber, blockTimestamp uint64) domain.EventChainEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	prevSeq, prevTip, prevLen := c.seq, c.tip, len(c.entries)

	entry := domain.EventChainEntry{
		Seq:            c.seq + 1,
		PrevTip:        c.tip,
		BlockNumber:    blockNumber,
		BlockTimestamp: blockTimestamp,
		Signature:      signature,
		Payload:        append([]byte(nil), payload...),
	}
	entry.NewTip = ComputeTip(entry.PrevTip, entry.Seq, blockNumber, blockTimestamp, signature, entry.Payload)

	c.entries = append(c.entries, entry)
	c.seq = entry.Seq
	c.tip = entry.NewTip

	c.journal.Append(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.seq, c.tip = prevSeq, prevTip
		c.entries = c.entries[:prevLen]
	})

	return entry
}

// CurrentTip returns the tip hash
func (c *Chain) CurrentTip() common.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tip
}

// CurrentSeq returns the sequence number of the last entry
func (c *Chain) CurrentSeq() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq
}

// Head returns (seq, tip) sampled together
func (c *Chain) Head() (uint64, common.Hash) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq, c.tip
}

// Range returns the entries with from <= seq <= to
func (c *Chain) Range(from, to uint64) ([]domain.EventChainEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if from == 0 || from > to {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, from, to)
	}
	if to > c.seq {
		to = c.seq
	}
	if from > to {
		return []domain.EventChainEntry{}, nil
	}
	if from <= c.base {
		return nil, fmt.Errorf("%w: seq %d is not held in memory", domain.ErrEntryNotFound, from)
	}

	out := make([]domain.EventChainEntry, 0, to-from+1)
	out = append(out, c.entries[from-c.base-1:to-c.base]...)
	return out, nil
}

// Restore replaces the chain state with persisted entries. Entries must be contiguous and
// correctly linked; when they start at seq 1 the first prev tip must be the genesis tip.
func (c *Chain) Restore(entries []domain.EventChainEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(entries) == 0 {
		c.base, c.seq, c.tip, c.entries = 0, 0, c.genesis, nil
		return nil
	}

	first := entries[0]
	if first.Seq == 0 {
		return fmt.Errorf("%w: seq starts at 0", ErrBrokenLink)
	}
	if first.Seq == 1 && first.PrevTip != c.genesis {
		return fmt.Errorf("%w: first entry does not extend genesis", ErrBrokenLink)
	}
	for i, e := range entries {
		if !Verify(e) {
			return fmt.Errorf("%w: tip mismatch at seq %d", ErrBrokenLink, e.Seq)
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if e.Seq != prev.Seq+1 || e.PrevTip != prev.NewTip {
			return fmt.Errorf("%w: seq %d does not follow seq %d", ErrBrokenLink, e.Seq, prev.Seq)
		}
	}

	last := entries[len(entries)-1]
	c.base = first.Seq - 1
	c.entries = append([]domain.EventChainEntry(nil), entries...)
	c.seq = last.Seq
	c.tip = last.NewTip
	return nil
}
