package ratelimit

import (
	"github.com/untron/untron-v3-engine/internal/journal"
)

type bucket struct {
	windowStart uint64
	count       uint64
}

// Window is a keyed windowed counter. A key's window restarts once window seconds have
// passed since it opened; within a window at most max operations are allowed.
type Window[K comparable] struct {
	journal *journal.Journal
	buckets map[K]bucket
}

// NewWindow creates an empty window set
func NewWindow[K comparable](j *journal.Journal) *Window[K] {
	return &Window[K]{
		journal: j,
		buckets: make(map[K]bucket),
	}
}

// Allow records an operation for key at now and reports whether it fits the limit.
// A zero limit or window means the key is unlimited. Denied operations are not counted.
func (w *Window[K]) Allow(key K, now uint64, limit, windowSeconds uint64) bool {
	if limit == 0 || windowSeconds == 0 {
		return true
	}

	b, ok := w.buckets[key]
	if !ok || now < b.windowStart || now-b.windowStart >= windowSeconds {
		b = bucket{windowStart: now}
	}
	if b.count+1 > limit {
		return false
	}
	b.count++
	journal.SetMap(w.journal, w.buckets, key, b)
	return true
}

// Count returns the operations counted in key's current window at now
func (w *Window[K]) Count(key K, now uint64, windowSeconds uint64) uint64 {
	b, ok := w.buckets[key]
	if !ok || now < b.windowStart || now-b.windowStart >= windowSeconds {
		return 0
	}
	return b.count
}

// ValidConfig reports whether a (limit, window) pair may be configured
func ValidConfig(limit, windowSeconds uint64) bool {
	return limit > 0 && windowSeconds > 0
}
