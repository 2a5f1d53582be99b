package ratelimit

// Bucket is a serializable copy of one key's window
type Bucket struct {
	WindowStart uint64 `json:"window_start"`
	Count       uint64 `json:"count"`
}

// Export returns a copy of every key's window
func (w *Window[K]) Export() map[K]Bucket {
	out := make(map[K]Bucket, len(w.buckets))
	for k, b := range w.buckets {
		out[k] = Bucket{WindowStart: b.windowStart, Count: b.count}
	}
	return out
}

// Import replaces every window with buckets. It bypasses the journal, so it must not
// run inside an operation.
func (w *Window[K]) Import(buckets map[K]Bucket) {
	w.buckets = make(map[K]bucket, len(buckets))
	for k, b := range buckets {
		w.buckets[k] = bucket{windowStart: b.WindowStart, count: b.Count}
	}
}
