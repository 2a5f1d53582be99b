package journal

// Journal records undo actions for state changes made during an operation so that a
// failed operation can be reverted in full. A nil *Journal records nothing.
type Journal struct {
	entries []func()
}

// New creates an empty journal
func New() *Journal {
	return &Journal{entries: make([]func(), 0, 64)}
}

// Append registers an undo action
func (j *Journal) Append(undo func()) {
	if j == nil {
		return
	}
	j.entries = append(j.entries, undo)
}

// Snapshot returns an identifier for the current journal position
func (j *Journal) Snapshot() int {
	if j == nil {
		return 0
	}
	return len(j.entries)
}

// RevertToSnapshot undoes every change made after the snapshot, newest first
func (j *Journal) RevertToSnapshot(id int) {
	if j == nil {
		return
	}
	for i := len(j.entries) - 1; i >= id; i-- {
		j.entries[i]()
		j.entries[i] = nil
	}
	j.entries = j.entries[:id]
}

// Reset drops all entries, making the current state final
func (j *Journal) Reset() {
	if j == nil {
		return
	}
	for i := range j.entries {
		j.entries[i] = nil
	}
	j.entries = j.entries[:0]
}

// Length returns the number of recorded entries
func (j *Journal) Length() int {
	if j == nil {
		return 0
	}
	return len(j.entries)
}

// SetMap sets m[k] = v and records how to restore the previous entry
func SetMap[K comparable, V any](j *Journal, m map[K]V, k K, v V) {
	prev, existed := m[k]
	m[k] = v
	j.Append(func() {
		if existed {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
}

// DeleteMap deletes m[k] and records how to restore it
func DeleteMap[K comparable, V any](j *Journal, m map[K]V, k K) {
	prev, existed := m[k]
	if !existed {
		return
	}
	delete(m, k)
	j.Append(func() {
		m[k] = prev
	})
}

// Set assigns *p = v and records how to restore the previous value
func Set[T any](j *Journal, p *T, v T) {
	prev := *p
	*p = v
	j.Append(func() {
		*p = prev
	})
}
