package journal

import (
	"context"
	"sync"
)

// DefaultCapacity is the number of entries a [MemStore] keeps by default.
const DefaultCapacity = 512

var _ Store = (*MemStore)(nil)

// MemStore keeps the most recent entries in memory. Older entries are
// evicted first. Thread-safe for concurrent use.
type MemStore struct {
	mu      sync.Mutex
	entries []Entry
	cap     int
}

// NewMemStore returns a MemStore holding at most capacity entries. A
// non-positive capacity selects [DefaultCapacity].
func NewMemStore(capacity int) *MemStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemStore{cap: capacity}
}

func (m *MemStore) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	if over := len(m.entries) - m.cap; over > 0 {
		m.entries = append(m.entries[:0:0], m.entries[over:]...)
	}
	return nil
}

func (m *MemStore) Recent(_ context.Context, tab string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return filterRecent(m.entries, tab, limit), nil
}

func (m *MemStore) Close() error { return nil }

// filterRecent returns the last limit entries matching tab, oldest first.
func filterRecent(all []Entry, tab string, limit int) []Entry {
	out := []Entry{}
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if tab == "" || all[i].Tab == tab {
			out = append(out, all[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
