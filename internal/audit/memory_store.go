package audit

import (
	"context"
	"sync"
)

const (
	defaultMaxEntries   = 10000
	defaultMaxSnapshots = 1000
)

// MemoryStore implements Store in memory with bounded FIFO retention.
// When a bound is reached the oldest record is evicted.
type MemoryStore struct {
	mu           sync.RWMutex
	maxEntries   int
	maxSnapshots int

	entries []*Entry

	snapshots map[string]*Snapshot
	order     []string

	evictedEntries   int64
	evictedSnapshots int64
}

// NewMemoryStore creates an in-memory audit store. Non-positive bounds
// fall back to the defaults.
func NewMemoryStore(maxEntries, maxSnapshots int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if maxSnapshots <= 0 {
		maxSnapshots = defaultMaxSnapshots
	}
	return &MemoryStore{
		maxEntries:   maxEntries,
		maxSnapshots: maxSnapshots,
		snapshots:    make(map[string]*Snapshot),
	}
}

func (m *MemoryStore) AppendEntry(_ context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= m.maxEntries {
		drop := len(m.entries) - m.maxEntries + 1
		m.entries = append([]*Entry(nil), m.entries[drop:]...)
		m.evictedEntries += int64(drop)
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryStore) Entries(_ context.Context, q EntryQuery) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	// Walk backwards so the newest entries come first.
	results := make([]*Entry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(results) < limit; i-- {
		e := m.entries[i]
		if q.Operation != "" && e.Operation != q.Operation {
			continue
		}
		results = append(results, e)
	}
	return results, nil
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.snapshots[snap.RequestID]; exists {
		m.snapshots[snap.RequestID] = snap
		return nil
	}

	if len(m.order) >= m.maxSnapshots {
		oldest := m.order[0]
		m.order = append([]string(nil), m.order[1:]...)
		delete(m.snapshots, oldest)
		m.evictedSnapshots++
	}
	m.snapshots[snap.RequestID] = snap
	m.order = append(m.order, snap.RequestID)
	return nil
}

func (m *MemoryStore) Snapshot(_ context.Context, requestID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshots[requestID], nil
}

func (m *MemoryStore) Snapshots(_ context.Context, limit int) ([]*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	results := make([]*Snapshot, 0, limit)
	for i := len(m.order) - 1; i >= 0 && len(results) < limit; i-- {
		results = append(results, m.snapshots[m.order[i]])
	}
	return results, nil
}

// Evicted reports how many entries and snapshots have been dropped by
// the retention bounds.
func (m *MemoryStore) Evicted() (entries, snapshots int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.evictedEntries, m.evictedSnapshots
}
