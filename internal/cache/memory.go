package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store. Used for tests and for runs without a
// database configured.
type Memory struct {
	mu      sync.Mutex
	entries map[Fingerprint]*Entry
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[Fingerprint]*Entry)}
}

// Get returns the cached payload for a fingerprint.
func (m *Memory) Get(ctx context.Context, fp Fingerprint) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[fp]
	if !ok {
		return "", false, nil
	}
	entry.HitCount++
	return entry.Payload, true, nil
}

// Put stores a response, overwriting any prior entry for the key.
func (m *Memory) Put(ctx context.Context, fp Fingerprint, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[fp] = &entry
	return nil
}

// Clear removes all entries.
func (m *Memory) Clear(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.entries))
	m.entries = make(map[Fingerprint]*Entry)
	return n, nil
}

// Stats reports entry count and approximate payload size.
func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := Stats{Entries: int64(len(m.entries))}
	for _, entry := range m.entries {
		stats.ApproxSizeBytes += int64(len(entry.Payload))
		stats.TotalHits += entry.HitCount
	}
	return stats, nil
}
