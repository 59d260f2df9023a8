package bonus

import (
	"context"
	"fmt"
	"sync"
)

// CountStore stores the visit counts of hash keys in a number of
// tables, one per bucket size of a SimHash
type CountStore interface {
	// Inc increments the count of each key in table by one. Repeated
	// keys are incremented once per occurrence.
	Inc(ctx context.Context, table int, keys []uint64) error

	// Counts returns the count of each key in table
	Counts(ctx context.Context, table int, keys []uint64) ([]int, error)

	// Distinct returns the number of distinct keys seen in table
	Distinct(ctx context.Context, table int) (int, error)
}

// MemoryStore is a CountStore holding sparse tables in memory. It is
// safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	tables []map[uint64]int
}

// NewMemoryStore returns a new, empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) table(i int) (map[uint64]int, error) {
	if i < 0 {
		return nil, fmt.Errorf("table: negative table index %v", i)
	}
	for len(m.tables) <= i {
		m.tables = append(m.tables, make(map[uint64]int))
	}
	return m.tables[i], nil
}

// Inc implements the CountStore interface
func (m *MemoryStore) Inc(_ context.Context, table int, keys []uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(table)
	if err != nil {
		return fmt.Errorf("inc: %w", err)
	}
	for _, k := range keys {
		t[k]++
	}
	return nil
}

// Counts implements the CountStore interface
func (m *MemoryStore) Counts(_ context.Context, table int,
	keys []uint64) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make([]int, len(keys))
	if table < 0 {
		return nil, fmt.Errorf("counts: negative table index %v", table)
	}
	if table >= len(m.tables) {
		return counts, nil
	}
	for i, k := range keys {
		counts[i] = m.tables[table][k]
	}
	return counts, nil
}

// Distinct implements the CountStore interface
func (m *MemoryStore) Distinct(_ context.Context, table int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if table < 0 || table >= len(m.tables) {
		return 0, nil
	}
	return len(m.tables[table]), nil
}

// Tables returns a copy of the count tables
func (m *MemoryStore) Tables() []map[uint64]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tables := make([]map[uint64]int, len(m.tables))
	for i, t := range m.tables {
		tables[i] = make(map[uint64]int, len(t))
		for k, v := range t {
			tables[i][k] = v
		}
	}
	return tables
}

// SetTables replaces the count tables
func (m *MemoryStore) SetTables(tables []map[uint64]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = tables
}
