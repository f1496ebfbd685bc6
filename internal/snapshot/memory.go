package snapshot

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// MemoryCatalog keeps datasets in process. Used by tests and local runs
// without Postgres.
type MemoryCatalog struct {
	mu       sync.RWMutex
	datasets map[string][]Row
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{datasets: make(map[string][]Row)}
}

func (m *MemoryCatalog) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for n := range m.datasets {
		if strings.HasPrefix(n, prefix) {
			names = append(names, n)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (m *MemoryCatalog) Publish(_ context.Context, name string, rows []Row, overwrite bool) error {
	cp := make([]Row, len(rows))
	for i, r := range rows {
		cp[i] = r
		cp[i].Occupancy = slices.Clone(r.Occupancy)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.datasets[name]; exists && !overwrite {
		return fmt.Errorf("%s: %w", name, ErrDatasetExists)
	}
	m.datasets[name] = cp
	return nil
}

func (m *MemoryCatalog) Scan(_ context.Context, name, routeSubstr string, limit int) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.datasets[name]
	if !ok {
		return nil, &StorageError{Op: "scan", Err: fmt.Errorf("dataset %q not found", name)}
	}
	return FilterRows(rows, routeSubstr, limit), nil
}

func (m *MemoryCatalog) Ping(context.Context) error { return nil }
