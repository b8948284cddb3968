package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBackend is an in-process grid. It backs the memory:// DSN and the
// test suites; semantics match the remote backends (missing sheets read as
// empty, updates must land on an existing row).
type MemoryBackend struct {
	mu     sync.Mutex
	order  []string
	sheets map[string][][]string
}

// NewMemoryBackend returns an empty in-process grid.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sheets: make(map[string][][]string)}
}

func (m *MemoryBackend) SheetExists(_ context.Context, title string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sheets[title]
	return ok, nil
}

func (m *MemoryBackend) CreateSheet(_ context.Context, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[title]; !ok {
		m.order = append(m.order, title)
	}
	m.sheets[title] = [][]string{}
	return nil
}

func (m *MemoryBackend) ReadRows(_ context.Context, title string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.sheets[title]
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

func (m *MemoryBackend) AppendRow(_ context.Context, title string, cells []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[title]; !ok {
		// Appending to a missing sheet creates it, matching the Sheets
		// API behavior for an append into a fresh range.
		m.order = append(m.order, title)
	}
	m.sheets[title] = append(m.sheets[title], append([]string(nil), cells...))
	return nil
}

func (m *MemoryBackend) UpdateCell(_ context.Context, title string, row int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.sheets[title]
	if !ok || row < 1 || row > len(rows) {
		return ErrNoCellChanged
	}
	if len(rows[row-1]) < 2 {
		return fmt.Errorf("row %d has no price cell", row)
	}
	rows[row-1][1] = value
	return nil
}

func (m *MemoryBackend) ListSheets(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...), nil
}

func (m *MemoryBackend) Close() error { return nil }
