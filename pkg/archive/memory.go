package archive

import (
	"context"
	"sync"
)

var _ Archive = (*Memory)(nil)

// Memory is an in-process Archive.
type Memory struct {
	mu   sync.RWMutex
	recs map[string]Record
}

// NewMemory creates an empty Memory archive.
func NewMemory() *Memory {
	return &Memory{recs: make(map[string]Record)}
}

func (m *Memory) Save(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[r.CallID] = r
	return nil
}

func (m *Memory) Get(_ context.Context, callID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recs[callID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) List(_ context.Context, limit int) ([]Record, error) {
	m.mu.RLock()
	out := make([]Record, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r)
	}
	m.mu.RUnlock()
	return newestFirst(out, limit), nil
}

func (m *Memory) Close() error { return nil }
