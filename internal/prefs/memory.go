package prefs

import (
	"context"
	"strings"
	"sync"

	"chartdesk/internal/model"
)

// MemoryStore is an in-process model.PreferencesStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]model.ChartPreferences
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]model.ChartPreferences)}
}

func (m *MemoryStore) Get(_ context.Context, symbol string) (*model.ChartPreferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.data[strings.ToUpper(symbol)]
	if !ok {
		return nil, nil
	}
	out := p.Clone()
	return &out, nil
}

func (m *MemoryStore) Put(_ context.Context, p *model.ChartPreferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[strings.ToUpper(p.Symbol)] = p.Clone()
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Len returns the number of stored symbols.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
