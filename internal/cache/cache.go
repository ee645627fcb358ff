package cache

import (
	"context"
	"sync"
)

// PreferenceStore keeps small per-principal settings such as the theme.
type PreferenceStore interface {
	Get(ctx context.Context, principalID string, key string) (string, bool, error)
	Set(ctx context.Context, principalID string, key string, value string) error
}

type MemoryPreferences struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{values: make(map[string]map[string]string)}
}

func (m *MemoryPreferences) Get(_ context.Context, principalID string, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[principalID][key]
	return v, ok, nil
}

func (m *MemoryPreferences) Set(_ context.Context, principalID string, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefs, ok := m.values[principalID]
	if !ok {
		prefs = make(map[string]string)
		m.values[principalID] = prefs
	}
	prefs[key] = value
	return nil
}
