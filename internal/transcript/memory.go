package transcript

import (
	"context"
	"strings"
	"sync"
)

// memoryStore keeps entries in process; used when no backend is configured.
type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]*Entry
}

func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[string][]*Entry)}
}

func (m *memoryStore) Append(ctx context.Context, e *Entry) error {
	if e == nil || strings.TrimSpace(e.SessionID) == "" {
		return ErrInvalidEntry
	}
	cp := *e
	m.mu.Lock()
	m.sessions[e.SessionID] = append(m.sessions[e.SessionID], &cp)
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) List(ctx context.Context, sessionID string, limit int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.sessions[sessionID]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]*Entry, 0, len(list))
	for _, e := range list {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memoryStore) Close() error { return nil }
