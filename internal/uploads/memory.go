package uploads

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]Upload
	order []uuid.UUID
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{byID: make(map[uuid.UUID]Upload)}
}

// Create stores the upload, assigning its ID and timestamp if unset.
func (m *Memory) Create(_ context.Context, up Upload) (Upload, error) {
	up = normalize(up)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[up.ID] = up
	m.order = append(m.order, up.ID)
	return up, nil
}

// List returns all uploads, newest first.
func (m *Memory) List(_ context.Context) ([]Upload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Upload, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		if up, ok := m.byID[m.order[i]]; ok {
			out = append(out, up)
		}
	}
	return out, nil
}

// Get returns one upload by ID.
func (m *Memory) Get(_ context.Context, id uuid.UUID) (Upload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	up, ok := m.byID[id]
	if !ok {
		return Upload{}, ErrNotFound
	}
	return up, nil
}

// Delete removes one upload by ID.
func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
