// Package session persists the stage pointer across page reloads (BFF
// cookie) or CLI invocations (YAML state file), and guards commit/discard
// against double submission.
//
// Inside a workflow the *domain.Stage is the source of truth; a Store only
// carries its ID between requests.
package session

import (
	"context"
	"sync"

	"busreg.io/stager/internal/domain"
)

// Store persists the current stage pointer.
type Store interface {
	// Load returns the held stage, or nil when there is none.
	Load(ctx context.Context) (*domain.Stage, error)
	Save(ctx context.Context, stage *domain.Stage) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the pointer in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	stage  *domain.Stage
	clears int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(context.Context) (*domain.Stage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stage == nil {
		return nil, nil
	}
	s := *m.stage
	return &s, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, stage *domain.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := domain.Stage{ID: stage.ID, Accepted: stage.Accepted}
	m.stage = &s
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stage = nil
	m.clears++
	return nil
}

// Clears counts Clear calls.
func (m *MemoryStore) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}
