package session

import (
	"context"
	"sync"

	"busreg.io/stager/internal/domain"
)

// Buffered records Save/Clear in memory so a workflow running on a worker
// never touches the request after the handler stopped waiting for it. The
// handler applies the final state with Apply.
type Buffered struct {
	mu      sync.Mutex
	stage   *domain.Stage
	dirty   bool
	cleared bool
}

// NewBuffered starts from the pointer loaded from the real store.
func NewBuffered(initial *domain.Stage) *Buffered {
	return &Buffered{stage: initial}
}

// Load implements Store.
func (b *Buffered) Load(context.Context) (*domain.Stage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stage == nil {
		return nil, nil
	}
	s := domain.Stage{ID: b.stage.ID, Accepted: b.stage.Accepted}
	return &s, nil
}

// Save implements Store.
func (b *Buffered) Save(_ context.Context, stage *domain.Stage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stage = &domain.Stage{ID: stage.ID, Accepted: stage.Accepted}
	b.dirty, b.cleared = true, false
	return nil
}

// Clear implements Store.
func (b *Buffered) Clear(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stage = nil
	b.dirty, b.cleared = true, true
	return nil
}

// Apply writes the recorded change, if any, to dst.
func (b *Buffered) Apply(ctx context.Context, dst Store) error {
	b.mu.Lock()
	stage, dirty, cleared := b.stage, b.dirty, b.cleared
	b.mu.Unlock()

	switch {
	case !dirty:
		return nil
	case cleared:
		return dst.Clear(ctx)
	default:
		return dst.Save(ctx, stage)
	}
}
