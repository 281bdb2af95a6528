package session

import (
	"context"
	"sync"
)

// Persister stores session state durably so it survives reloads and gateway restarts.
type Persister interface {
	Load(ctx context.Context, id string) (Session, bool, error)
	Save(ctx context.Context, id string, s Session) error
	Delete(ctx context.Context, id string) error
}

// MemoryPersister keeps sessions in process memory. Suitable for tests and single-instance dev.
type MemoryPersister struct {
	mu    sync.RWMutex
	items map[string]Session
}

// NewMemoryPersister constructs a MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{items: make(map[string]Session)}
}

func (p *MemoryPersister) Load(ctx context.Context, id string) (Session, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.items[id]
	return s, ok, nil
}

func (p *MemoryPersister) Save(ctx context.Context, id string, s Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.items[id] = s
	return nil
}

func (p *MemoryPersister) Delete(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.items, id)
	return nil
}

// Ensure interface compliance.
var _ Persister = (*MemoryPersister)(nil)

// discardPersister backs ephemeral stores built from bearer tokens.
type discardPersister struct{}

func (discardPersister) Load(context.Context, string) (Session, bool, error) { return Session{}, false, nil }
func (discardPersister) Save(context.Context, string, Session) error        { return nil }
func (discardPersister) Delete(context.Context, string) error               { return nil }
