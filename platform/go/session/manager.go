package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/maison-mobility/maison-gate/platform/go/auth"
)

// Manager opens Stores for session ids against a shared Persister and TokenDecoder.
type Manager struct {
	persister Persister
	decoder   auth.TokenDecoder
}

// NewManager constructs a Manager.
func NewManager(persister Persister, decoder auth.TokenDecoder) *Manager {
	if persister == nil {
		panic("session manager: persister is required")
	}
	if decoder == nil {
		panic("session manager: token decoder is required")
	}
	return &Manager{persister: persister, decoder: decoder}
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// Open returns the Store for id with persisted state already restored.
// On restore failure the returned Store is empty and usable.
func (m *Manager) Open(ctx context.Context, id string) (*Store, error) {
	store := NewStore(id, m.persister, m.decoder)
	if err := store.Restore(ctx); err != nil {
		return store, err
	}
	return store, nil
}

// Ephemeral returns a Store that is never persisted, used for bearer-token API calls.
func (m *Manager) Ephemeral() *Store {
	return NewStore("", nil, m.decoder)
}
