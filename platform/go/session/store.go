package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maison-mobility/maison-gate/platform/go/auth"
)

var (
	// ErrInvalidRole is returned when a token carries no usable role and none was supplied.
	ErrInvalidRole = errors.New("invalid role")
	// ErrExpired is returned when logging in with an already expired token.
	ErrExpired = errors.New("token expired")
)

// Store holds the Session of one browser session. It is created per session id by a Manager
// and handed down through the request context; there is no package level instance.
//
// Login and Logout are the only writers. Writes are serialized and the last one wins.
// State is a synchronous snapshot read.
type Store struct {
	id        string
	persister Persister
	decoder   auth.TokenDecoder
	now       func() time.Time

	mu    sync.RWMutex
	state Session

	subMu   sync.Mutex
	subs    map[uint64]chan Session
	nextSub uint64

	writeMu  sync.Mutex
	onRotate func(id string)
}

// LoginCheck vets a decoded Session before Login persists it. A non-nil error aborts the login
// and leaves the current state untouched.
type LoginCheck func(next Session) error

// NewStore constructs an empty Store for session id. Call Restore before the first read.
func NewStore(id string, persister Persister, decoder auth.TokenDecoder) *Store {
	if persister == nil {
		persister = discardPersister{}
	}
	if decoder == nil {
		panic("session store: token decoder is required")
	}
	return &Store{
		id:        id,
		persister: persister,
		decoder:   decoder,
		now:       time.Now,
		subs:      make(map[uint64]chan Session),
	}
}

// ID returns the session id the store persists under.
func (s *Store) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// rotateOnLogin makes every successful Login move the state to a fresh session id and report
// it to fn, so an id handed out before authentication never carries an authenticated session.
func (s *Store) rotateOnLogin(fn func(id string)) {
	s.onRotate = fn
}

// Restore loads previously persisted state. Expired sessions are cleared.
func (s *Store) Restore(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	persisted, ok, err := s.persister.Load(ctx, s.ID())
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if !ok {
		return nil
	}

	if !persisted.IsAuthenticatedAt(s.now()) {
		if err := s.persister.Delete(ctx, s.ID()); err != nil {
			return fmt.Errorf("drop expired session: %w", err)
		}
		return nil
	}

	s.set(persisted)
	return nil
}

// Login stores token, decoding subject, role, tenant and expiry from it. A non-empty role
// overrides the role claim. checks run before anything is written. The new state is persisted
// before it becomes visible.
func (s *Store) Login(ctx context.Context, token string, role Role, checks ...LoginCheck) (Session, error) {
	claims, err := s.decoder.Decode(ctx, token)
	if err != nil {
		return Session{}, err
	}

	if role == "" {
		role, err = ParseRole(claims.Role)
		if err != nil {
			return Session{}, fmt.Errorf("%w: %w", ErrInvalidRole, err)
		}
	}

	next := Session{
		AccessToken: token,
		Role:        role,
		Subject:     claims.Subject,
		TenantSlug:  claims.TenantSlug,
		ExpiresAt:   claims.ExpiresAt,
	}
	if !next.IsAuthenticatedAt(s.now()) {
		return Session{}, ErrExpired
	}
	for _, check := range checks {
		if err := check(next); err != nil {
			return Session{}, err
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	previous := s.ID()
	id := previous
	if s.onRotate != nil {
		id = NewID()
	}

	if err := s.persister.Save(ctx, id, next); err != nil {
		return Session{}, fmt.Errorf("persist session: %w", err)
	}
	if id != previous {
		if err := s.persister.Delete(ctx, previous); err != nil {
			_ = s.persister.Delete(ctx, id)
			return Session{}, fmt.Errorf("drop previous session id: %w", err)
		}
		s.mu.Lock()
		s.id = id
		s.mu.Unlock()
		s.onRotate(id)
	}

	s.set(next)
	return next, nil
}

// Logout clears token and role. In-memory state is cleared even when persisting fails.
func (s *Store) Logout(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.set(Session{})
	if err := s.persister.Delete(ctx, s.ID()); err != nil {
		return fmt.Errorf("persist logout: %w", err)
	}
	return nil
}

// State returns a snapshot of the current Session.
func (s *Store) State() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe returns a channel receiving every new state. Slow subscribers only see the latest
// state. The returned func unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan Session, func()) {
	ch := make(chan Session, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) set(next Session) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}
