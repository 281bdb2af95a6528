package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maison-mobility/maison-gate/platform/go/auth"
)

// fakeDecoder maps literal tokens to claims.
func fakeDecoder(tokens map[string]auth.Claims) auth.TokenDecoder {
	return auth.DecoderFunc(func(_ context.Context, token string) (auth.Claims, error) {
		claims, ok := tokens[token]
		if !ok {
			return auth.Claims{}, auth.ErrInvalidToken
		}
		return claims, nil
	})
}

var testTokens = map[string]auth.Claims{
	"tenant-token":  {Subject: "owner-1", Role: "tenant", ExpiresAt: time.Now().Add(time.Hour)},
	"driver-token":  {Subject: "driver-1", Role: "driver", TenantSlug: "acme", ExpiresAt: time.Now().Add(time.Hour)},
	"rider-token":   {Subject: "rider-1", Role: "rider", TenantSlug: "acme"},
	"no-role-token": {Subject: "someone"},
	"expired-token": {Subject: "late", Role: "tenant", ExpiresAt: time.Now().Add(-time.Minute)},
}

type failingPersister struct {
	MemoryPersister
	saveErr   error
	deleteErr error
}

func (p *failingPersister) Save(ctx context.Context, id string, s Session) error {
	if p.saveErr != nil {
		return p.saveErr
	}
	return p.MemoryPersister.Save(ctx, id, s)
}

func (p *failingPersister) Delete(ctx context.Context, id string) error {
	if p.deleteErr != nil {
		return p.deleteErr
	}
	return p.MemoryPersister.Delete(ctx, id)
}

func TestStoreLoginDecodesRole(t *testing.T) {
	ctx := context.Background()
	store := NewStore("s1", NewMemoryPersister(), fakeDecoder(testTokens))

	require.False(t, store.State().IsAuthenticated())

	got, err := store.Login(ctx, "driver-token", "")
	require.NoError(t, err)
	require.Equal(t, RoleDriver, got.Role)
	require.Equal(t, "acme", got.TenantSlug)
	require.True(t, store.State().IsAuthenticated())
	require.True(t, store.State().HasRole(RoleDriver))
	require.False(t, store.State().HasRole(RoleTenant))
}

func TestStoreLoginExplicitRole(t *testing.T) {
	store := NewStore("s1", nil, fakeDecoder(testTokens))

	got, err := store.Login(context.Background(), "no-role-token", RoleRider)
	require.NoError(t, err)
	require.Equal(t, RoleRider, got.Role)
}

func TestStoreLoginRejects(t *testing.T) {
	ctx := context.Background()
	store := NewStore("s1", nil, fakeDecoder(testTokens))

	_, err := store.Login(ctx, "unknown", "")
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = store.Login(ctx, "no-role-token", "")
	require.ErrorIs(t, err, ErrInvalidRole)

	_, err = store.Login(ctx, "expired-token", "")
	require.ErrorIs(t, err, ErrExpired)

	require.Equal(t, Session{}, store.State())
}

func TestStoreLoginPersistFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	persister := &failingPersister{MemoryPersister: MemoryPersister{items: make(map[string]Session)}}
	store := NewStore("s1", persister, fakeDecoder(testTokens))

	_, err := store.Login(ctx, "tenant-token", "")
	require.NoError(t, err)

	persister.saveErr = errors.New("disk full")
	_, err = store.Login(ctx, "driver-token", "")
	require.Error(t, err)
	require.Equal(t, RoleTenant, store.State().Role)
}

func TestStoreLogoutClearsEvenWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	persister := &failingPersister{MemoryPersister: MemoryPersister{items: make(map[string]Session)}}
	store := NewStore("s1", persister, fakeDecoder(testTokens))

	_, err := store.Login(ctx, "tenant-token", "")
	require.NoError(t, err)

	persister.deleteErr = errors.New("unreachable")
	require.Error(t, store.Logout(ctx))
	require.False(t, store.State().IsAuthenticated())
}

func TestStoreRestore(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()

	first := NewStore("s1", persister, fakeDecoder(testTokens))
	_, err := first.Login(ctx, "tenant-token", "")
	require.NoError(t, err)

	reloaded := NewStore("s1", persister, fakeDecoder(testTokens))
	require.False(t, reloaded.State().IsAuthenticated())
	require.NoError(t, reloaded.Restore(ctx))
	require.Equal(t, first.State(), reloaded.State())

	require.NoError(t, first.Logout(ctx))
	again := NewStore("s1", persister, fakeDecoder(testTokens))
	require.NoError(t, again.Restore(ctx))
	require.False(t, again.State().IsAuthenticated())
}

func TestStoreRestoreDropsExpired(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()
	require.NoError(t, persister.Save(ctx, "s1", Session{
		AccessToken: "old",
		Role:        RoleTenant,
		ExpiresAt:   time.Now().Add(-time.Hour),
	}))

	store := NewStore("s1", persister, fakeDecoder(testTokens))
	require.NoError(t, store.Restore(ctx))
	require.False(t, store.State().IsAuthenticated())

	_, ok, err := persister.Load(ctx, "s1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreSubscribe(t *testing.T) {
	ctx := context.Background()
	store := NewStore("s1", nil, fakeDecoder(testTokens))

	updates, cancel := store.Subscribe()

	_, err := store.Login(ctx, "rider-token", "")
	require.NoError(t, err)
	select {
	case s := <-updates:
		require.Equal(t, RoleRider, s.Role)
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}

	// A slow subscriber only observes the latest state.
	_, err = store.Login(ctx, "tenant-token", "")
	require.NoError(t, err)
	require.NoError(t, store.Logout(ctx))
	s := <-updates
	require.False(t, s.IsAuthenticated())

	cancel()
	cancel()
	_, open := <-updates
	require.False(t, open)
}

func TestStoreConcurrentWritesLastWins(t *testing.T) {
	ctx := context.Background()
	store := NewStore("s1", NewMemoryPersister(), fakeDecoder(testTokens))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = store.Login(ctx, "tenant-token", "")
		}()
		go func() {
			defer wg.Done()
			_ = store.Logout(ctx)
		}()
	}
	wg.Wait()

	require.NoError(t, store.Logout(ctx))
	require.False(t, store.State().IsAuthenticated())

	_, err := store.Login(ctx, "driver-token", "")
	require.NoError(t, err)
	require.Equal(t, RoleDriver, store.State().Role)
}

func TestStoreLoginCheckRunsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()
	store := NewStore("s1", persister, fakeDecoder(testTokens))

	_, err := store.Login(ctx, "driver-token", "")
	require.NoError(t, err)

	errOtherTenant := errors.New("other tenant")
	var checked Session
	_, err = store.Login(ctx, "rider-token", "", func(next Session) error {
		checked = next
		return errOtherTenant
	})
	require.ErrorIs(t, err, errOtherTenant)
	require.Equal(t, RoleRider, checked.Role)

	require.Equal(t, RoleDriver, store.State().Role)
	persisted, ok, err := persister.Load(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, RoleDriver, persisted.Role)
}

func TestStoreLoginRotatesID(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()
	require.NoError(t, persister.Save(ctx, "anon-1", Session{Subject: "anonymous"}))

	store := NewStore("anon-1", persister, fakeDecoder(testTokens))
	var rotated []string
	store.rotateOnLogin(func(id string) { rotated = append(rotated, id) })

	_, err := store.Login(ctx, "tenant-token", "")
	require.NoError(t, err)
	require.Len(t, rotated, 1)
	require.NotEqual(t, "anon-1", store.ID())
	require.Equal(t, rotated[0], store.ID())

	_, ok, err := persister.Load(ctx, "anon-1")
	require.NoError(t, err)
	require.False(t, ok)
	persisted, ok, err := persister.Load(ctx, store.ID())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, RoleTenant, persisted.Role)

	_, err = store.Login(ctx, "tenant-token", "", func(Session) error { return ErrInvalidRole })
	require.Error(t, err)
	require.Len(t, rotated, 1, "rejected logins keep the id")
}

func TestStoreLoginRotationFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	persister := &failingPersister{MemoryPersister: MemoryPersister{items: make(map[string]Session)}}
	store := NewStore("anon-1", persister, fakeDecoder(testTokens))
	store.rotateOnLogin(func(string) { t.Fatal("rotation reported after a failed delete") })

	persister.deleteErr = errors.New("unreachable")
	_, err := store.Login(ctx, "tenant-token", "")
	require.Error(t, err)
	require.Equal(t, "anon-1", store.ID())
	require.False(t, store.State().IsAuthenticated())
}
