package tenantinfo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// gatedGetter releases each identifier's lookup independently.
type gatedGetter struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	infos map[string]Info
}

func newGatedGetter(infos map[string]Info) *gatedGetter {
	g := &gatedGetter{gates: make(map[string]chan struct{}), infos: infos}
	for id := range infos {
		g.gates[id] = make(chan struct{})
	}
	return g
}

func (g *gatedGetter) Get(ctx context.Context, identifier string) (Info, error) {
	g.mu.Lock()
	gate, ok := g.gates[identifier]
	g.mu.Unlock()
	if !ok {
		return Info{}, ErrNotFound
	}
	<-gate
	return g.infos[identifier], nil
}

func (g *gatedGetter) release(identifier string) {
	close(g.gates[identifier])
}

func TestViewDiscardsStaleResponse(t *testing.T) {
	a := Info{Slug: "alpha", CompanyName: "Alpha", IsActive: true}
	b := Info{Slug: "bravo", CompanyName: "Bravo", IsActive: true}
	getter := newGatedGetter(map[string]Info{"alpha": a, "bravo": b})
	view := NewView(getter)
	ctx := context.Background()

	view.Set(ctx, "alpha")
	require.Equal(t, StateLoading, view.Snapshot().State)

	view.Set(ctx, "bravo")
	getter.release("bravo")

	snap, err := view.Await(ctx)
	require.NoError(t, err)
	require.Equal(t, StateReady, snap.State)
	require.Equal(t, b, snap.Info)

	// A's response arrives late and must be ignored.
	getter.release("alpha")
	time.Sleep(20 * time.Millisecond)

	final := view.Snapshot()
	require.Equal(t, "bravo", final.Identifier)
	require.Equal(t, b, final.Info)
}

func TestViewLateResponseBeforeCurrent(t *testing.T) {
	a := Info{Slug: "alpha", IsActive: true}
	b := Info{Slug: "bravo", IsActive: true}
	getter := newGatedGetter(map[string]Info{"alpha": a, "bravo": b})
	view := NewView(getter)
	ctx := context.Background()

	view.Set(ctx, "alpha")
	view.Set(ctx, "bravo")

	getter.release("alpha")
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateLoading, view.Snapshot().State, "stale response must not resolve the new identifier")

	getter.release("bravo")
	snap, err := view.Await(ctx)
	require.NoError(t, err)
	require.Equal(t, "bravo", snap.Info.Slug)
}

func TestViewNotFoundAndInactive(t *testing.T) {
	getter := getterFunc(func(ctx context.Context, id string) (Info, error) {
		switch id {
		case "dormant":
			return Info{Slug: "dormant", IsActive: false}, nil
		case "flaky":
			return Info{}, errors.New("connection reset")
		default:
			return Info{}, ErrNotFound
		}
	})
	ctx := context.Background()

	for id, wantErr := range map[string]error{"ghost": ErrNotFound, "dormant": ErrInactive} {
		view := NewView(getter)
		view.Set(ctx, id)
		snap, err := view.Await(ctx)
		require.NoError(t, err)
		require.Equal(t, StateNotFound, snap.State)
		require.ErrorIs(t, snap.Err, wantErr)
	}

	view := NewView(getter)
	view.Set(ctx, "flaky")
	snap, err := view.Await(ctx)
	require.NoError(t, err)
	require.Equal(t, StateNotFound, snap.State, "network failures surface as not found")
}

func TestViewAwaitTimesOutWhileLoading(t *testing.T) {
	getter := newGatedGetter(map[string]Info{"acme": {Slug: "acme", IsActive: true}})
	view := NewView(getter)
	view.Set(context.Background(), "acme")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	snap, err := view.Await(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, StateLoading, snap.State)

	getter.release("acme")
	snap, err = view.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateReady, snap.State)
}

func TestViewAwaitFollowsIdentifierChange(t *testing.T) {
	getter := newGatedGetter(map[string]Info{"alpha": {Slug: "alpha", IsActive: true}, "bravo": {Slug: "bravo", IsActive: true}})
	view := NewView(getter)
	view.Set(context.Background(), "alpha")

	result := make(chan Snapshot, 1)
	go func() {
		snap, _ := view.Await(context.Background())
		result <- snap
	}()
	time.Sleep(10 * time.Millisecond)

	view.Set(context.Background(), "bravo")
	getter.release("bravo")

	select {
	case snap := <-result:
		require.Equal(t, "bravo", snap.Identifier)
	case <-time.After(time.Second):
		t.Fatal("await did not follow the identifier change")
	}
	getter.release("alpha")
}

func TestViewChanges(t *testing.T) {
	getter := newGatedGetter(map[string]Info{"acme": {Slug: "acme", IsActive: true}})
	view := NewView(getter)

	changes, stop := view.Changes()
	defer stop()

	view.Set(context.Background(), "acme")
	require.Equal(t, StateLoading, (<-changes).State)

	getter.release("acme")
	select {
	case snap := <-changes:
		require.Equal(t, StateReady, snap.State)
	case <-time.After(time.Second):
		t.Fatal("no ready notification")
	}
}

// getterFunc adapts a function to Getter.
type getterFunc func(ctx context.Context, id string) (Info, error)

func (f getterFunc) Get(ctx context.Context, id string) (Info, error) { return f(ctx, id) }
