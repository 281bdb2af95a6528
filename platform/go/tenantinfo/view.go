package tenantinfo

import (
	"context"
	"sync"
)

// State is the load state of a View.
type State string

const (
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateNotFound State = "not_found"
)

// Snapshot is what a View currently shows.
type Snapshot struct {
	Identifier string `json:"identifier"`
	State      State  `json:"state"`
	Info       Info   `json:"info"`
	// Err is the lookup failure behind StateNotFound, if any.
	Err error `json:"-"`
}

// Getter is the lookup a View loads through, normally a *Cache.
type Getter interface {
	Get(ctx context.Context, identifier string) (Info, error)
}

// View tracks the tenant record for the identifier that is current right now.
// When the identifier changes before a lookup completes, the late response is discarded and
// never replaces the newer identifier's state. Any lookup failure shows as not found.
type View struct {
	getter Getter

	mu    sync.Mutex
	seq   uint64
	snap  Snapshot
	ready chan struct{}

	subMu   sync.Mutex
	subs    map[uint64]chan Snapshot
	nextSub uint64
}

// NewView constructs a View with no identifier.
func NewView(getter Getter) *View {
	if getter == nil {
		panic("tenantinfo view: getter is required")
	}
	ready := make(chan struct{})
	close(ready)
	return &View{
		getter: getter,
		snap:   Snapshot{State: StateNotFound, Err: ErrNotFound},
		ready:  ready,
		subs:   make(map[uint64]chan Snapshot),
	}
}

// Set makes identifier current and starts loading it. Setting the identifier that is already
// current is a no-op unless its last load failed.
func (v *View) Set(ctx context.Context, identifier string) {
	v.mu.Lock()
	if identifier == v.snap.Identifier && v.snap.State != StateNotFound {
		v.mu.Unlock()
		return
	}

	if v.snap.State == StateLoading {
		// Wake waiters of the superseded load so they re-read the new identifier.
		close(v.ready)
	}
	v.seq++
	seq := v.seq
	ready := make(chan struct{})
	v.ready = ready
	if identifier == "" {
		v.snap = Snapshot{State: StateNotFound, Err: ErrNotFound}
		close(ready)
		v.notify(v.snap)
		v.mu.Unlock()
		return
	}
	v.snap = Snapshot{Identifier: identifier, State: StateLoading}
	v.notify(v.snap)
	v.mu.Unlock()

	loadCtx := context.WithoutCancel(ctx)
	go func() {
		info, err := v.getter.Get(loadCtx, identifier)
		v.apply(seq, identifier, info, err, ready)
	}()
}

// Snapshot returns the current state without waiting.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}

// Await blocks until the current identifier finishes loading or ctx is done, and returns the
// snapshot at that moment. On ctx expiry the loading snapshot is returned with ctx's error.
func (v *View) Await(ctx context.Context) (Snapshot, error) {
	for {
		v.mu.Lock()
		snap, ready := v.snap, v.ready
		v.mu.Unlock()

		if snap.State != StateLoading {
			return snap, nil
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return v.Snapshot(), ctx.Err()
		}
	}
}

// Changes returns a channel receiving every new snapshot. Slow subscribers only see the latest.
// The returned func unsubscribes and closes the channel.
func (v *View) Changes() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	v.subMu.Lock()
	id := v.nextSub
	v.nextSub++
	v.subs[id] = ch
	v.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.subMu.Lock()
			delete(v.subs, id)
			v.subMu.Unlock()
			close(ch)
		})
	}
}

func (v *View) apply(seq uint64, identifier string, info Info, err error, ready chan struct{}) {
	v.mu.Lock()
	if seq != v.seq {
		v.mu.Unlock()
		return
	}

	next := Snapshot{Identifier: identifier, State: StateReady, Info: info}
	if err != nil {
		next = Snapshot{Identifier: identifier, State: StateNotFound, Err: err}
	} else if !info.IsActive {
		next = Snapshot{Identifier: identifier, State: StateNotFound, Info: info, Err: ErrInactive}
	}
	v.snap = next
	close(ready)
	v.notify(next)
	v.mu.Unlock()
}

// notify must be called with v.mu held so subscribers observe snapshots in order.
func (v *View) notify(snap Snapshot) {
	v.subMu.Lock()
	defer v.subMu.Unlock()
	for _, ch := range v.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
