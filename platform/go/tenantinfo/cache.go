package tenantinfo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SharedStore is a second-level cache shared between gateway instances.
type SharedStore interface {
	Load(ctx context.Context, identifier string) (Info, bool, error)
	Save(ctx context.Context, identifier string, info Info) error
	Delete(ctx context.Context, identifier string) error
}

// Broadcaster tells other gateway instances that an identifier was invalidated.
type Broadcaster interface {
	Publish(ctx context.Context, identifier string) error
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL expires entries after ttl. Zero keeps entries until invalidated.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithSharedStore adds a second-level cache consulted before the Source.
func WithSharedStore(store SharedStore) Option {
	return func(c *Cache) { c.shared = store }
}

// WithBroadcaster publishes every Invalidate to other instances.
func WithBroadcaster(b Broadcaster) Option {
	return func(c *Cache) { c.broadcaster = b }
}

// WithLogger sets the logger used for shared-layer failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFetchTimeout bounds each Source lookup. Zero leaves it to the Source.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) { c.fetchTimeout = d }
}

type entry struct {
	info     Info
	storedAt time.Time
}

type generation struct {
	key uint64
	all uint64
}

// Cache memoises tenant records per identifier.
//
// Concurrent Get calls for an identifier share a single in-flight lookup. The lookup is detached
// from the cancellation of the caller that started it, so one caller giving up does not fail the
// others. Failed lookups, ErrNotFound included, are never cached. An invalidation that happens
// while a lookup is in flight prevents that lookup's result from being stored.
type Cache struct {
	source       Source
	shared       SharedStore
	broadcaster  Broadcaster
	logger       *zap.Logger
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	entries  map[string]entry
	gens     map[string]uint64
	inflight map[string]int
	allGen   uint64
}

// NewCache constructs a Cache over source.
func NewCache(source Source, opts ...Option) *Cache {
	if source == nil {
		panic("tenantinfo cache: source is required")
	}
	c := &Cache{
		source:  source,
		logger:  zap.NewNop(),
		now:     time.Now,
		entries:  make(map[string]entry),
		gens:     make(map[string]uint64),
		inflight: make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the tenant record for identifier, fetching it at most once per in-flight window.
// ctx only bounds how long this caller waits.
func (c *Cache) Get(ctx context.Context, identifier string) (Info, error) {
	if identifier == "" {
		return Info{}, ErrNotFound
	}
	if info, ok := c.cached(identifier); ok {
		return info, nil
	}

	ch := c.group.DoChan(identifier, func() (interface{}, error) {
		return c.fetch(context.WithoutCancel(ctx), identifier)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Info{}, res.Err
		}
		return res.Val.(Info), nil
	case <-ctx.Done():
		return Info{}, ctx.Err()
	}
}

// Invalidate drops identifier locally and from the shared layer, then broadcasts the invalidation.
func (c *Cache) Invalidate(ctx context.Context, identifier string) error {
	c.Evict(identifier)

	var errs []error
	if c.shared != nil {
		if err := c.shared.Delete(ctx, identifier); err != nil {
			errs = append(errs, fmt.Errorf("delete shared tenant entry: %w", err))
		}
	}
	if c.broadcaster != nil {
		if err := c.broadcaster.Publish(ctx, identifier); err != nil {
			errs = append(errs, fmt.Errorf("broadcast tenant invalidation: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Evict drops identifier from this instance only.
func (c *Cache) Evict(identifier string) {
	c.mu.Lock()
	delete(c.entries, identifier)
	c.gens[identifier]++
	c.mu.Unlock()

	c.group.Forget(identifier)
}

// EvictAll drops every entry from this instance. Lookups in flight are detached, so callers
// arriving afterwards start a fresh lookup.
func (c *Cache) EvictAll() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries)+len(c.inflight))
	for k := range c.entries {
		keys = append(keys, k)
	}
	for k := range c.inflight {
		if _, cached := c.entries[k]; !cached {
			keys = append(keys, k)
		}
	}
	c.entries = make(map[string]entry)
	c.allGen++
	c.mu.Unlock()

	for _, k := range keys {
		c.group.Forget(k)
	}
}

// Len returns the number of locally cached identifiers.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) cached(identifier string) (Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[identifier]
	if !ok {
		return Info{}, false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, identifier)
		return Info{}, false
	}
	return e.info, true
}

// begin records a lookup for identifier and returns the generation it started in.
func (c *Cache) begin(identifier string) generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[identifier]++
	return generation{key: c.gens[identifier], all: c.allGen}
}

func (c *Cache) end(identifier string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[identifier] <= 1 {
		delete(c.inflight, identifier)
		return
	}
	c.inflight[identifier]--
}

func (c *Cache) store(identifier string, gen generation, info Info) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[identifier] != gen.key || c.allGen != gen.all {
		return false
	}
	c.entries[identifier] = entry{info: info, storedAt: c.now()}
	return true
}

func (c *Cache) fetch(ctx context.Context, identifier string) (Info, error) {
	gen := c.begin(identifier)
	defer c.end(identifier)

	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
	}

	if c.shared != nil {
		info, ok, err := c.shared.Load(ctx, identifier)
		switch {
		case err != nil:
			c.logger.Warn("shared tenant cache load failed", zap.String("tenant", identifier), zap.Error(err))
		case ok:
			c.store(identifier, gen, info)
			return info, nil
		}
	}

	info, err := c.source.Lookup(ctx, identifier)
	if err != nil {
		return Info{}, err
	}

	if c.store(identifier, gen, info) && c.shared != nil {
		if err := c.shared.Save(ctx, identifier, info); err != nil {
			c.logger.Warn("shared tenant cache save failed", zap.String("tenant", identifier), zap.Error(err))
		}
	}
	return info, nil
}
