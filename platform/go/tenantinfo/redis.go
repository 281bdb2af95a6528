package tenantinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/maison-mobility/maison-gate/platform/go/debounce"
	"github.com/maison-mobility/maison-gate/platform/go/requesttrace"
)

const (
	redisKeyPrefix = "maison:tenant:"
	// InvalidationChannel is the pub/sub channel carrying invalidated identifiers.
	InvalidationChannel = "maison:tenant:invalidate"
	// AllIdentifiers is the invalidation payload that drops every cached tenant.
	AllIdentifiers = "*"
)

// RedisStore is a SharedStore backed by Redis.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore constructs a RedisStore. Entries expire after ttl (default five minutes).
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("tenantinfo redis store: client is required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, identifier string) (Info, bool, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+identifier).Bytes()
	if errors.Is(err, redis.Nil) {
		return Info{}, false, nil
	}
	if err != nil {
		return Info{}, false, fmt.Errorf("redis get tenant: %w", err)
	}

	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return Info{}, false, fmt.Errorf("decode tenant: %w", err)
	}
	return info, true, nil
}

func (s *RedisStore) Save(ctx context.Context, identifier string, info Info) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode tenant: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+identifier, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set tenant: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+identifier).Err(); err != nil {
		return fmt.Errorf("redis del tenant: %w", err)
	}
	return nil
}

// DeleteAll removes every shared tenant entry and returns how many were deleted.
func (s *RedisStore) DeleteAll(ctx context.Context) (int, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan tenants: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del tenants: %w", err)
	}
	return int(n), nil
}

var _ SharedStore = (*RedisStore)(nil)

// RedisInvalidator broadcasts tenant invalidations between gateway instances over pub/sub and
// applies the ones it receives to a local Cache.
type RedisInvalidator struct {
	client   redis.UniversalClient
	channel  string
	logger   *zap.Logger
	debounce *debounce.Debouncer
}

// NewRedisInvalidator constructs a RedisInvalidator. Received invalidations for the same
// identifier within quiet are coalesced into a single prefetch.
func NewRedisInvalidator(client redis.UniversalClient, quiet time.Duration, logger *zap.Logger) *RedisInvalidator {
	if client == nil {
		panic("tenantinfo redis invalidator: client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if quiet <= 0 {
		quiet = 250 * time.Millisecond
	}
	return &RedisInvalidator{
		client:   client,
		channel:  InvalidationChannel,
		logger:   logger,
		debounce: debounce.New(quiet),
	}
}

// Publish implements Broadcaster.
func (r *RedisInvalidator) Publish(ctx context.Context, identifier string) error {
	if err := r.client.Publish(ctx, r.channel, identifier).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// PublishAll tells every instance to drop all cached tenants.
func (r *RedisInvalidator) PublishAll(ctx context.Context) error {
	return r.Publish(ctx, AllIdentifiers)
}

// Run subscribes to the invalidation channel and evicts received identifiers from cache until ctx
// is done. AllIdentifiers empties the cache. When prefetch is set, the record is fetched again once
// the burst settles so the next request hits a warm cache.
func (r *RedisInvalidator) Run(ctx context.Context, cache *Cache, prefetch bool) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() {
		_ = sub.Close()
		r.debounce.Stop()
	}()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			identifier := msg.Payload
			if identifier == "" {
				continue
			}
			if identifier == AllIdentifiers {
				cache.EvictAll()
				r.logger.Info("all tenants invalidated")
				continue
			}
			cache.Evict(identifier)
			r.logger.Debug("tenant invalidated", zap.String("tenant", identifier))

			if prefetch {
				r.debounce.Trigger(identifier, func() {
					fetchCtx, cancel := context.WithTimeout(requesttrace.IntoContext(context.WithoutCancel(ctx), requesttrace.System("")), 10*time.Second)
					defer cancel()
					if _, err := cache.Get(fetchCtx, identifier); err != nil && !errors.Is(err, ErrNotFound) {
						r.logger.Warn("tenant prefetch failed", zap.String("tenant", identifier), zap.Error(err))
					}
				})
			}
		}
	}
}

var _ Broadcaster = (*RedisInvalidator)(nil)
