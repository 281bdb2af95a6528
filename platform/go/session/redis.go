package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "maison:session:"

// RedisPersister stores sessions in Redis so they survive gateway restarts and are shared
// between instances. Entries expire with the access token, or after DefaultTTL when the
// token carries no expiry.
type RedisPersister struct {
	client     redis.Cmdable
	defaultTTL time.Duration
	now        func() time.Time
}

// NewRedisPersister constructs a RedisPersister over client.
func NewRedisPersister(client redis.Cmdable, defaultTTL time.Duration) *RedisPersister {
	if client == nil {
		panic("session redis persister: client is required")
	}
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &RedisPersister{client: client, defaultTTL: defaultTTL, now: time.Now}
}

func (p *RedisPersister) Load(ctx context.Context, id string) (Session, bool, error) {
	raw, err := p.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("redis get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return s, true, nil
}

func (p *RedisPersister) Save(ctx context.Context, id string, s Session) error {
	ttl := p.defaultTTL
	if !s.ExpiresAt.IsZero() {
		ttl = s.ExpiresAt.Sub(p.now())
		if ttl <= 0 {
			return p.Delete(ctx, id)
		}
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := p.client.Set(ctx, redisKeyPrefix+id, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (p *RedisPersister) Delete(ctx context.Context, id string) error {
	if err := p.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

var _ Persister = (*RedisPersister)(nil)
