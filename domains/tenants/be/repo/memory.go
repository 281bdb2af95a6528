package repo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/maison-mobility/maison-gate/domains/tenants/be/service"
	"github.com/maison-mobility/maison-gate/platform/go/tenantinfo"
)

// MemoryRepository is a simple in-memory implementation suitable for tests and local development.
// Settings updates apply to the tenant registered under the token's owner slug; tokens are
// mapped to slugs with Authorize.
type MemoryRepository struct {
	mu      sync.RWMutex
	bySlug  map[string]tenantinfo.Info
	byToken map[string]string
}

// NewMemoryRepository constructs a MemoryRepository seeded with tenants.
func NewMemoryRepository(tenants ...tenantinfo.Info) *MemoryRepository {
	r := &MemoryRepository{bySlug: make(map[string]tenantinfo.Info), byToken: make(map[string]string)}
	for _, t := range tenants {
		r.Put(t)
	}
	return r
}

// Put inserts or replaces a tenant.
func (r *MemoryRepository) Put(t tenantinfo.Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySlug[strings.ToLower(t.Slug)] = t
}

// Authorize lets token update the settings of slug.
func (r *MemoryRepository) Authorize(token, slug string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byToken[token] = strings.ToLower(slug)
}

func (r *MemoryRepository) Lookup(ctx context.Context, identifier string) (tenantinfo.Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.bySlug[strings.ToLower(identifier)]
	if !ok {
		return tenantinfo.Info{}, tenantinfo.ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepository) SlugTaken(ctx context.Context, slug string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.bySlug[strings.ToLower(slug)]
	return ok, nil
}

func (r *MemoryRepository) UpdateSettings(ctx context.Context, token string, in service.SettingsInput) (tenantinfo.Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slug, ok := r.byToken[token]
	if !ok {
		return tenantinfo.Info{}, service.ErrForbidden
	}
	t, ok := r.bySlug[slug]
	if !ok {
		return tenantinfo.Info{}, tenantinfo.ErrNotFound
	}
	if in.CompanyName != nil {
		t.CompanyName = *in.CompanyName
	}
	if in.LogoURL != nil {
		t.LogoURL = *in.LogoURL
	}
	if len(in.Theme) > 0 {
		t.Theme = in.Theme
	}
	t.UpdatedAt = time.Now().UTC()
	r.bySlug[slug] = t
	return t, nil
}

var (
	_ tenantinfo.Source      = (*MemoryRepository)(nil)
	_ service.Directory      = (*MemoryRepository)(nil)
	_ service.SettingsWriter = (*MemoryRepository)(nil)
)
