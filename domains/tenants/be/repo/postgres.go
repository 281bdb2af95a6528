package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/maison-mobility/maison-gate/domains/tenants/be/service"
	"github.com/maison-mobility/maison-gate/platform/go/persistence"
	"github.com/maison-mobility/maison-gate/platform/go/tenantinfo"
)

// PostgresRepository reads the tenant registry directly, for gateways co-located with the database.
type PostgresRepository struct {
	store *persistence.TenantStore
}

// NewPostgresRepository constructs a repository backed by TenantStore.
func NewPostgresRepository(store *persistence.TenantStore) *PostgresRepository {
	if store == nil {
		panic("tenant store is required")
	}
	return &PostgresRepository{store: store}
}

// Lookup implements tenantinfo.Source.
func (r *PostgresRepository) Lookup(ctx context.Context, identifier string) (tenantinfo.Info, error) {
	rec, err := r.store.GetBySlug(ctx, identifier)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return tenantinfo.Info{}, tenantinfo.ErrNotFound
		}
		return tenantinfo.Info{}, fmt.Errorf("lookup tenant %q: %w", identifier, err)
	}
	return fromRecord(rec), nil
}

// SlugTaken implements service.Directory.
func (r *PostgresRepository) SlugTaken(ctx context.Context, slug string) (bool, error) {
	return r.store.IsSlugTaken(ctx, slug)
}

func fromRecord(rec persistence.TenantRecord) tenantinfo.Info {
	info := tenantinfo.Info{
		ID:          rec.TenantID.String(),
		Slug:        rec.Slug,
		CompanyName: rec.CompanyName,
		Theme:       rec.Theme,
		IsVerified:  rec.IsVerified,
		IsActive:    rec.IsActive,
		UpdatedAt:   rec.UpdatedAt,
	}
	if rec.LogoURL != nil {
		info.LogoURL = *rec.LogoURL
	}
	if rec.StripeAccountID != nil {
		info.StripeAccountID = *rec.StripeAccountID
	}
	return info
}

var (
	_ tenantinfo.Source = (*PostgresRepository)(nil)
	_ service.Directory = (*PostgresRepository)(nil)
)
