package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/maison-mobility/maison-gate/domains/tenants/be/service"
	"github.com/maison-mobility/maison-gate/platform/go/backend"
	"github.com/maison-mobility/maison-gate/platform/go/tenantinfo"
)

// BackendRepository reads and updates tenants through the Maison REST backend.
type BackendRepository struct {
	client *backend.Client
}

// NewBackendRepository constructs a BackendRepository.
func NewBackendRepository(client *backend.Client) *BackendRepository {
	if client == nil {
		panic("backend client is required")
	}
	return &BackendRepository{client: client}
}

// Lookup implements tenantinfo.Source.
func (r *BackendRepository) Lookup(ctx context.Context, identifier string) (tenantinfo.Info, error) {
	t, err := r.client.TenantBySlug(ctx, identifier)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return tenantinfo.Info{}, tenantinfo.ErrNotFound
		}
		return tenantinfo.Info{}, fmt.Errorf("lookup tenant %q: %w", identifier, err)
	}
	return FromBackend(t), nil
}

// SlugTaken implements service.Directory.
func (r *BackendRepository) SlugTaken(ctx context.Context, slug string) (bool, error) {
	available, err := r.client.SlugAvailable(ctx, slug)
	if err != nil {
		return false, fmt.Errorf("check slug %q: %w", slug, err)
	}
	return !available, nil
}

// UpdateSettings implements service.SettingsWriter.
func (r *BackendRepository) UpdateSettings(ctx context.Context, token string, in service.SettingsInput) (tenantinfo.Info, error) {
	t, err := r.client.UpdateTenantSettings(ctx, token, backend.TenantSettings{
		CompanyName: in.CompanyName,
		LogoURL:     in.LogoURL,
		Theme:       in.Theme,
	})
	if err != nil {
		switch {
		case errors.Is(err, backend.ErrUnauthorized):
			return tenantinfo.Info{}, service.ErrForbidden
		case errors.Is(err, backend.ErrNotFound):
			return tenantinfo.Info{}, tenantinfo.ErrNotFound
		}
		return tenantinfo.Info{}, fmt.Errorf("update tenant settings: %w", err)
	}
	return FromBackend(t), nil
}

// FromBackend maps the backend's tenant record.
func FromBackend(t backend.Tenant) tenantinfo.Info {
	return tenantinfo.Info{
		ID:              t.ID,
		Slug:            t.Slug,
		CompanyName:     t.CompanyName,
		LogoURL:         t.LogoURL,
		Theme:           t.Theme,
		IsVerified:      t.IsVerified,
		IsActive:        t.IsActive,
		StripeAccountID: t.StripeAccountID,
		UpdatedAt:       t.UpdatedAt,
	}
}

var (
	_ tenantinfo.Source      = (*BackendRepository)(nil)
	_ service.Directory      = (*BackendRepository)(nil)
	_ service.SettingsWriter = (*BackendRepository)(nil)
)
