package tenantinfo

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no tenant exists for an identifier.
	ErrNotFound = errors.New("tenant not found")
	// ErrInactive marks a tenant that exists but may not serve portals.
	ErrInactive = errors.New("tenant inactive")
)

// Info is the tenant record used for branding and portal access checks.
type Info struct {
	ID              string          `json:"id"`
	Slug            string          `json:"slug"`
	CompanyName     string          `json:"companyName"`
	LogoURL         string          `json:"logoUrl,omitempty"`
	Theme           json.RawMessage `json:"theme,omitempty"`
	IsVerified      bool            `json:"isVerified"`
	IsActive        bool            `json:"isActive"`
	StripeAccountID string          `json:"stripeAccountId,omitempty"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Source looks up tenant records by identifier (slug or subdomain label).
type Source interface {
	Lookup(ctx context.Context, identifier string) (Info, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, identifier string) (Info, error)

// Lookup implements Source.
func (f SourceFunc) Lookup(ctx context.Context, identifier string) (Info, error) {
	return f(ctx, identifier)
}
