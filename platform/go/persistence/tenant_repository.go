package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantsTable defines the fully-qualified table for the tenant registry.
const TenantsTable = "maison.tenants"

// ErrNotFound is returned when a tenant record is not found.
var ErrNotFound = errors.New("tenant not found")

// ErrSlugTaken is returned when inserting a slug that already exists.
var ErrSlugTaken = errors.New("tenant slug already taken")

// TenantRecord is the branding projection of a tenant row.
type TenantRecord struct {
	TenantID        uuid.UUID       `db:"tenant_id"`
	Slug            string          `db:"slug"`
	CompanyName     string          `db:"company_name"`
	LogoURL         *string         `db:"logo_url"`
	Theme           json.RawMessage `db:"theme"`
	IsVerified      bool            `db:"is_verified"`
	IsActive        bool            `db:"is_active"`
	StripeAccountID *string         `db:"stripe_account_id"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

const tenantColumns = `tenant_id, slug, company_name, logo_url, theme, is_verified, is_active,
        stripe_account_id, created_at, updated_at`

// TenantStore provides read access to the tenant registry, plus the inserts used by tooling.
type TenantStore struct {
	pool *pgxpool.Pool
}

// NewTenantStore creates a store; assumes the table already exists.
func NewTenantStore(pool *pgxpool.Pool) (*TenantStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &TenantStore{pool: pool}, nil
}

// Create inserts a tenant row.
func (s *TenantStore) Create(ctx context.Context, rec TenantRecord) (TenantRecord, error) {
	if rec.TenantID == uuid.Nil {
		rec.TenantID = uuid.New()
	}
	if strings.TrimSpace(rec.Slug) == "" {
		return TenantRecord{}, errors.New("tenant slug is required")
	}
	if len(rec.Theme) == 0 {
		rec.Theme = json.RawMessage(`{}`)
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (%s)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING %s
    `, TenantsTable, tenantColumns, tenantColumns)

	row := s.pool.QueryRow(ctx, query,
		rec.TenantID, rec.Slug, rec.CompanyName, rec.LogoURL, rec.Theme, rec.IsVerified,
		rec.IsActive, rec.StripeAccountID, rec.CreatedAt, rec.UpdatedAt,
	)

	out, err := scanTenantRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return TenantRecord{}, ErrSlugTaken
		}
		return TenantRecord{}, err
	}
	return out, nil
}

// GetBySlug returns the tenant registered under slug, active or not.
func (s *TenantStore) GetBySlug(ctx context.Context, slug string) (TenantRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE lower(slug) = lower($1)`, tenantColumns, TenantsTable)
	return scanTenantRecord(s.pool.QueryRow(ctx, query, slug))
}

// IsSlugTaken reports whether any tenant already uses slug.
func (s *TenantStore) IsSlugTaken(ctx context.Context, slug string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE lower(slug) = lower($1))`, TenantsTable)
	var taken bool
	if err := s.pool.QueryRow(ctx, query, slug).Scan(&taken); err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return taken, nil
}

// SetActive toggles a tenant's active flag.
func (s *TenantStore) SetActive(ctx context.Context, slug string, active bool) error {
	query := fmt.Sprintf(`UPDATE %s SET is_active = $2, updated_at = now() WHERE lower(slug) = lower($1)`, TenantsTable)
	tag, err := s.pool.Exec(ctx, query, slug, active)
	if err != nil {
		return fmt.Errorf("set tenant active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTenantRecord(row pgx.Row) (TenantRecord, error) {
	var rec TenantRecord
	var theme []byte
	if err := row.Scan(&rec.TenantID, &rec.Slug, &rec.CompanyName, &rec.LogoURL, &theme, &rec.IsVerified,
		&rec.IsActive, &rec.StripeAccountID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TenantRecord{}, ErrNotFound
		}
		return TenantRecord{}, err
	}
	rec.Theme = json.RawMessage(theme)
	return rec, nil
}
