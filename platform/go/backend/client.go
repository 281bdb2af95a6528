package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maison-mobility/maison-gate/platform/go/requesttrace"
)

// Headers forwarding the request trace of the caller.
const (
	HeaderRequestID = "X-Request-Id"
	HeaderActor     = "X-Maison-Actor"
	HeaderTenant    = "X-Maison-Tenant"
)

var (
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrNotFound     = errors.New("backend: not found")
	ErrConflict     = errors.New("backend: conflict")
)

// StatusError is returned for unexpected backend responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: unexpected status %d: %s", e.Status, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the Maison REST backend. It only covers the calls the gate needs.
type Client struct {
	base *url.URL
	http *http.Client
}

// New constructs a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend url must be absolute, got %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{base: base, http: httpClient}, nil
}

// LoginRequest carries portal credentials. Tenant is required for driver and rider portals.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Tenant   string `json:"tenantSlug,omitempty"`
}

// LoginResponse is the backend's answer to a successful login. Role may be empty, in which case
// it is carried inside the token.
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Role        string `json:"role,omitempty"`
}

// Tenant is the backend's tenant record.
type Tenant struct {
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

// RegisterTenantRequest carries the signup form.
type RegisterTenantRequest struct {
	CompanyName string `json:"companyName"`
	Slug        string `json:"slug"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	ContactName string `json:"contactName,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// RegisterTenantResponse returns the created tenant and an access token for its owner.
type RegisterTenantResponse struct {
	AccessToken string `json:"accessToken"`
	Tenant      Tenant `json:"tenant"`
}

// TenantSettings is a partial update of tenant branding. Nil fields are left unchanged.
type TenantSettings struct {
	CompanyName *string         `json:"companyName,omitempty"`
	LogoURL     *string         `json:"logoUrl,omitempty"`
	Theme       json.RawMessage `json:"theme,omitempty"`
}

// Login authenticates against portal (tenant, driver or rider).
func (c *Client) Login(ctx context.Context, portal string, req LoginRequest) (LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/"+url.PathEscape(portal)+"/login", "", req, &out); err != nil {
		return LoginResponse{}, err
	}
	if out.AccessToken == "" {
		return LoginResponse{}, errors.New("backend: login response without access token")
	}
	return out, nil
}

// RegisterTenant creates a tenant and its owner account.
func (c *Client) RegisterTenant(ctx context.Context, req RegisterTenantRequest) (RegisterTenantResponse, error) {
	var out RegisterTenantResponse
	if err := c.do(ctx, http.MethodPost, "/tenants/register", "", req, &out); err != nil {
		return RegisterTenantResponse{}, err
	}
	return out, nil
}

// TenantBySlug fetches a tenant by slug or subdomain label.
func (c *Client) TenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	var out Tenant
	if err := c.do(ctx, http.MethodGet, "/tenants/by-slug/"+url.PathEscape(slug), "", nil, &out); err != nil {
		return Tenant{}, err
	}
	return out, nil
}

// SlugAvailable reports whether slug can still be registered.
func (c *Client) SlugAvailable(ctx context.Context, slug string) (bool, error) {
	var out struct {
		Available bool `json:"available"`
	}
	path := "/tenants/slug-availability?" + url.Values{"slug": {slug}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

// UpdateTenantSettings updates the branding of the tenant owning token.
func (c *Client) UpdateTenantSettings(ctx context.Context, token string, settings TenantSettings) (Tenant, error) {
	var out Tenant
	if err := c.do(ctx, http.MethodPut, "/tenants/me/settings", token, settings, &out); err != nil {
		return Tenant{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out interface{}) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("backend path %q: %w", path, err)
	}
	target := *c.base
	target.Path = c.base.Path + ref.Path
	target.RawQuery = ref.RawQuery

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode backend request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("build backend request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if audit, ok := requesttrace.FromContext(ctx); ok {
		req.Header.Set(HeaderActor, string(audit.ActorKind))
		if audit.RequestID != "" {
			req.Header.Set(HeaderRequestID, audit.RequestID)
		}
		if audit.TenantSlug != nil {
			req.Header.Set(HeaderTenant, *audit.TenantSlug)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend %s %s: %w", method, ref.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrConflict
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode backend response: %w", err)
	}
	return nil
}
