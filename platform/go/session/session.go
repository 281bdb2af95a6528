package session

import (
	"fmt"
	"strings"
	"time"
)

// Role determines which route subtrees a session may access.
type Role string

const (
	RoleTenant Role = "tenant"
	RoleDriver Role = "driver"
	RoleRider  Role = "rider"
	RoleAdmin  Role = "admin"
)

// ParseRole converts a claim value into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleTenant, RoleDriver, RoleRider, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// IsTenantPortal reports whether the role lives under a tenant portal (drivers and riders).
func (r Role) IsTenantPortal() bool {
	return r == RoleDriver || r == RoleRider
}

// Session is the authentication state of one browser session.
type Session struct {
	AccessToken string    `json:"accessToken,omitempty"`
	Role        Role      `json:"role,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	TenantSlug  string    `json:"tenantSlug,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

// IsAuthenticated reports whether the session carries a usable token and role right now.
func (s Session) IsAuthenticated() bool {
	return s.IsAuthenticatedAt(time.Now())
}

// IsAuthenticatedAt is IsAuthenticated evaluated at now.
func (s Session) IsAuthenticatedAt(now time.Time) bool {
	if s.AccessToken == "" || s.Role == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// HasRole reports whether the session is authenticated with one of roles.
func (s Session) HasRole(roles ...Role) bool {
	if !s.IsAuthenticated() {
		return false
	}
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

// Public strips the access token for responses sent to the browser.
func (s Session) Public() Session {
	s.AccessToken = ""
	return s
}
