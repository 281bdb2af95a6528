package devtoken

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Params captures the claims required to mint a Maison access token for local and CI
// environments. No environment variables are read so the builder stays deterministic for tooling.
type Params struct {
	Subject   string        // sub claim (required)
	Role      string        // tenant | driver | rider | admin (required)
	Tenant    string        // tenant slug claim; required for driver and rider tokens
	Issuer    string        // optional iss claim
	ExpiresIn time.Duration // relative expiry; default 1h if zero
}

func (p Params) claims(now time.Time) (jwt.MapClaims, error) {
	if strings.TrimSpace(p.Subject) == "" {
		return nil, errors.New("subject is required")
	}
	role := strings.ToLower(strings.TrimSpace(p.Role))
	switch role {
	case "tenant", "admin":
	case "driver", "rider":
		if strings.TrimSpace(p.Tenant) == "" {
			return nil, errors.New("tenant is required for driver and rider tokens")
		}
	default:
		return nil, errors.New("role must be one of tenant, driver, rider, admin")
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}
	expiresIn := p.ExpiresIn
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	claims := jwt.MapClaims{
		"sub":  p.Subject,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(expiresIn).Unix(),
	}
	if p.Tenant != "" {
		claims["tenant"] = p.Tenant
	}
	if p.Issuer != "" {
		claims["iss"] = p.Issuer
	}
	return claims, nil
}

// BuildSignedToken returns an HS256 token accepted by the hmac auth provider.
func BuildSignedToken(p Params, secret []byte, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("secret is required")
	}
	claims, err := p.claims(now)
	if err != nil {
		return "", err
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// BuildUnsignedToken returns a token with alg "none" for the dev auth provider.
func BuildUnsignedToken(p Params, now time.Time) (string, error) {
	claims, err := p.claims(now)
	if err != nil {
		return "", err
	}
	return jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
}
