package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no bearer token is present.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken wraps every decode or verification failure.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the identity carried by a Maison access token.
type Claims struct {
	Subject    string
	Role       string
	TenantSlug string
	ExpiresAt  time.Time
}

// TokenDecoder turns an opaque access token into Claims.
type TokenDecoder interface {
	Decode(ctx context.Context, token string) (Claims, error)
}

// DecoderFunc adapts a function to TokenDecoder.
type DecoderFunc func(ctx context.Context, token string) (Claims, error)

// Decode implements TokenDecoder.
func (f DecoderFunc) Decode(ctx context.Context, token string) (Claims, error) {
	return f(ctx, token)
}

// HMACDecoder verifies HS256/384/512 tokens issued by the backend with a shared secret.
// Expiry is mandatory; issuer is checked when not empty.
func HMACDecoder(secret []byte, issuer string) (TokenDecoder, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: hmac secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	keyFunc := func(*jwt.Token) (interface{}, error) { return secret, nil }

	return DecoderFunc(func(ctx context.Context, token string) (Claims, error) {
		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(token, claims, keyFunc); err != nil {
			return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return claimsFromMap(claims)
	}), nil
}

// UnverifiedDecoder decodes token payloads without checking signatures.
// Intended for local development only.
func UnverifiedDecoder() TokenDecoder {
	parser := jwt.NewParser()
	return DecoderFunc(func(ctx context.Context, token string) (Claims, error) {
		claims := jwt.MapClaims{}
		if _, _, err := parser.ParseUnverified(token, claims); err != nil {
			return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return claimsFromMap(claims)
	})
}

func claimsFromMap(claims jwt.MapClaims) (Claims, error) {
	if claims == nil {
		return Claims{}, fmt.Errorf("%w: missing claims", ErrInvalidToken)
	}

	out := Claims{
		Subject:    fallbackStringClaim(claims, []string{"sub", "uid", "user_id"}),
		Role:       strings.ToLower(fallbackStringClaim(claims, []string{"role", "rol"})),
		TenantSlug: fallbackStringClaim(claims, []string{"tenant", "tenant_slug"}),
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	if out.Subject == "" {
		return Claims{}, fmt.Errorf("%w: subject claim is required", ErrInvalidToken)
	}
	return out, nil
}

func extractStringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key]; ok {
		if strVal, valid := v.(string); valid {
			return strVal
		}
	}
	return ""
}

func fallbackStringClaim(claims map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if v := extractStringClaim(claims, key); v != "" {
			return v
		}
	}
	return ""
}

// ExtractBearerToken returns the token from the Authorization header.
func ExtractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	const prefix = "Bearer "
	// Case-insensitive prefix match.
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return "", false
	}

	token := strings.TrimSpace(authHeader[len(prefix):])
	return token, token != ""
}
