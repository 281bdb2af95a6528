package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// NewFirebaseAuth initializes a Firebase App and returns its Auth client.
// An empty credentialsFile falls back to application default credentials.
func NewFirebaseAuth(ctx context.Context, projectID, credentialsFile string) (*firebaseauth.Client, error) {
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return client, nil
}

// IDTokenVerifier is the subset of the Firebase Auth client used for decoding.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseDecoder verifies Firebase ID tokens. The Maison role and tenant slug are custom claims;
// a Firebase tenant is used when no tenant claim is set.
func FirebaseDecoder(verifier IDTokenVerifier) TokenDecoder {
	return DecoderFunc(func(ctx context.Context, token string) (Claims, error) {
		t, err := verifier.VerifyIDToken(ctx, token)
		if err != nil {
			return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}

		out := Claims{
			Subject:    t.UID,
			Role:       strings.ToLower(fallbackStringClaim(t.Claims, []string{"role", "rol"})),
			TenantSlug: fallbackStringClaim(t.Claims, []string{"tenant", "tenant_slug"}),
		}
		if out.Subject == "" {
			out.Subject = t.Subject
		}
		if out.TenantSlug == "" {
			out.TenantSlug = t.Firebase.Tenant
		}
		if t.Expires > 0 {
			out.ExpiresAt = time.Unix(t.Expires, 0).UTC()
		}
		return out, nil
	})
}
