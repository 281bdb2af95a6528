package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestHMACDecoder(t *testing.T) {
	decoder, err := HMACDecoder([]byte("s3cret"), "maison")
	require.NoError(t, err)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	testCases := []struct {
		name    string
		token   string
		want    Claims
		wantErr bool
	}{
		{
			name:  "valid tenant token",
			token: signHS256(t, "s3cret", jwt.MapClaims{"sub": "owner-1", "role": "TENANT", "iss": "maison", "exp": exp.Unix()}),
			want:  Claims{Subject: "owner-1", Role: "tenant", ExpiresAt: exp},
		},
		{
			name:  "legacy claim names",
			token: signHS256(t, "s3cret", jwt.MapClaims{"uid": "driver-9", "rol": "driver", "tenant_slug": "acme", "iss": "maison", "exp": exp.Unix()}),
			want:  Claims{Subject: "driver-9", Role: "driver", TenantSlug: "acme", ExpiresAt: exp},
		},
		{
			name:    "wrong secret",
			token:   signHS256(t, "other", jwt.MapClaims{"sub": "x", "role": "rider", "iss": "maison", "exp": exp.Unix()}),
			wantErr: true,
		},
		{
			name:    "expired",
			token:   signHS256(t, "s3cret", jwt.MapClaims{"sub": "x", "role": "rider", "iss": "maison", "exp": time.Now().Add(-time.Hour).Unix()}),
			wantErr: true,
		},
		{
			name:    "missing expiry",
			token:   signHS256(t, "s3cret", jwt.MapClaims{"sub": "x", "role": "rider", "iss": "maison"}),
			wantErr: true,
		},
		{
			name:    "wrong issuer",
			token:   signHS256(t, "s3cret", jwt.MapClaims{"sub": "x", "role": "rider", "iss": "elsewhere", "exp": exp.Unix()}),
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   "not-a-jwt",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decoder.Decode(context.Background(), tc.token)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want.Subject, got.Subject)
			require.Equal(t, tc.want.Role, got.Role)
			require.Equal(t, tc.want.TenantSlug, got.TenantSlug)
			require.True(t, tc.want.ExpiresAt.Equal(got.ExpiresAt))
		})
	}
}

func TestHMACDecoderRequiresSecret(t *testing.T) {
	_, err := HMACDecoder(nil, "")
	require.Error(t, err)
}

func TestUnverifiedDecoderRequiresSubject(t *testing.T) {
	token := signHS256(t, "anything", jwt.MapClaims{"role": "rider"})
	_, err := UnverifiedDecoder().Decode(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

type fakeVerifier struct {
	token *firebaseauth.Token
	err   error
}

func (f fakeVerifier) VerifyIDToken(context.Context, string) (*firebaseauth.Token, error) {
	return f.token, f.err
}

func TestFirebaseDecoder(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	decoder := FirebaseDecoder(fakeVerifier{token: &firebaseauth.Token{
		UID:      "uid-1",
		Expires:  exp,
		Firebase: firebaseauth.FirebaseInfo{Tenant: "acme"},
		Claims:   map[string]interface{}{"role": "Driver"},
	}})

	claims, err := decoder.Decode(context.Background(), "id-token")
	require.NoError(t, err)
	require.Equal(t, Claims{Subject: "uid-1", Role: "driver", TenantSlug: "acme", ExpiresAt: time.Unix(exp, 0).UTC()}, claims)

	failing := FirebaseDecoder(fakeVerifier{err: errors.New("revoked")})
	_, err = failing.Decode(context.Background(), "id-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	_, ok := ExtractBearerToken(req)
	require.False(t, ok)

	req.Header.Set("Authorization", "bearer abc.def")
	token, ok := ExtractBearerToken(req)
	require.True(t, ok)
	require.Equal(t, "abc.def", token)

	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	_, ok = ExtractBearerToken(req)
	require.False(t, ok)

	req.Header.Set("Authorization", "Bearer   ")
	_, ok = ExtractBearerToken(req)
	require.False(t, ok)
}
