package main

import (
	"context"

	"go.uber.org/zap"

	platformauth "github.com/maison-mobility/maison-gate/platform/go/auth"
)

// buildTokenDecoder selects how backend access tokens are decoded into session claims.
func buildTokenDecoder(ctx context.Context, cfg config, logger *zap.Logger) platformauth.TokenDecoder {
	switch cfg.AuthProvider {
	case "hmac":
		decoder, err := platformauth.HMACDecoder([]byte(cfg.JWTSecret), cfg.JWTIssuer)
		if err != nil {
			logger.Fatal("init hmac decoder", zap.Error(err))
		}
		return decoder
	case "firebase":
		client, err := platformauth.NewFirebaseAuth(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentials)
		if err != nil {
			logger.Fatal("init firebase auth", zap.Error(err))
		}
		return platformauth.FirebaseDecoder(client)
	case "dev":
		logger.Warn("using unverified token decoder; do not use in production")
		return platformauth.UnverifiedDecoder()
	default:
		logger.Fatal("unsupported auth provider", zap.String("provider", cfg.AuthProvider))
	}
	return nil
}
