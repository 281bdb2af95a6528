package main

import (
	"context"

	"go.uber.org/zap"

	tenantsrepo "github.com/maison-mobility/maison-gate/domains/tenants/be/repo"
	tenantsservice "github.com/maison-mobility/maison-gate/domains/tenants/be/service"
	"github.com/maison-mobility/maison-gate/platform/go/backend"
	"github.com/maison-mobility/maison-gate/platform/go/persistence"
	"github.com/maison-mobility/maison-gate/platform/go/tenantinfo"
)

// tenantSource groups the tenant collaborators picked by TENANT_SOURCE. Settings always go
// through the backend, which owns the registry.
type tenantSource struct {
	source    tenantinfo.Source
	directory tenantsservice.Directory
	settings  tenantsservice.SettingsWriter
}

func buildTenantSource(ctx context.Context, cfg config, client *backend.Client, logger *zap.Logger) (tenantSource, func()) {
	backendRepo := tenantsrepo.NewBackendRepository(client)

	switch cfg.TenantSource {
	case "backend":
		return tenantSource{source: backendRepo, directory: backendRepo, settings: backendRepo}, func() {}
	case "postgres":
		if cfg.DatabaseURL == "" {
			logger.Fatal("database url required when TENANT_SOURCE=postgres")
		}
		pool, err := persistence.NewPool(ctx, persistence.PoolConfig{
			ConnString:      cfg.DatabaseURL,
			ApplicationName: "maison-gateway",
			ReadOnly:        true,
		})
		if err != nil {
			logger.Fatal("init postgres pool", zap.Error(err))
		}
		store, err := persistence.NewTenantStore(pool)
		if err != nil {
			logger.Fatal("init tenant store", zap.Error(err))
		}
		pgRepo := tenantsrepo.NewPostgresRepository(store)
		return tenantSource{source: pgRepo, directory: pgRepo, settings: backendRepo}, func() { persistence.ClosePool(pool) }
	default:
		logger.Fatal("invalid TENANT_SOURCE (use backend or postgres)", zap.String("source", cfg.TenantSource))
	}
	return tenantSource{}, func() {}
}
