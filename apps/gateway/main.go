package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/maison-mobility/maison-gate/contracts"
	authhandler "github.com/maison-mobility/maison-gate/domains/auth/be/handler"
	authservice "github.com/maison-mobility/maison-gate/domains/auth/be/service"
	tenantshandler "github.com/maison-mobility/maison-gate/domains/tenants/be/handler"
	tenantsservice "github.com/maison-mobility/maison-gate/domains/tenants/be/service"
	"github.com/maison-mobility/maison-gate/platform/go/access"
	"github.com/maison-mobility/maison-gate/platform/go/backend"
	platformlogging "github.com/maison-mobility/maison-gate/platform/go/logging"
	platformmiddleware "github.com/maison-mobility/maison-gate/platform/go/middleware"
	"github.com/maison-mobility/maison-gate/platform/go/session"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
	"github.com/maison-mobility/maison-gate/platform/go/tenantinfo"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogConsole      bool          `env:"LOG_CONSOLE" envDefault:"false"`

	BaseDomains       []string `env:"BASE_DOMAINS,required" envSeparator:","`
	ReservedLabels    []string `env:"RESERVED_LABELS" envSeparator:","`
	ReservedRoutes    []string `env:"RESERVED_ROUTES" envSeparator:","`
	ResolvePrecedence string   `env:"RESOLVE_PRECEDENCE" envDefault:"subdomain-first"` // subdomain-first | path-first

	BackendURL     string        `env:"BACKEND_URL,required"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"10s"`
	TenantSource   string        `env:"TENANT_SOURCE" envDefault:"backend"` // backend | postgres
	DatabaseURL    string        `env:"DATABASE_URL"`                       // required when TENANT_SOURCE=postgres
	RedisURL       string        `env:"REDIS_URL"`                          // sessions and tenant cache stay in memory when empty

	AuthProvider        string `env:"AUTH_PROVIDER" envDefault:"hmac"` // hmac | dev | firebase
	JWTSecret           string `env:"JWT_SECRET"`
	JWTIssuer           string `env:"JWT_ISSUER"`
	FirebaseProjectID   string `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentials string `env:"FIREBASE_CREDENTIALS_FILE"`

	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	CookieDomain string        `env:"COOKIE_DOMAIN"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"true"`

	TenantCacheTTL     time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
	TenantWait         time.Duration `env:"TENANT_WAIT" envDefault:"2s"`
	TenantFetchTimeout time.Duration `env:"TENANT_FETCH_TIMEOUT" envDefault:"5s"`
	InvalidationQuiet  time.Duration `env:"TENANT_INVALIDATION_QUIET" envDefault:"250ms"`

	LoginRatePerSecond float64 `env:"LOGIN_RATE_PER_SECOND" envDefault:"0.2"`
	LoginBurst         int     `env:"LOGIN_BURST" envDefault:"5"`
	CORSAllowInsecure  bool    `env:"CORS_ALLOW_INSECURE" envDefault:"false"`

	StorageBackend   string `env:"STORAGE_BACKEND" envDefault:"local"`            // local | gcs | none
	StorageBucket    string `env:"STORAGE_BUCKET"`                                // required when STORAGE_BACKEND=gcs
	StorageLocalDir  string `env:"STORAGE_LOCAL_DIR" envDefault:"./.data/assets"` // used when STORAGE_BACKEND=local
	StoragePublicURL string `env:"STORAGE_PUBLIC_URL"`                            // defaults to the bucket's public URL
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "gateway",
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	resolver := tenant.NewResolver(buildPolicy(cfg))

	decoder := buildTokenDecoder(ctx, cfg, logger)

	backendClient, err := backend.New(backend.Config{BaseURL: cfg.BackendURL, Timeout: cfg.BackendTimeout})
	if err != nil {
		logger.Fatal("init backend client", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("parse redis url", zap.Error(err))
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("ping redis", zap.Error(err))
		}
	} else {
		logger.Warn("REDIS_URL not set; sessions and tenant cache are local to this instance")
	}

	var persister session.Persister = session.NewMemoryPersister()
	cacheOpts := []tenantinfo.Option{
		tenantinfo.WithTTL(cfg.TenantCacheTTL),
		tenantinfo.WithFetchTimeout(cfg.TenantFetchTimeout),
		tenantinfo.WithLogger(logger),
	}
	var invalidator *tenantinfo.RedisInvalidator
	if redisClient != nil {
		persister = session.NewRedisPersister(redisClient, cfg.SessionTTL)
		invalidator = tenantinfo.NewRedisInvalidator(redisClient, cfg.InvalidationQuiet, logger)
		cacheOpts = append(cacheOpts,
			tenantinfo.WithSharedStore(tenantinfo.NewRedisStore(redisClient, cfg.TenantCacheTTL)),
			tenantinfo.WithBroadcaster(invalidator),
		)
	}

	tenants, cleanup := buildTenantSource(ctx, cfg, backendClient, logger)
	defer cleanup()

	cache := tenantinfo.NewCache(tenants.source, cacheOpts...)
	if invalidator != nil {
		go func() {
			if err := invalidator.Run(ctx, cache, true); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("tenant invalidation listener stopped", zap.Error(err))
			}
		}()
	}

	reserved := func(slug string) bool { return resolver.IsReservedRoute(slug) || resolver.IsReservedLabel(slug) }

	assets, closeAssets := buildAssetStore(ctx, cfg, logger)
	defer closeAssets()

	tenantService, err := tenantsservice.New(cache, tenants.directory, tenants.settings, tenantsservice.Config{
		Wait:     cfg.TenantWait,
		Reserved: reserved,
		Assets:   assets.store,
	})
	if err != nil {
		logger.Fatal("init tenant service", zap.Error(err))
	}

	doc, err := contracts.LoadGateway(ctx)
	if err != nil {
		logger.Fatal("load gateway contract", zap.Error(err))
	}

	limiter := platformmiddleware.NewRateLimiter(platformmiddleware.RateLimitConfig{
		RequestsPerSecond: cfg.LoginRatePerSecond,
		Burst:             cfg.LoginBurst,
	})
	go limiter.Run(ctx)

	gw := &gateway{
		logger:         logger,
		resolver:       resolver,
		sessions:       session.NewManager(persister, decoder),
		cookie:         session.CookieConfig{Domain: cfg.CookieDomain, Secure: cfg.CookieSecure, TTL: cfg.SessionTTL},
		guard:          access.NewGuard(cache, cfg.TenantWait, nil),
		contract:       doc,
		limiter:        limiter,
		cors:           platformmiddleware.CORSConfig{BaseDomains: cfg.BaseDomains, AllowInsecure: cfg.CORSAllowInsecure},
		requestTimeout: cfg.RequestTimeout,
		assetsDir:      assets.localDir,
		auth:           authhandler.New(authservice.New(backendClient, reserved), logger),
		tenants:        tenantshandler.New(tenantService, logger),
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      gw.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting gateway",
			zap.String("port", cfg.Port),
			zap.Strings("base_domains", cfg.BaseDomains),
			zap.String("tenant_source", cfg.TenantSource),
			zap.String("auth_provider", cfg.AuthProvider),
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildPolicy(cfg config) tenant.Policy {
	policy := tenant.DefaultPolicy(cfg.BaseDomains...)
	if len(cfg.ReservedLabels) > 0 {
		policy.ReservedLabels = cfg.ReservedLabels
	}
	if len(cfg.ReservedRoutes) > 0 {
		policy.ReservedRoutes = cfg.ReservedRoutes
	}
	if cfg.ResolvePrecedence == string(tenant.PathFirst) {
		policy.Precedence = tenant.PathFirst
	}
	return policy
}
