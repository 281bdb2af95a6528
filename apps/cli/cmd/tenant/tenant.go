package tenantcmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/maison-mobility/maison-gate/platform/go/persistence"
	"github.com/maison-mobility/maison-gate/platform/go/tenant"
	"github.com/maison-mobility/maison-gate/platform/go/tenantinfo"
)

// Command groups tenant-related helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant utilities (resolve, create, activate, invalidate)",
	}

	cmd.AddCommand(resolveCommand())
	cmd.AddCommand(createCommand())
	cmd.AddCommand(setActiveCommand())
	cmd.AddCommand(invalidateCommand())
	return cmd
}

type resolveOutput struct {
	Resolution tenant.Resolution `json:"resolution"`
	RoutedPath string            `json:"routedPath"`
}

func resolveCommand() *cobra.Command {
	var (
		baseDomains    []string
		reservedLabels []string
		reservedRoutes []string
		precedence     string
	)

	c := &cobra.Command{
		Use:   "resolve <url>",
		Short: "Show the tenant context the gateway derives for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := args[0]
			if !strings.Contains(raw, "://") {
				raw = "https://" + raw
			}
			u, err := url.Parse(raw)
			if err != nil {
				return fmt.Errorf("parse url: %w", err)
			}

			policy := tenant.DefaultPolicy(baseDomains...)
			if len(reservedLabels) > 0 {
				policy.ReservedLabels = reservedLabels
			}
			if len(reservedRoutes) > 0 {
				policy.ReservedRoutes = reservedRoutes
			}
			switch tenant.Precedence(precedence) {
			case tenant.SubdomainFirst, tenant.PathFirst:
				policy.Precedence = tenant.Precedence(precedence)
			default:
				return fmt.Errorf("invalid precedence %q (use %s or %s)", precedence, tenant.SubdomainFirst, tenant.PathFirst)
			}

			path := u.Path
			if path == "" {
				path = "/"
			}
			res := tenant.NewResolver(policy).Resolve(u.Host, path)

			out := resolveOutput{Resolution: res, RoutedPath: path}
			if stripped, ok := tenant.StripPortalPrefix(path, res.Identifier); ok {
				out.RoutedPath = stripped
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	c.Flags().StringSliceVar(&baseDomains, "base-domain", nil, "registrable domains served by the platform (repeatable)")
	c.Flags().StringSliceVar(&reservedLabels, "reserved-label", nil, "override reserved subdomain labels")
	c.Flags().StringSliceVar(&reservedRoutes, "reserved-route", nil, "override reserved first path segments")
	c.Flags().StringVar(&precedence, "precedence", string(tenant.SubdomainFirst), "subdomain-first | path-first")

	return c
}

func createCommand() *cobra.Command {
	var (
		databaseURL     string
		slug            string
		companyName     string
		logoURL         string
		stripeAccountID string
		verified        bool
		inactive        bool
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Insert a tenant into the registry read by TENANT_SOURCE=postgres gateways",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			name := strings.TrimSpace(companyName)
			if name == "" {
				return errors.New("--company-name is required")
			}
			normalized := tenant.SlugFrom(name)
			if strings.TrimSpace(slug) != "" {
				var err error
				if normalized, err = tenant.NormalizeSlug(slug); err != nil {
					return err
				}
			}
			if normalized == "" {
				return fmt.Errorf("cannot derive a slug from %q", name)
			}
			if resolver := tenant.NewResolver(tenant.DefaultPolicy()); resolver.IsReservedRoute(normalized) || resolver.IsReservedLabel(normalized) {
				return fmt.Errorf("slug %q is reserved", normalized)
			}

			store, closeFn, err := openStore(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer closeFn()

			rec, err := store.Create(ctx, persistence.TenantRecord{
				Slug:            normalized,
				CompanyName:     name,
				LogoURL:         strPtrOrNil(logoURL),
				IsVerified:      verified,
				IsActive:        !inactive,
				StripeAccountID: strPtrOrNil(stripeAccountID),
			})
			if err != nil {
				return fmt.Errorf("create tenant: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Tenant created. Tenant: %s (%s)\n", rec.Slug, rec.TenantID)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&companyName, "company-name", "", "Tenant company name")
	c.Flags().StringVar(&slug, "slug", "", "Tenant slug; derived from the company name when empty")
	c.Flags().StringVar(&logoURL, "logo-url", "", "Logo URL")
	c.Flags().StringVar(&stripeAccountID, "stripe-account-id", "", "Connected Stripe account id")
	c.Flags().BoolVar(&verified, "verified", false, "Mark the tenant verified")
	c.Flags().BoolVar(&inactive, "inactive", false, "Create the tenant deactivated")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("company-name")

	return c
}

func setActiveCommand() *cobra.Command {
	var (
		databaseURL string
		redisURL    string
		slug        string
		active      bool
	)

	c := &cobra.Command{
		Use:   "set-active",
		Short: "Activate or deactivate a tenant; inactive tenants render the not-found view",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			store, closeFn, err := openStore(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := store.SetActive(ctx, slug, active); err != nil {
				return fmt.Errorf("set tenant active: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tenant %s active=%t\n", slug, active)

			if redisURL == "" {
				return nil
			}
			return invalidate(ctx, cmd, redisURL, []string{slug}, false)
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	c.Flags().StringVar(&slug, "slug", "", "Tenant slug")
	c.Flags().BoolVar(&active, "active", true, "Desired state")
	c.Flags().StringVar(&redisURL, "redis-url", "", "Redis shared by the gateways; when set, their cached copy is invalidated")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("slug")

	return c
}

func invalidateCommand() *cobra.Command {
	var (
		redisURL string
		slugs    []string
		all      bool
	)

	c := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop cached tenant records from every gateway sharing a Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(slugs) > 0) {
				return errors.New("pass either --slug or --all")
			}
			for i, slug := range slugs {
				normalized, err := tenant.NormalizeSlug(slug)
				if err != nil {
					return err
				}
				slugs[i] = normalized
			}
			return invalidate(context.Background(), cmd, redisURL, slugs, all)
		},
	}

	c.Flags().StringVar(&redisURL, "redis-url", "", "Redis URL shared by the gateways")
	c.Flags().StringSliceVar(&slugs, "slug", nil, "tenant slug to invalidate (repeatable)")
	c.Flags().BoolVar(&all, "all", false, "invalidate every cached tenant")
	_ = c.MarkFlagRequired("redis-url")

	return c
}

func invalidate(ctx context.Context, cmd *cobra.Command, redisURL string, slugs []string, all bool) error {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	store := tenantinfo.NewRedisStore(client, 0)
	invalidator := tenantinfo.NewRedisInvalidator(client, 0, nil)

	if all {
		n, err := store.DeleteAll(ctx)
		if err != nil {
			return err
		}
		if err := invalidator.PublishAll(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Invalidated all tenants (%d shared entries)\n", n)
		return nil
	}

	for _, slug := range slugs {
		if err := store.Delete(ctx, slug); err != nil {
			return err
		}
		if err := invalidator.Publish(ctx, slug); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Invalidated tenant %s\n", slug)
	}
	return nil
}

func openStore(ctx context.Context, databaseURL string) (*persistence.TenantStore, func(), error) {
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{
		ConnString:      databaseURL,
		ApplicationName: "maison-cli",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}

	store, err := persistence.NewTenantStore(pool)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, fmt.Errorf("init tenant store: %w", err)
	}
	return store, func() { persistence.ClosePool(pool) }, nil
}

func strPtrOrNil(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
