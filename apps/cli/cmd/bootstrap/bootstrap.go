package bootstrap

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maison-mobility/maison-gate/platform/go/persistence"
)

// Command groups bootstrap helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap platform resources (tenant registry)",
	}

	cmd.AddCommand(databaseCommand())
	return cmd
}

func databaseCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "database",
		Short: "Create the maison schema and tenant registry table (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{
				ConnString:      databaseURL,
				ApplicationName: "maison-cli",
			})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.Bootstrap(ctx, pool); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Tenant registry ready.")
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")
	_ = c.MarkFlagRequired("database-url")

	return c
}
