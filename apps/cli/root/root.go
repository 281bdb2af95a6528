package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the Maison admin CLI. Subcommands (auth, tenant, bootstrap) are attached here.
var rootCmd = &cobra.Command{
	Use:           "maison",
	Short:         "Maison admin CLI",
	Long:          "Administrative utilities for the Maison gate (dev tokens, tenant resolution, registry bootstrap).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
