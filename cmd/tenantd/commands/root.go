// Package commands implements the tenantd CLI.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/tenantcache/config"
)

// CLI represents the tenantd command line.
type CLI struct {
	rootCmd *cobra.Command
	load    func() (config.Config, error)
}

// New creates the CLI with config read from the environment.
func New() *CLI {
	rootCmd := &cobra.Command{
		Use:           "tenantd",
		Short:         "Tenant resolution service with positive and negative caching",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	c := &CLI{rootCmd: rootCmd, load: config.LoadConfig}
	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newResolveCmd())
	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}
