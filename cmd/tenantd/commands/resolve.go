package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/tenantcache/internal/app"
	"github.com/unkn0wn-root/tenantcache/tenant"
)

var errOneIdentifier = errors.New("exactly one of --identifier, --id, --slug or --host is required")

func (c *CLI) newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Look up one tenant through the cache and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			id, err := identifierFromFlags(cmd)
			if err != nil {
				return err
			}
			cfg, err := c.load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeJoined(context.WithoutCancel(ctx), a, &err)

			t, err := a.Service.Lookup(ctx, id)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(t)
		},
	}
	cmd.Flags().String("identifier", "", "Raw identifier, classified like the tenant header")
	cmd.Flags().String("id", "", "Tenant UUID")
	cmd.Flags().String("slug", "", "Tenant slug")
	cmd.Flags().String("host", "", "Request host, e.g. acme.example.com")
	return cmd
}

type closer interface {
	Close(context.Context) error
}

// closeJoined closes c and joins its error into *errp.
func closeJoined(ctx context.Context, c closer, errp *error) {
	*errp = errors.Join(*errp, c.Close(ctx))
}

func identifierFromFlags(cmd *cobra.Command) (tenant.Identifier, error) {
	var (
		out tenant.Identifier
		n   int
	)
	if v, _ := cmd.Flags().GetString("identifier"); v != "" {
		out, n = tenant.Classify(v), n+1
	}
	if v, _ := cmd.Flags().GetString("id"); v != "" {
		uid, err := uuid.Parse(v)
		if err != nil {
			return tenant.Identifier{}, fmt.Errorf("--id: %w", err)
		}
		out, n = tenant.OpaqueIdentifier(uid), n+1
	}
	if v, _ := cmd.Flags().GetString("slug"); v != "" {
		out, n = tenant.Identifier{Value: v, Kind: tenant.KindSlug}, n+1
	}
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		out, n = tenant.HostIdentifier(v), n+1
	}
	if n != 1 {
		return tenant.Identifier{}, errOneIdentifier
	}
	return out, nil
}
