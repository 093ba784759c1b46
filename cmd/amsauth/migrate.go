package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(configPath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStores(cmd, configPath(), nil)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert the most recently applied migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStores(cmd, configPath(), func(ctx context.Context, st *stores) error {
				if err := st.rollback(ctx); err != nil {
					return fmt.Errorf("rolling back: %w", err)
				}
				return nil
			})
		},
	})

	return cmd
}

// withStores opens the configured stores, which applies pending migrations,
// runs fn if set and prints the resulting schema version.
func withStores(cmd *cobra.Command, path string, fn func(ctx context.Context, st *stores) error) error {
	ctx := cmd.Context()
	cfg, log, err := loadConfig(path)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck // Exiting

	if fn != nil {
		if err := fn(ctx, st); err != nil {
			return err
		}
	}

	v, err := st.schemaVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema at version %s (%s)\n", v, cfg.Database.Driver)
	return nil
}
