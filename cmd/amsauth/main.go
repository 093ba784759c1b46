// AMS Auth - account, token and route authorisation service.
//
// This is the main entry point for the amsauth binary. The serve command
// runs the HTTP API; the remaining commands are operator tooling that share
// the same configuration and stores.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on Ctrl+C and SIGTERM so serve can shut down gracefully
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the command tree. It is a constructor rather than a
// package variable so tests get fresh flag state.
func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "amsauth",
		Short:         "AMS authentication and authorisation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "",
		"path to config file (default $AMS_CONFIG or "+defaultConfigPath+")")

	resolve := func() string { return getConfigPath(configPath) }

	root.AddCommand(
		newServeCommand(resolve),
		newMigrateCommand(resolve),
		newUserCommand(resolve),
		newVersionCommand(),
	)
	return root
}

// getConfigPath returns the configuration file path: the flag wins, then the
// AMS_CONFIG environment variable, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("AMS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "amsauth %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
