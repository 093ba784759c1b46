package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/ams-auth/internal/api"
	"github.com/nerrad567/ams-auth/internal/auth"
	"github.com/nerrad567/ams-auth/internal/infrastructure/config"
	"github.com/nerrad567/ams-auth/internal/infrastructure/influxdb"
	"github.com/nerrad567/ams-auth/internal/infrastructure/logging"
	"github.com/nerrad567/ams-auth/internal/infrastructure/metrics"
)

func newServeCommand(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath(), cmd.OutOrStdout())
		},
	}
}

// loadConfig loads configuration and builds the configured logger.
func loadConfig(path string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", path)
	return cfg, log, nil
}

// run is the serve logic, separated from the command for testability. It
// returns nil on a clean shutdown once ctx is cancelled.
func run(ctx context.Context, configPath string, out io.Writer) error {
	logging.Default().Info("starting AMS auth",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing stores")
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing stores", "error", closeErr)
		}
	}()

	access := auth.NewAccessTokenService([]byte(cfg.Security.JWT.AccessSecret), cfg.AccessTokenTTL())
	refresh := auth.NewRefreshTokenService(auth.RefreshTokenConfig{
		Secret: []byte(cfg.Security.JWT.RefreshSecret),
		Issuer: cfg.Security.JWT.RefreshIssuer,
		TTL:    cfg.RefreshTokenTTL(),
	}, st.tokens, st.users, access, auth.WithRefreshLogger(log.Logger))
	login := auth.NewLoginService(st.users, access, refresh)

	password, err := auth.SeedSuperUser(ctx, st.users, cfg.Security.Seed.Email, log.Logger)
	if err != nil {
		return fmt.Errorf("seeding super user: %w", err)
	}
	if password != "" {
		// Shown once on the console, never written to the log stream.
		fmt.Fprintf(out, "Seed super user %s created with password: %s\n", cfg.Security.Seed.Email, password)
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(version)
	}

	server, err := api.New(api.Deps{
		Config:      cfg.API,
		Logger:      log,
		Login:       login,
		Refresh:     refresh,
		Access:      access,
		Users:       st.users,
		Database:    st.health,
		Metrics:     m,
		MetricsPath: cfg.Metrics.Path,
		Stats:       influxClient,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal", "address", server.Addr())

	<-ctx.Done()

	// Deferred Close() calls run in reverse order: API server, InfluxDB,
	// stores.
	log.Info("shutdown signal received, cleaning up")
	return nil
}
