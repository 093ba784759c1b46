package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/ams-auth/internal/auth"
	"github.com/nerrad567/ams-auth/internal/infrastructure/config"
	"github.com/nerrad567/ams-auth/internal/infrastructure/database"
	"github.com/nerrad567/ams-auth/internal/infrastructure/logging"
	"github.com/nerrad567/ams-auth/migrations"
)

// redisPingTimeout bounds the startup connectivity check.
const redisPingTimeout = 5 * time.Second

// stores holds the opened, migrated persistence layer.
type stores struct {
	users  auth.UserRepository
	tokens auth.RefreshTokenStore
	health healthCheckFunc

	// schemaVersion and rollback back the migrate command.
	schemaVersion func(ctx context.Context) (string, error)
	rollback      func(ctx context.Context) error

	closers []func() error
}

type healthCheckFunc func(ctx context.Context) error

func (f healthCheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// openStores opens the configured database, applies migrations and picks
// the refresh token store. Callers must call Close.
func openStores(ctx context.Context, cfg *config.Config, log *logging.Logger) (*stores, error) {
	s := &stores{}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := database.OpenPostgres(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		s.closers = append(s.closers, db.Close)

		if err := database.MigratePostgres(ctx, db, migrations.Postgres()); err != nil {
			s.Close() //nolint:errcheck // Already failing
			return nil, fmt.Errorf("running postgres migrations: %w", err)
		}
		log.Info("postgres connected and migrated")

		s.users = auth.NewPostgresUserRepository(db)
		s.tokens = auth.NewPostgresTokenRepository(db)
		s.health = db.PingContext
		s.schemaVersion = func(ctx context.Context) (string, error) {
			return database.PostgresSchemaVersion(ctx, db)
		}
		s.rollback = func(ctx context.Context) error {
			return database.RollbackPostgres(ctx, db, migrations.Postgres())
		}

	default:
		db, err := database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		s.closers = append(s.closers, db.Close)

		if err := db.Migrate(ctx, migrations.SQLite()); err != nil {
			s.Close() //nolint:errcheck // Already failing
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database connected and migrated", "path", cfg.Database.Path)

		s.users = auth.NewUserRepository(db.DB)
		s.tokens = auth.NewTokenRepository(db.DB)
		s.health = db.HealthCheck
		s.schemaVersion = db.SchemaVersion
		s.rollback = func(ctx context.Context) error {
			return db.MigrateDown(ctx, migrations.SQLite())
		}
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			s.Close() //nolint:errcheck // Already failing
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		s.tokens = auth.NewRedisTokenRepository(client, cfg.Redis.KeyPrefix, cfg.RefreshTokenTTL())
		log.Info("refresh tokens stored in redis", "addr", cfg.Redis.Addr)
	}

	return s, nil
}

// Close releases every opened connection in reverse order.
func (s *stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
