package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	testAccessSecret  = "test-access-secret-at-least-32-chars!"
	testRefreshSecret = "test-refresh-secret-at-least-32-chars"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
service:
  id: "test-service"
database:
  driver: sqlite
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
api:
  host: "0.0.0.0"
  port: 8080
security:
  jwt:
    access_secret: "`+testAccessSecret+`"
    refresh_secret: "`+testRefreshSecret+`"
    access_token_ttl: 600
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.ID != "test-service" {
		t.Errorf("Service.ID = %q, want %q", cfg.Service.ID, "test-service")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.AccessTokenTTL() != 10*time.Minute {
		t.Errorf("AccessTokenTTL() = %v, want 10m", cfg.AccessTokenTTL())
	}
	// not set in the file, so the default applies
	if cfg.RefreshTokenTTL() != 2629743*time.Second {
		t.Errorf("RefreshTokenTTL() = %v, want default", cfg.RefreshTokenTTL())
	}
	if cfg.Security.JWT.RefreshIssuer != "JWT_test" {
		t.Errorf("RefreshIssuer = %q, want JWT_test", cfg.Security.JWT.RefreshIssuer)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "invalid: [yaml: content")); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_SecretsFromEnvironment(t *testing.T) {
	t.Setenv("AMS_JWT_ACCESS_SECRET", testAccessSecret)
	t.Setenv("AMS_JWT_REFRESH_SECRET", testRefreshSecret)

	cfg, err := Load(writeConfig(t, "service:\n  id: env\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Security.JWT.AccessSecret != testAccessSecret {
		t.Error("access secret not taken from environment")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, "service:\n  id: \"\"\n"))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "service.id is required") {
		t.Errorf("error = %v, want service.id message", err)
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWT.AccessSecret = testAccessSecret
	cfg.Security.JWT.RefreshSecret = testRefreshSecret
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing service ID", func(c *Config) { c.Service.ID = "" }, "service.id"},
		{"missing sqlite path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = DriverPostgres }, "database.dsn"},
		{"postgres with dsn", func(c *Config) {
			c.Database.Driver = DriverPostgres
			c.Database.DSN = "postgres://ams@localhost/ams"
		}, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"tls without cert", func(c *Config) { c.API.TLS.Enabled = true }, "api.tls"},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true }, "influxdb.url"},
		{"missing access secret", func(c *Config) { c.Security.JWT.AccessSecret = "" }, "access_secret is required"},
		{"short refresh secret", func(c *Config) { c.Security.JWT.RefreshSecret = "short" }, "refresh_secret must be at least"},
		{"shared secret", func(c *Config) { c.Security.JWT.RefreshSecret = testAccessSecret }, "must differ"},
		{"zero ttl", func(c *Config) { c.Security.JWT.AccessTokenTTL = 0 }, "TTLs must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("AMS_DATABASE_DRIVER", "postgres")
	t.Setenv("AMS_DATABASE_PATH", "/custom/path.db")
	t.Setenv("AMS_DATABASE_DSN", "postgres://ams@db/ams")
	t.Setenv("AMS_REDIS_ADDR", "redis:6379")
	t.Setenv("AMS_API_HOST", "192.168.1.1")
	t.Setenv("AMS_API_PORT", "9090")
	t.Setenv("AMS_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("AMS_LOG_LEVEL", "debug")
	t.Setenv("AMS_SEED_EMAIL", "root@example.com")

	applyEnvOverrides(cfg)

	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://ams@db/ams" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis = %+v, want enabled at redis:6379", cfg.Redis)
	}
	if cfg.API.Host != "192.168.1.1" || cfg.API.Port != 9090 {
		t.Errorf("API = %s:%d", cfg.API.Host, cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Security.Seed.Email != "root@example.com" {
		t.Errorf("Seed.Email = %q", cfg.Security.Seed.Email)
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("AMS_API_PORT", "not-a-port")
	applyEnvOverrides(cfg)
	if cfg.API.Port != 3000 {
		t.Errorf("API.Port = %d, want default 3000", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.API.Port != 3000 {
		t.Errorf("API.Port = %d, want 3000", cfg.API.Port)
	}
	if cfg.Security.JWT.AccessTokenTTL != 900 {
		t.Errorf("AccessTokenTTL = %d, want 900", cfg.Security.JWT.AccessTokenTTL)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}
