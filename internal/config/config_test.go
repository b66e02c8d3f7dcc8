package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "operational", cfg.Databases.Operational)
	assert.Equal(t, "datawarehouse", cfg.Databases.Warehouse)
	assert.Len(t, cfg.Sources.Users, 3)
	assert.Equal(t, ContinueOnFailure, cfg.FailurePolicy)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Server.Driver = "oracle" },
			wantErr: "unsupported driver",
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Server.Host = "" },
			wantErr: "server.host",
		},
		{
			name:   "sqlite needs no host",
			mutate: func(c *Config) { c.Server.Driver = DriverSQLite; c.Server.Host = "" },
		},
		{
			name:    "sqlite needs dir",
			mutate:  func(c *Config) { c.Server.Driver = DriverSQLite; c.Server.Dir = "" },
			wantErr: "server.dir",
		},
		{
			name:    "injected database name",
			mutate:  func(c *Config) { c.Databases.Warehouse = "dw; DROP DATABASE x" },
			wantErr: "databases.warehouse",
		},
		{
			name:    "same database twice",
			mutate:  func(c *Config) { c.Databases.Warehouse = "OPERATIONAL" },
			wantErr: "must differ",
		},
		{
			name:    "bad policy",
			mutate:  func(c *Config) { c.FailurePolicy = "retry" },
			wantErr: "invalid failure policy",
		},
		{
			name:    "no sources",
			mutate:  func(c *Config) { c.Sources.Cards = nil },
			wantErr: "sources.cards",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseFailurePolicy(t *testing.T) {
	p, err := ParseFailurePolicy(" Skip-Dependents ")
	require.NoError(t, err)
	assert.Equal(t, SkipDependents, p)

	_, err = ParseFailurePolicy("")
	assert.Error(t, err)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "dwload.yaml")
	content := `server:
  driver: mysql
  host: db.internal
  port: 3306
  user: loader
databases:
  operational: ops
  warehouse: dw
sources:
  users: [a.json, b.json]
failure_policy: abort
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	t.Setenv("DWLOAD_SERVER_PASSWORD", "s3cret")
	t.Setenv("DWLOAD_DATABASES_WAREHOUSE", "analytics")

	cfg, err := Load(discardLogger(), file)
	require.NoError(t, err)

	assert.Equal(t, DriverMySQL, cfg.Server.Driver)
	assert.Equal(t, "db.internal", cfg.Server.Host)
	assert.Equal(t, 3306, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Server.Password)
	assert.Equal(t, "ops", cfg.Databases.Operational)
	assert.Equal(t, "analytics", cfg.Databases.Warehouse)
	assert.Equal(t, []string{"a.json", "b.json"}, cfg.Sources.Users)
	assert.Equal(t, Default().Sources.Products, cfg.Sources.Products)
	assert.Equal(t, AbortOnFailure, cfg.FailurePolicy)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(discardLogger(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(file, []byte("failure_policy: sometimes\n"), 0o600))

	_, err := Load(discardLogger(), file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failure policy")
}
