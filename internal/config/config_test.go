package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "custodiand.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "sqlite", cfg.Store.Type)
	assert.Equal(t, "custodian.db", cfg.Store.Path)
	assert.True(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Ownership.EmergencyOwner)
	assert.Equal(t, 90, cfg.Audit.RetentionDays)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: ":9000"
  read_timeout: "5s"
store:
  type: postgres
  dsn: "postgres://custodian@localhost/custodian?sslmode=disable"
auth:
  bootstrap_keys:
    - id: root
      role: admin
      key: cst_bootstrap
logging:
  level: debug
  format: json
ownership:
  emergency_owner: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	assert.Equal(t, "postgres", cfg.Store.Type)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Ownership.EmergencyOwner)
	require.Len(t, cfg.Auth.BootstrapKeys, 1)
	assert.Equal(t, "root", cfg.Auth.BootstrapKeys[0].ID)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, ":9090", cfg.Metrics.ListenAddr)
	assert.Equal(t, "1h", cfg.Audit.PruneInterval)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CUSTODIAND_LISTEN_ADDR", ":7070")
	t.Setenv("CUSTODIAND_STORE_TYPE", "memory")
	t.Setenv("CUSTODIAND_LOG_LEVEL", "warn")
	t.Setenv("CUSTODIAND_EMERGENCY_OWNER", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.ListenAddr)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.False(t, cfg.Ownership.EmergencyOwner)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: ":9000"
`)
	t.Setenv("CUSTODIAND_LISTEN_ADDR", ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.ListenAddr)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "UnknownStoreType",
			mutate:  func(c *Config) { c.Store.Type = "cassandra" },
			wantErr: "unknown store type",
		},
		{
			name:    "PostgresWithoutDSN",
			mutate:  func(c *Config) { c.Store.Type = "postgres" },
			wantErr: "requires a dsn",
		},
		{
			name:    "BadDuration",
			mutate:  func(c *Config) { c.Server.ReadTimeout = "fast" },
			wantErr: "invalid server.read_timeout",
		},
		{
			name:    "ZeroRateLimit",
			mutate:  func(c *Config) { c.RateLimit.RPS = 0 },
			wantErr: "positive rps",
		},
		{
			name:    "TLSWithoutFiles",
			mutate:  func(c *Config) { c.Server.TLS.Enabled = true },
			wantErr: "cert_file and key_file",
		},
		{
			name: "BootstrapKeyBadRole",
			mutate: func(c *Config) {
				c.Auth.BootstrapKeys = []BootstrapKeyConfig{{ID: "root", Role: "superuser", Key: "cst_x"}}
			},
			wantErr: "unknown role",
		},
		{
			name:    "BadLogFormat",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "unknown log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDurationHelper(t *testing.T) {
	assert.Equal(t, 5*time.Second, Duration("5s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("junk", time.Minute))
}
