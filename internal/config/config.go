// Package config loads the daemon configuration from YAML, applies
// CUSTODIAND_* environment overrides, and validates the result.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/custodian-sh/custodian/internal/models"
)

// Config is the complete custodiand configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Logging   LoggingConfig   `yaml:"logging"`
	Audit     AuditConfig     `yaml:"audit"`
	Ownership OwnershipConfig `yaml:"ownership"`
}

// ServerConfig configures the API listener.
type ServerConfig struct {
	ListenAddr      string    `yaml:"listen_addr"`
	ReadTimeout     string    `yaml:"read_timeout"`  // e.g. "10s"
	WriteTimeout    string    `yaml:"write_timeout"` // e.g. "10s"
	IdleTimeout     string    `yaml:"idle_timeout"`  // e.g. "60s"
	ShutdownTimeout string    `yaml:"shutdown_timeout"`
	TLS             TLSConfig `yaml:"tls"`
}

// TLSConfig configures transport security for the API listener.
type TLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	CAFile            string `yaml:"ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
	AutoGenerate      bool   `yaml:"auto_generate"` // Generate a self-signed pair if the files are missing
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ListenAddr     string `yaml:"listen_addr"`
	SampleInterval string `yaml:"sample_interval"` // Host gauge refresh, e.g. "15s"
}

// StoreConfig configures the backing store.
type StoreConfig struct {
	Type            string `yaml:"type"` // memory, sqlite, postgres, redis
	DSN             string `yaml:"dsn"`
	Path            string `yaml:"path"` // sqlite file path
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime string `yaml:"conn_max_idle_time"`
}

// AuthConfig holds statically configured credentials.
type AuthConfig struct {
	BootstrapKeys []BootstrapKeyConfig `yaml:"bootstrap_keys"`
}

// BootstrapKeyConfig is one static API key.
type BootstrapKeyConfig struct {
	ID   string `yaml:"id"`
	Role string `yaml:"role"`
	Key  string `yaml:"key"`
}

// RateLimitConfig configures per-caller request limits.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Environment  string `yaml:"environment"`
}

// LoggingConfig configures the daemon logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // text or json
	File      string `yaml:"file"`   // empty means stdout only
	MaxSizeMB int64  `yaml:"max_size_mb"`
}

// AuditConfig configures transition history retention.
type AuditConfig struct {
	RetentionDays int    `yaml:"retention_days"` // 0 disables pruning
	PruneInterval string `yaml:"prune_interval"`
}

// OwnershipConfig toggles optional ownership capabilities.
type OwnershipConfig struct {
	EmergencyOwner bool `yaml:"emergency_owner"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     "10s",
			WriteTimeout:    "10s",
			IdleTimeout:     "60s",
			ShutdownTimeout: "15s",
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			ListenAddr:     ":9090",
			SampleInterval: "15s",
		},
		Store: StoreConfig{
			Type: "sqlite",
			Path: "custodian.db",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     50,
			Burst:   100,
		},
		Tracing: TracingConfig{
			Environment: "development",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			MaxSizeMB: 100,
		},
		Audit: AuditConfig{
			RetentionDays: 90,
			PruneInterval: "1h",
		},
		Ownership: OwnershipConfig{
			EmergencyOwner: true,
		},
	}
}

// Load reads the configuration file at path, if any, applies environment
// overrides, and validates the result. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv maps CUSTODIAND_* variables over the loaded file.
func (c *Config) applyEnv() {
	if v := os.Getenv("CUSTODIAND_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("CUSTODIAND_METRICS_ADDR"); v != "" {
		c.Metrics.ListenAddr = v
	}
	if v := os.Getenv("CUSTODIAND_STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("CUSTODIAND_STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("CUSTODIAND_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("CUSTODIAND_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CUSTODIAND_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CUSTODIAND_TRACING_ENDPOINT"); v != "" {
		c.Tracing.OTLPEndpoint = v
		c.Tracing.Enabled = true
	}
	if v := os.Getenv("CUSTODIAND_EMERGENCY_OWNER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Ownership.EmergencyOwner = b
		}
	}
}

// Validate checks the configuration for contradictions and bad values.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "memory", "sqlite", "postgres", "postgresql", "redis":
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}
	if (c.Store.Type == "postgres" || c.Store.Type == "postgresql" || c.Store.Type == "redis") && c.Store.DSN == "" {
		return fmt.Errorf("store type %q requires a dsn", c.Store.Type)
	}

	for _, d := range []struct {
		name  string
		value string
	}{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.idle_timeout", c.Server.IdleTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
		{"metrics.sample_interval", c.Metrics.SampleInterval},
		{"audit.prune_interval", c.Audit.PruneInterval},
		{"store.conn_max_lifetime", c.Store.ConnMaxLifetime},
		{"store.conn_max_idle_time", c.Store.ConnMaxIdleTime},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
	}

	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("ratelimit requires positive rps and burst")
	}

	if c.Server.TLS.Enabled && !c.Server.TLS.AutoGenerate {
		if c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("tls requires cert_file and key_file unless auto_generate is set")
		}
	}

	for _, bk := range c.Auth.BootstrapKeys {
		if bk.ID == "" || bk.Key == "" {
			return fmt.Errorf("bootstrap keys require id and key")
		}
		if !models.Role(bk.Role).IsValid() {
			return fmt.Errorf("bootstrap key %q has unknown role %q", bk.ID, bk.Role)
		}
	}

	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must not be negative")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}

	return nil
}

// Duration parses a duration field that Validate has already checked,
// returning fallback for empty values.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
