// Package config loads and validates airadcr-desktop's TOML configuration
// document, layering environment-variable overrides on top the same way the
// teacher's env-only loader prioritised SENTINEL_* variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// staleIframeURL is a known-superseded value migrated forward on load.
const staleIframeURL = "https://airadcr.com/embed"
const canonicalIframeURL = "https://app.airadcr.com/embed"

// TeoHubConfig configures the upstream Hub Client.
type TeoHubConfig struct {
	Enabled         bool   `toml:"enabled"`
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	HealthPath      string `toml:"health_path"`
	GetReportPath   string `toml:"get_report_path"`
	SubmitPath      string `toml:"submit_path"`
	TotalTimeoutMs  int    `toml:"total_timeout_ms"`
	ConnectTimeoutMs int   `toml:"connect_timeout_ms"`
	RetryCount      int    `toml:"retry_count"`
	RetryBaseMs     int    `toml:"retry_base_ms"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	CAFile          string `toml:"ca_file"`
	ClientCertFile  string `toml:"client_cert_file"`
	ClientKeyFile   string `toml:"client_key_file"`
	APIToken        string `toml:"-"`
}

// Config holds the full on-disk configuration document plus the handful of
// runtime-mutable fields, guarded by mu the same way the teacher guards its
// poll interval / default policy fields.
type Config struct {
	HTTPPort            int          `toml:"http_port"`
	LogLevel            string       `toml:"log_level"`
	LogRetentionDays    int          `toml:"log_retention_days"`
	ReportRetentionHrs  int          `toml:"report_retention_hours"`
	IframeURL           string       `toml:"iframe_url"`
	BackupEnabled       bool         `toml:"backup_enabled"`
	BackupRetentionDays int          `toml:"backup_retention_days"`
	CleanupIntervalSecs int          `toml:"cleanup_interval_secs"`
	TeoHub              TeoHubConfig `toml:"teo_hub"`

	mu              sync.RWMutex
	hubEnabled      bool
	hidAutoReconnect bool
}

// Default returns the document written on first run.
func Default() *Config {
	return &Config{
		HTTPPort:            8741,
		LogLevel:            "info",
		LogRetentionDays:    30,
		ReportRetentionHrs:  24,
		IframeURL:           canonicalIframeURL,
		BackupEnabled:       true,
		BackupRetentionDays: 14,
		CleanupIntervalSecs: 600,
		TeoHub: TeoHubConfig{
			Enabled:          false,
			HealthPath:       "/health",
			GetReportPath:    "/reports",
			SubmitPath:       "/reports/approved",
			TotalTimeoutMs:   10000,
			ConnectTimeoutMs: 3000,
			RetryCount:       3,
			RetryBaseMs:      250,
		},
		hubEnabled:       false,
		hidAutoReconnect: true,
	}
}

// Load reads the TOML document at path, writing the default document if the
// file does not exist yet, and applying environment-variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if werr := write(path, cfg); werr != nil {
			return nil, fmt.Errorf("write default config: %w", werr)
		}
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if derr := toml.Unmarshal(data, cfg); derr != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, derr)
		}
	}

	migrated := migrateIframeURL(cfg)
	if migrated {
		if werr := write(path, cfg); werr != nil {
			return nil, fmt.Errorf("persist migrated config: %w", werr)
		}
	}

	cfg.hubEnabled = cfg.TeoHub.Enabled
	applyEnvOverrides(cfg)
	return cfg, nil
}

// migrateIframeURL rewrites a known-stale iframe_url to the current
// canonical value. Returns true if the document changed.
func migrateIframeURL(cfg *Config) bool {
	if cfg.IframeURL == staleIframeURL {
		cfg.IframeURL = canonicalIframeURL
		return true
	}
	return false
}

func write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// applyEnvOverrides layers AIRADCR_* environment variables on top of the
// file, env taking priority, matching the teacher's env-first precedence.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AIRADCR_ENV"); v != "" {
		env := strings.ToLower(v)
		if env == "prod" || env == "production" {
			cfg.LogLevel = "info"
		}
	}
}

// Validate checks the document for invalid values.
func (c *Config) Validate() error {
	var errs []string
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Sprintf("http_port must be 1-65535, got %d", c.HTTPPort))
	}
	if c.ReportRetentionHrs <= 0 {
		errs = append(errs, "report_retention_hours must be > 0")
	}
	if c.CleanupIntervalSecs <= 0 {
		errs = append(errs, "cleanup_interval_secs must be > 0")
	}
	if c.TeoHub.Enabled {
		if c.TeoHub.Host == "" {
			errs = append(errs, "teo_hub.host is required when teo_hub.enabled is true")
		}
		if c.TeoHub.TLSEnabled && (c.TeoHub.ClientCertFile == "") != (c.TeoHub.ClientKeyFile == "") {
			errs = append(errs, "teo_hub.client_cert_file and teo_hub.client_key_file must both be set or both empty")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// HubEnabled returns whether the Hub Client is currently enabled (thread-safe).
func (c *Config) HubEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hubEnabled
}

// SetHubEnabled toggles the Hub Client at runtime (thread-safe).
func (c *Config) SetHubEnabled(b bool) {
	c.mu.Lock()
	c.hubEnabled = b
	c.mu.Unlock()
}

// HIDAutoReconnect returns whether the HID subsystem retries after a device
// is unplugged (thread-safe).
func (c *Config) HIDAutoReconnect() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hidAutoReconnect
}

// SetHIDAutoReconnect toggles HID auto-reconnect at runtime (thread-safe).
func (c *Config) SetHIDAutoReconnect(b bool) {
	c.mu.Lock()
	c.hidAutoReconnect = b
	c.mu.Unlock()
}

// CleanupInterval returns the configured cleanup cadence as a Duration.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSecs) * time.Second
}

// ReportRetention returns the pending-report lifetime as a Duration.
func (c *Config) ReportRetention() time.Duration {
	return time.Duration(c.ReportRetentionHrs) * time.Hour
}

// LogRetention returns the access-log retention window as a Duration.
func (c *Config) LogRetention() time.Duration {
	return time.Duration(c.LogRetentionDays) * 24 * time.Hour
}

// BackupRetention returns the backup-file retention window as a Duration.
func (c *Config) BackupRetention() time.Duration {
	return time.Duration(c.BackupRetentionDays) * 24 * time.Hour
}
