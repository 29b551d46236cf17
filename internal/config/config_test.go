package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 8741 {
		t.Errorf("HTTPPort = %d, want 8741", cfg.HTTPPort)
	}
	if cfg.IframeURL != canonicalIframeURL {
		t.Errorf("IframeURL = %q, want %q", cfg.IframeURL, canonicalIframeURL)
	}
	if !cfg.BackupEnabled {
		t.Error("BackupEnabled = false, want true")
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Errorf("expected Load to persist the default document: %v", statErr)
	}
}

func TestLoadRoundTripsExistingDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := Load(path); err != nil {
		t.Fatalf("initial Load: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if cfg.HTTPPort != 8741 {
		t.Errorf("HTTPPort = %d, want 8741 after round trip", cfg.HTTPPort)
	}
}

func TestLoadMigratesStaleIframeURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	stale := Default()
	stale.IframeURL = staleIframeURL
	if err := write(path, stale); err != nil {
		t.Fatalf("write stale document: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IframeURL != canonicalIframeURL {
		t.Errorf("IframeURL = %q, want migrated %q", cfg.IframeURL, canonicalIframeURL)
	}

	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read persisted document: %v", err)
	}
	if !strings.Contains(string(onDisk), canonicalIframeURL) {
		t.Error("migrated iframe_url was not persisted back to disk")
	}
}

func TestMigrateIframeURLReportsWhetherItChanged(t *testing.T) {
	fresh := Default()
	if migrateIframeURL(fresh) {
		t.Error("migrateIframeURL changed an already-canonical document")
	}

	stale := Default()
	stale.IframeURL = staleIframeURL
	if !migrateIframeURL(stale) {
		t.Error("migrateIframeURL did not report a change for a stale document")
	}
	if stale.IframeURL != canonicalIframeURL {
		t.Errorf("IframeURL = %q after migration, want %q", stale.IframeURL, canonicalIframeURL)
	}
}

func TestLoadAppliesProductionLogLevelOverride(t *testing.T) {
	t.Setenv("AIRADCR_ENV", "production")
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info under AIRADCR_ENV=production", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(_ *Config) {}, false},
		{"port zero", func(c *Config) { c.HTTPPort = 0 }, true},
		{"port too large", func(c *Config) { c.HTTPPort = 70000 }, true},
		{"zero report retention", func(c *Config) { c.ReportRetentionHrs = 0 }, true},
		{"zero cleanup interval", func(c *Config) { c.CleanupIntervalSecs = 0 }, true},
		{"hub enabled without host", func(c *Config) {
			c.TeoHub.Enabled = true
			c.TeoHub.Host = ""
		}, true},
		{"hub enabled with host", func(c *Config) {
			c.TeoHub.Enabled = true
			c.TeoHub.Host = "hub.internal"
		}, false},
		{"tls cert without key", func(c *Config) {
			c.TeoHub.Enabled = true
			c.TeoHub.Host = "hub.internal"
			c.TeoHub.TLSEnabled = true
			c.TeoHub.ClientCertFile = "cert.pem"
		}, true},
		{"tls cert and key both set", func(c *Config) {
			c.TeoHub.Enabled = true
			c.TeoHub.Host = "hub.internal"
			c.TeoHub.TLSEnabled = true
			c.TeoHub.ClientCertFile = "cert.pem"
			c.TeoHub.ClientKeyFile = "key.pem"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestRuntimeTogglesAreThreadSafe(t *testing.T) {
	cfg := Default()
	cfg.hubEnabled = true
	if !cfg.HubEnabled() {
		t.Error("HubEnabled() = false, want true")
	}
	cfg.SetHubEnabled(false)
	if cfg.HubEnabled() {
		t.Error("HubEnabled() = true after SetHubEnabled(false)")
	}

	cfg.SetHIDAutoReconnect(false)
	if cfg.HIDAutoReconnect() {
		t.Error("HIDAutoReconnect() = true after SetHIDAutoReconnect(false)")
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()
	cfg.CleanupIntervalSecs = 600
	cfg.ReportRetentionHrs = 24
	cfg.LogRetentionDays = 30
	cfg.BackupRetentionDays = 14

	if got := cfg.CleanupInterval(); got != 10*time.Minute {
		t.Errorf("CleanupInterval() = %s, want 10m", got)
	}
	if got := cfg.ReportRetention(); got != 24*time.Hour {
		t.Errorf("ReportRetention() = %s, want 24h", got)
	}
	if got := cfg.LogRetention(); got != 30*24*time.Hour {
		t.Errorf("LogRetention() = %s, want 30d", got)
	}
	if got := cfg.BackupRetention(); got != 14*24*time.Hour {
		t.Errorf("BackupRetention() = %s, want 14d", got)
	}
}

