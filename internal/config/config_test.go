package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DBPath:           "./billops.db",
		DownloadDir:      "./downloads",
		TempDir:          "./temp_processing",
		BillImageDir:     "./bill_images",
		BillPDFDir:       "./bill_pdfs",
		MaxUploadMB:      100,
		TemplateSource:   "local",
		TemplateDir:      "./templates",
		AuthzMode:        "enforce",
		CollectorMode:    "http",
		BillMailProvider: "imap",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{name: "valid local config", mutate: func(*Config) {}},
		{
			name:        "gcs without bucket",
			mutate:      func(c *Config) { c.TemplateSource = "gcs" },
			wantErr:     true,
			errorString: "TEMPLATE_BUCKET is required when TEMPLATE_SOURCE=gcs",
		},
		{
			name:        "unknown authz mode",
			mutate:      func(c *Config) { c.AuthzMode = "audit" },
			wantErr:     true,
			errorString: `AUTHZ_MODE must be enforce, shadow or disabled, got "audit"`,
		},
		{
			name:        "unknown collector mode",
			mutate:      func(c *Config) { c.CollectorMode = "selenium" },
			wantErr:     true,
			errorString: `COLLECTOR_MODE must be http or dir, got "selenium"`,
		},
		{
			name:        "empty data dir",
			mutate:      func(c *Config) { c.TempDir = " " },
			wantErr:     true,
			errorString: "TEMP_DIR must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errorString) {
				t.Fatalf("Validate() error = %q, want it to contain %q", err, tt.errorString)
			}
		})
	}
}

func TestConfig_ValidateAggregates(t *testing.T) {
	cfg := validConfig()
	cfg.DBPath = ""
	cfg.MaxUploadMB = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "configuration validation failed:") || strings.Count(err.Error(), "\n- ") != 2 {
		t.Fatalf("unexpected aggregate error %q", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "6001")
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("UPLOAD_FRESH_MIN", "15")
	t.Setenv("IMAP_SECURE", "off")
	t.Setenv("BILL_MAIL_THRESHOLD", "0.6")
	t.Setenv("COLLECTOR_RETRIES", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":6001" || cfg.UploadFreshness() != 15*time.Minute || cfg.IMAPSecure || cfg.BillMailThreshold != 0.6 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.CollectorRetries != 4 || cfg.DefaultLicenseCount != 40 {
		t.Fatalf("defaults not applied: retries=%d licenses=%d", cfg.CollectorRetries, cfg.DefaultLicenseCount)
	}
	if cfg.AuthzMode != "shadow" || cfg.SessionTTLHours != 336 {
		t.Fatalf("unexpected auth defaults mode=%s ttl=%d", cfg.AuthzMode, cfg.SessionTTLHours)
	}
}

func TestRequire(t *testing.T) {
	if err := (Config{}).Require("IMAP_HOST", ""); err == nil || err.Error() != "missing required env var: IMAP_HOST" {
		t.Fatalf("unexpected error %v", err)
	}
	if err := (Config{}).Require("IMAP_HOST", "mail.example"); err != nil {
		t.Fatal(err)
	}
}
