package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "https://tienda.mercadona.es/api/" {
		t.Fatalf("unexpected default base url %q", cfg.API.BaseURL)
	}
	if cfg.API.RequestDelay != 1300*time.Millisecond {
		t.Fatalf("expected 1300ms request delay, got %v", cfg.API.RequestDelay)
	}
	if cfg.Import.RateLimitBackoff != 5*time.Minute {
		t.Fatalf("expected 5m backoff, got %v", cfg.Import.RateLimitBackoff)
	}
	if cfg.Import.EmptyCategoryPolicy != "skip" {
		t.Fatalf("expected skip policy, got %q", cfg.Import.EmptyCategoryPolicy)
	}
	if cfg.Storage.Provider != "local" || cfg.Storage.BaseDir != "data" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Logging.Development {
		t.Fatalf("expected development logging by default")
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
warehouse: bcn1
api:
  base_url: https://example.test/api/
  request_delay: 200ms
  timeout: 30s
import:
  rate_limit_backoff: 90s
  include_full_product: true
  refetch_missing_ean: true
  empty_category_policy: abort
storage:
  provider: memory
progress:
  postgres_dsn: postgres://mirror@localhost/mirror
server:
  port: 0
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Warehouse != "bcn1" {
		t.Fatalf("expected warehouse bcn1, got %q", cfg.Warehouse)
	}
	if cfg.API.BaseURL != "https://example.test/api/" || cfg.API.RequestDelay != 200*time.Millisecond {
		t.Fatalf("expected api overrides to apply: %+v", cfg.API)
	}
	if cfg.API.Timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", cfg.API.Timeout)
	}
	if cfg.Import.RateLimitBackoff != 90*time.Second || !cfg.Import.IncludeFullProduct {
		t.Fatalf("expected import overrides to apply: %+v", cfg.Import)
	}
	if cfg.Import.EmptyCategoryPolicy != "abort" {
		t.Fatalf("expected abort policy, got %q", cfg.Import.EmptyCategoryPolicy)
	}
	if cfg.Storage.Provider != "memory" {
		t.Fatalf("expected memory provider, got %q", cfg.Storage.Provider)
	}
	if cfg.Progress.PostgresDSN != "postgres://mirror@localhost/mirror" {
		t.Fatalf("expected dsn override, got %q", cfg.Progress.PostgresDSN)
	}
	if cfg.Server.Port != 0 {
		t.Fatalf("expected ops server disabled, got port %d", cfg.Server.Port)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected production logging")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		API: APIConfig{
			BaseURL:      "https://example.test/api/",
			RequestDelay: time.Second,
			Timeout:      15 * time.Second,
		},
		Import:  ImportConfig{EmptyCategoryPolicy: "skip"},
		Storage: StorageConfig{Provider: "local", BaseDir: "data"},
		Server:  ServerConfig{Port: 9090},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "missing base url",
			cfg: func() Config {
				c := base
				c.API.BaseURL = ""
				return c
			}(),
			want: "api.base_url",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.API.Timeout = 0
				return c
			}(),
			want: "api.timeout",
		},
		{
			name: "negative delay",
			cfg: func() Config {
				c := base
				c.API.RequestDelay = -time.Second
				return c
			}(),
			want: "api.request_delay",
		},
		{
			name: "unknown empty category policy",
			cfg: func() Config {
				c := base
				c.Import.EmptyCategoryPolicy = "explode"
				return c
			}(),
			want: "import.empty_category_policy",
		},
		{
			name: "unknown storage provider",
			cfg: func() Config {
				c := base
				c.Storage.Provider = "gcs"
				return c
			}(),
			want: "storage.provider",
		},
		{
			name: "local provider without base dir",
			cfg: func() Config {
				c := base
				c.Storage.BaseDir = ""
				return c
			}(),
			want: "storage.base_dir",
		},
		{
			name: "negative port",
			cfg: func() Config {
				c := base
				c.Server.Port = -1
				return c
			}(),
			want: "server.port",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
