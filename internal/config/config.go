// Package config loads and validates importer configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Warehouse string         `mapstructure:"warehouse"`
	API       APIConfig      `mapstructure:"api"`
	Import    ImportConfig   `mapstructure:"import"`
	Storage   StorageConfig  `mapstructure:"storage"`
	Progress  ProgressConfig `mapstructure:"progress"`
	Server    ServerConfig   `mapstructure:"server"`
	Logging   LoggingConfig  `mapstructure:"logging"`
}

// APIConfig configures the remote catalog client.
type APIConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ImportConfig governs import pass behavior.
type ImportConfig struct {
	RateLimitBackoff    time.Duration `mapstructure:"rate_limit_backoff"`
	IncludeFullProduct  bool          `mapstructure:"include_full_product"`
	ReimportFullProduct bool          `mapstructure:"reimport_full_product"`
	RefetchMissingEAN   bool          `mapstructure:"refetch_missing_ean"`
	EmptyCategoryPolicy string        `mapstructure:"empty_category_policy"`
}

// StorageConfig selects and configures the document backend.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
	BaseDir  string `mapstructure:"base_dir"`
}

// ProgressConfig configures optional progress sinks.
type ProgressConfig struct {
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// ServerConfig controls the ops HTTP server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://tienda.mercadona.es/api/")
	v.SetDefault("api.request_delay", "1300ms")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("import.rate_limit_backoff", "5m")
	v.SetDefault("import.include_full_product", false)
	v.SetDefault("import.reimport_full_product", false)
	v.SetDefault("import.refetch_missing_ean", false)
	v.SetDefault("import.empty_category_policy", "skip")
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.base_dir", "data")
	v.SetDefault("server.port", 9090)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.RequestDelay < 0 {
		return fmt.Errorf("api.request_delay must be >= 0")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0")
	}
	if c.Import.RateLimitBackoff < 0 {
		return fmt.Errorf("import.rate_limit_backoff must be >= 0")
	}
	switch c.Import.EmptyCategoryPolicy {
	case "skip", "abort":
	default:
		return fmt.Errorf("import.empty_category_policy must be skip or abort")
	}
	switch c.Storage.Provider {
	case "local", "memory":
	default:
		return fmt.Errorf("storage.provider must be local or memory")
	}
	if c.Storage.Provider == "local" && c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required for the local provider")
	}
	if c.Server.Port < 0 {
		return fmt.Errorf("server.port must be >= 0")
	}
	return nil
}
