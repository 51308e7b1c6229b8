package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrMissingDSN is returned when no database connection information is configured.
var ErrMissingDSN = errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")

// DBConfig holds the connection settings for the event store.
type DBConfig struct {
	DSN      string `koanf:"db_dsn"`
	Host     string `koanf:"db_host"`
	Name     string `koanf:"db_name"`
	User     string `koanf:"db_user"`
	Password string `koanf:"db_password"`
	Port     string `koanf:"db_port"`
	SSLMode  string `koanf:"db_sslmode"`
}

type Config struct {
	ListenAddr string `koanf:"listen_addr"`
	BaseURL    string `koanf:"base_url"`

	DB DBConfig `koanf:",squash"`

	// RetentionDays is how far back (in days) events survive the sweep run on every write.
	RetentionDays int `koanf:"retention_days"`

	WriteRateLimit float64 `koanf:"write_rate_limit"`
	WriteRateBurst int     `koanf:"write_rate_burst"`

	PrometheusEnabled bool     `koanf:"prometheus_endpoint_enabled"`
	TrustedProxies    []string `koanf:"trusted_proxies"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		ListenAddr:     ":8080",
		BaseURL:        "http://localhost:8080",
		RetentionDays:  14,
		WriteRateLimit: 5,
		WriteRateBurst: 10,
		DB: DBConfig{
			Port:    "5432",
			SSLMode: "disable",
		},
	}
}

// Load layers defaults, an optional YAML file (APP_CONFIG) and APP_* environment
// variables, in increasing order of precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv("APP_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Empty variables are treated as unset so they cannot blank out defaults.
	envProvider := env.ProviderWithValue("APP_", ".", func(key, value string) (string, any) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return strings.TrimPrefix(strings.ToLower(key), "app_"), value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.TrustedProxies = cleanList(cfg.TrustedProxies)

	if cfg.DB.DSN == "" {
		cfg.DB.DSN = cfg.DB.compose()
	}
	if cfg.DB.DSN == "" {
		// Older deployments only exported a bare connection URL.
		for _, key := range []string{"DATABASE_URL_CUSTOM", "DATABASE_URL"} {
			if v := os.Getenv(key); v != "" {
				cfg.DB.DSN = v
				break
			}
		}
	}

	if cfg.DB.DSN == "" {
		return nil, ErrMissingDSN
	}
	if cfg.ListenAddr == "" {
		return nil, errors.New("APP_LISTEN_ADDR must not be empty")
	}
	if cfg.RetentionDays < 0 {
		return nil, fmt.Errorf("APP_RETENTION_DAYS must not be negative (got %d)", cfg.RetentionDays)
	}
	if cfg.WriteRateLimit <= 0 || cfg.WriteRateBurst <= 0 {
		return nil, fmt.Errorf("write rate limit must be positive (got %v/s, burst %d)", cfg.WriteRateLimit, cfg.WriteRateBurst)
	}

	if len(cfg.TrustedProxies) == 0 {
		log.Println("WARNING: No APP_TRUSTED_PROXIES configured. The rate limiter will trust X-Forwarded-For from any peer.")
	}

	return cfg, nil
}

func (db DBConfig) compose() string {
	if db.Host == "" || db.Name == "" || db.User == "" || db.Password == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", db.User, db.Password, db.Host, db.Port, db.Name, db.SSLMode)
}

func cleanList(items []string) []string {
	var result []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}
