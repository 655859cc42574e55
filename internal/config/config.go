package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port                 string
	AppEnv               string
	JWTSecret            string
	OtelExporterEndpoint string

	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	// RedisAddr is optional; without it there is no shared id-set cache.
	RedisAddr string
	CacheTTL  time.Duration

	MutationTimeout time.Duration
	SessionIdle     time.Duration

	CORSOrigins []string
	// ToggleRateLimit is the sustained toggles per second allowed per user.
	ToggleRateLimit float64
}

// Load reads configuration from environment variables.
// It applies defaults for "local" environments but enforces strictness for others.
func Load() (Config, error) {
	cfg := Config{
		Port:                 os.Getenv("PORT"),
		AppEnv:               os.Getenv("APP_ENV"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		OtelExporterEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		StoreDriver:          strings.ToLower(os.Getenv("STORE_DRIVER")),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		SQLitePath:           os.Getenv("SQLITE_PATH"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.JWTSecret == "" {
		if cfg.AppEnv == "local" {
			cfg.JWTSecret = "dev-secret-do-not-use-in-prod"
		} else {
			return Config{}, errors.New("JWT_SECRET is required")
		}
	}
	// Default to production safety if not explicitly set to local
	if cfg.AppEnv == "" {
		cfg.AppEnv = "production"
	}

	switch cfg.StoreDriver {
	case "", DriverPostgres:
		cfg.StoreDriver = DriverPostgres
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required")
		}
	case DriverSQLite:
		if cfg.AppEnv != "local" {
			return Config{}, errors.New("STORE_DRIVER=sqlite is only allowed with APP_ENV=local")
		}
		if cfg.SQLitePath == "" {
			cfg.SQLitePath = "favorites.db"
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	var err error
	if cfg.CacheTTL, err = duration("CACHE_TTL", 10*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.MutationTimeout, err = duration("FAVORITES_MUTATION_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SessionIdle, err = duration("FAVORITES_SESSION_IDLE", 30*time.Minute); err != nil {
		return Config{}, err
	}

	cfg.ToggleRateLimit = 5
	if v := os.Getenv("TOGGLE_RATE_LIMIT"); v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil || limit <= 0 {
			return Config{}, fmt.Errorf("TOGGLE_RATE_LIMIT must be a positive number, got %q", v)
		}
		cfg.ToggleRateLimit = limit
	}

	cfg.CORSOrigins = []string{"*"}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	} else if cfg.AppEnv != "local" {
		return Config{}, errors.New("CORS_ORIGINS is required")
	}

	return cfg, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}
