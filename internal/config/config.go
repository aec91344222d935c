package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Persistence.
	DBDriver    string
	DatabaseURL string
	SQLitePath  string
	DBSchema    string

	// BasinCatalog is a path to a YAML catalog; empty selects the embedded default.
	BasinCatalog string

	// Auth and browser access.
	AuthRequired   bool
	SessionTTL     time.Duration
	CookieSecure   bool
	CORSOrigins    []string
	LoginRateLimit float64
	LoginBurst     int

	// Change feed. Disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// LoadDotEnv reads .env.local when present. Missing files are ignored.
func LoadDotEnv() {
	_ = godotenv.Load(".env.local")
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	sessionTTL, err := parseDuration("SESSION_TTL", "6h")
	if err != nil {
		return nil, err
	}
	authRequired, err := parseBool("AUTH_REQUIRED", true)
	if err != nil {
		return nil, err
	}
	cookieSecure, err := parseBool("COOKIE_SECURE", false)
	if err != nil {
		return nil, err
	}

	rate, err := strconv.ParseFloat(envOrDefault("LOGIN_RATE_LIMIT", "1"), 64)
	if err != nil || rate <= 0 {
		return nil, errors.New("invalid LOGIN_RATE_LIMIT")
	}
	burst, err := strconv.Atoi(envOrDefault("LOGIN_RATE_BURST", "5"))
	if err != nil || burst <= 0 {
		return nil, errors.New("invalid LOGIN_RATE_BURST")
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:" + envOrDefault("PORT", "5050")
	}

	cfg := &Config{
		HTTPAddr:        addr,
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DBDriver:    strings.ToLower(envOrDefault("DB_DRIVER", DriverPostgres)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  envOrDefault("SQLITE_PATH", "localidades.db"),
		DBSchema:    envOrDefault("DB_SCHEMA", "localidades"),

		BasinCatalog: os.Getenv("BASIN_CATALOG"),

		AuthRequired:   authRequired,
		SessionTTL:     sessionTTL,
		CookieSecure:   cookieSecure,
		CORSOrigins:    splitList(envOrDefault("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),
		LoginRateLimit: rate,
		LoginBurst:     burst,

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "localidades.changes"),
	}

	switch cfg.DBDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when DB_DRIVER is postgres")
		}
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLITE_PATH is required when DB_DRIVER is sqlite")
		}
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q (want postgres or sqlite)", cfg.DBDriver)
	}
	if cfg.SessionTTL <= 0 {
		return nil, errors.New("SESSION_TTL must be positive")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// ChangeFeedEnabled reports whether localities should be published to Kafka.
func (c *Config) ChangeFeedEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
