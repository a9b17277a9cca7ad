package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures the runtime configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Costing   CostingConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

// ServerConfig configures the HTTP server runtime behavior.
type ServerConfig struct {
	Addr string
}

// DatabaseConfig contains the database connection settings.
type DatabaseConfig struct {
	Driver          string
	URL             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	UseMock         bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

// CostingConfig tunes the recalculation orchestrator.
type CostingConfig struct {
	Workers  int
	LockTTL  time.Duration
	LockWait time.Duration
}

// RedisConfig enables the shared workspace lock when URL is set.
type RedisConfig struct {
	URL string
}

// RateLimitConfig uses the limiter formatted rate, e.g. "10-M".
type RateLimitConfig struct {
	Rate string
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Load reads an optional .env file, inspects the environment and builds a
// Config value.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{}

	cfg.Server = ServerConfig{
		Addr: firstNonEmpty(
			os.Getenv("SERVER_ADDR"),
			os.Getenv("ADDR"),
			":8080",
		),
	}

	cfg.Database = DatabaseConfig{
		Driver: strings.ToLower(firstNonEmpty(os.Getenv("DATABASE_DRIVER"), DriverPostgres)),
		URL: firstNonEmpty(
			os.Getenv("DATABASE_URL"),
			os.Getenv("DB_URL"),
			"",
		),
		MaxIdleConns:    parseIntWithDefault(os.Getenv("DATABASE_MAX_IDLE_CONNS"), 0),
		MaxOpenConns:    parseIntWithDefault(os.Getenv("DATABASE_MAX_OPEN_CONNS"), 0),
		ConnMaxLifetime: parseDurationWithDefault(os.Getenv("DATABASE_CONN_MAX_LIFETIME"), 0),
		ConnMaxIdleTime: parseDurationWithDefault(os.Getenv("DATABASE_CONN_MAX_IDLE_TIME"), 0),
		UseMock:         parseBoolWithDefault(os.Getenv("DATABASE_USE_MOCK"), false),
	}

	cfg.Logging = LoggingConfig{
		Level:  firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
		Format: firstNonEmpty(os.Getenv("LOG_FORMAT"), "text"),
	}

	cfg.Costing = CostingConfig{
		Workers:  parseIntWithDefault(os.Getenv("COSTING_WORKERS"), 4),
		LockTTL:  parseDurationWithDefault(os.Getenv("COSTING_LOCK_TTL"), 5*time.Minute),
		LockWait: parseDurationWithDefault(os.Getenv("COSTING_LOCK_WAIT"), 30*time.Second),
	}

	cfg.Redis = RedisConfig{URL: strings.TrimSpace(os.Getenv("REDIS_URL"))}
	cfg.RateLimit = RateLimitConfig{Rate: firstNonEmpty(os.Getenv("RATE_LIMIT"), "10-M")}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return Config{}, fmt.Errorf("server address must not be empty")
	}
	switch cfg.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if cfg.Costing.Workers < 1 {
		return Config{}, fmt.Errorf("costing workers must be positive, got %d", cfg.Costing.Workers)
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func parseIntWithDefault(value string, def int) int {
	if strings.TrimSpace(value) == "" {
		return def
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}

func parseDurationWithDefault(value string, def time.Duration) time.Duration {
	if strings.TrimSpace(value) == "" {
		return def
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}

func parseBoolWithDefault(value string, def bool) bool {
	if strings.TrimSpace(value) == "" {
		return def
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}
