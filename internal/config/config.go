package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string
	LogLevel        string
	PostgresDSN     string
	DBDriver        string
	RedisURL        string
	JWTSecret       string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBConnMaxIdle   time.Duration
	DBConnMaxLife   time.Duration
	DBPingTimeout   time.Duration
	AutoMigrate     bool
	RequestTimeout  time.Duration
	MaxBodyBytes    int64
	RateLimitPerMin int
	FunnelCacheTTL  time.Duration
	NotifyStream    string
	NotifyStreamMax int64
	BulkConcurrency int
	BulkRatePerSec  float64
	BulkMaxItems    int
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment, after applying an optional
// .env file. Values already set in the environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		PostgresDSN:     getEnv("DATABASE_URL", ""),
		DBDriver:        getEnv("DB_DRIVER", "pgx"),
		RedisURL:        getEnv("REDIS_URL", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		DBMaxOpenConns:  getInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:  getInt("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxIdle:   getDuration("DB_CONN_MAX_IDLE", 5*time.Minute),
		DBConnMaxLife:   getDuration("DB_CONN_MAX_LIFE", 30*time.Minute),
		DBPingTimeout:   getDuration("DB_PING_TIMEOUT", 30*time.Second),
		AutoMigrate:     getBool("DB_AUTO_MIGRATE", true),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 10*time.Second),
		MaxBodyBytes:    int64(getInt("MAX_BODY_BYTES", 1<<20)),
		RateLimitPerMin: getInt("RATE_LIMIT_PER_MIN", 120),
		FunnelCacheTTL:  getDuration("FUNNEL_CACHE_TTL", 5*time.Minute),
		NotifyStream:    getEnv("NOTIFY_STREAM", "pipeline:notifications"),
		NotifyStreamMax: int64(getInt("NOTIFY_STREAM_MAXLEN", 100000)),
		BulkConcurrency: getInt("BULK_CONCURRENCY", 4),
		BulkRatePerSec:  getFloat("BULK_RATE_PER_SEC", 50),
		BulkMaxItems:    getInt("BULK_MAX_ITEMS", 500),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	cfg.DBDriver = strings.ToLower(cfg.DBDriver)
	if cfg.DBDriver == "pq" || cfg.DBDriver == "postgresql" {
		cfg.DBDriver = "postgres"
	}

	missing := make([]string, 0, 1)
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	invalid := make([]string, 0, 3)
	if cfg.BulkConcurrency <= 0 {
		invalid = append(invalid, "BULK_CONCURRENCY")
	}
	if cfg.BulkMaxItems <= 0 {
		invalid = append(invalid, "BULK_MAX_ITEMS")
	}
	if cfg.RateLimitPerMin < 0 {
		invalid = append(invalid, "RATE_LIMIT_PER_MIN")
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("values must be positive: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}
