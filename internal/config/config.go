package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPPort      string
	DBDriver      string
	DatabaseDSN   string
	RedisAddr     string
	CountCacheTTL time.Duration
	LogLevel      string
	StrictFilters bool
	SeedDemoData  bool
}

func LoadConfig() *Config {
	getEnv := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}

	getBool := func(key string, fallback bool) bool {
		v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
		if err != nil {
			return fallback
		}
		return v
	}

	ttl, err := time.ParseDuration(getEnv("COUNT_CACHE_TTL", "30s"))
	if err != nil {
		ttl = 30 * time.Second
	}

	return &Config{
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		DBDriver:      getEnv("DB_DRIVER", "sqlite"),
		DatabaseDSN:   getEnv("DATABASE_DSN", "file:catalog.db?_pragma=foreign_keys(1)"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		CountCacheTTL: ttl,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		StrictFilters: getBool("STRICT_FILTERS", false),
		SeedDemoData:  getBool("SEED_DEMO_DATA", true),
	}
}
