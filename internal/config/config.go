package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is assembled from the environment with working defaults for a
// local docker-compose setup.
type Config struct {
	HTTPAddr         string
	MySQLDSN         string
	RedisAddr        string
	DebounceInterval time.Duration
	LogMode          string // "dev" or "prod"
}

const (
	defaultHTTPAddr   = ":8080"
	defaultMySQLDSN   = "root:root@tcp(localhost:3306)/cart?parseTime=true"
	defaultRedisAddr  = "localhost:6379"
	defaultDebounceMS = 300
	defaultLogMode    = "dev"
)

func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:         getenv("CART_HTTP_ADDR", defaultHTTPAddr),
		MySQLDSN:         getenv("CART_MYSQL_DSN", defaultMySQLDSN),
		RedisAddr:        getenv("CART_REDIS_ADDR", defaultRedisAddr),
		DebounceInterval: defaultDebounceMS * time.Millisecond,
		LogMode:          getenv("CART_LOG_MODE", defaultLogMode),
	}

	if raw := os.Getenv("CART_DEBOUNCE_MS"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			return Config{}, fmt.Errorf("invalid CART_DEBOUNCE_MS=%q: expected a non-negative integer", raw)
		}
		cfg.DebounceInterval = time.Duration(ms) * time.Millisecond
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
