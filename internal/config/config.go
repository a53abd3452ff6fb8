package config

import (
	"os"
	"strconv"
	"sync"
)

// Config holds application configuration from environment.
type Config struct {
	HTTPPort      string
	DatabaseURL   string
	DBPoolSize    int
	RedisURL      string
	RedisPoolSize int

	// Fixed-window rate limit for /login and /refresh, per client IP.
	AuthRateLimit  int
	AuthRateWindow int // seconds

	// Audit event stream; empty brokers disable publishing.
	KafkaBrokers    []string
	KafkaTopic      string
	KafkaPartitions int

	// Expired-token sweeper cadence.
	TokenSweepInterval int // seconds
}

var (
	cfg     *Config
	cfgOnce sync.Once
)

// Get returns the application config (loads once from env).
func Get() *Config {
	cfgOnce.Do(func() {
		cfg = &Config{
			HTTPPort:           getEnv("HTTP_PORT", "8080"),
			DatabaseURL:        os.Getenv("DATABASE_URL"),
			DBPoolSize:         getIntEnv("DB_POOL_SIZE", 50),
			RedisURL:           os.Getenv("REDIS_URL"),
			RedisPoolSize:      getIntEnv("REDIS_POOL_SIZE", 100),
			AuthRateLimit:      getIntEnv("AUTH_RATE_LIMIT", 10),
			AuthRateWindow:     getIntEnv("AUTH_RATE_WINDOW_SEC", 60),
			KafkaBrokers:       getSliceEnv("KAFKA_BROKERS", ""),
			KafkaTopic:         getEnv("KAFKA_AUDIT_TOPIC", "todo-audit-events"),
			KafkaPartitions:    getIntEnv("KAFKA_PARTITIONS", 4),
			TokenSweepInterval: getIntEnv("TOKEN_SWEEP_INTERVAL_SEC", 3600),
		}
	})
	return cfg
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getSliceEnv(key, defaultVal string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = defaultVal
	}
	var out []string
	for _, s := range splitTrim(v, ",") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func splitTrim(s, sep string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s)-len(sep); i++ {
		if s[i:i+len(sep)] == sep {
			out = append(out, trim(s[start:i]))
			start = i + len(sep)
			i += len(sep) - 1
		}
	}
	out = append(out, trim(s[start:]))
	return out
}

func trim(s string) string {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t') {
		j--
	}
	return s[i:j]
}
