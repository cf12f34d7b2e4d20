package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig is everything the service reads from the environment.
type AppConfig struct {
	HTTPAddr string

	// StorageDriver selects the account/ledger backend: "memory" or "postgres".
	StorageDriver string

	JWTSecret string
	TokenTTL  time.Duration

	// LockWait bounds how long a money movement waits to enter an account's
	// critical section before failing retryably.
	LockWait time.Duration

	RedisAddr string
	RedisPass string

	KafkaBrokers []string
	KafkaTopic   string

	AdminEmail    string
	AdminPassword string
}

func Load() AppConfig {
	return AppConfig{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8030"),
		StorageDriver: getEnv("STORAGE_DRIVER", "memory"),
		JWTSecret:     getEnv("JWT_SECRET", "dev-only-secret"),
		TokenTTL:      getEnvDuration("TOKEN_TTL", 24*time.Hour),
		LockWait:      getEnvDuration("LOCK_WAIT", 2*time.Second),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPass:     getEnv("REDIS_PASS", ""),
		KafkaBrokers:  getEnvSlice("KAFKA_BROKERS", nil),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "ledger.transaction.events"),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		return strings.Split(v, ",")
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Bare integers are taken as seconds.
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
