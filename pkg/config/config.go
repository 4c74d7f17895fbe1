package config

import (
	"os"
	"time"
)

// Config holds server configuration. Artifact storage backends read their
// own environment (see pkg/artifacts.NewStoreFromEnv).
type Config struct {
	Port          string
	LogLevel      string
	DatabaseURL   string // empty selects the embedded SQLite store
	SQLitePath    string
	RedisAddr     string // empty selects the in-process rate limiter
	NetworksFile  string
	AuthDisabled  bool
	JWTSecret     string
	JWTIssuer     string
	ReceiptSecret string
	DeployTimeout time.Duration
	SweepInterval time.Duration // 0 disables the expiry sweeper
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:          getenv("PORT", "3001"),
		LogLevel:      getenv("LOG_LEVEL", "INFO"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    getenv("SQLITE_PATH", "soroban-registry.db"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		NetworksFile:  os.Getenv("NETWORKS_FILE"),
		AuthDisabled:  os.Getenv("AUTH_DISABLED") == "true",
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTIssuer:     getenv("JWT_ISSUER", "soroban-registry"),
		ReceiptSecret: os.Getenv("RECEIPT_MASTER_SECRET"),
		DeployTimeout: getduration("DEPLOY_TIMEOUT", 30*time.Second),
		SweepInterval: getduration("SWEEP_INTERVAL", time.Minute),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
