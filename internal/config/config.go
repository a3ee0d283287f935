package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	openweather "github.com/i474232898/openweather-sdk"
)

// AppConfig holds the demo server configuration.
type AppConfig struct {
	APIKey string

	// SDK tunables.
	Mode            openweather.Mode
	TTL             time.Duration
	PollingInterval time.Duration
	MaxCacheSize    int
	WorkerPoolSize  int

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.APIKey = os.Getenv("OPENWEATHER_API_KEY")
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENWEATHER_API_KEY must be set")
	}

	switch mode := getenvDefault("OPENWEATHER_MODE", "on_demand"); mode {
	case "on_demand":
		cfg.Mode = openweather.OnDemand
	case "polling":
		cfg.Mode = openweather.Polling
	default:
		return nil, fmt.Errorf("invalid OPENWEATHER_MODE: %q", mode)
	}

	ttl, err := getenvDuration("OPENWEATHER_TTL", "10m")
	if err != nil {
		return nil, fmt.Errorf("invalid OPENWEATHER_TTL: %w", err)
	}
	cfg.TTL = ttl

	interval, err := getenvDuration("OPENWEATHER_POLLING_INTERVAL", "10m")
	if err != nil {
		return nil, fmt.Errorf("invalid OPENWEATHER_POLLING_INTERVAL: %w", err)
	}
	cfg.PollingInterval = interval

	cfg.MaxCacheSize = getenvInt("OPENWEATHER_MAX_CACHE_SIZE", openweather.DefaultConfig().MaxCacheSize)
	cfg.WorkerPoolSize = getenvInt("OPENWEATHER_WORKER_POOL_SIZE", openweather.DefaultConfig().WorkerPoolSize)

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

// SDKConfig converts the loaded values into an SDK configuration.
func (c *AppConfig) SDKConfig() openweather.Config {
	return openweather.DefaultConfig().
		WithMode(c.Mode).
		WithTTL(c.TTL).
		WithPollingInterval(c.PollingInterval).
		WithMaxCacheSize(c.MaxCacheSize).
		WithWorkerPoolSize(c.WorkerPoolSize)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	return time.ParseDuration(getenvDefault(key, def))
}
