// Package config loads gateway configuration from the environment and the
// service catalog file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// maxProviders bounds how many PROVIDER_N_URL slots are scanned.
const maxProviders = 10

// Provider is one configured external upstream. Slot order is the global
// provider priority; a service's fallback chain references providers by ID.
type Provider struct {
	ID     string
	URL    string
	APIKey string
}

// Config is the full gateway runtime configuration.
type Config struct {
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string
	CatalogPath string

	JWTSecret     string
	JWTTTL        time.Duration
	AdminEmail    string
	AdminPassword string

	RateLimitRPS   int
	RateLimitBurst int

	RefreshInterval time.Duration

	Providers []Provider
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first without overriding real environment variables.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:        envOr("HTTP_ADDR", ":8080"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		CatalogPath:     envOr("CATALOG_PATH", "config/services.yaml"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTTTL:          envDuration("JWT_TTL", 24*time.Hour),
		AdminEmail:      envOr("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
		RateLimitRPS:    envInt("RATE_LIMIT_RPS", 20),
		RateLimitBurst:  envInt("RATE_LIMIT_BURST", 40),
		RefreshInterval: envDuration("REFRESH_INTERVAL", time.Minute),
		Providers:       loadProviders(),
	}

	if cfg.RateLimitRPS <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}
	return cfg, nil
}

// loadProviders scans PROVIDER_1_URL .. PROVIDER_N_URL slots. Slots with no
// configuration at all are dropped; the resolver skips chain entries that
// name a missing or URL-less provider.
func loadProviders() []Provider {
	var out []Provider
	for i := 1; i <= maxProviders; i++ {
		prefix := fmt.Sprintf("PROVIDER_%d", i)
		id := envOr(prefix+"_ID", fmt.Sprintf("provider_%d", i))
		url := os.Getenv(prefix + "_URL")
		key := os.Getenv(prefix + "_KEY")
		if url == "" && key == "" && os.Getenv(prefix+"_ID") == "" {
			continue
		}
		out = append(out, Provider{ID: id, URL: url, APIKey: key})
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
