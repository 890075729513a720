// Package config loads the gateway binary configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Sternrassler/realty-gateway/pkg/auth"
	"github.com/Sternrassler/realty-gateway/pkg/router"
)

// Config holds all configuration for the gateway binary.
type Config struct {
	Port string

	// RedisURL selects the Redis cache; empty keeps caches in memory.
	RedisURL string

	UserAgent   string
	DefaultLang string
	DefaultCity string

	RequestTimeout        time.Duration
	MaxAttempts           int
	MaxConcurrencyPerHost int

	LogLevel  string
	LogPretty bool

	Hosts router.HostSet
	SSO   auth.Config
}

// Load reads an optional .env file (envPath or ./.env), then the environment.
// A missing file is not an error.
func Load(envPath ...string) (*Config, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath...)
	} else {
		err = godotenv.Load()
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		RedisURL:              getEnv("REDIS_URL", ""),
		UserAgent:             getEnv("USER_AGENT", "realty-gateway/0.1.0"),
		DefaultLang:           getEnv("DEFAULT_LANG", "ru"),
		DefaultCity:           getEnv("DEFAULT_CITY", "msk"),
		RequestTimeout:        getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		MaxAttempts:           getEnvAsInt("MAX_ATTEMPTS", 3),
		MaxConcurrencyPerHost: getEnvAsInt("MAX_CONCURRENCY_PER_HOST", 8),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogPretty:             getEnvAsBool("LOG_PRETTY", false),
		Hosts: router.HostSet{
			Complex:        getEnv("COMPLEX_API_URL", ""),
			Unit:           getEnv("UNIT_API_URL", ""),
			ParkingSpace:   getEnv("PARKING_API_URL", ""),
			LandPlot:       getEnv("LAND_API_URL", ""),
			CommercialUnit: getEnv("COMMERCIAL_API_URL", ""),
			HouseProject:   getEnv("PROJECT_API_URL", ""),
			Settlement:     getEnv("SETTLEMENT_API_URL", ""),
		},
		SSO: auth.Config{
			LoginURL:       getEnv("SSO_LOGIN_URL", ""),
			AppID:          getEnv("SSO_APP_ID", ""),
			Phone:          getEnv("SSO_PHONE", ""),
			Password:       getEnv("SSO_PASSWORD", ""),
			Origin:         getEnv("SSO_ORIGIN", ""),
			TokenURL:       getEnv("SSO_TOKEN_URL", ""),
			ClientLoginURL: getEnv("SSO_CLIENT_LOGIN_URL", ""),
			ClientID:       getEnv("SSO_CLIENT_ID", ""),
			ClientSecret:   getEnv("SSO_CLIENT_SECRET", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every upstream host is set and limits are positive.
func (c *Config) Validate() error {
	hosts := map[string]string{
		"COMPLEX_API_URL":    c.Hosts.Complex,
		"UNIT_API_URL":       c.Hosts.Unit,
		"PARKING_API_URL":    c.Hosts.ParkingSpace,
		"LAND_API_URL":       c.Hosts.LandPlot,
		"COMMERCIAL_API_URL": c.Hosts.CommercialUnit,
		"PROJECT_API_URL":    c.Hosts.HouseProject,
		"SETTLEMENT_API_URL": c.Hosts.Settlement,
	}
	for name, v := range hosts {
		if v == "" {
			return fmt.Errorf("%s environment variable is required", name)
		}
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	if c.MaxConcurrencyPerHost < 1 {
		return fmt.Errorf("MAX_CONCURRENCY_PER_HOST must be at least 1, got %d", c.MaxConcurrencyPerHost)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}
