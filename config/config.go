// Package config loads service settings from the environment, reading a
// .env file first when one exists.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Store     StoreConfig
	Demo      DemoConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

type LogConfig struct {
	Level  string
	Format string // "text" | "json"
}

type StoreConfig struct {
	Backend       string // "memory" | "redis" | "postgres"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string
	SessionTTL    time.Duration
	SweepSchedule string
}

type DemoConfig struct {
	Generations int
	CatalogFile string
	UpgradeURL  string
	SignInURL   string
	JobTTL      time.Duration
}

type AuthConfig struct {
	PublicKeyFile string
	JWKSURL       string
	Issuer        string
	Audience      string
}

type RateLimitConfig struct {
	ConsumePerMinute  int
	GeneratePerMinute int
	SessionPerMinute  int
}

// Load reads .env (if present) and the environment, then validates.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("failed to read .env file")
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			CORSOrigins: getEnvAsList("CORS_ORIGINS"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(getEnv("STORE_BACKEND", "memory")),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			DatabaseURL:   getEnv("DATABASE_URL", ""),
			SessionTTL:    getEnvAsDuration("SESSION_TTL", 30*24*time.Hour),
			SweepSchedule: getEnv("SWEEP_SCHEDULE", "@every 1h"),
		},
		Demo: DemoConfig{
			Generations: getEnvAsInt("DEMO_GENERATIONS", 3),
			CatalogFile: getEnv("CATALOG_FILE", ""),
			UpgradeURL:  getEnv("UPGRADE_URL", "/pricing"),
			SignInURL:   getEnv("SIGN_IN_URL", "/login"),
			JobTTL:      getEnvAsDuration("JOB_TTL", 15*time.Minute),
		},
		Auth: AuthConfig{
			PublicKeyFile: getEnv("JWT_PUBLIC_KEY_FILE", ""),
			JWKSURL:       getEnv("JWT_JWKS_URL", ""),
			Issuer:        getEnv("JWT_ISSUER", ""),
			Audience:      getEnv("JWT_AUDIENCE", ""),
		},
		RateLimit: RateLimitConfig{
			ConsumePerMinute:  getEnvAsInt("RATE_LIMIT_CONSUME", 10),
			GeneratePerMinute: getEnvAsInt("RATE_LIMIT_GENERATE", 5),
			SessionPerMinute:  getEnvAsInt("RATE_LIMIT_SESSION", 60),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	switch c.Store.Backend {
	case "memory":
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis backend")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be memory, redis or postgres, got %q", c.Store.Backend)
	}
	if c.Demo.Generations <= 0 {
		return fmt.Errorf("DEMO_GENERATIONS must be positive")
	}
	if c.Auth.JWKSURL != "" && c.Auth.PublicKeyFile != "" {
		return fmt.Errorf("JWT_JWKS_URL and JWT_PUBLIC_KEY_FILE are mutually exclusive")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ConfigureLogging applies the log level and format to the standard logger.
func (c *Config) ConfigureLogging() {
	lvl, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	if c.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logrus.Warnf("invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logrus.Warnf("invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
