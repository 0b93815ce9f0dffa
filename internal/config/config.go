// Package config loads the gateway configuration from the environment, with
// an optional YAML file as the base layer. Environment variables always win.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RateLimitConfig struct {
	// Limit is the nominal request ceiling per window.
	Limit int `yaml:"limit"`

	// Window is the fixed window length.
	Window time.Duration `yaml:"window"`

	// BurstPercent widens the ceiling by Limit*BurstPercent/100.
	BurstPercent int `yaml:"burst_percent"`

	// RetryAttempts and RetryDelay control store-failure retries.
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`

	// CleanupInterval and ScanBatchSize control the orphan sweeper.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	ScanBatchSize   int64         `yaml:"scan_batch_size"`

	// FailOpen selects the policy when the store is unavailable.
	FailOpen bool `yaml:"fail_open"`

	// KeyPrefix namespaces the counter keys.
	KeyPrefix string `yaml:"key_prefix"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Defaults returns the documented default configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		RateLimit: RateLimitConfig{
			Limit:           100,
			Window:          time.Minute,
			BurstPercent:    0,
			RetryAttempts:   3,
			RetryDelay:      100 * time.Millisecond,
			CleanupInterval: 5 * time.Minute,
			ScanBatchSize:   100,
			FailOpen:        true,
			KeyPrefix:       "ratelimit:",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration: defaults, then the optional CONFIG_FILE
// YAML layer, then environment variables.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var err error

	cfg.Server.Addr = getEnv("SERVER_ADDR", cfg.Server.Addr)
	if cfg.Server.ShutdownTimeout, err = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout); err != nil {
		return err
	}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", cfg.Redis.DB); err != nil {
		return err
	}

	if cfg.RateLimit.Limit, err = getEnvInt("RATE_LIMIT_REQUESTS", cfg.RateLimit.Limit); err != nil {
		return err
	}
	if cfg.RateLimit.Window, err = getEnvDuration("RATE_LIMIT_WINDOW", cfg.RateLimit.Window); err != nil {
		return err
	}
	if cfg.RateLimit.BurstPercent, err = getEnvInt("RATE_LIMIT_BURST_PERCENT", cfg.RateLimit.BurstPercent); err != nil {
		return err
	}
	if cfg.RateLimit.RetryAttempts, err = getEnvInt("RATE_LIMIT_RETRY_ATTEMPTS", cfg.RateLimit.RetryAttempts); err != nil {
		return err
	}
	if cfg.RateLimit.RetryDelay, err = getEnvDuration("RATE_LIMIT_RETRY_DELAY", cfg.RateLimit.RetryDelay); err != nil {
		return err
	}
	if cfg.RateLimit.CleanupInterval, err = getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", cfg.RateLimit.CleanupInterval); err != nil {
		return err
	}
	if cfg.RateLimit.ScanBatchSize, err = getEnvInt64("RATE_LIMIT_SCAN_BATCH_SIZE", cfg.RateLimit.ScanBatchSize); err != nil {
		return err
	}
	if cfg.RateLimit.FailOpen, err = getEnvBool("RATE_LIMIT_FAIL_OPEN", cfg.RateLimit.FailOpen); err != nil {
		return err
	}
	cfg.RateLimit.KeyPrefix = getEnv("RATE_LIMIT_KEY_PREFIX", cfg.RateLimit.KeyPrefix)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	return nil
}

// Validate checks ranges the limiter cannot check itself (it re-validates
// its own Config at construction).
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server addr is required")
	}
	if strings.TrimSpace(c.Redis.Addr) == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.RateLimit.Limit <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0, got %d", c.RateLimit.Limit)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0, got %v", c.RateLimit.Window)
	}
	if c.RateLimit.BurstPercent < 0 || c.RateLimit.BurstPercent > 100 {
		return fmt.Errorf("RATE_LIMIT_BURST_PERCENT must be in [0,100], got %d", c.RateLimit.BurstPercent)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.Log.Level)
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// SlogLevel maps the configured level onto slog's levels. Validate has
// already rejected anything unknown.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
