// Package config читает конфигурацию узла из переменных окружения
// STATESYNC_* с валидацией и значениями по умолчанию.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config конфигурация одного узла синхронизации.
type Config struct {
	ReplicaID string // пустое значение = сгенерировать UUID
	LogLevel  string // debug|info|warn|error

	ConflictWindow time.Duration

	CacheL1Size int
	CachePath   string
	CacheTTL    time.Duration

	BatchSize       int
	BatchWaitTime   time.Duration
	BatchMaxRetries uint64

	MaxConcurrent     int64
	RequestsPerMinute int
	RateLimitBurst    int
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		LogLevel:          "info",
		ConflictWindow:    5 * time.Second,
		CacheL1Size:       1000,
		CachePath:         "./data/cache.db",
		CacheTTL:          time.Hour,
		BatchSize:         50,
		BatchWaitTime:     500 * time.Millisecond,
		BatchMaxRetries:   3,
		MaxConcurrent:     10,
		RequestsPerMinute: 100,
		RateLimitBurst:    20,
	}
}

// Load читает конфигурацию: значения по умолчанию, поверх — переменные
// окружения STATESYNC_*.
func Load() (*Config, error) {
	cfg := Default()

	cfg.ReplicaID = getEnv("STATESYNC_REPLICA_ID", cfg.ReplicaID)
	cfg.LogLevel = getEnv("STATESYNC_LOG_LEVEL", cfg.LogLevel)
	cfg.CachePath = getEnv("STATESYNC_CACHE_PATH", cfg.CachePath)

	var err error
	if cfg.ConflictWindow, err = getDuration("STATESYNC_CONFLICT_WINDOW", cfg.ConflictWindow); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDuration("STATESYNC_CACHE_TTL", cfg.CacheTTL); err != nil {
		return nil, err
	}
	if cfg.BatchWaitTime, err = getDuration("STATESYNC_BATCH_WAIT_TIME", cfg.BatchWaitTime); err != nil {
		return nil, err
	}

	if cfg.CacheL1Size, err = getInt("STATESYNC_CACHE_L1_SIZE", cfg.CacheL1Size); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = getInt("STATESYNC_BATCH_SIZE", cfg.BatchSize); err != nil {
		return nil, err
	}
	if cfg.RequestsPerMinute, err = getInt("STATESYNC_RATE_LIMIT_PER_MINUTE", cfg.RequestsPerMinute); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getInt("STATESYNC_RATE_LIMIT_BURST", cfg.RateLimitBurst); err != nil {
		return nil, err
	}

	maxConcurrent, err := getInt("STATESYNC_MAX_CONCURRENT", int(cfg.MaxConcurrent))
	if err != nil {
		return nil, err
	}
	cfg.MaxConcurrent = int64(maxConcurrent)

	retries, err := getInt("STATESYNC_BATCH_MAX_RETRIES", int(cfg.BatchMaxRetries))
	if err != nil {
		return nil, err
	}
	if retries < 0 {
		return nil, fmt.Errorf("STATESYNC_BATCH_MAX_RETRIES must not be negative, got %d", retries)
	}
	cfg.BatchMaxRetries = uint64(retries)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность конфигурации.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	if c.ConflictWindow <= 0 {
		return fmt.Errorf("conflict window must be positive, got %s", c.ConflictWindow)
	}
	if c.CacheL1Size <= 0 {
		return fmt.Errorf("cache l1 size must be positive, got %d", c.CacheL1Size)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.BatchWaitTime <= 0 {
		return fmt.Errorf("batch wait time must be positive, got %s", c.BatchWaitTime)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent must be positive, got %d", c.MaxConcurrent)
	}
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests per minute must be positive, got %d", c.RequestsPerMinute)
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive, got %d", c.RateLimitBurst)
	}

	return nil
}

// SlogLevel возвращает уровень логирования для slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
