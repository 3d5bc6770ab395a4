package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/efreitasn/basketexec/internal/engine"
	"github.com/efreitasn/basketexec/internal/retry"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the basket executor.
type Config struct {
	Port     int
	LogLevel string

	// Order handler tuning.
	RetryInterval       time.Duration
	MaxPriceAdjustments int
	MaxTickMultiple     int
	RetryAttempts       int
	RetryDelay          time.Duration

	InstrumentsFile    string
	LedgerDSN          string // empty keeps the ledger in memory
	LedgerSyncInterval time.Duration
	FeedURL            string // empty means the paper broker feeds the engine directly
	FeedReconnectDelay time.Duration
	PaperFillDelay     time.Duration
	WebhookTimeout     time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none is
// given) into the environment without overriding variables already set.
// Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	retryInterval, err := getDuration("RETRY_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_INTERVAL: %w", err)
	}
	if retryInterval <= 0 {
		return nil, fmt.Errorf("invalid RETRY_INTERVAL: must be positive")
	}

	maxAdjustments, err := getInt("MAX_PRICE_ADJUSTMENTS", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_PRICE_ADJUSTMENTS: %w", err)
	}
	if maxAdjustments < 0 {
		return nil, fmt.Errorf("invalid MAX_PRICE_ADJUSTMENTS: must not be negative")
	}

	maxTickMultiple, err := getInt("MAX_TICK_MULTIPLE", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_TICK_MULTIPLE: %w", err)
	}
	if maxTickMultiple < 1 {
		return nil, fmt.Errorf("invalid MAX_TICK_MULTIPLE: must be at least 1")
	}

	retryAttempts, err := getInt("RETRY_ATTEMPTS", retry.DefaultAttempts)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_ATTEMPTS: %w", err)
	}
	if retryAttempts < 1 {
		return nil, fmt.Errorf("invalid RETRY_ATTEMPTS: must be at least 1")
	}

	retryDelay, err := getDuration("RETRY_DELAY", retry.DefaultDelay)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_DELAY: %w", err)
	}

	ledgerSyncInterval, err := getDuration("LEDGER_SYNC_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_SYNC_INTERVAL: %w", err)
	}

	feedReconnectDelay, err := getDuration("FEED_RECONNECT_DELAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_RECONNECT_DELAY: %w", err)
	}

	paperFillDelay, err := getDuration("PAPER_FILL_DELAY", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid PAPER_FILL_DELAY: %w", err)
	}

	webhookTimeout, err := getDuration("WEBHOOK_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	// A basket request is answered once every order settles.
	writeTimeout, err := getDuration("WRITE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:                port,
		LogLevel:            logLevel,
		RetryInterval:       retryInterval,
		MaxPriceAdjustments: maxAdjustments,
		MaxTickMultiple:     maxTickMultiple,
		RetryAttempts:       retryAttempts,
		RetryDelay:          retryDelay,
		InstrumentsFile:     getStr("INSTRUMENTS_FILE", "instruments.yaml"),
		LedgerDSN:           os.Getenv("LEDGER_DSN"),
		LedgerSyncInterval:  ledgerSyncInterval,
		FeedURL:             os.Getenv("FEED_URL"),
		FeedReconnectDelay:  feedReconnectDelay,
		PaperFillDelay:      paperFillDelay,
		WebhookTimeout:      webhookTimeout,
		ReadTimeout:         readTimeout,
		WriteTimeout:        writeTimeout,
		IdleTimeout:         idleTimeout,
		ShutdownTimeout:     shutdownTimeout,
	}, nil
}

// HandlerConfig returns the order handler settings.
func (c *Config) HandlerConfig() engine.HandlerConfig {
	return engine.HandlerConfig{
		RetryInterval:       c.RetryInterval,
		MaxPriceAdjustments: c.MaxPriceAdjustments,
		MaxTickMultiple:     c.MaxTickMultiple,
		Retry:               retry.Policy{Attempts: c.RetryAttempts, Delay: c.RetryDelay},
	}
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
