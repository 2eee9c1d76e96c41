package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string // empty disables the bot; messages are only logged
	AdminTelegramID int64
	DatabaseURL     string // empty selects in-memory storage
	LogLevel        string
	Environment     string
	HTTPAddr        string
	AdminAPIToken   string
	WebhookToken    string
	Location        *time.Location
	CompanyName     string

	AntiSpamEnabled      bool
	AntiSpamCooldownDays int
	PreDueLeadDays       int

	SendConcurrency   int
	SendRatePerSecond int
	RunBusyPolicy     string // "reject" or "wait"
	RunTimeout        time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}
	if cfg.TelegramToken != "" && cfg.AdminTelegramID == 0 {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.AdminAPIToken = os.Getenv("ADMIN_API_TOKEN")
	cfg.WebhookToken = os.Getenv("WEBHOOK_TOKEN")
	cfg.CompanyName = getEnv("COMPANY_NAME", "CobrançaZap")

	cfg.Location, err = time.LoadLocation(getEnv("TIMEZONE", "America/Sao_Paulo"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	if cfg.AntiSpamEnabled, err = getBool("ANTI_SPAM_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.AntiSpamCooldownDays, err = getIntInRange("ANTI_SPAM_COOLDOWN_DAYS", 3, 1, 30); err != nil {
		return nil, err
	}
	if cfg.PreDueLeadDays, err = getIntInRange("PRE_DUE_LEAD_DAYS", 3, 1, 30); err != nil {
		return nil, err
	}
	if cfg.SendConcurrency, err = getIntInRange("SEND_CONCURRENCY", 4, 1, 256); err != nil {
		return nil, err
	}
	if cfg.SendRatePerSecond, err = getIntInRange("SEND_RATE_PER_SECOND", 10, 0, 10000); err != nil {
		return nil, err
	}

	cfg.RunBusyPolicy = strings.ToLower(getEnv("RUN_BUSY_POLICY", "reject"))
	if cfg.RunBusyPolicy != "reject" && cfg.RunBusyPolicy != "wait" {
		return nil, fmt.Errorf("invalid RUN_BUSY_POLICY %q: expected reject or wait", cfg.RunBusyPolicy)
	}

	cfg.RunTimeout, err = time.ParseDuration(getEnv("RUN_TIMEOUT", "10m"))
	if err != nil || cfg.RunTimeout <= 0 {
		return nil, fmt.Errorf("invalid RUN_TIMEOUT %q", os.Getenv("RUN_TIMEOUT"))
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getIntInRange(key string, defaultValue, lo, hi int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("invalid %s: %d is outside [%d, %d]", key, v, lo, hi)
	}
	return v, nil
}
