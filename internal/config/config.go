package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"ordersbot/internal/logger"
)

type Config struct {
	// Telegram Configuration
	TelegramBotToken       string
	TelegramOperatorChatID int64
	TelegramAllowedChatIDs []int64

	// Google Sheets Configuration
	GoogleSheetURL string
	OrderSheet     string
	SourceSheet    string
	PriceSheet     string

	// Bank webhook Configuration
	WebhookAddr   string
	WebhookAPIKey string

	// Business rules
	RenewalThresholdDays int
	ExpiryCheckInterval  time.Duration
	Timezone             string
	MachineID            uint16

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	operatorChatID, err := getEnvInt64("TELEGRAM_OPERATOR_CHAT_ID", 0)
	if err != nil {
		return nil, err
	}
	allowed, err := getEnvInt64List("TELEGRAM_ALLOWED_CHAT_IDS")
	if err != nil {
		return nil, err
	}
	threshold, err := getEnvInt("RENEWAL_THRESHOLD_DAYS", 4)
	if err != nil {
		return nil, err
	}
	interval, err := getEnvDuration("EXPIRY_CHECK_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	machineID, err := getEnvInt("MACHINE_ID", 1)
	if err != nil {
		return nil, err
	}

	config := &Config{
		TelegramBotToken:       getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramOperatorChatID: operatorChatID,
		TelegramAllowedChatIDs: allowed,
		GoogleSheetURL:         getEnv("GOOGLE_SHEET_URL", ""),
		OrderSheet:             getEnv("ORDER_SHEET", "Đơn hàng"),
		SourceSheet:            getEnv("SOURCE_SHEET", "Nguồn"),
		PriceSheet:             getEnv("PRICE_SHEET", "Bảng giá"),
		WebhookAddr:            getEnv("WEBHOOK_ADDR", ":8080"),
		WebhookAPIKey:          getEnv("WEBHOOK_API_KEY", ""),
		RenewalThresholdDays:   threshold,
		ExpiryCheckInterval:    interval,
		Timezone:               getEnv("TIMEZONE", "Asia/Ho_Chi_Minh"),
		MachineID:              uint16(machineID),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:          getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:              getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.GoogleSheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL is required")
	}
	if c.RenewalThresholdDays < 0 {
		return fmt.Errorf("RENEWAL_THRESHOLD_DAYS must not be negative")
	}
	if c.ExpiryCheckInterval <= 0 {
		return fmt.Errorf("EXPIRY_CHECK_INTERVAL must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q is invalid: %w", c.Timezone, err)
	}
	return nil
}

// ValidateBot checks the settings the Telegram side needs. The CLI commands that only touch
// the spreadsheet do not require them.
func (c *Config) ValidateBot() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.TelegramOperatorChatID == 0 {
		return fmt.Errorf("TELEGRAM_OPERATOR_CHAT_ID is required")
	}
	return nil
}

// Location returns the configured time zone; validate already checked it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AllowedChats returns the chats the bot answers; the operator chat is always included.
func (c *Config) AllowedChats() map[int64]bool {
	chats := make(map[int64]bool, len(c.TelegramAllowedChatIDs)+1)
	for _, id := range c.TelegramAllowedChatIDs {
		chats[id] = true
	}
	if c.TelegramOperatorChatID != 0 {
		chats[c.TelegramOperatorChatID] = true
	}
	return chats
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvInt64List(key string) ([]int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s contains a non-numeric chat id %q: %w", key, part, err)
		}
		ids = append(ids, n)
	}
	return ids, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 12h: %w", key, err)
	}
	return d, nil
}
