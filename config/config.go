package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Database configuration
	DatabasePath string

	// Items file
	ItemsPath string

	// Fetch tuning
	ConnectTimeout     time.Duration
	TotalTimeout       time.Duration
	FetchRetries       int
	RetryDelay         time.Duration
	PerHostConcurrency int
	PerHostRPS         float64
	CooldownTTL        time.Duration

	// Memcache configuration (optional host-cooldown memory)
	MemcacheAddr string

	// Redis configuration (optional reading stream)
	RedisAddr      string
	RedisDB        int
	RedisStream    string
	RedisStreamMax int

	// Email channel
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	EmailFrom      string
	EmailRecipient string

	// Telegram channel
	TelegramToken  string
	TelegramChatID int64

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	connectTimeout, _ := strconv.Atoi(getEnv("CONNECT_TIMEOUT_SECONDS", "5"))
	totalTimeout, _ := strconv.Atoi(getEnv("TOTAL_TIMEOUT_SECONDS", "15"))
	retries, _ := strconv.Atoi(getEnv("FETCH_RETRIES", "3"))
	retryDelay, _ := strconv.Atoi(getEnv("RETRY_DELAY_SECONDS", "2"))
	perHost, _ := strconv.Atoi(getEnv("PER_HOST_CONCURRENCY", "10"))
	perHostRPS, _ := strconv.ParseFloat(getEnv("PER_HOST_RPS", "5"), 64)
	cooldown, _ := strconv.Atoi(getEnv("COOLDOWN_TTL_SECONDS", "300"))

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisStreamMax, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAXLEN", "1000"))

	smtpPort, _ := strconv.Atoi(getEnv("SMTP_PORT", "465"))
	telegramChatID, _ := strconv.ParseInt(getEnv("TELEGRAM_CHAT_ID", "0"), 10, 64)

	return &Config{
		DatabasePath: getEnv("DATABASE_PATH", "data/price_history.db"),
		ItemsPath:    getEnv("ITEMS_CONFIG_PATH", "items_config.json"),

		ConnectTimeout:     time.Duration(connectTimeout) * time.Second,
		TotalTimeout:       time.Duration(totalTimeout) * time.Second,
		FetchRetries:       retries,
		RetryDelay:         time.Duration(retryDelay) * time.Second,
		PerHostConcurrency: perHost,
		PerHostRPS:         perHostRPS,
		CooldownTTL:        time.Duration(cooldown) * time.Second,

		MemcacheAddr: getEnv("MEMCACHE_ADDR", ""),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisDB:        redisDB,
		RedisStream:    getEnv("REDIS_STREAM", "price_readings"),
		RedisStreamMax: redisStreamMax,

		SMTPHost:       getEnv("SMTP_HOST", ""),
		SMTPPort:       smtpPort,
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		EmailRecipient: getEnv("EMAIL_RECIPIENT", ""),

		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: telegramChatID,

		Environment: getEnv("TRACKER_ENVIRONMENT", "development"),
	}
}

// EmailRecipients splits the comma-separated recipient list.
func (c *Config) EmailRecipients() []string {
	if c.EmailRecipient == "" {
		return nil
	}
	parts := strings.Split(c.EmailRecipient, ",")
	recipients := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			recipients = append(recipients, trimmed)
		}
	}
	return recipients
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
