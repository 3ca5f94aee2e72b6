package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "data/price_history.db", cfg.DatabasePath)
	assert.Equal(t, "items_config.json", cfg.ItemsPath)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 15*time.Second, cfg.TotalTimeout)
	assert.Equal(t, 3, cfg.FetchRetries)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, 10, cfg.PerHostConcurrency)
	assert.Equal(t, "development", cfg.Environment)

	// Optional services default to off
	assert.Empty(t, cfg.MemcacheAddr)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.SMTPHost)
	assert.Empty(t, cfg.TelegramToken)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/var/lib/tracker/history.db")
	t.Setenv("FETCH_RETRIES", "5")
	t.Setenv("RETRY_DELAY_SECONDS", "1")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("TELEGRAM_CHAT_ID", "123456789")
	t.Setenv("TRACKER_ENVIRONMENT", "production")

	cfg := LoadConfig()

	assert.Equal(t, "/var/lib/tracker/history.db", cfg.DatabasePath)
	assert.Equal(t, 5, cfg.FetchRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, int64(123456789), cfg.TelegramChatID)
	assert.Equal(t, "production", cfg.Environment)
}

func TestEmailRecipients(t *testing.T) {
	cfg := &Config{EmailRecipient: "a@example.com, b@example.com ,,c@example.com"}
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, cfg.EmailRecipients())

	empty := &Config{}
	assert.Nil(t, empty.EmailRecipients())
}
