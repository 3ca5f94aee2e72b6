package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/AlexandroFSD/price-tracker/config"
	"github.com/AlexandroFSD/price-tracker/internal/extract"
	"github.com/AlexandroFSD/price-tracker/internal/fetch"
	"github.com/AlexandroFSD/price-tracker/internal/tracker"
	"github.com/AlexandroFSD/price-tracker/logger"
	"github.com/AlexandroFSD/price-tracker/services/cache"
	"github.com/AlexandroFSD/price-tracker/services/notifier"
	"github.com/AlexandroFSD/price-tracker/services/publisher"
	"github.com/AlexandroFSD/price-tracker/services/storage"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	cfg := config.LoadConfig()

	items, channels, err := config.LoadItems(cfg.ItemsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load items config")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Int("items", len(items)).
		Strs("channels", channels).
		Msg("Starting price tracker")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	services := initializeServices(ctx, cfg)
	defer services.Cleanup()

	notifiers := buildNotifiers(cfg)

	fetcher := fetch.NewFetcher(
		extract.NewExtractor(extract.XPathEngine{}),
		fetchOptions(cfg),
		services.Cache,
	)

	trk, err := tracker.New(fetcher, storage.NewSQLiteStore(cfg.DatabasePath), services.Publisher, notifiers, channels)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracker")
	}

	trk.RunCheck(ctx, items)

	if services.Publisher != nil {
		if err := services.Publisher.TrimStream(); err != nil {
			logger.LogError("publisher", err, "Failed to trim reading stream")
		}
	}

	log.Info().Msg("Tracking pass finished")
}

func fetchOptions(cfg *config.Config) fetch.Options {
	opts := fetch.DefaultOptions()
	opts.ConnectTimeout = cfg.ConnectTimeout
	opts.TotalTimeout = cfg.TotalTimeout
	opts.Retries = cfg.FetchRetries
	opts.RetryDelay = cfg.RetryDelay
	opts.PerHostConcurrency = cfg.PerHostConcurrency
	opts.PerHostRate = rate.Limit(cfg.PerHostRPS)
	opts.CooldownTTL = cfg.CooldownTTL
	return opts
}

func buildNotifiers(cfg *config.Config) []notifier.Notifier {
	notifiers := []notifier.Notifier{
		notifier.NewEmailNotifier(notifier.EmailSettings{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Username:   cfg.SMTPUsername,
			Password:   cfg.SMTPPassword,
			From:       cfg.EmailFrom,
			Recipients: cfg.EmailRecipients(),
		}),
	}

	telegram, err := notifier.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		logger.Warn("Telegram channel unavailable: %v", err)
	} else {
		notifiers = append(notifiers, telegram)
	}

	return notifiers
}

// Services holds the optional external services
type Services struct {
	Cache     cache.Service
	Publisher publisher.Publisher
}

// Cleanup closes whatever was opened
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// initializeServices wires up memcache and redis when they are configured.
// Both are optional: with no address the concern is simply off.
func initializeServices(ctx context.Context, cfg *config.Config) *Services {
	services := &Services{}

	if cfg.MemcacheAddr != "" {
		services.Cache = cache.NewMemcacheService(cfg.MemcacheAddr, "tracker")
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	}

	if cfg.RedisAddr != "" {
		services.Publisher = publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamMax,
		)
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	return services
}
