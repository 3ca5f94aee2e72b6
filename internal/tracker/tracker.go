package tracker

import (
	"context"
	"time"

	"github.com/AlexandroFSD/price-tracker/internal/domain"
	"github.com/AlexandroFSD/price-tracker/logger"
	trkerr "github.com/AlexandroFSD/price-tracker/pkg/errors"
	"github.com/AlexandroFSD/price-tracker/services/notifier"
	"github.com/AlexandroFSD/price-tracker/services/publisher"
	"github.com/AlexandroFSD/price-tracker/services/storage"
)

// Checker runs one fetch pass over a set of items.
type Checker interface {
	CheckAll(ctx context.Context, items []domain.ItemSpec) []domain.FetchOutcome
}

// Tracker coordinates one tracking pass: fetch every item, persist the
// readings, and alert on items at or below their target price.
type Tracker struct {
	checker   Checker
	store     storage.Store
	publisher publisher.Publisher
	notifiers []notifier.Notifier
	channels  []string
	log       *logger.Logger
}

// New creates a tracker and initializes the store. A store that cannot be
// initialized is fatal: without it every pass would lose its readings.
// publisher may be nil to disable streaming.
func New(checker Checker, store storage.Store, pub publisher.Publisher, notifiers []notifier.Notifier, channels []string) (*Tracker, error) {
	if err := store.Init(); err != nil {
		return nil, err
	}

	return &Tracker{
		checker:   checker,
		store:     store,
		publisher: pub,
		notifiers: notifiers,
		channels:  channels,
		log:       logger.ForComponent("tracker"),
	}, nil
}

// RunCheck performs one complete tracking pass.
func (t *Tracker) RunCheck(ctx context.Context, items []domain.ItemSpec) {
	if len(items) == 0 {
		t.log.Warn().Msg("No items to check")
		return
	}

	t.log.Info().Int("items", len(items)).Msg("Starting tracking pass")
	outcomes := t.checker.CheckAll(ctx, items)

	alerts := t.processOutcomes(outcomes)
	if len(alerts) == 0 {
		t.log.Info().Msg("Tracking pass complete, no alerts")
		return
	}

	t.dispatch(ctx, alerts)
}

// processOutcomes persists readings and collects the alerts. Persistence
// failures are logged and swallowed: one broken write must not stop the rest
// of the pass or the alerting.
func (t *Tracker) processOutcomes(outcomes []domain.FetchOutcome) []domain.Alert {
	var alerts []domain.Alert

	for _, outcome := range outcomes {
		item := outcome.Item
		switch outcome.Status {
		case domain.StatusSkipped:
			t.log.Debug().Str("item", item.Name).Str("reason", outcome.ErrorDetail).Msg("Item skipped")
			continue
		case domain.StatusFetchFailed:
			t.log.Warn().Str("item", item.Name).Str("error", outcome.ErrorDetail).Msg("Item check failed")
			continue
		}

		if outcome.Price == nil {
			err := trkerr.NewExtraction(item.Name, "no selector produced a parsable price", nil)
			t.log.Warn().Err(err).Msg("No price found on page")
			continue
		}
		current := *outcome.Price

		reading := domain.PriceReading{
			Timestamp: time.Now(),
			ItemName:  item.Name,
			URL:       item.URL,
			Price:     current,
		}
		if err := t.store.Save(reading); err != nil {
			t.log.Error().Str("item", item.Name).Err(err).Msg("Failed to persist price reading")
		} else if t.publisher != nil {
			if err := t.publisher.PublishReading(reading); err != nil {
				t.log.Warn().Str("item", item.Name).Err(err).Msg("Failed to publish price reading")
			}
		}

		t.log.Info().
			Str("item", item.Name).
			Float64("price", current).
			Float64("target", item.TargetPrice).
			Msg("Price checked")

		// Equality counts as reaching the target.
		if current <= item.TargetPrice {
			alerts = append(alerts, domain.Alert{
				ItemName:     item.Name,
				URL:          item.URL,
				CurrentPrice: current,
				TargetPrice:  item.TargetPrice,
			})
		}
	}

	return alerts
}

// dispatch sends the full alert list to every enabled channel, one channel
// at a time. A channel that is enabled but not configured is skipped with a
// warning.
func (t *Tracker) dispatch(ctx context.Context, alerts []domain.Alert) {
	sent := false

	for _, channel := range t.channels {
		n := t.notifierFor(channel)
		if n == nil {
			t.log.Warn().Str("channel", channel).Msg("Enabled channel has no notifier, skipping")
			continue
		}
		if !n.IsConfigured() {
			t.log.Warn().Str("channel", channel).Msg("Enabled channel is not configured, skipping")
			continue
		}

		if err := n.Send(ctx, alerts); err != nil {
			t.log.Error().Str("channel", channel).Err(err).Msg("Failed to send alerts")
			continue
		}
		sent = true
		t.log.Info().Str("channel", channel).Int("alerts", len(alerts)).Msg("Alerts sent")
	}

	if !sent {
		t.log.Warn().Int("alerts", len(alerts)).Msg("Alerts raised but no channel could deliver them")
	}
}

func (t *Tracker) notifierFor(channel string) notifier.Notifier {
	for _, n := range t.notifiers {
		if n.ChannelName() == channel {
			return n
		}
	}
	return nil
}
