package publisher

import (
	"github.com/AlexandroFSD/price-tracker/internal/domain"
)

// Publisher streams persisted price readings to downstream consumers
// (dashboards, alert aggregators). Publishing is best-effort: the tracking
// pass never fails because a consumer is down.
type Publisher interface {
	// PublishReading appends one reading to the stream
	PublishReading(reading domain.PriceReading) error

	// TrimStream caps the stream at the configured maximum length
	TrimStream() error

	// Close closes the publisher connection
	Close() error
}
