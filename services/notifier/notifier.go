package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/AlexandroFSD/price-tracker/internal/domain"
)

// Notifier delivers price alerts over one channel. Implementations report
// whether their settings are complete; unconfigured channels are skipped by
// the tracker rather than erroring.
type Notifier interface {
	// ChannelName identifies the channel in config and logs
	ChannelName() string

	// IsConfigured reports whether the channel has everything it needs to send
	IsConfigured() bool

	// Send delivers one batch of alerts
	Send(ctx context.Context, alerts []domain.Alert) error
}

// composeBody renders the shared plain-text alert message used by every
// channel.
func composeBody(alerts []domain.Alert) string {
	var b strings.Builder
	if len(alerts) == 1 {
		b.WriteString("Price drop detected!\n\n")
	} else {
		fmt.Fprintf(&b, "Price drops detected (%d items)!\n\n", len(alerts))
	}

	for i, alert := range alerts {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Product: %s\n", alert.ItemName)
		fmt.Fprintf(&b, "Current price: %.2f\n", alert.CurrentPrice)
		fmt.Fprintf(&b, "Target price: %.2f\n", alert.TargetPrice)
		fmt.Fprintf(&b, "Link: %s\n", alert.URL)
	}

	return b.String()
}
