package notifier

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexandroFSD/price-tracker/internal/domain"
)

var sampleAlerts = []domain.Alert{
	{
		ItemName:     "Widget",
		URL:          "https://shop.example.com/widget",
		CurrentPrice: 90.00,
		TargetPrice:  100.00,
	},
	{
		ItemName:     "Gadget",
		URL:          "https://shop.example.com/gadget",
		CurrentPrice: 45.50,
		TargetPrice:  50.00,
	},
}

func TestComposeBody(t *testing.T) {
	body := composeBody(sampleAlerts)

	assert.Contains(t, body, "Price drops detected (2 items)!")
	assert.Contains(t, body, "Product: Widget")
	assert.Contains(t, body, "Current price: 90.00")
	assert.Contains(t, body, "Target price: 100.00")
	assert.Contains(t, body, "Link: https://shop.example.com/widget")
	assert.Contains(t, body, "Product: Gadget")

	single := composeBody(sampleAlerts[:1])
	assert.Contains(t, single, "Price drop detected!")
	assert.NotContains(t, single, "Gadget")
}

func TestTruncateMessage(t *testing.T) {
	short := "line one\nline two"
	assert.Equal(t, short, truncateMessage(short, telegramMessageLimit))

	// Long text gets cut at the last line break before limit-50.
	var b strings.Builder
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&b, "alert line %03d padded with some detail text\n", i)
	}
	long := b.String()
	require.Greater(t, len(long), telegramMessageLimit)

	truncated := truncateMessage(long, telegramMessageLimit)
	assert.LessOrEqual(t, len(truncated), telegramMessageLimit)
	assert.True(t, strings.HasSuffix(truncated, "\n..."))

	// The cut lands on a line boundary: everything before the ellipsis is a
	// prefix of the original ending in a complete line.
	prefix := strings.TrimSuffix(truncated, "\n...")
	assert.True(t, strings.HasPrefix(long, prefix+"\n"))
}

func TestTruncateMessageWithoutLineBreaks(t *testing.T) {
	long := strings.Repeat("x", telegramMessageLimit+100)
	truncated := truncateMessage(long, telegramMessageLimit)
	assert.LessOrEqual(t, len(truncated), telegramMessageLimit)
	assert.True(t, strings.HasSuffix(truncated, "\n..."))
}

func TestEmailNotifierIsConfigured(t *testing.T) {
	complete := EmailSettings{
		Host:       "smtp.example.com",
		Port:       465,
		Username:   "tracker@example.com",
		Password:   "secret",
		From:       "tracker@example.com",
		Recipients: []string{"owner@example.com"},
	}
	assert.True(t, NewEmailNotifier(complete).IsConfigured())

	missingHost := complete
	missingHost.Host = ""
	assert.False(t, NewEmailNotifier(missingHost).IsConfigured())

	noRecipients := complete
	noRecipients.Recipients = nil
	assert.False(t, NewEmailNotifier(noRecipients).IsConfigured())
}

func TestEmailNotifierRejectsUnconfigured(t *testing.T) {
	n := NewEmailNotifier(EmailSettings{})
	err := n.Send(context.Background(), sampleAlerts)
	assert.Error(t, err)
}

func TestEmailNotifierRejectsPlaintextPort(t *testing.T) {
	n := NewEmailNotifier(EmailSettings{
		Host:       "smtp.example.com",
		Port:       25,
		Username:   "tracker@example.com",
		Password:   "secret",
		From:       "tracker@example.com",
		Recipients: []string{"owner@example.com"},
	})
	err := n.Send(context.Background(), sampleAlerts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported SMTP port")
}

func TestEmailNotifierSendsNothingForEmptyBatch(t *testing.T) {
	n := NewEmailNotifier(EmailSettings{})
	assert.NoError(t, n.Send(context.Background(), nil))
}

func TestComposeMessageHeaders(t *testing.T) {
	msg := string(composeMessage(
		"tracker@example.com",
		[]string{"a@example.com", "b@example.com"},
		"Price alert",
		"body text",
	))

	assert.Contains(t, msg, "From: tracker@example.com\r\n")
	assert.Contains(t, msg, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, msg, "Subject: Price alert\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\nbody text"))
}

func TestTelegramNotifierUnconfigured(t *testing.T) {
	n, err := NewTelegramNotifier("", 0)
	require.NoError(t, err)
	assert.False(t, n.IsConfigured())
	assert.Equal(t, "telegram", n.ChannelName())

	err = n.Send(context.Background(), sampleAlerts)
	assert.Error(t, err)

	assert.NoError(t, n.Send(context.Background(), nil))
}
