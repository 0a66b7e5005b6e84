package notify

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestFormatEvent(t *testing.T) {
	closed := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	title, message := formatEvent(domain.Event{
		Type:          domain.EventPositionClosed,
		BrokerTradeID: "42",
		Instrument:    "EUR_USD",
		Direction:     domain.DirectionLong,
		RealizedPL:    87.5,
		Reason:        "tp2",
		At:            closed,
	})
	assert.Equal(t, "Position closed", title)
	assert.Contains(t, message, "EUR_USD")
	assert.Contains(t, message, "87.50")
	assert.Contains(t, message, "tp2")

	title, message = formatEvent(domain.Event{
		Type:       domain.EventPartialClose,
		Instrument: "XAU_USD",
		RealizedPL: 12.5,
	})
	assert.Equal(t, "Take-profit 1 hit", title)
	assert.Contains(t, message, "12.50")
}

type recordingSender struct {
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func TestNotifierFiltersEvents(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier([]Sender{sender}, []string{string(domain.EventPositionClosed)}, testLogger())

	ctx := context.Background()
	assert.NoError(t, n.Notify(ctx, string(domain.EventOrderFilled), "Order filled", ""))
	assert.NoError(t, n.Notify(ctx, string(domain.EventPositionClosed), "Position closed", ""))

	assert.Equal(t, []string{"Position closed"}, sender.titles)
}
