package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

// busChannels are the signal-bus channels the dispatcher listens on.
var busChannels = []string{
	domain.ChannelTrades,
	domain.ChannelExits,
	domain.ChannelReconcile,
}

// Dispatcher subscribes to the signal bus and forwards position lifecycle
// events to the notifier.
type Dispatcher struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_dispatcher")),
	}
}

// Run consumes bus events until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for _, channel := range busChannels {
		msgCh, err := d.bus.Subscribe(ctx, channel)
		if err != nil {
			return fmt.Errorf("notify: subscribe %s: %w", channel, err)
		}
		go d.consume(ctx, channel, msgCh)
	}

	<-ctx.Done()
	return ctx.Err()
}

func (d *Dispatcher) consume(ctx context.Context, channel string, msgCh <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				d.logger.Warn("subscription closed", slog.String("channel", channel))
				return
			}

			var event domain.Event
			if err := json.Unmarshal(data, &event); err != nil {
				d.logger.Warn("malformed bus event",
					slog.String("channel", channel),
					slog.String("error", err.Error()),
				)
				continue
			}

			title, message := formatEvent(event)
			if err := d.notifier.Notify(ctx, string(event.Type), title, message); err != nil {
				d.logger.WarnContext(ctx, "notification delivery failed",
					slog.String("event", string(event.Type)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// formatEvent renders a lifecycle event as a human-readable notification.
func formatEvent(e domain.Event) (title, message string) {
	var lines []string
	if e.Instrument != "" {
		lines = append(lines, fmt.Sprintf("Instrument: %s", e.Instrument))
	}
	if e.Direction != "" {
		lines = append(lines, fmt.Sprintf("Direction: %s", e.Direction))
	}
	if e.BrokerTradeID != "" {
		lines = append(lines, fmt.Sprintf("Trade: %s", e.BrokerTradeID))
	}
	if e.Price != 0 {
		lines = append(lines, fmt.Sprintf("Price: %.5f", e.Price))
	}

	switch e.Type {
	case domain.EventOrderFilled:
		title = "Order filled"
	case domain.EventPartialClose:
		title = "Take-profit 1 hit"
		lines = append(lines, fmt.Sprintf("Realized P/L: %.2f", e.RealizedPL))
	case domain.EventPositionClosed:
		title = "Position closed"
		lines = append(lines, fmt.Sprintf("Realized P/L: %.2f", e.RealizedPL))
		if e.Reason != "" {
			lines = append(lines, fmt.Sprintf("Reason: %s", e.Reason))
		}
	case domain.EventStopMoved:
		title = "Stop moved"
	case domain.EventReconciled:
		title = "Ledger reconciled"
		if e.Detail != "" {
			lines = append(lines, e.Detail)
		}
	default:
		title = string(e.Type)
	}

	return title, strings.Join(lines, "\n")
}
