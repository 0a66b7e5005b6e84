package domain

import "time"

// Bus channels for lifecycle events.
const (
	ChannelTrades    = "events.trades"
	ChannelExits     = "events.exits"
	ChannelReconcile = "events.reconcile"
)

// EventType identifies what happened to a position.
type EventType string

const (
	EventOrderFilled    EventType = "order_filled"
	EventPartialClose   EventType = "partial_close"
	EventPositionClosed EventType = "position_closed"
	EventStopMoved      EventType = "stop_moved"
	EventReconciled     EventType = "reconciled"
)

// Event is the envelope published on the signal bus and fanned out to
// websocket clients and notifiers.
type Event struct {
	Type          EventType `json:"type"`
	BrokerTradeID string    `json:"brokerTradeId,omitempty"`
	Instrument    string    `json:"instrument,omitempty"`
	Direction     Direction `json:"direction,omitempty"`
	Price         float64   `json:"price,omitempty"`
	RealizedPL    float64   `json:"realizedPl,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	At            time.Time `json:"at"`
}
