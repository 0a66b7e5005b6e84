package domain

import "context"

// Broker is the margin broker the engine trades against.
type Broker interface {
	// Quote returns the current two-sided price for the instrument.
	// Returns ErrPriceUnavailable when the broker has no usable quote.
	Quote(ctx context.Context, instrument string) (Quote, error)

	// AccountSummary returns the account's current balance and the
	// unrealized P/L across its open trades.
	AccountSummary(ctx context.Context) (AccountSummary, error)

	// OpenTrades lists the account's open trades.
	OpenTrades(ctx context.Context) ([]BrokerTrade, error)

	// PlaceMarketOrder submits a fill-or-kill market order for the intent's
	// signed units. Rejections surface as the taxonomy errors; an order that
	// was created but did not fill surfaces as ErrOrderNotFilled.
	PlaceMarketOrder(ctx context.Context, intent TradeIntent) (OrderTicket, error)

	// CloseTrade closes units of an open trade (positive magnitude; 0
	// closes everything) and returns the realized profit or loss.
	CloseTrade(ctx context.Context, brokerTradeID string, units int64) (float64, error)

	// MoveStopLoss replaces the trade's stop-loss order with one at price.
	MoveStopLoss(ctx context.Context, brokerTradeID string, price float64) error
}
