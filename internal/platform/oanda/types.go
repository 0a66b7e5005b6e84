package oanda

import "time"

// Wire types for the OANDA v3 REST API. All numeric fields arrive as
// strings and are parsed at the boundary.

type pricingResponse struct {
	Prices []clientPrice `json:"prices"`
}

type clientPrice struct {
	Instrument string        `json:"instrument"`
	Time       time.Time     `json:"time"`
	Bids       []priceBucket `json:"bids"`
	Asks       []priceBucket `json:"asks"`
}

type priceBucket struct {
	Price string `json:"price"`
}

type accountResponse struct {
	Account accountSummary `json:"account"`
}

type accountSummary struct {
	Balance      string `json:"balance"`
	UnrealizedPL string `json:"unrealizedPL"`
}

type openTradesResponse struct {
	Trades []openTrade `json:"trades"`
}

type openTrade struct {
	ID           string    `json:"id"`
	Instrument   string    `json:"instrument"`
	CurrentUnits string    `json:"currentUnits"`
	Price        string    `json:"price"`
	UnrealizedPL string    `json:"unrealizedPL"`
	OpenTime     time.Time `json:"openTime"`
}

type marketOrderRequest struct {
	Order marketOrder `json:"order"`
}

type marketOrder struct {
	Type         string `json:"type"`
	Instrument   string `json:"instrument"`
	Units        string `json:"units"`
	TimeInForce  string `json:"timeInForce"`
	PositionFill string `json:"positionFill"`
}

type orderResponse struct {
	OrderFillTransaction   *fillTransaction   `json:"orderFillTransaction"`
	OrderCreateTransaction *createTransaction `json:"orderCreateTransaction"`
	OrderRejectTransaction *rejectTransaction `json:"orderRejectTransaction"`
}

type fillTransaction struct {
	ID          string       `json:"id"`
	Price       string       `json:"price"`
	PL          string       `json:"pl"`
	Time        time.Time    `json:"time"`
	TradeOpened *tradeOpened `json:"tradeOpened"`
}

type tradeOpened struct {
	TradeID string `json:"tradeID"`
	Units   string `json:"units"`
}

type createTransaction struct {
	ID string `json:"id"`
}

type rejectTransaction struct {
	RejectReason string `json:"rejectReason"`
}

type closeTradeRequest struct {
	Units string `json:"units,omitempty"`
}

type closeTradeResponse struct {
	OrderFillTransaction *fillTransaction `json:"orderFillTransaction"`
}

type stopLossOrderRequest struct {
	Order stopLossOrder `json:"order"`
}

type stopLossOrder struct {
	Type        string `json:"type"`
	Price       string `json:"price"`
	TimeInForce string `json:"timeInForce"`
	TradeID     string `json:"tradeID"`
}

type apiError struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorCode    string `json:"errorCode"`
}
