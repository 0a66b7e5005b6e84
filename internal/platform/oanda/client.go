// Package oanda implements the broker gateway against the OANDA v3 REST
// API. All broker failure modes are normalized into the domain error
// taxonomy at this boundary.
package oanda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

// Compile-time interface check.
var _ domain.Broker = (*Client)(nil)

// Client is the REST client for the OANDA v3 API.
type Client struct {
	baseURL    string
	apiKey     string
	accountID  string
	httpClient *http.Client
}

// NewClient creates a new OANDA REST client.
//
// baseURL is the API root, e.g. "https://api-fxpractice.oanda.com/v3".
func NewClient(baseURL, apiKey, accountID string) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    apiKey,
		accountID: accountID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Quote returns the current two-sided price for the instrument.
func (c *Client) Quote(ctx context.Context, instrument string) (domain.Quote, error) {
	formatted := domain.NormalizeInstrument(instrument)
	path := fmt.Sprintf("/accounts/%s/pricing?instruments=%s", c.accountID, url.QueryEscape(formatted))

	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("oanda: get pricing %s: %w: %w", formatted, domain.ErrPriceUnavailable, err)
	}

	var resp pricingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("oanda: decode pricing: %w: %w", domain.ErrPriceUnavailable, err)
	}
	if len(resp.Prices) == 0 || len(resp.Prices[0].Bids) == 0 || len(resp.Prices[0].Asks) == 0 {
		return domain.Quote{}, fmt.Errorf("oanda: no quote for %s: %w", formatted, domain.ErrPriceUnavailable)
	}

	p := resp.Prices[0]
	bid, err1 := strconv.ParseFloat(p.Bids[0].Price, 64)
	ask, err2 := strconv.ParseFloat(p.Asks[0].Price, 64)
	if err1 != nil || err2 != nil {
		return domain.Quote{}, fmt.Errorf("oanda: malformed quote for %s: %w", formatted, domain.ErrPriceUnavailable)
	}

	ts := p.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return domain.Quote{
		Instrument: formatted,
		Bid:        bid,
		Ask:        ask,
		Time:       ts,
	}, nil
}

// AccountSummary returns the account's current balance and the unrealized
// P/L across its open trades.
func (c *Client) AccountSummary(ctx context.Context) (domain.AccountSummary, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/accounts/"+c.accountID, nil)
	if err != nil {
		return domain.AccountSummary{}, fmt.Errorf("oanda: get account: %w", err)
	}

	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.AccountSummary{}, fmt.Errorf("oanda: decode account: %w", err)
	}

	balance, err := strconv.ParseFloat(resp.Account.Balance, 64)
	if err != nil {
		return domain.AccountSummary{}, fmt.Errorf("oanda: malformed balance %q: %w", resp.Account.Balance, err)
	}
	unrealized, err := strconv.ParseFloat(resp.Account.UnrealizedPL, 64)
	if err != nil {
		return domain.AccountSummary{}, fmt.Errorf("oanda: malformed unrealizedPL %q: %w", resp.Account.UnrealizedPL, err)
	}
	return domain.AccountSummary{Balance: balance, UnrealizedPL: unrealized}, nil
}

// OpenTrades lists the account's open trades.
func (c *Client) OpenTrades(ctx context.Context) ([]domain.BrokerTrade, error) {
	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/accounts/%s/openTrades", c.accountID), nil)
	if err != nil {
		return nil, fmt.Errorf("oanda: get open trades: %w", err)
	}

	var resp openTradesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("oanda: decode open trades: %w", err)
	}

	trades := make([]domain.BrokerTrade, 0, len(resp.Trades))
	for _, t := range resp.Trades {
		units, err := strconv.ParseFloat(t.CurrentUnits, 64)
		if err != nil {
			return nil, fmt.Errorf("oanda: malformed units %q on trade %s: %w", t.CurrentUnits, t.ID, err)
		}
		price, err := strconv.ParseFloat(t.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("oanda: malformed price %q on trade %s: %w", t.Price, t.ID, err)
		}
		upl, _ := strconv.ParseFloat(t.UnrealizedPL, 64)

		trades = append(trades, domain.BrokerTrade{
			ID:           t.ID,
			Instrument:   t.Instrument,
			Units:        units,
			Price:        price,
			UnrealizedPL: upl,
			OpenTime:     t.OpenTime,
		})
	}
	return trades, nil
}

// PlaceMarketOrder submits a fill-or-kill market order for the intent's
// signed units. Rejections are mapped onto the domain taxonomy; an order
// that was created but not filled surfaces as ErrOrderNotFilled.
func (c *Client) PlaceMarketOrder(ctx context.Context, intent domain.TradeIntent) (domain.OrderTicket, error) {
	units := intent.Units()
	req := marketOrderRequest{
		Order: marketOrder{
			Type:         "MARKET",
			Instrument:   domain.NormalizeInstrument(intent.Instrument),
			Units:        strconv.FormatInt(units, 10),
			TimeInForce:  "FOK",
			PositionFill: "DEFAULT",
		},
	}

	body, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/accounts/%s/orders", c.accountID), req)
	if err != nil {
		return domain.OrderTicket{}, fmt.Errorf("oanda: place order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.OrderTicket{}, fmt.Errorf("oanda: decode order response: %w", err)
	}

	if fill := resp.OrderFillTransaction; fill != nil {
		tradeID := fill.ID
		if fill.TradeOpened != nil && fill.TradeOpened.TradeID != "" {
			tradeID = fill.TradeOpened.TradeID
		}
		price, err := strconv.ParseFloat(fill.Price, 64)
		if err != nil {
			return domain.OrderTicket{}, fmt.Errorf("oanda: malformed fill price %q: %w", fill.Price, err)
		}
		ts := fill.Time
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		return domain.OrderTicket{
			BrokerTradeID: tradeID,
			FillPrice:     price,
			Units:         units,
			Time:          ts,
		}, nil
	}

	if reject := resp.OrderRejectTransaction; reject != nil {
		return domain.OrderTicket{}, rejectError(reject.RejectReason)
	}

	if resp.OrderCreateTransaction != nil {
		return domain.OrderTicket{}, fmt.Errorf("oanda: order created but not filled: %w", domain.ErrOrderNotFilled)
	}

	return domain.OrderTicket{}, fmt.Errorf("oanda: no fill transaction in order response: %w", domain.ErrOrderRejected)
}

// CloseTrade closes units of an open trade (positive magnitude; 0 closes
// everything) and returns the realized profit or loss.
func (c *Client) CloseTrade(ctx context.Context, brokerTradeID string, units int64) (float64, error) {
	var req any
	if units > 0 {
		req = closeTradeRequest{Units: strconv.FormatInt(units, 10)}
	} else {
		req = closeTradeRequest{}
	}

	path := fmt.Sprintf("/accounts/%s/trades/%s/close", c.accountID, url.PathEscape(brokerTradeID))
	body, err := c.doRequest(ctx, http.MethodPut, path, req)
	if err != nil {
		return 0, fmt.Errorf("oanda: close trade %s: %w: %w", brokerTradeID, domain.ErrCloseFailed, err)
	}

	var resp closeTradeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("oanda: decode close response: %w: %w", domain.ErrCloseFailed, err)
	}

	if resp.OrderFillTransaction == nil {
		return 0, nil
	}
	pl, err := strconv.ParseFloat(resp.OrderFillTransaction.PL, 64)
	if err != nil {
		return 0, nil
	}
	return pl, nil
}

// MoveStopLoss replaces the trade's stop-loss order with a GTC stop at the
// given price.
func (c *Client) MoveStopLoss(ctx context.Context, brokerTradeID string, price float64) error {
	req := stopLossOrderRequest{
		Order: stopLossOrder{
			Type:        "STOP_LOSS",
			Price:       strconv.FormatFloat(price, 'f', -1, 64),
			TimeInForce: "GTC",
			TradeID:     brokerTradeID,
		},
	}

	path := fmt.Sprintf("/accounts/%s/trades/%s/orders", c.accountID, url.PathEscape(brokerTradeID))
	if _, err := c.doRequest(ctx, http.MethodPut, path, req); err != nil {
		return fmt.Errorf("oanda: move stop loss on trade %s: %w", brokerTradeID, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest builds, sends, and reads an HTTP request against the OANDA API.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.Unmarshal(respBody, &apiErr)
		if apiErr.ErrorMessage != "" {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiErr.ErrorMessage)
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return respBody, nil
}

// rejectError maps a broker rejection reason onto the domain taxonomy.
func rejectError(reason string) error {
	switch {
	case reason == "INSUFFICIENT_MARGIN":
		return fmt.Errorf("oanda: %s: %w", reason, domain.ErrInsufficientMargin)
	case strings.Contains(reason, "POSITION_LIMIT"):
		return fmt.Errorf("oanda: %s: %w", reason, domain.ErrPositionLimitExceeded)
	case strings.Contains(reason, "HALTED"):
		return fmt.Errorf("oanda: %s: %w", reason, domain.ErrMarketHalted)
	default:
		return fmt.Errorf("oanda: rejected with %s: %w", reason, domain.ErrOrderRejected)
	}
}
