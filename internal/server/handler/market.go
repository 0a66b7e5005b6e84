package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/fxbot/internal/domain"
	"github.com/alanyoungcy/fxbot/internal/market"
)

// QuoteService defines what the market handler needs for pricing.
type QuoteService interface {
	Get(ctx context.Context, instrument string) (domain.Quote, error)
}

// AccountService exposes the broker account summary.
type AccountService interface {
	Account(ctx context.Context) (domain.AccountSummary, error)
}

// MarketHandler serves session-calendar, pricing, and account endpoints.
type MarketHandler struct {
	quotes  QuoteService
	account AccountService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(quotes QuoteService, account AccountService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		quotes:  quotes,
		account: account,
		logger:  logger,
	}
}

type marketStatusResponse struct {
	IsOpen       bool   `json:"isOpen"`
	ReasonClosed string `json:"reasonClosed,omitempty"`
	ReopensAt    string `json:"reopensAt,omitempty"`
}

// Status reports whether the trading session is open right now.
// GET /api/market-status
func (h *MarketHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := market.Status(time.Now())

	resp := marketStatusResponse{IsOpen: status.IsOpen}
	if !status.IsOpen {
		resp.ReasonClosed = string(status.ReasonClosed)
		if status.ReopensAt != nil {
			resp.ReopensAt = status.ReopensAt.Format(time.RFC3339)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type priceResponse struct {
	Instrument string    `json:"instrument"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	Time       time.Time `json:"time"`
}

// Price returns the current quote for an instrument.
// GET /api/price/{instrument}
func (h *MarketHandler) Price(w http.ResponseWriter, r *http.Request) {
	instrument := r.PathValue("instrument")
	if instrument == "" {
		writeError(w, http.StatusBadRequest, domain.CodeUnknown, "instrument required")
		return
	}

	q, err := h.quotes.Get(r.Context(), instrument)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: price lookup failed",
			slog.String("instrument", instrument),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, priceResponse{
		Instrument: q.Instrument,
		Bid:        q.Bid,
		Ask:        q.Ask,
		Time:       q.Time,
	})
}

type accountResponse struct {
	Balance      float64 `json:"balance"`
	UnrealizedPL float64 `json:"unrealizedPL"`
}

// Account returns the broker account balance and unrealized P/L.
// GET /api/account
func (h *MarketHandler) Account(w http.ResponseWriter, r *http.Request) {
	summary, err := h.account.Account(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: account summary failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{
		Balance:      summary.Balance,
		UnrealizedPL: summary.UnrealizedPL,
	})
}
