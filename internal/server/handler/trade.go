package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

// TradeService defines the order flows the trade handler depends on.
type TradeService interface {
	Place(ctx context.Context, intent domain.TradeIntent) (domain.Position, error)
	Close(ctx context.Context, brokerTradeID string, units int64) (domain.Position, error)
}

// TradeHandler serves order placement and manual close endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

type placeTradeRequest struct {
	Instrument string  `json:"instrument"`
	Direction  string  `json:"direction"`
	Lots       float64 `json:"lots"`
	TP1        float64 `json:"tp1"`
	TP2        float64 `json:"tp2"`
	SL         float64 `json:"sl"`
}

// Place submits a market order and records the resulting position.
// POST /api/trades
func (h *TradeHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req placeTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.CodeUnknown, "invalid request body")
		return
	}

	direction := domain.Direction(req.Direction)
	if direction != domain.DirectionLong && direction != domain.DirectionShort {
		writeError(w, http.StatusBadRequest, domain.CodeUnknown, "direction must be long or short")
		return
	}
	if req.Instrument == "" || req.Lots <= 0 {
		writeError(w, http.StatusBadRequest, domain.CodeUnknown, "instrument and positive lots required")
		return
	}

	pos, err := h.trades.Place(r.Context(), domain.TradeIntent{
		Instrument: req.Instrument,
		Direction:  direction,
		Lots:       req.Lots,
		TP1:        req.TP1,
		TP2:        req.TP2,
		SL:         req.SL,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: place trade failed",
			slog.String("instrument", req.Instrument),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, pos)
}

type closeTradeRequest struct {
	// Units closes part of the position when positive; zero or absent
	// closes all of it.
	Units int64 `json:"units"`
}

// Close closes an open position, fully or partially.
// POST /api/trades/{id}/close
func (h *TradeHandler) Close(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, domain.CodeUnknown, "trade id required")
		return
	}

	var req closeTradeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, domain.CodeUnknown, "invalid request body")
			return
		}
	}
	if req.Units < 0 {
		writeError(w, http.StatusBadRequest, domain.CodeUnknown, "units must not be negative")
		return
	}

	pos, err := h.trades.Close(r.Context(), id, req.Units)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: close trade failed",
			slog.String("broker_trade_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pos)
}
