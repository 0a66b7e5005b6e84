package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/fxbot/internal/domain"
	"github.com/alanyoungcy/fxbot/internal/service"
)

// PositionService defines the read paths the position handler requires.
type PositionService interface {
	Open(ctx context.Context) ([]service.OpenPositionView, error)
	RecentClosed(ctx context.Context, limit int) ([]domain.Position, error)
}

// PositionHandler serves position listing endpoints.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger,
	}
}

type listPositionsResponse struct {
	Positions []service.OpenPositionView `json:"positions"`
}

// ListOpen returns active positions with the broker's live view attached.
// GET /api/positions
func (h *PositionHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.Open(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	if positions == nil {
		positions = []service.OpenPositionView{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

type recentClosedResponse struct {
	Positions []domain.Position `json:"positions"`
}

// RecentClosed returns recently closed positions, newest first.
// GET /api/positions/recent?limit=
func (h *PositionHandler) RecentClosed(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)

	positions, err := h.positions.RecentClosed(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: recent closed failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, recentClosedResponse{Positions: positions})
}
