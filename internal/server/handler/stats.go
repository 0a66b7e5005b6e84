package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

// StatsService defines the aggregate queries the stats handler requires.
type StatsService interface {
	Statistics(ctx context.Context, days int) (domain.Statistics, error)
	ProfitLossTotals(ctx context.Context) (domain.PLTotals, error)
}

// StatsHandler serves trading statistics endpoints.
type StatsHandler struct {
	stats  StatsService
	logger *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(stats StatsService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

type statsResponse struct {
	Wins        int64 `json:"wins"`
	Losses      int64 `json:"losses"`
	TotalTrades int64 `json:"totalTrades"`
}

// Statistics returns win/loss counts for the trailing window.
// GET /api/stats?days=
func (h *StatsHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)

	stats, err := h.stats.Statistics(r.Context(), days)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: statistics failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Wins:        stats.Wins,
		Losses:      stats.Losses,
		TotalTrades: stats.TotalTrades,
	})
}

type plResponse struct {
	TotalProfit float64 `json:"totalProfit"`
	TotalLoss   float64 `json:"totalLoss"`
}

// ProfitLoss returns lifetime realized profit and loss magnitudes.
// GET /api/stats/pl
func (h *StatsHandler) ProfitLoss(w http.ResponseWriter, r *http.Request) {
	totals, err := h.stats.ProfitLossTotals(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: pl totals failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, plResponse{
		TotalProfit: totals.TotalProfit,
		TotalLoss:   totals.TotalLoss,
	})
}
