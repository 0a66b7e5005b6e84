package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/fxbot/internal/engine"
)

// ReconcileService triggers a broker/ledger reconciliation pass.
type ReconcileService interface {
	Reconcile(ctx context.Context) (engine.ReconcileResult, error)
}

// ReconcileHandler serves the on-demand reconcile endpoint.
type ReconcileHandler struct {
	reconciler ReconcileService
	logger     *slog.Logger
}

// NewReconcileHandler creates a ReconcileHandler.
func NewReconcileHandler(reconciler ReconcileService, logger *slog.Logger) *ReconcileHandler {
	return &ReconcileHandler{reconciler: reconciler, logger: logger}
}

type reconcileResponse struct {
	OrphansDeleted int64    `json:"orphansDeleted"`
	Backfilled     int      `json:"backfilled"`
	DeletedIDs     []string `json:"deletedIds,omitempty"`
	BackfilledIDs  []string `json:"backfilledIds,omitempty"`
}

// Trigger runs a reconciliation pass. Concurrent triggers share one run.
// POST /api/reconcile
func (h *ReconcileHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.Reconcile(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: reconcile failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reconcileResponse{
		OrphansDeleted: result.OrphansDeleted,
		Backfilled:     result.Backfilled,
		DeletedIDs:     result.DeletedIDs,
		BackfilledIDs:  result.BackfilledIDs,
	})
}
