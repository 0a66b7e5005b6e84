package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

// Default exit levels synthesized for positions opened outside this
// system's own flow, relative to the live price. For shorts the take-profit
// offsets point down and the stop points up.
const (
	defaultTP1Pct = 0.01
	defaultTP2Pct = 0.02
	defaultSLPct  = 0.01
)

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	OrphansDeleted int64    `json:"orphansDeleted"`
	Backfilled     int      `json:"backfilled"`
	DeletedIDs     []string `json:"deletedIds,omitempty"`
	BackfilledIDs  []string `json:"backfilledIds,omitempty"`
}

// Reconciler heals set divergence between the ledger and the broker:
// ledger positions the broker no longer holds are deleted, and broker
// trades the ledger never saw are backfilled with synthesized exit levels.
// Concurrent requests collapse into a single pass via singleflight.
type Reconciler struct {
	broker domain.Broker
	ledger domain.PositionStore
	audit  domain.AuditStore
	bus    domain.SignalBus
	logger *slog.Logger
	group  singleflight.Group
}

// NewReconciler creates a Reconciler.
func NewReconciler(
	broker domain.Broker,
	ledger domain.PositionStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		broker: broker,
		ledger: ledger,
		audit:  audit,
		bus:    bus,
		logger: logger.With(slog.String("component", "reconciler")),
	}
}

// Reconcile runs one pass. Calls that arrive while a pass is already in
// flight share its result instead of starting another.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	v, err, _ := r.group.Do("reconcile", func() (any, error) {
		return r.reconcileOnce(ctx)
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	return v.(ReconcileResult), nil
}

// RunLoop runs Reconcile on a fixed cadence until the context is cancelled.
func (r *Reconciler) RunLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	r.logger.Info("reconciler starting", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Reconcile(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("reconcile pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (r *Reconciler) reconcileOnce(ctx context.Context) (ReconcileResult, error) {
	brokerTrades, err := r.broker.OpenTrades(ctx)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("engine: reconcile broker snapshot: %w", err)
	}

	active, err := r.ledger.ListByStatus(ctx, domain.PositionStatusOpen, domain.PositionStatusPartial)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("engine: reconcile ledger snapshot: %w", err)
	}

	brokerIDs := make(map[string]domain.BrokerTrade, len(brokerTrades))
	for _, t := range brokerTrades {
		brokerIDs[t.ID] = t
	}
	ledgerIDs := make(map[string]struct{}, len(active))
	for _, p := range active {
		ledgerIDs[p.BrokerTradeID] = struct{}{}
	}

	var result ReconcileResult

	// Orphans: tracked locally, gone at the broker.
	var orphans []string
	for _, p := range active {
		if _, ok := brokerIDs[p.BrokerTradeID]; !ok {
			orphans = append(orphans, p.BrokerTradeID)
		}
	}
	if len(orphans) > 0 {
		deleted, err := r.ledger.DeleteByBrokerTradeIDs(ctx, orphans)
		if err != nil {
			return ReconcileResult{}, fmt.Errorf("engine: delete orphans: %w", err)
		}
		result.OrphansDeleted = deleted
		result.DeletedIDs = orphans
		r.logger.Info("deleted orphaned positions", slog.Int64("count", deleted))
	}

	// Missing-sync: open at the broker, unknown to the ledger. Backfilled
	// with stopgap default levels so the exit loop can manage them.
	for _, t := range brokerTrades {
		if _, ok := ledgerIDs[t.ID]; ok {
			continue
		}
		pos := backfillPosition(t)
		if _, err := r.ledger.Upsert(ctx, pos); err != nil {
			r.logger.Error("backfill failed",
				slog.String("broker_trade_id", t.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.Backfilled++
		result.BackfilledIDs = append(result.BackfilledIDs, t.ID)
		r.logger.Info("backfilled broker position",
			slog.String("broker_trade_id", t.ID),
			slog.String("instrument", t.Instrument),
		)
	}

	if result.OrphansDeleted > 0 || result.Backfilled > 0 {
		r.record(ctx, result)
	}
	return result, nil
}

// backfillPosition synthesizes a ledger row for a broker trade opened
// outside this system. Levels default around the live price in the
// direction of the trade; this is a stopgap, not a trading decision.
func backfillPosition(t domain.BrokerTrade) domain.Position {
	price := t.Price
	var tp1, tp2, sl float64
	if t.Direction() == domain.DirectionShort {
		tp1 = price * (1 - defaultTP1Pct)
		tp2 = price * (1 - defaultTP2Pct)
		sl = price * (1 + defaultSLPct)
	} else {
		tp1 = price * (1 + defaultTP1Pct)
		tp2 = price * (1 + defaultTP2Pct)
		sl = price * (1 - defaultSLPct)
	}

	return domain.Position{
		BrokerTradeID: t.ID,
		Instrument:    t.Instrument,
		Direction:     t.Direction(),
		EntryPrice:    price,
		LotSize:       t.Lots(),
		TP1:           tp1,
		TP2:           tp2,
		SL:            sl,
		Status:        domain.PositionStatusOpen,
		DateOpened:    t.OpenTime,
	}
}

func (r *Reconciler) record(ctx context.Context, result ReconcileResult) {
	if err := r.audit.Log(ctx, "reconcile", map[string]any{
		"orphans_deleted": result.OrphansDeleted,
		"backfilled":      result.Backfilled,
	}); err != nil {
		r.logger.Warn("audit log failed", slog.String("error", err.Error()))
	}

	payload, err := json.Marshal(domain.Event{
		Type:   domain.EventReconciled,
		Detail: fmt.Sprintf("orphans=%d backfilled=%d", result.OrphansDeleted, result.Backfilled),
		At:     time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := r.bus.Publish(ctx, domain.ChannelReconcile, payload); err != nil {
		r.logger.Warn("event publish failed", slog.String("error", err.Error()))
	}
}
