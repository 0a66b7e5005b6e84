// Package engine contains the exit-management loop and the broker/ledger
// reconciler. The loop watches active positions for TP1/TP2/SL crossings
// and executes partial and terminal closes; the reconciler heals set
// divergence between the ledger and the broker.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

// positionLockTTL bounds how long a position's advisory lock can be held
// before it expires on its own. Ticks and request-path closes share these
// locks, keyed by broker trade ID.
const positionLockTTL = 30 * time.Second

// MonitorConfig tunes the exit-management loop.
type MonitorConfig struct {
	Interval time.Duration // tick interval, default 5s
	Workers  int           // max concurrent position evaluations, default 4
}

// QuoteSource supplies the live quote that exit decisions are made
// against. The broker trade snapshot only carries the fill price, which
// never moves after execution.
type QuoteSource interface {
	Get(ctx context.Context, instrument string) (domain.Quote, error)
}

// Monitor drives the periodic exit evaluation of active positions. Ticks
// never overlap: if a tick is still in flight when the next one is due, the
// new tick is skipped rather than queued.
type Monitor struct {
	broker domain.Broker
	ledger domain.PositionStore
	quotes QuoteSource
	locks  domain.LockManager
	bus    domain.SignalBus
	audit  domain.AuditStore
	logger *slog.Logger

	interval time.Duration
	workers  int
	busy     atomic.Bool
}

// NewMonitor creates the exit-management loop.
func NewMonitor(
	broker domain.Broker,
	ledger domain.PositionStore,
	quotes QuoteSource,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	cfg MonitorConfig,
	logger *slog.Logger,
) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Monitor{
		broker:   broker,
		ledger:   ledger,
		quotes:   quotes,
		locks:    locks,
		bus:      bus,
		audit:    audit,
		logger:   logger.With(slog.String("component", "monitor")),
		interval: interval,
		workers:  workers,
	}
}

// Run drives ticks until the context is cancelled. A tick that is still
// running when the ticker fires again causes the new tick to be skipped.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("exit monitor starting", slog.Duration("interval", m.interval), slog.Int("workers", m.workers))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("exit monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			if !m.busy.CompareAndSwap(false, true) {
				m.logger.Debug("previous tick still running, skipping")
				continue
			}
			if err := m.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error("tick failed", slog.String("error", err.Error()))
			}
			m.busy.Store(false)
		}
	}
}

// Tick performs one evaluation pass: snapshot broker and ledger state, then
// evaluate every active position present in both against its exit levels.
// Per-position failures are logged and do not abort the pass.
func (m *Monitor) Tick(ctx context.Context) error {
	brokerTrades, err := m.broker.OpenTrades(ctx)
	if err != nil {
		return fmt.Errorf("engine: snapshot broker trades: %w", err)
	}

	active, err := m.ledger.ListByStatus(ctx, domain.PositionStatusOpen, domain.PositionStatusPartial)
	if err != nil {
		return fmt.Errorf("engine: snapshot active positions: %w", err)
	}
	if len(active) == 0 {
		return nil
	}

	byID := make(map[string]domain.BrokerTrade, len(brokerTrades))
	for _, t := range brokerTrades {
		byID[t.ID] = t
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for _, pos := range active {
		trade, ok := byID[pos.BrokerTradeID]
		if !ok {
			// Orphan; left for the reconciler.
			continue
		}

		g.Go(func() error {
			if err := m.evaluatePosition(ctx, pos, trade); err != nil {
				m.logger.Error("position evaluation failed",
					slog.String("broker_trade_id", pos.BrokerTradeID),
					slog.String("instrument", pos.Instrument),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}

	return g.Wait()
}

// evaluatePosition runs the exit chain for one position under its advisory
// lock. A position whose lock is held elsewhere (a manual close in flight,
// or a concurrent tick) is skipped and picked up again next tick.
func (m *Monitor) evaluatePosition(ctx context.Context, pos domain.Position, trade domain.BrokerTrade) error {
	unlock, err := m.locks.Acquire(ctx, domain.PositionLockKey(pos.BrokerTradeID), positionLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return nil
		}
		return fmt.Errorf("engine: acquire lock: %w", err)
	}
	defer unlock()

	// Evaluate against the live quote, not trade.Price: that field is the
	// fill price and stays at entry for the life of the trade.
	quote, err := m.quotes.Get(ctx, pos.Instrument)
	if err != nil {
		return fmt.Errorf("engine: quote %s: %w", pos.Instrument, err)
	}
	price := exitPrice(pos.Direction, quote)

	switch evaluateExit(pos, price) {
	case exitTP1:
		return m.fireTP1(ctx, pos, trade, price)
	case exitTP2:
		return m.fireTP2(ctx, pos, price)
	case exitSL:
		return m.fireSL(ctx, pos, price)
	}
	return nil
}

// fireTP1 closes 75% of the remaining size and pulls the stop to
// break-even. The stop move is best-effort: its failure leaves the position
// in partial state with the original stop and is only logged.
func (m *Monitor) fireTP1(ctx context.Context, pos domain.Position, trade domain.BrokerTrade, price float64) error {
	units := partialCloseUnits(trade.Units)
	if units == 0 {
		return nil
	}

	m.logger.Info("tp1 hit",
		slog.String("broker_trade_id", pos.BrokerTradeID),
		slog.String("instrument", pos.Instrument),
		slog.Float64("price", price),
		slog.Int64("close_units", units),
	)

	realized, err := m.broker.CloseTrade(ctx, pos.BrokerTradeID, units)
	if err != nil {
		return fmt.Errorf("engine: tp1 partial close: %w", err)
	}

	if err := m.broker.MoveStopLoss(ctx, pos.BrokerTradeID, pos.EntryPrice); err != nil {
		m.logger.Warn("break-even stop move failed",
			slog.String("broker_trade_id", pos.BrokerTradeID),
			slog.String("error", err.Error()),
		)
	}

	pos.MarkTP1(realized)
	if err := m.ledger.Update(ctx, pos); err != nil {
		return fmt.Errorf("engine: record tp1: %w", err)
	}

	m.auditAndPublish(ctx, domain.ChannelExits, "exit.tp1", domain.Event{
		Type:          domain.EventPartialClose,
		BrokerTradeID: pos.BrokerTradeID,
		Instrument:    pos.Instrument,
		Direction:     pos.Direction,
		Price:         price,
		RealizedPL:    realized,
		Reason:        "tp1",
		At:            time.Now().UTC(),
	})
	return nil
}

// fireTP2 closes the remaining size and terminally closes the position.
func (m *Monitor) fireTP2(ctx context.Context, pos domain.Position, price float64) error {
	m.logger.Info("tp2 hit",
		slog.String("broker_trade_id", pos.BrokerTradeID),
		slog.String("instrument", pos.Instrument),
		slog.Float64("price", price),
	)

	realized, err := m.broker.CloseTrade(ctx, pos.BrokerTradeID, 0)
	if err != nil {
		return fmt.Errorf("engine: tp2 close: %w", err)
	}

	pos.MarkTP2(price, realized, time.Now().UTC())
	if err := m.ledger.Update(ctx, pos); err != nil {
		return fmt.Errorf("engine: record tp2: %w", err)
	}

	m.auditAndPublish(ctx, domain.ChannelExits, "exit.tp2", domain.Event{
		Type:          domain.EventPositionClosed,
		BrokerTradeID: pos.BrokerTradeID,
		Instrument:    pos.Instrument,
		Direction:     pos.Direction,
		Price:         price,
		RealizedPL:    realized,
		Reason:        "tp2",
		At:            time.Now().UTC(),
	})
	return nil
}

// fireSL closes the remaining size after the stop level was crossed. After
// a TP1 partial close the stop sits at break-even, so this branch also
// realizes the intended ~zero-P/L exit of a protected runner.
func (m *Monitor) fireSL(ctx context.Context, pos domain.Position, price float64) error {
	m.logger.Info("sl hit",
		slog.String("broker_trade_id", pos.BrokerTradeID),
		slog.String("instrument", pos.Instrument),
		slog.Float64("price", price),
	)

	realized, err := m.broker.CloseTrade(ctx, pos.BrokerTradeID, 0)
	if err != nil {
		return fmt.Errorf("engine: sl close: %w", err)
	}

	pos.MarkSL(price, realized, time.Now().UTC())
	if err := m.ledger.Update(ctx, pos); err != nil {
		return fmt.Errorf("engine: record sl: %w", err)
	}

	m.auditAndPublish(ctx, domain.ChannelExits, "exit.sl", domain.Event{
		Type:          domain.EventPositionClosed,
		BrokerTradeID: pos.BrokerTradeID,
		Instrument:    pos.Instrument,
		Direction:     pos.Direction,
		Price:         price,
		RealizedPL:    realized,
		Reason:        "sl",
		At:            time.Now().UTC(),
	})
	return nil
}

// auditAndPublish records the exit in the audit log and fans the event out
// on the signal bus. Neither failure affects the already-committed exit.
func (m *Monitor) auditAndPublish(ctx context.Context, channel, event string, e domain.Event) {
	if err := m.audit.Log(ctx, event, map[string]any{
		"broker_trade_id": e.BrokerTradeID,
		"instrument":      e.Instrument,
		"price":           e.Price,
		"realized_pl":     e.RealizedPL,
	}); err != nil {
		m.logger.Warn("audit log failed", slog.String("event", event), slog.String("error", err.Error()))
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := m.bus.Publish(ctx, channel, payload); err != nil {
		m.logger.Warn("event publish failed", slog.String("channel", channel), slog.String("error", err.Error()))
	}
}
