// Package service contains the request-path orchestration between the HTTP
// layer, the broker gateway, and the position ledger.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/fxbot/internal/domain"
	"github.com/alanyoungcy/fxbot/internal/market"
)

// positionLockTTL bounds manual-close lock duration. The exit loop uses the
// same keys, so a position can never be closed twice concurrently.
const positionLockTTL = 30 * time.Second

// TradeService owns the place-order and close-position flows.
type TradeService struct {
	broker domain.Broker
	ledger domain.PositionStore
	locks  domain.LockManager
	prices *PriceService
	bus    domain.SignalBus
	audit  domain.AuditStore
	logger *slog.Logger
	now    func() time.Time
}

// NewTradeService creates a TradeService with all required dependencies.
func NewTradeService(
	broker domain.Broker,
	ledger domain.PositionStore,
	locks domain.LockManager,
	prices *PriceService,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		broker: broker,
		ledger: ledger,
		locks:  locks,
		prices: prices,
		bus:    bus,
		audit:  audit,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Place runs the full order flow: session gate, level validation against
// the live reference price, fill-or-kill market order, then the ledger
// write. Nothing is persisted unless the broker confirms a fill.
func (s *TradeService) Place(ctx context.Context, intent domain.TradeIntent) (domain.Position, error) {
	status := market.Status(s.now())
	if !status.IsOpen {
		return domain.Position{}, fmt.Errorf(
			"trade_service: %s, reopens %s: %w",
			status.ReasonClosed, status.ReopensAt.Format(time.RFC3339), domain.ErrMarketClosed,
		)
	}

	quote, err := s.prices.Get(ctx, intent.Instrument)
	if err != nil {
		return domain.Position{}, fmt.Errorf("trade_service: reference price: %w", err)
	}

	ref := quote.Reference(intent.Direction)
	if err := domain.ValidateLevels(intent.Direction, ref, intent.TP1, intent.TP2, intent.SL); err != nil {
		return domain.Position{}, fmt.Errorf("trade_service: %w", err)
	}

	ticket, err := s.broker.PlaceMarketOrder(ctx, intent)
	if err != nil {
		return domain.Position{}, fmt.Errorf("trade_service: place order: %w", err)
	}

	pos := domain.Position{
		BrokerTradeID: ticket.BrokerTradeID,
		Instrument:    domain.NormalizeInstrument(intent.Instrument),
		Direction:     intent.Direction,
		EntryPrice:    ticket.FillPrice,
		LotSize:       intent.Lots,
		TP1:           intent.TP1,
		TP2:           intent.TP2,
		SL:            intent.SL,
		Status:        domain.PositionStatusOpen,
		DateOpened:    ticket.Time,
	}

	pos, err = s.ledger.Upsert(ctx, pos)
	if err != nil {
		// The broker holds the position; the reconciler will backfill it if
		// this write never lands.
		return domain.Position{}, fmt.Errorf("trade_service: record fill %s: %w", ticket.BrokerTradeID, err)
	}

	s.auditAndPublish(ctx, "trade.placed", domain.Event{
		Type:          domain.EventOrderFilled,
		BrokerTradeID: pos.BrokerTradeID,
		Instrument:    pos.Instrument,
		Direction:     pos.Direction,
		Price:         pos.EntryPrice,
		At:            s.now(),
	})

	s.logger.InfoContext(ctx, "trade_service: order filled",
		slog.String("broker_trade_id", pos.BrokerTradeID),
		slog.String("instrument", pos.Instrument),
		slog.String("direction", string(pos.Direction)),
		slog.Float64("fill_price", pos.EntryPrice),
		slog.Float64("lots", pos.LotSize),
	)

	return pos, nil
}

// Close closes a position manually under its advisory lock. A positive
// units value closes part of the position; zero closes all of it.
func (s *TradeService) Close(ctx context.Context, brokerTradeID string, units int64) (domain.Position, error) {
	unlock, err := s.locks.Acquire(ctx, domain.PositionLockKey(brokerTradeID), positionLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.Position{}, fmt.Errorf("trade_service: position %s is being managed, retry shortly: %w", brokerTradeID, err)
		}
		return domain.Position{}, fmt.Errorf("trade_service: acquire lock: %w", err)
	}
	defer unlock()

	pos, err := s.ledger.GetByBrokerTradeID(ctx, brokerTradeID)
	if err != nil {
		return domain.Position{}, fmt.Errorf("trade_service: lookup position %s: %w", brokerTradeID, err)
	}
	if !pos.Active() {
		return domain.Position{}, fmt.Errorf("trade_service: position %s already closed: %w", brokerTradeID, domain.ErrCloseFailed)
	}

	realized, err := s.broker.CloseTrade(ctx, brokerTradeID, units)
	if err != nil {
		return domain.Position{}, fmt.Errorf("trade_service: close %s: %w", brokerTradeID, err)
	}

	if units > 0 {
		// Partial manual close: the position keeps running.
		pos.PartialClosed = true
		pos.RealizedPL += realized
	} else {
		closePrice := pos.EntryPrice
		if quote, qErr := s.prices.Get(ctx, pos.Instrument); qErr == nil {
			// A long exits at the bid, a short at the ask.
			if pos.Direction == domain.DirectionLong {
				closePrice = quote.Bid
			} else {
				closePrice = quote.Ask
			}
		}
		pos.MarkClosed(closePrice, realized, s.now())
	}

	if err := s.ledger.Update(ctx, pos); err != nil {
		return domain.Position{}, fmt.Errorf("trade_service: record close %s: %w", brokerTradeID, err)
	}

	s.auditAndPublish(ctx, "trade.closed", domain.Event{
		Type:          domain.EventPositionClosed,
		BrokerTradeID: pos.BrokerTradeID,
		Instrument:    pos.Instrument,
		Direction:     pos.Direction,
		RealizedPL:    realized,
		Reason:        "manual",
		At:            s.now(),
	})

	s.logger.InfoContext(ctx, "trade_service: position closed",
		slog.String("broker_trade_id", pos.BrokerTradeID),
		slog.Int64("units", units),
		slog.Float64("realized_pl", realized),
	)

	return pos, nil
}

// SessionStatus reports the trading calendar state for the current instant.
func (s *TradeService) SessionStatus() domain.SessionStatus {
	return market.Status(s.now())
}

func (s *TradeService) auditAndPublish(ctx context.Context, event string, e domain.Event) {
	if err := s.audit.Log(ctx, event, map[string]any{
		"broker_trade_id": e.BrokerTradeID,
		"instrument":      e.Instrument,
		"direction":       string(e.Direction),
		"price":           e.Price,
		"realized_pl":     e.RealizedPL,
	}); err != nil {
		s.logger.WarnContext(ctx, "trade_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelTrades, payload); err != nil {
		s.logger.WarnContext(ctx, "trade_service: publish event failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
