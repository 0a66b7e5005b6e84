package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

// OpenPositionView is a ledger position joined with the broker's live view
// of the same trade.
type OpenPositionView struct {
	domain.Position
	CurrentPrice float64 `json:"currentPrice"`
	UnrealizedPL float64 `json:"unrealizedPL"`
}

// PositionService serves read paths over the ledger and the broker account.
type PositionService struct {
	broker domain.Broker
	ledger domain.PositionStore
	logger *slog.Logger
}

// NewPositionService creates a PositionService.
func NewPositionService(broker domain.Broker, ledger domain.PositionStore, logger *slog.Logger) *PositionService {
	return &PositionService{
		broker: broker,
		ledger: ledger,
		logger: logger,
	}
}

// Open returns active ledger positions annotated with the broker's live
// price and unrealized P/L. Positions the broker no longer reports are
// returned as-is; the reconciler owns removing them.
func (s *PositionService) Open(ctx context.Context) ([]OpenPositionView, error) {
	positions, err := s.ledger.ListByStatus(ctx, domain.PositionStatusOpen, domain.PositionStatusPartial)
	if err != nil {
		return nil, fmt.Errorf("position_service: list open: %w", err)
	}

	trades, err := s.broker.OpenTrades(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "position_service: broker snapshot unavailable",
			slog.String("error", err.Error()),
		)
		trades = nil
	}
	byID := make(map[string]domain.BrokerTrade, len(trades))
	for _, t := range trades {
		byID[t.ID] = t
	}

	views := make([]OpenPositionView, 0, len(positions))
	for _, pos := range positions {
		view := OpenPositionView{Position: pos}
		if t, ok := byID[pos.BrokerTradeID]; ok {
			view.CurrentPrice = t.Price
			view.UnrealizedPL = t.UnrealizedPL
		}
		views = append(views, view)
	}
	return views, nil
}

// RecentClosed returns the most recently closed positions, newest first.
func (s *PositionService) RecentClosed(ctx context.Context, limit int) ([]domain.Position, error) {
	positions, err := s.ledger.RecentClosed(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("position_service: recent closed: %w", err)
	}
	return positions, nil
}

// Statistics returns win/loss counts for positions closed within the last
// given number of days. days <= 0 means the last 30 days.
func (s *PositionService) Statistics(ctx context.Context, days int) (domain.Statistics, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	stats, err := s.ledger.StatisticsSince(ctx, cutoff)
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("position_service: statistics: %w", err)
	}
	return stats, nil
}

// ProfitLossTotals returns lifetime realized profit and loss magnitudes.
func (s *PositionService) ProfitLossTotals(ctx context.Context) (domain.PLTotals, error) {
	totals, err := s.ledger.ProfitLossTotals(ctx)
	if err != nil {
		return domain.PLTotals{}, fmt.Errorf("position_service: pl totals: %w", err)
	}
	return totals, nil
}

// Account returns the broker account balance and unrealized P/L.
func (s *PositionService) Account(ctx context.Context) (domain.AccountSummary, error) {
	summary, err := s.broker.AccountSummary(ctx)
	if err != nil {
		return domain.AccountSummary{}, fmt.Errorf("position_service: account summary: %w", err)
	}
	return summary, nil
}
