package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

func closedPosition(id string, pl float64, closedAt time.Time) domain.Position {
	pos := domain.Position{
		BrokerTradeID: id,
		Instrument:    "EUR_USD",
		Direction:     domain.DirectionLong,
		Status:        domain.PositionStatusOpen,
		CreatedAt:     closedAt.Add(-time.Hour),
	}
	pos.MarkClosed(1.09, pl, closedAt)
	return pos
}

func TestOpenMergesBrokerView(t *testing.T) {
	ledger := newFakeLedger(
		domain.Position{BrokerTradeID: "1", Instrument: "EUR_USD", Status: domain.PositionStatusOpen},
		domain.Position{BrokerTradeID: "2", Instrument: "XAU_USD", Status: domain.PositionStatusPartial},
		domain.Position{BrokerTradeID: "3", Instrument: "EUR_USD", Status: domain.PositionStatusClosed},
	)
	broker := &fakeBroker{trades: []domain.BrokerTrade{
		{ID: "1", Instrument: "EUR_USD", Units: 100_000, Price: 1.0901, UnrealizedPL: 12.5},
	}}
	s := NewPositionService(broker, ledger, testLogger())

	views, err := s.Open(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, "1", views[0].BrokerTradeID)
	assert.Equal(t, 1.0901, views[0].CurrentPrice)
	assert.Equal(t, 12.5, views[0].UnrealizedPL)

	// Position 2 has no broker-side trade this instant; still listed.
	assert.Equal(t, "2", views[1].BrokerTradeID)
	assert.Zero(t, views[1].CurrentPrice)
}

func TestRecentClosedOrdering(t *testing.T) {
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	ledger := newFakeLedger(
		closedPosition("1", 10, base),
		closedPosition("2", -5, base.Add(2*time.Hour)),
		closedPosition("3", 7, base.Add(time.Hour)),
	)
	s := NewPositionService(&fakeBroker{}, ledger, testLogger())

	recent, err := s.RecentClosed(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "2", recent[0].BrokerTradeID)
	assert.Equal(t, "3", recent[1].BrokerTradeID)
}

func TestStatisticsCountsWinsAndLosses(t *testing.T) {
	now := time.Now().UTC()
	ledger := newFakeLedger(
		closedPosition("1", 50, now.Add(-24*time.Hour)),
		closedPosition("2", -30, now.Add(-48*time.Hour)),
		closedPosition("3", 20, now.Add(-72*time.Hour)),
		// Outside the 30-day window.
		closedPosition("4", 99, now.AddDate(0, 0, -45)),
	)
	s := NewPositionService(&fakeBroker{}, ledger, testLogger())

	stats, err := s.Statistics(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Wins)
	assert.Equal(t, int64(1), stats.Losses)
	assert.Equal(t, int64(3), stats.TotalTrades)
}

func TestProfitLossTotals(t *testing.T) {
	now := time.Now().UTC()
	ledger := newFakeLedger(
		closedPosition("1", 50, now),
		closedPosition("2", -30, now),
		closedPosition("3", 20, now),
	)
	s := NewPositionService(&fakeBroker{}, ledger, testLogger())

	totals, err := s.ProfitLossTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 70.0, totals.TotalProfit)
	assert.Equal(t, 30.0, totals.TotalLoss)
}

func TestAccount(t *testing.T) {
	broker := &fakeBroker{account: domain.AccountSummary{Balance: 10_000.50, UnrealizedPL: -42.1}}
	s := NewPositionService(broker, newFakeLedger(), testLogger())

	summary, err := s.Account(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10_000.50, summary.Balance)
	assert.Equal(t, -42.1, summary.UnrealizedPL)
}
