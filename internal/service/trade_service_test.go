package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

// Tuesday mid-session, well clear of maintenance.
var tradingHours = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func newTestTradeService(broker *fakeBroker, ledger *fakeLedger, locks *fakeLocks) (*TradeService, *fakeBus, *fakeAudit) {
	bus := newFakeBus()
	audit := &fakeAudit{}
	prices := NewPriceService(broker, newFakeQuoteCache(), testLogger())
	s := NewTradeService(broker, ledger, locks, prices, bus, audit, testLogger())
	s.now = func() time.Time { return tradingHours }
	return s, bus, audit
}

func TestPlaceFillsAndRecordsPosition(t *testing.T) {
	ctx := context.Background()

	broker := &fakeBroker{
		quotes: map[string]domain.Quote{
			"EUR_USD": {Instrument: "EUR_USD", Bid: 1.0848, Ask: 1.0850},
		},
		ticket: domain.OrderTicket{
			BrokerTradeID: "42",
			FillPrice:     1.0850,
			Units:         100_000,
			Time:          tradingHours,
		},
	}
	ledger := newFakeLedger()
	s, bus, audit := newTestTradeService(broker, ledger, newFakeLocks())

	pos, err := s.Place(ctx, domain.TradeIntent{
		Instrument: "EURUSD",
		Direction:  domain.DirectionLong,
		Lots:       1,
		TP1:        1.0950,
		TP2:        1.1050,
		SL:         1.0750,
	})
	require.NoError(t, err)

	assert.Equal(t, "42", pos.BrokerTradeID)
	assert.Equal(t, "EUR_USD", pos.Instrument)
	assert.Equal(t, domain.PositionStatusOpen, pos.Status)
	assert.Equal(t, 1.0850, pos.EntryPrice)
	assert.Equal(t, tradingHours, pos.DateOpened)

	stored, err := ledger.GetByBrokerTradeID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 1.0950, stored.TP1)

	assert.Contains(t, audit.events, "trade.placed")
	assert.NotEmpty(t, bus.messages[domain.ChannelTrades])
}

func TestPlaceRejectedWhenMarketClosed(t *testing.T) {
	broker := &fakeBroker{}
	s, _, _ := newTestTradeService(broker, newFakeLedger(), newFakeLocks())
	// Saturday.
	s.now = func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) }

	_, err := s.Place(context.Background(), domain.TradeIntent{
		Instrument: "EURUSD",
		Direction:  domain.DirectionLong,
		Lots:       1,
		TP1:        1.10, TP2: 1.11, SL: 1.07,
	})
	assert.ErrorIs(t, err, domain.ErrMarketClosed)
	assert.Empty(t, broker.placed)
}

func TestPlaceRejectsInvalidLevels(t *testing.T) {
	broker := &fakeBroker{
		quotes: map[string]domain.Quote{
			"EUR_USD": {Instrument: "EUR_USD", Bid: 1.0848, Ask: 1.0850},
		},
	}
	s, _, _ := newTestTradeService(broker, newFakeLedger(), newFakeLocks())

	// TP1 below the ask on a long.
	_, err := s.Place(context.Background(), domain.TradeIntent{
		Instrument: "EURUSD",
		Direction:  domain.DirectionLong,
		Lots:       1,
		TP1:        1.0800, TP2: 1.1050, SL: 1.0750,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidLevels)
	assert.Empty(t, broker.placed)
}

func TestPlaceBrokerRejectionPersistsNothing(t *testing.T) {
	broker := &fakeBroker{
		quotes: map[string]domain.Quote{
			"EUR_USD": {Instrument: "EUR_USD", Bid: 1.0848, Ask: 1.0850},
		},
		placeErr: domain.ErrInsufficientMargin,
	}
	ledger := newFakeLedger()
	s, _, _ := newTestTradeService(broker, ledger, newFakeLocks())

	_, err := s.Place(context.Background(), domain.TradeIntent{
		Instrument: "EURUSD",
		Direction:  domain.DirectionLong,
		Lots:       1,
		TP1:        1.0950, TP2: 1.1050, SL: 1.0750,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientMargin)
	assert.Empty(t, ledger.positions)
}

func TestCloseFullClosesAndMarksLedger(t *testing.T) {
	ctx := context.Background()

	broker := &fakeBroker{
		quotes: map[string]domain.Quote{
			"EUR_USD": {Instrument: "EUR_USD", Bid: 1.0900, Ask: 1.0902},
		},
		closePL: 50,
	}
	ledger := newFakeLedger(domain.Position{
		BrokerTradeID: "42",
		Instrument:    "EUR_USD",
		Direction:     domain.DirectionLong,
		EntryPrice:    1.0850,
		Status:        domain.PositionStatusOpen,
	})
	s, bus, _ := newTestTradeService(broker, ledger, newFakeLocks())

	pos, err := s.Close(ctx, "42", 0)
	require.NoError(t, err)

	assert.Equal(t, domain.PositionStatusClosed, pos.Status)
	assert.Equal(t, 50.0, pos.RealizedPL)
	assert.True(t, pos.IsProfit)
	require.NotNil(t, pos.ClosePrice)
	// A long exits at the bid.
	assert.Equal(t, 1.0900, *pos.ClosePrice)
	require.NotNil(t, pos.DateClosed)

	require.Len(t, broker.closeCalls, 1)
	assert.Equal(t, int64(0), broker.closeCalls[0].units)
	assert.NotEmpty(t, bus.messages[domain.ChannelTrades])
}

func TestClosePartialKeepsPositionRunning(t *testing.T) {
	ctx := context.Background()

	broker := &fakeBroker{closePL: 20}
	ledger := newFakeLedger(domain.Position{
		BrokerTradeID: "42",
		Instrument:    "EUR_USD",
		Direction:     domain.DirectionLong,
		Status:        domain.PositionStatusOpen,
	})
	s, _, _ := newTestTradeService(broker, ledger, newFakeLocks())

	pos, err := s.Close(ctx, "42", 25_000)
	require.NoError(t, err)

	assert.Equal(t, domain.PositionStatusOpen, pos.Status)
	assert.True(t, pos.PartialClosed)
	assert.Equal(t, 20.0, pos.RealizedPL)
	assert.Nil(t, pos.DateClosed)
}

func TestCloseWhileLockHeld(t *testing.T) {
	locks := newFakeLocks()
	locks.held[domain.PositionLockKey("42")] = true
	broker := &fakeBroker{}
	ledger := newFakeLedger(domain.Position{
		BrokerTradeID: "42",
		Status:        domain.PositionStatusOpen,
	})
	s, _, _ := newTestTradeService(broker, ledger, locks)

	_, err := s.Close(context.Background(), "42", 0)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Empty(t, broker.closeCalls)
}

func TestCloseAlreadyClosedPosition(t *testing.T) {
	broker := &fakeBroker{}
	ledger := newFakeLedger(domain.Position{
		BrokerTradeID: "42",
		Status:        domain.PositionStatusClosed,
	})
	s, _, _ := newTestTradeService(broker, ledger, newFakeLocks())

	_, err := s.Close(context.Background(), "42", 0)
	assert.ErrorIs(t, err, domain.ErrCloseFailed)
	assert.Empty(t, broker.closeCalls)
}

func TestCloseBrokerFailureLeavesLedgerUntouched(t *testing.T) {
	ctx := context.Background()

	broker := &fakeBroker{closeErr: domain.ErrCloseFailed}
	ledger := newFakeLedger(domain.Position{
		BrokerTradeID: "42",
		Status:        domain.PositionStatusOpen,
	})
	s, _, _ := newTestTradeService(broker, ledger, newFakeLocks())

	_, err := s.Close(ctx, "42", 0)
	assert.ErrorIs(t, err, domain.ErrCloseFailed)

	pos, err := ledger.GetByBrokerTradeID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusOpen, pos.Status)
}

func TestCloseReleasesLock(t *testing.T) {
	locks := newFakeLocks()
	broker := &fakeBroker{closeErr: errors.New("boom")}
	ledger := newFakeLedger(domain.Position{
		BrokerTradeID: "42",
		Status:        domain.PositionStatusOpen,
	})
	s, _, _ := newTestTradeService(broker, ledger, locks)

	_, _ = s.Close(context.Background(), "42", 0)
	assert.Empty(t, locks.held)
}
