package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

func newTestReconciler(broker *fakeBroker, ledger *fakeLedger) (*Reconciler, *fakeAudit) {
	audit := &fakeAudit{}
	r := NewReconciler(broker, ledger, audit, newFakeBus(), testLogger())
	return r, audit
}

func TestReconcileDeletesOrphans(t *testing.T) {
	ctx := context.Background()

	ledger := newFakeLedger(
		domain.Position{BrokerTradeID: "1", Status: domain.PositionStatusOpen, Direction: domain.DirectionLong},
		domain.Position{BrokerTradeID: "2", Status: domain.PositionStatusPartial, Direction: domain.DirectionLong},
	)
	// Only trade 2 is still open at the broker.
	broker := newFakeBroker(domain.BrokerTrade{ID: "2", Instrument: "EUR_USD", Units: 25_000, Price: 1.09})
	r, audit := newTestReconciler(broker, ledger)

	result, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.OrphansDeleted)
	assert.Equal(t, []string{"1"}, result.DeletedIDs)

	// The position still present at the broker is never deleted.
	_, err = ledger.GetByBrokerTradeID(ctx, "2")
	assert.NoError(t, err)
	_, err = ledger.GetByBrokerTradeID(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Contains(t, audit.events, "reconcile")
}

func TestReconcileBackfillsMissingSync(t *testing.T) {
	ctx := context.Background()

	opened := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)
	ledger := newFakeLedger()
	broker := newFakeBroker(
		domain.BrokerTrade{ID: "50", Instrument: "EUR_USD", Units: 100_000, Price: 1.0, OpenTime: opened},
		domain.BrokerTrade{ID: "51", Instrument: "XAU_USD", Units: -200, Price: 2400, OpenTime: opened},
	)
	r, _ := newTestReconciler(broker, ledger)

	result, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Backfilled)

	long, err := ledger.GetByBrokerTradeID(ctx, "50")
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionLong, long.Direction)
	assert.Equal(t, domain.PositionStatusOpen, long.Status)
	assert.Equal(t, opened, long.DateOpened)
	assert.Equal(t, 1.0, long.LotSize)
	assert.InDelta(t, 1.01, long.TP1, 1e-9)
	assert.InDelta(t, 1.02, long.TP2, 1e-9)
	assert.InDelta(t, 0.99, long.SL, 1e-9)

	short, err := ledger.GetByBrokerTradeID(ctx, "51")
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionShort, short.Direction)
	assert.Equal(t, 2.0, short.LotSize)
	assert.InDelta(t, 2376, short.TP1, 1e-9)
	assert.InDelta(t, 2352, short.TP2, 1e-9)
	assert.InDelta(t, 2424, short.SL, 1e-9)
}

func TestReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()

	ledger := newFakeLedger(
		domain.Position{BrokerTradeID: "60", Status: domain.PositionStatusOpen, Direction: domain.DirectionLong, TP1: 105, TP2: 110, SL: 95, EntryPrice: 100},
		domain.Position{BrokerTradeID: "61", Status: domain.PositionStatusOpen, Direction: domain.DirectionLong},
	)
	broker := newFakeBroker(
		domain.BrokerTrade{ID: "60", Instrument: "EUR_USD", Units: 100_000, Price: 100},
		domain.BrokerTrade{ID: "62", Instrument: "EUR_USD", Units: 50_000, Price: 100},
	)
	r, _ := newTestReconciler(broker, ledger)

	first, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.OrphansDeleted)
	assert.Equal(t, 1, first.Backfilled)

	// Ledger position 60 was present on both sides: untouched, levels intact.
	kept, err := ledger.GetByBrokerTradeID(ctx, "60")
	require.NoError(t, err)
	assert.Equal(t, 105.0, kept.TP1)

	// Second run with no broker-side change is a no-op.
	second, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.OrphansDeleted)
	assert.Equal(t, 0, second.Backfilled)
}
