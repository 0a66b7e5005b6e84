package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeBroker struct {
	quotes   map[string]domain.Quote
	quoteErr error
	account  domain.AccountSummary
	trades   []domain.BrokerTrade

	ticket   domain.OrderTicket
	placeErr error
	placed   []domain.TradeIntent

	closePL    float64
	closeErr   error
	closeCalls []struct {
		tradeID string
		units   int64
	}
}

func (f *fakeBroker) Quote(_ context.Context, instrument string) (domain.Quote, error) {
	if f.quoteErr != nil {
		return domain.Quote{}, f.quoteErr
	}
	q, ok := f.quotes[domain.NormalizeInstrument(instrument)]
	if !ok {
		return domain.Quote{}, domain.ErrPriceUnavailable
	}
	return q, nil
}

func (f *fakeBroker) AccountSummary(context.Context) (domain.AccountSummary, error) {
	return f.account, nil
}

func (f *fakeBroker) OpenTrades(context.Context) ([]domain.BrokerTrade, error) {
	return f.trades, nil
}

func (f *fakeBroker) PlaceMarketOrder(_ context.Context, intent domain.TradeIntent) (domain.OrderTicket, error) {
	f.placed = append(f.placed, intent)
	if f.placeErr != nil {
		return domain.OrderTicket{}, f.placeErr
	}
	return f.ticket, nil
}

func (f *fakeBroker) CloseTrade(_ context.Context, tradeID string, units int64) (float64, error) {
	f.closeCalls = append(f.closeCalls, struct {
		tradeID string
		units   int64
	}{tradeID, units})
	if f.closeErr != nil {
		return 0, f.closeErr
	}
	return f.closePL, nil
}

func (f *fakeBroker) MoveStopLoss(context.Context, string, float64) error {
	return nil
}

type fakeLedger struct {
	positions map[string]domain.Position
	upsertErr error
	updateErr error
}

func newFakeLedger(positions ...domain.Position) *fakeLedger {
	l := &fakeLedger{positions: make(map[string]domain.Position)}
	for _, p := range positions {
		l.positions[p.BrokerTradeID] = p
	}
	return l
}

func (l *fakeLedger) Upsert(_ context.Context, pos domain.Position) (domain.Position, error) {
	if l.upsertErr != nil {
		return domain.Position{}, l.upsertErr
	}
	if existing, ok := l.positions[pos.BrokerTradeID]; ok {
		return existing, nil
	}
	l.positions[pos.BrokerTradeID] = pos
	return pos, nil
}

func (l *fakeLedger) Update(_ context.Context, pos domain.Position) error {
	if l.updateErr != nil {
		return l.updateErr
	}
	if _, ok := l.positions[pos.BrokerTradeID]; !ok {
		return domain.ErrNotFound
	}
	l.positions[pos.BrokerTradeID] = pos
	return nil
}

func (l *fakeLedger) GetByBrokerTradeID(_ context.Context, id string) (domain.Position, error) {
	pos, ok := l.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return pos, nil
}

func (l *fakeLedger) ListByStatus(_ context.Context, statuses ...domain.PositionStatus) ([]domain.Position, error) {
	var out []domain.Position
	for _, pos := range l.positions {
		for _, st := range statuses {
			if pos.Status == st {
				out = append(out, pos)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BrokerTradeID < out[j].BrokerTradeID })
	return out, nil
}

func (l *fakeLedger) RecentClosed(_ context.Context, limit int) ([]domain.Position, error) {
	var out []domain.Position
	for _, pos := range l.positions {
		if pos.Status == domain.PositionStatusClosed {
			out = append(out, pos)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].DateClosed, out[j].DateClosed
		if di != nil && dj != nil && !di.Equal(*dj) {
			return di.After(*dj)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *fakeLedger) StatisticsSince(_ context.Context, cutoff time.Time) (domain.Statistics, error) {
	var stats domain.Statistics
	for _, pos := range l.positions {
		if pos.Status != domain.PositionStatusClosed || pos.DateClosed == nil || pos.DateClosed.Before(cutoff) {
			continue
		}
		stats.TotalTrades++
		if pos.IsProfit {
			stats.Wins++
		}
		if pos.IsLoss {
			stats.Losses++
		}
	}
	return stats, nil
}

func (l *fakeLedger) ProfitLossTotals(context.Context) (domain.PLTotals, error) {
	var totals domain.PLTotals
	for _, pos := range l.positions {
		if pos.Status != domain.PositionStatusClosed {
			continue
		}
		if pos.RealizedPL > 0 {
			totals.TotalProfit += pos.RealizedPL
		} else if pos.RealizedPL < 0 {
			totals.TotalLoss += -pos.RealizedPL
		}
	}
	return totals, nil
}

func (l *fakeLedger) DeleteByBrokerTradeIDs(_ context.Context, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := l.positions[id]; ok {
			delete(l.positions, id)
			n++
		}
	}
	return n, nil
}

type fakeQuoteCache struct {
	quotes map[string]domain.Quote
	setErr error
	sets   int
}

func newFakeQuoteCache() *fakeQuoteCache {
	return &fakeQuoteCache{quotes: make(map[string]domain.Quote)}
}

func (c *fakeQuoteCache) SetQuote(_ context.Context, q domain.Quote) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.quotes[q.Instrument] = q
	return nil
}

func (c *fakeQuoteCache) GetQuote(_ context.Context, instrument string) (domain.Quote, error) {
	q, ok := c.quotes[domain.NormalizeInstrument(instrument)]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}

type fakeLocks struct {
	held map[string]bool
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: make(map[string]bool)}
}

func (l *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() { delete(l.held, key) }, nil
}

type fakeBus struct {
	messages map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{messages: make(map[string][][]byte)}
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.messages[channel] = append(b.messages[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

type fakeAudit struct {
	events []string
}

func (a *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}
