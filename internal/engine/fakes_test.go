package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

// In-memory collaborators used across the engine tests.

type closeCall struct {
	tradeID string
	units   int64
}

type fakeBroker struct {
	mu         sync.Mutex
	trades     map[string]domain.BrokerTrade
	closePL    map[string]float64
	closeErr   error
	stopErr    error
	closeCalls []closeCall
	stopMoves  map[string]float64
}

func newFakeBroker(trades ...domain.BrokerTrade) *fakeBroker {
	b := &fakeBroker{
		trades:    make(map[string]domain.BrokerTrade),
		closePL:   make(map[string]float64),
		stopMoves: make(map[string]float64),
	}
	for _, t := range trades {
		b.trades[t.ID] = t
	}
	return b
}

func (b *fakeBroker) Quote(ctx context.Context, instrument string) (domain.Quote, error) {
	return domain.Quote{Instrument: instrument, Bid: 1, Ask: 1}, nil
}

func (b *fakeBroker) AccountSummary(ctx context.Context) (domain.AccountSummary, error) {
	return domain.AccountSummary{Balance: 10_000}, nil
}

func (b *fakeBroker) OpenTrades(ctx context.Context) ([]domain.BrokerTrade, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.BrokerTrade, 0, len(b.trades))
	for _, t := range b.trades {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *fakeBroker) PlaceMarketOrder(ctx context.Context, intent domain.TradeIntent) (domain.OrderTicket, error) {
	return domain.OrderTicket{}, fmt.Errorf("not implemented")
}

func (b *fakeBroker) CloseTrade(ctx context.Context, tradeID string, units int64) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return 0, b.closeErr
	}
	t, ok := b.trades[tradeID]
	if !ok {
		return 0, fmt.Errorf("trade %s not open: %w", tradeID, domain.ErrCloseFailed)
	}
	b.closeCalls = append(b.closeCalls, closeCall{tradeID: tradeID, units: units})

	if units == 0 {
		delete(b.trades, tradeID)
	} else {
		if t.Units < 0 {
			t.Units += float64(units)
		} else {
			t.Units -= float64(units)
		}
		b.trades[tradeID] = t
	}
	return b.closePL[tradeID], nil
}

func (b *fakeBroker) MoveStopLoss(ctx context.Context, tradeID string, price float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopErr != nil {
		return b.stopErr
	}
	b.stopMoves[tradeID] = price
	return nil
}

type fakeQuotes struct {
	mu     sync.Mutex
	quotes map[string]domain.Quote
	err    error
}

func newFakeQuotes() *fakeQuotes {
	return &fakeQuotes{quotes: make(map[string]domain.Quote)}
}

func (f *fakeQuotes) set(instrument string, bid, ask float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[instrument] = domain.Quote{Instrument: instrument, Bid: bid, Ask: ask, Time: time.Now().UTC()}
}

func (f *fakeQuotes) Get(ctx context.Context, instrument string) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Quote{}, f.err
	}
	q, ok := f.quotes[instrument]
	if !ok {
		return domain.Quote{}, domain.ErrPriceUnavailable
	}
	return q, nil
}

type fakeLedger struct {
	mu        sync.Mutex
	positions map[string]domain.Position
	nextID    int64
	updateErr error
}

func newFakeLedger(positions ...domain.Position) *fakeLedger {
	l := &fakeLedger{positions: make(map[string]domain.Position)}
	for _, p := range positions {
		l.nextID++
		p.ID = l.nextID
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		l.positions[p.BrokerTradeID] = p
	}
	return l
}

func (l *fakeLedger) Upsert(ctx context.Context, pos domain.Position) (domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.positions[pos.BrokerTradeID]; ok {
		return existing, nil
	}
	l.nextID++
	pos.ID = l.nextID
	pos.CreatedAt = time.Now().UTC()
	l.positions[pos.BrokerTradeID] = pos
	return pos, nil
}

func (l *fakeLedger) Update(ctx context.Context, pos domain.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.updateErr != nil {
		return l.updateErr
	}
	if _, ok := l.positions[pos.BrokerTradeID]; !ok {
		return domain.ErrNotFound
	}
	l.positions[pos.BrokerTradeID] = pos
	return nil
}

func (l *fakeLedger) GetByBrokerTradeID(ctx context.Context, id string) (domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (l *fakeLedger) ListByStatus(ctx context.Context, statuses ...domain.PositionStatus) ([]domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Position
	for _, p := range l.positions {
		for _, st := range statuses {
			if p.Status == st {
				out = append(out, p)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BrokerTradeID < out[j].BrokerTradeID })
	return out, nil
}

func (l *fakeLedger) RecentClosed(ctx context.Context, limit int) ([]domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Position
	for _, p := range l.positions {
		if p.Status == domain.PositionStatusClosed {
			out = append(out, p)
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

func (l *fakeLedger) StatisticsSince(ctx context.Context, cutoff time.Time) (domain.Statistics, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var stats domain.Statistics
	for _, p := range l.positions {
		if p.Status != domain.PositionStatusClosed || p.DateClosed == nil || p.DateClosed.Before(cutoff) {
			continue
		}
		stats.TotalTrades++
		if p.IsProfit {
			stats.Wins++
		}
		if p.IsLoss {
			stats.Losses++
		}
	}
	return stats, nil
}

func (l *fakeLedger) ProfitLossTotals(ctx context.Context) (domain.PLTotals, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var totals domain.PLTotals
	for _, p := range l.positions {
		if p.Status != domain.PositionStatusClosed {
			continue
		}
		if p.RealizedPL > 0 {
			totals.TotalProfit += p.RealizedPL
		} else {
			totals.TotalLoss += -p.RealizedPL
		}
	}
	return totals, nil
}

func (l *fakeLedger) DeleteByBrokerTradeIDs(ctx context.Context, ids []string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := l.positions[id]; ok {
			delete(l.positions, id)
			n++
		}
	}
	return n, nil
}

type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: make(map[string]bool)}
}

func (f *fakeLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return nil, domain.ErrLockHeld
	}
	f.held[key] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
	}, nil
}

type fakeBus struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{messages: make(map[string][][]byte)}
}

func (f *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[channel] = append(f.messages[channel], payload)
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeAudit) Log(ctx context.Context, event string, detail map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}
