package domain

import "time"

// PositionStatus tracks where a position is in its lifecycle.
type PositionStatus string

const (
	PositionStatusOpen    PositionStatus = "open"
	PositionStatusPartial PositionStatus = "partial"
	PositionStatusClosed  PositionStatus = "closed"
)

// Direction indicates long or short exposure.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Position is a ledger row tracking one broker trade through its lifecycle.
// The broker trade ID is the unique key: upserts on the same ID are
// idempotent.
type Position struct {
	ID            int64
	BrokerTradeID string
	Instrument    string
	Direction     Direction
	EntryPrice    float64
	ClosePrice    *float64
	LotSize       float64
	TP1           float64
	TP2           float64
	SL            float64
	Status        PositionStatus
	TP1Hit        bool
	TP2Hit        bool
	SLHit         bool
	PartialClosed bool
	RealizedPL    float64
	IsProfit      bool
	IsLoss        bool
	DateOpened    time.Time
	DateClosed    *time.Time
	CreatedAt     time.Time
}

// Active reports whether the position still has exposure at the broker.
func (p *Position) Active() bool {
	return p.Status == PositionStatusOpen || p.Status == PositionStatusPartial
}

// MarkTP1 records the first-target partial close: the position moves to
// partial status and its stop is pulled to break-even. The transition is
// one-way; TP1Hit is never cleared.
func (p *Position) MarkTP1(realizedPL float64) {
	p.TP1Hit = true
	p.PartialClosed = true
	p.Status = PositionStatusPartial
	p.SL = p.EntryPrice
	p.RealizedPL += realizedPL
}

// MarkTP2 records the second-target exit, terminally closing the position.
func (p *Position) MarkTP2(closePrice, realizedPL float64, at time.Time) {
	p.TP2Hit = true
	p.terminate(closePrice, realizedPL, at)
}

// MarkSL records a stop-loss exit, terminally closing the position.
func (p *Position) MarkSL(closePrice, realizedPL float64, at time.Time) {
	p.SLHit = true
	p.terminate(closePrice, realizedPL, at)
}

// MarkClosed records a manual full close with no level attribution.
func (p *Position) MarkClosed(closePrice, realizedPL float64, at time.Time) {
	p.terminate(closePrice, realizedPL, at)
}

func (p *Position) terminate(closePrice, realizedPL float64, at time.Time) {
	p.Status = PositionStatusClosed
	p.ClosePrice = &closePrice
	p.RealizedPL += realizedPL
	p.DateClosed = &at
	p.IsProfit = p.RealizedPL > 0
	p.IsLoss = p.RealizedPL < 0
}
