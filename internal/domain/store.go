package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// Statistics summarizes closed-position outcomes since a cutoff.
type Statistics struct {
	Wins        int64
	Losses      int64
	TotalTrades int64
}

// PLTotals aggregates realized profit and loss across closed positions.
// TotalLoss is reported as a positive magnitude.
type PLTotals struct {
	TotalProfit float64
	TotalLoss   float64
}

// PositionStore persists the position ledger.
type PositionStore interface {
	// Upsert inserts the position or, when a row with the same broker
	// trade ID already exists, leaves the existing row in place. Repeated
	// upserts of the same broker trade never create duplicates.
	Upsert(ctx context.Context, pos Position) (Position, error)
	Update(ctx context.Context, pos Position) error
	GetByBrokerTradeID(ctx context.Context, brokerTradeID string) (Position, error)
	ListByStatus(ctx context.Context, statuses ...PositionStatus) ([]Position, error)
	RecentClosed(ctx context.Context, limit int) ([]Position, error)
	StatisticsSince(ctx context.Context, cutoff time.Time) (Statistics, error)
	ProfitLossTotals(ctx context.Context) (PLTotals, error)
	DeleteByBrokerTradeIDs(ctx context.Context, brokerTradeIDs []string) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
