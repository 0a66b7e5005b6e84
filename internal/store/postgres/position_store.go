package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, broker_trade_id, instrument, direction,
	entry_price, close_price, lot_size, tp1, tp2, sl,
	status, tp1_hit, tp2_hit, sl_hit, partial_closed,
	realized_pl, is_profit, is_loss, date_opened, date_closed, created_at`

func scanPositionRow(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var direction, status string

	err := row.Scan(
		&p.ID, &p.BrokerTradeID, &p.Instrument, &direction,
		&p.EntryPrice, &p.ClosePrice, &p.LotSize, &p.TP1, &p.TP2, &p.SL,
		&status, &p.TP1Hit, &p.TP2Hit, &p.SLHit, &p.PartialClosed,
		&p.RealizedPL, &p.IsProfit, &p.IsLoss, &p.DateOpened, &p.DateClosed, &p.CreatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Direction = domain.Direction(direction)
	p.Status = domain.PositionStatus(status)
	return p, nil
}

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Upsert inserts the position keyed by its broker trade ID. When a row for
// the same broker trade already exists the existing row is returned
// untouched, making repeated upserts of the same trade idempotent.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) (domain.Position, error) {
	const query = `
		INSERT INTO positions (
			broker_trade_id, instrument, direction,
			entry_price, close_price, lot_size, tp1, tp2, sl,
			status, tp1_hit, tp2_hit, sl_hit, partial_closed,
			realized_pl, is_profit, is_loss, date_opened, date_closed
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19
		)
		ON CONFLICT (broker_trade_id) DO NOTHING
		RETURNING ` + positionSelectCols

	row := s.pool.QueryRow(ctx, query,
		p.BrokerTradeID, p.Instrument, string(p.Direction),
		p.EntryPrice, p.ClosePrice, p.LotSize, p.TP1, p.TP2, p.SL,
		string(p.Status), p.TP1Hit, p.TP2Hit, p.SLHit, p.PartialClosed,
		p.RealizedPL, p.IsProfit, p.IsLoss, p.DateOpened, p.DateClosed,
	)

	inserted, err := scanPositionRow(row)
	if err == nil {
		return inserted, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Position{}, storeErr("upsert position "+p.BrokerTradeID, err)
	}

	// Conflict path: the row already exists.
	return s.GetByBrokerTradeID(ctx, p.BrokerTradeID)
}

// Update replaces all mutable fields of a position, keyed by broker trade ID.
func (s *PositionStore) Update(ctx context.Context, p domain.Position) error {
	const query = `
		UPDATE positions SET
			instrument     = $2,
			direction      = $3,
			entry_price    = $4,
			close_price    = $5,
			lot_size       = $6,
			tp1            = $7,
			tp2            = $8,
			sl             = $9,
			status         = $10,
			tp1_hit        = $11,
			tp2_hit        = $12,
			sl_hit         = $13,
			partial_closed = $14,
			realized_pl    = $15,
			is_profit      = $16,
			is_loss        = $17,
			date_closed    = $18,
			updated_at     = NOW()
		WHERE broker_trade_id = $1`

	tag, err := s.pool.Exec(ctx, query,
		p.BrokerTradeID, p.Instrument, string(p.Direction),
		p.EntryPrice, p.ClosePrice, p.LotSize, p.TP1, p.TP2, p.SL,
		string(p.Status), p.TP1Hit, p.TP2Hit, p.SLHit, p.PartialClosed,
		p.RealizedPL, p.IsProfit, p.IsLoss, p.DateClosed,
	)
	if err != nil {
		return storeErr("update position "+p.BrokerTradeID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByBrokerTradeID retrieves a single position by its broker trade ID.
func (s *PositionStore) GetByBrokerTradeID(ctx context.Context, brokerTradeID string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE broker_trade_id = $1`, brokerTradeID)

	p, err := scanPositionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, storeErr("get position "+brokerTradeID, err)
	}
	return p, nil
}

// ListByStatus returns positions whose status is in the given set, oldest
// first.
func (s *PositionStore) ListByStatus(ctx context.Context, statuses ...domain.PositionStatus) ([]domain.Position, error) {
	set := make([]string, len(statuses))
	for i, st := range statuses {
		set[i] = string(st)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE status = ANY($1)
		 ORDER BY date_opened ASC`, set)
	if err != nil {
		return nil, storeErr("list positions by status", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, storeErr("scan positions by status", err)
	}
	return positions, nil
}

// RecentClosed returns closed positions ordered by close time descending,
// ties broken by creation order descending.
func (s *PositionStore) RecentClosed(ctx context.Context, limit int) ([]domain.Position, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE status = 'closed'
		 ORDER BY date_closed DESC NULLS LAST, created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, storeErr("list recent closed positions", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, storeErr("scan recent closed positions", err)
	}
	return positions, nil
}

// StatisticsSince aggregates win/loss counts over positions closed at or
// after the cutoff.
func (s *PositionStore) StatisticsSince(ctx context.Context, cutoff time.Time) (domain.Statistics, error) {
	const query = `
		SELECT
			COUNT(*) FILTER (WHERE is_profit),
			COUNT(*) FILTER (WHERE is_loss),
			COUNT(*)
		FROM positions
		WHERE status = 'closed' AND date_closed >= $1`

	var stats domain.Statistics
	err := s.pool.QueryRow(ctx, query, cutoff).Scan(&stats.Wins, &stats.Losses, &stats.TotalTrades)
	if err != nil {
		return domain.Statistics{}, storeErr("position statistics", err)
	}
	return stats, nil
}

// ProfitLossTotals sums positive realized P/L and the magnitude of negative
// realized P/L over all closed positions.
func (s *PositionStore) ProfitLossTotals(ctx context.Context) (domain.PLTotals, error) {
	const query = `
		SELECT
			COALESCE(SUM(realized_pl) FILTER (WHERE realized_pl > 0), 0),
			COALESCE(SUM(-realized_pl) FILTER (WHERE realized_pl < 0), 0)
		FROM positions
		WHERE status = 'closed'`

	var totals domain.PLTotals
	err := s.pool.QueryRow(ctx, query).Scan(&totals.TotalProfit, &totals.TotalLoss)
	if err != nil {
		return domain.PLTotals{}, storeErr("profit loss totals", err)
	}
	return totals, nil
}

// DeleteByBrokerTradeIDs bulk-deletes positions by broker trade ID and
// returns how many rows were removed. Used for orphan cleanup.
func (s *PositionStore) DeleteByBrokerTradeIDs(ctx context.Context, brokerTradeIDs []string) (int64, error) {
	if len(brokerTradeIDs) == 0 {
		return 0, nil
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM positions WHERE broker_trade_id = ANY($1)`, brokerTradeIDs)
	if err != nil {
		return 0, storeErr("delete positions", err)
	}
	return tag.RowsAffected(), nil
}

// ListClosedBefore returns closed positions whose close time is strictly
// before the cutoff. Used by the archiver.
func (s *PositionStore) ListClosedBefore(ctx context.Context, before time.Time) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE status = 'closed' AND date_closed < $1
		 ORDER BY date_closed ASC`, before)
	if err != nil {
		return nil, storeErr("list closed positions before cutoff", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, storeErr("scan closed positions before cutoff", err)
	}
	return positions, nil
}

// storeErr wraps an unexpected database failure with the ledger taxonomy
// sentinel so callers can classify it without inspecting driver errors.
func storeErr(op string, err error) error {
	return fmt.Errorf("postgres: %s: %w: %w", op, domain.ErrLedgerUnavailable, err)
}
