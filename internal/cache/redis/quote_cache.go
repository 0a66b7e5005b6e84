package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

// QuoteCache implements domain.QuoteCache using Redis hashes. Each
// instrument's quote is stored at key "quote:{instrument}" with fields
// "bid", "ask" and "ts" (Unix nanosecond timestamp), expiring after the
// configured TTL so the engine never acts on stale prices.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func quoteKey(instrument string) string {
	return "quote:" + domain.NormalizeInstrument(instrument)
}

// SetQuote stores the latest quote for an instrument.
func (qc *QuoteCache) SetQuote(ctx context.Context, q domain.Quote) error {
	key := quoteKey(q.Instrument)
	fields := map[string]interface{}{
		"bid": strconv.FormatFloat(q.Bid, 'f', -1, 64),
		"ask": strconv.FormatFloat(q.Ask, 'f', -1, 64),
		"ts":  strconv.FormatInt(q.Time.UnixNano(), 10),
	}

	pipe := qc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, qc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", q.Instrument, err)
	}
	return nil
}

// GetQuote retrieves the latest quote for an instrument. It returns
// domain.ErrNotFound when no fresh quote is cached.
func (qc *QuoteCache) GetQuote(ctx context.Context, instrument string) (domain.Quote, error) {
	key := quoteKey(instrument)
	vals, err := qc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", instrument, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	bid, err := strconv.ParseFloat(vals["bid"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse bid for %s: %w", instrument, err)
	}
	ask, err := strconv.ParseFloat(vals["ask"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse ask for %s: %w", instrument, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse ts for %s: %w", instrument, err)
	}

	return domain.Quote{
		Instrument: domain.NormalizeInstrument(instrument),
		Bid:        bid,
		Ask:        ask,
		Time:       time.Unix(0, tsNano),
	}, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
