package domain

import (
	"context"
	"time"
)

// QuoteCache provides fast access to recent two-sided quotes.
type QuoteCache interface {
	SetQuote(ctx context.Context, q Quote) error
	GetQuote(ctx context.Context, instrument string) (Quote, error)
}

// LockManager provides distributed locking. Acquire returns ErrLockHeld
// when the key is already locked by another holder.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// PositionLockKey is the advisory-lock key for a position, shared by the
// exit loop and the manual-close request path so the two can never close
// the same trade concurrently.
func PositionLockKey(brokerTradeID string) string {
	return "position:" + brokerTradeID
}

// RateLimiter answers whether a keyed request fits inside a rolling
// request budget.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub fan-out of lifecycle events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
