package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

func TestPriceGetCacheHitSkipsBroker(t *testing.T) {
	cache := newFakeQuoteCache()
	cache.quotes["EUR_USD"] = domain.Quote{Instrument: "EUR_USD", Bid: 1.08, Ask: 1.0802}
	broker := &fakeBroker{quoteErr: errors.New("broker must not be called")}
	s := NewPriceService(broker, cache, testLogger())

	q, err := s.Get(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 1.08, q.Bid)
}

func TestPriceGetMissPopulatesCache(t *testing.T) {
	cache := newFakeQuoteCache()
	broker := &fakeBroker{quotes: map[string]domain.Quote{
		"EUR_USD": {Instrument: "EUR_USD", Bid: 1.08, Ask: 1.0802},
	}}
	s := NewPriceService(broker, cache, testLogger())

	q, err := s.Get(context.Background(), "EUR_USD")
	require.NoError(t, err)
	assert.Equal(t, 1.0802, q.Ask)
	assert.Equal(t, 1, cache.sets)

	// Second call is served from the cache.
	broker.quoteErr = errors.New("broker must not be called")
	_, err = s.Get(context.Background(), "EUR_USD")
	assert.NoError(t, err)
}

func TestPriceGetCacheWriteFailureIsNonFatal(t *testing.T) {
	cache := newFakeQuoteCache()
	cache.setErr = errors.New("redis down")
	broker := &fakeBroker{quotes: map[string]domain.Quote{
		"EUR_USD": {Instrument: "EUR_USD", Bid: 1.08, Ask: 1.0802},
	}}
	s := NewPriceService(broker, cache, testLogger())

	_, err := s.Get(context.Background(), "EUR_USD")
	assert.NoError(t, err)
}

func TestPriceGetUnavailable(t *testing.T) {
	s := NewPriceService(&fakeBroker{}, newFakeQuoteCache(), testLogger())

	_, err := s.Get(context.Background(), "EUR_USD")
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
}
