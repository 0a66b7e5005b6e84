package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/fxbot/internal/domain"
)

// PriceService serves quotes through the cache, falling back to the broker
// and refreshing the cache on a miss.
type PriceService struct {
	broker domain.Broker
	quotes domain.QuoteCache
	logger *slog.Logger
}

// NewPriceService creates a PriceService.
func NewPriceService(broker domain.Broker, quotes domain.QuoteCache, logger *slog.Logger) *PriceService {
	return &PriceService{
		broker: broker,
		quotes: quotes,
		logger: logger,
	}
}

// Get returns the current quote for the instrument, cache first.
func (s *PriceService) Get(ctx context.Context, instrument string) (domain.Quote, error) {
	q, err := s.quotes.GetQuote(ctx, instrument)
	if err == nil {
		return q, nil
	}

	q, err = s.broker.Quote(ctx, instrument)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("price_service: fetch quote %s: %w", instrument, err)
	}

	if cacheErr := s.quotes.SetQuote(ctx, q); cacheErr != nil {
		s.logger.WarnContext(ctx, "price_service: cache quote failed",
			slog.String("instrument", instrument),
			slog.String("error", cacheErr.Error()),
		)
	}
	return q, nil
}
