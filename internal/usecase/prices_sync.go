package usecase

import (
	"context"
	"fmt"

	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/service/prices"
	applogger "MarketPulse/pkg/logger"
)

// PriceSync keeps the local candle table current with the upstream
// klines endpoint. Upserts make overlapping fetch windows harmless.
type PriceSync struct {
	client *prices.Client
	store  domrepo.PriceStore
	l      *applogger.Logger
}

func NewPriceSync(client *prices.Client, store domrepo.PriceStore, l *applogger.Logger) *PriceSync {
	return &PriceSync{client: client, store: store, l: l}
}

func (s *PriceSync) RunOnce(ctx context.Context) error {
	candles, err := s.client.FetchRecent(ctx)
	if err != nil {
		return err
	}
	if len(candles) > 1 {
		// drop the still-open candle so indicators see closed bars only
		candles = candles[:len(candles)-1]
	}
	n, err := s.store.UpsertCandles(ctx, candles)
	if err != nil {
		return fmt.Errorf("store candles: %w", err)
	}
	s.l.Debug("price sync done",
		applogger.String("symbol", s.client.Symbol()),
		applogger.Int("upserted", n),
	)
	return nil
}
