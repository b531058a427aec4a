package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
)

// ItemFilter narrows item listings. Zero values mean "no constraint".
type ItemFilter struct {
	Source   models.Source
	Label    string
	Query    string
	MinScore *float64
	MaxScore *float64
	Since    time.Time
	Until    time.Time
	Relevant *bool
	Ascending bool
}

// SignalFilter narrows signal listings.
type SignalFilter struct {
	Action    models.Action
	Since     time.Time
	Until     time.Time
	Ascending bool
}

// ItemStore is the append-only item collection. InsertItem enforces the
// dedup uniqueness constraint on Item.ID; SetImpact fills impact fields
// after the fact and is each horizon's single write.
type ItemStore interface {
	InsertItem(ctx context.Context, it *models.Item) error
	HasItem(ctx context.Context, id string) (bool, error)
	ListItems(ctx context.Context, limit int, f ItemFilter) ([]models.Item, error)
	ScoresSince(ctx context.Context, asset string, since time.Time) ([]models.ScoreAt, error)
	CountItemsSince(ctx context.Context, asset string, since time.Time) (int, error)
	MentionBuckets(ctx context.Context, asset string, since time.Time, bucket time.Duration) (map[int64]int, error)
	PendingImpact(ctx context.Context, limit int) ([]models.Item, error)
	SetImpact(ctx context.Context, id string, impact *float64, meta *models.ImpactMeta) error
	TopImpact(ctx context.Context, limit int, since time.Time, source models.Source) ([]models.Item, error)
}

// SignalStore is the append-only signal collection.
type SignalStore interface {
	InsertSignal(ctx context.Context, sig *models.Signal) error
	LatestSignal(ctx context.Context, asset string) (*models.Signal, error)
	ListSignals(ctx context.Context, asset string, limit int, f SignalFilter) ([]models.Signal, error)
}

// PriceStore holds OHLCV candles from the external price feed.
type PriceStore interface {
	UpsertCandles(ctx context.Context, candles []models.Candle) (int, error)
	GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
}

// Store is the full persistence surface shared across loops.
type Store interface {
	ItemStore
	SignalStore
	PriceStore
	Stats(ctx context.Context, asset string) (models.Stats, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics records operational counters and gauges.
type Metrics interface {
	RecordItemIngested(source string)
	RecordItemDropped(source, reason string)
	RecordOracleFailure(kind string)
	RecordTick(outcome string)
	RecordAlpha(asset string, alpha float64)
	RecordLatency(op string, seconds float64)
}

// Notifier pushes best-effort notifications on action transitions.
type Notifier interface {
	NotifyAction(ctx context.Context, sig *models.Signal, prev models.Action) error
	Close() error
}
