package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	applogger "MarketPulse/pkg/logger"
	pkgsqlite "MarketPulse/pkg/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	client, err := pkgsqlite.NewClient(
		pkgsqlite.WithPath(filepath.Join(t.TempDir(), "test.db")),
		pkgsqlite.WithWAL(false),
	)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	store := NewStore(client, l)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// a second run must be a no-op
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate rerun: %v", err)
	}
	return store
}

func testItem(id string, ts time.Time, score float64) *models.Item {
	return &models.Item{
		ID:        id,
		Source:    models.SourceFeed,
		Asset:     "ETH-USD",
		Timestamp: ts,
		Text:      "ethereum upgrade shipping on schedule",
		Score:     score,
		Label:     "positive",
	}
}

func TestInsertItemDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := store.InsertItem(ctx, testItem("a1", now, 0.5)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := store.InsertItem(ctx, testItem("a1", now, 0.5))
	if !errors.Is(err, domrepo.ErrDuplicateItem) {
		t.Fatalf("expected ErrDuplicateItem, got %v", err)
	}

	has, err := store.HasItem(ctx, "a1")
	if err != nil || !has {
		t.Fatalf("expected item present: %v %v", has, err)
	}
	has, err = store.HasItem(ctx, "missing")
	if err != nil || has {
		t.Fatalf("expected item absent: %v %v", has, err)
	}
}

func TestListItemsFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	a := testItem("a1", now.Add(-2*time.Minute), 0.5)
	b := testItem("b1", now.Add(-time.Minute), -0.4)
	b.Source = models.SourceSocial
	b.Label = "negative"
	if err := store.InsertItem(ctx, a); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if err := store.InsertItem(ctx, b); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	rows, err := store.ListItems(ctx, 10, domrepo.ItemFilter{Source: models.SourceSocial})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "b1" {
		t.Fatalf("unexpected rows %v", rows)
	}

	min := 0.0
	rows, err = store.ListItems(ctx, 10, domrepo.ItemFilter{MinScore: &min})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "a1" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestScoresSinceAscending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for i, id := range []string{"a", "b", "c"} {
		it := testItem(id, now.Add(-time.Duration(3-i)*time.Minute), float64(i))
		if err := store.InsertItem(ctx, it); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	scores, err := store.ScoresSince(ctx, "ETH-USD", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(scores))
	}
	for i := 1; i < len(scores); i++ {
		if scores[i].Timestamp.Before(scores[i-1].Timestamp) {
			t.Fatalf("scores out of order")
		}
	}

	n, err := store.CountItemsSince(ctx, "ETH-USD", now.Add(-150*time.Second))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 recent items, got %d", n)
	}
}

func TestImpactWriteOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := store.InsertItem(ctx, testItem("a1", now, 0.5)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	pending, err := store.PendingImpact(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected 1 pending, got %d (%v)", len(pending), err)
	}

	first := 0.4
	meta := &models.ImpactMeta{Symbol: "ETHUSDT", Timeframe: "1m", P0: 100, P15: 104, Ret15m: 0.04, Sigma15: 0.05, ComputedAt: now}
	if err := store.SetImpact(ctx, "a1", &first, meta); err != nil {
		t.Fatalf("set impact: %v", err)
	}

	// a second write with a different value must not overwrite
	second := -0.9
	if err := store.SetImpact(ctx, "a1", &second, meta); err != nil {
		t.Fatalf("set impact again: %v", err)
	}

	rows, err := store.ListItems(ctx, 10, domrepo.ItemFilter{})
	if err != nil || len(rows) != 1 {
		t.Fatalf("list: %v", err)
	}
	if rows[0].Impact == nil || *rows[0].Impact != first {
		t.Fatalf("impact should keep its first value, got %v", rows[0].Impact)
	}

	// the 60m horizon is still open, so the item stays pending
	pending, err = store.PendingImpact(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected still pending, got %d (%v)", len(pending), err)
	}

	norm60 := 0.2
	meta.Norm60 = &norm60
	if err := store.SetImpact(ctx, "a1", nil, meta); err != nil {
		t.Fatalf("set 60m: %v", err)
	}
	pending, err = store.PendingImpact(ctx, 10)
	if err != nil || len(pending) != 0 {
		t.Fatalf("expected no pending after both horizons, got %d (%v)", len(pending), err)
	}
}

func TestInsertSignalConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC().Truncate(time.Second)

	sig := &models.Signal{Asset: "ETH-USD", Timestamp: ts, EMA15: 0.2, Mentions: 4, MentionsZ: 1.1, Alpha: 0.4, Action: models.ActionAccumulate}
	if err := store.InsertSignal(ctx, sig); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.InsertSignal(ctx, sig); !errors.Is(err, domrepo.ErrTickOverlap) {
		t.Fatalf("expected ErrTickOverlap, got %v", err)
	}

	got, err := store.LatestSignal(ctx, "ETH-USD")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got == nil || got.Action != models.ActionAccumulate || got.Alpha != 0.4 {
		t.Fatalf("unexpected signal %+v", got)
	}

	none, err := store.LatestSignal(ctx, "BTC-USD")
	if err != nil || none != nil {
		t.Fatalf("expected no signal for other asset: %v %v", none, err)
	}
}

func TestUpsertCandlesIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC().Truncate(time.Minute)

	batch := []models.Candle{
		{Symbol: "ETHUSDT", Timeframe: "1m", Timestamp: ts, Open: 1, High: 2, Low: 1, Close: 1.5, Volume: 10},
		{Symbol: "ETHUSDT", Timeframe: "1m", Timestamp: ts.Add(time.Minute), Open: 1.5, High: 2, Low: 1, Close: 1.8, Volume: 12},
	}
	if _, err := store.UpsertCandles(ctx, batch); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// re-upsert with an updated close must replace, not duplicate
	batch[1].Close = 1.9
	if _, err := store.UpsertCandles(ctx, batch); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	candles, err := store.GetCandles(ctx, "ETHUSDT", "1m", ts.Add(-time.Minute), ts.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[1].Close != 1.9 {
		t.Fatalf("expected updated close, got %v", candles[1].Close)
	}
}

func TestMentionBuckets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(15 * time.Minute)

	ids := []string{"a", "b", "c"}
	offsets := []time.Duration{-time.Minute, -2 * time.Minute, -20 * time.Minute}
	for i, id := range ids {
		if err := store.InsertItem(ctx, testItem(id, base.Add(offsets[i]), 0)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	buckets, err := store.MentionBuckets(ctx, "ETH-USD", base.Add(-time.Hour), 15*time.Minute)
	if err != nil {
		t.Fatalf("buckets: %v", err)
	}
	var total int
	for _, n := range buckets {
		total += n
	}
	if total != 3 {
		t.Fatalf("expected 3 items across buckets, got %d", total)
	}
	if len(buckets) < 2 {
		t.Fatalf("expected at least 2 distinct buckets, got %d", len(buckets))
	}
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := store.InsertItem(ctx, testItem("a1", now, 0.6)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	other := testItem("b1", now, -0.8)
	other.Asset = "BTC-USD"
	if err := store.InsertItem(ctx, other); err != nil {
		t.Fatalf("insert other asset: %v", err)
	}

	st, err := store.Stats(ctx, "ETH-USD")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.ItemsTotal != 1 || st.ItemsLast15m != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st.AvgScore1h != 0.6 {
		t.Fatalf("expected avg 0.6, got %v", st.AvgScore1h)
	}

	// the other asset's rows must not bleed in
	st, err = store.Stats(ctx, "BTC-USD")
	if err != nil {
		t.Fatalf("stats btc: %v", err)
	}
	if st.ItemsTotal != 1 || st.AvgScore1h != -0.8 {
		t.Fatalf("unexpected cross-asset stats %+v", st)
	}
}
