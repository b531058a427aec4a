package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/eventbus"
	"MarketPulse/internal/ingest"
	"MarketPulse/internal/service/oracle"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/pkg/config"
	applogger "MarketPulse/pkg/logger"
)

type fakeItemStore struct {
	mu    sync.Mutex
	items map[string]*models.Item
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{items: make(map[string]*models.Item)}
}

func (s *fakeItemStore) InsertItem(_ context.Context, it *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[it.ID]; ok {
		return domrepo.ErrDuplicateItem
	}
	s.items[it.ID] = it
	return nil
}

func (s *fakeItemStore) HasItem(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[id]
	return ok, nil
}

func (s *fakeItemStore) ListItems(context.Context, int, domrepo.ItemFilter) ([]models.Item, error) {
	return nil, nil
}
func (s *fakeItemStore) ScoresSince(context.Context, string, time.Time) ([]models.ScoreAt, error) {
	return nil, nil
}
func (s *fakeItemStore) CountItemsSince(context.Context, string, time.Time) (int, error) {
	return 0, nil
}
func (s *fakeItemStore) MentionBuckets(context.Context, string, time.Time, time.Duration) (map[int64]int, error) {
	return nil, nil
}
func (s *fakeItemStore) PendingImpact(context.Context, int) ([]models.Item, error) { return nil, nil }
func (s *fakeItemStore) SetImpact(context.Context, string, *float64, *models.ImpactMeta) error {
	return nil
}
func (s *fakeItemStore) TopImpact(context.Context, int, time.Time, models.Source) ([]models.Item, error) {
	return nil, nil
}

type fakeMetrics struct {
	mu      sync.Mutex
	drops   map[string]int
	ingests int
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{drops: make(map[string]int)} }

func (m *fakeMetrics) RecordItemIngested(string) {
	m.mu.Lock()
	m.ingests++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordItemDropped(_, reason string) {
	m.mu.Lock()
	m.drops[reason]++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordOracleFailure(string)    {}
func (m *fakeMetrics) RecordTick(string)             {}
func (m *fakeMetrics) RecordAlpha(string, float64)   {}
func (m *fakeMetrics) RecordLatency(string, float64) {}

type staticSource struct {
	name  string
	items []models.RawItem
}

func (s *staticSource) Name() string                                    { return s.name }
func (s *staticSource) Fetch(context.Context) ([]models.RawItem, error) { return s.items, nil }

func pipelineConfig() *config.Config {
	cfg := &config.Config{Asset: "ETH-USD"}
	cfg.Scoring.BaseURL = "http://127.0.0.1:1" // unreachable: scoring fails open
	cfg.Scoring.Timeout = 100 * time.Millisecond
	r := &cfg.Ingest.Rules
	r.MinTextLen = 10
	r.MaxHashtags = 6
	r.MaxMentions = 4
	r.MaxURLs = 3
	r.MaxUpperRatio = 0.7
	r.MaxSymbolRatio = 0.3
	return cfg
}

func newTestPipeline(t *testing.T, store *fakeItemStore, metrics *fakeMetrics, sources ...ingest.Source) (*Pipeline, *eventbus.Bus) {
	t.Helper()
	cfg := pipelineConfig()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	bus := eventbus.New(100)
	scorer := oracle.NewScorer(cfg, l, metrics)
	classifier := oracle.NewClassifier(cfg, ratelimit.New(), nil, l, metrics)
	deduper := ingest.NewDeduper(store, time.Hour)
	return NewPipeline(sources, ingest.NewRuleSet(cfg), deduper, scorer, classifier, store, bus, metrics, l), bus
}

func TestPipelinePersistsAndDedups(t *testing.T) {
	store := newFakeItemStore()
	metrics := newFakeMetrics()
	now := time.Now().UTC()
	src := &staticSource{name: "feed", items: []models.RawItem{
		{Source: models.SourceFeed, Asset: "ETH-USD", Timestamp: now, Text: "ethereum fees dropping fast across l2s"},
		{Source: models.SourceFeed, Asset: "ETH-USD", Timestamp: now, Text: "Ethereum   fees dropping fast across L2s"}, // same after normalization
		{Source: models.SourceFeed, Asset: "ETH-USD", Timestamp: now, Text: "short"},
	}}
	p, bus := newTestPipeline(t, store, metrics, src)

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(store.items) != 1 {
		t.Fatalf("expected 1 stored item, got %d", len(store.items))
	}
	if metrics.drops["duplicate"] != 1 {
		t.Fatalf("expected 1 duplicate drop, got %d", metrics.drops["duplicate"])
	}
	if metrics.drops[ingest.ReasonTooShort] != 1 {
		t.Fatalf("expected 1 short drop, got %d", metrics.drops[ingest.ReasonTooShort])
	}
	if metrics.ingests != 1 {
		t.Fatalf("expected 1 ingest, got %d", metrics.ingests)
	}
	if bus.LastID() != 1 {
		t.Fatalf("expected 1 bus event, got %d", bus.LastID())
	}
}

func TestPipelineFlagsDegradedOracle(t *testing.T) {
	store := newFakeItemStore()
	src := &staticSource{name: "feed", items: []models.RawItem{
		{Source: models.SourceFeed, Asset: "ETH-USD", Timestamp: time.Now().UTC(), Text: "ethereum fees dropping fast across l2s"},
	}}
	p, _ := newTestPipeline(t, store, newFakeMetrics(), src)

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !p.OracleDegraded() {
		t.Fatalf("unreachable oracle should flag degraded")
	}
	for _, it := range store.items {
		if it.Label != oracle.LabelUnscored || it.Score != 0 {
			t.Fatalf("expected fail-open item, got %+v", it)
		}
	}
}
