package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/eventbus"
	"MarketPulse/internal/ingest"
	"MarketPulse/internal/service/oracle"
	applogger "MarketPulse/pkg/logger"
)

// Pipeline runs one ingestion pass per source: fetch, filter, dedup,
// score, classify, persist, publish. A failed item never aborts the
// batch; a failed source fails the pass so the loop runner backs off.
type Pipeline struct {
	sources    []ingest.Source
	rules      *ingest.RuleSet
	deduper    *ingest.Deduper
	scorer     *oracle.Scorer
	classifier *oracle.Classifier
	store      domrepo.ItemStore
	bus        *eventbus.Bus
	metrics    domrepo.Metrics
	l          *applogger.Logger

	degraded atomic.Bool
}

func NewPipeline(
	sources []ingest.Source,
	rules *ingest.RuleSet,
	deduper *ingest.Deduper,
	scorer *oracle.Scorer,
	classifier *oracle.Classifier,
	store domrepo.ItemStore,
	bus *eventbus.Bus,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *Pipeline {
	return &Pipeline{
		sources:    sources,
		rules:      rules,
		deduper:    deduper,
		scorer:     scorer,
		classifier: classifier,
		store:      store,
		bus:        bus,
		metrics:    metrics,
		l:          l,
	}
}

// OracleDegraded reports whether the last pass saw only unscored
// items, meaning the scoring service is likely down.
func (p *Pipeline) OracleDegraded() bool { return p.degraded.Load() }

// RunOnce performs a full ingestion pass across all sources.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	var firstErr error
	for _, src := range p.sources {
		if err := p.runSource(ctx, src); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("source %s: %w", src.Name(), err)
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return firstErr
}

func (p *Pipeline) runSource(ctx context.Context, src ingest.Source) error {
	raws, err := src.Fetch(ctx)
	if err != nil {
		return err
	}

	accepted, unscored := 0, 0
	for i := range raws {
		raw := &raws[i]
		if reason, ok := p.rules.Evaluate(raw); !ok {
			p.metrics.RecordItemDropped(src.Name(), reason)
			continue
		}

		id := ingest.ItemID(raw.Text, raw.Source, raw.Asset)
		if p.deduper.Seen(ctx, id) {
			p.metrics.RecordItemDropped(src.Name(), "duplicate")
			continue
		}

		score, label := p.scorer.Score(ctx, raw.Text, raw.Asset)
		if label == oracle.LabelUnscored {
			unscored++
		}

		item := &models.Item{
			ID:        id,
			Source:    raw.Source,
			Asset:     raw.Asset,
			Timestamp: raw.Timestamp,
			Text:      raw.Text,
			Score:     score,
			Label:     label,
			URL:       raw.URL,
			Relevance: p.classifier.Classify(ctx, id, raw.Text, raw.Asset),
		}

		if err := p.store.InsertItem(ctx, item); err != nil {
			if errors.Is(err, domrepo.ErrDuplicateItem) {
				p.deduper.Mark(id)
				p.metrics.RecordItemDropped(src.Name(), "duplicate")
				continue
			}
			p.l.Error("item persist failed", applogger.Error(err), applogger.String("item", id))
			continue
		}
		p.deduper.Mark(id)
		p.metrics.RecordItemIngested(src.Name())
		accepted++

		p.bus.Publish(models.EventItem, fmt.Sprintf("%s item accepted (%s)", src.Name(), item.Label), map[string]any{
			"id":     item.ID,
			"source": string(item.Source),
			"score":  item.Score,
			"label":  item.Label,
		})
	}

	// All-unscored batches flag the oracle as degraded; an empty batch
	// keeps the previous verdict.
	if accepted > 0 {
		p.degraded.Store(unscored == accepted)
	}

	p.l.Info("ingest pass done",
		applogger.String("source", src.Name()),
		applogger.Int("fetched", len(raws)),
		applogger.Int("accepted", accepted),
	)
	return nil
}
