package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/config"
	applogger "MarketPulse/pkg/logger"
)

const (
	impactSigmaWindow = 120 // candles feeding the return stddev
	horizonShort      = 15 * time.Minute
	horizonLong       = 60 * time.Minute
)

// ImpactCalculator fills deferred impact horizons: for each item,
// the realized forward return at +15m and +60m normalized by trailing
// realized volatility. Each horizon is written once; items whose
// price history is still insufficient are simply retried on a later
// pass.
type ImpactCalculator struct {
	symbol     string
	timeframe  string
	step       time.Duration
	batchLimit int
	store      domrepo.Store
	metrics    domrepo.Metrics
	l          *applogger.Logger
}

func NewImpactCalculator(cfg *config.Config, store domrepo.Store, metrics domrepo.Metrics, l *applogger.Logger) *ImpactCalculator {
	return &ImpactCalculator{
		symbol:     cfg.Prices.Symbol,
		timeframe:  cfg.Prices.Timeframe,
		step:       timeframeStep(cfg.Prices.Timeframe),
		batchLimit: cfg.Impact.BatchLimit,
		store:      store,
		metrics:    metrics,
		l:          l,
	}
}

// RunOnce processes one batch of items with unfilled horizons.
func (ic *ImpactCalculator) RunOnce(ctx context.Context) error {
	items, err := ic.store.PendingImpact(ctx, ic.batchLimit)
	if err != nil {
		return fmt.Errorf("load pending: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	now := time.Now().UTC()
	start := time.Now()
	written := 0
	for i := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ok, err := ic.evaluate(ctx, &items[i], now)
		if err != nil {
			if errors.Is(err, domrepo.ErrInsufficientHistory) {
				ic.l.Debug("impact deferred", applogger.String("item", items[i].ID))
			} else {
				ic.l.Warn("impact evaluation failed", applogger.Error(err), applogger.String("item", items[i].ID))
			}
			continue
		}
		if ok {
			written++
		}
	}
	ic.metrics.RecordLatency("impact_batch", time.Since(start).Seconds())
	if written > 0 {
		ic.l.Info("impact batch done",
			applogger.Int("pending", len(items)),
			applogger.Int("written", written),
		)
	}
	return nil
}

// evaluate attempts to fill the matured, still-empty horizons of one
// item. Returns true when something was written.
func (ic *ImpactCalculator) evaluate(ctx context.Context, it *models.Item, now time.Time) (bool, error) {
	t0 := it.Timestamp
	if now.Before(t0.Add(horizonShort).Add(ic.step)) {
		return false, nil // nothing matured yet
	}

	from := t0.Add(-time.Duration(impactSigmaWindow+5) * ic.step)
	to := t0.Add(horizonLong).Add(2 * ic.step)
	candles, err := ic.store.GetCandles(ctx, ic.symbol, ic.timeframe, from, to)
	if err != nil {
		return false, fmt.Errorf("load candles: %w", err)
	}
	if len(candles) < impactSigmaWindow {
		// retried once history has accumulated
		return false, domrepo.ErrInsufficientHistory
	}

	p0, ok := closeAt(candles, t0, ic.step)
	if !ok || p0 <= 0 {
		return false, nil
	}

	meta := it.Meta
	if meta == nil {
		meta = &models.ImpactMeta{Symbol: ic.symbol, Timeframe: ic.timeframe, P0: p0}
	}

	wrote := false

	if it.Impact == nil {
		p15, ok := closeAt(candles, t0.Add(horizonShort), ic.step)
		if !ok {
			return false, nil
		}
		sigma15 := kStepSigma(candles, int(horizonShort/ic.step))
		ret15 := (p15 - p0) / p0
		norm15 := normalizeReturn(ret15, sigma15)

		meta.P15 = p15
		meta.Ret15m = ret15
		meta.Sigma15 = sigma15
		meta.ComputedAt = time.Now().UTC()
		if err := ic.store.SetImpact(ctx, it.ID, &norm15, meta); err != nil {
			return false, err
		}
		it.Impact = &norm15
		wrote = true
	}

	if meta.Norm60 == nil && !now.Before(t0.Add(horizonLong).Add(ic.step)) {
		p60, ok := closeAt(candles, t0.Add(horizonLong), ic.step)
		if ok {
			sigma60 := kStepSigma(candles, int(horizonLong/ic.step))
			ret60 := (p60 - p0) / p0
			norm60 := normalizeReturn(ret60, sigma60)

			meta.P60 = &p60
			meta.Ret60m = &ret60
			meta.Sigma60 = sigma60
			meta.Norm60 = &norm60
			meta.ComputedAt = time.Now().UTC()
			if err := ic.store.SetImpact(ctx, it.ID, nil, meta); err != nil {
				return wrote, err
			}
			wrote = true
		}
	}

	return wrote, nil
}

// normalizeReturn maps a raw return into [-1, 1] against two sigmas
// of trailing volatility.
func normalizeReturn(ret, sigma float64) float64 {
	if sigma <= 0 {
		if ret > 0 {
			return 1
		}
		if ret < 0 {
			return -1
		}
		return 0
	}
	v := ret / (2 * sigma)
	return math.Max(-1, math.Min(1, v))
}

// closeAt returns the close of the last candle opening at or before
// t. A candle older than one step beyond t does not count; the data
// has a hole there.
func closeAt(candles []models.Candle, t time.Time, step time.Duration) (float64, bool) {
	for i := len(candles) - 1; i >= 0; i-- {
		ts := candles[i].Timestamp
		if !ts.After(t) {
			if t.Sub(ts) > 2*step {
				return 0, false
			}
			return candles[i].Close, true
		}
	}
	return 0, false
}

// kStepSigma is the standard deviation of k-step fractional returns
// over the trailing sigma window.
func kStepSigma(candles []models.Candle, k int) float64 {
	if k <= 0 || len(candles) <= k {
		return 0
	}
	start := len(candles) - impactSigmaWindow
	if start < k {
		start = k
	}
	var rets []float64
	for i := start; i < len(candles); i++ {
		prev := candles[i-k].Close
		if prev <= 0 {
			continue
		}
		rets = append(rets, (candles[i].Close-prev)/prev)
	}
	if len(rets) < 2 {
		return 0
	}
	var sum float64
	for _, r := range rets {
		sum += r
	}
	mean := sum / float64(len(rets))
	var sq float64
	for _, r := range rets {
		d := r - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(rets)-1))
}

func timeframeStep(tf string) time.Duration {
	switch tf {
	case "1s":
		return time.Second
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	default:
		return time.Minute
	}
}
