package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/eventbus"
	"MarketPulse/internal/services/features"
	"MarketPulse/pkg/config"
	applogger "MarketPulse/pkg/logger"
)

const (
	momentumLookbackShort = 15 // candles
	momentumLookbackLong  = 60

	// a tick this far from neutral is always published, throttle or not
	emitAlphaBand = 0.66
)

// SignalComputer derives one decision row per tick from the persisted
// item and price windows. Ticks are mutually exclusive: if a tick is
// still running when the next fires, the new one is skipped, not
// queued.
type SignalComputer struct {
	asset      string
	symbol     string
	timeframe  string
	window     time.Duration
	halfLife   time.Duration
	baseline   time.Duration
	weights    features.Weights
	up, down   float64
	band       float64
	hysteresis bool
	emitEvery  time.Duration

	store    domrepo.Store
	pipeline *Pipeline
	bus      *eventbus.Bus
	notifier domrepo.Notifier
	metrics  domrepo.Metrics
	l        *applogger.Logger

	tickMu sync.Mutex

	mu         sync.RWMutex
	state      models.State
	prevAction models.Action
	lastEmit   time.Time
}

func NewSignalComputer(
	cfg *config.Config,
	store domrepo.Store,
	pipeline *Pipeline,
	bus *eventbus.Bus,
	notifier domrepo.Notifier,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *SignalComputer {
	w := cfg.Signal.Weights
	return &SignalComputer{
		asset:      cfg.Asset,
		symbol:     cfg.Prices.Symbol,
		timeframe:  cfg.Prices.Timeframe,
		window:     cfg.Signal.Window,
		halfLife:   cfg.Signal.HalfLife,
		baseline:   time.Duration(cfg.Signal.BaselineDays) * 24 * time.Hour,
		weights:    features.Weights{Mentions: w.Mentions, Sentiment: w.Sentiment, Momentum: w.Momentum, RSI: w.RSI, Breakout: w.Breakout},
		up:         cfg.Signal.ThresholdUp,
		down:       cfg.Signal.ThresholdDown,
		band:       cfg.Signal.HysteresisBand,
		hysteresis: cfg.Signal.Hysteresis == nil || *cfg.Signal.Hysteresis,
		emitEvery:  cfg.Signal.EmitInterval,
		store:      store,
		pipeline:   pipeline,
		bus:        bus,
		notifier:   notifier,
		metrics:    metrics,
		l:          l,
		prevAction: models.ActionHold,
		state:      models.State{Asset: cfg.Asset, Action: models.ActionHold},
	}
}

// State returns the latest live snapshot.
func (c *SignalComputer) State() models.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Tick runs one signal computation. A tick that would overlap a
// running one is skipped and logged.
func (c *SignalComputer) Tick(ctx context.Context) error {
	if !c.tickMu.TryLock() {
		c.metrics.RecordTick("overlap")
		c.l.Warn("signal tick overlapped previous tick, skipping",
			applogger.String("asset", c.asset),
		)
		return nil
	}
	defer c.tickMu.Unlock()

	start := time.Now()
	err := c.compute(ctx, start.UTC().Truncate(time.Second))
	c.metrics.RecordLatency("signal_tick", time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordTick("error")
		return err
	}
	c.metrics.RecordTick("ok")
	return nil
}

func (c *SignalComputer) compute(ctx context.Context, now time.Time) error {
	scores, err := c.store.ScoresSince(ctx, c.asset, now.Add(-c.window))
	if err != nil {
		return fmt.Errorf("load scores: %w", err)
	}
	ema := features.SmoothedSentiment(scores, c.halfLife)

	mentions, err := c.store.CountItemsSince(ctx, c.asset, now.Add(-c.window))
	if err != nil {
		return fmt.Errorf("count mentions: %w", err)
	}

	buckets, err := c.store.MentionBuckets(ctx, c.asset, now.Add(-c.baseline), c.window)
	if err != nil {
		return fmt.Errorf("load baseline: %w", err)
	}
	// The bucket still being filled would bias the baseline toward now.
	delete(buckets, now.Unix()/int64(c.window/time.Second))
	mean, stddev := features.BaselineStats(buckets)
	z := features.MentionsZ(mentions, mean, stddev)

	technical, pct15, pct1h, breakout := c.technical(ctx, now)

	in := features.AlphaInput{
		EMA15:       ema,
		MentionsZ:   z,
		HasPrices:   technical != nil,
		PctChange15: pct15,
		PctChange1h: pct1h,
		Breakout:    breakout,
	}
	if technical != nil {
		in.RSI14 = technical.RSI14
		in.PriceBias = technical.PriceBias
		in.ATRPct = technical.ATRPct
	}
	alpha := features.Alpha(in, c.weights)

	c.mu.RLock()
	prev := c.prevAction
	c.mu.RUnlock()
	action := features.Decide(alpha, prev, c.up, c.down, c.band, c.hysteresis)

	sig := &models.Signal{
		Asset:     c.asset,
		Timestamp: now,
		EMA15:     ema,
		Mentions:  mentions,
		MentionsZ: z,
		Alpha:     alpha,
		Action:    action,
		Technical: technical,
	}
	if err := c.store.InsertSignal(ctx, sig); err != nil {
		return fmt.Errorf("persist signal: %w", err)
	}
	c.metrics.RecordAlpha(c.asset, alpha)

	c.publish(ctx, sig, prev, mean)
	return nil
}

// technical computes indicator values from recent candles. Returns a
// nil Technical when price history is missing so the decision falls
// back to sentiment only.
func (c *SignalComputer) technical(ctx context.Context, now time.Time) (*models.Technical, float64, float64, float64) {
	candles, err := c.store.GetCandles(ctx, c.symbol, c.timeframe, now.Add(-6*time.Hour), now)
	if err != nil {
		c.l.Warn("candle load failed, sentiment-only tick", applogger.Error(err))
		return nil, 0, 0, 0
	}
	if len(candles) < 2 {
		return nil, 0, 0, 0
	}

	closes := features.Closes(candles)
	macd, macdSignal := features.MACD(closes, 12, 26, 9)
	t := &models.Technical{
		PriceClose: closes[len(closes)-1],
		RSI14:      features.RSI(closes, 14),
		MACD:       macd,
		MACDSignal: macdSignal,
		ATRPct:     features.ATRPct(candles, 14),
		PriceBias:  features.PriceBias(closes, 10),
	}
	return t,
		features.PctChange(closes, momentumLookbackShort),
		features.PctChange(closes, momentumLookbackLong),
		features.Breakout(closes, 60)
}

func (c *SignalComputer) publish(ctx context.Context, sig *models.Signal, prev models.Action, baseline float64) {
	changed := sig.Action != prev
	crosses := changed || math.Abs(sig.Alpha) >= emitAlphaBand

	c.mu.Lock()
	c.prevAction = sig.Action
	c.state = models.State{
		Asset:          sig.Asset,
		EMA15:          sig.EMA15,
		Mentions15m:    sig.Mentions,
		Baseline7d:     baseline,
		Action:         sig.Action,
		OracleDegraded: c.pipeline.OracleDegraded(),
		UpdatedAt:      sig.Timestamp,
	}
	throttled := !crosses && time.Since(c.lastEmit) < c.emitEvery
	if !throttled {
		c.lastEmit = time.Now()
	}
	c.mu.Unlock()

	if !throttled {
		c.bus.Publish(models.EventSignal, fmt.Sprintf("%s alpha %.3f -> %s", sig.Asset, sig.Alpha, sig.Action), map[string]any{
			"asset":      sig.Asset,
			"alpha":      sig.Alpha,
			"action":     string(sig.Action),
			"ema15":      sig.EMA15,
			"mentions":   sig.Mentions,
			"mentions_z": sig.MentionsZ,
		})
	}

	if changed {
		c.bus.Publish(models.EventState, fmt.Sprintf("%s action %s -> %s", sig.Asset, prev, sig.Action), map[string]any{
			"asset":    sig.Asset,
			"previous": string(prev),
			"action":   string(sig.Action),
			"alpha":    sig.Alpha,
		})
		if err := c.notifier.NotifyAction(ctx, sig, prev); err != nil {
			// best effort only, the signal row is already durable
			c.l.Debug("action notification dropped", applogger.Error(err))
		}
	}
}
