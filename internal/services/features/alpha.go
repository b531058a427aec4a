package features

import (
	"math"

	"MarketPulse/internal/domain/models"
)

// Weights are the named contributions to the alpha blend. They come
// from configuration and are expected to sum to roughly 1.
type Weights struct {
	Mentions  float64
	Sentiment float64
	Momentum  float64
	RSI       float64
	Breakout  float64
}

// AlphaInput is the feature vector one tick feeds to the combiner.
// The price-derived fields are ignored when price data was unavailable
// (HasPrices false), in which case the tick decides on sentiment and
// activity alone.
type AlphaInput struct {
	EMA15       float64
	MentionsZ   float64
	HasPrices   bool
	PctChange15 float64 // percent change over the 15-candle lookback
	PctChange1h float64 // percent change over the 60-candle lookback
	RSI14       *float64
	Breakout    float64 // -1, 0, or +1
	PriceBias   string  // "up", "down", or "flat"
	ATRPct      *float64
}

// Alpha blends normalized features into a score in [-1, 1]. Momentum
// z-scores the two percent changes against fixed spreads and blends
// them 60/40; RSI contributes only outside the 30..70 band; the whole
// sum is scaled by a trend-bias multiplier and damped when volatility
// is elevated.
func Alpha(in AlphaInput, w Weights) float64 {
	raw := w.Mentions*clamp(in.MentionsZ, -4, 4) + w.Sentiment*clamp(in.EMA15, -1, 1)
	if in.HasPrices {
		zMom := 0.6*zScore(in.PctChange15, 0.5, 4) + 0.4*zScore(in.PctChange1h, 1.0, 4)
		raw += w.Momentum * zMom
		if in.RSI14 != nil {
			raw += w.RSI * rsiBand(*in.RSI14)
		}
		raw += w.Breakout * 0.5 * clamp(in.Breakout, -1, 1)
	}
	return clamp(raw*biasMultiplier(in.PriceBias)*riskMultiplier(in.ATRPct), -1, 1)
}

// Decide maps alpha to an action. With hysteresis enabled the
// previous action is sticky inside the band, which keeps the decision
// from flapping when alpha hovers around a threshold.
func Decide(alpha float64, prev models.Action, up, down, band float64, hysteresis bool) models.Action {
	switch {
	case alpha >= up:
		return models.ActionAccumulate
	case alpha <= down:
		return models.ActionWait
	}
	if hysteresis {
		if prev == models.ActionAccumulate && alpha > band {
			return models.ActionAccumulate
		}
		if prev == models.ActionWait && alpha < -band {
			return models.ActionWait
		}
	}
	return models.ActionHold
}

func zScore(x, sigma, clip float64) float64 {
	if sigma <= 1e-9 {
		return 0
	}
	return clamp(x/sigma, -clip, clip)
}

// rsiBand maps oversold RSI to a positive mean-reversion term and
// overbought RSI to a negative one; the 30..70 band contributes zero.
func rsiBand(rsi float64) float64 {
	switch {
	case rsi < 30:
		return (30 - rsi) / 30
	case rsi > 70:
		return -(rsi - 70) / 30
	default:
		return 0
	}
}

func biasMultiplier(bias string) float64 {
	switch bias {
	case "up":
		return 1.15
	case "down":
		return 0.85
	default:
		return 1.0
	}
}

func riskMultiplier(atrPct *float64) float64 {
	if atrPct == nil {
		return 1.0
	}
	switch {
	case *atrPct > 4.0:
		return 0.7
	case *atrPct > 2.0:
		return 0.85
	default:
		return 1.0
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
