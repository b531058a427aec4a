package features

import (
	"math"
	"testing"

	"MarketPulse/internal/domain/models"
)

func defaultWeights() Weights {
	return Weights{Mentions: 0.35, Sentiment: 0.30, Momentum: 0.25, RSI: 0.05, Breakout: 0.05}
}

func TestAlphaHotScenarioAccumulates(t *testing.T) {
	rsi := 25.0 // oversold adds a positive mean-reversion term
	in := AlphaInput{
		EMA15:       0.8,
		MentionsZ:   2.0,
		HasPrices:   true,
		PctChange15: 1.0,
		PctChange1h: 2.0,
		RSI14:       &rsi,
		Breakout:    1,
		PriceBias:   "up",
	}
	alpha := Alpha(in, defaultWeights())
	if alpha < 0.33 {
		t.Fatalf("hot scenario should clear the accumulate threshold, got %v", alpha)
	}
	if action := Decide(alpha, models.ActionHold, 0.33, -0.33, 0.2, true); action != models.ActionAccumulate {
		t.Fatalf("expected accumulate, got %s", action)
	}
}

func TestAlphaSentimentOnlyFallback(t *testing.T) {
	in := AlphaInput{EMA15: 0.8, MentionsZ: 2.0, HasPrices: false, PctChange15: 5, Breakout: 1}
	alpha := Alpha(in, defaultWeights())
	want := 0.35*2.0 + 0.30*0.8
	if math.Abs(alpha-want) > 1e-9 {
		t.Fatalf("price-derived terms must be dropped without prices: got %v want %v", alpha, want)
	}
}

func TestAlphaRSIBandContribution(t *testing.T) {
	cases := []struct {
		rsi  float64
		want float64
	}{
		{15, 0.5},  // (30-15)/30
		{50, 0},    // inside the band
		{85, -0.5}, // -(85-70)/30
		{100, -1},  // pegged overbought
		{0, 1},     // pegged oversold
	}
	for _, tc := range cases {
		if got := rsiBand(tc.rsi); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("rsiBand(%v) = %v, want %v", tc.rsi, got, tc.want)
		}
	}
}

func TestAlphaTrendBiasScales(t *testing.T) {
	base := AlphaInput{EMA15: 0.5, HasPrices: true}
	neutral := Alpha(base, defaultWeights())

	up := base
	up.PriceBias = "up"
	if got := Alpha(up, defaultWeights()); math.Abs(got-neutral*1.15) > 1e-9 {
		t.Fatalf("up bias should scale by 1.15: got %v base %v", got, neutral)
	}

	down := base
	down.PriceBias = "down"
	if got := Alpha(down, defaultWeights()); math.Abs(got-neutral*0.85) > 1e-9 {
		t.Fatalf("down bias should scale by 0.85: got %v base %v", got, neutral)
	}
}

func TestAlphaVolatilityDampens(t *testing.T) {
	in := AlphaInput{EMA15: 0.5, HasPrices: true}
	neutral := Alpha(in, defaultWeights())

	elevated := 2.5
	in.ATRPct = &elevated
	if got := Alpha(in, defaultWeights()); math.Abs(got-neutral*0.85) > 1e-9 {
		t.Fatalf("elevated volatility should damp by 0.85, got %v", got)
	}

	extreme := 4.5
	in.ATRPct = &extreme
	if got := Alpha(in, defaultWeights()); math.Abs(got-neutral*0.7) > 1e-9 {
		t.Fatalf("extreme volatility should damp by 0.7, got %v", got)
	}
}

func TestAlphaBounded(t *testing.T) {
	in := AlphaInput{EMA15: 1, MentionsZ: 100, HasPrices: true, PctChange15: 50, PctChange1h: 50, Breakout: 1, PriceBias: "up"}
	rsi := 0.0
	in.RSI14 = &rsi
	if alpha := Alpha(in, Weights{Mentions: 5, Sentiment: 5, Momentum: 5, RSI: 5, Breakout: 5}); alpha > 1 {
		t.Fatalf("alpha must clamp to 1, got %v", alpha)
	}
}

func TestDecideThresholds(t *testing.T) {
	if got := Decide(0.5, models.ActionHold, 0.33, -0.33, 0.2, false); got != models.ActionAccumulate {
		t.Fatalf("expected accumulate, got %s", got)
	}
	if got := Decide(-0.5, models.ActionHold, 0.33, -0.33, 0.2, false); got != models.ActionWait {
		t.Fatalf("expected wait, got %s", got)
	}
	if got := Decide(0.1, models.ActionHold, 0.33, -0.33, 0.2, false); got != models.ActionHold {
		t.Fatalf("expected hold, got %s", got)
	}
}

func TestDecideHysteresisSticky(t *testing.T) {
	// alpha dipped below threshold_up but stays above the band:
	// a previous accumulate holds on.
	if got := Decide(0.25, models.ActionAccumulate, 0.33, -0.33, 0.2, true); got != models.ActionAccumulate {
		t.Fatalf("expected sticky accumulate, got %s", got)
	}
	if got := Decide(0.25, models.ActionAccumulate, 0.33, -0.33, 0.2, false); got != models.ActionHold {
		t.Fatalf("hysteresis off should release to hold, got %s", got)
	}
	if got := Decide(-0.25, models.ActionWait, 0.33, -0.33, 0.2, true); got != models.ActionWait {
		t.Fatalf("expected sticky wait, got %s", got)
	}
	if got := Decide(0.1, models.ActionAccumulate, 0.33, -0.33, 0.2, true); got != models.ActionHold {
		t.Fatalf("inside the band the stance releases, got %s", got)
	}
}
