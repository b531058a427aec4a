package usecase

import (
	"math"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
)

func impactCandles(n int, price float64) []models.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Symbol:    "ETHUSDT",
			Timeframe: "1m",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Close:     price,
		}
	}
	return out
}

func TestNormalizeReturnClamps(t *testing.T) {
	if got := normalizeReturn(0.10, 0.01); got != 1 {
		t.Fatalf("large positive return should clamp to 1, got %v", got)
	}
	if got := normalizeReturn(-0.10, 0.01); got != -1 {
		t.Fatalf("large negative return should clamp to -1, got %v", got)
	}
	if got := normalizeReturn(0.01, 0.01); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("one sigma should map to 0.5, got %v", got)
	}
}

func TestNormalizeReturnZeroSigma(t *testing.T) {
	if got := normalizeReturn(0.02, 0); got != 1 {
		t.Fatalf("positive return on dead volatility reads 1, got %v", got)
	}
	if got := normalizeReturn(0, 0); got != 0 {
		t.Fatalf("flat return reads 0, got %v", got)
	}
}

func TestKStepSigmaConstantPrices(t *testing.T) {
	if got := kStepSigma(impactCandles(150, 100), 15); got != 0 {
		t.Fatalf("constant prices have zero sigma, got %v", got)
	}
}

func TestKStepSigmaInsufficient(t *testing.T) {
	if got := kStepSigma(impactCandles(10, 100), 15); got != 0 {
		t.Fatalf("expected 0 for short history, got %v", got)
	}
}

func TestCloseAtExactAndEarlier(t *testing.T) {
	candles := impactCandles(30, 100)
	target := candles[10].Timestamp

	if p, ok := closeAt(candles, target, time.Minute); !ok || p != 100 {
		t.Fatalf("exact match failed: %v %v", p, ok)
	}
	if p, ok := closeAt(candles, target.Add(30*time.Second), time.Minute); !ok || p != 100 {
		t.Fatalf("mid-candle lookup failed: %v %v", p, ok)
	}
}

func TestCloseAtRejectsHole(t *testing.T) {
	candles := impactCandles(30, 100)
	// a timestamp far past the last candle means the data has a hole
	if _, ok := closeAt(candles, candles[29].Timestamp.Add(10*time.Minute), time.Minute); ok {
		t.Fatalf("expected miss beyond the data edge")
	}
}

func TestCloseAtBeforeHistory(t *testing.T) {
	candles := impactCandles(30, 100)
	if _, ok := closeAt(candles, candles[0].Timestamp.Add(-time.Hour), time.Minute); ok {
		t.Fatalf("expected miss before history")
	}
}

func TestTimeframeStep(t *testing.T) {
	if timeframeStep("1m") != time.Minute {
		t.Fatalf("1m step")
	}
	if timeframeStep("unknown") != time.Minute {
		t.Fatalf("unknown timeframe defaults to a minute")
	}
}

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	max := 5 * time.Minute
	b := nextBackoff(0, time.Minute, max)
	if b != time.Minute {
		t.Fatalf("first backoff should start at the interval, got %v", b)
	}
	for i := 0; i < 10; i++ {
		b = nextBackoff(b, time.Minute, max)
	}
	if b != max {
		t.Fatalf("backoff should cap at %v, got %v", max, b)
	}
}
