package features

import (
	"math"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
)

func candlesFromCloses(closes []float64) []models.Candle {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Symbol:    "ETHUSDT",
			Timeframe: "1m",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    10,
		}
	}
	return out
}

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func TestEMASeriesTooShort(t *testing.T) {
	if EMASeries([]float64{1, 2}, 5) != nil {
		t.Fatalf("expected nil for short input")
	}
}

func TestEMASeriesConstant(t *testing.T) {
	vals := []float64{5, 5, 5, 5, 5, 5}
	ema := EMASeries(vals, 3)
	if ema == nil {
		t.Fatalf("expected series")
	}
	if math.Abs(ema[len(ema)-1]-5) > 1e-9 {
		t.Fatalf("constant series should stay constant, got %v", ema[len(ema)-1])
	}
}

func TestRSIAllGains(t *testing.T) {
	v := RSI(rising(30), 14)
	if v == nil {
		t.Fatalf("expected value")
	}
	if *v != 100 {
		t.Fatalf("monotonic rise should read 100, got %v", *v)
	}
}

func TestRSIInsufficient(t *testing.T) {
	if RSI(rising(10), 14) != nil {
		t.Fatalf("expected nil for short input")
	}
}

func TestMACDPositiveInUptrend(t *testing.T) {
	macd, signal := MACD(rising(60), 12, 26, 9)
	if macd == nil || signal == nil {
		t.Fatalf("expected values")
	}
	if *macd <= 0 {
		t.Fatalf("uptrend MACD should be positive, got %v", *macd)
	}
}

func TestATRPct(t *testing.T) {
	v := ATRPct(candlesFromCloses(rising(30)), 14)
	if v == nil {
		t.Fatalf("expected value")
	}
	if *v <= 0 || *v > 10 {
		t.Fatalf("implausible ATR%%: %v", *v)
	}
}

func TestVWAP(t *testing.T) {
	candles := candlesFromCloses([]float64{100, 100, 100})
	got := VWAP(candles)
	if math.Abs(got-100) > 1e-6 {
		t.Fatalf("expected vwap 100, got %v", got)
	}
}

func TestPriceBiasDirections(t *testing.T) {
	if got := PriceBias(rising(60), 10); got != "up" {
		t.Fatalf("expected up, got %q", got)
	}
	falling := make([]float64, 60)
	for i := range falling {
		falling[i] = 200 - float64(i)
	}
	if got := PriceBias(falling, 10); got != "down" {
		t.Fatalf("expected down, got %q", got)
	}
	flat := make([]float64, 60)
	for i := range flat {
		flat[i] = 100
	}
	if got := PriceBias(flat, 10); got != "flat" {
		t.Fatalf("expected flat, got %q", got)
	}
}

func TestBreakout(t *testing.T) {
	closes := append(rising(61), 200)
	if got := Breakout(closes, 60); got != 1 {
		t.Fatalf("expected breakout up, got %v", got)
	}
	closes = append(rising(61), 50)
	if got := Breakout(closes, 60); got != -1 {
		t.Fatalf("expected breakout down, got %v", got)
	}
	if got := Breakout(rising(3), 60); got != 0 {
		t.Fatalf("short series should be neutral, got %v", got)
	}
}

func TestPctChange(t *testing.T) {
	closes := []float64{100, 100, 110}
	if got := PctChange(closes, 2); math.Abs(got-10.0) > 1e-9 {
		t.Fatalf("expected 10%%, got %v", got)
	}
	if got := PctChange(closes, 5); got != 0 {
		t.Fatalf("short series should be 0, got %v", got)
	}
}
