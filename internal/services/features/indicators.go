package features

import (
	"math"

	"MarketPulse/internal/domain/models"
)

// EMASeries computes an exponential moving average with the standard
// smoothing k = 2/(period+1). Returns nil when values is shorter than
// period.
func EMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, len(values))
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
		out[i] = sum / float64(i+1)
	}
	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSI computes the Wilder-smoothed relative strength index. Returns
// nil when closes is too short for one full period plus a seed.
func RSI(closes []float64, period int) *float64 {
	if period <= 0 || len(closes) < period+1 {
		return nil
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}
	if avgLoss == 0 {
		v := 100.0
		return &v
	}
	rs := avgGain / avgLoss
	v := 100 - 100/(1+rs)
	return &v
}

// MACD returns the MACD line and its signal using the conventional
// 12/26/9 parameterization.
func MACD(closes []float64, fast, slow, signal int) (macd, macdSignal *float64) {
	if len(closes) < slow+signal {
		return nil, nil
	}
	emaFast := EMASeries(closes, fast)
	emaSlow := EMASeries(closes, slow)
	if emaFast == nil || emaSlow == nil {
		return nil, nil
	}
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = emaFast[i] - emaSlow[i]
	}
	sig := EMASeries(line[slow-1:], signal)
	if sig == nil {
		return nil, nil
	}
	m := line[len(line)-1]
	s := sig[len(sig)-1]
	return &m, &s
}

// ATRPct returns the average true range over period as a percentage
// of the latest close.
func ATRPct(candles []models.Candle, period int) *float64 {
	if period <= 0 || len(candles) < period+1 {
		return nil
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		h, l, pc := candles[i].High, candles[i].Low, candles[i-1].Close
		tr := h - l
		if d := math.Abs(h - pc); d > tr {
			tr = d
		}
		if d := math.Abs(l - pc); d > tr {
			tr = d
		}
		sum += tr
	}
	last := candles[len(candles)-1].Close
	if last <= 0 {
		return nil
	}
	v := sum / float64(period) / last * 100
	return &v
}

// VWAP is the volume-weighted average of typical prices over the
// given candles. Returns 0 when total volume is 0.
func VWAP(candles []models.Candle) float64 {
	var pv, vol float64
	for _, c := range candles {
		tp := (c.High + c.Low + c.Close) / 3
		pv += tp * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		return 0
	}
	return pv / vol
}

// PriceBias classifies the short-term trend from the EMA20 slope. A
// move inside ±0.1% over the lookback reads as flat.
func PriceBias(closes []float64, lookback int) string {
	ema := EMASeries(closes, 20)
	if ema == nil || len(ema) <= lookback {
		return "flat"
	}
	cur := ema[len(ema)-1]
	prev := ema[len(ema)-1-lookback]
	if prev == 0 {
		return "flat"
	}
	change := (cur - prev) / prev
	switch {
	case change > 0.001:
		return "up"
	case change < -0.001:
		return "down"
	default:
		return "flat"
	}
}

// PctChange returns the percent change over the last k steps.
func PctChange(closes []float64, k int) float64 {
	if k <= 0 || len(closes) <= k {
		return 0
	}
	prev := closes[len(closes)-1-k]
	if prev == 0 {
		return 0
	}
	return (closes[len(closes)-1] - prev) / prev * 100
}

// Breakout returns +1 when the latest close exceeds the rolling high
// of the preceding lookback candles, -1 when it undercuts the rolling
// low, 0 otherwise.
func Breakout(closes []float64, lookback int) float64 {
	if lookback <= 0 || len(closes) <= lookback {
		return 0
	}
	last := closes[len(closes)-1]
	hi := math.Inf(-1)
	lo := math.Inf(1)
	for i := len(closes) - 1 - lookback; i < len(closes)-1; i++ {
		if closes[i] > hi {
			hi = closes[i]
		}
		if closes[i] < lo {
			lo = closes[i]
		}
	}
	if last > hi {
		return 1
	}
	if last < lo {
		return -1
	}
	return 0
}

// Closes extracts close prices from candles.
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
