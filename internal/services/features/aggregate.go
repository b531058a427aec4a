package features

import (
	"math"
	"time"

	"MarketPulse/internal/domain/models"
)

// stddevFloor keeps the mention z-score finite when the baseline is
// quiet or nearly constant.
const stddevFloor = 1.0

// SmoothedSentiment recomputes the time-aware EMA over the trailing
// score window. Decay depends on elapsed wall-clock time between
// points, so irregular arrival rates do not distort the half-life:
// weight of the old value after a gap dt is 0.5^(dt/halfLife).
// Recomputing from the full window every tick avoids drift when ticks
// are missed.
func SmoothedSentiment(scores []models.ScoreAt, halfLife time.Duration) float64 {
	if len(scores) == 0 || halfLife <= 0 {
		return 0
	}
	ema := scores[0].Score
	for i := 1; i < len(scores); i++ {
		dt := scores[i].Timestamp.Sub(scores[i-1].Timestamp)
		if dt < 0 {
			dt = 0
		}
		decay := math.Pow(0.5, dt.Seconds()/halfLife.Seconds())
		ema = ema*decay + scores[i].Score*(1-decay)
	}
	return ema
}

// BaselineStats reduces historical mention buckets to mean and
// stddev. The stddev is floored so the z-score denominator never
// collapses on a quiet baseline.
func BaselineStats(buckets map[int64]int) (mean, stddev float64) {
	if len(buckets) == 0 {
		return 0, stddevFloor
	}
	var sum float64
	for _, n := range buckets {
		sum += float64(n)
	}
	mean = sum / float64(len(buckets))

	var sq float64
	for _, n := range buckets {
		d := float64(n) - mean
		sq += d * d
	}
	stddev = math.Sqrt(sq / float64(len(buckets)))
	if stddev < stddevFloor {
		stddev = stddevFloor
	}
	return mean, stddev
}

// MentionsZ normalizes the current window's mention count against the
// baseline.
func MentionsZ(mentions int, mean, stddev float64) float64 {
	if stddev <= 0 {
		stddev = stddevFloor
	}
	return (float64(mentions) - mean) / stddev
}
