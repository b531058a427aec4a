package features

import (
	"math"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
)

func TestSmoothedSentimentEmpty(t *testing.T) {
	if got := SmoothedSentiment(nil, 15*time.Minute); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestSmoothedSentimentHalfLife(t *testing.T) {
	// After exactly one half-life, the old value keeps half its weight:
	// ema = 1*0.5 + 0*0.5 = 0.5
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scores := []models.ScoreAt{
		{Timestamp: base, Score: 1},
		{Timestamp: base.Add(15 * time.Minute), Score: 0},
	}
	got := SmoothedSentiment(scores, 15*time.Minute)
	if math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %v", got)
	}
}

func TestSmoothedSentimentRecentDominates(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scores := []models.ScoreAt{
		{Timestamp: base, Score: -1},
		{Timestamp: base.Add(2 * time.Hour), Score: 1},
	}
	got := SmoothedSentiment(scores, 15*time.Minute)
	if got < 0.99 {
		t.Fatalf("old score should have decayed away, got %v", got)
	}
}

func TestSmoothedSentimentIgnoresClockSkew(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scores := []models.ScoreAt{
		{Timestamp: base.Add(time.Minute), Score: 0.4},
		{Timestamp: base, Score: 0.4}, // out of order
	}
	got := SmoothedSentiment(scores, 15*time.Minute)
	if math.Abs(got-0.4) > 1e-9 {
		t.Fatalf("expected 0.4, got %v", got)
	}
}

func TestBaselineStatsFloorsStddev(t *testing.T) {
	buckets := map[int64]int{1: 3, 2: 3, 3: 3}
	mean, stddev := BaselineStats(buckets)
	if mean != 3 {
		t.Fatalf("expected mean 3, got %v", mean)
	}
	if stddev != stddevFloor {
		t.Fatalf("constant baseline should hit the floor, got %v", stddev)
	}
}

func TestBaselineStatsEmpty(t *testing.T) {
	mean, stddev := BaselineStats(nil)
	if mean != 0 || stddev != stddevFloor {
		t.Fatalf("unexpected stats %v %v", mean, stddev)
	}
}

func TestMentionsZ(t *testing.T) {
	if got := MentionsZ(10, 4, 2); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
	if got := MentionsZ(5, 5, 0); got != 0 {
		t.Fatalf("zero stddev must not blow up, got %v", got)
	}
}
