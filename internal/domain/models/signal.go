package models

import "time"

// Action is the operational recommendation derived from the alpha score.
type Action string

const (
	ActionHold       Action = "hold"
	ActionAccumulate Action = "accumulate"
	ActionWait       Action = "wait"
)

// Technical holds price-derived indicator values for a signal tick.
// A nil Technical on a Signal means price data was unavailable and the
// decision fell back to sentiment-only evaluation.
type Technical struct {
	PriceClose float64  `json:"price_close"`
	RSI14      *float64 `json:"rsi14,omitempty"`
	MACD       *float64 `json:"macd,omitempty"`
	MACDSignal *float64 `json:"macd_signal,omitempty"`
	ATRPct     *float64 `json:"atr_pct,omitempty"`
	PriceBias  string   `json:"price_bias,omitempty"`
}

// Signal is one computed decision row, keyed by (asset, timestamp).
type Signal struct {
	Asset     string     `json:"asset"`
	Timestamp time.Time  `json:"timestamp"`
	EMA15     float64    `json:"ema15"`
	Mentions  int        `json:"mentions"`
	MentionsZ float64    `json:"mentions_z"`
	Alpha     float64    `json:"alpha"`
	Action    Action     `json:"action"`
	Technical *Technical `json:"technical,omitempty"`
}

// State is the live snapshot served to consumers.
type State struct {
	Asset          string    `json:"asset"`
	EMA15          float64   `json:"ema15"`
	Mentions15m    int       `json:"mentions_15m"`
	Baseline7d     float64   `json:"baseline_7d"`
	Action         Action    `json:"action"`
	OracleDegraded bool      `json:"oracle_degraded"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Stats is the aggregate counters snapshot for the metrics endpoint.
type Stats struct {
	ItemsTotal   int64   `json:"items_total"`
	SignalsTotal int64   `json:"signals_total"`
	ItemsLast15m int64   `json:"items_last_15m"`
	AvgScore1h   float64 `json:"avg_score_1h"`
}
