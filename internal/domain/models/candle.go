package models

import "time"

// Candle is an OHLCV record keyed by (symbol, timeframe, timestamp).
// Candles are supplied by the external price feed and read-only here.
type Candle struct {
	Symbol    string
	Timeframe string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
