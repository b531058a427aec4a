package prices

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
)

// Client fetches OHLCV candles from a Binance-compatible klines REST
// endpoint. Candles are the input for technical indicators and for
// the deferred impact evaluation.
type Client struct {
	baseURL   string
	symbol    string
	timeframe string
	limit     int
	client    *xhttp.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:   cfg.Prices.BaseURL,
		symbol:    cfg.Prices.Symbol,
		timeframe: cfg.Prices.Timeframe,
		limit:     cfg.Prices.MaxCandles,
		client:    xhttp.NewClient(xhttp.WithTimeout(cfg.Prices.Timeout)),
	}
}

func (c *Client) Symbol() string    { return c.symbol }
func (c *Client) Timeframe() string { return c.timeframe }

// FetchRecent returns the latest candles, oldest first. The last
// candle is usually still open; callers that need closed candles only
// should drop it.
func (c *Client) FetchRecent(ctx context.Context) ([]models.Candle, error) {
	// Klines rows are fixed-position arrays mixing numbers and
	// numeric strings: [openTimeMs, "o", "h", "l", "c", "v", ...].
	var rows [][]any
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":   {c.symbol},
			"interval": {c.timeframe},
			"limit":    {strconv.Itoa(c.limit)},
		},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}

	out := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		openMs, ok := asFloat(row[0])
		if !ok {
			continue
		}
		o, ok1 := asFloat(row[1])
		h, ok2 := asFloat(row[2])
		l, ok3 := asFloat(row[3])
		cl, ok4 := asFloat(row[4])
		v, ok5 := asFloat(row[5])
		if !(ok1 && ok2 && ok3 && ok4 && ok5) {
			continue
		}
		out = append(out, models.Candle{
			Symbol:    c.symbol,
			Timeframe: c.timeframe,
			Timestamp: time.Unix(int64(openMs)/1000, 0).UTC(),
			Open:      o,
			High:      h,
			Low:       l,
			Close:     cl,
			Volume:    v,
		})
	}
	return out, nil
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
