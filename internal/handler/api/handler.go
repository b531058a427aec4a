package api

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/eventbus"
	"MarketPulse/internal/service/oracle"
	"MarketPulse/internal/usecase"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Handler exposes the query surface over Echo.
type Handler struct {
	logger     *xlogger.Logger
	store      domrepo.Store
	computer   *usecase.SignalComputer
	bus        *eventbus.Bus
	classifier *oracle.Classifier
	asset      string
	symbol     string
	started    time.Time
}

func NewHandler(logger *xlogger.Logger, store domrepo.Store, computer *usecase.SignalComputer, bus *eventbus.Bus, classifier *oracle.Classifier, asset, symbol string) *Handler {
	return &Handler{
		logger:     logger,
		store:      store,
		computer:   computer,
		bus:        bus,
		classifier: classifier,
		asset:      asset,
		symbol:     symbol,
		started:    time.Now(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/events", h.StreamSSE)
	e.GET("/ws/events", h.StreamWS)

	g := e.Group("/api")
	g.GET("/state", h.State)
	g.GET("/signals", h.Signals)
	g.GET("/items", h.Items)
	g.GET("/metrics", h.Metrics)
	g.GET("/events", h.Events)
	g.GET("/impact/top", h.ImpactTop)
	g.GET("/series/signals", h.SignalSeries)
	g.GET("/series/mentions", h.MentionSeries)
	g.GET("/series/prices", h.PriceSeries)
	g.GET("/summary", h.Summary)
}

func (h *Handler) Health(c echo.Context) error {
	status := "ok"
	if err := h.store.Health(c.Request().Context()); err != nil {
		h.logger.Error("health check failed", xlogger.Error(err))
		status = "degraded"
	}
	return xhttp.SuccessResponse(c, map[string]any{
		"status":         status,
		"asset":          h.asset,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

func (h *Handler) State(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.computer.State())
}

func (h *Handler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	f := domrepo.SignalFilter{
		Action:    models.Action(req.Action),
		Ascending: req.Order == "asc",
	}
	f.Since, _ = xhttp.ParseTime(req.Since)
	f.Until, _ = xhttp.ParseTime(req.Until)

	rows, err := h.store.ListSignals(c.Request().Context(), h.asset, req.Limit, f)
	if err != nil {
		h.logger.Error("list signals failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *Handler) Items(c echo.Context) error {
	req := &models.ItemsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	f := domrepo.ItemFilter{
		Source:    models.Source(req.Source),
		Label:     req.Label,
		Query:     req.Q,
		MinScore:  req.MinScore,
		MaxScore:  req.MaxScore,
		Ascending: req.Order == "asc",
	}
	f.Since, _ = xhttp.ParseTime(req.Since)
	f.Until, _ = xhttp.ParseTime(req.Until)
	if req.Relevant != nil {
		rel := *req.Relevant == 1
		f.Relevant = &rel
	}

	rows, err := h.store.ListItems(c.Request().Context(), req.Limit, f)
	if err != nil {
		h.logger.Error("list items failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *Handler) Metrics(c echo.Context) error {
	stats, err := h.store.Stats(c.Request().Context(), h.asset)
	if err != nil {
		h.logger.Error("stats failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, stats)
}

func (h *Handler) Events(c echo.Context) error {
	req := &models.EventsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var events []models.Event
	gap := false
	if req.SinceID != nil {
		events, gap = h.bus.EventsSince(*req.SinceID, req.Limit)
	} else {
		events = h.bus.Latest(req.Limit)
	}
	if events == nil {
		events = []models.Event{}
	}
	return xhttp.SuccessResponse(c, map[string]any{
		"events":  events,
		"gap":     gap,
		"last_id": h.bus.LastID(),
	})
}

func (h *Handler) ImpactTop(c echo.Context) error {
	req := &models.ImpactTopRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	since := time.Now().UTC().Add(-time.Duration(req.Hours) * time.Hour)
	rows, err := h.store.TopImpact(c.Request().Context(), req.Limit, since, models.Source(req.Source))
	if err != nil {
		h.logger.Error("top impact failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *Handler) SignalSeries(c echo.Context) error {
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	asset := req.Asset
	if asset == "" {
		asset = h.asset
	}

	rows, err := h.store.ListSignals(c.Request().Context(), asset, 10000, domrepo.SignalFilter{
		Since:     time.Now().UTC().Add(-time.Duration(req.Minutes) * time.Minute),
		Ascending: true,
	})
	if err != nil {
		h.logger.Error("signal series failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	type point struct {
		Timestamp time.Time `json:"timestamp"`
		Alpha     float64   `json:"alpha"`
		EMA15     float64   `json:"ema15"`
		MentionsZ float64   `json:"mentions_z"`
	}
	series := make([]point, len(rows))
	for i, s := range rows {
		series[i] = point{Timestamp: s.Timestamp, Alpha: s.Alpha, EMA15: s.EMA15, MentionsZ: s.MentionsZ}
	}
	return xhttp.SuccessResponse(c, map[string]any{"asset": asset, "series": series})
}

// MentionSeries returns minute-bucketed mention counts for chart
// hydration. Empty minutes are omitted, not zero-filled.
func (h *Handler) MentionSeries(c echo.Context) error {
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	asset := req.Asset
	if asset == "" {
		asset = h.asset
	}

	since := time.Now().UTC().Add(-time.Duration(req.Minutes) * time.Minute)
	buckets, err := h.store.MentionBuckets(c.Request().Context(), asset, since, time.Minute)
	if err != nil {
		h.logger.Error("mention series failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	type point struct {
		Timestamp time.Time `json:"timestamp"`
		Count     int       `json:"count"`
	}
	series := make([]point, 0, len(buckets))
	for b, n := range buckets {
		series = append(series, point{Timestamp: time.Unix(b*60, 0).UTC(), Count: n})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Timestamp.Before(series[j].Timestamp) })
	return xhttp.SuccessResponse(c, map[string]any{"asset": asset, "series": series})
}

func (h *Handler) PriceSeries(c echo.Context) error {
	req := &models.PriceSeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := req.Symbol
	if symbol == "" {
		symbol = h.symbol
	}

	now := time.Now().UTC()
	candles, err := h.store.GetCandles(c.Request().Context(), symbol, req.Timeframe,
		now.Add(-time.Duration(req.Minutes)*time.Minute), now)
	if err != nil {
		h.logger.Error("price series failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]any{"symbol": symbol, "candles": candles})
}

// Summary renders a short plain-language reading of the current
// state for dashboards and chat bots. When the LLM endpoint is up it
// writes the commentary; otherwise a templated fallback is returned.
func (h *Handler) Summary(c echo.Context) error {
	st := h.computer.State()
	stats, err := h.store.Stats(c.Request().Context(), h.asset)
	if err != nil {
		h.logger.Error("summary stats failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	generated := false
	summary := ""
	if h.classifier != nil && h.classifier.Enabled() {
		prompt := fmt.Sprintf(
			"Write a two-sentence market commentary for %s. Facts: sentiment ema15=%.3f (%s), "+
				"%d mentions in the last window vs a %.1f baseline, average score over the last hour %.3f, "+
				"current stance %s. No advice, no hedging boilerplate.",
			st.Asset, st.EMA15, describeSentiment(st.EMA15), st.Mentions15m, st.Baseline7d,
			stats.AvgScore1h, st.Action,
		)
		if out, err := h.classifier.Generate(c.Request().Context(), prompt); err == nil {
			summary = out
			generated = true
		} else {
			h.logger.Debug("summary generation fell back", xlogger.Error(err))
		}
	}
	if summary == "" {
		summary = fallbackSummary(st)
	}

	return xhttp.SuccessResponse(c, map[string]any{
		"asset":        st.Asset,
		"action":       st.Action,
		"summary":      summary,
		"generated":    generated,
		"avg_score_1h": stats.AvgScore1h,
		"updated_at":   st.UpdatedAt,
	})
}

func fallbackSummary(st models.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s sentiment is %s (ema15 %.3f) with %d mentions in the last window against a %.1f baseline. ",
		st.Asset, describeSentiment(st.EMA15), st.EMA15, st.Mentions15m, st.Baseline7d)
	fmt.Fprintf(&b, "Current stance: %s.", st.Action)
	if st.OracleDegraded {
		b.WriteString(" Scoring oracle is degraded; recent items are unscored.")
	}
	return b.String()
}

func describeSentiment(ema float64) string {
	switch {
	case ema >= 0.3:
		return "strongly positive"
	case ema >= 0.1:
		return "mildly positive"
	case ema <= -0.3:
		return "strongly negative"
	case ema <= -0.1:
		return "mildly negative"
	default:
		return "neutral"
	}
}
