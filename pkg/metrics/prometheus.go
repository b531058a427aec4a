package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	itemsIngested *prometheus.CounterVec
	itemsDropped  *prometheus.CounterVec
	oracleErrors  *prometheus.CounterVec
	ticks         *prometheus.CounterVec
	alpha         *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		itemsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_items_ingested_total",
				Help: "Total number of items accepted and persisted",
			},
			[]string{"source"},
		),
		itemsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_items_dropped_total",
				Help: "Total number of raw items rejected before persistence",
			},
			[]string{"source", "reason"},
		),
		oracleErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_oracle_errors_total",
				Help: "Total number of scoring/classifier oracle failures",
			},
			[]string{"kind"},
		),
		ticks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_compute_ticks_total",
				Help: "Total number of signal compute ticks by outcome",
			},
			[]string{"outcome"},
		),
		alpha: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_alpha",
				Help: "Last computed alpha score for an asset",
			},
			[]string{"asset"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordItemIngested counts one accepted item.
func (r *Recorder) RecordItemIngested(source string) {
	r.itemsIngested.WithLabelValues(source).Inc()
}

// RecordItemDropped counts one rejected raw item by reason.
func (r *Recorder) RecordItemDropped(source, reason string) {
	r.itemsDropped.WithLabelValues(source, reason).Inc()
}

// RecordOracleFailure counts one external oracle failure.
func (r *Recorder) RecordOracleFailure(kind string) {
	r.oracleErrors.WithLabelValues(kind).Inc()
}

// RecordTick counts one compute tick by outcome (ok, overlap, error).
func (r *Recorder) RecordTick(outcome string) {
	r.ticks.WithLabelValues(outcome).Inc()
}

// RecordAlpha records the last alpha for an asset.
func (r *Recorder) RecordAlpha(asset string, alpha float64) {
	r.alpha.WithLabelValues(asset).Set(alpha)
}

// RecordLatency records operation duration.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
