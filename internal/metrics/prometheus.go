// Package metrics exposes evaluation counters and band gauges to Prometheus.
package metrics

import (
	"DipSentinel/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records evaluation outcomes.
type Recorder struct {
	evaluations *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	price       *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dipsentinel_evaluations_total",
				Help: "Completed band evaluations by market and classification",
			},
			[]string{"market", "classification"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dipsentinel_errors_total",
				Help: "Failed evaluations by error kind",
			},
			[]string{"kind"},
		),
		price: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dipsentinel_price",
				Help: "Latest live price and band lines per symbol",
			},
			[]string{"symbol", "line"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dipsentinel_fetch_duration_seconds",
				Help:    "Duration of history fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
	}
}

// RecordBand records a successful evaluation.
func (r *Recorder) RecordBand(market model.MarketClass, res *model.BandResult) {
	r.evaluations.WithLabelValues(string(market), string(res.Classification)).Inc()
	r.price.WithLabelValues(res.Ticker, "live").Set(res.LivePrice)
	r.price.WithLabelValues(res.Ticker, "anchor").Set(res.AnchorClose)
	r.price.WithLabelValues(res.Ticker, "buy").Set(res.BuyTarget)
	r.price.WithLabelValues(res.Ticker, "sell").Set(res.SellTarget)
}

// RecordError records a failed evaluation.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordFetch records fetch latency in seconds.
func (r *Recorder) RecordFetch(source string, seconds float64) {
	r.latency.WithLabelValues(source).Observe(seconds)
}
