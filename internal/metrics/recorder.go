package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wonny/conviction/internal/contracts"
)

// Recorder exposes scoring pipeline metrics to Prometheus.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	scored       *prometheus.CounterVec
	failures     prometheus.Counter
	substituted  *prometheus.CounterVec
	finalScore   prometheus.Histogram
	batchLatency prometheus.Histogram
	batchSize    prometheus.Gauge
}

// New creates a recorder registered on reg (prometheus.DefaultRegisterer in production)
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		scored: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conviction_scored_total",
				Help: "Total number of transactions scored, by signal category",
			},
			[]string{"category"},
		),
		failures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "conviction_score_failures_total",
				Help: "Total number of transactions that could not be scored",
			},
		),
		substituted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conviction_component_substituted_total",
				Help: "Components replaced with neutral values, by component and source",
			},
			[]string{"component", "source"},
		),
		finalScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "conviction_final_score",
				Help:    "Distribution of final conviction scores",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		batchLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "conviction_batch_duration_seconds",
				Help:    "Duration of batch scoring runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		batchSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "conviction_last_batch_size",
				Help: "Number of transactions in the last batch",
			},
		),
	}
}

// RecordResult records one scored transaction
func (r *Recorder) RecordResult(res *contracts.ConvictionResult) {
	if r == nil || res == nil {
		return
	}

	category := res.SignalStrength
	if res.Decision != nil {
		category = res.Decision.Category
	}
	r.scored.WithLabelValues(string(category)).Inc()
	r.finalScore.Observe(res.FinalScore)

	for _, c := range res.Components {
		if c.Substituted {
			r.substituted.WithLabelValues(c.Name, c.Source).Inc()
		}
	}
}

// RecordFailure records a transaction that was excluded from a batch
func (r *Recorder) RecordFailure() {
	if r == nil {
		return
	}
	r.failures.Inc()
}

// RecordBatch records the size and duration of a batch run
func (r *Recorder) RecordBatch(size int, d time.Duration) {
	if r == nil {
		return
	}
	r.batchSize.Set(float64(size))
	r.batchLatency.Observe(d.Seconds())
}
