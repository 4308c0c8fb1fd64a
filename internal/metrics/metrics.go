// Package metrics registers and updates the daemon's Prometheus metrics,
// following the teacher's internal/escrow.Metrics shape: a struct of
// promauto-registered vectors plus small Record*/Update* methods.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector grossd exposes on /metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	JudgmentsTotal  *prometheus.CounterVec

	PoolThreads *prometheus.GaugeVec
	PoolIdle    *prometheus.GaugeVec

	BloomRotations prometheus.Counter
	BloomInserts   prometheus.Gauge
	BloomQueries   prometheus.Gauge
	ToleranceLevel *prometheus.GaugeVec
}

// New constructs and registers the metric set against prometheus's default
// registerer, for use by cmd/grossd's single long-lived process.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer constructs and registers the metric set against reg,
// so tests can use a throwaway prometheus.NewRegistry() instead of
// colliding with the global default on repeated construction.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gross_requests_total",
			Help: "Total number of policy requests handled.",
		}, []string{"protocol"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gross_request_duration_seconds",
			Help:    "Time to produce a combined judgment for a request.",
			Buckets: prometheus.DefBuckets,
		}, []string{"protocol"}),

		JudgmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gross_judgments_total",
			Help: "Total combined judgments by outcome.",
		}, []string{"judgment"}),

		PoolThreads: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gross_pool_threads",
			Help: "Current worker count per check pool.",
		}, []string{"pool"}),

		PoolIdle: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gross_pool_idle_threads",
			Help: "Current idle worker count per check pool.",
		}, []string{"pool"}),

		BloomRotations: factory.NewCounter(prometheus.CounterOpts{
			Name: "gross_bloom_rotations_total",
			Help: "Total number of Bloom ring rotations performed.",
		}),

		BloomInserts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gross_bloom_inserts_total",
			Help: "Lifetime count of Bloom ring insert calls, sampled periodically.",
		}),

		BloomQueries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gross_bloom_queries_total",
			Help: "Lifetime count of Bloom ring query calls, sampled periodically.",
		}),

		ToleranceLevel: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gross_tolerance_level",
			Help: "Current error-tolerance counter value per DNS list.",
		}, []string{"zone"}),
	}
}

// RecordRequest records one handled request and the time it took to reach
// a combined judgment.
func (m *Metrics) RecordRequest(protocol string, judgment string, duration float64) {
	m.RequestsTotal.WithLabelValues(protocol).Inc()
	m.RequestDuration.WithLabelValues(protocol).Observe(duration)
	m.JudgmentsTotal.WithLabelValues(judgment).Inc()
}

// UpdatePoolStats publishes a pool's current population.
func (m *Metrics) UpdatePoolStats(pool string, threads, idle int) {
	m.PoolThreads.WithLabelValues(pool).Set(float64(threads))
	m.PoolIdle.WithLabelValues(pool).Set(float64(idle))
}

// RecordRotation increments the Bloom rotation counter.
func (m *Metrics) RecordRotation() {
	m.BloomRotations.Inc()
}

// UpdateTolerance publishes a DNS list's current tolerance counter value.
func (m *Metrics) UpdateTolerance(zone string, value int32) {
	m.ToleranceLevel.WithLabelValues(zone).Set(float64(value))
}

// UpdateBloomStats publishes the ring's lifetime insert/query counts.
func (m *Metrics) UpdateBloomStats(inserts, queries uint64) {
	m.BloomInserts.Set(float64(inserts))
	m.BloomQueries.Set(float64(queries))
}
