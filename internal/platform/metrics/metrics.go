// Package metrics holds the Prometheus collectors for the ward engine and
// its publishers.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// EngineMetrics counts engine calls and what they produced.
type EngineMetrics struct {
	calls         *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	lockWait      prometheus.Histogram
	tasksSpawned  *prometheus.CounterVec
	alertsRaised  *prometheus.CounterVec
	publishes     *prometheus.CounterVec
	cacheRequests *prometheus.CounterVec
}

// NewEngineMetrics creates the engine collectors and registers them on
// registry.
func NewEngineMetrics(registry prometheus.Registerer) (*EngineMetrics, error) {
	m := &EngineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register engine metrics: %w", err)
	}
	return m, nil
}

func (m *EngineMetrics) initMetrics() {
	m.calls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ward_engine_calls_total",
		Help: "Engine calls by operation and outcome",
	}, []string{"operation", "outcome"})

	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ward_engine_call_duration_seconds",
		Help:    "Duration of engine calls including the transaction",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"operation"})

	m.lockWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ward_patient_lock_wait_seconds",
		Help:    "Time spent waiting for the per-patient lock",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	m.tasksSpawned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ward_tasks_spawned_total",
		Help: "Tasks created by source",
	}, []string{"source"})

	m.alertsRaised = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ward_alerts_raised_total",
		Help: "Alerts written by severity",
	}, []string{"severity"})

	m.publishes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ward_alert_publishes_total",
		Help: "Alert snapshot publishes by outcome",
	}, []string{"outcome"})

	m.cacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ward_alert_cache_requests_total",
		Help: "Ward alert view lookups by result",
	}, []string{"result"})
}

// ObserveCall records one engine call.
func (m *EngineMetrics) ObserveCall(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.calls.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *EngineMetrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

func (m *EngineMetrics) TaskSpawned(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.tasksSpawned.WithLabelValues(source).Add(float64(n))
}

func (m *EngineMetrics) AlertRaised(severity string) {
	if m == nil {
		return
	}
	m.alertsRaised.WithLabelValues(severity).Inc()
}

func (m *EngineMetrics) Published(err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.publishes.WithLabelValues(outcome).Inc()
}

// CacheLookup records a ward view cache hit or miss.
func (m *EngineMetrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.calls.Collect(ch)
	m.duration.Collect(ch)
	m.lockWait.Collect(ch)
	m.tasksSpawned.Collect(ch)
	m.alertsRaised.Collect(ch)
	m.publishes.Collect(ch)
	m.cacheRequests.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.calls.Describe(ch)
	m.duration.Describe(ch)
	m.lockWait.Describe(ch)
	m.tasksSpawned.Describe(ch)
	m.alertsRaised.Describe(ch)
	m.publishes.Describe(ch)
	m.cacheRequests.Describe(ch)
}
