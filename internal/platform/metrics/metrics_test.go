package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCall(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewEngineMetrics(registry)
	require.NoError(t, err)

	m.ObserveCall("recompute", 5*time.Millisecond, nil)
	m.ObserveCall("recompute", 5*time.Millisecond, errors.New("boom"))
	m.ObserveCall("toggle_task", time.Millisecond, nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.calls.WithLabelValues("recompute", OutcomeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.calls.WithLabelValues("recompute", OutcomeError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.calls.WithLabelValues("toggle_task", OutcomeOK)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewEngineMetrics(registry)
	require.NoError(t, err)

	m.TaskSpawned("problem", 3)
	m.TaskSpawned("problem", 0)
	m.AlertRaised("critical")
	m.Published(nil)
	m.Published(errors.New("offline"))
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.tasksSpawned.WithLabelValues("problem")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.alertsRaised.WithLabelValues("critical")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.publishes.WithLabelValues(OutcomeError)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.cacheRequests.WithLabelValues("miss")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *EngineMetrics
	assert.NotPanics(t, func() {
		m.ObserveCall("x", time.Second, nil)
		m.ObserveLockWait(time.Second)
		m.TaskSpawned("manual", 1)
		m.AlertRaised("warning")
		m.Published(nil)
		m.CacheLookup(true)
	})
}

func TestDoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewEngineMetrics(registry)
	require.NoError(t, err)
	_, err = NewEngineMetrics(registry)
	assert.Error(t, err)
}
