package metrics

import (
	"strconv"

	"github.com/nholik/space-sentinel/internal/space"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps Prometheus collectors for space-sentinel.
type Metrics struct {
	registry              *prometheus.Registry
	outcomesTotal         *prometheus.CounterVec
	restartsTotal         *prometheus.CounterVec
	targetDurationSeconds *prometheus.HistogramVec
	runDurationSeconds    prometheus.Gauge
	lastRunTimestampGauge prometheus.Gauge
	failedTargetsGauge    prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "space_sentinel_outcomes_total",
			Help: "Outcomes recorded by action, state and success.",
		}, []string{"action", "state", "success"}),
		restartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "space_sentinel_restarts_total",
			Help: "Restart attempts by result.",
		}, []string{"result"}),
		targetDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "space_sentinel_target_duration_seconds",
			Help:    "Time spent on a single outcome in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 480, 900},
		}, []string{"action"}),
		runDurationSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "space_sentinel_run_duration_seconds",
			Help: "Duration of the last run in seconds.",
		}),
		lastRunTimestampGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "space_sentinel_last_run_timestamp",
			Help: "Unix timestamp of the last completed run.",
		}),
		failedTargetsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "space_sentinel_failed_targets",
			Help: "Targets whose final outcome in the last run was not a success.",
		}),
	}

	registry.MustRegister(
		m.outcomesTotal,
		m.restartsTotal,
		m.targetDurationSeconds,
		m.runDurationSeconds,
		m.lastRunTimestampGauge,
		m.failedTargetsGauge,
	)

	return m
}

// ObserveOutcome counts an outcome and records its duration.
func (m *Metrics) ObserveOutcome(outcome space.Outcome) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(string(outcome.Action), outcome.State.String(), strconv.FormatBool(outcome.Success)).Inc()
	m.targetDurationSeconds.WithLabelValues(string(outcome.Action)).Observe(outcome.Duration.Seconds())
}

// IncRestarts counts a restart command that was actually issued.
func (m *Metrics) IncRestarts(recovered bool) {
	if m == nil {
		return
	}
	result := "failed"
	if recovered {
		result = "recovered"
	}
	m.restartsTotal.WithLabelValues(result).Inc()
}

// ObserveRun records run-level gauges once all targets are processed.
func (m *Metrics) ObserveRun(run space.Run) {
	if m == nil {
		return
	}
	failed := 0
	for _, outcome := range run.Final() {
		if !outcome.Success {
			failed++
		}
	}
	m.failedTargetsGauge.Set(float64(failed))
	m.runDurationSeconds.Set(run.FinishedAt.Sub(run.StartedAt).Seconds())
	m.lastRunTimestampGauge.Set(float64(run.FinishedAt.Unix()))
}

// WriteTextfile writes all collectors in the Prometheus text format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Gatherer exposes the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
