package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	callRunsTotal *prometheus.CounterVec
	callDuration  prometheus.Histogram
	loopRounds    prometheus.Histogram

	activeSessions      prometheus.Gauge
	sessionLoadDuration prometheus.Histogram
	sessionSaveDuration prometheus.Histogram
	sessionsEvicted     prometheus.Counter

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	modelCallsTotal   *prometheus.CounterVec
	modelCallDuration *prometheus.HistogramVec

	phaseTransitionsTotal *prometheus.CounterVec
	customerLookupsTotal  *prometheus.CounterVec
	commitmentsTotal      *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			callRunsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "call_runs_total",
					Help: "Total call turn runs by outcome.",
				},
				[]string{"outcome"},
			),
			callDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "call_run_duration_seconds",
					Help:    "End-to-end call turn duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			loopRounds: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "agent_loop_rounds",
					Help:    "Model rounds consumed per call turn.",
					Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8},
				},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current active session count.",
				},
			),
			sessionLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_load_duration_seconds",
					Help:    "Session load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_save_duration_seconds",
					Help:    "Session save duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionsEvicted: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_evicted_total",
					Help: "Total sessions removed by the idle sweeper.",
				},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool invocations by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			modelCallsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "model_calls_total",
					Help: "Total model calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			modelCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "model_call_duration_seconds",
					Help:    "Model call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			phaseTransitionsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "phase_transitions_total",
					Help: "Total call phase transitions by from and to phase.",
				},
				[]string{"from", "to"},
			),
			customerLookupsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "customer_lookups_total",
					Help: "Total customer record lookups by outcome.",
				},
				[]string{"outcome"},
			),
			commitmentsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "commitments_total",
					Help: "Total payment commitments recorded by status.",
				},
				[]string{"status"},
			),
		}

		prometheus.MustRegister(
			m.callRunsTotal,
			m.callDuration,
			m.loopRounds,
			m.activeSessions,
			m.sessionLoadDuration,
			m.sessionSaveDuration,
			m.sessionsEvicted,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.modelCallsTotal,
			m.modelCallDuration,
			m.phaseTransitionsTotal,
			m.customerLookupsTotal,
			m.commitmentsTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordCallRun(outcome string, duration time.Duration, rounds int) {
	m := getMetrics()
	m.callRunsTotal.WithLabelValues(outcome).Inc()
	m.callDuration.Observe(duration.Seconds())
	if rounds > 0 {
		m.loopRounds.Observe(float64(rounds))
	}
}

func SetActiveSessions(count int) {
	m := getMetrics()
	m.activeSessions.Set(float64(count))
}

func RecordSessionLoad(duration time.Duration) {
	m := getMetrics()
	m.sessionLoadDuration.Observe(duration.Seconds())
}

func RecordSessionSave(duration time.Duration) {
	m := getMetrics()
	m.sessionSaveDuration.Observe(duration.Seconds())
}

func RecordSessionEviction(count int) {
	m := getMetrics()
	m.sessionsEvicted.Add(float64(count))
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordToolRejection counts tool calls refused by the phase gate. Rejected
// calls never execute, so no duration is observed.
func RecordToolRejection(tool string) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, "rejected").Inc()
}

func RecordModelCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.modelCallsTotal.WithLabelValues(provider, status).Inc()
	m.modelCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordPhaseTransition(from, to string) {
	m := getMetrics()
	m.phaseTransitionsTotal.WithLabelValues(from, to).Inc()
}

func RecordCustomerLookup(found bool) {
	m := getMetrics()
	outcome := "miss"
	if found {
		outcome = "hit"
	}
	m.customerLookupsTotal.WithLabelValues(outcome).Inc()
}

func RecordCommitment(success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "recorded"
	}
	m.commitmentsTotal.WithLabelValues(status).Inc()
}
