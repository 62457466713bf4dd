package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Rollout metrics
	RolloutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiftgate_rollouts_total",
			Help: "Total number of completed rollout attempts by strategy and terminal status",
		},
		[]string{"strategy", "status"},
	)

	RolloutsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shiftgate_rollouts_active",
			Help: "Number of rollout attempts currently in progress",
		},
	)

	RolloutDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shiftgate_rollout_duration_seconds",
			Help:    "End-to-end rollout duration in seconds by strategy",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"strategy"},
	)

	// Stage metrics
	StageDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shiftgate_stage_duration_seconds",
			Help:    "Time spent per traffic stage, including its monitoring window",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
	)

	StagesAdvanced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shiftgate_stages_advanced_total",
			Help: "Total number of traffic stages that passed their monitoring window",
		},
	)

	// Failure-path metrics
	RollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiftgate_rollbacks_total",
			Help: "Total number of rollback executions by outcome",
		},
		[]string{"outcome"},
	)

	ThresholdBreaches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shiftgate_threshold_breaches_total",
			Help: "Total number of monitoring windows that breached thresholds",
		},
	)

	HealthGateFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shiftgate_health_gate_failures_total",
			Help: "Total number of candidates that never passed the pre-traffic health gate",
		},
	)
)

func init() {
	prometheus.MustRegister(RolloutsTotal)
	prometheus.MustRegister(RolloutsActive)
	prometheus.MustRegister(RolloutDuration)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(StagesAdvanced)
	prometheus.MustRegister(RollbacksTotal)
	prometheus.MustRegister(ThresholdBreaches)
	prometheus.MustRegister(HealthGateFailures)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
