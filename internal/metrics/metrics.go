package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Rotation metrics
	rotationRunsTotal  *prometheus.CounterVec
	ruleRotationsTotal *prometheus.CounterVec
	rotationDuration   prometheus.Histogram

	// Notification metrics
	notificationsTotal *prometheus.CounterVec

	// Health check metrics
	healthCheckStatus *prometheus.GaugeVec

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered bool
)

// Recorder provides methods to record rotord metrics.
// All methods are no-ops until Init has been called.
type Recorder struct{}

// NewRecorder creates a new Recorder instance.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Init initializes all Prometheus metrics.
// This should be called once at startup if the metrics endpoint is enabled.
func Init() {
	metricsOnce.Do(func() {
		rotationRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rotord_rotation_runs_total",
				Help: "Total number of rotation runs, by outcome",
			},
			[]string{"status"},
		)

		ruleRotationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rotord_rule_rotations_total",
				Help: "Total number of per-rule rotation attempts, by rule and outcome",
			},
			[]string{"rule", "status"},
		)

		rotationDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rotord_rotation_run_duration_seconds",
				Help:    "Duration of full rotation runs in seconds",
				Buckets: []float64{1, 30, 60, 300, 600, 900, 1800},
			},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rotord_notifications_sent_total",
				Help: "Total number of queue notifications sent, by outcome",
			},
			[]string{"status"},
		)

		healthCheckStatus = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rotord_health_check_status",
				Help: "Current health check status (1=healthy, 0=unhealthy)",
			},
			[]string{"service"},
		)

		metricsRegistered = true
	})
}

// RecordRunCompleted records the outcome and duration of a rotation run.
func (r *Recorder) RecordRunCompleted(success bool, durationSeconds float64) {
	if !metricsRegistered {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}
	rotationRunsTotal.WithLabelValues(status).Inc()
	rotationDuration.Observe(durationSeconds)
}

// RecordRuleRotation records the outcome of a single rule's rotation.
func (r *Recorder) RecordRuleRotation(rule string, success bool) {
	if !metricsRegistered {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}
	ruleRotationsTotal.WithLabelValues(rule, status).Inc()
}

// RecordNotification records a queue notification send attempt.
func (r *Recorder) RecordNotification(success bool) {
	if !metricsRegistered {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}
	notificationsTotal.WithLabelValues(status).Inc()
}

// RecordHealthCheck records a health check result for a service.
func (r *Recorder) RecordHealthCheck(service string, healthy bool) {
	if !metricsRegistered {
		return
	}

	value := 0.0
	if healthy {
		value = 1.0
	}
	healthCheckStatus.WithLabelValues(service).Set(value)
}

// IsRegistered returns whether metrics have been initialized.
func IsRegistered() bool {
	return metricsRegistered
}
