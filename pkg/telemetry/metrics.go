package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Binary validation results recorded by RecordBinaryValidation.
const (
	ValidationSatisfied   = "satisfied"
	ValidationUnsatisfied = "unsatisfied"
)

// Metrics provides Prometheus metrics for polybuild.
type Metrics struct {
	config MetricsConfig

	// Build metrics
	buildsStarted   *prometheus.CounterVec
	buildsCompleted *prometheus.CounterVec
	buildDuration   *prometheus.HistogramVec

	// Action metrics
	actionsExecuted *prometheus.CounterVec
	actionDuration  *prometheus.HistogramVec

	// Binary validation gate metrics
	binaryValidations *prometheus.CounterVec

	// Policy metrics
	policyDenials *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec

	// Watch mode metrics
	watchRebuilds prometheus.Counter

	// System metrics
	buildsInProgress    prometheus.Gauge
	registeredWorkflows prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Build metrics
		buildsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_started_total",
				Help:      "Total number of builds started",
			},
			[]string{"workflow"},
		),
		buildsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_completed_total",
				Help:      "Total number of builds completed",
			},
			[]string{"workflow", "status"},
		),
		buildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Duration of build execution in seconds",
				Buckets:   buckets,
			},
			[]string{"workflow", "status"},
		),

		// Action metrics
		actionsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_executed_total",
				Help:      "Total number of build actions executed",
			},
			[]string{"workflow", "action", "status"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Duration of build action execution in seconds",
				Buckets:   buckets,
			},
			[]string{"workflow", "action"},
		),

		// Binary validation gate metrics
		binaryValidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "binary_validations_total",
				Help:      "Total number of binary requirement validations",
			},
			[]string{"workflow", "result"},
		),

		// Policy metrics
		policyDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_denials_total",
				Help:      "Total number of builds denied by admission policy",
			},
			[]string{"policy"},
		),

		// Error metrics
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),

		// Watch mode metrics
		watchRebuilds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watch_rebuilds_total",
				Help:      "Total number of rebuilds triggered by watch mode",
			},
		),

		// System metrics
		buildsInProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "builds_in_progress",
				Help:      "Current number of builds in progress",
			},
		),
		registeredWorkflows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registered_workflows",
				Help:      "Current number of registered workflow definitions",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.buildsStarted,
		m.buildsCompleted,
		m.buildDuration,
		m.actionsExecuted,
		m.actionDuration,
		m.binaryValidations,
		m.policyDenials,
		m.errorsByClass,
		m.watchRebuilds,
		m.buildsInProgress,
		m.registeredWorkflows,
	)

	return m, nil
}

// Build Metrics

// RecordBuildStarted increments the counter for started builds.
func (m *Metrics) RecordBuildStarted(workflow string) {
	if m.buildsStarted == nil {
		return
	}
	m.buildsStarted.WithLabelValues(workflow).Inc()
	m.buildsInProgress.Inc()
}

// RecordBuildCompleted records a completed build with its status and duration.
func (m *Metrics) RecordBuildCompleted(workflow, status string, duration time.Duration) {
	if m.buildsCompleted == nil {
		return
	}
	m.buildsCompleted.WithLabelValues(workflow, status).Inc()
	m.buildDuration.WithLabelValues(workflow, status).Observe(duration.Seconds())
	m.buildsInProgress.Dec()
}

// Action Metrics

// RecordActionExecution records the execution of a single build action.
func (m *Metrics) RecordActionExecution(workflow, action, status string, duration time.Duration) {
	if m.actionsExecuted == nil {
		return
	}
	m.actionsExecuted.WithLabelValues(workflow, action, status).Inc()
	m.actionDuration.WithLabelValues(workflow, action).Observe(duration.Seconds())
}

// Gate Metrics

// RecordBinaryValidation records the outcome of one binary requirement check.
func (m *Metrics) RecordBinaryValidation(workflow, result string) {
	if m.binaryValidations == nil {
		return
	}
	m.binaryValidations.WithLabelValues(workflow, result).Inc()
}

// Policy Metrics

// RecordPolicyDenial records a build denied by an admission policy.
func (m *Metrics) RecordPolicyDenial(policy string) {
	if m.policyDenials == nil {
		return
	}
	m.policyDenials.WithLabelValues(policy).Inc()
}

// Error Metrics

// RecordError records an error by class.
func (m *Metrics) RecordError(errorClass string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
}

// Watch Metrics

// RecordWatchRebuild records a rebuild triggered by a source change.
func (m *Metrics) RecordWatchRebuild() {
	if m.watchRebuilds == nil {
		return
	}
	m.watchRebuilds.Inc()
}

// System Metrics

// SetRegisteredWorkflows sets the current number of registered workflow definitions.
func (m *Metrics) SetRegisteredWorkflows(count float64) {
	if m.registeredWorkflows == nil {
		return
	}
	m.registeredWorkflows.Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
