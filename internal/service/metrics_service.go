package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/tennis-club-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// scheduling engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	transitions     *prometheus.CounterVec
	validations     *prometheus.CounterVec
	slotsWritten    *prometheus.CounterVec
	jobsFinished    *prometheus.CounterVec
	jobDuration     prometheus.Observer
	notifications   *prometheus.CounterVec
	sweepItems      *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "training_transitions_total",
		Help: "Realized training status changes",
	}, []string{"from", "to"})

	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "training_validation_failures_total",
		Help: "Rejected training writes by rule",
	}, []string{"code"})

	slotsWritten := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "slot_generator_rows_total",
		Help: "Rows written by slot generation",
	}, []string{"kind", "action"})

	jobsFinished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_jobs_total",
		Help: "Slot generation jobs by terminal state",
	}, []string{"state"})

	jobDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "generation_job_duration_seconds",
		Help:    "Wall time of slot generation jobs",
		Buckets: prometheus.DefBuckets,
	})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Customer notifications by outcome",
	}, []string{"outcome"})

	sweepItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_items_total",
		Help: "Trainings handled by maintenance sweeps",
	}, []string{"sweep", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLookups, cacheLatency, transitions, validations,
		slotsWritten, jobsFinished, jobDuration, notifications, sweepItems, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLookups:    cacheLookups,
		cacheLatency:    cacheLatency,
		transitions:     transitions,
		validations:     validations,
		slotsWritten:    slotsWritten,
		jobsFinished:    jobsFinished,
		jobDuration:     jobDuration,
		notifications:   notifications,
		sweepItems:      sweepItems,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// RecordTransition counts a realized status change.
func (m *MetricsService) RecordTransition(from, to models.TrainingStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

// RecordValidationFailure counts a rejected write by error code.
func (m *MetricsService) RecordValidationFailure(code string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(code).Inc()
}

// RecordSlotRows counts rows created, updated or deleted by slot generation.
func (m *MetricsService) RecordSlotRows(kind models.SessionKind, action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsWritten.WithLabelValues(string(kind), action).Add(float64(n))
}

// RecordJob counts a finished generation job.
func (m *MetricsService) RecordJob(state models.GenerationJobState, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobsFinished.WithLabelValues(string(state)).Inc()
	m.jobDuration.Observe(duration.Seconds())
}

// RecordNotification counts a notification attempt by outcome.
func (m *MetricsService) RecordNotification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

// RecordSweepItem counts one training handled by a maintenance sweep.
func (m *MetricsService) RecordSweepItem(sweep, outcome string) {
	if m == nil {
		return
	}
	m.sweepItems.WithLabelValues(sweep, outcome).Inc()
}
