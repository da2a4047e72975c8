package service

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the profile
// service, including provisioning saga outcomes.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	provisionTotal  *prometheus.CounterVec
	compensations   *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
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

	provisionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provisioning_total",
		Help: "Provisioning saga outcomes by flow",
	}, []string{"flow", "outcome"})

	compensations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provisioning_compensations_total",
		Help: "Identity deletions performed to compensate failed local writes",
	}, []string{"result"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credential_notifications_total",
		Help: "Best-effort credential emails by result",
	}, []string{"result"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, provisionTotal, compensations, notifications, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		provisionTotal:  provisionTotal,
		compensations:   compensations,
		notifications:   notifications,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
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
	labels := prometheus.Labels{"method": method, "path": path, "status": httpStatusLabel(status)}
	m.requestDuration.With(labels).Observe(duration.Seconds())
	m.requestTotal.With(labels).Inc()
}

// RecordProvision counts a saga outcome for the given flow.
func (m *MetricsService) RecordProvision(flow, outcome string) {
	if m == nil {
		return
	}
	m.provisionTotal.WithLabelValues(flow, outcome).Inc()
}

// RecordCompensation counts an identity-delete compensation attempt.
func (m *MetricsService) RecordCompensation(ok bool) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(resultLabel(ok)).Inc()
}

// RecordNotification counts a credential email attempt.
func (m *MetricsService) RecordNotification(ok bool) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(resultLabel(ok)).Inc()
}

// RecordCacheLookup counts cache hit/miss for student reads.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func httpStatusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
