package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry            *prometheus.Registry
	handler             http.Handler
	requestDuration     *prometheus.HistogramVec
	requestTotal        *prometheus.CounterVec
	aggregationDuration prometheus.Histogram
	aggregationTotal    *prometheus.CounterVec
	recalcJobsTotal     prometheus.Counter
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
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

	aggregationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aggregation_duration_seconds",
		Help:    "Duration of category aggregation passes",
		Buckets: prometheus.DefBuckets,
	})

	aggregationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregation_passes_total",
		Help: "Total number of aggregation passes",
	}, []string{"outcome"})

	recalcJobsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recalculation_jobs_total",
		Help: "Total number of queued bulk recalculations",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "provisional_cache_hits_total",
		Help: "Total provisional cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "provisional_cache_misses_total",
		Help: "Total provisional cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, aggregationDuration, aggregationTotal, recalcJobsTotal, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		aggregationDuration: aggregationDuration,
		aggregationTotal:    aggregationTotal,
		recalcJobsTotal:     recalcJobsTotal,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
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

// ObserveAggregation records the duration and outcome of one pass.
func (m *MetricsService) ObserveAggregation(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.aggregationDuration.Observe(duration.Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.aggregationTotal.WithLabelValues(outcome).Inc()
}

// IncRecalcJobs counts a queued bulk recalculation.
func (m *MetricsService) IncRecalcJobs() {
	if m == nil {
		return
	}
	m.recalcJobsTotal.Inc()
}

// RecordCacheLookup counts a provisional cache hit or miss.
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
