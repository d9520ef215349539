package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and
// the background report worker.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	batchWriteSize  *prometheus.HistogramVec
	batchWriteTotal *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	reportJobs      *prometheus.CounterVec
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

	batchWriteSize := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_batch_size",
		Help:    "Entry counts of accepted ledger batches",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
	}, []string{"ledger"})

	batchWriteTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_batch_writes_total",
		Help: "Total ledger batch writes by outcome",
	}, []string{"ledger", "outcome"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "summary_cache_hits_total",
		Help: "Total summary cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "summary_cache_misses_total",
		Help: "Total summary cache misses",
	})

	reportJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_jobs_total",
		Help: "Report card generation jobs by terminal status",
	}, []string{"status"})

	registry.MustRegister(requestDuration, requestTotal, batchWriteSize, batchWriteTotal, cacheHits, cacheMisses, reportJobs)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		batchWriteSize:  batchWriteSize,
		batchWriteTotal: batchWriteTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		reportJobs:      reportJobs,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// RecordRequest observes one HTTP request.
func (s *MetricsService) RecordRequest(method, path, status string, duration time.Duration) {
	s.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(method, path, status).Inc()
}

// RecordBatchWrite observes one ledger batch write attempt.
func (s *MetricsService) RecordBatchWrite(ledger string, size int, accepted bool) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
		s.batchWriteSize.WithLabelValues(ledger).Observe(float64(size))
	}
	s.batchWriteTotal.WithLabelValues(ledger, outcome).Inc()
}

// RecordCacheLookup counts a summary cache hit or miss.
func (s *MetricsService) RecordCacheLookup(hit bool) {
	if hit {
		s.cacheHits.Inc()
		return
	}
	s.cacheMisses.Inc()
}

// RecordReportJob counts a report job reaching a terminal status.
func (s *MetricsService) RecordReportJob(status string) {
	s.reportJobs.WithLabelValues(status).Inc()
}
