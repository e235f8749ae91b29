package service

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// generation pipeline.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	generationDuration   *prometheus.HistogramVec
	generationTotal      *prometheus.CounterVec
	generationBacktracks prometheus.Counter
	exportTotal          *prometheus.CounterVec
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

	generationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedule_generation_duration_seconds",
		Help:    "Wall time of schedule generation runs",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 120, 300, 600, 900},
	}, []string{"outcome"})

	generationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_generations_total",
		Help: "Schedule generation runs by outcome",
	}, []string{"outcome"})

	generationBacktracks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_generation_backtracks_total",
		Help: "Search backtracks across all generation runs",
	})

	exportTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_exports_total",
		Help: "Schedule export jobs by status",
	}, []string{"status"})

	registry.MustRegister(requestDuration, requestTotal, generationDuration, generationTotal, generationBacktracks, exportTotal)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		generationDuration:   generationDuration,
		generationTotal:      generationTotal,
		generationBacktracks: generationBacktracks,
		exportTotal:          exportTotal,
	}
}

// Handler exposes the scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveRequest records one handled HTTP request.
func (m *MetricsService) ObserveRequest(method, path, status string, seconds float64) {
	m.requestDuration.WithLabelValues(method, path, status).Observe(seconds)
	m.requestTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveGeneration records one generation run by outcome.
func (m *MetricsService) ObserveGeneration(outcome string, seconds float64, backtracks int) {
	m.generationDuration.WithLabelValues(outcome).Observe(seconds)
	m.generationTotal.WithLabelValues(outcome).Inc()
	if backtracks > 0 {
		m.generationBacktracks.Add(float64(backtracks))
	}
}

// CountExport records one export job completion by status.
func (m *MetricsService) CountExport(status string) {
	m.exportTotal.WithLabelValues(status).Inc()
}
