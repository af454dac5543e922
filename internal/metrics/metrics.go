package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Upstream call results
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds all Prometheus metrics for the campaign builder
type Metrics struct {
	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	// Documents
	DocumentsGeneratedTotal *prometheus.CounterVec
	PreviewsTotal           prometheus.Counter

	// Third-party calls (imgbb, webhook, proof)
	UpstreamCallsTotal          *prometheus.CounterVec
	UpstreamCallDurationSeconds *prometheus.HistogramVec

	// Template store
	TemplatesStored prometheus.Gauge

	StartTime prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaign_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campaign_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaign_api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"error_type"},
		),

		DocumentsGeneratedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaign_documents_generated_total",
				Help: "Total number of generated documents",
			},
			[]string{"kind", "template_type"},
		),
		PreviewsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "campaign_previews_total",
				Help: "Total number of preview renders",
			},
		),

		UpstreamCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaign_upstream_calls_total",
				Help: "Total number of calls to third-party services",
			},
			[]string{"upstream", "result"},
		),
		UpstreamCallDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campaign_upstream_call_duration_seconds",
				Help:    "Third-party call duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"upstream"},
		),

		TemplatesStored: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "campaign_templates_stored",
				Help: "Number of templates in the template store",
			},
		),

		StartTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "campaign_start_time_seconds",
				Help: "Unix time the process started",
			},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		m.DocumentsGeneratedTotal,
		m.PreviewsTotal,
		m.UpstreamCallsTotal,
		m.UpstreamCallDurationSeconds,
		m.TemplatesStored,
		m.StartTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.StartTime.Set(float64(time.Now().Unix()))

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncDocumentsGenerated counts a generated document of kind (html, brief)
func IncDocumentsGenerated(kind, templateType string) {
	if m := Global(); m != nil {
		m.DocumentsGeneratedTotal.WithLabelValues(kind, templateType).Inc()
	}
}

// IncPreviews counts a preview render
func IncPreviews() {
	if m := Global(); m != nil {
		m.PreviewsTotal.Inc()
	}
}

// ObserveUpstream records one third-party call
func ObserveUpstream(upstream string, start time.Time, err error) {
	m := Global()
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.UpstreamCallsTotal.WithLabelValues(upstream, result).Inc()
	m.UpstreamCallDurationSeconds.WithLabelValues(upstream).Observe(time.Since(start).Seconds())
}

// SetTemplatesStored updates the template count
func SetTemplatesStored(n int64) {
	if m := Global(); m != nil {
		m.TemplatesStored.Set(float64(n))
	}
}

// IncAPIErrors increments API error counter
func IncAPIErrors(errorType string) {
	if m := Global(); m != nil {
		m.APIErrorsTotal.WithLabelValues(errorType).Inc()
	}
}
