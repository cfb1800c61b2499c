package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	promNamespace        = "hostrouter"
	promServeSubsystem   = "serve"
	promBackendSubsystem = "backend"
	promStaticSubsystem  = "static"
	promMappingSubsystem = "mapping"

	promReloadSuccess = "success"
	promReloadFailure = "failure"
)

// Prometheus implements the prometheus metrics backend.
type Prometheus struct {
	serveM          *prometheus.HistogramVec
	serveHostM      *prometheus.HistogramVec
	backendErrorsM  *prometheus.CounterVec
	staticErrorsM   *prometheus.CounterVec
	mappingReloadsM *prometheus.CounterVec
	mappingEntriesM prometheus.Gauge

	opts     Options
	registry *prometheus.Registry
	handler  http.Handler
}

// NewPrometheus returns a new Prometheus metric backend.
func NewPrometheus(opts Options) *Prometheus {
	namespace := promNamespace
	if opts.Prefix != "" {
		namespace = strings.TrimSuffix(opts.Prefix, ".")
	}

	buckets := opts.HistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	serve := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: promServeSubsystem,
		Name:      "duration_seconds",
		Help:      "Duration in seconds of serving a request.",
		Buckets:   buckets,
	}, []string{"dispatch", "method", "code"})

	serveHost := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: promServeSubsystem,
		Name:      "host_duration_seconds",
		Help:      "Duration in seconds of serving a request, by requested host.",
		Buckets:   buckets,
	}, []string{"host", "method", "code"})

	backendErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promBackendSubsystem,
		Name:      "error_total",
		Help:      "Total number of failed upstream requests.",
	}, []string{"host"})

	staticErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promStaticSubsystem,
		Name:      "error_total",
		Help:      "Total number of mapped files that could not be served.",
	}, []string{"host"})

	mappingReloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promMappingSubsystem,
		Name:      "reloads_total",
		Help:      "Total number of mapping file reloads, by result.",
	}, []string{"result"})

	mappingEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: promMappingSubsystem,
		Name:      "entries",
		Help:      "Number of entries in the current mapping.",
	})

	p := &Prometheus{
		serveM:          serve,
		serveHostM:      serveHost,
		backendErrorsM:  backendErrors,
		staticErrorsM:   staticErrors,
		mappingReloadsM: mappingReloads,
		mappingEntriesM: mappingEntries,
		opts:            opts,
		registry:        prometheus.NewRegistry(),
	}

	p.registerMetrics()
	return p
}

func (p *Prometheus) sinceS(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Second)
}

func (p *Prometheus) registerMetrics() {
	p.registry.MustRegister(p.serveM)
	p.registry.MustRegister(p.serveHostM)
	p.registry.MustRegister(p.backendErrorsM)
	p.registry.MustRegister(p.staticErrorsM)
	p.registry.MustRegister(p.mappingReloadsM)
	p.registry.MustRegister(p.mappingEntriesM)

	// Register prometheus runtime collectors if required.
	if p.opts.EnableRuntimeMetrics {
		p.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		p.registry.MustRegister(collectors.NewGoCollector())
	}
}

func (p *Prometheus) CreateHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) getHandler() http.Handler {
	if p.handler != nil {
		return p.handler
	}

	p.handler = p.CreateHandler()
	return p.handler
}

// RegisterHandler satisfies Metrics interface.
func (p *Prometheus) RegisterHandler(path string, mux *http.ServeMux) {
	promHandler := p.getHandler()
	mux.Handle(path, promHandler)
}

func (p *Prometheus) errorsLabelHost(host string) string {
	if p.opts.EnableServeHostMetrics {
		return hostForKey(host)
	}

	return keyErrorsCombinedFallback
}

// MeasureServe satisfies Metrics interface.
func (p *Prometheus) MeasureServe(dispatch, host, method string, code int, start time.Time) {
	method = measuredMethod(method)
	t := p.sinceS(start)

	p.serveM.WithLabelValues(dispatch, method, fmt.Sprint(code)).Observe(t)
	if p.opts.EnableServeHostMetrics {
		p.serveHostM.WithLabelValues(hostForKey(host), method, fmt.Sprint(code)).Observe(t)
	}
}

// IncErrorsBackend satisfies Metrics interface.
func (p *Prometheus) IncErrorsBackend(host string) {
	p.backendErrorsM.WithLabelValues(p.errorsLabelHost(host)).Inc()
}

// IncErrorsStatic satisfies Metrics interface.
func (p *Prometheus) IncErrorsStatic(host string) {
	p.staticErrorsM.WithLabelValues(p.errorsLabelHost(host)).Inc()
}

// IncMappingReloads satisfies Metrics interface.
func (p *Prometheus) IncMappingReloads() {
	p.mappingReloadsM.WithLabelValues(promReloadSuccess).Inc()
}

// IncMappingReloadFailures satisfies Metrics interface.
func (p *Prometheus) IncMappingReloadFailures() {
	p.mappingReloadsM.WithLabelValues(promReloadFailure).Inc()
}

// UpdateMappingEntries satisfies Metrics interface.
func (p *Prometheus) UpdateMappingEntries(n int) {
	p.mappingEntriesM.Set(float64(n))
}

func (p *Prometheus) Close() {}
