package metrics

import (
	"net/http"
	"strings"
	"time"
)

// Kind is the type a metrics expose backend can be.
type Kind int

const (
	UnknownKind    Kind = 0
	CodaHaleKind   Kind = 1 << 0
	PrometheusKind Kind = 1 << 1
	AllKind             = CodaHaleKind | PrometheusKind
)

func (k Kind) String() string {
	switch k {
	case AllKind:
		return "all"
	case CodaHaleKind:
		return "codahale"
	case PrometheusKind:
		return "prometheus"
	default:
		return "unknown"
	}
}

// ParseMetricsKind parses a string representation of a metrics kind
// into the corresponding Kind.
func ParseMetricsKind(t string) Kind {
	t = strings.ToLower(t)

	switch t {
	case "all":
		return AllKind
	case "codahale":
		return CodaHaleKind
	case "prometheus":
		return PrometheusKind
	default:
		return UnknownKind
	}
}

// Options for initializing metrics collection.
type Options struct {
	// The metrics exposing format. Defaults to Prometheus.
	Format Kind

	// Common prefix for the keys of the different collected
	// metrics. For Prometheus, it is used as the namespace, without
	// the trailing dot.
	Prefix string

	// If set, Go runtime metrics are collected in addition to the
	// http traffic metrics.
	EnableRuntimeMetrics bool

	// If set, the serve time and the error counters are partitioned
	// by the requested host. Since the hosts of proxied requests
	// come from the clients, this can produce a high number of time
	// series.
	EnableServeHostMetrics bool

	// If set, the CodaHale timers use an exponentially decaying
	// sample instead of a uniform one.
	UseExpDecaySample bool

	// Buckets of the Prometheus serve time histograms. Defaults to
	// prometheus.DefBuckets.
	HistogramBuckets []float64
}

// Metrics is the generic interface that all the required backends
// should implement.
type Metrics interface {
	MeasureServe(dispatch, host, method string, code int, start time.Time)
	IncErrorsBackend(host string)
	IncErrorsStatic(host string)
	IncMappingReloads()
	IncMappingReloadFailures()
	UpdateMappingEntries(n int)
	RegisterHandler(path string, handler *http.ServeMux)
	Close()
}

// NewMetrics creates a metrics backend based on the format of the
// options.
func NewMetrics(o Options) Metrics {
	switch o.Format {
	case AllKind:
		return NewAll(o)
	case CodaHaleKind:
		return NewCodaHale(o)
	default:
		return NewPrometheus(o)
	}
}
