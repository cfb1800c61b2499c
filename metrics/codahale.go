package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
)

const (
	KeyServe                  = "serve.%s.%s.%d"
	KeyServeHost              = "servehost.%s.%s.%d"
	KeyErrorsBackend          = "errors.backend.%s"
	KeyErrorsStatic           = "errors.static.%s"
	KeyMappingReloads         = "mapping.reloads"
	KeyMappingReloadFailures  = "mapping.reloadfailures"
	KeyMappingEntries         = "mapping.entries"
	keyErrorsCombinedFallback = "-"

	statsRefreshDuration = time.Duration(5 * time.Second)

	defaultUniformReservoirSize  = 1024
	defaultExpDecayReservoirSize = 1028
	defaultExpDecayAlpha         = 0.015
)

// CodaHale is the CodaHale format backend, implements Metrics interface in DropWizard's CodaHale metrics format.
type CodaHale struct {
	reg           metrics.Registry
	createTimer   func() metrics.Timer
	createCounter func() metrics.Counter
	createGauge   func() metrics.GaugeFloat64
	options       Options
	handler       http.Handler
	quit          chan struct{}
	closeOnce     sync.Once
}

// NewCodaHale returns a new CodaHale backend of metrics.
func NewCodaHale(o Options) *CodaHale {
	c := &CodaHale{quit: make(chan struct{})}
	c.reg = metrics.NewRegistry()

	var createSample func() metrics.Sample
	if o.UseExpDecaySample {
		createSample = newExpDecaySample
	} else {
		createSample = newUniformSample
	}
	c.createTimer = func() metrics.Timer { return createTimer(createSample()) }

	c.createCounter = metrics.NewCounter
	c.createGauge = metrics.NewGaugeFloat64
	c.options = o

	if o.EnableRuntimeMetrics {
		metrics.RegisterRuntimeMemStats(c.reg)
		go c.captureRuntimeMemStats(statsRefreshDuration)
	}

	return c
}

// NewVoid returns a backend that drops every measurement.
func NewVoid() *CodaHale {
	c := &CodaHale{quit: make(chan struct{})}
	c.reg = metrics.NewRegistry()
	c.createTimer = func() metrics.Timer { return metrics.NilTimer{} }
	c.createCounter = func() metrics.Counter { return metrics.NilCounter{} }
	c.createGauge = func() metrics.GaugeFloat64 { return metrics.NilGaugeFloat64{} }
	return c
}

func (c *CodaHale) captureRuntimeMemStats(d time.Duration) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		metrics.CaptureRuntimeMemStatsOnce(c.reg)
		select {
		case <-t.C:
		case <-c.quit:
			return
		}
	}
}

func (c *CodaHale) getTimer(key string) metrics.Timer {
	return c.reg.GetOrRegister(key, c.createTimer).(metrics.Timer)
}

func (c *CodaHale) measureSince(key string, start time.Time) {
	if t := c.getTimer(key); t != nil {
		t.Update(time.Since(start))
	}
}

func (c *CodaHale) getGauge(key string) metrics.GaugeFloat64 {
	return c.reg.GetOrRegister(key, c.createGauge).(metrics.GaugeFloat64)
}

func (c *CodaHale) updateGauge(key string, v float64) {
	if g := c.getGauge(key); g != nil {
		g.Update(v)
	}
}

func (c *CodaHale) getCounter(key string) metrics.Counter {
	return c.reg.GetOrRegister(key, c.createCounter).(metrics.Counter)
}

func (c *CodaHale) incCounter(key string, value int64) {
	if c := c.getCounter(key); c != nil {
		c.Inc(value)
	}
}

func (c *CodaHale) errorsKeyHost(host string) string {
	if c.options.EnableServeHostMetrics {
		return hostForKey(host)
	}

	return keyErrorsCombinedFallback
}

func (c *CodaHale) MeasureServe(dispatch, host, method string, code int, start time.Time) {
	method = measuredMethod(method)
	c.measureSince(fmt.Sprintf(KeyServe, dispatch, method, code), start)
	if c.options.EnableServeHostMetrics {
		c.measureSince(fmt.Sprintf(KeyServeHost, hostForKey(host), method, code), start)
	}
}

func (c *CodaHale) IncErrorsBackend(host string) {
	c.incCounter(fmt.Sprintf(KeyErrorsBackend, c.errorsKeyHost(host)), 1)
}

func (c *CodaHale) IncErrorsStatic(host string) {
	c.incCounter(fmt.Sprintf(KeyErrorsStatic, c.errorsKeyHost(host)), 1)
}

func (c *CodaHale) IncMappingReloads() {
	c.incCounter(KeyMappingReloads, 1)
}

func (c *CodaHale) IncMappingReloadFailures() {
	c.incCounter(KeyMappingReloadFailures, 1)
}

func (c *CodaHale) UpdateMappingEntries(n int) {
	c.updateGauge(KeyMappingEntries, float64(n))
}

func (c *CodaHale) RegisterHandler(path string, handler *http.ServeMux) {
	h := c.getHandler(path)
	handler.Handle(path, h)
	if !strings.HasSuffix(path, "/") {
		handler.Handle(path+"/", h)
	}
}

func (c *CodaHale) CreateHandler(path string) http.Handler {
	return &codaHaleMetricsHandler{path: path, registry: c.reg, options: c.options}
}

func (c *CodaHale) getHandler(path string) http.Handler {
	if c.handler != nil {
		return c.handler
	}

	c.handler = c.CreateHandler(path)
	return c.handler
}

// Close stops the runtime stats collection.
func (c *CodaHale) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

type codaHaleMetricsHandler struct {
	path     string
	registry metrics.Registry
	options  Options
}

func (c *codaHaleMetricsHandler) sendMetrics(w http.ResponseWriter, p string) {
	_, k := path.Split(p)

	metrics := filterMetrics(c.registry, c.options.Prefix, k)

	if len(metrics) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(metrics)
	} else {
		http.NotFound(w, nil)
	}
}

// This listener is only used to expose the metrics
func (c *codaHaleMetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := r.URL.Path
	c.sendMetrics(w, strings.TrimPrefix(p, c.path))
}

func filterMetrics(reg metrics.Registry, prefix, key string) routerMetrics {
	metrics := make(routerMetrics)

	canonicalKey := strings.TrimPrefix(key, prefix)
	m := reg.Get(canonicalKey)
	if m != nil {
		metrics[key] = m
	} else {
		reg.Each(func(name string, i interface{}) {
			if key == "" || (strings.HasPrefix(name, canonicalKey)) {
				metrics[prefix+name] = i
			}
		})
	}
	return metrics
}

type routerMetrics map[string]interface{}

func percentiles(values map[string]interface{}, ps []float64) {
	values["median"] = ps[0]
	values["75%"] = ps[1]
	values["95%"] = ps[2]
	values["99%"] = ps[3]
	values["99.9%"] = ps[4]
}

// MarshalJSON groups the collected metrics by their family.
func (sm routerMetrics) MarshalJSON() ([]byte, error) {
	data := make(map[string]map[string]interface{})
	for name, metric := range sm {
		values := make(map[string]interface{})
		var metricsFamily string

		switch m := metric.(type) {
		case metrics.Gauge:
			metricsFamily = "gauges"
			values["value"] = m.Value()
		case metrics.GaugeFloat64:
			metricsFamily = "gauges"
			values["value"] = m.Snapshot().Value()
		case metrics.Histogram:
			metricsFamily = "histograms"
			h := m.Snapshot()
			values["count"] = h.Count()
			values["min"] = h.Min()
			values["max"] = h.Max()
			values["mean"] = h.Mean()
			values["stddev"] = h.StdDev()
			percentiles(values, h.Percentiles([]float64{0.5, 0.75, 0.95, 0.99, 0.999}))
		case metrics.Timer:
			metricsFamily = "timers"
			t := m.Snapshot()
			values["count"] = t.Count()
			values["min"] = t.Min()
			values["max"] = t.Max()
			values["mean"] = t.Mean()
			values["stddev"] = t.StdDev()
			percentiles(values, t.Percentiles([]float64{0.5, 0.75, 0.95, 0.99, 0.999}))
			values["1m.rate"] = t.Rate1()
			values["5m.rate"] = t.Rate5()
			values["15m.rate"] = t.Rate15()
			values["mean.rate"] = t.RateMean()
		case metrics.Counter:
			metricsFamily = "counters"
			values["count"] = m.Snapshot().Count()
		default:
			metricsFamily = "unknown"
			values["error"] = fmt.Sprintf("unknown metrics type %T", m)
		}
		if data[metricsFamily] == nil {
			data[metricsFamily] = make(map[string]interface{})
		}
		data[metricsFamily][name] = values
	}

	return json.Marshal(data)
}
