// Package metricstest provides a metrics implementation that stores the
// measurements in memory, for inspection in tests.
package metricstest

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zalando/hostrouter/metrics"
)

type MockMetrics struct {
	Prefix string

	mu sync.Mutex

	// Metrics gathering
	counters map[string]int64
	gauges   map[string]float64
	measures map[string][]time.Duration
	Now      time.Time
}

var _ metrics.Metrics = (*MockMetrics)(nil)

//
// Public thread safe access to metrics
//

func (m *MockMetrics) WithCounters(f func(counters map[string]int64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	f(m.counters)
}

func (m *MockMetrics) WithMeasures(f func(measures map[string][]time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.measures == nil {
		m.measures = make(map[string][]time.Duration)
	}
	f(m.measures)
}

func (m *MockMetrics) WithGauges(f func(map[string]float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gauges == nil {
		m.gauges = make(map[string]float64)
	}

	f(m.gauges)
}

func (m *MockMetrics) since(start time.Time) time.Duration {
	now := m.Now
	if now.IsZero() {
		now = time.Now()
	}

	return now.Sub(start)
}

func (m *MockMetrics) measureSince(key string, start time.Time) {
	d := m.since(start)
	key = m.Prefix + key
	m.WithMeasures(func(measures map[string][]time.Duration) {
		measures[key] = append(measures[key], d)
	})
}

func (m *MockMetrics) incCounter(key string) {
	key = m.Prefix + key
	m.WithCounters(func(counters map[string]int64) {
		counters[key]++
	})
}

func hostForKey(h string) string {
	h = strings.Replace(h, ".", "_", -1)
	h = strings.Replace(h, ":", "__", -1)
	return h
}

//
// Interface Metrics
//

func (m *MockMetrics) MeasureServe(dispatch, host, method string, code int, start time.Time) {
	m.measureSince(fmt.Sprintf(metrics.KeyServe, dispatch, method, code), start)
	m.measureSince(fmt.Sprintf(metrics.KeyServeHost, hostForKey(host), method, code), start)
}

func (m *MockMetrics) IncErrorsBackend(host string) {
	m.incCounter(fmt.Sprintf(metrics.KeyErrorsBackend, hostForKey(host)))
}

func (m *MockMetrics) IncErrorsStatic(host string) {
	m.incCounter(fmt.Sprintf(metrics.KeyErrorsStatic, hostForKey(host)))
}

func (m *MockMetrics) IncMappingReloads() {
	m.incCounter(metrics.KeyMappingReloads)
}

func (m *MockMetrics) IncMappingReloadFailures() {
	m.incCounter(metrics.KeyMappingReloadFailures)
}

func (m *MockMetrics) UpdateMappingEntries(n int) {
	key := m.Prefix + metrics.KeyMappingEntries
	m.WithGauges(func(g map[string]float64) {
		g[key] = float64(n)
	})
}

func (*MockMetrics) RegisterHandler(path string, handler *http.ServeMux) {
	panic("implement me")
}

func (*MockMetrics) Close() {}

//
// Inspection
//

func (m *MockMetrics) Counter(key string) (v int64, ok bool) {
	m.WithCounters(func(c map[string]int64) {
		v, ok = c[key]
	})

	return
}

func (m *MockMetrics) Gauge(key string) (v float64, ok bool) {
	m.WithGauges(func(g map[string]float64) {
		v, ok = g[key]
	})

	return
}

func (m *MockMetrics) Timer(key string) (d []time.Duration, ok bool) {
	m.WithMeasures(func(measures map[string][]time.Duration) {
		d, ok = measures[key]
	})

	return
}

func (m *MockMetrics) Measure(key string) ([]time.Duration, bool) {
	return m.Timer(key)
}
