package metrics

import (
	"net/http"
	"time"
)

// All collects the metrics with both backends. The CodaHale values are
// exposed under the registered path, the Prometheus ones under
// path/prometheus.
type All struct {
	prometheus *Prometheus
	codaHale   *CodaHale
}

func NewAll(o Options) *All {
	return &All{
		prometheus: NewPrometheus(o),
		codaHale:   NewCodaHale(o),
	}
}

func (a *All) MeasureServe(dispatch, host, method string, code int, start time.Time) {
	a.prometheus.MeasureServe(dispatch, host, method, code, start)
	a.codaHale.MeasureServe(dispatch, host, method, code, start)
}

func (a *All) IncErrorsBackend(host string) {
	a.prometheus.IncErrorsBackend(host)
	a.codaHale.IncErrorsBackend(host)
}

func (a *All) IncErrorsStatic(host string) {
	a.prometheus.IncErrorsStatic(host)
	a.codaHale.IncErrorsStatic(host)
}

func (a *All) IncMappingReloads() {
	a.prometheus.IncMappingReloads()
	a.codaHale.IncMappingReloads()
}

func (a *All) IncMappingReloadFailures() {
	a.prometheus.IncMappingReloadFailures()
	a.codaHale.IncMappingReloadFailures()
}

func (a *All) UpdateMappingEntries(n int) {
	a.prometheus.UpdateMappingEntries(n)
	a.codaHale.UpdateMappingEntries(n)
}

func (a *All) RegisterHandler(path string, mux *http.ServeMux) {
	a.codaHale.RegisterHandler(path, mux)
	a.prometheus.RegisterHandler(path+"/prometheus", mux)
}

func (a *All) Close() {
	a.codaHale.Close()
	a.prometheus.Close()
}
