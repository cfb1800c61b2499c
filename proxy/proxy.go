package proxy

import (
	"crypto/tls"
	"io"
	stdlog "log"
	"net/http"
	"net/http/httputil"
	"runtime"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zalando/hostrouter/logging"
	"github.com/zalando/hostrouter/metrics"
	"github.com/zalando/hostrouter/routing"
)

const (
	// DefaultIdleConnsPerHost is the default value of the maximum number
	// of idle connections kept open to a single upstream host.
	DefaultIdleConnsPerHost = 64
)

// Proxy initialization options.
type Params struct {
	// The proxy expects a router that decides how the incoming
	// requests are handled.
	Router *routing.Router

	// Metrics collector. Defaults to a void collector.
	Metrics metrics.Metrics

	// Log receives the error messages. Defaults to the application
	// log.
	Log logging.Logger

	// Insecure disables the verification of the upstream TLS
	// certificates.
	Insecure bool

	// IdleConnectionsPerHost sets the maximum idle connections per
	// upstream host. Defaults to DefaultIdleConnsPerHost.
	IdleConnectionsPerHost int

	// FlushInterval is passed to the reverse proxy. Negative values
	// flush after every write.
	FlushInterval time.Duration

	// InstanceToken, when set, is added to the Via header of the
	// proxied requests.
	InstanceToken string

	// When set, no access log is printed.
	AccessLogDisabled bool

	// Transport overrides the round tripper used for the upstream
	// requests. When set, Insecure and IdleConnectionsPerHost are
	// ignored.
	Transport http.RoundTripper
}

// Proxy is the http.Handler of the host router.
type Proxy struct {
	router            *routing.Router
	metrics           metrics.Metrics
	log               logging.Logger
	upstream          *httputil.ReverseProxy
	transport         *http.Transport
	errorLog          *io.PipeWriter
	accessLogDisabled bool
}

var caughtPanic atomic.Bool

// WithParams returns an initialized Proxy.
func WithParams(p Params) *Proxy {
	if p.Router == nil {
		panic("proxy: missing router")
	}

	if p.Metrics == nil {
		p.Metrics = metrics.NewVoid()
	}

	if p.Log == nil {
		p.Log = logging.New()
	}

	if p.IdleConnectionsPerHost <= 0 {
		p.IdleConnectionsPerHost = DefaultIdleConnsPerHost
	}

	px := &Proxy{
		router:            p.Router,
		metrics:           p.Metrics,
		log:               p.Log,
		accessLogDisabled: p.AccessLogDisabled,
	}

	rt := p.Transport
	if rt == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.MaxIdleConnsPerHost = p.IdleConnectionsPerHost
		if p.Insecure {
			if tr.TLSClientConfig == nil {
				tr.TLSClientConfig = &tls.Config{}
			}

			tr.TLSClientConfig.InsecureSkipVerify = true
		}

		px.transport = tr
		rt = tr
	}

	px.errorLog = log.StandardLogger().WriterLevel(log.ErrorLevel)
	px.upstream = newUpstream(px, rt, p.FlushInterval, p.InstanceToken, stdlog.New(px.errorLog, "", 0))
	return px
}

func writeStatus(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	io.WriteString(w, http.StatusText(code))
}

func tryCatch(p func(), onErr func(err interface{}, stack string)) {
	defer func() {
		if err := recover(); err != nil {
			s := ""
			if caughtPanic.CompareAndSwap(false, true) {
				buf := make([]byte, 1024)
				l := runtime.Stack(buf, false)
				s = string(buf[:l])
			}
			onErr(err, s)
		}
	}()

	p()
}

func (p *Proxy) rejected(w http.ResponseWriter, r *http.Request, d routing.Decision) {
	p.log.Errorf("request rejected, host: %q, method: %s, path: %s: %v", r.Host, r.Method, r.URL.Path, d.Err)
	writeStatus(w, http.StatusBadGateway)
}

func (p *Proxy) logAccess(lw *logging.LoggingWriter, r *http.Request, d routing.Decision, start time.Time) {
	if p.accessLogDisabled {
		return
	}

	logging.LogAccess(&logging.AccessEntry{
		Request:      r,
		ResponseSize: lw.GetBytes(),
		StatusCode:   lw.GetCode(),
		RequestTime:  start,
		Duration:     time.Since(start),
		Dispatch:     d.Kind.String(),
	})
}

// ServeHTTP implements http.Handler. It dispatches the request based on
// the decision of the router.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lw := logging.NewLoggingWriter(w)
	start := time.Now()
	d := routing.Decision{Kind: routing.Error}

	defer func() {
		p.logAccess(lw, r, d, start)
		p.metrics.MeasureServe(d.Kind.String(), d.Host, r.Method, lw.GetCode(), start)
	}()

	tryCatch(func() {
		d = p.router.Decide(r)
		switch d.Kind {
		case routing.ServeFile:
			p.serveFile(lw, r, d)
		case routing.Proxy:
			p.proxy(lw, r, d)
		default:
			p.rejected(lw, r, d)
		}
	}, func(err interface{}, stack string) {
		if err == http.ErrAbortHandler {
			panic(err)
		}

		p.log.Errorf("error while serving request, host: %q, method: %s, path: %s: %v %s", r.Host, r.Method, r.URL.Path, err, stack)
		if !lw.Written() {
			writeStatus(lw, http.StatusInternalServerError)
		}
	})
}

// Close releases the idle upstream connections and the error log
// writer.
func (p *Proxy) Close() error {
	if p.transport != nil {
		p.transport.CloseIdleConnections()
	}

	return p.errorLog.Close()
}
