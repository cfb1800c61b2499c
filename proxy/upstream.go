package proxy

import (
	"context"
	stdlog "log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	snet "github.com/zalando/hostrouter/net"
	"github.com/zalando/hostrouter/routing"
)

type targetKey struct{}

// the reverse proxy removes these before Rewrite, they are restored
// from the incoming request
var forwardedHeaders = []string{
	"X-Forwarded-For",
	"X-Forwarded-Host",
	"X-Forwarded-Proto",
}

func newUpstream(p *Proxy, rt http.RoundTripper, flush time.Duration, token string, errorLog *stdlog.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			target := pr.In.Context().Value(targetKey{}).(*url.URL)
			pr.SetURL(target)

			for _, h := range forwardedHeaders {
				if v := pr.In.Header.Values(h); len(v) > 0 {
					pr.Out.Header[h] = v
				}
			}

			if token != "" {
				snet.AppendVia(pr.Out.Header, token)
			}
		},
		Transport:     rt,
		FlushInterval: flush,
		ErrorLog:      errorLog,
		ErrorHandler:  p.backendError,
	}
}

func (p *Proxy) backendError(w http.ResponseWriter, r *http.Request, err error) {
	target, _ := r.Context().Value(targetKey{}).(*url.URL)
	p.log.Errorf("error while proxying, target: %v, method: %s, path: %s: %v", target, r.Method, r.URL.Path, err)
	if target != nil {
		p.metrics.IncErrorsBackend(target.Host)
	}

	writeStatus(w, http.StatusBadGateway)
}

func (p *Proxy) proxy(w http.ResponseWriter, r *http.Request, d routing.Decision) {
	ctx := context.WithValue(r.Context(), targetKey{}, d.Target)
	p.upstream.ServeHTTP(w, r.WithContext(ctx))
}
