package routing_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	snet "github.com/zalando/hostrouter/net"
	"github.com/zalando/hostrouter/routing"
)

type testMappings map[string]string

func (m testMappings) Lookup(host string) (string, bool) {
	p, ok := m[host]
	return p, ok
}

const testRoot = "/srv/static"

func TestDecide(t *testing.T) {
	mappings := testMappings{
		"a.test":      "pages/a.html",
		"example.com": "sites/example/index.html",
		"":            "pages/empty.html",
	}

	for _, tt := range []struct {
		name    string
		options routing.Options
		host    string
		header  http.Header
		kind    routing.Kind
		path    string
		target  string
		err     error
	}{{
		name: "mapped host",
		host: "a.test",
		kind: routing.ServeFile,
		path: "/srv/static/pages/a.html",
	}, {
		name: "mapped host with port",
		host: "example.com:8080",
		kind: routing.ServeFile,
		path: "/srv/static/sites/example/index.html",
	}, {
		name: "mapped host ignores the forwarded protocol",
		host: "a.test",
		header: http.Header{
			"X-Forwarded-Proto": []string{"gopher"},
		},
		kind: routing.ServeFile,
		path: "/srv/static/pages/a.html",
	}, {
		name:   "unmapped host",
		host:   "b.test",
		kind:   routing.Proxy,
		target: "http://b.test",
	}, {
		name:   "unmapped host keeps the port",
		host:   "b.test:8080",
		kind:   routing.Proxy,
		target: "http://b.test:8080",
	}, {
		name: "forwarded protocol",
		host: "b.test",
		header: http.Header{
			"X-Forwarded-Proto": []string{"HTTPS, http"},
		},
		kind:   routing.Proxy,
		target: "https://b.test",
	}, {
		name: "invalid forwarded protocol",
		host: "b.test",
		header: http.Header{
			"X-Forwarded-Proto": []string{"ftp"},
		},
		kind: routing.Error,
		err:  routing.ErrInvalidScheme,
	}, {
		name: "missing host",
		host: "",
		kind: routing.Error,
		err:  routing.ErrInvalidHost,
	}, {
		name: "invalid host",
		host: "b test",
		kind: routing.Error,
		err:  routing.ErrInvalidHost,
	}, {
		name:   "case sensitive by default",
		host:   "A.TEST",
		kind:   routing.Proxy,
		target: "http://A.TEST",
	}, {
		name:    "normalized host",
		options: routing.Options{HostPatch: snet.HostPatch{ToLower: true, RemoveTrailingDot: true}},
		host:    "A.TEST.:80",
		kind:    routing.ServeFile,
		path:    "/srv/static/pages/a.html",
	}, {
		name:    "loop detected",
		options: routing.Options{InstanceToken: "instance-1"},
		host:    "b.test",
		header: http.Header{
			"Via": []string{"1.1 instance-1"},
		},
		kind: routing.Error,
		err:  routing.ErrLoopDetected,
	}, {
		name:    "other proxy in via",
		options: routing.Options{InstanceToken: "instance-1"},
		host:    "b.test",
		header: http.Header{
			"Via": []string{"1.1 instance-2"},
		},
		kind:   routing.Proxy,
		target: "http://b.test",
	}, {
		name: "loop detection disabled",
		host: "b.test",
		header: http.Header{
			"Via": []string{"1.1 instance-1"},
		},
		kind:   routing.Proxy,
		target: "http://b.test",
	}} {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.options
			o.Mappings = mappings
			o.Root = testRoot
			r, err := routing.New(o)
			require.NoError(t, err)

			req := httptest.NewRequest("GET", "/some/path?q=1", nil)
			req.Host = tt.host
			for k, v := range tt.header {
				req.Header[k] = v
			}

			d := r.Decide(req)
			assert.Equal(t, tt.kind, d.Kind)
			switch tt.kind {
			case routing.ServeFile:
				assert.Equal(t, filepath.FromSlash(tt.path), d.Path)
			case routing.Proxy:
				require.NotNil(t, d.Target)
				assert.Equal(t, tt.target, d.Target.String())
			case routing.Error:
				assert.True(t, errors.Is(d.Err, tt.err), "expected %v, got %v", tt.err, d.Err)
			}
		})
	}
}

func TestDefaultRoot(t *testing.T) {
	r, err := routing.New(routing.Options{Mappings: testMappings{}})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(r.Root()))
}

func TestMissingMappings(t *testing.T) {
	_, err := routing.New(routing.Options{})
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "file", routing.ServeFile.String())
	assert.Equal(t, "proxy", routing.Proxy.String())
	assert.Equal(t, "error", routing.Error.String())
}
