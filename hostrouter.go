// Copyright 2015 Zalando SE
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hostrouter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/zalando/hostrouter/logging"
	"github.com/zalando/hostrouter/mappingfile"
	"github.com/zalando/hostrouter/metrics"
	"github.com/zalando/hostrouter/net"
	"github.com/zalando/hostrouter/proxy"
	"github.com/zalando/hostrouter/routing"
)

const (
	defaultShutdownTimeout = 10 * time.Second

	// HeaderMappingVersion is set by the health check endpoint to the
	// version of the current mapping.
	HeaderMappingVersion = "X-Mapping-Version"
)

// Options to start the host router.
type Options struct {
	// Network address that the router listens on.
	Address string

	// File containing the hostname to file mapping.
	MappingsFile string

	// Directory that the mapped paths are relative to. Defaults to the
	// working directory.
	StaticRoot string

	// Time window in which the changes of the mapping file are
	// coalesced into a single reload.
	WatchDebounce time.Duration

	// When set, the mapping file is also checked for changes
	// periodically.
	MappingsPollInterval time.Duration

	// Convert the hostnames to lower case and remove the trailing dot
	// before the lookup.
	NormalizeHost bool

	// Do not reject the requests that were already proxied by this
	// instance.
	DisableLoopDetection bool

	// If set, the router accepts invalid TLS certificates from the
	// upstream hosts.
	Insecure bool

	// Maximum idle connections per upstream host.
	IdleConnectionsPerHost int

	// Network address of the /metrics and the /healthz endpoints. When
	// empty, the support listener is not started.
	SupportListener string

	// Format of the exposed metrics. Defaults to Prometheus.
	MetricsFlavour metrics.Kind

	// Prefix of the metric keys, or namespace of the Prometheus
	// metrics.
	MetricsPrefix string

	// Enables the Go runtime metrics.
	EnableRuntimeMetrics bool

	// Partitions the serve time and the error metrics by the requested
	// host.
	EnableServeHostMetrics bool

	// Use an exponentially decaying sample in the CodaHale timers.
	MetricsUseExpDecaySample bool

	// Buckets of the Prometheus histograms.
	HistogramMetricBuckets []float64

	// Output file of the application log. Defaults to stderr.
	ApplicationLogOutput string

	// Application log level.
	ApplicationLogLevel log.Level

	// Prefix of the application log entries.
	ApplicationLogPrefix string

	// Enables the JSON format of the application log.
	ApplicationLogJSONEnabled bool

	// Output file of the access log. Defaults to stderr.
	AccessLogOutput string

	// Disables the access log.
	AccessLogDisabled bool

	// Enables the JSON format of the access log.
	AccessLogJSONEnabled bool
}

func openLogFile(name string) (io.Writer, error) {
	if name == "" {
		return nil, nil
	}

	return os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
}

func initLog(o Options) error {
	logOutput, err := openLogFile(o.ApplicationLogOutput)
	if err != nil {
		return err
	}

	accessLogOutput, err := openLogFile(o.AccessLogOutput)
	if err != nil {
		return err
	}

	logging.Init(logging.Options{
		ApplicationLogPrefix:      o.ApplicationLogPrefix,
		ApplicationLogOutput:      logOutput,
		ApplicationLogLevel:       o.ApplicationLogLevel,
		ApplicationLogJSONEnabled: o.ApplicationLogJSONEnabled,
		AccessLogOutput:           accessLogOutput,
		AccessLogDisabled:         o.AccessLogDisabled,
		AccessLogJSONEnabled:      o.AccessLogJSONEnabled,
	})

	return nil
}

func healthHandler(s *mappingfile.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderMappingVersion, strconv.FormatInt(s.Snapshot().Version, 10))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok")
	})
}

func listen(name string, s *http.Server) error {
	log.Infof("%s listener on %v", name, s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s listener failed: %w", name, err)
	}

	return nil
}

// RunContext starts the router and blocks until the context is done or
// one of the listeners fails.
func RunContext(ctx context.Context, o Options) error {
	if err := initLog(o); err != nil {
		return err
	}

	mtr := metrics.NewMetrics(metrics.Options{
		Format:                 o.MetricsFlavour,
		Prefix:                 o.MetricsPrefix,
		EnableRuntimeMetrics:   o.EnableRuntimeMetrics,
		EnableServeHostMetrics: o.EnableServeHostMetrics,
		UseExpDecaySample:      o.MetricsUseExpDecaySample,
		HistogramBuckets:       o.HistogramMetricBuckets,
	})
	defer mtr.Close()

	store := mappingfile.New(mappingfile.Options{
		FileName: o.MappingsFile,
		Metrics:  mtr,
	})

	if err := store.Load(); err != nil {
		log.Warnf("starting with an empty mapping, all requests are proxied")
	}

	watch, err := mappingfile.Watch(store, mappingfile.WatchOptions{
		Debounce:     o.WatchDebounce,
		PollInterval: o.MappingsPollInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to watch the mapping file: %w", err)
	}

	defer watch.Close()

	var token string
	if !o.DisableLoopDetection {
		token = "hostrouter-" + uuid.NewString()
	}

	router, err := routing.New(routing.Options{
		Mappings: store,
		Root:     o.StaticRoot,
		HostPatch: net.HostPatch{
			RemoveTrailingDot: o.NormalizeHost,
			ToLower:           o.NormalizeHost,
		},
		InstanceToken: token,
	})
	if err != nil {
		return err
	}

	px := proxy.WithParams(proxy.Params{
		Router:                 router,
		Metrics:                mtr,
		Insecure:               o.Insecure,
		IdleConnectionsPerHost: o.IdleConnectionsPerHost,
		InstanceToken:          token,
		AccessLogDisabled:      o.AccessLogDisabled,
	})
	defer px.Close()

	servers := []*http.Server{{Addr: o.Address, Handler: px}}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listen("proxy", servers[0]) })

	if o.SupportListener != "" {
		mux := http.NewServeMux()
		mtr.RegisterHandler("/metrics", mux)
		mux.Handle("/healthz", healthHandler(store))

		support := &http.Server{Addr: o.SupportListener, Handler: mux}
		servers = append(servers, support)
		g.Go(func() error { return listen("support", support) })
	}

	log.Infof("static root: %s, mappings file: %s", router.Root(), o.MappingsFile)

	g.Go(func() error {
		<-ctx.Done()
		watch.Close()

		sctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()

		for _, s := range servers {
			if err := s.Shutdown(sctx); err != nil {
				log.Errorf("failed to shut down listener on %s: %v", s.Addr, err)
			}
		}

		return nil
	})

	return g.Wait()
}

// Run starts the router and blocks until the process receives SIGINT
// or SIGTERM, or one of the listeners fails.
func Run(o Options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, o)
}
