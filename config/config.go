package config

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/zalando/hostrouter"
	"github.com/zalando/hostrouter/mappingfile"
	"github.com/zalando/hostrouter/metrics"
	"github.com/zalando/hostrouter/proxy"
)

const (
	portEnv        = "PORT"
	defaultPort    = 10000
	defaultAddress = ":10000"
)

type Config struct {
	ConfigFile string
	Flags      *flag.FlagSet

	// generic:
	Address              string        `yaml:"address"`
	MappingsFile         string        `yaml:"mappings-file"`
	StaticRoot           string        `yaml:"static-root"`
	WatchDebounce        time.Duration `yaml:"watch-debounce"`
	MappingsPollInterval time.Duration `yaml:"mappings-poll-interval"`
	NormalizeHost        bool          `yaml:"normalize-host"`
	DisableLoopDetection bool          `yaml:"disable-loop-detection"`
	Insecure             bool          `yaml:"insecure"`
	IdleConnsPerHost     int           `yaml:"idle-conns-num"`
	SupportListener      string        `yaml:"support-listener"`

	// logging, metrics:
	MetricsFlavour               string    `yaml:"metrics-flavour"`
	MetricsPrefix                string    `yaml:"metrics-prefix"`
	EnableRuntimeMetrics         bool      `yaml:"runtime-metrics"`
	EnableServeHostMetrics       bool      `yaml:"serve-host-metrics"`
	MetricsUseExpDecaySample     bool      `yaml:"metrics-exp-decay-sample"`
	HistogramMetricBucketsString string    `yaml:"histogram-metric-buckets"`
	HistogramMetricBuckets       []float64 `yaml:"-"`
	ApplicationLog               string    `yaml:"application-log"`
	ApplicationLogLevel          log.Level `yaml:"-"`
	ApplicationLogLevelString    string    `yaml:"application-log-level"`
	ApplicationLogPrefix         string    `yaml:"application-log-prefix"`
	ApplicationLogJSONEnabled    bool      `yaml:"application-log-json-enabled"`
	AccessLog                    string    `yaml:"access-log"`
	AccessLogDisabled            bool      `yaml:"access-log-disabled"`
	AccessLogJSONEnabled         bool      `yaml:"access-log-json-enabled"`

	metricsKind metrics.Kind
}

func NewConfig() *Config {
	cfg := new(Config)

	flag := flag.NewFlagSet("", flag.ExitOnError)
	flag.StringVar(&cfg.ConfigFile, "config-file", "", "if provided the flags will be loaded/overwritten by the values on the file (yaml)")

	// generic:
	flag.StringVar(&cfg.Address, "address", defaultAddress, "network address that the router should listen on, defaults to the PORT environment variable when set")
	flag.StringVar(&cfg.MappingsFile, "mappings-file", "mappings.json", "JSON file containing the hostname to file mapping")
	flag.StringVar(&cfg.StaticRoot, "static-root", "", "directory that the mapped file paths are relative to, defaults to the working directory")
	flag.DurationVar(&cfg.WatchDebounce, "watch-debounce", mappingfile.DefaultDebounce, "time window in which the changes of the mapping file are coalesced into a single reload")
	flag.DurationVar(&cfg.MappingsPollInterval, "mappings-poll-interval", 0, "when set, the mapping file is also checked for changes periodically")
	flag.BoolVar(&cfg.NormalizeHost, "normalize-host", false, "convert the hostnames to lower case and remove the trailing dot before the lookup")
	flag.BoolVar(&cfg.DisableLoopDetection, "disable-loop-detection", false, "do not reject the requests that were already proxied by this instance")
	flag.BoolVar(&cfg.Insecure, "insecure", false, "flag indicating to ignore the verification of the TLS certificates of the upstream services")
	flag.IntVar(&cfg.IdleConnsPerHost, "idle-conns-num", proxy.DefaultIdleConnsPerHost, "maximum idle connections per upstream host")
	flag.StringVar(&cfg.SupportListener, "support-listener", ":9911", "network address used for exposing the /metrics and the /healthz endpoints. An empty value disables the support listener")

	// logging, metrics:
	flag.StringVar(&cfg.MetricsFlavour, "metrics-flavour", "prometheus", "metrics flavour is used to change the exposed metrics format. Supported metric formats: 'codahale', 'prometheus' and 'all'")
	flag.StringVar(&cfg.MetricsPrefix, "metrics-prefix", "hostrouter.", "allows setting a custom path prefix for metrics export")
	flag.BoolVar(&cfg.EnableRuntimeMetrics, "runtime-metrics", true, "enables reporting of the Go runtime statistics exported in runtime and specifically runtime.MemStats")
	flag.BoolVar(&cfg.EnableServeHostMetrics, "serve-host-metrics", false, "enables reporting the serve time and the errors partitioned by the requested host")
	flag.BoolVar(&cfg.MetricsUseExpDecaySample, "metrics-exp-decay-sample", false, "use exponentially-decaying sample in timers")
	flag.StringVar(&cfg.HistogramMetricBucketsString, "histogram-metric-buckets", "", "use custom buckets for prometheus histograms, must be a comma-separated list of numbers")
	flag.StringVar(&cfg.ApplicationLog, "application-log", "", "output file for the application log. When not set, /dev/stderr is used")
	flag.StringVar(&cfg.ApplicationLogLevelString, "application-log-level", "INFO", "log level for application logs, possible values: PANIC, FATAL, ERROR, WARN, INFO, DEBUG")
	flag.StringVar(&cfg.ApplicationLogPrefix, "application-log-prefix", "[APP]", "prefix for each log entry")
	flag.BoolVar(&cfg.ApplicationLogJSONEnabled, "application-log-json-enabled", false, "when this flag is set, log in JSON format is used")
	flag.StringVar(&cfg.AccessLog, "access-log", "", "output file for the access log, When not set, /dev/stderr is used")
	flag.BoolVar(&cfg.AccessLogDisabled, "access-log-disabled", false, "when this flag is set, no access log is printed")
	flag.BoolVar(&cfg.AccessLogJSONEnabled, "access-log-json-enabled", false, "when this flag is set, log in JSON format is used")

	cfg.Flags = flag
	return cfg
}

func validate(c *Config) error {
	_, err := log.ParseLevel(c.ApplicationLogLevelString)
	if err != nil {
		return err
	}

	if metrics.ParseMetricsKind(c.MetricsFlavour) == metrics.UnknownKind {
		return fmt.Errorf("invalid metrics flavour: %s", c.MetricsFlavour)
	}

	if c.MappingsFile == "" {
		return fmt.Errorf("missing mappings file")
	}

	if c.IdleConnsPerHost < 0 {
		return fmt.Errorf("invalid number of idle connections: %d", c.IdleConnsPerHost)
	}

	if c.WatchDebounce < 0 || c.MappingsPollInterval < 0 {
		return fmt.Errorf("invalid negative duration, watch debounce: %v, poll interval: %v", c.WatchDebounce, c.MappingsPollInterval)
	}

	_, err = c.parseHistogramBuckets(c.HistogramMetricBucketsString, prometheus.DefBuckets)
	return err
}

func (c *Config) Parse() error {
	return c.ParseArgs(os.Args[0], os.Args[1:])
}

func (c *Config) ParseArgs(progname string, args []string) error {
	c.Flags.Init(progname, flag.ExitOnError)
	err := c.Flags.Parse(args)
	if err != nil {
		return err
	}

	// check if arguments were correctly parsed.
	if len(c.Flags.Args()) != 0 {
		return fmt.Errorf("invalid arguments: %s", c.Flags.Args())
	}

	configKeys := make(map[string]interface{})
	if c.ConfigFile != "" {
		yamlFile, err := os.ReadFile(c.ConfigFile)
		if err != nil {
			return fmt.Errorf("invalid config file: %w", err)
		}

		err = yaml.Unmarshal(yamlFile, c)
		if err != nil {
			return fmt.Errorf("unmarshalling config file error: %w", err)
		}

		_ = yaml.Unmarshal(yamlFile, configKeys)

		err = c.Flags.Parse(args)
		if err != nil {
			return err
		}
	}

	c.parseEnv(configKeys)

	if err := validate(c); err != nil {
		return err
	}

	c.ApplicationLogLevel, _ = log.ParseLevel(c.ApplicationLogLevelString)
	c.HistogramMetricBuckets, _ = c.parseHistogramBuckets(c.HistogramMetricBucketsString, prometheus.DefBuckets)
	c.metricsKind = metrics.ParseMetricsKind(c.MetricsFlavour)
	return nil
}

func (c *Config) ToOptions() hostrouter.Options {
	return hostrouter.Options{
		// generic:
		Address:                c.Address,
		MappingsFile:           c.MappingsFile,
		StaticRoot:             c.StaticRoot,
		WatchDebounce:          c.WatchDebounce,
		MappingsPollInterval:   c.MappingsPollInterval,
		NormalizeHost:          c.NormalizeHost,
		DisableLoopDetection:   c.DisableLoopDetection,
		Insecure:               c.Insecure,
		IdleConnectionsPerHost: c.IdleConnsPerHost,
		SupportListener:        c.SupportListener,

		// logging, metrics:
		MetricsFlavour:            c.metricsKind,
		MetricsPrefix:             c.MetricsPrefix,
		EnableRuntimeMetrics:      c.EnableRuntimeMetrics,
		EnableServeHostMetrics:    c.EnableServeHostMetrics,
		MetricsUseExpDecaySample:  c.MetricsUseExpDecaySample,
		HistogramMetricBuckets:    c.HistogramMetricBuckets,
		ApplicationLogOutput:      c.ApplicationLog,
		ApplicationLogLevel:       c.ApplicationLogLevel,
		ApplicationLogPrefix:      c.ApplicationLogPrefix,
		ApplicationLogJSONEnabled: c.ApplicationLogJSONEnabled,
		AccessLogOutput:           c.AccessLog,
		AccessLogDisabled:         c.AccessLogDisabled,
		AccessLogJSONEnabled:      c.AccessLogJSONEnabled,
	}
}

func (c *Config) parseHistogramBuckets(bucketString string, defaultBuckets []float64) ([]float64, error) {
	if bucketString == "" {
		return defaultBuckets, nil
	}

	var result []float64
	thresholds := strings.Split(bucketString, ",")
	for _, v := range thresholds {
		bucket, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse histogram-metric-buckets: %w", err)
		}
		result = append(result, bucket)
	}
	sort.Float64s(result)
	return result, nil
}

// parsePort returns the port from the environment, or 0 when it is not
// a valid port number.
func parsePort(s string) int {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < 1 || p > 65535 {
		return 0
	}

	return p
}

func (c *Config) parseEnv(configKeys map[string]interface{}) {
	// The address is taken from the environment only when it was not set
	// on the command line or in the configuration file.
	addressSet := false
	c.Flags.Visit(func(f *flag.Flag) {
		if f.Name == "address" {
			addressSet = true
		}
	})

	if _, ok := configKeys["address"]; ok || addressSet {
		return
	}

	v := os.Getenv(portEnv)
	if v == "" {
		return
	}

	port := parsePort(v)
	if port == 0 {
		log.Warnf("invalid %s: %q, using the default port %d", portEnv, v, defaultPort)
		port = defaultPort
	}

	c.Address = fmt.Sprintf(":%d", port)
}
