package logging

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

type prefixFormatter struct {
	prefix    string
	formatter log.Formatter
}

// Options for logging initialization.
type Options struct {

	// Prefix for application log entries. Primarily used to be
	// able to select between access log and application log
	// entries.
	ApplicationLogPrefix string

	// Output for the application log entries, when nil,
	// os.Stderr is used.
	ApplicationLogOutput io.Writer

	// Minimum level of the application log entries. The zero
	// value (log.PanicLevel) leaves the current level unchanged.
	ApplicationLogLevel log.Level

	// When set, the application log is written in JSON format.
	ApplicationLogJSONEnabled bool

	// Output for the access log entries, when nil, os.Stderr is
	// used.
	AccessLogOutput io.Writer

	// When set, no access log is printed.
	AccessLogDisabled bool

	// When set, log in JSON format is used
	AccessLogJSONEnabled bool
}

func (f *prefixFormatter) Format(e *log.Entry) ([]byte, error) {
	b, err := f.formatter.Format(e)
	if err != nil {
		return nil, err
	}

	return append([]byte(f.prefix), b...), nil
}

func initApplicationLog(o Options) {
	var formatter log.Formatter = &log.TextFormatter{}
	if o.ApplicationLogJSONEnabled {
		formatter = &log.JSONFormatter{}
	}

	if o.ApplicationLogPrefix != "" {
		formatter = &prefixFormatter{o.ApplicationLogPrefix, formatter}
	}

	log.SetFormatter(formatter)

	if o.ApplicationLogOutput != nil {
		log.SetOutput(o.ApplicationLogOutput)
	}

	if o.ApplicationLogLevel != log.PanicLevel {
		log.SetLevel(o.ApplicationLogLevel)
	}
}

func initAccessLog(o Options) {
	l := log.New()
	if o.AccessLogJSONEnabled {
		l.Formatter = &log.JSONFormatter{TimestampFormat: dateFormat, DisableTimestamp: true}
	} else {
		l.Formatter = &accessLogFormatter{accessLogFormat}
	}

	l.Out = o.AccessLogOutput
	l.Level = log.InfoLevel
	accessLog = l
}

// Init initializes logging.
func Init(o Options) {
	initApplicationLog(o)

	if o.AccessLogDisabled {
		accessLog = nil
		return
	}

	if o.AccessLogOutput == nil {
		o.AccessLogOutput = os.Stderr
	}

	initAccessLog(o)
}
