/*
Package logging implements application log instrumentation and Apache
combined access log.

# Application Log

The application log uses the logrus package:

https://github.com/sirupsen/logrus

To send messages to the application log, import this package and use its
methods. Example:

	import log "github.com/sirupsen/logrus"

	func doSomething() {
	    log.Errorf("nothing to do")
	}

During startup initialization, it is possible to redirect the log output
from the default /dev/stderr to another file, and to set a common
prefix for each log entry. Setting the prefix may be a good idea when
the access log is enabled and its output is the same as the one of the
application log, to make it easier to split the output for diagnostics.

Components that log from background goroutines, like the mapping file
watcher, accept a Logger, so that tests can replace it with the
implementation found in the loggingtest package.

# Access Log

The access log prints HTTP access information in the Apache combined
access log format, extended with the duration of the request, the
requested host and the dispatch decision (file, proxy or error). The
proxy package writes one entry per served request.

During initialization, it is possible to redirect the access log output
from the default /dev/stderr to another file, to switch it to JSON, or
to completely disable it.
*/
package logging
