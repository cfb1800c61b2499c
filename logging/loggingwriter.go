package logging

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
)

// LoggingWriter wraps an http.ResponseWriter and records the status code
// and the number of bytes written, for the access log and the metrics.
type LoggingWriter struct {
	writer http.ResponseWriter
	code   int
	bytes  int64
}

func NewLoggingWriter(w http.ResponseWriter) *LoggingWriter {
	return &LoggingWriter{writer: w}
}

func (lw *LoggingWriter) Write(data []byte) (count int, err error) {
	if lw.code == 0 {
		lw.code = http.StatusOK
	}

	count, err = lw.writer.Write(data)
	lw.bytes += int64(count)
	return
}

func (lw *LoggingWriter) WriteHeader(code int) {
	lw.writer.WriteHeader(code)
	if code == 0 {
		code = http.StatusOK
	}
	lw.code = code
}

func (lw *LoggingWriter) Header() http.Header {
	return lw.writer.Header()
}

func (lw *LoggingWriter) Flush() {
	if f, ok := lw.writer.(http.Flusher); ok {
		f.Flush()
	}
}

func (lw *LoggingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hij, ok := lw.writer.(http.Hijacker)
	if ok {
		return hij.Hijack()
	}
	return nil, nil, fmt.Errorf("could not hijack connection")
}

// Unwrap allows http.ResponseController to reach the underlying writer.
func (lw *LoggingWriter) Unwrap() http.ResponseWriter {
	return lw.writer
}

// GetBytes returns the number of body bytes written so far.
func (lw *LoggingWriter) GetBytes() int64 {
	return lw.bytes
}

// GetCode returns the status code sent, or 0 if nothing was sent yet.
func (lw *LoggingWriter) GetCode() int {
	return lw.code
}

// Written tells whether the response header was already sent.
func (lw *LoggingWriter) Written() bool {
	return lw.code != 0
}
