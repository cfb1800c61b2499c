package net

import (
	"net"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// HostPatch is used to modify the host[:port] string of a request
// before looking it up in the mapping.
type HostPatch struct {
	// Remove port if present
	RemovePort bool

	// Remove trailing dot if present
	RemoveTrailingDot bool

	// Convert to lowercase
	ToLower bool
}

// Apply returns the patched host. Values that cannot be split into host
// and port are treated as having no port.
func (h HostPatch) Apply(original string) string {
	host, port := original, ""

	// avoid net.SplitHostPort for value without port
	if strings.IndexByte(original, ':') != -1 {
		if sh, sp, err := net.SplitHostPort(original); err == nil {
			host, port = sh, sp
		}
	}

	if h.RemovePort {
		port = ""
	}

	if h.RemoveTrailingDot {
		host = strings.TrimSuffix(host, ".")
	}

	if h.ToLower {
		host = strings.ToLower(host)
	}

	if port == "" {
		return host
	}

	return net.JoinHostPort(host, port)
}

// ValidHost tells whether the value of a Host header can be used to
// address an upstream. Empty hosts are invalid.
func ValidHost(h string) bool {
	return h != "" && httpguts.ValidHostHeader(h)
}
