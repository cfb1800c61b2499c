package net

import (
	"net/http"
	"strings"
)

const (
	HeaderForwardedProto = "X-Forwarded-Proto"
	HeaderVia            = "Via"

	viaProtocol = "1.1"
)

// ForwardedProto returns the first value of the X-Forwarded-Proto
// header in lower case, or "http" when the header is missing. The second
// return value is false when the protocol is not http or https.
func ForwardedProto(h http.Header) (string, bool) {
	v := h.Get(HeaderForwardedProto)
	if v == "" {
		return "http", true
	}

	v, _, _ = strings.Cut(v, ",")
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "http", "https":
		return v, true
	default:
		return v, false
	}
}

// AppendVia adds a received-by entry with the token as pseudonym to the
// Via header.
func AppendVia(h http.Header, token string) {
	h.Add(HeaderVia, viaProtocol+" "+token)
}

// HasVia tells whether any entry of the Via header was added with the
// token.
func HasVia(h http.Header, token string) bool {
	for _, v := range h.Values(HeaderVia) {
		for _, e := range strings.Split(v, ",") {
			fields := strings.Fields(e)
			if len(fields) >= 2 && fields[1] == token {
				return true
			}
		}
	}

	return false
}
