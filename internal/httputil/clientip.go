// Package httputil holds request helpers shared by the API and the stream
// handler.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the address that rate limits and request logs key on.
// When trustProxy is true the first X-Forwarded-For entry, then X-Real-IP,
// is used if it parses as an IP; otherwise RemoteAddr's host is returned.
// Only enable trustProxy behind a trusted reverse proxy.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		if ip := parseHost(first); ip != "" {
			return ip
		}
		if ip := parseHost(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseHost accepts "ip" or "ip:port" and returns the IP, or "" when s is
// not an address.
func parseHost(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	if net.ParseIP(s) == nil {
		return ""
	}
	return s
}
