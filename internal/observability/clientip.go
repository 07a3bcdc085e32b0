package observability

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the host part of the peer address. With trustForwarded
// set it returns the right-most X-Forwarded-For entry instead: that is the
// one appended by the fronting proxy, while entries to its left come from
// the client.
func ClientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if ip := lastForwardedFor(r.Header.Values("X-Forwarded-For")); ip != "" {
			return ip
		}
	}

	if ip := hostOnly(r.RemoteAddr); ip != "" {
		return ip
	}
	return "unknown"
}

func lastForwardedFor(values []string) string {
	for i := len(values) - 1; i >= 0; i-- {
		parts := strings.Split(values[i], ",")
		for j := len(parts) - 1; j >= 0; j-- {
			if ip := hostOnly(strings.TrimSpace(parts[j])); ip != "" {
				return ip
			}
		}
	}
	return ""
}

func hostOnly(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}

	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")

	if ip := net.ParseIP(addr); ip != nil {
		return ip.String()
	}
	return addr
}
