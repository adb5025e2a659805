package realtime

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP picks the caller address behind Cloudflare or a proxy and
// normalizes loopback and IPv4-mapped IPv6 forms.
func ClientIP(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("cf-connecting-ip")); v != "" {
		return normalizeIP(v)
	}
	if v := r.Header.Get("x-forwarded-for"); v != "" {
		if first := strings.TrimSpace(strings.Split(v, ",")[0]); first != "" {
			return normalizeIP(first)
		}
	}
	if v := strings.TrimSpace(r.Header.Get("x-real-ip")); v != "" {
		return normalizeIP(v)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return normalizeIP(host)
}

func normalizeIP(ip string) string {
	if ip == "::1" || ip == "::ffff:127.0.0.1" {
		return "127.0.0.1"
	}
	return strings.TrimPrefix(ip, "::ffff:")
}
