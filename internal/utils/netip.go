package utils

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// hostOnly strips a port from "ip:port" or "[v6]:port"; bare hosts pass through.
func hostOnly(s string) string {
	s = strings.TrimSpace(s)
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return s
}

// ClientIP resolves the client address. With trustProxy it prefers
// CF-Connecting-IP, then the left-most X-Forwarded-For entry, then X-Real-IP,
// and falls back to RemoteAddr.
//
// Only enable trustProxy when the listener is reachable solely through the proxy.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		xff, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		for _, v := range []string{
			r.Header.Get("CF-Connecting-IP"),
			xff,
			r.Header.Get("X-Real-IP"),
		} {
			if ip := hostOnly(v); ip != "" {
				return ip
			}
		}
	}
	return hostOnly(r.RemoteAddr)
}

// IPMatcher matches addresses against a list of IPs and CIDR prefixes.
type IPMatcher struct {
	prefixes []netip.Prefix
}

// NewIPMatcher parses entries like "10.0.0.1", "10.0.0.0/8" or "::1".
// Unparseable entries are skipped and returned as invalid.
func NewIPMatcher(list []string) (m *IPMatcher, invalid []string) {
	m = &IPMatcher{}
	for _, raw := range list {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			m.prefixes = append(m.prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(s); err == nil {
			m.prefixes = append(m.prefixes, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		invalid = append(invalid, s)
	}
	return m, invalid
}

func (m *IPMatcher) IsEmpty() bool {
	return len(m.prefixes) == 0
}

// Allow reports whether ip falls in any prefix. IPv4-mapped IPv6 addresses
// match their IPv4 form.
func (m *IPMatcher) Allow(ip string) bool {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range m.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}
