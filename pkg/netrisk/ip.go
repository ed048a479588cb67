package netrisk

import (
	"net"
	"strings"
)

// headerPrecedence lists candidate client-IP headers, edge/CDN headers first,
// then generic proxy headers.
var headerPrecedence = []string{
	"CF-Connecting-IP",
	"True-Client-IP",
	"Fastly-Client-IP",
	"X-Real-IP",
	"X-Forwarded-For",
	"X-Client-IP",
}

// ExtractIP picks the client IP from request headers, falling back to the
// transport remote address. Private, loopback, and link-local candidates are
// skipped: a proxy that forwards its own LAN address is no use for risk
// scoring.
func ExtractIP(header func(string) string, remoteAddr string) string {
	for _, name := range headerPrecedence {
		value := header(name)
		if value == "" {
			continue
		}
		// X-Forwarded-For may carry a chain; the left-most public entry is
		// the original client.
		for _, candidate := range strings.Split(value, ",") {
			candidate = strings.TrimSpace(candidate)
			if ip := net.ParseIP(candidate); ip != nil && !IsPrivate(ip) {
				return candidate
			}
		}
	}

	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	return host
}

// IsPrivate reports whether the IP is in a private, loopback, or link-local
// range.
func IsPrivate(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// IsPrivateAddr is IsPrivate over a string address. Unparseable input counts
// as private so it never reaches the external provider.
func IsPrivateAddr(addr string) bool {
	ip := net.ParseIP(strings.TrimSpace(addr))
	if ip == nil {
		return true
	}
	return IsPrivate(ip)
}

// Subnet24 returns the /24 prefix of an IPv4 address, or the address itself
// when it is not IPv4.
func Subnet24(addr string) string {
	parts := strings.Split(addr, ".")
	if len(parts) != 4 {
		return addr
	}
	return strings.Join(parts[:3], ".") + ".0"
}
