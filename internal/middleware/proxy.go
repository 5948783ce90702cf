package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// TrustedProxies makes c.RealIP honour X-Real-IP and X-Forwarded-For only
// when the direct peer is inside one of trustedCIDRs. Rate limiting and the
// activity log depend on the client address being accurate.
//
// Typical values for TRUSTED_PROXIES:
//   - "127.0.0.1/8"    -- a proxy on the same host
//   - "10.0.0.0/8"     -- Docker bridge networks
//   - "172.16.0.0/12"  -- Docker bridge networks (alternative range)
//   - "fd00::/8"       -- IPv6 private range
func TrustedProxies(e *echo.Echo, trustedCIDRs []string) {
	e.IPExtractor = buildIPExtractor(trustedCIDRs)
}

// buildIPExtractor returns an IPExtractor that reads forwarding headers only
// from connections that originate in trustedCIDRs.
func buildIPExtractor(trustedCIDRs []string) echo.IPExtractor {
	var trusted []*net.IPNet
	for _, cidr := range trustedCIDRs {
		_, network, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			slog.Warn("ignoring invalid trusted proxy CIDR", slog.String("cidr", cidr))
			continue
		}
		trusted = append(trusted, network)
	}

	return func(req *http.Request) string {
		directIP := extractDirectIP(req.RemoteAddr)

		// A client talking to us directly could forge either header.
		if !isTrusted(directIP, trusted) {
			return directIP
		}

		// X-Real-IP first (nginx, Caddy), then X-Forwarded-For.
		if realIP := req.Header.Get("X-Real-IP"); realIP != "" {
			return strings.TrimSpace(realIP)
		}
		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			// Leftmost entry is the original client.
			client, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(client)
		}
		return directIP
	}
}

// extractDirectIP strips the port from a "host:port" RemoteAddr.
func extractDirectIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// isTrusted reports whether ipStr falls inside any trusted network.
func isTrusted(ipStr string, trusted []*net.IPNet) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, network := range trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
