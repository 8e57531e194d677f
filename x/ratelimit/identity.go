package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// IPExtractor derives the client address through trustedHops reverse proxies.
// The peer address is the closest hop; each trusted hop moves one step left in X-Forwarded-For.
// A negative trustedHops trusts the whole chain and returns its left-most address.
func IPExtractor(trustedHops int) echo.IPExtractor {
	return func(req *http.Request) string {
		chain := forwardedChain(req.Header.Get(echo.HeaderXForwardedFor))
		chain = append(chain, peerAddress(req.RemoteAddr))

		if trustedHops < 0 {
			return chain[0]
		}
		idx := len(chain) - 1 - trustedHops
		if idx < 0 {
			idx = 0
		}
		return chain[idx]
	}
}

func forwardedChain(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	chain := make([]string, 0, len(parts))
	for _, part := range parts {
		ip := strings.TrimSpace(part)
		if ip != "" {
			chain = append(chain, ip)
		}
	}
	return chain
}

func peerAddress(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	host, _, err := net.SplitHostPort(remoteAddr)
	if err == nil && host != "" {
		return host
	}
	if remoteAddr != "" {
		return remoteAddr
	}
	return "unknown"
}
