// Package middleware holds cross-cutting gin.HandlerFunc collaborators,
// following the reference codebase's internal/auth middleware shape.
package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"orchepy/internal/logging"
)

// Whitelist enforces the IP allowlist described in spec.md §6: loopback
// addresses are always allowed; everything else must appear in the
// configured allow list once enabled.
type Whitelist struct {
	enabled    bool
	allowedIPs map[string]struct{}
}

// NewWhitelist builds a Whitelist from the WHITELIST_ENABLED/WHITELIST_IPS
// configuration values.
func NewWhitelist(enabled bool, allowedIPs []string) *Whitelist {
	set := make(map[string]struct{}, len(allowedIPs))
	for _, ip := range allowedIPs {
		set[ip] = struct{}{}
	}
	return &Whitelist{enabled: enabled, allowedIPs: set}
}

func (w *Whitelist) isAllowed(ip string) bool {
	if !w.enabled {
		return true
	}
	if parsed := net.ParseIP(ip); parsed != nil && parsed.IsLoopback() {
		return true
	}
	_, ok := w.allowedIPs[ip]
	return ok
}

// Middleware returns the gin.HandlerFunc enforcing the whitelist. A no-op
// handler when disabled.
func (w *Whitelist) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !w.enabled {
			c.Next()
			return
		}

		ip := extractClientIP(c)
		if ip == "" {
			logging.Error("could not determine client IP for whitelist check")
			c.JSON(http.StatusForbidden, gin.H{"error": "could not determine client IP"})
			c.Abort()
			return
		}

		if !w.isAllowed(ip) {
			logging.Error("blocked request from unauthorized IP: %s", ip)
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied from IP: " + ip})
			c.Abort()
			return
		}

		logging.Debug("request from allowed IP: %s", ip)
		c.Next()
	}
}

// extractClientIP prefers X-Forwarded-For (first hop), then X-Real-IP,
// then the TCP peer address, matching the original's extraction order.
func extractClientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if realIP := c.GetHeader("X-Real-IP"); realIP != "" {
		if net.ParseIP(realIP) != nil {
			return realIP
		}
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return ""
	}
	return host
}
