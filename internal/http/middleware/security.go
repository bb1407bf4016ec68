// Package middleware – hardening headers.
//
// A conservative header set for an API that also serves raw file bytes.
// X-Content-Type-Options is load-bearing here: served files carry
// user-controlled content types, so sniffing must stay off. HSTS is opt-in
// and only emitted on HTTPS traffic. No blanket no-store: file responses
// manage their own Cache-Control, so cache suppression is per-handler.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures the headers emitted by SecurityHeaders.
// EnableHSTS must only be set when traffic is HTTPS end-to-end, proxy
// included. HSTSMaxAge defaults to 180 days when zero.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	EnablePolicy bool // Permissions-Policy and friends, browser-only effect
}

// SecurityHeaders returns a Gin middleware adding baseline hardening
// headers to every response.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hstsValue := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hstsValue)
		}

		// Let browser clients read the correlation id.
		if rid := h.Get(requestIDHeader); rid != "" {
			const hdr = "Access-Control-Expose-Headers"
			if cur := h.Get(hdr); cur == "" {
				h.Set(hdr, requestIDHeader)
			} else if !strings.Contains(cur, requestIDHeader) {
				h.Set(hdr, cur+", "+requestIDHeader)
			}
		}

		c.Next()
	}
}

// isHTTPS reports whether the request arrived over TLS, directly or via a
// proxy that set X-Forwarded-Proto.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
