// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, the response hardening applied to the
// JSON API and the uploaded-image file server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests only.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration
	// NoStore disables caching of responses.
	NoStore bool
	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
	// ExposeHeaders are appended to Access-Control-Expose-Headers so browser
	// clients can read them (X-Request-ID is always included).
	ExposeHeaders []string
}

// SecurityHeaders sets nosniff, frame denial and a no-referrer policy on
// every response, plus the optional headers selected in opt.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 180 * 24 * time.Hour
	}
	hsts := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + "; includeSubDomains; preload"
	expose := append([]string{requestIDHeader}, opt.ExposeHeaders...)

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		appendExpose(h, expose)
		c.Next()
	}
}

// appendExpose merges names into Access-Control-Expose-Headers without
// duplicating entries already present.
func appendExpose(h http.Header, names []string) {
	const hdr = "Access-Control-Expose-Headers"
	cur := h.Get(hdr)
	for _, n := range names {
		if n == "" || containsFold(cur, n) {
			continue
		}
		if cur == "" {
			cur = n
		} else {
			cur += ", " + n
		}
	}
	if cur != "" {
		h.Set(hdr, cur)
	}
}

func containsFold(list, name string) bool {
	for _, p := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(p), name) {
			return true
		}
	}
	return false
}

// isHTTPS reports whether the request arrived over TLS, directly or via a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
