// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access log. It never logs
// bodies, masks credential headers and scrubs identifiers that show up in
// marketplace traffic (emails, phone numbers, UUIDs) from query strings and
// header values before they reach the log sink.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxQueryLogLength = 2048

// RedactOptions configures RedactingLogger.
//
// MaskHeaders lists extra header names (case-insensitive) whose values are
// replaced with "[REDACTED]" on top of Authorization, Cookie and Set-Cookie.
type RedactOptions struct {
	MaskHeaders []string
}

var (
	// UUIDs go first so the looser phone pattern cannot eat their digit runs.
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// Redact scrubs UUIDs, emails and phone numbers from s.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger logs one line per request through the request-scoped
// logger (see ContextLogger) at info, warn for 4xx or error for 5xx.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		query := Redact(truncate(c.Request.URL.RawQuery, maxQueryLogLength))
		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = Redact(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		lg := LoggerFrom(c)
		var ev *zerolog.Event
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = lg.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = lg.Warn()
		default:
			ev = lg.Info()
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		ev.
			Str("path", path).
			Str("query", query).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
