// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the correlation ID, the request-scoped logger and panic
// recovery:
//
//   - RequestID() reuses an inbound X-Request-ID or mints a UUID, and echoes
//     it on the response.
//   - ContextLogger() builds a zerolog.Logger carrying the request ID, method
//     and route, stores it on the Gin context (key "logger") and on the
//     request context, so services can log through zerolog's log.Ctx.
//   - Recovery() turns panics into the standard JSON 500 envelope.
//
// Order: RequestID, ContextLogger, RedactingLogger, Recovery.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"
	maxRequestIDLen = 128
)

// RequestID attaches (or propagates) a correlation identifier per request.
// Oversized inbound IDs are replaced rather than trusted.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// GetRequestID returns the correlation ID set by RequestID, if any.
func GetRequestID(c *gin.Context) string {
	return asString(c.Value(requestIDKey))
}

// ContextLogger attaches a request-scoped logger. Place it after RequestID.
func ContextLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		l := log.With().
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("route", path).
			Logger()

		c.Set(loggerKey, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger, enriched with the
// authenticated user when known. It never returns nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	var base zerolog.Logger
	if lg, ok := c.Value(loggerKey).(*zerolog.Logger); ok && lg != nil {
		base = *lg
	} else {
		base = log.Logger
	}
	if uid := UserID(c); uid != "" {
		l := base.With().Str("user_id", uid).Logger()
		return &l
	}
	return &base
}

// Recovery intercepts panics, logs the stack and replies with a JSON 500:
//
//	{"request_id": "...", "error": "internal_error", "message": "internal server error"}
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := GetRequestID(c)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"error":      "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// asString converts a context value to a string, or "" when it is not one.
func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate caps s at max bytes and marks the cut. A max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
