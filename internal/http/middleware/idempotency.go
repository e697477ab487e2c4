// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key support for the money-moving POSTs
// (transactions and reviews). The middleware validates the header, scopes
// the key to the caller and the route, and looks up a previously completed
// request. On a hit it stashes the stored resource id so the handler can
// answer with the original resource instead of creating a second one; the
// replay also bypasses rate limiting. Persisting the outcome of a first
// request is the handler's job (see handlers.rememberIdempotent).
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey      = "idem.key"
	ctxKeyIdemScope    = "idem.scope"
	ctxKeyIdemResource = "idem.resource"
	ctxKeyIdemStatus   = "idem.status"
	ctxKeyRateBypass   = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyOptions configures header validation.
type IdempotencyOptions struct {
	// MaxLen caps the key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil uses ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyRecord is a completed request that can be replayed.
type IdempotencyRecord struct {
	ResourceID string
	Status     int
}

// IdempotencyLookup returns the record stored for (userID, scope, key) that
// is still valid at now, or nil. Lookup errors do not block the request.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (*IdempotencyRecord, error)

// GetIdempotencyKey returns the validated key and its scope.
func GetIdempotencyKey(c *gin.Context) (key, scope string, ok bool) {
	key = asString(c.Value(ctxKeyIdemKey))
	scope = asString(c.Value(ctxKeyIdemScope))
	return key, scope, key != ""
}

// Replay returns the stored outcome when this request repeats a completed
// one.
func Replay(c *gin.Context) (IdempotencyRecord, bool) {
	id := asString(c.Value(ctxKeyIdemResource))
	if id == "" {
		return IdempotencyRecord{}, false
	}
	st, _ := c.Value(ctxKeyIdemStatus).(int)
	return IdempotencyRecord{ResourceID: id, Status: st}, true
}

// Idempotency validates the Idempotency-Key header when present. It must
// run after Authenticate so keys are scoped per user. Requests without the
// header pass through untouched.
func Idempotency(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": GetRequestID(c),
				"error":      "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		scope := c.Request.Method + " " + c.FullPath()
		c.Set(ctxKeyIdemKey, key)
		c.Set(ctxKeyIdemScope, scope)

		if lookup != nil {
			rec, err := lookup(c.Request.Context(), UserID(c), scope, key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			} else if rec != nil && rec.ResourceID != "" {
				c.Set(ctxKeyIdemResource, rec.ResourceID)
				c.Set(ctxKeyIdemStatus, rec.Status)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}
