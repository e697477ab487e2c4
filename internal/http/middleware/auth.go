// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the bearer credential into an authenticated caller.
// Authenticate rejects requests without a valid token (401) or from a
// suspended account (403); OptionalAuth resolves a token when one is sent
// and otherwise lets the request through anonymously; RequireAdmin gates
// moderation routes on the admin role.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey = "userID"
	roleKey   = "role"
)

// ErrForbidden is returned by a TokenResolver for identities that are known
// but not allowed to use the API.
var ErrForbidden = errors.New("forbidden")

// TokenResolver maps a bearer token to the caller's id and role. Errors
// matching ErrForbidden produce a 403; any other error a 401.
type TokenResolver func(ctx context.Context, token string) (userID, role string, err error)

// UserID returns the authenticated caller, or "" for anonymous requests.
func UserID(c *gin.Context) string { return asString(c.Value(userIDKey)) }

// Role returns the authenticated caller's role, or "".
func Role(c *gin.Context) string { return asString(c.Value(roleKey)) }

// Authenticate requires a valid "Authorization: Bearer <token>" header.
func Authenticate(resolve TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearer(c)
		if !ok {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if !setCaller(c, resolve, tok) {
			return
		}
		c.Next()
	}
}

// OptionalAuth resolves a bearer token if present. An invalid token is
// still rejected so clients notice expired sessions.
func OptionalAuth(resolve TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearer(c)
		if ok && !setCaller(c, resolve, tok) {
			return
		}
		c.Next()
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Role(c) != "admin" {
			abortAuth(c, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		c.Next()
	}
}

func setCaller(c *gin.Context, resolve TokenResolver, tok string) bool {
	uid, role, err := resolve(c.Request.Context(), tok)
	switch {
	case errors.Is(err, ErrForbidden):
		abortAuth(c, http.StatusForbidden, "forbidden", "account is suspended")
		return false
	case err != nil:
		abortAuth(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
		return false
	}
	c.Set(userIDKey, uid)
	c.Set(roleKey, role)
	return true
}

func bearer(c *gin.Context) (string, bool) {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

func abortAuth(c *gin.Context, status int, code, msg string) {
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", `Bearer realm="api"`)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": GetRequestID(c),
		"error":      code,
		"message":    msg,
	})
}
