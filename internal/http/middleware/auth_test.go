package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func fakeResolver(_ context.Context, tok string) (string, string, error) {
	switch tok {
	case "student-token":
		return "u-1", "student", nil
	case "admin-token":
		return "u-admin", "admin", nil
	case "suspended-token":
		return "", "", ErrForbidden
	default:
		return "", "", errors.New("bad token")
	}
}

func authRouter() *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	echo := func(c *gin.Context) { c.String(http.StatusOK, UserID(c)+"/"+Role(c)) }
	r.GET("/me", Authenticate(fakeResolver), echo)
	r.GET("/admin", Authenticate(fakeResolver), RequireAdmin(), echo)
	r.GET("/public", OptionalAuth(fakeResolver), echo)
	return r
}

func TestAuthenticate(t *testing.T) {
	r := authRouter()
	cases := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, ""},
		{"invalid", "Bearer nope", http.StatusUnauthorized, ""},
		{"suspended", "Bearer suspended-token", http.StatusForbidden, ""},
		{"ok", "Bearer student-token", http.StatusOK, "u-1/student"},
		{"case-insensitive scheme", "bearer student-token", http.StatusOK, "u-1/student"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hdr := map[string]string{}
			if tc.header != "" {
				hdr["Authorization"] = tc.header
			}
			w := do(r, http.MethodGet, "/me", hdr)
			if w.Code != tc.code {
				t.Fatalf("status=%d want %d (%s)", w.Code, tc.code, w.Body.String())
			}
			if tc.code == http.StatusOK {
				if w.Body.String() != tc.body {
					t.Fatalf("body=%q", w.Body.String())
				}
				return
			}
			body := decode(t, w)
			if body["error"] == "" || body["request_id"] == "" {
				t.Fatalf("bad envelope %v", body)
			}
			if tc.code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Fatal("401 must carry WWW-Authenticate")
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	r := authRouter()
	if w := do(r, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer student-token"}); w.Code != http.StatusForbidden {
		t.Fatalf("student got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer admin-token"}); w.Code != http.StatusOK {
		t.Fatalf("admin got %d", w.Code)
	}
}

func TestOptionalAuth(t *testing.T) {
	r := authRouter()
	if w := do(r, http.MethodGet, "/public", nil); w.Code != http.StatusOK || w.Body.String() != "/" {
		t.Fatalf("anonymous: %d %q", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodGet, "/public", map[string]string{"Authorization": "Bearer admin-token"}); w.Body.String() != "u-admin/admin" {
		t.Fatalf("authenticated: %q", w.Body.String())
	}
	if w := do(r, http.MethodGet, "/public", map[string]string{"Authorization": "Bearer nope"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token on public route: %d", w.Code)
	}
}
