package middleware

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedact(t *testing.T) {
	in := "q=asha@campus.edu&id=3fa85f64-5717-4562-b3fc-2c963f66afa6&phone=212-555-1212"
	out := Redact(in)
	for _, leaked := range []string{"asha@campus.edu", "3fa85f64-5717", "555-1212"} {
		if strings.Contains(out, leaked) {
			t.Fatalf("%q leaked in %q", leaked, out)
		}
	}
	for _, tag := range []string{"[REDACTED:email]", "[REDACTED:id]", "[REDACTED:phone]"} {
		if !strings.Contains(out, tag) {
			t.Fatalf("%s missing in %q", tag, out)
		}
	}
}

func TestRedactingLogger_MasksHeadersAndQuery(t *testing.T) {
	buf := withCapturedLogger(t)
	r := gin.New()
	r.Use(RequestID(), ContextLogger(), RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(r, http.MethodGet, "/users/1?email=ravi@campus.edu", map[string]string{
		"Authorization": "Bearer secret-token",
		"X-Api-Key":     "k-123",
		"X-Note":        "call 212-555-1212",
	})
	out := buf.String()
	for _, leaked := range []string{"secret-token", "k-123", "ravi@campus.edu", "212-555-1212"} {
		if strings.Contains(out, leaked) {
			t.Fatalf("%q leaked: %s", leaked, out)
		}
	}
	if !strings.Contains(out, `"level":"info"`) || !strings.Contains(out, `"path":"/users/:id"`) {
		t.Fatalf("unexpected log: %s", out)
	}
}

func TestRedactingLogger_Levels(t *testing.T) {
	buf := withCapturedLogger(t)
	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/err", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	do(r, http.MethodGet, "/bad", nil)
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Fatalf("4xx should warn: %s", buf.String())
	}
	buf.Reset()
	do(r, http.MethodGet, "/err", nil)
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("5xx should error: %s", buf.String())
	}
}
