package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// withSecret sets the one variable release mode requires.
func withSecret(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
}

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	withSecret(t)
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	withSecret(t)
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath != "/api/v1" || cfg.OTEL.ServiceName != "campus-market" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging / Docs
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v1/") // no leading slash + trailing slash -> "/api/v1"

	// Storage
	t.Setenv("DB_PATH", "db.sqlite")
	t.Setenv("UPLOAD_DIR", "/var/lib/market/uploads")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")

	// Auth
	t.Setenv("JWT_SECRET", "a-very-long-production-secret")
	t.Setenv("TOKEN_TTL", "3d")
	t.Setenv("ADMIN_EMAIL", " Admin@Campus.EDU ")
	t.Setenv("ADMIN_PASSWORD", "changeme123")

	// Rate limiting
	t.Setenv("RATE_RPS", "2.5")
	t.Setenv("RATE_BURST", "4")

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// Idempotency
	t.Setenv("IDEMPOTENCY_TTL", "48h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}
	if cfg.DBPath != "db.sqlite" || cfg.Upload.Dir != "/var/lib/market/uploads" || cfg.Upload.MaxBytes != 1<<20 {
		t.Fatalf("storage unexpected: %+v", cfg)
	}
	want := AuthConfig{
		JWTSecret:     "a-very-long-production-secret",
		TokenTTL:      72 * time.Hour,
		AdminEmail:    "admin@campus.edu",
		AdminPassword: "changeme123",
	}
	if cfg.Auth != want {
		t.Fatalf("auth unexpected: %+v", cfg.Auth)
	}
	if cfg.RateRPS != 2.5 || cfg.RateBurst != 4 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}
	if cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("idempotency ttl unexpected: %v", cfg.IdempotencyTTL)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_DevSecretOutsideRelease(t *testing.T) {
	t.Setenv("GIN_MODE", "debug")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Auth.JWTSecret != devJWTSecret {
		t.Fatalf("expected dev secret in debug mode, got %q", cfg.Auth.JWTSecret)
	}

	t.Setenv("GIN_MODE", "release")
	if _, err := Load(); err == nil || !containsErr(err, "JWT_SECRET") {
		t.Fatalf("release mode must require JWT_SECRET, got: %v", err)
	}
}

func TestLoad_ParseErrorsAreReported(t *testing.T) {
	withSecret(t)
	t.Setenv("RATE_RPS", "x")
	t.Setenv("RATE_BURST", "nope")
	t.Setenv("LOG_PRETTY", "maybe")
	t.Setenv("TOKEN_TTL", "a week")

	_, err := Load()
	if err == nil {
		t.Fatal("expected parse errors")
	}
	for _, k := range []string{"RATE_RPS", "RATE_BURST", "LOG_PRETTY", "TOKEN_TTL"} {
		if !containsErr(err, k) {
			t.Fatalf("error does not mention %s: %v", k, err)
		}
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name, key, val, want string
	}{
		{"invalid LOG_LEVEL", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"empty PORT via spaces", "PORT", "   ", "PORT must not be empty"},
		{"non-positive timeouts", "READ_TIMEOUT", "0s", "timeouts must be positive"},
		{"max header bytes <= 0", "MAX_HEADER_BYTES", "0", "MAX_HEADER_BYTES"},
		{"empty DB_PATH", "DB_PATH", "   ", "DB_PATH must not be empty"},
		{"empty UPLOAD_DIR", "UPLOAD_DIR", "   ", "UPLOAD_DIR must not be empty"},
		{"upload cap <= 0", "MAX_UPLOAD_BYTES", "0", "MAX_UPLOAD_BYTES"},
		{"short secret", "JWT_SECRET", "short", "JWT_SECRET"},
		{"token ttl non-positive", "TOKEN_TTL", "0s", "TOKEN_TTL"},
		{"admin email without password", "ADMIN_EMAIL", "root@campus.edu", "ADMIN_PASSWORD"},
		{"rate rps negative", "RATE_RPS", "-1", "RATE_RPS"},
		{"rate burst < 1", "RATE_BURST", "0", "RATE_BURST"},
		{"hsts max age negative", "HSTS_MAX_AGE", "-1s", "HSTS_MAX_AGE"},
		{"idempotency ttl non-positive", "IDEMPOTENCY_TTL", "0s", "IDEMPOTENCY_TTL"},
		{"otel sample ratio out of range", "OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			withSecret(t)
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected %q validation error, got: %v", tc.want, err)
			}
		})
	}
}

// --- helpers ---

func TestEnv_TypedReads(t *testing.T) {
	var e env
	t.Setenv("X_EMPTY", "")
	if e.str("X_EMPTY", "d") != "d" {
		t.Fatalf("str should fall back to default on empty var")
	}
	t.Setenv("F_VALID", "3.14")
	t.Setenv("I_VALID", "42")
	t.Setenv("D_VALID", "150ms")
	t.Setenv("D_DAYS", "7d")
	if e.float("F_VALID", 0) != 3.14 || e.int("I_VALID", 0) != 42 {
		t.Fatalf("numeric parse failed")
	}
	if e.dur("D_VALID", time.Second) != 150*time.Millisecond || e.dur("D_DAYS", 0) != 7*24*time.Hour {
		t.Fatalf("duration parse failed")
	}
	if len(e.errs) != 0 {
		t.Fatalf("unexpected errors: %v", e.errs)
	}

	t.Setenv("I_BAD", "x")
	if e.int("I_BAD", 7) != 7 || len(e.errs) != 1 {
		t.Fatalf("bad int should return default and record an error")
	}
}

func TestEnv_Bool(t *testing.T) {
	var e env
	for i, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"} {
		k := "B_T_" + string(rune('a'+i))
		t.Setenv(k, v)
		if !e.bool(k, false) {
			t.Fatalf("bool(%q) = false; want true", v)
		}
	}
	for i, v := range []string{"0", "false", "FALSE", " no ", "N", "off", "Off"} {
		k := "B_F_" + string(rune('a'+i))
		t.Setenv(k, v)
		if e.bool(k, true) {
			t.Fatalf("bool(%q) = true; want false", v)
		}
	}
	t.Setenv("B_EMPTY", "")
	if !e.bool("B_EMPTY", true) || e.bool("B_EMPTY", false) {
		t.Fatalf("bool default behavior unexpected")
	}
	if len(e.errs) != 0 {
		t.Fatalf("unexpected errors: %v", e.errs)
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV mismatch: got %#v", got)
	}

	for in, want := range map[string]string{"": "/", "v1": "/v1", "/v1/": "/v1", " / ": "/"} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q)=%q want %q", in, got, want)
		}
	}
}

// Ensure tests don't leak env to others.
func TestMain(m *testing.M) {
	for _, k := range []string{"PORT", "JWT_SECRET", "GIN_MODE", "ADMIN_EMAIL", "ADMIN_PASSWORD"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}
