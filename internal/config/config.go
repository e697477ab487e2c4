// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage, authentication, rate limiting,
// and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// devJWTSecret signs tokens in debug and test mode when JWT_SECRET is unset.
const devJWTSecret = "campus-market-dev-secret-do-not-deploy"

// minJWTSecretLen is the shortest accepted HMAC secret.
const minJWTSecretLen = 16

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "campus-market")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AuthConfig defines bearer token and bootstrap admin settings.
type AuthConfig struct {
	JWTSecret     string        // JWT_SECRET (HS256 key)
	TokenTTL      time.Duration // TOKEN_TTL, accepts "7d"
	AdminEmail    string        // ADMIN_EMAIL (optional)
	AdminPassword string        // ADMIN_PASSWORD (optional)
}

// UploadConfig defines where images are stored and how large they may be.
type UploadConfig struct {
	Dir      string // UPLOAD_DIR
	MaxBytes int64  // MAX_UPLOAD_BYTES
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBPath string // SQLite path
	Upload UploadConfig

	// Auth
	Auth AuthConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result. Unparsable values are
// errors, not silent fallbacks.
func Load() (Config, error) {
	var e env
	cfg := Config{
		// Server
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.int("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(e.str("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.bool("LOG_PRETTY", false),
		SwaggerEnabled: e.bool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api/v1")),

		// Storage
		DBPath: e.str("DB_PATH", "campus-market.db"),
		Upload: UploadConfig{
			Dir:      e.str("UPLOAD_DIR", "uploads"),
			MaxBytes: int64(e.int("MAX_UPLOAD_BYTES", 5<<20)),
		},

		// Auth
		Auth: AuthConfig{
			JWTSecret:     e.str("JWT_SECRET", ""),
			TokenTTL:      e.dur("TOKEN_TTL", 7*24*time.Hour),
			AdminEmail:    strings.ToLower(strings.TrimSpace(e.str("ADMIN_EMAIL", ""))),
			AdminPassword: e.str("ADMIN_PASSWORD", ""),
		},

		// Rate limiting
		RateRPS:   e.float("RATE_RPS", 5.0),
		RateBurst: e.int("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(e.str("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: e.bool("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     e.bool("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "campus-market"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}
	if err := errors.Join(e.errs...); err != nil {
		return cfg, err
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Auth.JWTSecret == "" && cfg.GinMode != "release" {
		cfg.Auth.JWTSecret = devJWTSecret
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.Upload.Dir) == "" {
		return cfg, errors.New("UPLOAD_DIR must not be empty")
	}
	if cfg.Upload.MaxBytes <= 0 {
		return cfg, errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if len(cfg.Auth.JWTSecret) < minJWTSecretLen {
		return cfg, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLen)
	}
	if cfg.Auth.TokenTTL <= 0 {
		return cfg, errors.New("TOKEN_TTL must be > 0")
	}
	if (cfg.Auth.AdminEmail == "") != (cfg.Auth.AdminPassword == "") {
		return cfg, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

// env reads typed variables and collects parse errors.
type env struct {
	errs []error
}

func (e *env) str(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func (e *env) float(k string, def float64) float64 {
	v := e.str(k, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a number", k, v))
		return def
	}
	return f
}

func (e *env) int(k string, def int) int {
	v := e.str(k, "")
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", k, v))
		return def
	}
	return i
}

func (e *env) bool(k string, def bool) bool {
	v := e.str(k, "")
	if v == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", k, v))
	return def
}

func (e *env) dur(k string, def time.Duration) time.Duration {
	v := e.str(k, "")
	if v == "" {
		return def
	}
	d, err := parseDuration(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", k, v))
		return def
	}
	return d
}

// parseDuration extends time.ParseDuration with a whole-day "d" suffix.
func parseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
