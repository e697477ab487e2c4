// Package observability owns the OpenTelemetry tracer provider of the
// marketplace API. HTTP spans come from otelgin, database spans from the
// GORM plugin and use-case spans from each service's tracer; all of them
// report through the provider installed here.
package observability

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/credentials"

	"github.com/tbourn/campus-market/internal/config"
	"github.com/tbourn/campus-market/internal/sysutil"
)

const (
	defaultServiceName = "campus-market"
	defaultVersion     = "dev"
)

// instanceID tells replicas of the API apart in the trace backend.
var instanceID = uuid.NewString()

// Replaced in tests.
var (
	newTraceClient = otlptracegrpc.NewClient

	newTraceExporter = func(ctx context.Context, c otlptrace.Client) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, c)
	}

	newResource = func(ctx context.Context, name, version, instance string) (*resource.Resource, error) {
		return resource.New(ctx,
			resource.WithAttributes(
				semconv.ServiceName(name),
				semconv.ServiceVersion(version),
				semconv.ServiceInstanceID(instance),
			),
			resource.WithHost(),
			resource.WithProcessRuntimeVersion(),
		)
	}
)

// SetupOTel installs a batching OTLP/gRPC tracer provider, W3C trace-context
// and baggage propagation, and an error handler that reports export
// failures through zerolog. It returns the provider's shutdown, which
// flushes pending spans.
//
// When tracing is disabled nothing is installed and shutdown is a no-op. On
// error the process globals are left untouched.
func SetupOTel(ctx context.Context, cfg config.OTELConfig, version string) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newTraceExporter(ctx, newTraceClient(clientOptions(cfg)...))
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	name := sysutil.FirstNonEmpty(cfg.ServiceName, defaultServiceName)
	version = sysutil.FirstNonEmpty(version, defaultVersion)
	res, err := newResource(ctx, name, version, instanceID)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		log.Warn().Err(err).Str("component", "otel").Msg("telemetry export failed")
	}))

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Str("service", name).
		Str("version", version).
		Float64("sample_ratio", cfg.SampleRatio).
		Msg("tracing enabled")
	return tp.Shutdown, nil
}

// clientOptions selects plaintext or system-root TLS for the collector link.
func clientOptions(cfg config.OTELConfig) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		return append(opts, otlptracegrpc.WithInsecure())
	}
	return append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
}
