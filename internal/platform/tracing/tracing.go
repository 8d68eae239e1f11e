// Package tracing configures the OpenTelemetry tracer provider used for
// generation spans.
package tracing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/phrazzld/scry-forge/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// InstrumentationName is the tracer name used across the module.
const InstrumentationName = "github.com/phrazzld/scry-forge"

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs a global tracer provider according to cfg. When tracing is
// disabled the global no-op provider is left in place and the returned
// shutdown does nothing. Exporter failures are logged and tracing continues
// without export.
func Init(ctx context.Context, logger *slog.Logger, cfg config.TracingConfig) (ShutdownFunc, error) {
	return InitWithWriter(ctx, logger, cfg, os.Stdout)
}

// InitWithWriter is Init with an explicit destination for the stdout exporter.
func InitWithWriter(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.TracingConfig,
	out io.Writer,
) (ShutdownFunc, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tracing")

	if !cfg.Enabled {
		logger.Debug("tracing disabled")
		return noopShutdown, nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "scry-forge"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		logger.Warn("otel resource init failed, continuing", "error", err)
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SampleRatio)))
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
	}

	exporter, err := buildExporter(ctx, cfg, out)
	if err != nil {
		logger.Warn("otel exporter init failed, spans will not be exported", "error", err)
	} else {
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("otel tracing initialized",
		"service", serviceName,
		"exporter", cfg.Exporter,
		"sample_ratio", clampRatio(cfg.SampleRatio))

	return tp.Shutdown, nil
}

func buildExporter(ctx context.Context, cfg config.TracingConfig, out io.Writer) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlp":
		var opts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	case "", "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(out))
	}
	return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
}

func clampRatio(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
