// Package observability builds the logger, tracer and metrics registry used by
// every module of the raffle service.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config controls how telemetry is emitted.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	LogLevel       string
	OTLPEndpoint   string
	MetricsAddress string
}

// Observability bundles the telemetry handles passed into modules.
type Observability struct {
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Registry *prometheus.Registry

	tracerProvider *sdktrace.TracerProvider
	metricsServer  *http.Server
}

// Init builds the logger, tracer provider and metrics registry.
func Init(ctx context.Context, cfg Config) (*Observability, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "frolf-raffle"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	})).With(
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
	)

	obs := &Observability{
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	obs.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.OTLPEndpoint == "" {
		obs.Tracer = noop.NewTracerProvider().Tracer(cfg.ServiceName)
		return obs, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	obs.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		)),
	)
	otel.SetTracerProvider(obs.tracerProvider)
	obs.Tracer = obs.tracerProvider.Tracer(cfg.ServiceName)

	logger.InfoContext(ctx, "Tracing enabled", slog.String("otlp_endpoint", cfg.OTLPEndpoint))
	return obs, nil
}

// NewNoop returns telemetry handles that discard everything. Used by tests and tools.
func NewNoop() *Observability {
	return &Observability{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Tracer:   noop.NewTracerProvider().Tracer("noop"),
		Registry: prometheus.NewRegistry(),
	}
}

// ServeMetrics exposes the registry on addr until Shutdown is called.
func (o *Observability) ServeMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(o.Registry, promhttp.HandlerOpts{Registry: o.Registry}))
	o.metricsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		o.Logger.Info("Metrics server listening", slog.String("address", addr))
		if err := o.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.Logger.Error("Metrics server stopped", slog.String("error", err.Error()))
		}
	}()
}

// Shutdown flushes spans and stops the metrics server.
func (o *Observability) Shutdown(ctx context.Context) error {
	var errs []error
	if o.metricsServer != nil {
		if err := o.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
