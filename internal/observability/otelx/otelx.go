package otelx

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/bakkerme/dealwatch/internal/config"
)

// Shutdown flushes and stops the tracer provider.
type Shutdown func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs a global OTLP tracer provider when tracing is enabled. The
// returned Shutdown is never nil.
func Init(ctx context.Context, logger *slog.Logger, cfg config.OTelEnvConfig) (Shutdown, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	target := resolveTarget(cfg)
	exp, err := newExporter(ctx, target)
	if err != nil {
		return noopShutdown, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceName(target.serviceName)),
	)
	if err != nil {
		return noopShutdown, fmt.Errorf("build otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(2*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(target.sampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("otel initialized",
		slog.String("service_name", target.serviceName),
		slog.String("otlp_endpoint", target.endpoint),
		slog.String("otlp_protocol", target.protocol),
		slog.Float64("sample_ratio", target.sampleRatio),
	)
	return tp.Shutdown, nil
}

// target is the normalized exporter configuration.
type target struct {
	serviceName string
	protocol    string
	endpoint    string
	headers     map[string]string
	insecure    bool
	sampleRatio float64
}

func resolveTarget(cfg config.OTelEnvConfig) target {
	t := target{
		serviceName: strings.TrimSpace(cfg.ServiceName),
		protocol:    strings.ToLower(strings.TrimSpace(cfg.Protocol)),
		endpoint:    strings.TrimSpace(cfg.Endpoint),
		headers:     cfg.Headers,
		insecure:    cfg.Insecure,
		sampleRatio: cfg.SampleRatio,
	}
	if t.serviceName == "" {
		t.serviceName = "dealwatch"
	}
	switch t.protocol {
	case "", "grpc":
		t.protocol = "grpc"
	case "http":
		t.protocol = "http/protobuf"
	}
	if t.endpoint == "" {
		t.endpoint = "localhost:4317"
		if t.protocol == "http/protobuf" {
			t.endpoint = "localhost:4318"
		}
	}
	if t.sampleRatio < 0 {
		t.sampleRatio = 0
	}
	if t.sampleRatio > 1 {
		t.sampleRatio = 1
	}
	return t
}

func newExporter(ctx context.Context, t target) (sdktrace.SpanExporter, error) {
	switch t.protocol {
	case "http/protobuf":
		opts := []otlptracehttp.Option{}
		if strings.Contains(t.endpoint, "://") {
			opts = append(opts, otlptracehttp.WithEndpointURL(t.endpoint))
		} else {
			opts = append(opts, otlptracehttp.WithEndpoint(t.endpoint))
		}
		if t.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(t.headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(t.headers))
		}
		return otlptracehttp.New(ctx, opts...)
	case "grpc":
		endpoint := t.endpoint
		if strings.Contains(endpoint, "://") {
			u, err := url.Parse(endpoint)
			if err != nil {
				return nil, fmt.Errorf("parse OTEL_EXPORTER_OTLP_ENDPOINT: %w", err)
			}
			endpoint = u.Host
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if t.insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(t.headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(t.headers))
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTEL_EXPORTER_OTLP_PROTOCOL %q (expected grpc or http/protobuf)", t.protocol)
	}
}
