// Package tracing wires OpenTelemetry for hostfetch: provider setup from
// settings and span helpers used around each fetch.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName names the tracer used for fetch spans.
const InstrumentationName = "github.com/abdul-hamid-achik/hostfetch"

// Settings configures the exporter. An empty Endpoint (after the
// OTEL_EXPORTER_OTLP_ENDPOINT fallback) disables export.
type Settings struct {
	Endpoint    string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Protocol    string  `json:"protocol,omitempty" yaml:"protocol,omitempty"` // grpc or http
	ServiceName string  `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	SampleRate  float64 `json:"sampleRate,omitempty" yaml:"sampleRate,omitempty"`
	Insecure    bool    `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	Propagate   bool    `json:"propagate,omitempty" yaml:"propagate,omitempty"`
}

// Provider wraps the SDK tracer provider.
type Provider struct {
	tp        *sdktrace.TracerProvider
	tracer    trace.Tracer
	propagate bool
}

// Init builds a Provider from settings and installs it globally. It returns
// a no-op provider when there is nowhere to export to.
func Init(ctx context.Context, s Settings) (*Provider, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		if s.Propagate {
			// forward an incoming trace even when nothing is exported
			installPropagator()
		}
		return &Provider{propagate: s.Propagate}, nil
	}

	serviceName := s.ServiceName
	if serviceName == "" {
		if envName := os.Getenv("OTEL_SERVICE_NAME"); envName != "" {
			serviceName = envName
		} else {
			serviceName = "hostfetch"
		}
	}

	if s.SampleRate < 0 || s.SampleRate > 1.0 {
		return nil, fmt.Errorf("tracing sampleRate must be between 0.0 and 1.0, got %g", s.SampleRate)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	exporter, err := newExporter(ctx, s, endpoint)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}

	// 0 means unset and samples everything.
	sampler := sdktrace.AlwaysSample()
	if s.SampleRate > 0 && s.SampleRate < 1.0 {
		sampler = sdktrace.TraceIDRatioBased(s.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)

	otel.SetTracerProvider(tp)
	installPropagator()

	return &Provider{
		tp:        tp,
		tracer:    tp.Tracer(InstrumentationName),
		propagate: s.Propagate,
	}, nil
}

func installPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Tracer returns the configured tracer, or a no-op tracer when disabled.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(InstrumentationName)
	}
	return p.tracer
}

func (p *Provider) ShouldPropagate() bool {
	if p == nil {
		return false
	}
	return p.propagate
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

func newExporter(ctx context.Context, s Settings, endpoint string) (sdktrace.SpanExporter, error) {
	protocol := strings.ToLower(s.Protocol)
	if protocol == "" {
		protocol = "http"
	}

	switch protocol {
	case "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if s.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if s.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q: use \"grpc\" or \"http\"", protocol)
	}
}
