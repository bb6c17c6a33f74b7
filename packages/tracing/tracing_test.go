package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	prov, err := Init(context.Background(), Settings{Propagate: true})
	require.NoError(t, err)
	assert.NotNil(t, prov.Tracer())
	assert.True(t, prov.ShouldPropagate())
	assert.NoError(t, prov.Shutdown(context.Background()))
}

// restoreGlobals puts back the otel globals Init replaces
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	prop := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestInit_PropagationFollowsSettings(t *testing.T) {
	for _, propagate := range []bool{false, true} {
		t.Run(fmt.Sprintf("propagate=%v", propagate), func(t *testing.T) {
			restoreGlobals(t)

			prov, err := Init(context.Background(), Settings{
				Endpoint:  "localhost:4318",
				Insecure:  true,
				Propagate: propagate,
			})
			require.NoError(t, err)
			t.Cleanup(func() { _ = prov.Shutdown(context.Background()) })

			assert.Equal(t, propagate, prov.ShouldPropagate())
		})
	}
}

func TestInit_PropagationWithoutExporter(t *testing.T) {
	restoreGlobals(t)
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator())

	prov, err := Init(context.Background(), Settings{Propagate: true})
	require.NoError(t, err)
	require.True(t, prov.ShouldPropagate())

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer(InstrumentationName).Start(context.Background(), "incoming")
	defer span.End()

	headers := http.Header{}
	InjectHTTPHeaders(ctx, headers)
	assert.NotEmpty(t, headers.Get("traceparent"))
}

func TestInit_InvalidSettings(t *testing.T) {
	_, err := Init(context.Background(), Settings{Endpoint: "localhost:4318", SampleRate: 1.5})
	assert.ErrorContains(t, err, "sampleRate")

	_, err = Init(context.Background(), Settings{Endpoint: "localhost:4318", Protocol: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unsupported OTLP protocol")
}

func TestProvider_Nil(t *testing.T) {
	var prov *Provider
	assert.NotNil(t, prov.Tracer())
	assert.False(t, prov.ShouldPropagate())
	assert.NoError(t, prov.Shutdown(context.Background()))
}

func TestFetchSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	tracer := tp.Tracer(InstrumentationName)

	_, span := StartFetchSpan(context.Background(), tracer, "GET", "https://example.test/a")
	EndSpan(span, nil, attribute.Int("http.response.status_code", 204))

	_, span = StartFetchSpan(context.Background(), tracer, "POST", "https://example.test/b")
	EndSpan(span, errors.New("connection refused"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, "fetch GET", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("url.full", "https://example.test/a"))
	assert.Contains(t, spans[0].Attributes, attribute.Int("http.response.status_code", 204))

	assert.Equal(t, "fetch POST", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "connection refused", spans[1].Status.Description)
}

func TestInjectHTTPHeaders(t *testing.T) {
	previous := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(previous) })

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer(InstrumentationName).Start(context.Background(), "parent")
	defer span.End()

	headers := http.Header{}
	InjectHTTPHeaders(ctx, headers)
	assert.NotEmpty(t, headers.Get("traceparent"))
}
