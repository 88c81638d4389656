package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// stubExporter swaps the OTLP exporter for an in-memory one and reports the config it saw
func stubExporter(t *testing.T) *Config {
	t.Helper()
	seen := &Config{}
	prevExp, prevRes, prevTP := newExporter, newResource, otel.GetTracerProvider()
	newExporter = func(_ context.Context, c Config) (sdktrace.SpanExporter, error) {
		*seen = c
		return tracetest.NewInMemoryExporter(), nil
	}
	newResource = func(context.Context, ...resource.Option) (*resource.Resource, error) {
		return resource.Empty(), nil
	}
	t.Cleanup(func() {
		newExporter, newResource = prevExp, prevRes
		otel.SetTracerProvider(prevTP)
	})
	return seen
}

func TestInitTracingNormalizesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want Config
	}{
		{
			name: "grpc defaults",
			cfg:  Config{ServiceName: "gabeda-test", SamplerRate: -1},
			want: Config{ServiceName: "gabeda-test", Protocol: ProtocolGRPC, Endpoint: defaultGRPCEndpoint, SamplerRate: 0},
		},
		{
			name: "http defaults",
			cfg:  Config{ServiceName: "gabeda-test", Protocol: ProtocolHTTP, SamplerRate: 3},
			want: Config{ServiceName: "gabeda-test", Protocol: ProtocolHTTP, Endpoint: defaultHTTPEndpoint, SamplerRate: 1},
		},
		{
			name: "unknown protocol falls back to grpc",
			cfg:  Config{ServiceName: "gabeda-test", Protocol: "udp", Endpoint: "collector:4317", SamplerRate: 0.25},
			want: Config{ServiceName: "gabeda-test", Protocol: ProtocolGRPC, Endpoint: "collector:4317", SamplerRate: 0.25},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := stubExporter(t)
			shutdown, err := InitTracing(context.Background(), &tt.cfg, zap.NewNop())
			require.NoError(t, err)
			assert.Equal(t, tt.want, *seen)
			require.NoError(t, shutdown(context.Background()))
		})
	}
}

func TestInitTracingErrors(t *testing.T) {
	stubExporter(t)

	newResource = func(context.Context, ...resource.Option) (*resource.Resource, error) {
		return nil, errors.New("no resource")
	}
	_, err := InitTracing(context.Background(), &Config{}, zap.NewNop())
	require.ErrorContains(t, err, "create resource")

	newResource = func(context.Context, ...resource.Option) (*resource.Resource, error) {
		return resource.Empty(), nil
	}
	newExporter = func(context.Context, Config) (sdktrace.SpanExporter, error) {
		return nil, errors.New("dial failed")
	}
	_, err = InitTracing(context.Background(), &Config{Protocol: ProtocolHTTP}, zap.NewNop())
	require.ErrorContains(t, err, "create http exporter")
}

func TestExporterOptions(t *testing.T) {
	c := Config{Endpoint: "collector:4318", Insecure: true, Headers: map[string]string{"x-tenant": "1"}}
	assert.Len(t, httpOptions(c), 3)
	assert.Len(t, grpcOptions(c), 3)

	c = Config{Endpoint: "collector:4318"}
	assert.Len(t, httpOptions(c), 1)
	assert.Len(t, grpcOptions(c), 1)
}

func TestEndpointHelpers(t *testing.T) {
	assert.Equal(t, "http://collector:4318", endpointURL("collector:4318", true))
	assert.Equal(t, "https://collector:4318", endpointURL("collector:4318", false))
	assert.Equal(t, "http://x:1/v1", endpointURL("http://x:1/v1", false))
	assert.Equal(t, "localhost:4317", hostPort("https://localhost:4317/"))
	assert.Equal(t, "localhost:4317", hostPort("localhost:4317"))
}

func TestSpanScope(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	parent := Tracer("gabeda/test").Start(context.Background(), "ingest.attempt.process").
		WithAttrs(attribute.String("attempt.id", "a-1"))
	child := Tracer("gabeda/test").Start(parent.Ctx, "ingest.stage.write")
	child.Fail(errors.New("disk full"))
	child.End()
	parent.Fail(nil)
	parent.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)

	write, attempt := spans[0], spans[1]
	assert.Equal(t, "ingest.stage.write", write.Name())
	assert.Equal(t, codes.Error, write.Status().Code)
	assert.Equal(t, "disk full", write.Status().Description)
	require.Len(t, write.Events(), 1)
	assert.Equal(t, attempt.SpanContext().SpanID(), write.Parent().SpanID())

	assert.Equal(t, codes.Unset, attempt.Status().Code)
	assert.Contains(t, attempt.Attributes(), attribute.String("attempt.id", "a-1"))

	var nilScope *SpanScope
	assert.NotPanics(t, func() {
		nilScope.WithAttrs(attribute.Int("n", 1)).Fail(errors.New("x"))
		nilScope.End()
	})
}
