package tracing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jobhunter-labs/jobhunter/internal/logger"
	"github.com/jobhunter-labs/jobhunter/internal/tracing"
)

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestParamAttributes(t *testing.T) {
	attrs := attrMap(tracing.ParamAttributes(map[string]interface{}{
		"command":   "coach",
		"retries":   3,
		"threshold": 0.5,
		"verbose":   true,
		"api_key":   "sk-123",
		"Token":     42,
		"payload":   map[string]interface{}{"a": 1},
	}))

	assert.Equal(t, "coach", attrs["jobhunter.stage.param.command"].AsString())
	assert.Equal(t, int64(3), attrs["jobhunter.stage.param.retries"].AsInt64())
	assert.Equal(t, 0.5, attrs["jobhunter.stage.param.threshold"].AsFloat64())
	assert.True(t, attrs["jobhunter.stage.param.verbose"].AsBool())
	assert.Equal(t, "[REDACTED]", attrs["jobhunter.stage.param.api_key"].AsString())
	assert.Equal(t, "[REDACTED]", attrs["jobhunter.stage.param.Token"].AsString())
	assert.NotContains(t, attrs, "jobhunter.stage.param.payload")
}

func TestRecordError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "stage")
	tracing.RecordError(span, nil)
	tracing.RecordError(span, errors.New("agent tool call failed"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "agent tool call failed", spans[0].Status.Description)
	assert.Equal(t, "agent_execution", attrMap(spans[0].Attributes)["jobhunter.error.category"].AsString())
	assert.Len(t, spans[0].Events, 1)
}

func TestNewProviderFromEnv(t *testing.T) {
	log := logger.NewDiscardLogger()

	t.Run("unconfigured is no-op", func(t *testing.T) {
		t.Setenv("OTEL_SDK_DISABLED", "")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
		t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "")
		p := tracing.NewProviderFromEnv(context.Background(), log)
		assert.True(t, p.IsNoOp())
		assert.NoError(t, p.Shutdown(context.Background()))
		assert.NotNil(t, p.GetTracer("x"))
	})

	t.Run("disabled wins", func(t *testing.T) {
		t.Setenv("OTEL_SDK_DISABLED", "TRUE")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "127.0.0.1:4318")
		assert.True(t, tracing.NewProviderFromEnv(context.Background(), log).IsNoOp())
	})

	t.Run("unsupported protocol falls back", func(t *testing.T) {
		t.Setenv("OTEL_SDK_DISABLED", "")
		t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "carrier-pigeon")
		assert.True(t, tracing.NewProviderFromEnv(context.Background(), log).IsNoOp())
	})

	t.Run("http exporter", func(t *testing.T) {
		t.Setenv("OTEL_SDK_DISABLED", "")
		t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "127.0.0.1:4318")
		t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
		t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-team=careers, bad")
		p := tracing.NewProviderFromEnv(context.Background(), log)
		assert.False(t, p.IsNoOp())
		assert.NoError(t, p.Shutdown(context.Background()))
	})
}
