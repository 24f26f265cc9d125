package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"goa.design/clue/log"
)

func TestKVToClueSkipsNonStringKeysAndPadsMissingValue(t *testing.T) {
	fielders := kvToClue([]any{"a", 1, 2, "ignored-key", "b"})
	require.Len(t, fielders, 2)
	assert.Equal(t, log.KV{K: "a", V: 1}, fielders[0])
	assert.Equal(t, log.KV{K: "b", V: nil}, fielders[1])
}

func TestTagsToAttrsPadsMissingValueWithEmptyString(t *testing.T) {
	attrs := tagsToAttrs([]string{"env", "prod", "region"})
	require.Len(t, attrs, 2)
	assert.Equal(t, "env", string(attrs[0].Key))
	assert.Equal(t, "prod", attrs[0].Value.AsString())
	assert.Equal(t, "region", string(attrs[1].Key))
	assert.Equal(t, "", attrs[1].Value.AsString())
}

func TestKVToAttrsTypeSwitchesKnownTypes(t *testing.T) {
	attrs := kvToAttrs([]any{
		"s", "text",
		"i", 7,
		"i64", int64(8),
		"f", 1.5,
		"b", true,
		"other", struct{}{},
	})
	require.Len(t, attrs, 6)
	assert.Equal(t, "text", attrs[0].Value.AsString())
	assert.Equal(t, int64(7), attrs[1].Value.AsInt64())
	assert.Equal(t, int64(8), attrs[2].Value.AsInt64())
	assert.Equal(t, 1.5, attrs[3].Value.AsFloat64())
	assert.Equal(t, true, attrs[4].Value.AsBool())
	assert.Equal(t, "", attrs[5].Value.AsString())
}

func TestClueLoggerDoesNotPanicWithoutConfiguredContext(t *testing.T) {
	logger := NewClueLogger()
	ctx := context.Background()
	assert.NotPanics(t, func() {
		logger.Debug(ctx, "msg", "k", "v")
		logger.Info(ctx, "msg")
		logger.Warn(ctx, "msg")
		logger.Error(ctx, "msg")
	})
}

func TestClueMetricsDoesNotPanicAgainstDefaultMeterProvider(t *testing.T) {
	metrics := NewClueMetrics()
	assert.NotPanics(t, func() {
		metrics.IncCounter("calls", 1, "k", "v")
		metrics.RecordTimer("latency", 5*time.Millisecond)
	})
}

func TestClueTracerDoesNotPanicAgainstDefaultTracerProvider(t *testing.T) {
	tracer := NewClueTracer()
	ctx, span := tracer.Start(context.Background(), "op")
	assert.NotNil(t, ctx)
	assert.NotPanics(t, func() {
		span.AddEvent("event", "k", "v")
		span.SetStatus(codes.Ok, "")
		span.RecordError(assert.AnError)
		span.End()
	})
}

func TestClueImplementationsSatisfyInterfaces(t *testing.T) {
	var _ Logger = NewClueLogger()
	var _ Metrics = NewClueMetrics()
	var _ Tracer = NewClueTracer()
}
