package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/codes"
)

func TestNoopLoggerDiscardsAllLevels(t *testing.T) {
	logger := NewNoopLogger()
	ctx := context.Background()
	assert.NotPanics(t, func() {
		logger.Debug(ctx, "msg", "k", "v")
		logger.Info(ctx, "msg")
		logger.Warn(ctx, "msg")
		logger.Error(ctx, "msg", "err", assert.AnError)
	})
}

func TestNoopMetricsDiscardsCountersAndTimers(t *testing.T) {
	metrics := NewNoopMetrics()
	assert.NotPanics(t, func() {
		metrics.IncCounter("calls", 1, "tag:value")
		metrics.RecordTimer("latency", 10*time.Millisecond)
	})
}

func TestNoopTracerReturnsUsableSpan(t *testing.T) {
	tracer := NewNoopTracer()
	ctx, span := tracer.Start(context.Background(), "op")
	assert.NotNil(t, ctx)
	assert.NotPanics(t, func() {
		span.AddEvent("event")
		span.SetStatus(codes.Error, "failed")
		span.RecordError(assert.AnError)
		span.End()
	})
}

func TestNoopImplementationsSatisfyInterfaces(t *testing.T) {
	var _ Logger = NewNoopLogger()
	var _ Metrics = NewNoopMetrics()
	var _ Tracer = NewNoopTracer()
}
