// Package observability provides OpenTelemetry tracing around agent runs.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tinybirdco/birdwatcher/internal/common/logging"
)

const TracerName = "birdwatcher"

// TracingHandler is the seam the bot and agent use to emit spans. The
// disabled implementation keeps call sites unconditional.
type TracingHandler interface {
	StartTrace(ctx context.Context, name string, input string, metadata map[string]string) (context.Context, trace.Span)
	StartSpan(ctx context.Context, name string, input string, metadata map[string]string) (context.Context, trace.Span)

	SetOutput(span trace.Span, output string)
	SetDuration(span trace.Span, duration time.Duration)
	RecordError(span trace.Span, err error)
	RecordSuccess(span trace.Span, message string)

	IsEnabled() bool
}

// noOpHandler provides default no-op implementations for embedding
type noOpHandler struct{}

func (n noOpHandler) StartTrace(ctx context.Context, name string, input string, metadata map[string]string) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

func (n noOpHandler) StartSpan(ctx context.Context, name string, input string, metadata map[string]string) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

func (n noOpHandler) SetOutput(span trace.Span, output string) {}

func (n noOpHandler) SetDuration(span trace.Span, duration time.Duration) {}

func (n noOpHandler) RecordError(span trace.Span, err error) {}

func (n noOpHandler) RecordSuccess(span trace.Span, message string) {}

func (n noOpHandler) IsEnabled() bool {
	return false
}

type disabledHandler struct {
	noOpHandler
}

// otelHandler emits spans through the globally installed tracer provider
type otelHandler struct {
	tracer trace.Tracer
	logger *logging.Logger
}

func (h *otelHandler) StartTrace(ctx context.Context, name string, input string, metadata map[string]string) (context.Context, trace.Span) {
	spanCtx, span := h.tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("input.value", logging.TruncateForLog(input, 2000)),
		attribute.Int("input.length", len(input)),
	)
	for key, value := range metadata {
		span.SetAttributes(attribute.String(key, value))
	}
	return spanCtx, span
}

func (h *otelHandler) StartSpan(ctx context.Context, name string, input string, metadata map[string]string) (context.Context, trace.Span) {
	return h.StartTrace(ctx, name, input, metadata)
}

func (h *otelHandler) SetOutput(span trace.Span, output string) {
	span.SetAttributes(
		attribute.String("output.value", logging.TruncateForLog(output, 2000)),
		attribute.Int("output.length", len(output)),
	)
}

func (h *otelHandler) SetDuration(span trace.Span, duration time.Duration) {
	span.SetAttributes(attribute.Float64("duration.seconds", duration.Seconds()))
}

func (h *otelHandler) RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (h *otelHandler) RecordSuccess(span trace.Span, message string) {
	span.SetStatus(codes.Ok, message)
}

func (h *otelHandler) IsEnabled() bool {
	return true
}

// NewTracingHandler returns an OTel-backed handler when tracing is enabled,
// otherwise the disabled no-op handler.
func NewTracingHandler(enabled bool, logger *logging.Logger) TracingHandler {
	if !enabled {
		logger.Info("Tracing disabled")
		return &disabledHandler{}
	}
	return &otelHandler{
		tracer: otel.Tracer(TracerName),
		logger: logger,
	}
}
