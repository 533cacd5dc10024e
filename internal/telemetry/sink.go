package telemetry

import (
	"context"

	"github.com/BaSui01/actionflow/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ====== Span Sink：执行跨度事件接收器 ======

const tracerName = "github.com/BaSui01/actionflow"

// Sink receives span start/end events from the engine. Behavior by mode:
//   - silent:  every call returns immediately, nothing is recorded
//   - minimal: span events are logged at debug level, no OTel calls
//   - full:    spans are recorded through the global OTel tracer
type Sink struct {
	mode   string
	logger *zap.Logger
	tracer oteltrace.Tracer
}

// Span is an in-flight span handle returned by SpanStart.
// End must be called exactly once; calling it on the zero value is safe.
type Span struct {
	name string
	sink *Sink
	span oteltrace.Span
}

// NewSink builds a Sink for the configured telemetry mode.
// The tracer is resolved lazily from the global provider so Init ordering
// does not matter for tests.
func NewSink(cfg config.TelemetryConfig, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sink{
		mode:   cfg.Mode,
		logger: logger.With(zap.String("component", "telemetry")),
	}
	if cfg.Mode == config.TelemetryModeFull {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// NewNopSink returns a silent Sink, used as the default when no telemetry
// configuration is provided.
func NewNopSink() *Sink {
	return &Sink{mode: config.TelemetryModeSilent, logger: zap.NewNop()}
}

// Mode reports the configured telemetry mode.
func (s *Sink) Mode() string {
	if s == nil {
		return config.TelemetryModeSilent
	}
	return s.mode
}

// SpanStart opens a span for a named engine operation. In silent mode the
// input context is returned unchanged and the returned Span is inert.
func (s *Sink) SpanStart(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	if s == nil || s.mode == config.TelemetryModeSilent {
		return ctx, Span{}
	}
	if s.mode == config.TelemetryModeMinimal {
		s.logger.Debug("span start", zap.String("span", name))
		return ctx, Span{name: name, sink: s}
	}
	ctx, span := s.tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
	return ctx, Span{name: name, sink: s, span: span}
}

// End closes the span. err marks the span as failed in full mode and is
// included in the debug event in minimal mode.
func (sp Span) End(err error) {
	if sp.sink == nil {
		return
	}
	if sp.span == nil {
		// minimal 模式：仅记录本地调试事件
		if err != nil {
			sp.sink.logger.Debug("span end", zap.String("span", sp.name), zap.Error(err))
			return
		}
		sp.sink.logger.Debug("span end", zap.String("span", sp.name))
		return
	}
	if err != nil {
		sp.span.RecordError(err)
		sp.span.SetStatus(codes.Error, err.Error())
	}
	sp.span.End()
}

// AddEvent attaches a named event to an in-flight span. No-op on inert spans.
func (sp Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	if sp.sink == nil {
		return
	}
	if sp.span == nil {
		sp.sink.logger.Debug("span event", zap.String("span", sp.name), zap.String("event", name))
		return
	}
	sp.span.AddEvent(name, oteltrace.WithAttributes(attrs...))
}
