package tracing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ndrwrbgs/flowtrace/internal/event"
	"github.com/ndrwrbgs/flowtrace/internal/flow"
	"github.com/ndrwrbgs/flowtrace/internal/span"
)

// TraceHeader carries the trace id of the request's flow back to the caller.
const TraceHeader = "X-Trace-ID"

// Tracer opens one span per request
type Tracer struct {
	service string
	spans   *span.Tracer
	logger  *zap.Logger
}

// New creates a request tracer. Failures to record a span are logged to
// logger, never returned to the request.
func New(service string, spans *span.Tracer, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{service: service, spans: spans, logger: logger}
}

// start forks the flow carried by ctx, or starts a root flow, and opens a
// span named name in it.
func (t *Tracer) start(ctx context.Context, name string, tags ...span.StartOption) (*span.Span, error) {
	if flow.Active(ctx) {
		ctx = flow.Fork(ctx)
	} else {
		ctx = flow.New(ctx)
	}
	if t.service != "" {
		tags = append([]span.StartOption{span.WithTag("service", t.service)}, tags...)
	}
	s, err := t.spans.Start(ctx, name, tags...)
	if err != nil {
		t.logger.Warn("failed to start request span", zap.String("operation", name), zap.Error(err))
		return nil, err
	}
	return s, nil
}

func (t *Tracer) tag(s *span.Span, key string, value any) {
	if err := s.SetTag(key, value); err != nil {
		t.logger.Warn("failed to tag request span",
			zap.String("operation", s.Name()), zap.String("tag", key), zap.Error(err))
	}
}

func (t *Tracer) fail(s *span.Span, err error) {
	if logErr := s.Log(
		event.F(event.KeyEvent, "error"),
		event.F(event.KeyLevel, event.LevelError),
		event.F("error.message", err.Error()),
	); logErr != nil {
		t.logger.Warn("failed to log request error", zap.String("operation", s.Name()), zap.Error(logErr))
	}
}

func (t *Tracer) finish(s *span.Span) {
	if err := s.Finish(); err != nil {
		t.logger.Warn("failed to finish request span",
			zap.String("operation", s.Name()), zap.Error(fmt.Errorf("finish: %w", err)))
	}
}
