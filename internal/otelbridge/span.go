package otelbridge

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ndrwrbgs/flowtrace/internal/bridge"
	"github.com/ndrwrbgs/flowtrace/internal/event"
)

// Field keys used for recorded errors.
const (
	KeyErrorMessage = "error.message"
	errorEvent      = "error"
)

type span struct {
	trace.Span
	ctx     context.Context
	name    string
	handler bridge.Handler
	ended   atomic.Bool

	// inactive is set when activation failed; the span then only reaches
	// the backing tracer.
	inactive bool
}

func newSpan(ctx context.Context, backing trace.Span, name string, h bridge.Handler) *span {
	return &span{Span: backing, ctx: ctx, name: name, handler: h}
}

func (s *span) End(options ...trace.SpanEndOption) {
	if !s.ended.CompareAndSwap(false, true) {
		return
	}
	if !s.inactive {
		if err := s.handler.Finish(s.ctx, s.name); err != nil {
			s.fail(err)
		}
	}
	s.Span.End(options...)
}

func (s *span) AddEvent(name string, options ...trace.EventOption) {
	s.Span.AddEvent(name, options...)

	cfg := trace.NewEventConfig(options...)
	fields := append(event.Fields{event.F(event.KeyEvent, name)}, toFields(cfg.Attributes())...)
	s.log(fields)
}

func (s *span) RecordError(err error, options ...trace.EventOption) {
	s.Span.RecordError(err, options...)
	if err == nil {
		return
	}

	cfg := trace.NewEventConfig(options...)
	fields := event.Fields{
		event.F(event.KeyEvent, errorEvent),
		event.F(event.KeyLevel, event.LevelError),
		event.F(KeyErrorMessage, err.Error()),
	}
	s.log(append(fields, toFields(cfg.Attributes())...))
}

func (s *span) SetAttributes(kv ...attribute.KeyValue) {
	s.Span.SetAttributes(kv...)
	s.tag(kv)
}

func (s *span) tag(kv []attribute.KeyValue) {
	if s.inactive || s.ended.Load() {
		return
	}
	for _, a := range kv {
		if err := s.handler.SetTag(s.ctx, string(a.Key), a.Value.AsInterface()); err != nil {
			s.fail(err)
			return
		}
	}
}

func (s *span) log(fields event.Fields) {
	if s.inactive || s.ended.Load() {
		return
	}
	if err := s.handler.Log(s.ctx, fields...); err != nil {
		s.fail(err)
	}
}

// fail reports a bridge error. The otel API has no error returns, so it goes
// to the global error handler and onto the backing span.
func (s *span) fail(err error) {
	err = fmt.Errorf("otelbridge: span %q: %w", s.name, err)
	otel.Handle(err)
	s.Span.RecordError(err)
}

func toFields(attrs []attribute.KeyValue) event.Fields {
	fields := make(event.Fields, 0, len(attrs))
	for _, a := range attrs {
		fields = append(fields, event.F(string(a.Key), a.Value.AsInterface()))
	}
	return fields
}
