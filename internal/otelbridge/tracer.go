// Package otelbridge reports OpenTelemetry spans to a bridge.Handler.
//
// Wrap a TracerProvider (or a single Tracer) and instrument code with the
// regular otel API. Every span still reaches the backing tracer; in addition
// its lifecycle, events and attributes become position-stamped events.
package otelbridge

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"

	"github.com/ndrwrbgs/flowtrace/internal/bridge"
	"github.com/ndrwrbgs/flowtrace/internal/flow"
)

type tracerProvider struct {
	embedded.TracerProvider
	backing trace.TracerProvider
	handler bridge.Handler
}

// NewTracerProvider wraps backing so that every tracer it hands out reports
// to h.
func NewTracerProvider(backing trace.TracerProvider, h bridge.Handler) trace.TracerProvider {
	return &tracerProvider{backing: backing, handler: h}
}

func (p *tracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return NewTracer(p.backing.Tracer(name, opts...), p.handler)
}

type tracer struct {
	embedded.Tracer
	backingTracer trace.Tracer
	handler       bridge.Handler
}

// NewTracer wraps backing so that its spans report to h.
func NewTracer(backing trace.Tracer, h bridge.Handler) trace.Tracer {
	return &tracer{backingTracer: backing, handler: h}
}

// Start starts a backing span and activates it in the flow carried by ctx,
// starting a new root flow if there is none. Attributes given at start time
// are reported as tags.
func (t *tracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !flow.Active(ctx) {
		ctx = flow.New(ctx)
	}
	newCtx, backingSpan := t.backingTracer.Start(ctx, spanName, opts...)

	s := newSpan(newCtx, backingSpan, spanName, t.handler)
	if err := t.handler.Activate(newCtx, spanName); err != nil {
		s.fail(err)
		s.inactive = true
	} else {
		// The backing span already holds these.
		cfg := trace.NewSpanStartConfig(opts...)
		s.tag(cfg.Attributes())
	}

	return trace.ContextWithSpan(newCtx, s), s
}
