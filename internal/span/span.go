// Package span is a small native tracer that reports its spans to a
// bridge.Handler.
package span

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ndrwrbgs/flowtrace/internal/bridge"
	"github.com/ndrwrbgs/flowtrace/internal/clock"
	"github.com/ndrwrbgs/flowtrace/internal/event"
	"github.com/ndrwrbgs/flowtrace/internal/flow"
)

// ErrFinished is returned when a finished span is used again.
var ErrFinished = errors.New("span: already finished")

// Tracer starts spans.
type Tracer struct {
	handler bridge.Handler
}

// New creates a tracer reporting to h
func New(h bridge.Handler) *Tracer {
	return &Tracer{handler: h}
}

type startConfig struct {
	tags []event.Field
}

// StartOption configures Start
type StartOption func(*startConfig)

// WithTag sets a tag right after the span is activated
func WithTag(key string, value any) StartOption {
	return func(c *startConfig) {
		c.tags = append(c.tags, event.F(key, value))
	}
}

// Start activates a span named name in the flow carried by ctx. A ctx without
// a flow starts a new root flow; use Span.Context for work inside the span.
func (t *Tracer) Start(ctx context.Context, name string, opts ...StartOption) (*Span, error) {
	var cfg startConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if !flow.Active(ctx) {
		ctx = flow.New(ctx)
	}
	if err := t.handler.Activate(ctx, name); err != nil {
		return nil, fmt.Errorf("start span %q: %w", name, err)
	}

	s := &Span{tracer: t, ctx: ctx, name: name}
	for _, tag := range cfg.tags {
		if err := s.SetTag(tag.Key, tag.Value); err != nil {
			return s, err
		}
	}
	return s, nil
}

// Active returns the innermost open operation of the flow carried by ctx, if
// the handler can tell.
func (t *Tracer) Active(ctx context.Context) (string, bool) {
	cur, ok := t.handler.(interface {
		Current(context.Context) (string, clock.Position, error)
	})
	if !ok {
		return "", false
	}
	name, _, err := cur.Current(ctx)
	if err != nil {
		return "", false
	}
	return name, true
}

// Span is one open operation. Its methods report on the flow it was started
// in, whichever goroutine calls them.
type Span struct {
	tracer   *Tracer
	ctx      context.Context
	name   string

	// mu is held for writing only while Finish reports to the handler.
	mu       sync.RWMutex
	finished bool
}

// Name returns the operation name
func (s *Span) Name() string { return s.name }

// Context returns the flow context the span lives in. Fork it for concurrent
// children.
func (s *Span) Context() context.Context { return s.ctx }

// Log records fields at this span's position.
func (s *Span) Log(fields ...event.Field) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.finished {
		return ErrFinished
	}
	return s.tracer.handler.Log(s.ctx, fields...)
}

// LogText records msg as the event text.
func (s *Span) LogText(msg string) error {
	return s.Log(event.F(event.KeyEvent, msg))
}

// SetTag records a key/value tag.
func (s *Span) SetTag(key string, value any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.finished {
		return ErrFinished
	}
	return s.tracer.handler.SetTag(s.ctx, key, value)
}

// Finish closes the span. It must be the innermost open span of its flow; a
// rejected Finish leaves the span open.
func (s *Span) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return ErrFinished
	}
	if err := s.tracer.handler.Finish(s.ctx, s.name); err != nil {
		return err
	}
	s.finished = true
	return nil
}
