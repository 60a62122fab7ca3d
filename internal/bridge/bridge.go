package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ndrwrbgs/flowtrace/internal/clock"
	"github.com/ndrwrbgs/flowtrace/internal/event"
	"github.com/ndrwrbgs/flowtrace/internal/flow"
	"github.com/ndrwrbgs/flowtrace/internal/infrastructure/monitoring"
	"github.com/ndrwrbgs/flowtrace/internal/opstack"
)

// Handler receives span lifecycle notifications. Every call must be made on
// the flow the notification belongs to. Span sources and legacy adapters
// depend on this interface, not on *Bridge.
type Handler interface {
	Activate(ctx context.Context, operation string) error
	Finish(ctx context.Context, operation string) error
	Log(ctx context.Context, fields ...event.Field) error
	SetTag(ctx context.Context, key string, value any) error
}

// Bridge turns span notifications into position-stamped events.
type Bridge struct {
	stack   *opstack.Stack
	clock   *clock.Clock
	sink    event.Sink
	logger  *zap.Logger
	metrics *monitoring.Metrics
	now     func() time.Time
}

var _ Handler = (*Bridge)(nil)

// Option configures a Bridge
type Option func(*Bridge)

// WithLogger sets the logger used to report rejected events
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// WithMetrics records emitted and rejected events
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(b *Bridge) { b.metrics = metrics }
}

// WithClock overrides the time source used to stamp events
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// New creates a bridge that emits to sink.
func New(sink event.Sink, opts ...Option) *Bridge {
	b := &Bridge{
		stack:  opstack.New(),
		clock:  clock.New(),
		sink:   sink,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Activate opens operation in the calling flow.
func (b *Bridge) Activate(ctx context.Context, operation string) error {
	if !flow.Active(ctx) {
		return ErrNoFlow
	}

	b.stack.Push(ctx, operation)
	b.clock.Extend(ctx)

	pos, err := b.clock.Current(ctx)
	if err != nil {
		return fmt.Errorf("activate %q: %w", operation, err)
	}

	b.emit(ctx, event.Event{
		Kind:      event.KindStart,
		Level:     event.LevelStart,
		Position:  pos.String(),
		Operation: operation,
		Fields: event.Fields{
			event.F(event.KeyPosition, pos.String()),
			event.F(event.KeyOperationName, operation),
		},
	})
	b.metrics.IncActiveOperations()
	return nil
}

// Finish closes operation, which must be the innermost open operation of the
// calling flow. On a causality violation nothing is emitted and the flow's
// clock is left as it was.
func (b *Bridge) Finish(ctx context.Context, operation string) error {
	if !flow.Active(ctx) {
		return ErrNoFlow
	}

	if _, err := b.stack.Pop(ctx, operation); err != nil {
		return b.violation(ctx, "finish", operation, err)
	}

	// The position is read before the clock pops the node it describes.
	pos, err := b.clock.Current(ctx)
	if err != nil {
		return fmt.Errorf("finish %q: %w", operation, err)
	}

	b.emit(ctx, event.Event{
		Kind:      event.KindStop,
		Level:     event.LevelStop,
		Position:  pos.String(),
		Operation: operation,
		Fields: event.Fields{
			event.F(event.KeyPosition, pos.String()),
			event.F(event.KeyOperationName, operation),
		},
	})
	b.metrics.DecActiveOperations()

	if err := b.clock.Pop(ctx); err != nil {
		return fmt.Errorf("finish %q: %w", operation, err)
	}
	return nil
}

// Log emits fields, unchanged, at the position of the innermost open
// operation. A KeyLevel field holding an event.Level (or its name) sets the
// event's level; otherwise it is informational.
func (b *Bridge) Log(ctx context.Context, fields ...event.Field) error {
	pos, err := b.active(ctx, "log")
	if err != nil {
		return err
	}

	all := make(event.Fields, 0, len(fields)+1)
	all = append(all, event.F(event.KeyPosition, pos.String()))
	all = append(all, fields...)

	b.emit(ctx, event.Event{
		Kind:     event.KindLog,
		Level:    levelOf(fields),
		Position: pos.String(),
		Fields:   all,
	})
	return nil
}

// SetTag emits a key/value tag at the position of the innermost open
// operation.
func (b *Bridge) SetTag(ctx context.Context, key string, value any) error {
	pos, err := b.active(ctx, "set-tag")
	if err != nil {
		return err
	}

	b.emit(ctx, event.Event{
		Kind:     event.KindTag,
		Level:    event.LevelInfo,
		Position: pos.String(),
		Fields: event.Fields{
			event.F(event.KeyPosition, pos.String()),
			event.F(key, value),
		},
	})
	return nil
}

// Current returns the innermost open operation of the calling flow and its
// position.
func (b *Bridge) Current(ctx context.Context) (string, clock.Position, error) {
	if !flow.Active(ctx) {
		return "", nil, ErrNoFlow
	}
	name, err := b.stack.Peek(ctx)
	if err != nil {
		return "", nil, err
	}
	pos, err := b.clock.Current(ctx)
	if err != nil {
		return "", nil, err
	}
	return name, pos, nil
}

// Open lists the operations open in the calling flow, outermost first.
func (b *Bridge) Open(ctx context.Context) []string {
	return b.stack.Names(ctx)
}

// active validates that an operation is open for a log or tag and returns its
// position.
func (b *Bridge) active(ctx context.Context, op string) (clock.Position, error) {
	if !flow.Active(ctx) {
		return nil, ErrNoFlow
	}
	if _, err := b.stack.Peek(ctx); err != nil {
		return nil, b.violation(ctx, op, "", err)
	}
	pos, err := b.clock.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pos, nil
}

func (b *Bridge) emit(ctx context.Context, e event.Event) {
	e.Trace = flow.Trace(ctx)
	e.Flow = flow.ID(ctx)
	e.Time = b.now()

	b.sink.Emit(e)
	b.metrics.RecordEvent(e.Kind.String())
}

func (b *Bridge) violation(ctx context.Context, op, operation string, cause error) error {
	cerr := &CausalityError{Op: op, Operation: operation, Err: cause}

	var mismatch *opstack.MismatchError
	switch {
	case errors.As(cause, &mismatch):
		cerr.Reason = ReasonMismatch
		cerr.Innermost = mismatch.Top
	case op == "finish":
		cerr.Reason = ReasonNotOpen
	default:
		cerr.Reason = ReasonNoActiveOperation
	}

	b.metrics.RecordViolation(string(cerr.Reason))
	b.logger.Warn("rejected event",
		zap.String("flow", flow.ID(ctx).String()),
		zap.String("reason", string(cerr.Reason)),
		zap.Strings("open", b.stack.Names(ctx)),
		zap.Error(cerr),
	)
	return cerr
}

func levelOf(fields []event.Field) event.Level {
	v, ok := event.Fields(fields).Get(event.KeyLevel)
	if !ok {
		return event.LevelInfo
	}
	switch v := v.(type) {
	case event.Level:
		return v
	case string:
		if l, err := event.ParseLevel(v); err == nil {
			return l
		}
	}
	return event.LevelInfo
}
