package resilience

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ndrwrbgs/flowtrace/internal/event"
)

// GuardedSink shields the emitting flow from a sink that panics. After
// enough consecutive panics the sink is skipped, and its events dropped,
// until the breaker lets a trial event through.
type GuardedSink struct {
	next    event.Sink
	breaker *Breaker
	logger  *zap.Logger
	dropped atomic.Int64
}

// Guard wraps next in a breaker named name. State changes are logged to
// logger in addition to settings.OnStateChange.
func Guard(name string, next event.Sink, settings Settings, logger *zap.Logger) *GuardedSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	onChange := settings.OnStateChange
	settings.OnStateChange = func(name string, from, to State) {
		logger.Warn("sink breaker state changed",
			zap.String("sink", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
		if onChange != nil {
			onChange(name, from, to)
		}
	}
	return &GuardedSink{
		next:    next,
		breaker: New(name, settings),
		logger:  logger,
	}
}

func (g *GuardedSink) Emit(e event.Event) {
	err := g.breaker.Do(func() error {
		g.next.Emit(e)
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrCircuitOpen), errors.Is(err, ErrTooManyRequests):
		g.dropped.Add(1)
	default:
		g.dropped.Add(1)
		g.logger.Error("sink panicked",
			zap.String("sink", g.breaker.Name()),
			zap.String("position", e.Position),
			zap.Stringer("kind", e.Kind),
			zap.Error(err))
	}
}

// Dropped returns the number of events that did not reach the wrapped sink.
func (g *GuardedSink) Dropped() int64 {
	return g.dropped.Load()
}

// State returns the breaker state
func (g *GuardedSink) State() State {
	return g.breaker.State()
}
