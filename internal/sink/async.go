package sink

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ndrwrbgs/flowtrace/internal/event"
	"github.com/ndrwrbgs/flowtrace/internal/infrastructure/monitoring"
)

// Async hands events to a background goroutine through a bounded buffer,
// so slow sinks never stall the emitting flows. When the buffer is full
// events are dropped, never blocked on.
type Async struct {
	next    event.Sink
	events  chan event.Event
	done    chan struct{}
	logger  *zap.Logger
	metrics *monitoring.Metrics
	warn    rate.Sometimes
	dropped atomic.Int64

	mu     sync.RWMutex // Guards closed against concurrent sends
	closed bool
}

// AsyncOption configures an Async sink
type AsyncOption func(*Async)

// WithAsyncLogger sets the logger that reports drops
func WithAsyncLogger(logger *zap.Logger) AsyncOption {
	return func(a *Async) { a.logger = logger }
}

// WithAsyncMetrics records drops and queue depth
func WithAsyncMetrics(metrics *monitoring.Metrics) AsyncOption {
	return func(a *Async) { a.metrics = metrics }
}

// NewAsync starts a collector that forwards to next. size is the buffer
// capacity; values below 1 mean 1.
func NewAsync(next event.Sink, size int, opts ...AsyncOption) *Async {
	if size < 1 {
		size = 1
	}
	a := &Async{
		next:   next,
		events: make(chan event.Event, size),
		done:   make(chan struct{}),
		logger: zap.NewNop(),
		warn:   rate.Sometimes{First: 1, Interval: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}

	// Start event collector
	go a.collect()

	return a
}

func (a *Async) Emit(e event.Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.drop(e, "sink closed, dropping event")
		return
	}

	select {
	case a.events <- e:
		a.metrics.SetQueueDepth(len(a.events))
	default:
		a.drop(e, "sink buffer full, dropping event")
	}
}

// Dropped returns the number of events dropped so far
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and blocks until the buffered ones have been
// forwarded. It is safe to call more than once.
func (a *Async) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()

	<-a.done
	return nil
}

// collect forwards buffered events
func (a *Async) collect() {
	defer close(a.done)
	for e := range a.events {
		a.next.Emit(e)
		a.metrics.SetQueueDepth(len(a.events))
	}
}

func (a *Async) drop(e event.Event, msg string) {
	n := a.dropped.Add(1)
	a.metrics.RecordDrop()
	a.warn.Do(func() {
		a.logger.Warn(msg,
			zap.String("kind", e.Kind.String()),
			zap.String("position", e.Position),
			zap.Int64("dropped_total", n),
		)
	})
}
