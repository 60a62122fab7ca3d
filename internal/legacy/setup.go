package legacy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"

	"github.com/ndrwrbgs/flowtrace/internal/bridge"
	"github.com/ndrwrbgs/flowtrace/internal/event"
	"github.com/ndrwrbgs/flowtrace/internal/flow"
	"github.com/ndrwrbgs/flowtrace/internal/infrastructure/monitoring"
	"github.com/ndrwrbgs/flowtrace/internal/infrastructure/resilience"
	"github.com/ndrwrbgs/flowtrace/internal/sink"
	"github.com/ndrwrbgs/flowtrace/internal/span"
)

// Features names the legacy surfaces the instrumented code uses.
type Features uint8

const (
	// FeatureConsoleOut: the code writes to a console; see Setup.Stdout.
	FeatureConsoleOut Features = 1 << iota
	// FeatureTraceWrite: the code uses line-oriented trace calls or slog.
	FeatureTraceWrite
	// FeatureCorrelationManager: the code keeps a logical operation stack.
	FeatureCorrelationManager
	// FeatureNoTracingSetup: the code opens no spans of its own, so a
	// never-finished GlobalSpan is opened to receive its output.
	FeatureNoTracingSetup
)

func (f Features) Has(flag Features) bool { return f&flag != 0 }

// Outputs names the built-in sinks to write to.
type Outputs uint8

const (
	// OutputConsole writes human readable lines.
	OutputConsole Outputs = 1 << iota
	// OutputZap writes structured entries through the configured logger.
	OutputZap
)

func (o Outputs) Has(flag Outputs) bool { return o&flag != 0 }

// GlobalSpanName names the operation opened by FeatureNoTracingSetup.
const GlobalSpanName = "GlobalSpan"

// ErrNothingToTrace is returned when FeatureNoTracingSetup is requested
// without any feature that writes to the active operation.
var ErrNothingToTrace = errors.New("legacy: NoTracingSetup needs ConsoleOut or TraceWrite")

type options struct {
	logger      *zap.Logger
	metrics     *monitoring.Metrics
	consoleOut  io.Writer
	passthrough io.Writer
	colors      sink.ColorProvider
	sinks       []event.Sink
	minLevel    event.Level
}

// Option configures Enable
type Option func(*options)

// WithLogger sets the logger used by OutputZap and for rejected events
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records bridge metrics
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// WithConsoleOutput sets where OutputConsole writes. Default os.Stdout.
func WithConsoleOutput(w io.Writer) Option {
	return func(o *options) { o.consoleOut = w }
}

// WithPassthrough sets where Setup.Stdout copies raw bytes. Default io.Discard.
func WithPassthrough(w io.Writer) Option {
	return func(o *options) { o.passthrough = w }
}

// WithColorProvider sets the console colors
func WithColorProvider(p sink.ColorProvider) Option {
	return func(o *options) { o.colors = p }
}

// WithSink adds a sink next to the built-in outputs. Panics in s are
// recovered, and s is skipped for a while after repeated panics.
func WithSink(s event.Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, s) }
}

// WithMinLevel drops log events less severe than l from the built-in outputs
func WithMinLevel(l event.Level) Option {
	return func(o *options) { o.minLevel = l }
}

// Setup holds the wiring created by Enable. Fields for features that were
// not requested are nil.
type Setup struct {
	Bridge      *bridge.Bridge
	Tracer      *span.Tracer
	Listener    *TraceListener
	Logger      *slog.Logger
	Correlation *CorrelationManager

	features    Features
	passthrough io.Writer
	global      *span.Span
}

// Enable wires the requested legacy surfaces to a new bridge and returns a
// context carrying the root flow to run the instrumented code in.
func Enable(ctx context.Context, features Features, outputs Outputs, opts ...Option) (context.Context, *Setup, error) {
	if features.Has(FeatureNoTracingSetup) && !features.Has(FeatureConsoleOut) && !features.Has(FeatureTraceWrite) {
		return ctx, nil, ErrNothingToTrace
	}

	o := options{
		logger:      zap.NewNop(),
		consoleOut:  os.Stdout,
		passthrough: io.Discard,
		colors:      sink.ByLevel{},
		minLevel:    event.LevelVerbose,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var sinks sink.Multi
	if outputs.Has(OutputConsole) {
		sinks = append(sinks, sink.MinLevel(sink.NewConsole(o.consoleOut, sink.WithColors(o.colors)), o.minLevel))
	}
	if outputs.Has(OutputZap) {
		sinks = append(sinks, sink.MinLevel(sink.NewZap(o.logger), o.minLevel))
	}
	for i, extra := range o.sinks {
		// A panicking extra sink must not take the traced flow down with it.
		sinks = append(sinks, resilience.Guard(fmt.Sprintf("extra-%d", i), extra, resilience.Settings{}, o.logger))
	}

	b := bridge.New(sinks, bridge.WithLogger(o.logger), bridge.WithMetrics(o.metrics))
	s := &Setup{
		Bridge:      b,
		Tracer:      span.New(b),
		features:    features,
		passthrough: o.passthrough,
	}

	if features.Has(FeatureTraceWrite) {
		s.Listener = NewTraceListener(b)
		s.Logger = slog.New(NewSlogHandler(b, levelToSlog(o.minLevel)))
	}
	if features.Has(FeatureCorrelationManager) {
		s.Correlation = NewCorrelationManager(b)
	}

	if !flow.Active(ctx) {
		ctx = flow.New(ctx)
	}
	if features.Has(FeatureNoTracingSetup) {
		global, err := s.Tracer.Start(ctx, GlobalSpanName)
		if err != nil {
			return ctx, nil, fmt.Errorf("open %s: %w", GlobalSpanName, err)
		}
		s.global = global
		ctx = global.Context()
	}

	return ctx, s, nil
}

// Stdout returns a writer for console output of the flow carried by ctx.
// Without FeatureConsoleOut it is the passthrough writer.
func (s *Setup) Stdout(ctx context.Context) io.Writer {
	if !s.features.Has(FeatureConsoleOut) {
		return s.passthrough
	}
	return NewConsoleWriter(ctx, s.Bridge, s.passthrough)
}

// GlobalSpan returns the span opened by FeatureNoTracingSetup, or nil.
func (s *Setup) GlobalSpan() *span.Span {
	return s.global
}
