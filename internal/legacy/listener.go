package legacy

import (
	"context"
	"fmt"

	"github.com/ndrwrbgs/flowtrace/internal/bridge"
	"github.com/ndrwrbgs/flowtrace/internal/event"
)

// Filter decides whether a trace call is forwarded.
type Filter func(level event.Level, source string) bool

// TraceListener forwards line-oriented trace calls to the innermost open
// operation of the calling flow.
type TraceListener struct {
	handler bridge.Handler
	source  string
	filter  Filter
}

// ListenerOption configures a TraceListener
type ListenerOption func(*TraceListener)

// WithFilter drops calls for which f returns false
func WithFilter(f Filter) ListenerOption {
	return func(l *TraceListener) { l.filter = f }
}

// WithSource names the source passed to the filter
func WithSource(source string) ListenerOption {
	return func(l *TraceListener) { l.source = source }
}

// NewTraceListener creates a listener reporting to h
func NewTraceListener(h bridge.Handler, opts ...ListenerOption) *TraceListener {
	l := &TraceListener{handler: h}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *TraceListener) allowed(level event.Level) bool {
	return l.filter == nil || l.filter(level, l.source)
}

func (l *TraceListener) log(ctx context.Context, level event.Level, fields ...event.Field) error {
	if !l.allowed(level) {
		return nil
	}
	return l.handler.Log(ctx, fields...)
}

// Write logs a partial line. Nil messages are skipped here and by the other
// Write variants.
func (l *TraceListener) Write(ctx context.Context, msg any) error {
	if msg == nil {
		return nil
	}
	return l.log(ctx, event.LevelVerbose,
		event.F(event.KeyWriteWithoutNewline, true),
		event.F(event.KeyEvent, msg),
	)
}

// WriteCategory logs a partial line under a category
func (l *TraceListener) WriteCategory(ctx context.Context, msg any, category string) error {
	if msg == nil {
		return nil
	}
	return l.log(ctx, event.LevelVerbose,
		event.F(event.KeyWriteWithoutNewline, true),
		event.F(event.KeyEvent, msg),
		event.F(event.KeyCategory, category),
	)
}

// WriteLine logs a complete line
func (l *TraceListener) WriteLine(ctx context.Context, msg any) error {
	if msg == nil {
		return nil
	}
	return l.log(ctx, event.LevelVerbose, event.F(event.KeyEvent, msg))
}

// WriteLineCategory logs a complete line under a category
func (l *TraceListener) WriteLineCategory(ctx context.Context, msg any, category string) error {
	if msg == nil {
		return nil
	}
	return l.log(ctx, event.LevelVerbose,
		event.F(event.KeyEvent, msg),
		event.F(event.KeyCategory, category),
	)
}

// TraceEvent logs msg at level
func (l *TraceListener) TraceEvent(ctx context.Context, level event.Level, msg string) error {
	return l.log(ctx, level,
		event.F(event.KeyEvent, msg),
		event.F(event.KeyLevel, level),
	)
}

// TraceEventf formats and logs a message at level
func (l *TraceListener) TraceEventf(ctx context.Context, level event.Level, format string, args ...any) error {
	return l.TraceEvent(ctx, level, fmt.Sprintf(format, args...))
}

// TraceData logs values at level. A single value is the event text; several
// are stored under data.0, data.1, ...
func (l *TraceListener) TraceData(ctx context.Context, level event.Level, data ...any) error {
	if len(data) == 1 {
		return l.log(ctx, level,
			event.F(event.KeyEvent, data[0]),
			event.F(event.KeyLevel, level),
		)
	}

	fields := make([]event.Field, 0, len(data)+1)
	fields = append(fields, event.F(event.KeyLevel, level))
	for i, d := range data {
		fields = append(fields, event.F(event.DataKey(i), d))
	}
	return l.log(ctx, level, fields...)
}

// TraceTransfer logs a transfer to a related activity
func (l *TraceListener) TraceTransfer(ctx context.Context, msg string, relatedActivityID string) error {
	return l.log(ctx, event.LevelTransfer,
		event.F(event.KeyEvent, msg),
		event.F(event.KeyRelatedActivityID, relatedActivityID),
		event.F(event.KeyLevel, event.LevelTransfer),
	)
}
