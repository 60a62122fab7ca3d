package legacy

import (
	"context"
	"log/slog"

	"github.com/ndrwrbgs/flowtrace/internal/bridge"
	"github.com/ndrwrbgs/flowtrace/internal/event"
)

// SlogHandler is a slog.Handler that logs records to the innermost open
// operation of the flow carried by the record's context. Use the *Context
// logging methods so the flow reaches the handler.
type SlogHandler struct {
	handler bridge.Handler
	level   slog.Leveler
	attrs   []event.Field
	prefix  string
}

// NewSlogHandler creates a handler reporting records at or above level. A nil
// level means slog.LevelInfo.
func NewSlogHandler(h bridge.Handler, level slog.Leveler) *SlogHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &SlogHandler{handler: h, level: level}
}

func (h *SlogHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *SlogHandler) Handle(ctx context.Context, r slog.Record) error {
	fields := make([]event.Field, 0, r.NumAttrs()+len(h.attrs)+2)
	fields = append(fields,
		event.F(event.KeyEvent, r.Message),
		event.F(event.KeyLevel, levelFromSlog(r.Level)),
	)
	fields = append(fields, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		fields = appendAttr(fields, h.prefix, a)
		return true
	})
	return h.handler.Log(ctx, fields...)
}

func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := *h
	c.attrs = append([]event.Field(nil), h.attrs...)
	for _, a := range attrs {
		c.attrs = appendAttr(c.attrs, h.prefix, a)
	}
	return &c
}

func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

func appendAttr(fields []event.Field, prefix string, a slog.Attr) []event.Field {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return fields
	}

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		if len(group) == 0 {
			return fields
		}
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range group {
			fields = appendAttr(fields, p, ga)
		}
		return fields
	}

	return append(fields, event.F(prefix+a.Key, a.Value.Any()))
}

func levelFromSlog(l slog.Level) event.Level {
	switch {
	case l >= slog.LevelError+4:
		return event.LevelCritical
	case l >= slog.LevelError:
		return event.LevelError
	case l >= slog.LevelWarn:
		return event.LevelWarning
	case l >= slog.LevelInfo:
		return event.LevelInfo
	default:
		return event.LevelVerbose
	}
}

// levelToSlog maps an event level onto the slog level scale.
func levelToSlog(l event.Level) slog.Level {
	switch l {
	case event.LevelCritical:
		return slog.LevelError + 4
	case event.LevelError:
		return slog.LevelError
	case event.LevelWarning:
		return slog.LevelWarn
	case event.LevelVerbose:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
