package sink

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ndrwrbgs/flowtrace/internal/event"
)

// Zap writes each event as a structured zap entry.
type Zap struct {
	logger *zap.Logger
}

// NewZap creates a sink that logs through logger
func NewZap(logger *zap.Logger) *Zap {
	return &Zap{logger: logger}
}

func (z *Zap) Emit(e event.Event) {
	msg := "span " + e.Kind.String()
	switch e.Kind {
	case event.KindStart:
		msg = "span started"
	case event.KindStop:
		msg = "span finished"
	case event.KindLog:
		if text := e.Text(); text != "" {
			msg = text
		}
	case event.KindTag:
		msg = "tag set"
	}

	ce := z.logger.Check(zapLevel(e.Level), msg)
	if ce == nil {
		return
	}

	fields := make([]zap.Field, 0, len(e.Fields)+4)
	fields = append(fields,
		zap.String("kind", e.Kind.String()),
		zap.String(event.KeyPosition, e.Position),
		zap.String("trace", e.Trace.String()),
		zap.String("flow", e.Flow.String()),
	)
	if e.Operation != "" {
		fields = append(fields, zap.String(event.KeyOperationName, e.Operation))
	}
	for _, f := range e.Fields.Without(event.KeyPosition, event.KeyOperationName, event.KeyEvent) {
		fields = append(fields, zap.Any(f.Key, f.Value))
	}
	ce.Write(fields...)
}

func zapLevel(l event.Level) zapcore.Level {
	switch l {
	case event.LevelCritical, event.LevelError:
		return zapcore.ErrorLevel
	case event.LevelWarning:
		return zapcore.WarnLevel
	case event.LevelVerbose:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
