package legacy

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ndrwrbgs/flowtrace/internal/bridge"
	"github.com/ndrwrbgs/flowtrace/internal/event"
)

// ConsoleWriter is an io.Writer whose output becomes log events of the
// innermost open operation of one flow. Each complete line is one event; text
// after the last newline is logged with isWriteWithoutNewline set. Bytes are
// also copied to a passthrough writer, io.Discard by default.
type ConsoleWriter struct {
	ctx         context.Context
	handler     bridge.Handler
	passthrough io.Writer
}

// NewConsoleWriter binds a writer to the flow carried by ctx
func NewConsoleWriter(ctx context.Context, h bridge.Handler, passthrough io.Writer) *ConsoleWriter {
	if passthrough == nil {
		passthrough = io.Discard
	}
	return &ConsoleWriter{ctx: ctx, handler: h, passthrough: passthrough}
}

// Write logs p and copies it to the passthrough writer. A logging failure,
// such as writing with no operation open, is returned after p was copied.
func (w *ConsoleWriter) Write(p []byte) (int, error) {
	n, err := w.passthrough.Write(p)
	if err != nil {
		return n, err
	}

	rest := p
	for len(rest) > 0 {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			if err := w.handler.Log(w.ctx,
				event.F(event.KeyWriteWithoutNewline, true),
				event.F(event.KeyEvent, string(rest)),
			); err != nil {
				return n, fmt.Errorf("console write: %w", err)
			}
			break
		}

		line := bytes.TrimSuffix(rest[:i], []byte{'\r'})
		if err := w.handler.Log(w.ctx, event.F(event.KeyEvent, string(line))); err != nil {
			return n, fmt.Errorf("console write: %w", err)
		}
		rest = rest[i+1:]
	}
	return n, nil
}

// WithContext returns a writer bound to another flow, sharing the passthrough
func (w *ConsoleWriter) WithContext(ctx context.Context) *ConsoleWriter {
	return &ConsoleWriter{ctx: ctx, handler: w.handler, passthrough: w.passthrough}
}
