package sink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"

	"github.com/ndrwrbgs/flowtrace/internal/event"
)

// Record is the JSON form of an event, one per line.
type Record struct {
	Kind      string         `json:"kind"`
	Level     string         `json:"level"`
	Position  string         `json:"position"`
	Operation string         `json:"operation,omitempty"`
	Trace     string         `json:"trace"`
	Flow      string         `json:"flow"`
	Time      time.Time      `json:"time"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// NewRecord converts an event to its JSON form
func NewRecord(e event.Event) Record {
	r := Record{
		Kind:      e.Kind.String(),
		Level:     e.Level.String(),
		Position:  e.Position,
		Operation: e.Operation,
		Trace:     e.Trace.String(),
		Flow:      e.Flow.String(),
		Time:      e.Time,
	}
	if fields := e.Fields.Without(event.KeyPosition, event.KeyOperationName); len(fields) > 0 {
		r.Fields = fields.Map()
	}
	return r
}

// JSONLines writes one JSON object per event.
type JSONLines struct {
	mu     sync.Mutex
	w      io.Writer
	closer []io.Closer
	err    error
}

// NewJSONLines creates a sink writing to w
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{w: w}
}

// OpenFile creates (or truncates) path and writes JSON lines to it, gzip
// compressed when compress is set.
func OpenFile(path string, compress bool) (*JSONLines, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if !compress {
		return &JSONLines{w: f, closer: []io.Closer{f}}, nil
	}

	zw := gzip.NewWriter(f)
	// The gzip stream must be flushed before the file closes.
	return &JSONLines{w: zw, closer: []io.Closer{zw, f}}, nil
}

func (j *JSONLines) Emit(e event.Event) {
	b, err := sonic.ConfigStd.Marshal(NewRecord(e))

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.err != nil {
		return
	}
	if err != nil {
		j.err = fmt.Errorf("failed to encode event at %s: %w", e.Position, err)
		return
	}
	if _, err := j.w.Write(append(b, '\n')); err != nil {
		j.err = fmt.Errorf("failed to write event: %w", err)
	}
}

// Err returns the first encode or write error, after which events are dropped
func (j *JSONLines) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Close flushes and closes the underlying file, if the sink owns one
func (j *JSONLines) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var errs []error
	for _, c := range j.closer {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	j.closer = nil
	return errors.Join(errs...)
}
