// Package event defines the enriched event records produced by the bridge
// and the Sink contract that consumes them.
package event

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ndrwrbgs/flowtrace/internal/shared/id"
)

// Reserved field keys.
const (
	KeyPosition            = "vectorClock"
	KeyOperationName       = "OperationName"
	KeyEvent               = "event"
	KeyLevel               = "traceLevel"
	KeyWriteWithoutNewline = "isWriteWithoutNewline"
	KeyCategory            = "category"
	KeyRelatedActivityID   = "relatedActivityId"
)

// DataKey is the field key for the ith value of an indexed trace-data call.
func DataKey(i int) string {
	return "data." + strconv.Itoa(i)
}

// Kind is the type of an event.
type Kind int

const (
	KindStart Kind = iota + 1
	KindStop
	KindLog
	KindTag
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindStop:
		return "stop"
	case KindLog:
		return "log"
	case KindTag:
		return "tag"
	default:
		return "unknown"
	}
}

// Level classifies the severity of an event.
type Level int

const (
	LevelCritical Level = iota + 1
	LevelError
	LevelWarning
	LevelInfo
	LevelVerbose
	LevelStart
	LevelStop
	LevelTransfer
)

var levelNames = map[Level]string{
	LevelCritical: "critical",
	LevelError:    "error",
	LevelWarning:  "warning",
	LevelInfo:     "info",
	LevelVerbose:  "verbose",
	LevelStart:    "start",
	LevelStop:     "stop",
	LevelTransfer: "transfer",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "level(" + strconv.Itoa(int(l)) + ")"
}

// Short is the fixed-width, four character label used in console output.
func (l Level) Short() string {
	switch l {
	case LevelCritical:
		return "Crit"
	case LevelError:
		return "Err "
	case LevelWarning:
		return "Warn"
	case LevelInfo:
		return "Info"
	case LevelVerbose:
		return "Verb"
	case LevelStart:
		return "Strt"
	case LevelStop:
		return "Stop"
	case LevelTransfer:
		return "Tran"
	default:
		return "????"
	}
}

// Severe reports whether l is at least as severe as min. Lifecycle levels
// (start, stop, transfer) rank with info.
func (l Level) Severe(min Level) bool {
	return l.rank() <= min.rank()
}

func (l Level) rank() int {
	switch l {
	case LevelStart, LevelStop, LevelTransfer:
		return int(LevelInfo)
	}
	return int(l)
}

// ParseLevel parses a level name as produced by Level.String. Common aliases
// ("warn", "debug", "err", "crit") are accepted.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "crit", "fatal":
		return LevelCritical, nil
	case "error", "err":
		return LevelError, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "info", "information", "":
		return LevelInfo, nil
	case "verbose", "debug", "verb":
		return LevelVerbose, nil
	case "start":
		return LevelStart, nil
	case "stop":
		return LevelStop, nil
	case "transfer":
		return LevelTransfer, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

// Field is one key/value pair of a log or tag event.
type Field struct {
	Key   string
	Value any
}

// F is a shorthand constructor for Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Fields is an ordered field list. Keys may repeat; lookups return the first.
type Fields []Field

// Get returns the first value stored under key.
func (fs Fields) Get(key string) (any, bool) {
	for _, f := range fs {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// String returns the value under key formatted with %v, or "".
func (fs Fields) String(key string) string {
	v, ok := fs.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Map flattens the fields into a map; the first occurrence of a key wins.
func (fs Fields) Map() map[string]any {
	m := make(map[string]any, len(fs))
	for _, f := range fs {
		if _, ok := m[f.Key]; !ok {
			m[f.Key] = f.Value
		}
	}
	return m
}

// Without returns the fields whose keys are not listed.
func (fs Fields) Without(keys ...string) Fields {
	out := make(Fields, 0, len(fs))
next:
	for _, f := range fs {
		for _, k := range keys {
			if f.Key == k {
				continue next
			}
		}
		out = append(out, f)
	}
	return out
}

// Event is one entry of the ordered stream handed to a Sink.
type Event struct {
	Kind      Kind
	Level     Level
	Position  string
	Operation string // start and stop only
	Fields    Fields // always leads with KeyPosition
	Trace     id.TraceID
	Flow      id.FlowID
	Time      time.Time
}

// Text returns the free-text event field of a log event.
func (e Event) Text() string {
	return e.Fields.String(KeyEvent)
}

// Sink consumes events. Emit is called synchronously on the emitting flow
// and must be safe for concurrent use.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }
