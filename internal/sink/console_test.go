package sink

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndrwrbgs/flowtrace/internal/event"
)

func start(pos, op string) event.Event {
	return event.Event{Kind: event.KindStart, Level: event.LevelStart, Position: pos, Operation: op,
		Fields: event.Fields{event.F(event.KeyPosition, pos), event.F(event.KeyOperationName, op)}}
}

func stop(pos, op string) event.Event {
	e := start(pos, op)
	e.Kind, e.Level = event.KindStop, event.LevelStop
	return e
}

func logAt(pos string, level event.Level, fields ...event.Field) event.Event {
	return event.Event{Kind: event.KindLog, Level: level, Position: pos,
		Fields: append(event.Fields{event.F(event.KeyPosition, pos)}, fields...)}
}

func tagAt(pos string, fields ...event.Field) event.Event {
	return event.Event{Kind: event.KindTag, Level: event.LevelInfo, Position: pos,
		Fields: append(event.Fields{event.F(event.KeyPosition, pos)}, fields...)}
}

func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
}

func TestConsoleLifecycle(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Emit(start("1", "Overall"))
	c.Emit(stop("1", "Overall"))

	assert.Equal(t, []string{
		"1 | Span 'Overall' starting",
		"1 | Span 'Overall' finished",
	}, lines(&buf))
}

func TestConsoleLog(t *testing.T) {
	tests := []struct {
		name  string
		event event.Event
		want  string
	}{
		{
			name:  "text",
			event: logAt("1", event.LevelInfo, event.F(event.KeyEvent, "Starting now")),
			want:  "1 | Info | Starting now",
		},
		{
			name: "category",
			event: logAt("1", event.LevelWarning,
				event.F(event.KeyEvent, "slow"), event.F(event.KeyCategory, "db")),
			want: "1 | Warn | db | slow",
		},
		{
			name: "payload",
			event: logAt("1", event.LevelError,
				event.F(event.KeyEvent, "failed"), event.F("b", 2), event.F("a", "x"),
				event.F(event.KeyLevel, "error")),
			want: `1 | Err  | failed Payload: {"a":"x","b":2}`,
		},
		{
			name: "partial write",
			event: logAt("1", event.LevelInfo,
				event.F(event.KeyEvent, "I am"), event.F(event.KeyWriteWithoutNewline, true)),
			want: "1 | Info | I am (cont...)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewConsole(&buf).Emit(tt.event)
			assert.Equal(t, []string{tt.want}, lines(&buf))
		})
	}
}

func TestConsoleTags(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Emit(tagAt("1", event.F("key", "value")))
	c.Emit(tagAt("1", event.F("a", 1), event.F("b", true)))

	assert.Equal(t, []string{
		`1 | Set tag | "key":"value"`,
		"1 | Set tags:",
		"\t{",
		"\t  \"a\": 1,",
		"\t  \"b\": true",
		"\t}",
	}, lines(&buf))
}

func TestConsolePadsToLongestPosition(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Emit(start("1", "A"))
	c.Emit(start("1.1.1", "B"))
	c.Emit(start("1", "C"))

	assert.Equal(t, []string{
		"1 | Span 'A' starting",
		"1.1.1 | Span 'B' starting",
		"1     | Span 'C' starting",
	}, lines(&buf))
}

func TestConsoleConcurrentLinesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Emit(logAt("1", event.LevelInfo, event.F(event.KeyEvent, "hello")))
		}()
	}
	wg.Wait()

	out := lines(&buf)
	require.Len(t, out, 50)
	for _, l := range out {
		assert.Equal(t, "1 | Info | hello", l)
	}
}

func TestColorProviders(t *testing.T) {
	assert.Equal(t, lipgloss.Color("9"), ByLevel{}.Color(event.LevelCritical, "1"))
	assert.Equal(t, lipgloss.Color("10"), ByLevel{}.Color(event.LevelStart, "1"))
	assert.Equal(t, ByPosition{}.Color(event.LevelInfo, "1.2"), ByPosition{}.Color(event.LevelError, "1.2"))

	p, err := ColorProviderByName("position")
	require.NoError(t, err)
	assert.IsType(t, ByPosition{}, p)

	_, err = ColorProviderByName("rainbow")
	assert.Error(t, err)
}
