package sink

import (
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"

	"github.com/ndrwrbgs/flowtrace/internal/event"
)

// ColorProvider picks the foreground color of a console line.
type ColorProvider interface {
	Color(level event.Level, position string) lipgloss.TerminalColor
}

// ByLevel colors lines by severity. Best when output streams past a reader.
type ByLevel struct{}

func (ByLevel) Color(level event.Level, _ string) lipgloss.TerminalColor {
	switch level {
	case event.LevelCritical:
		return lipgloss.Color("9") // red
	case event.LevelError:
		return lipgloss.Color("13") // magenta
	case event.LevelWarning:
		return lipgloss.Color("11") // yellow
	case event.LevelVerbose:
		return lipgloss.Color("8") // dark gray
	case event.LevelStart, event.LevelStop:
		return lipgloss.Color("10") // green
	default:
		return lipgloss.Color("7") // gray
	}
}

// ByPosition colors lines by a hash of their position, so every line of one
// operation shares a color across runs.
type ByPosition struct{}

var positionPalette = []lipgloss.Color{"7", "12", "7", "14", "9", "13", "11", "15"}

func (ByPosition) Color(_ event.Level, position string) lipgloss.TerminalColor {
	h := fnv.New32a()
	_, _ = h.Write([]byte(position))
	return positionPalette[h.Sum32()%uint32(len(positionPalette))]
}

// NoColor leaves lines unstyled.
type NoColor struct{}

func (NoColor) Color(event.Level, string) lipgloss.TerminalColor {
	return lipgloss.NoColor{}
}

// ColorProviderByName resolves "level", "position" or "none".
func ColorProviderByName(name string) (ColorProvider, error) {
	switch strings.ToLower(name) {
	case "", "level":
		return ByLevel{}, nil
	case "position":
		return ByPosition{}, nil
	case "none", "off":
		return NoColor{}, nil
	}
	return nil, fmt.Errorf("unknown color mode %q", name)
}

// Console writes one human readable line per event:
//
//	1.2 | Span 'Fetch' starting
//	1.2 | Info | fetching Payload: {"url":"/a"}
//	1.2 | Set tag | "status":"200"
//	1.2 | Span 'Fetch' finished
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	renderer *lipgloss.Renderer
	colors   ColorProvider
	longest  atomic.Int64
}

// ConsoleOption configures a Console sink
type ConsoleOption func(*Console)

// WithColors sets the color provider
func WithColors(p ColorProvider) ConsoleOption {
	return func(c *Console) { c.colors = p }
}

// WithRenderer overrides the lipgloss renderer, e.g. to force a color profile
func WithRenderer(r *lipgloss.Renderer) ConsoleOption {
	return func(c *Console) { c.renderer = r }
}

// NewConsole creates a console sink writing to w. Colors are only emitted
// when w is a terminal.
func NewConsole(w io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{
		w:      w,
		colors: ByLevel{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.renderer == nil {
		c.renderer = lipgloss.NewRenderer(w)
	}
	return c
}

func (c *Console) Emit(e event.Event) {
	switch e.Kind {
	case event.KindStart:
		c.writeLine(e.Position, fmt.Sprintf("Span '%s' starting", e.Operation), event.LevelStart)
	case event.KindStop:
		c.writeLine(e.Position, fmt.Sprintf("Span '%s' finished", e.Operation), event.LevelStop)
	case event.KindLog:
		c.writeLine(e.Position, formatLog(e), e.Level)
	case event.KindTag:
		c.writeLine(e.Position, formatTags(e), event.LevelVerbose)
	}
}

// logReserved are the keys rendered in the line prefix rather than the payload
var logReserved = []string{
	event.KeyPosition,
	event.KeyCategory,
	event.KeyOperationName,
	event.KeyEvent,
	event.KeyWriteWithoutNewline,
	event.KeyLevel,
}

func formatLog(e event.Event) string {
	var b strings.Builder
	b.WriteString(e.Level.Short())
	b.WriteString(" | ")

	if category := e.Fields.String(event.KeyCategory); category != "" {
		b.WriteString(category)
		b.WriteString(" | ")
	}
	if text := e.Text(); text != "" {
		b.WriteString(text)
		b.WriteByte(' ')
	}
	if payload := e.Fields.Without(logReserved...); len(payload) > 0 {
		b.WriteString("Payload: ")
		b.WriteString(marshal(payload.Map(), false))
		b.WriteByte(' ')
	}
	if _, cont := e.Fields.Get(event.KeyWriteWithoutNewline); cont {
		b.WriteString("(cont...)")
	}
	return strings.TrimRight(b.String(), " ")
}

func formatTags(e event.Event) string {
	tags := e.Fields.Without(event.KeyPosition)
	if len(tags) == 1 {
		return fmt.Sprintf("Set tag | %q:%q", tags[0].Key, fmt.Sprint(tags[0].Value))
	}
	return "Set tags:\n" + marshal(tags.Map(), true)
}

func marshal(v map[string]any, indent bool) string {
	var (
		b   []byte
		err error
	)
	if indent {
		b, err = sonic.ConfigStd.MarshalIndent(v, "", "  ")
	} else {
		b, err = sonic.ConfigStd.Marshal(v)
	}
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func (c *Console) writeLine(position, message string, level event.Level) {
	width := c.widen(len(position))

	// Indent newlines
	message = strings.ReplaceAll(message, "\n", "\n\t")
	line := fmt.Sprintf("%-*s | %s", width, position, message)

	style := c.renderer.NewStyle().
		Foreground(c.colors.Color(level, position)).
		TabWidth(lipgloss.NoTabConversion)

	// Render line by line; lipgloss pads multi-line blocks to a common width.
	parts := strings.Split(line, "\n")
	for i, part := range parts {
		parts[i] = style.Render(part)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.w, strings.Join(parts, "\n")+"\n")
}

// widen records n as a position width and returns the widest seen so far.
func (c *Console) widen(n int) int {
	for {
		cur := c.longest.Load()
		if int64(n) <= cur {
			return int(cur)
		}
		if c.longest.CompareAndSwap(cur, int64(n)) {
			return n
		}
	}
}
