// Package reconstruct rebuilds operation trees from a recorded event stream.
//
// Events may arrive interleaved across flows. Positions, not arrival order,
// determine the nesting and the sibling order of the rebuilt trees.
package reconstruct

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/ndrwrbgs/flowtrace/internal/clock"
	"github.com/ndrwrbgs/flowtrace/internal/event"
	"github.com/ndrwrbgs/flowtrace/internal/shared/id"
)

var (
	// ErrDuplicateStart: a start at a position whose operation is still open.
	ErrDuplicateStart = errors.New("duplicate start")
	// ErrUnmatchedStop: a stop with no open operation at its position.
	ErrUnmatchedStop = errors.New("stop without start")
	// ErrOrphan: an event whose operation, or parent operation, never started.
	ErrOrphan = errors.New("orphaned event")
)

// Node is one operation of a rebuilt tree.
type Node struct {
	Operation string
	Position  clock.Position
	Start     event.Event
	Stop      *event.Event  // nil while the operation is open
	Events    []event.Event // logs and tags, in arrival order
	Children  []*Node       // ordered by sibling index
}

// Open reports whether the operation never finished.
func (n *Node) Open() bool { return n.Stop == nil }

// Tree is the nesting of one root operation.
type Tree struct {
	Trace id.TraceID
	Root  *Node
}

// Forest holds every rebuilt tree in order of first appearance.
type Forest struct {
	Trees []*Tree
}

type traceState struct {
	nodes map[string]*Node // latest occurrence of each position
}

// Build arranges events into trees. Positions repeat across root flows, so
// events are grouped by their Trace first. Within a trace a position may be
// reused once its previous occupant has finished (a flow opening a second
// root operation); the new occurrence replaces the old one for later lookups.
func Build(events []event.Event) (*Forest, error) {
	forest := &Forest{}
	traces := make(map[id.TraceID]*traceState)

	for i, e := range events {
		ts, ok := traces[e.Trace]
		if !ok {
			ts = &traceState{nodes: make(map[string]*Node)}
			traces[e.Trace] = ts
		}

		pos, err := clock.ParsePosition(e.Position)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}

		switch e.Kind {
		case event.KindStart:
			if prev, ok := ts.nodes[e.Position]; ok && prev.Open() {
				return nil, fmt.Errorf("event %d: %w: %s at %s in %s", i, ErrDuplicateStart, e.Operation, e.Position, e.Trace)
			}
			n := &Node{Operation: e.Operation, Position: pos, Start: e}

			if parentPos := pos.Parent(); parentPos == nil {
				forest.Trees = append(forest.Trees, &Tree{Trace: e.Trace, Root: n})
			} else {
				parent, ok := ts.nodes[parentPos.String()]
				if !ok {
					return nil, fmt.Errorf("event %d: %w: start of %s at %s has no parent", i, ErrOrphan, e.Operation, e.Position)
				}
				parent.Children = append(parent.Children, n)
			}
			ts.nodes[e.Position] = n

		case event.KindStop:
			n, ok := ts.nodes[e.Position]
			if !ok || !n.Open() {
				return nil, fmt.Errorf("event %d: %w: %s at %s", i, ErrUnmatchedStop, e.Operation, e.Position)
			}
			if e.Operation != "" && e.Operation != n.Operation {
				return nil, fmt.Errorf("event %d: %w: stop of %s at %s, which started %s", i, ErrUnmatchedStop, e.Operation, e.Position, n.Operation)
			}
			stop := e
			n.Stop = &stop

		default:
			n, ok := ts.nodes[e.Position]
			if !ok {
				return nil, fmt.Errorf("event %d: %w: %s at %s", i, ErrOrphan, e.Kind, e.Position)
			}
			n.Events = append(n.Events, e)
		}
	}

	for _, t := range forest.Trees {
		sortChildren(t.Root)
	}
	return forest, nil
}

func sortChildren(n *Node) {
	slices.SortStableFunc(n.Children, func(a, b *Node) int {
		return clock.Compare(a.Position, b.Position)
	})
	for _, c := range n.Children {
		sortChildren(c)
	}
}

// Walk visits every node in pre-order, tree by tree. Returning false from fn
// skips the node's children.
func (f *Forest) Walk(fn func(t *Tree, n *Node, depth int) bool) {
	for _, t := range f.Trees {
		walk(t, t.Root, 0, fn)
	}
}

func walk(t *Tree, n *Node, depth int, fn func(*Tree, *Node, int) bool) {
	if !fn(t, n, depth) {
		return
	}
	for _, c := range n.Children {
		walk(t, c, depth+1, fn)
	}
}

// Positions lists every node's position in pre-order.
func (f *Forest) Positions() []string {
	var out []string
	f.Walk(func(_ *Tree, n *Node, _ int) bool {
		out = append(out, n.Position.String())
		return true
	})
	return out
}

// Render writes an indented outline of the forest.
func (f *Forest) Render(w io.Writer) error {
	var b strings.Builder
	var last id.TraceID
	f.Walk(func(t *Tree, n *Node, depth int) bool {
		if depth == 0 && t.Trace != last {
			fmt.Fprintf(&b, "%s\n", t.Trace)
			last = t.Trace
		}
		indent := strings.Repeat("  ", depth+1)
		fmt.Fprintf(&b, "%s%s %s", indent, n.Position, n.Operation)
		if n.Open() {
			b.WriteString(" (open)")
		} else {
			fmt.Fprintf(&b, " (%s)", n.Stop.Time.Sub(n.Start.Time))
		}
		b.WriteByte('\n')
		for _, e := range n.Events {
			fmt.Fprintf(&b, "%s  - %s\n", indent, describe(e))
		}
		return true
	})
	_, err := io.WriteString(w, b.String())
	return err
}

func describe(e event.Event) string {
	fields := e.Fields.Without(event.KeyPosition, event.KeyEvent, event.KeyLevel)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", f.Key, f.Value))
	}

	switch e.Kind {
	case event.KindTag:
		return "tag " + strings.Join(parts, " ")
	default:
		s := e.Level.String()
		if text := e.Text(); text != "" {
			s += " " + text
		}
		if len(parts) > 0 {
			s += " " + strings.Join(parts, " ")
		}
		return s
	}
}
