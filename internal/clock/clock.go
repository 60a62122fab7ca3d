package clock

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/ndrwrbgs/flowtrace/internal/flow"
)

// ErrNoPosition is returned when the clock is read or popped while no
// operation is open in the calling flow. Callers following the
// activate/finish protocol never see it.
var ErrNoPosition = errors.New("clock: no operation open in this flow")

// Node is one open operation in a flow's nesting.
type Node struct {
	parent *Node
	self   int
	// children counts the children allocated under this node. The next
	// child's value is children+1. Flows forked from the same point share
	// their parent node, so this is updated atomically.
	children atomic.Int64
}

func newNode(parent *Node) *Node {
	n := &Node{parent: parent, self: 1}
	if parent != nil {
		n.self = int(parent.children.Add(1))
	}
	return n
}

// Value is this node's index among its siblings, starting at 1.
func (n *Node) Value() int { return n.self }

// Parent returns the enclosing node, or nil at the root.
func (n *Node) Parent() *Node { return n.parent }

// NextChild is the value the next child of n will receive.
func (n *Node) NextChild() int { return int(n.children.Load()) + 1 }

// Position walks parent links from the root to n.
func (n *Node) Position() Position {
	depth := 0
	for c := n; c != nil; c = c.parent {
		depth++
	}
	p := make(Position, depth)
	for c := n; c != nil; c = c.parent {
		depth--
		p[depth] = c.self
	}
	return p
}

// Clock assigns hierarchical positions to nested operations, per flow.
type Clock struct {
	current *flow.Cell[*Node]
}

// New returns a clock whose state lives in flow-local storage. Two clocks
// never share state, even in the same flow.
func New() *Clock {
	return &Clock{current: flow.NewCell[*Node]("clock")}
}

// Extend opens a new position nested under the flow's current one. ctx must
// carry a flow.
func (c *Clock) Extend(ctx context.Context) {
	c.current.Set(ctx, newNode(c.current.Get(ctx)))
}

// Current returns the position of the innermost open operation.
func (c *Clock) Current(ctx context.Context) (Position, error) {
	n := c.current.Get(ctx)
	if n == nil {
		return nil, ErrNoPosition
	}
	return n.Position(), nil
}

// Node returns the flow's current node, or nil.
func (c *Clock) Node(ctx context.Context) *Node {
	return c.current.Get(ctx)
}

// Pop closes the innermost open position. The parent's child counter is left
// as is, so the next Extend yields the following sibling.
func (c *Clock) Pop(ctx context.Context) error {
	n := c.current.Get(ctx)
	if n == nil {
		return ErrNoPosition
	}
	c.current.Set(ctx, n.parent)
	return nil
}
