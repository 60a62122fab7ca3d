// Package opstack tracks the operations open in each flow.
package opstack

import (
	"context"
	"errors"
	"fmt"

	"github.com/ndrwrbgs/flowtrace/internal/flow"
)

// ErrEmpty is returned when no operation is open in the calling flow.
var ErrEmpty = errors.New("opstack: no operation open")

// MismatchError reports a pop naming an operation other than the innermost.
type MismatchError struct {
	Expected string // the name the caller tried to close
	Top      string // the innermost open operation
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("opstack: finishing %q but the innermost open operation is %q", e.Expected, e.Top)
}

// frame is immutable. Pushing links a new frame above the current one, so a
// flow forked before the push keeps pointing at the frame it inherited.
type frame struct {
	name  string
	below *frame
	depth int
}

// Stack is a per-flow LIFO of open operation names.
type Stack struct {
	top *flow.Cell[*frame]
}

// New returns an empty stack. ctx passed to its methods must carry a flow for
// Push and Pop.
func New() *Stack {
	return &Stack{top: flow.NewCell[*frame]("opstack")}
}

// Push opens name on top of the flow's stack.
func (s *Stack) Push(ctx context.Context, name string) {
	top := s.top.Get(ctx)
	f := &frame{name: name, below: top, depth: 1}
	if top != nil {
		f.depth = top.depth + 1
	}
	s.top.Set(ctx, f)
}

// Pop closes the innermost operation if it is named expected. On mismatch the
// stack is left unchanged.
func (s *Stack) Pop(ctx context.Context, expected string) (string, error) {
	top := s.top.Get(ctx)
	if top == nil {
		return "", ErrEmpty
	}
	if top.name != expected {
		return "", &MismatchError{Expected: expected, Top: top.name}
	}
	s.top.Set(ctx, top.below)
	return top.name, nil
}

// Peek returns the innermost open operation.
func (s *Stack) Peek(ctx context.Context) (string, error) {
	top := s.top.Get(ctx)
	if top == nil {
		return "", ErrEmpty
	}
	return top.name, nil
}

// Depth returns the number of open operations.
func (s *Stack) Depth(ctx context.Context) int {
	if top := s.top.Get(ctx); top != nil {
		return top.depth
	}
	return 0
}

// Names lists the open operations, outermost first.
func (s *Stack) Names(ctx context.Context) []string {
	top := s.top.Get(ctx)
	if top == nil {
		return nil
	}
	names := make([]string, top.depth)
	for f := top; f != nil; f = f.below {
		names[f.depth-1] = f.name
	}
	return names
}
