package flow

import (
	"context"
	"maps"
)

// Cell is a storage slot whose value is private to one flow.
//
// A Cell must be created with NewCell; Cells are compared by address.
type Cell[T any] struct {
	name string
}

// NewCell returns a new cell. The name only appears in panic messages.
func NewCell[T any](name string) *Cell[T] {
	return &Cell[T]{name: name}
}

// Get returns the value visible to the flow carried by ctx. It returns the
// zero value if the cell was never set in this flow or any ancestor flow, or if
// ctx carries no flow.
func (c *Cell[T]) Get(ctx context.Context) T {
	var zero T
	s := fromContext(ctx)
	if s == nil {
		return zero
	}
	v, ok := (*s.values.Load())[c]
	if !ok {
		return zero
	}
	return v.(T)
}

// Set stores v for the flow carried by ctx and for all flows forked from it
// afterwards. Set panics if ctx carries no flow.
func (c *Cell[T]) Set(ctx context.Context, v T) {
	s := fromContext(ctx)
	if s == nil {
		panic("flow: Set on cell " + c.name + " outside of a flow; wrap the context with flow.New")
	}
	for {
		old := s.values.Load()
		next := make(values, len(*old)+1)
		maps.Copy(next, *old)
		next[c] = v
		if s.values.CompareAndSwap(old, &next) {
			return
		}
	}
}
