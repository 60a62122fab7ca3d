package flow

import (
	"context"
	"sync/atomic"

	"github.com/ndrwrbgs/flowtrace/internal/shared/id"
)

// values is never mutated after it has been published through state.values.
type values map[any]any

// state is the per-flow storage carried by a context.
type state struct {
	id     id.FlowID
	trace  id.TraceID
	parent id.FlowID
	values atomic.Pointer[values]
}

type contextKey struct{}

var stateKey contextKey

func newState(parent *state) *state {
	s := &state{id: id.NewFlowID()}
	if parent == nil {
		s.trace = id.TraceOf(s.id)
		s.values.Store(&values{})
		return s
	}
	s.trace = parent.trace
	s.parent = parent.id
	// Sharing the map is a copy: neither side ever writes to it in place.
	s.values.Store(parent.values.Load())
	return s
}

func fromContext(ctx context.Context) *state {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(stateKey).(*state)
	return s
}

// New starts a new root flow. Nothing is inherited from any flow already
// carried by ctx.
func New(ctx context.Context) context.Context {
	return context.WithValue(ctx, stateKey, newState(nil))
}

// Fork starts a child flow that sees a snapshot of the calling flow's cells.
// Writes made by either flow afterwards are invisible to the other. If ctx
// carries no flow, Fork behaves like New.
func Fork(ctx context.Context) context.Context {
	return context.WithValue(ctx, stateKey, newState(fromContext(ctx)))
}

// Go runs fn on a new goroutine in a flow forked from ctx. The fork happens
// before Go returns, so the child observes the parent's cells as they were at
// the call site.
func Go(ctx context.Context, fn func(ctx context.Context)) {
	child := Fork(ctx)
	go fn(child)
}

// Active reports whether ctx carries a flow.
func Active(ctx context.Context) bool {
	return fromContext(ctx) != nil
}

// ID returns the identifier of the flow carried by ctx, or "" if none.
func ID(ctx context.Context) id.FlowID {
	if s := fromContext(ctx); s != nil {
		return s.id
	}
	return ""
}

// Parent returns the identifier of the flow ctx's flow was forked from, or ""
// for a root flow.
func Parent(ctx context.Context) id.FlowID {
	if s := fromContext(ctx); s != nil {
		return s.parent
	}
	return ""
}

// Trace returns the identifier shared by a root flow and all of its forks.
func Trace(ctx context.Context) id.TraceID {
	if s := fromContext(ctx); s != nil {
		return s.trace
	}
	return ""
}
