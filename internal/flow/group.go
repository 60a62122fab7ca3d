package flow

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Group runs tasks in flows forked from a common parent flow. It has the
// semantics of errgroup.Group with a derived context: the first task to fail
// cancels the others.
type Group struct {
	g   *errgroup.Group
	ctx context.Context
}

// NewGroup returns a group whose tasks fork from the flow carried by ctx.
func NewGroup(ctx context.Context) *Group {
	g, gctx := errgroup.WithContext(ctx)
	return &Group{g: g, ctx: gctx}
}

// Go runs fn in a new flow. The fork is taken when Go is called, not when the
// goroutine is scheduled.
func (g *Group) Go(fn func(ctx context.Context) error) {
	child := Fork(g.ctx)
	g.g.Go(func() error {
		return fn(child)
	})
}

// SetLimit limits the number of tasks running at once.
func (g *Group) SetLimit(n int) {
	g.g.SetLimit(n)
}

// Wait blocks until all tasks have returned and reports the first error.
func (g *Group) Wait() error {
	return g.g.Wait()
}
