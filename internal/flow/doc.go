/*
Package flow provides flow-local storage for context-carried logical flows.

# Overview

Go has no goroutine-local storage, and goroutine identity is the wrong unit
anyway: a logical flow can hop goroutines, and one goroutine can serve many
flows. A flow here is a state object carried by a context.Context. Every call
chain that passes the same context participates in the same flow.

# Forking

A flow that spawns concurrent work forks:

	ctx = flow.New(ctx)

	flow.Go(ctx, func(ctx context.Context) {
		// sees a snapshot of the parent's cells
	})

	g := flow.NewGroup(ctx)
	g.Go(func(ctx context.Context) error { return work(ctx) })
	err := g.Wait()

A forked flow inherits a copy of every cell's value at fork time. Writes in
the parent or the child afterwards never cross over.

# Cells

	var current = flow.NewCell[string]("current")

	current.Set(ctx, "a")
	current.Get(ctx) // "a"

Sets replace an immutable value map through an atomic pointer, so a flow
context that is (mistakenly) shared by two goroutines never races.
*/
package flow
