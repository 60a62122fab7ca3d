/*
Package bridge turns span lifecycle notifications into an ordered stream of
position-stamped events.

# Protocol

	Activate(name)  push name, extend the clock, emit start at the new position
	Finish(name)    pop name (must be innermost), emit stop, then pop the clock
	Log(fields)     require an open operation, emit fields at its position
	SetTag(k, v)    require an open operation, emit k=v at its position

Every call runs synchronously on the flow that raised it. Per-flow state lives
in flow-local cells, so unrelated flows never contend; the one shared counter
is the child index on a fork-point node, which the clock updates atomically.

# Errors

A finish that does not name the innermost open operation, or a log or tag
with nothing open, returns a *CausalityError (matching ErrCausalityViolation).
The event is not emitted and the flow's state is unchanged. The bridge never
repairs the nesting on the caller's behalf.
*/
package bridge
