// Package clock implements the hierarchical clock that orders nested
// operations within and across flows.
//
// Each open operation is a Node. Opening a nested operation allocates the next
// child value of the current node; closing it makes the parent current again.
// The sequence of values from the root down is the operation's Position, e.g.
// "1.2.1". Because child counters live on the parent node and forked flows
// share their fork-point ancestors, siblings opened by concurrent flows still
// receive distinct, increasing values. That counter is the only state shared
// between flows and is updated with an atomic add.
package clock
