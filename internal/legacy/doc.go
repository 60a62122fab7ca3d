/*
Package legacy adapts line-oriented output to the bridge.

Code that prints, writes trace lines or keeps a logical operation stack
rather than opening spans still ends up in the position tree:

	ConsoleWriter       io.Writer; one event per line
	TraceListener       Write/WriteLine/TraceEvent/TraceData/TraceTransfer
	SlogHandler         slog.Handler; records become log events
	CorrelationManager  Start/StopLogicalOperation open and close operations

Enable wires the surfaces a program needs to a new bridge and its outputs.
All of them log to the innermost open operation of the flow in the context
they are given, and fail with a causality violation when none is open.
*/
package legacy
