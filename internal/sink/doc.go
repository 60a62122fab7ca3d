/*
Package sink provides event.Sink implementations.

	Console    human readable lines, colored with lipgloss
	Zap        structured entries through a *zap.Logger
	JSONLines  one JSON object per line, optionally gzip compressed
	Async      bounded channel handoff to another sink
	Multi      fan-out
	Recorder   in-memory capture

Every sink is safe for concurrent use.
*/
package sink
