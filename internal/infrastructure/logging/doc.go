// Package logging provides the process logger, built on uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// Components take a *zap.Logger through an option and default to a no-op
// logger, so libraries stay quiet unless the program wires one in. The sink
// package can also route trace events through a logger (sink.Zap).
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	b := bridge.New(s, bridge.WithLogger(logger.Logger))
package logging
