// Package config provides 12-factor configuration management for flowtrace
// programs.
//
// Configuration is loaded from environment variables with sensible defaults,
// or from a YAML or TOML file. CLI flags can override either.
//
// Configuration Sections:
//   - Logging: process log level and output format
//   - Output: sinks for trace events (console, JSON lines, async buffer)
//   - Legacy: which legacy output surfaces to wire up
//   - Metrics: Prometheus endpoint address
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// Environment Variables:
//   - LOG_LEVEL, LOG_DEV
//   - FLOWTRACE_CONSOLE, FLOWTRACE_COLORS, FLOWTRACE_JSON_PATH,
//     FLOWTRACE_COMPRESS, FLOWTRACE_MIN_LEVEL, FLOWTRACE_BUFFER
//   - FLOWTRACE_CONSOLE_OUT, FLOWTRACE_TRACE_WRITE, FLOWTRACE_CORRELATION,
//     FLOWTRACE_NO_TRACING_SETUP
//   - METRICS_ADDR, METRICS_ALLOW_ORIGINS, METRICS_RUN_RATE, METRICS_RUN_BURST
package config
