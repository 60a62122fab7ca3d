/*
Command flowtrace-demo runs a small concurrent workload and traces it.

An "Overall" span tagged key=value logs "Starting now", then five forked
flows each open "Span i" tagged ki=vi, log through slog and the span, work
for -pause and tag result=true. Every event is written to the console with
its position in the operation tree:

	1     | Span 'Overall' starting
	1     | Set tag | "key":"value"
	1.3   | Span 'Span 2' starting

Usage:

	flowtrace-demo [-config file] [-tree] [-otel] [-zap] [-json path]
	               [-colors level|position|none] [-min-level level]

Configuration is read from the environment (see package config) or from
-config; flags override both. With -tree the operation tree rebuilt from the
event stream is printed after the run. When METRICS_ADDR is set the demo
keeps running and serves Prometheus metrics on /metrics and a traced rerun
of the workload on /run until interrupted.
*/
package main
