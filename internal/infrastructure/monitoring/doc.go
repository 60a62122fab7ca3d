/*
Package monitoring provides metrics collection for the event pipeline.

# Overview

This package implements Prometheus-based metrics for the bridge, the sinks,
and the demo HTTP surface.

# Features

- Events emitted, by kind
- Causality violations, by reason
- Operations currently open across all flows
- Async sink drops and queue depth
- HTTP request metrics (latency, status)

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	b := bridge.New(sink, bridge.WithMetrics(metrics))

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(monitoring.Handler(reg)))
*/
package monitoring
