// Package middleware provides the HTTP middleware of the demo server.
//
//   - CORS: read-only cross-origin access, exposing the trace id header
//   - RateLimit: token bucket limiting, shared or per client IP, reporting
//     rejections into the request's flow
//
// Example Usage:
//
//	router.Use(middleware.CORS(cfg.Metrics.AllowOrigins))
//	traced.GET("/run", middleware.RateLimit(middleware.DefaultRateLimitConfig(), bridge), run)
package middleware
