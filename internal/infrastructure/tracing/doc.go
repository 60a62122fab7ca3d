/*
Package tracing instruments HTTP and gRPC servers with flowtrace spans.

# Overview

Every request runs in its own flow: a fork of the flow carried by the
incoming context when there is one, or a new root flow otherwise. A span
named after the route or RPC method is opened in that flow and finished when
the handler returns, so requests served under an open server span become its
concurrent children.

# Usage

	tracer := tracing.New("demo", span.New(bridge), logger)

	// HTTP middleware
	router.Use(tracing.HTTPMiddleware(tracer))

	// gRPC server interceptors
	server := grpc.NewServer(
		grpc.UnaryInterceptor(tracing.GRPCUnaryInterceptor(tracer)),
		grpc.StreamInterceptor(tracing.GRPCStreamInterceptor(tracer)),
	)

	// gRPC client interceptor
	conn, err := grpc.NewClient(addr,
		grpc.WithUnaryInterceptor(tracing.GRPCClientInterceptor(tracer)),
	)

# Tags

HTTP spans carry http.method, http.url, http.host and http.status. gRPC
spans carry rpc.system, rpc.method and rpc.grpc.status_code, plus
rpc.streaming on streams and span.kind on client calls. Handler errors are
logged at error level before the span finishes.

The trace id of the request's flow is returned in the X-Trace-ID header.
*/
package tracing
