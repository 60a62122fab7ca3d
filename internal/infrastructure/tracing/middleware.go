package tracing

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/ndrwrbgs/flowtrace/internal/flow"
	"github.com/ndrwrbgs/flowtrace/internal/span"
)

// HTTPMiddleware creates Gin middleware that runs each request in its own
// flow and span
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.FullPath()
		if name == "" {
			name = c.Request.URL.Path
		}

		s, err := tracer.start(c.Request.Context(), c.Request.Method+" "+name,
			span.WithTag("http.method", c.Request.Method),
			span.WithTag("http.url", c.Request.URL.String()),
			span.WithTag("http.host", c.Request.Host),
		)
		if err != nil {
			c.Next()
			return
		}

		c.Request = c.Request.WithContext(s.Context())
		c.Header(TraceHeader, flow.Trace(s.Context()).String())

		c.Next()

		tracer.tag(s, "http.status", strconv.Itoa(c.Writer.Status()))
		if len(c.Errors) > 0 {
			tracer.fail(s, c.Errors.Last())
		}
		tracer.finish(s)
	}
}

// GRPCUnaryInterceptor creates a gRPC unary interceptor for tracing
func GRPCUnaryInterceptor(tracer *Tracer) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		s, err := tracer.start(ctx, info.FullMethod,
			span.WithTag("rpc.system", "grpc"),
			span.WithTag("rpc.method", info.FullMethod),
		)
		if err != nil {
			return handler(ctx, req)
		}

		resp, err := handler(s.Context(), req)
		tracer.finishRPC(s, err)
		return resp, err
	}
}

// GRPCStreamInterceptor creates a gRPC stream interceptor for tracing
func GRPCStreamInterceptor(tracer *Tracer) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		s, err := tracer.start(ss.Context(), info.FullMethod,
			span.WithTag("rpc.system", "grpc"),
			span.WithTag("rpc.method", info.FullMethod),
			span.WithTag("rpc.streaming", "true"),
		)
		if err != nil {
			return handler(srv, ss)
		}

		err = handler(srv, &tracedServerStream{ServerStream: ss, ctx: s.Context()})
		tracer.finishRPC(s, err)
		return err
	}
}

// GRPCClientInterceptor creates a gRPC client interceptor that records each
// call as a span in a fork of the caller's flow
func GRPCClientInterceptor(tracer *Tracer) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		s, err := tracer.start(ctx, method,
			span.WithTag("rpc.system", "grpc"),
			span.WithTag("rpc.method", method),
			span.WithTag("span.kind", "client"),
		)
		if err != nil {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		err = invoker(s.Context(), method, req, reply, cc, opts...)
		tracer.finishRPC(s, err)
		return err
	}
}

func (t *Tracer) finishRPC(s *span.Span, err error) {
	t.tag(s, "rpc.grpc.status_code", status.Code(err).String())
	if err != nil {
		t.fail(s, err)
	}
	t.finish(s)
}

// tracedServerStream wraps grpc.ServerStream with the request's flow
type tracedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedServerStream) Context() context.Context {
	return s.ctx
}
