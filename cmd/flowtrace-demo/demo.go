package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ndrwrbgs/flowtrace/internal/event"
	"github.com/ndrwrbgs/flowtrace/internal/flow"
	"github.com/ndrwrbgs/flowtrace/internal/infrastructure/config"
	"github.com/ndrwrbgs/flowtrace/internal/infrastructure/monitoring"
	"github.com/ndrwrbgs/flowtrace/internal/infrastructure/tracing"
	"github.com/ndrwrbgs/flowtrace/internal/legacy"
	"github.com/ndrwrbgs/flowtrace/internal/middleware"
	"github.com/ndrwrbgs/flowtrace/internal/otelbridge"
	"github.com/ndrwrbgs/flowtrace/internal/reconstruct"
	"github.com/ndrwrbgs/flowtrace/internal/sink"
	"github.com/ndrwrbgs/flowtrace/internal/span"
)

const workers = 5

type options struct {
	tree  bool
	otel  bool
	zap   bool
	pause time.Duration
}

func features(cfg *config.Config) legacy.Features {
	var f legacy.Features
	if cfg.Legacy.ConsoleOut {
		f |= legacy.FeatureConsoleOut
	}
	if cfg.Legacy.TraceWrite {
		f |= legacy.FeatureTraceWrite
	}
	if cfg.Legacy.Correlation {
		f |= legacy.FeatureCorrelationManager
	}
	if cfg.Legacy.NoTracingSetup {
		f |= legacy.FeatureNoTracingSetup
	}
	return f
}

// run wires the configured outputs, runs the demo once and, when a metrics
// address is configured, keeps serving until ctx is done.
func run(ctx context.Context, cfg *config.Config, opts options, stdout io.Writer, logger *zap.Logger) (err error) {
	var (
		reg     *prometheus.Registry
		metrics *monitoring.Metrics
	)
	if cfg.Metrics.Addr != "" {
		reg = prometheus.NewRegistry()
		metrics = monitoring.NewMetrics(reg)
	}

	colors, err := sink.ColorProviderByName(cfg.Output.Colors)
	if err != nil {
		return err
	}

	var outputs legacy.Outputs
	if cfg.Output.Console {
		outputs |= legacy.OutputConsole
	}
	if opts.zap {
		outputs |= legacy.OutputZap
	}

	setupOpts := []legacy.Option{
		legacy.WithLogger(logger),
		legacy.WithMetrics(metrics),
		legacy.WithConsoleOutput(stdout),
		legacy.WithColorProvider(colors),
		legacy.WithMinLevel(cfg.MinLevel()),
	}
	if !cfg.Legacy.ConsoleOut {
		// Untraced console writes still reach the terminal.
		setupOpts = append(setupOpts, legacy.WithPassthrough(stdout))
	}

	if cfg.Output.JSONPath != "" {
		file, openErr := sink.OpenFile(cfg.Output.JSONPath, cfg.Output.Compress)
		if openErr != nil {
			return openErr
		}
		defer func() { err = errors.Join(err, file.Close()) }()

		var out event.Sink = file
		if cfg.Output.Buffer > 0 {
			async := sink.NewAsync(file, cfg.Output.Buffer, sink.WithAsyncLogger(logger), sink.WithAsyncMetrics(metrics))
			// Deferred after file.Close, so it runs first and drains into the file.
			defer func() { err = errors.Join(err, async.Close()) }()
			out = async
		}
		setupOpts = append(setupOpts, legacy.WithSink(out))
	}

	recorder := sink.NewRecorder()
	if opts.tree {
		setupOpts = append(setupOpts, legacy.WithSink(recorder))
	}

	traceCtx, setup, err := legacy.Enable(ctx, features(cfg), outputs, setupOpts...)
	if err != nil {
		return fmt.Errorf("enable tracing: %w", err)
	}

	demo := func(ctx context.Context) error {
		if opts.otel {
			return runOtel(ctx, setup, opts.pause)
		}
		return runNative(ctx, setup, opts.pause)
	}

	if err := demo(traceCtx); err != nil {
		return err
	}

	if reg != nil {
		if err := serve(ctx, cfg.Metrics, reg, metrics, setup, demo, logger); err != nil {
			return err
		}
	}

	if opts.tree {
		forest, err := reconstruct.Build(recorder.Events())
		if err != nil {
			return fmt.Errorf("reconstruct: %w", err)
		}
		return forest.Render(stdout)
	}
	return nil
}

// runNative opens "Overall" and five concurrent children with the native
// span API.
func runNative(ctx context.Context, setup *legacy.Setup, pause time.Duration) error {
	overall, err := setup.Tracer.Start(ctx, "Overall", span.WithTag("key", "value"))
	if err != nil {
		return err
	}
	if err := overall.LogText("Starting now"); err != nil {
		return err
	}

	g := flow.NewGroup(overall.Context())
	for i := 0; i < workers; i++ {
		g.Go(func(ctx context.Context) error {
			runtime.Gosched()

			s, err := setup.Tracer.Start(ctx, fmt.Sprintf("Span %d", i),
				span.WithTag(fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i)))
			if err != nil {
				return err
			}
			logf(s.Context(), setup.Logger, "Hello from span", slog.Int("index", i))
			if err := s.Log(event.F(event.KeyEvent, "working"), event.F("index", i)); err != nil {
				return err
			}
			if err := writeStdout(s.Context(), setup, fmt.Sprintf("worker %d done\n", i)); err != nil {
				return err
			}

			time.Sleep(pause)
			if err := s.SetTag("result", true); err != nil {
				return err
			}
			return s.Finish()
		})
	}

	return errors.Join(g.Wait(), overall.Finish())
}

// runOtel is runNative written against the OpenTelemetry API.
func runOtel(ctx context.Context, setup *legacy.Setup, pause time.Duration) error {
	backing := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	defer backing.Shutdown(context.Background())

	tracer := otelbridge.NewTracerProvider(backing, setup.Bridge).Tracer("flowtrace-demo")

	ctx, overall := tracer.Start(ctx, "Overall", trace.WithAttributes(attribute.String("key", "value")))
	overall.AddEvent("Starting now")

	g := flow.NewGroup(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func(ctx context.Context) error {
			runtime.Gosched()

			ctx, s := tracer.Start(ctx, fmt.Sprintf("Span %d", i),
				trace.WithAttributes(attribute.String(fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i))))
			defer s.End()

			logf(ctx, setup.Logger, "Hello from span", slog.Int("index", i))
			s.AddEvent("working", trace.WithAttributes(attribute.Int("index", i)))

			time.Sleep(pause)
			s.SetAttributes(attribute.Bool("result", true))
			return nil
		})
	}

	err := g.Wait()
	overall.End()
	return err
}

func logf(ctx context.Context, logger *slog.Logger, msg string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func writeStdout(ctx context.Context, setup *legacy.Setup, s string) error {
	_, err := io.WriteString(setup.Stdout(ctx), s)
	return err
}

// newRouter exposes /metrics and a traced /run endpoint that repeats the
// demo inside each request's span. Requests carry no flow, so each /run is a
// new trace.
func newRouter(
	cfg config.MetricsConfig,
	reg *prometheus.Registry,
	metrics *monitoring.Metrics,
	setup *legacy.Setup,
	demo func(context.Context) error,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.CORS(cfg.AllowOrigins), monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(monitoring.Handler(reg)))

	traced := router.Group("/", tracing.HTTPMiddleware(tracing.New("flowtrace-demo", setup.Tracer, logger)))
	limit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RunRate,
		Burst:             cfg.RunBurst,
	}, setup.Bridge)
	traced.GET("/run", limit, func(c *gin.Context) {
		if err := demo(c.Request.Context()); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"trace": c.Writer.Header().Get(tracing.TraceHeader)})
	})
	return router
}

func serve(
	ctx context.Context,
	cfg config.MetricsConfig,
	reg *prometheus.Registry,
	metrics *monitoring.Metrics,
	setup *legacy.Setup,
	demo func(context.Context) error,
	logger *zap.Logger,
) error {
	gin.SetMode(gin.ReleaseMode)
	router := newRouter(cfg, reg, metrics, setup, demo, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
