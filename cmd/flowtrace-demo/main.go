package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ndrwrbgs/flowtrace/internal/infrastructure/config"
	"github.com/ndrwrbgs/flowtrace/internal/infrastructure/logging"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML or TOML config file (default: environment)")
	tree := flag.Bool("tree", false, "Print the reconstructed operation tree")
	useOtel := flag.Bool("otel", false, "Drive the demo through the OpenTelemetry API")
	useZap := flag.Bool("zap", false, "Also write events through the process logger")
	jsonPath := flag.String("json", "", "Also write events as JSON lines to this file")
	colors := flag.String("colors", "", "Console colors: level, position or none")
	minLevel := flag.String("min-level", "", "Least severe level written to the console")
	pause := flag.Duration("pause", 100*time.Millisecond, "How long each span works")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *jsonPath != "" {
		cfg.Output.JSONPath = *jsonPath
	}
	if *colors != "" {
		cfg.Output.Colors = *colors
	}
	if *minLevel != "" {
		cfg.Output.MinLevel = *minLevel
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, options{
		tree:  *tree,
		otel:  *useOtel,
		zap:   *useZap,
		pause: *pause,
	}, os.Stdout, logger.Component("demo"))
	if err != nil {
		logger.Error("demo failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
