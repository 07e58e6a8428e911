// Package main — cmd/corkboard/main.go
//
// corkboard server entrypoint.
//
// Startup sequence:
//  1. Parse positional launch arguments (port, board size, note size, colors).
//  2. Load the optional ambient config file (-config), defaults otherwise.
//  3. Initialise structured logger (zap).
//  4. Start the Prometheus metrics server, if enabled.
//  5. Resolve the configured validators and construct the board state.
//  6. Start the TCP acceptor.
//  7. Block on SIGINT/SIGTERM for graceful shutdown.
//
// Shutdown sequence (on SIGINT/SIGTERM):
//  1. Cancel the root context (stops the acceptor and the metrics server).
//  2. Wait for in-flight sessions to drain (bounded by shutdown_drain_timeout).
//  3. Flush the logger.
//  4. Exit 0.
//
// On launch-argument or ambient-config validation failure: exit 1
// immediately, no partial startup.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/corkboard/corkboard/internal/config"
	"github.com/corkboard/corkboard/internal/contrib"
	"github.com/corkboard/corkboard/internal/corkboard"
	"github.com/corkboard/corkboard/internal/observability"
	"github.com/corkboard/corkboard/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to ambient config YAML (optional)")
	flag.Parse()

	launch, err := config.ParseLaunch(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	ambient, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	log, err := buildLogger(ambient.LogLevel, ambient.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("corkboard starting",
		zap.Int("port", launch.Port),
		zap.Int("board_w", launch.BoardW),
		zap.Int("board_h", launch.BoardH),
		zap.Int("note_w", launch.NoteW),
		zap.Int("note_h", launch.NoteH),
		zap.Strings("colors", launch.Colors),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metrics server.Metrics
	var m *observability.Metrics
	if ambient.MetricsEnabled && ambient.MetricsAddr != "" {
		m = observability.NewMetrics()
		metrics = m
		go func() {
			if err := m.Serve(ctx, ambient.MetricsAddr); err != nil {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
		log.Info("metrics server started", zap.String("addr", ambient.MetricsAddr))
	} else {
		log.Info("metrics disabled")
	}

	validators, err := contrib.Resolve(ambient.Validators)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	boardCfg := corkboard.NewConfig(launch.BoardW, launch.BoardH, launch.NoteW, launch.NoteH, launch.Colors)
	board := corkboard.New(boardCfg, corkboard.WithLogger(log), corkboard.WithValidators(validators))

	if m != nil {
		go m.WatchBoard(ctx, board, 5*time.Second)
	}

	addr := fmt.Sprintf(":%d", launch.Port)
	srv := server.New(addr, board, log, ambient.WorkerPoolSize, metrics)

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- srv.ListenAndServe(ctx, ambient.ShutdownDrainTimeout)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
		<-serveErrCh
	case err := <-serveErrCh:
		if err != nil {
			log.Error("server exited with error", zap.Error(err))
		}
	}

	log.Info("corkboard shutdown complete")
}

// buildLogger constructs a zap.Logger with the given level and format.
func buildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}
