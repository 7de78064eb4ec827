package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ironsheep/image-pipeline-mcp/internal/config"
	"github.com/ironsheep/image-pipeline-mcp/internal/httpapi"
	"github.com/ironsheep/image-pipeline-mcp/internal/imaging"
	"github.com/ironsheep/image-pipeline-mcp/internal/logging"
	"github.com/ironsheep/image-pipeline-mcp/internal/pipeline"
	"github.com/ironsheep/image-pipeline-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `image-pipeline-mcp - MCP server for image conversion, compression and stylization

Usage: image-pipeline-mcp [options] [serve|http]

Modes:
  serve            MCP over stdin/stdout (default)
  http             HTTP API on server.http-addr

Options:
  --config PATH    YAML configuration file
  --version, -v    Print version information
  --help, -h       Print this help message

Environment variables:
  IMAGE_PIPELINE_CONFIG=PATH            Configuration file when --config is absent
  IMAGE_PIPELINE_<SECTION>_<KEY>=VALUE  Override any key, e.g.
                                        IMAGE_PIPELINE_PIPELINE_MAX_IN_FLIGHT=4
  IMAGE_MCP_LOG_LEVEL=debug             Enable debug logging

In serve mode the server communicates via MCP protocol over stdin/stdout.
Configure it in your MCP client (e.g., Claude Desktop).
`

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("image-pipeline-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Print(usage)
			return
		}
	}

	flags := flag.NewFlagSet("image-pipeline-mcp", flag.ExitOnError)
	flags.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	configPath := flags.String("config", "", "YAML configuration file")
	_ = flags.Parse(os.Args[1:])

	if err := run(*configPath, flags.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "image-pipeline-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, mode string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	switch mode {
	case "":
	case "serve":
		cfg.Server.Mode = "stdio"
	case "http":
		cfg.Server.Mode = "http"
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	// Logs go to stderr: stdout is for MCP protocol
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Debug("starting",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit", GitCommit),
		zap.String("mode", cfg.Server.Mode))

	filter, err := imaging.ParseFilter(cfg.Pipeline.Filter)
	if err != nil {
		return err
	}
	resampler, err := imaging.NewResampler(cfg.Pipeline.Engine, filter)
	if err != nil {
		return err
	}

	p := pipeline.New(
		pipeline.WithResampler(resampler),
		pipeline.WithMaxPixels(cfg.Pipeline.MaxPixels),
		pipeline.WithLogger(log))
	runner := pipeline.NewRunner(p, pipeline.RunnerConfig{
		MaxInFlight: cfg.Pipeline.MaxInFlight,
		MaxBatch:    cfg.Pipeline.MaxBatch,
		FailFast:    cfg.Pipeline.FailFast,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Mode == "http" {
		return serveHTTP(ctx, cfg.Server.HTTPAddr, httpapi.New(runner, Version, log).Handler(), log)
	}

	srv := server.New(server.Options{
		Pipeline:  p,
		Runner:    runner,
		OutputDir: cfg.Pipeline.OutputDir,
		Version:   Version,
		Logger:    log,
	})
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func serveHTTP(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("http listening", zap.String("addr", addr))
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info("http stopped")
	return nil
}
