package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/moderniselife/GFM/internal/common/config"
	"github.com/moderniselife/GFM/internal/common/constants"
	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/common/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Load configuration
	cfg, err := config.LoadWithPath(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Tracing is a no-op unless an OTLP endpoint is configured
	if err := tracing.Init(ctx, cfg.Tracing.OTLPEndpoint); err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}

	// 4. Build components and routes
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	a := newApp(cfg, log, defaultDeps())

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// 5. Run the HTTP server and the live-log heartbeat until a signal arrives
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Golden Firebase Manager API listening", zap.String("addr", server.Addr), zap.String("version", version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	// The hub outlives gctx so cancelled operations can still deliver their terminal event.
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	g.Go(func() error {
		return a.hub.Run(hubCtx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		a.stop(shutdownCtx, stopHub)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracing shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Golden Firebase Manager API stopped")
	return nil
}
