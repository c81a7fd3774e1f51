package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moderniselife/GFM/internal/admin"
	"github.com/moderniselife/GFM/internal/analytics"
	"github.com/moderniselife/GFM/internal/cli"
	"github.com/moderniselife/GFM/internal/common/config"
	"github.com/moderniselife/GFM/internal/common/httpmw"
	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/console"
	consoleapi "github.com/moderniselife/GFM/internal/console/api"
	"github.com/moderniselife/GFM/internal/livelog"
	"github.com/moderniselife/GFM/internal/operations"
	opsapi "github.com/moderniselife/GFM/internal/operations/api"
	"github.com/moderniselife/GFM/internal/runner"
	"github.com/moderniselife/GFM/internal/secrets"
	"github.com/moderniselife/GFM/internal/settings"
)

// app holds the long-lived components of a running server.
type app struct {
	hub    *livelog.Hub
	runner *runner.Runner
	router *gin.Engine
}

// deps lets tests swap the process boundary.
type deps struct {
	executor cli.Executor
	secrets  secrets.Dialer
	runOpts  []runner.Option
	opsOpts  []operations.Option
}

func defaultDeps() deps {
	return deps{
		executor: cli.OSExecutor{},
		secrets:  secrets.DialSecretManager(),
	}
}

func newApp(cfg *config.Config, log *logger.Logger, d deps) *app {
	hub := livelog.NewHub(cfg.LiveLog.PingIntervalDuration(), log)
	run := runner.New(log, append([]runner.Option{runner.WithStopGrace(cfg.Deploy.CancelGraceDuration())}, d.runOpts...)...)

	firebaseCLI := cli.NewFirebase(d.executor, cfg.CLI.FirebaseBin, cfg.CLI.QueryTimeoutDuration(), log)
	gcloudCLI := cli.NewGcloud(d.executor, cfg.CLI.GcloudBin, cfg.CLI.QueryTimeoutDuration(), log)
	ops := operations.NewService(hub, run, firebaseCLI, operations.ConfigFrom(cfg), log, d.opsOpts...)

	cache := settings.NewCredentialCache()
	store := settings.NewStore(cache, log)
	creds := settings.NewCredentials(cache, cfg.Project.DefaultDir)
	if dir := cfg.Project.DefaultDir; dir != "" {
		log.Info("credential cache warmed", zap.String("dir", dir), zap.Int("keys", store.Warm(dir)))
	}

	sessions := admin.NewManager(creds, cfg.Admin, log)
	consoleSvc := console.NewService(sessions.Console(), log)
	analyticsSvc := analytics.NewService(sessions.Analytics(), store, cfg.Project.DefaultDir, log)
	secretsSvc := secrets.NewService(d.secrets, secrets.Config{
		DefaultDir:    cfg.Project.DefaultDir,
		AccessTimeout: cfg.Secrets.AccessTimeoutDuration(),
		CreateTimeout: cfg.Secrets.CreateTimeoutDuration(),
	}, log)

	router := gin.New()
	router.Use(
		httpmw.Recovery(log),
		httpmw.RequestID(),
		httpmw.OtelTracing("gfm"),
		httpmw.RequestLogger(log),
		httpmw.CORS(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"version":    version,
			"websockets": hub.Len(),
		})
	})
	livelog.NewHandler(hub, log).RegisterRoutes(router, cfg.LiveLog.Path)

	api := router.Group("/api")
	cli.NewHandlers(firebaseCLI, gcloudCLI, cfg.Project.DefaultDir, log).RegisterRoutes(api)
	opsapi.SetupRoutes(api, ops, log)
	consoleapi.SetupRoutes(api, consoleSvc, log)
	settings.SetupRoutes(api, settings.NewHandler(store, creds, cfg.Project.DefaultDir, log))
	analytics.SetupRoutes(api, analyticsSvc)
	secrets.SetupRoutes(api, secretsSvc)

	return &app{hub: hub, runner: run, router: router}
}

// stop cancels running operations and waits for their terminal events before stopHub
// closes the remaining sockets.
func (a *app) stop(ctx context.Context, stopHub context.CancelFunc) {
	a.runner.StopAll(ctx)
	stopHub()
}
