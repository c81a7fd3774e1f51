// Package operations starts the long-running dashboard operations (dependency installs,
// deploys, emulators, package scripts) and streams their progress to the caller's live-log socket.
//
// Every operation follows the same path: validate the request, resolve the project directory
// and the registered socket, optionally switch the firebase project, then hand a job to the
// runner and acknowledge immediately. A request that fails validation never spawns anything
// and never writes to the socket.
package operations

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/moderniselife/GFM/internal/common/config"
	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/livelog"
	"github.com/moderniselife/GFM/internal/project"
	"github.com/moderniselife/GFM/internal/runner"
)

// ProjectCLI is the part of the firebase CLI the coordinator needs. *cli.Firebase satisfies it.
type ProjectCLI interface {
	CurrentProject(ctx context.Context, dir string) (string, error)
	UseProject(ctx context.Context, dir, projectID string) error
}

// ProcessTable finds and stops processes by command line.
type ProcessTable interface {
	Find(ctx context.Context, match string) ([]runner.ProcessInfo, error)
	Kill(ctx context.Context, match string, grace time.Duration) (int, error)
}

type systemProcesses struct{}

func (systemProcesses) Find(ctx context.Context, match string) ([]runner.ProcessInfo, error) {
	return runner.FindByCmdline(ctx, match)
}

func (systemProcesses) Kill(ctx context.Context, match string, grace time.Duration) (int, error) {
	return runner.KillByCmdline(ctx, match, grace)
}

// Config holds the settings operations read at run time.
type Config struct {
	DefaultDir string

	FirebaseBin string
	NpmBin      string
	BunPath     string

	PackageDirs    []string
	InstallTimeout time.Duration

	ExportDir       string
	ProcessMatch    string
	ReadyPhrases    []string
	ShutdownPhrases []string
	ReadyTimeout    time.Duration
	StopGrace       time.Duration
}

// ConfigFrom extracts the operation settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		DefaultDir:      cfg.Project.DefaultDir,
		FirebaseBin:     cfg.CLI.FirebaseBin,
		NpmBin:          cfg.CLI.NpmBin,
		BunPath:         cfg.Install.BunPath,
		PackageDirs:     cfg.Install.PackageDirs,
		InstallTimeout:  cfg.Install.TimeoutDuration(),
		ExportDir:       cfg.Emulators.ExportDir,
		ProcessMatch:    cfg.Emulators.ProcessMatch,
		ReadyPhrases:    cfg.Emulators.ReadyPhrases,
		ShutdownPhrases: cfg.Emulators.ShutdownPhrases,
		ReadyTimeout:    cfg.Emulators.ReadyTimeoutDuration(),
		StopGrace:       cfg.Deploy.CancelGraceDuration(),
	}
}

// Ack is the immediate HTTP answer to a streamed operation.
type Ack struct {
	Message string `json:"message"`
	Command string `json:"command,omitempty"`
}

// Service coordinates streamed operations.
type Service struct {
	hub     *livelog.Hub
	runner  *runner.Runner
	project ProjectCLI
	procs   ProcessTable
	cfg     Config
	logger  *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithProcessTable replaces the system process table, mainly for tests.
func WithProcessTable(p ProcessTable) Option {
	return func(s *Service) { s.procs = p }
}

// NewService creates the coordinator.
func NewService(hub *livelog.Hub, run *runner.Runner, cli ProjectCLI, cfg Config, log *logger.Logger, opts ...Option) *Service {
	if cfg.FirebaseBin == "" {
		cfg.FirebaseBin = "firebase"
	}
	if cfg.NpmBin == "" {
		cfg.NpmBin = "npm"
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "emulator_exports"
	}
	s := &Service{
		hub:     hub,
		runner:  run,
		project: cli,
		procs:   systemProcesses{},
		cfg:     cfg,
		logger:  log.WithFields(zap.String("component", "operations")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Runner exposes the runner so callers can stop every operation on shutdown.
func (s *Service) Runner() *runner.Runner { return s.runner }

// begin resolves the working directory and the client's socket.
func (s *Service) begin(dir, clientID string) (string, *livelog.Client, error) {
	resolved, err := project.ResolveDir(dir, s.cfg.DefaultDir)
	if err != nil {
		return "", nil, err
	}
	client, err := s.hub.Resolve(clientID)
	if err != nil {
		return "", nil, err
	}
	return resolved, client, nil
}

// resolveProjectID falls back to the directory's active firebase project when none was given.
func (s *Service) resolveProjectID(ctx context.Context, dir, given string) string {
	if given != "" {
		return given
	}
	current, err := s.project.CurrentProject(ctx, dir)
	if err != nil {
		s.logger.Debug("could not resolve current project", zap.String("dir", dir), zap.Error(err))
		return ""
	}
	return current
}

func (s *Service) switchProject(ctx context.Context, dir, projectID string) error {
	if projectID == "" {
		return nil
	}
	if err := s.project.UseProject(ctx, dir, projectID); err != nil {
		return apperrors.Wrap(err, "Failed to switch to project "+projectID)
	}
	return nil
}

// exitFailure turns a runner error into the user-facing failure message.
func exitFailure(prefix string, err error) error {
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%s %d", prefix, exitErr.Code)
	}
	return err
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
