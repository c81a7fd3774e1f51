package operations

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/livelog"
	"github.com/moderniselife/GFM/internal/project"
	"github.com/moderniselife/GFM/internal/runner"
)

// Emulator actions.
const (
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionRestart = "restart"
)

// Emulator messages.
const (
	MsgNoEmulatorsRunning = "No emulators were running"
	MsgStoppingEmulators  = "Stopping existing emulators..."
)

// EmulatorsRequest starts, stops or restarts the emulator suite for Dir.
type EmulatorsRequest struct {
	Dir       string
	ClientID  string
	ProjectID string
	Action    string
	Services  []string
}

// RunningEmulator is an emulator process found on this machine.
type RunningEmulator struct {
	PID      int32    `json:"pid"`
	Cmdline  string   `json:"cmdline"`
	Services []string `json:"services"`
}

// BuildEmulatorCommand returns the emulators:start command line. A "hosting" service is
// replaced by "hosting:<projectId>" and moved last.
func BuildEmulatorCommand(bin string, services []string, projectID, exportDir string) (string, error) {
	only, err := emulatorOnly(services, projectID)
	if err != nil {
		return "", err
	}
	args := []string{bin, "emulators:start"}
	if len(only) > 0 {
		args = append(args, "--only", strings.Join(only, ","))
	}
	args = append(args, "--import", exportDir, "--export-on-exit", exportDir)
	return commandLine(args...), nil
}

func emulatorOnly(services []string, projectID string) ([]string, error) {
	var only []string
	hosting := false
	for _, svc := range dedupe(services) {
		if err := project.ValidateName("service", svc); err != nil {
			return nil, err
		}
		if svc == "hosting" {
			hosting = true
			continue
		}
		only = append(only, svc)
	}
	if hosting {
		if projectID != "" {
			only = append(only, "hosting:"+projectID)
		} else {
			only = append(only, "hosting")
		}
	}
	return only, nil
}

// Emulators validates the action and streams it to the client's socket.
func (s *Service) Emulators(ctx context.Context, req EmulatorsRequest) (*Ack, error) {
	switch req.Action {
	case ActionStart, ActionStop, ActionRestart:
	default:
		return nil, apperrors.Preconditionf("Invalid emulator action: %q", req.Action)
	}
	if req.ProjectID != "" {
		if err := project.ValidateProjectID(req.ProjectID); err != nil {
			return nil, err
		}
	}
	dir, client, err := s.begin(req.Dir, req.ClientID)
	if err != nil {
		return nil, err
	}

	var line string
	if req.Action != ActionStop {
		projectID := req.ProjectID
		if slices.Contains(req.Services, "hosting") {
			projectID = s.resolveProjectID(ctx, dir, projectID)
		}
		line, err = BuildEmulatorCommand(s.cfg.FirebaseBin, req.Services, projectID, filepath.Join(dir, s.cfg.ExportDir))
		if err != nil {
			return nil, err
		}
	}
	if err := s.switchProject(ctx, dir, req.ProjectID); err != nil {
		return nil, err
	}

	job := runner.Job{
		ClientID: req.ClientID,
		Kind:     "emulators",
		Name:     "Emulator " + req.Action,
		Dir:      dir,
		Success:  fmt.Sprintf("Emulators %sed successfully", req.Action),
	}
	switch req.Action {
	case ActionStop:
		job.Body = func(ctx context.Context, st *runner.Stream) error {
			n, err := s.procs.Kill(ctx, s.cfg.ProcessMatch, s.cfg.StopGrace)
			if err != nil {
				return fmt.Errorf("Failed to stop emulators: %w", err)
			}
			if n == 0 {
				st.Info(MsgNoEmulatorsRunning)
				st.Complete(MsgNoEmulatorsRunning)
				return nil
			}
			st.Log(livelog.LevelSuccess, runner.EmulatorsStopped)
			st.Complete(runner.EmulatorsStopped)
			return nil
		}
	case ActionRestart:
		job.Body = func(ctx context.Context, st *runner.Stream) error {
			n, err := s.procs.Kill(ctx, s.cfg.ProcessMatch, s.cfg.StopGrace)
			switch {
			case err != nil:
				st.Log(livelog.LevelError, "Failed to stop emulators: "+err.Error())
			case n > 0:
				st.Info(MsgStoppingEmulators)
			}
			return s.startEmulators(ctx, st, dir, line)
		}
	default:
		job.Body = func(ctx context.Context, st *runner.Stream) error {
			return s.startEmulators(ctx, st, dir, line)
		}
	}

	s.logger.Info("emulator action", zap.String("action", req.Action), zap.String("dir", dir), zap.String("command", line))
	s.runner.Launch(client, job)
	return &Ack{Message: fmt.Sprintf("Emulator %s started", req.Action)}, nil
}

func (s *Service) startEmulators(ctx context.Context, st *runner.Stream, dir, line string) error {
	st.Info("Starting emulators with command: " + line)
	stop := s.watchReadiness(st)
	defer stop()

	det := runner.EmulatorDetector(s.cfg.ReadyPhrases, s.cfg.ShutdownPhrases)
	if err := s.runner.Exec(ctx, st, runner.Command{Line: line, Dir: dir, Detector: det}); err != nil {
		return exitFailure("Emulator process exited with code", err)
	}
	return nil
}

// watchReadiness logs a warning if the emulators have not reported ready in time.
// It never ends the stream.
func (s *Service) watchReadiness(st *runner.Stream) func() {
	d := s.cfg.ReadyTimeout
	if d <= 0 {
		return func() {}
	}
	timer := time.AfterFunc(d, func() {
		if !st.Finished() {
			st.Info(fmt.Sprintf("Warning: emulators have not reported ready after %s", d))
		}
	})
	return func() { timer.Stop() }
}

// RunningEmulators lists emulator processes and the union of their --only services.
func (s *Service) RunningEmulators(ctx context.Context) ([]RunningEmulator, []string, error) {
	procs, err := s.procs.Find(ctx, s.cfg.ProcessMatch)
	if err != nil {
		return nil, nil, apperrors.Internal("Failed to list processes", err)
	}
	emulators := []RunningEmulator{}
	var services []string
	for _, p := range procs {
		only := parseOnly(p.Cmdline)
		emulators = append(emulators, RunningEmulator{PID: p.PID, Cmdline: p.Cmdline, Services: only})
		services = append(services, only...)
	}
	return emulators, dedupe(services), nil
}

// parseOnly extracts service names from an --only argument, dropping ":<target>" suffixes.
func parseOnly(cmdline string) []string {
	fields := strings.Fields(cmdline)
	var raw string
	for i, f := range fields {
		if f == "--only" && i+1 < len(fields) {
			raw = fields[i+1]
			break
		}
		if v, ok := strings.CutPrefix(f, "--only="); ok {
			raw = v
			break
		}
	}
	raw = strings.Trim(raw, `'"`)
	if raw == "" {
		return []string{}
	}
	var services []string
	for _, part := range strings.Split(raw, ",") {
		name, _, _ := strings.Cut(part, ":")
		services = append(services, name)
	}
	return dedupe(services)
}
