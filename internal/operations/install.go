package operations

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/moderniselife/GFM/internal/runner"
)

// Install messages.
const (
	MsgInstallStarted   = "Installation started"
	MsgInstallSucceeded = "Dependencies installed successfully"
)

// InstallRequest starts a dependency install in every package directory of Dir.
type InstallRequest struct {
	Dir      string
	ClientID string
}

// Install runs the package manager sequentially in each configured package directory that
// holds a package.json. The first failing directory ends the operation.
func (s *Service) Install(ctx context.Context, req InstallRequest) (*Ack, error) {
	dir, client, err := s.begin(req.Dir, req.ClientID)
	if err != nil {
		return nil, err
	}

	pkgs := s.packageDirs(dir)
	line := s.installCommand()
	s.logger.Info("starting dependency install",
		zap.String("dir", dir), zap.Strings("packages", pkgs), zap.String("command", line))

	s.runner.Launch(client, runner.Job{
		ClientID: req.ClientID,
		Kind:     "install",
		Name:     "Dependency installation",
		Dir:      dir,
		Timeout:  s.cfg.InstallTimeout,
		Success:  MsgInstallSucceeded,
		Body: func(ctx context.Context, st *runner.Stream) error {
			if len(pkgs) == 0 {
				st.Info("No package directories found")
			}
			for _, sub := range pkgs {
				st.Info(fmt.Sprintf("Installing dependencies in %s...", sub))
				err := s.runner.Exec(ctx, st, runner.Command{Line: line, Dir: filepath.Join(dir, sub)})
				if err != nil {
					return exitFailure("Install process exited with code", err)
				}
			}
			return nil
		},
	})
	return &Ack{Message: MsgInstallStarted}, nil
}

// packageDirs returns the configured subdirectories of dir that contain a package.json, in order.
func (s *Service) packageDirs(dir string) []string {
	var found []string
	for _, sub := range s.cfg.PackageDirs {
		if fileExists(filepath.Join(dir, sub, "package.json")) {
			found = append(found, sub)
		}
	}
	return found
}

func (s *Service) installCommand() string {
	if s.cfg.BunPath != "" && fileExists(s.cfg.BunPath) {
		return commandLine(s.cfg.BunPath, "install")
	}
	return commandLine(s.cfg.NpmBin, "install", "--legacy-peer-deps")
}
