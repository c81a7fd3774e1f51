package operations

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/project"
	"github.com/moderniselife/GFM/internal/runner"
)

// Deploy messages.
const (
	MsgDeployStarted   = "Deployment started"
	MsgDeploySucceeded = "Deployment completed successfully"
	MsgDeployCancelled = "Deployment cancellation requested"
)

// deployOrder fixes the position of the well-known deploy types in --only.
// Any other selected keyword follows in lexical order.
var deployOrder = []string{"hosting", "functions", "storage", "firestore", "rules"}

// DeployRequest describes one firebase deploy.
type DeployRequest struct {
	Dir       string
	ClientID  string
	ProjectID string
	Options   map[string]bool
	Targets   map[string][]string
}

// BuildDeployCommand returns the firebase deploy command line. Unless options["all"] is set,
// a type is deployed when its option is true or it has targets: hosting and functions are
// expanded per target, everything else is passed bare.
func BuildDeployCommand(bin, projectID string, options map[string]bool, targets map[string][]string) (string, error) {
	args := []string{bin, "deploy"}
	if options["all"] {
		return commandLine(args...), nil
	}
	only, err := deployOnly(projectID, options, targets)
	if err != nil {
		return "", err
	}
	if len(only) > 0 {
		args = append(args, "--only", strings.Join(only, ","))
	}
	return commandLine(args...), nil
}

func deployOnly(projectID string, options map[string]bool, targets map[string][]string) ([]string, error) {
	selected := make(map[string]bool)
	for typ, on := range options {
		if on && typ != "all" {
			selected[typ] = true
		}
	}
	for typ, names := range targets {
		if len(dedupe(names)) > 0 {
			selected[typ] = true
		}
	}

	known := make(map[string]bool, len(deployOrder))
	for _, typ := range deployOrder {
		known[typ] = true
	}
	var extra []string
	for typ := range selected {
		if known[typ] {
			continue
		}
		if err := project.ValidateName("deploy type", typ); err != nil {
			return nil, err
		}
		extra = append(extra, typ)
	}
	sort.Strings(extra)

	var only []string
	for _, typ := range append(append([]string{}, deployOrder...), extra...) {
		if !selected[typ] {
			continue
		}
		names := dedupe(targets[typ])
		for _, name := range names {
			if err := project.ValidateName(typ+" target", name); err != nil {
				return nil, err
			}
		}
		switch typ {
		case "hosting":
			if len(names) == 0 {
				if projectID != "" {
					only = append(only, "hosting:"+projectID)
				} else {
					only = append(only, "hosting")
				}
			}
			for _, name := range names {
				only = append(only, "hosting:"+name)
			}
		case "functions":
			if len(names) == 0 {
				only = append(only, "functions")
			}
			for _, name := range names {
				only = append(only, "functions:"+name)
			}
		default:
			only = append(only, typ)
		}
	}
	return only, nil
}

// Deploy switches to the requested project and streams "firebase deploy".
func (s *Service) Deploy(ctx context.Context, req DeployRequest) (*Ack, error) {
	if req.ProjectID != "" {
		if err := project.ValidateProjectID(req.ProjectID); err != nil {
			return nil, err
		}
	}
	dir, client, err := s.begin(req.Dir, req.ClientID)
	if err != nil {
		return nil, err
	}

	projectID := s.resolveProjectID(ctx, dir, req.ProjectID)
	line, err := BuildDeployCommand(s.cfg.FirebaseBin, projectID, req.Options, req.Targets)
	if err != nil {
		return nil, err
	}
	if err := s.switchProject(ctx, dir, req.ProjectID); err != nil {
		return nil, err
	}

	s.logger.Info("starting deploy", zap.String("dir", dir), zap.String("command", line))
	s.runner.Launch(client, runner.Job{
		ClientID: req.ClientID,
		Kind:     "deploy",
		Name:     "Deployment",
		Dir:      dir,
		Success:  MsgDeploySucceeded,
		Body: func(ctx context.Context, st *runner.Stream) error {
			if err := s.runner.Exec(ctx, st, runner.Command{Line: line, Dir: dir}); err != nil {
				return exitFailure("Deployment failed with code", err)
			}
			return nil
		},
	})
	return &Ack{Message: MsgDeployStarted, Command: line}, nil
}

// CancelDeploy stops the operation running for clientID.
func (s *Service) CancelDeploy(clientID string) (*Ack, error) {
	if clientID == "" {
		return nil, apperrors.Precondition("clientId is required")
	}
	if !s.runner.Cancel(clientID) {
		return nil, apperrors.NotFound("No running deployment for client " + clientID)
	}
	return &Ack{Message: MsgDeployCancelled}, nil
}
