package cli

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
	"github.com/moderniselife/GFM/internal/common/logger"
)

// Project is one entry of "firebase projects:list --json".
type Project struct {
	ProjectID     string            `json:"projectId"`
	ProjectNumber string            `json:"projectNumber"`
	DisplayName   string            `json:"displayName"`
	Name          string            `json:"name,omitempty"`
	State         string            `json:"state,omitempty"`
	Resources     map[string]string `json:"resources,omitempty"`
}

// envelope is the --json wrapper every firebase command prints.
type envelope struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// Firebase drives the firebase CLI.
type Firebase struct {
	exec    Executor
	bin     string
	timeout time.Duration
	logger  *logger.Logger
}

// NewFirebase creates a Firebase wrapper. bin defaults to "firebase".
func NewFirebase(exec Executor, bin string, timeout time.Duration, log *logger.Logger) *Firebase {
	if bin == "" {
		bin = "firebase"
	}
	return &Firebase{
		exec:    exec,
		bin:     bin,
		timeout: timeout,
		logger:  log.WithFields(zap.String("component", "firebase-cli")),
	}
}

// Bin returns the configured firebase executable.
func (f *Firebase) Bin() string { return f.bin }

func (f *Firebase) runJSON(ctx context.Context, dir string, args ...string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	res, err := f.exec.Run(ctx, dir, f.bin, append(args, "--json")...)
	var env envelope
	if res != nil && strings.TrimSpace(res.Stdout) != "" {
		if jerr := json.Unmarshal([]byte(res.Stdout), &env); jerr != nil {
			if err != nil {
				return nil, err
			}
			return nil, apperrors.External("unexpected firebase output", jerr)
		}
	}
	if env.Status == "error" {
		return nil, apperrors.Execution(env.Error, err)
	}
	if err != nil {
		return nil, err
	}
	return env.Result, nil
}

// CurrentProject returns the active project alias for dir, or "" when none is selected.
func (f *Firebase) CurrentProject(ctx context.Context, dir string) (string, error) {
	raw, err := f.runJSON(ctx, dir, "use")
	if err != nil {
		if apperrors.As(err).Code == apperrors.ErrCodeExecution {
			f.logger.Debug("no active firebase project", zap.String("dir", dir), zap.Error(err))
			return "", nil
		}
		return "", err
	}
	var project string
	if len(raw) > 0 && json.Unmarshal(raw, &project) != nil {
		return "", nil
	}
	return project, nil
}

// ListProjects returns every project the logged in account can see.
func (f *Firebase) ListProjects(ctx context.Context, dir string) ([]Project, error) {
	raw, err := f.runJSON(ctx, dir, "projects:list")
	if err != nil {
		return nil, err
	}
	projects := []Project{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &projects); err != nil {
			return nil, apperrors.External("unexpected projects:list output", err)
		}
	}
	return projects, nil
}

// UseProject makes projectID the active project for dir.
func (f *Firebase) UseProject(ctx context.Context, dir, projectID string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	_, err := f.exec.Run(ctx, dir, f.bin, "use", projectID)
	return err
}

// Login runs the interactive browser login and waits for it to finish.
func (f *Firebase) Login(ctx context.Context) error {
	_, err := f.exec.Run(ctx, "", f.bin, "login", "--reauth")
	return err
}

// LoggedIn reports whether the CLI has a stored account.
func (f *Firebase) LoggedIn(ctx context.Context) (bool, error) {
	raw, err := f.runJSON(ctx, "", "login:list")
	if err != nil {
		return false, err
	}
	var accounts []json.RawMessage
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &accounts)
	}
	return len(accounts) > 0, nil
}
