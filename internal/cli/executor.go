// Package cli wraps the short, synchronous firebase and gcloud invocations used by the dashboard.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
)

// Result is the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs a command to completion.
type Executor interface {
	Run(ctx context.Context, dir, name string, args ...string) (*Result, error)
}

// OSExecutor runs real processes.
type OSExecutor struct{}

// Run executes name with args in dir. A non-zero exit yields an EXECUTION error carrying
// stderr; an expired ctx yields a TIMEOUT error.
func (OSExecutor) Run(ctx context.Context, dir, name string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err == nil {
		return res, nil
	}

	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, apperrors.Timeout(fmt.Sprintf("%s timed out", line), err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, apperrors.Execution(failureMessage(line, res), err)
	}
	return res, apperrors.Execution(fmt.Sprintf("failed to run %s", line), err)
}

func failureMessage(line string, res *Result) string {
	detail := strings.TrimSpace(res.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(res.Stdout)
	}
	if detail == "" {
		return fmt.Sprintf("%s exited with code %d", line, res.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", line, res.ExitCode, detail)
}
