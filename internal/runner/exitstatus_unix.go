//go:build !windows

package runner

import (
	"errors"
	"os/exec"
	"syscall"
)

// exitStatus maps a Wait result to an exit code; signalled processes report 128+signal.
func exitStatus(_ *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 1
	}
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return 1
	}
	if ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ws.ExitStatus()
}
