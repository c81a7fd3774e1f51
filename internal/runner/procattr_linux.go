//go:build linux

package runner

import (
	"os/exec"
	"syscall"
)

func shellArgs(line string) (string, []string) {
	return "sh", []string{"-lc", line}
}

// setProcGroup starts the command in its own process group. Pdeathsig makes the
// child receive SIGTERM if the server dies without stopping it.
func setProcGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.SysProcAttr.Pdeathsig = syscall.SIGTERM
}

func terminateProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}

func killProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
