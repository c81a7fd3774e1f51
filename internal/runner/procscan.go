package runner

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessInfo describes a process found by a command line scan.
type ProcessInfo struct {
	PID     int32  `json:"pid"`
	Cmdline string `json:"cmdline"`
}

// FindByCmdline lists processes whose command line contains match, excluding this server.
func FindByCmdline(ctx context.Context, match string) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	self := int32(os.Getpid())

	var found []ProcessInfo
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil || !strings.Contains(cmdline, match) {
			continue
		}
		found = append(found, ProcessInfo{PID: p.Pid, Cmdline: cmdline})
	}
	return found, nil
}

// KillByCmdline terminates every process whose command line contains match, force-killing
// any that survive grace. It returns how many processes were signalled.
func KillByCmdline(ctx context.Context, match string, grace time.Duration) (int, error) {
	found, err := FindByCmdline(ctx, match)
	if err != nil {
		return 0, err
	}

	var signalled []*process.Process
	for _, info := range found {
		p, err := process.NewProcessWithContext(ctx, info.PID)
		if err != nil {
			continue
		}
		if err := p.TerminateWithContext(ctx); err != nil {
			continue
		}
		signalled = append(signalled, p)
	}
	if len(signalled) == 0 {
		return 0, nil
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !anyRunning(ctx, signalled) {
			return len(signalled), nil
		}
		select {
		case <-ctx.Done():
			return len(signalled), ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	for _, p := range signalled {
		if running, _ := p.IsRunningWithContext(ctx); running {
			_ = p.KillWithContext(ctx)
		}
	}
	return len(signalled), nil
}

func anyRunning(ctx context.Context, procs []*process.Process) bool {
	for _, p := range procs {
		if running, _ := p.IsRunningWithContext(ctx); running {
			if st, err := p.StatusWithContext(ctx); err == nil && len(st) > 0 && st[0] == process.Zombie {
				continue
			}
			return true
		}
	}
	return false
}
