// Package runner spawns shell commands for long-running operations and relays their
// output to a live-log stream.
//
// Each command runs in its own process group so cancellation, timeouts and shutdown
// reach every child it started. Output is relayed per read chunk: stdout at info level,
// stderr at error level, whitespace-trimmed, empty chunks dropped.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moderniselife/GFM/internal/common/constants"
	"github.com/moderniselife/GFM/internal/common/logger"
	"github.com/moderniselife/GFM/internal/common/tracing"
	"github.com/moderniselife/GFM/internal/livelog"
)

// MsgCancelled is the terminal message of a cancelled operation.
const MsgCancelled = "Operation cancelled"

// CommandFactory builds the process for a shell command line.
type CommandFactory func(ctx context.Context, line string) *exec.Cmd

// ShellCommand runs line through the platform shell.
func ShellCommand(_ context.Context, line string) *exec.Cmd {
	name, args := shellArgs(line)
	return exec.Command(name, args...)
}

// Command describes one process to run.
type Command struct {
	Line     string
	Dir      string
	Env      map[string]string
	Detector CompletionDetector
}

// ExitError reports a non-zero exit status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exited with code %d", e.Code)
}

// ExitCode extracts the exit code carried by err: 0 for nil, -1 when unknown.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

// Job is a unit of streamed work bound to one live-log client.
type Job struct {
	ClientID string
	Kind     string // install, deploy, emulators, script
	Name     string // human-readable, used in timeout messages
	Dir      string
	Timeout  time.Duration
	// Success is sent as the complete message when Body returns nil without finishing the stream.
	Success string
	Body    func(ctx context.Context, st *Stream) error
}

type job struct {
	id        string
	clientID  string
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}
}

// Runner executes jobs and tracks them by client ID for cancellation.
type Runner struct {
	logger  *logger.Logger
	factory CommandFactory
	grace   time.Duration

	mu   sync.Mutex
	jobs map[string]*job
}

// Option configures a Runner.
type Option func(*Runner)

// WithCommandFactory overrides how processes are built.
func WithCommandFactory(f CommandFactory) Option {
	return func(r *Runner) { r.factory = f }
}

// WithStopGrace sets the delay between SIGTERM and SIGKILL.
func WithStopGrace(d time.Duration) Option {
	return func(r *Runner) { r.grace = d }
}

// New creates a Runner.
func New(log *logger.Logger, opts ...Option) *Runner {
	r := &Runner{
		logger:  log.WithFields(zap.String("component", "runner")),
		factory: ShellCommand,
		grace:   constants.StopGracePeriod,
		jobs:    make(map[string]*job),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Launch starts j in the background and returns immediately. The sink receives exactly
// one terminal event: the one Body produced, else an error derived from Body's error,
// cancellation or timeout, else a complete event carrying j.Success.
func (r *Runner) Launch(sink Sink, j Job) {
	log := r.logger.WithClientID(j.ClientID).WithOperation(j.Kind)
	st := NewStream(sink, log)

	ctx, cancel := context.WithCancel(context.Background())
	if j.Timeout > 0 {
		ctx, cancel = withTimeout(ctx, cancel, j.Timeout)
	}
	tracked := &job{id: uuid.NewString(), clientID: j.ClientID, cancel: cancel, done: make(chan struct{})}
	r.track(tracked)

	go func() {
		defer close(tracked.done)
		defer r.untrack(tracked)
		defer cancel()

		opCtx, span := tracing.TraceOperation(ctx, j.Kind, j.ClientID, j.Dir)
		opCtx = context.WithValue(opCtx, logger.OperationIDKey, tracked.id)

		log.Info("operation started", zap.String("operation_id", tracked.id), zap.String("dir", j.Dir))
		err := j.Body(opCtx, st)

		switch {
		case tracked.cancelled.Load():
			st.Fail(MsgCancelled)
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			st.Fail(fmt.Sprintf("%s timed out after %s", j.Name, j.Timeout))
		case err != nil:
			st.Fail(err.Error())
		default:
			st.Complete(j.Success)
		}
		tracing.EndOperation(span, ExitCode(err), err)
		log.Info("operation finished", zap.String("operation_id", tracked.id), zap.Error(err))
	}()
}

func withTimeout(parent context.Context, cancelParent context.CancelFunc, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, d)
	return ctx, func() {
		cancel()
		cancelParent()
	}
}

func (r *Runner) track(j *job) {
	if j.clientID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[j.clientID]; ok {
		r.logger.Warn("client already has a running operation", zap.String("client_id", j.clientID))
	}
	r.jobs[j.clientID] = j
}

func (r *Runner) untrack(j *job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.jobs[j.clientID] == j {
		delete(r.jobs, j.clientID)
	}
}

// Running reports whether clientID has an operation in flight.
func (r *Runner) Running(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[clientID]
	return ok
}

// Cancel stops the operation running for clientID. It returns false if none is running.
func (r *Runner) Cancel(clientID string) bool {
	r.mu.Lock()
	j, ok := r.jobs[clientID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	j.cancelled.Store(true)
	j.cancel()
	r.logger.Info("operation cancel requested", zap.String("client_id", clientID))
	return true
}

// StopAll cancels every tracked operation and waits for them to wind down or ctx to expire.
func (r *Runner) StopAll(ctx context.Context) {
	r.mu.Lock()
	jobs := make([]*job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.Unlock()

	for _, j := range jobs {
		j.cancelled.Store(true)
		j.cancel()
	}
	for _, j := range jobs {
		select {
		case <-j.done:
		case <-ctx.Done():
			return
		}
	}
}

// Exec runs cmd to completion, relaying its output to st. A non-zero exit is reported
// as *ExitError. When ctx ends first the process group is terminated.
func (r *Runner) Exec(ctx context.Context, st *Stream, cmd Command) error {
	proc := r.factory(ctx, cmd.Line)
	if proc.Dir == "" {
		proc.Dir = cmd.Dir
	}
	proc.Env = mergeEnv(proc.Env, cmd.Env)
	setProcGroup(proc)

	stdout, err := proc.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to attach stdout: %w", err)
	}
	stderr, err := proc.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to attach stderr: %w", err)
	}

	log := r.logger.WithContext(ctx)
	log.Debug("spawning process", zap.String("command", cmd.Line), zap.String("dir", proc.Dir))
	if err := proc.Start(); err != nil {
		return fmt.Errorf("failed to start %q: %w", cmd.Line, err)
	}

	exited := make(chan struct{})
	go r.watch(ctx, proc, exited)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.relay(st, stdout, livelog.LevelInfo, cmd.Detector)
	}()
	go func() {
		defer wg.Done()
		r.relay(st, stderr, livelog.LevelError, nil)
	}()
	wg.Wait()

	waitErr := proc.Wait()
	close(exited)

	code := exitStatus(proc, waitErr)
	log.Debug("process exited", zap.String("command", cmd.Line), zap.Int("exit_code", code))
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// watch terminates the process group once ctx ends, escalating to SIGKILL after the grace period.
func (r *Runner) watch(ctx context.Context, proc *exec.Cmd, exited <-chan struct{}) {
	select {
	case <-exited:
		return
	case <-ctx.Done():
	}

	pid := proc.Process.Pid
	if err := terminateProcessGroup(pid); err != nil {
		r.logger.Debug("terminate process group failed", zap.Int("pid", pid), zap.Error(err))
	}
	select {
	case <-exited:
	case <-time.After(r.grace):
		if err := killProcessGroup(pid); err != nil {
			r.logger.Debug("kill process group failed", zap.Int("pid", pid), zap.Error(err))
		}
	}
}

func (r *Runner) relay(st *Stream, reader io.Reader, level livelog.Level, det CompletionDetector) {
	buf := bufio.NewReader(reader)
	data := make([]byte, 4096)
	var tail string
	for {
		n, err := buf.Read(data)
		if n > 0 {
			chunk := string(data[:n])
			if text := strings.TrimSpace(chunk); text != "" {
				st.Log(level, text)
			}
			if det != nil {
				window := tail + chunk
				if msg, ok := det.Detect(window); ok {
					st.Complete(msg)
				}
				tail = lastBytes(window, det.Window())
			}
		}
		if err != nil {
			if err != io.EOF {
				r.logger.Debug("process output read error", zap.Error(err))
			}
			return
		}
	}
}

func lastBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// mergeEnv overlays extra onto base (or the current environment when base is empty).
func mergeEnv(base []string, extra map[string]string) []string {
	if len(base) == 0 {
		base = os.Environ()
	}
	if len(extra) == 0 {
		return base
	}
	merged := make([]string, 0, len(base)+len(extra))
	for _, entry := range base {
		key, _, _ := strings.Cut(entry, "=")
		if _, overridden := extra[key]; overridden {
			continue
		}
		merged = append(merged, entry)
	}
	for k, v := range extra {
		merged = append(merged, k+"="+v)
	}
	return merged
}
