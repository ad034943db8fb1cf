// Package procexec runs external download tools as child processes with
// bounded output capture and hard timeouts. Arguments are always passed as
// an argv vector; nothing is ever interpreted by a shell.
package procexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"fetchd/internal/logging"
	"fetchd/internal/services"
)

// commandContext allows tests to substitute the spawned process.
var commandContext = exec.CommandContext

// waitDelay bounds how long Wait blocks on lingering pipe readers after the
// process group has been killed.
const waitDelay = 5 * time.Second

// Result captures the outcome of one tool invocation.
type Result struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	Truncated bool
	Duration  time.Duration
}

// Executor spawns external tools. The zero value is not usable; construct
// with New.
type Executor struct {
	logger       *slog.Logger
	captureLimit int
}

// New creates an executor. captureLimitKB caps how much of each output
// stream is retained per invocation.
func New(logger *slog.Logger, captureLimitKB int) *Executor {
	if captureLimitKB < 1 {
		captureLimitKB = 1
	}
	return &Executor{
		logger:       logging.NewComponentLogger(logger, "procexec"),
		captureLimit: captureLimitKB * 1024,
	}
}

// Run executes name with args in workdir and waits for it to finish. A
// timeout of zero means the context alone bounds the run. On timeout the
// whole process group is killed so tool children cannot linger.
func (e *Executor) Run(ctx context.Context, name string, args []string, workdir string, timeout time.Duration) (Result, error) {
	if strings.TrimSpace(name) == "" {
		return Result{}, services.Wrap(services.ErrProcess, "procexec", "run", "tool name must not be empty", nil)
	}
	if _, err := exec.LookPath(name); err != nil {
		return Result{}, services.Wrap(services.ErrNotFound, "procexec", "run",
			fmt.Sprintf("executable %q not found in PATH", name), err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stdout := &limitWriter{limit: e.captureLimit}
	stderr := &limitWriter{limit: e.captureLimit}

	cmd := commandContext(runCtx, name, args...)
	cmd.Dir = workdir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = waitDelay
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}

	e.logger.Debug("spawning tool",
		logging.String("tool", name),
		logging.Int("arg_count", len(args)),
		logging.String("workdir", workdir),
	)

	started := time.Now()
	runErr := cmd.Run()
	result := Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.truncated || stderr.truncated,
		Duration:  time.Since(started),
	}

	if runErr == nil {
		result.ExitCode = 0
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	} else {
		result.ExitCode = -1
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return result, services.Wrap(services.ErrTimeout, "procexec", "run",
			fmt.Sprintf("%s exceeded %s", name, timeout), runErr)
	case errors.Is(ctx.Err(), context.Canceled):
		return result, services.Wrap(services.ErrCancelled, "procexec", "run",
			fmt.Sprintf("%s cancelled", name), context.Canceled)
	case exitErr != nil:
		return result, services.Wrap(services.ErrProcess, "procexec", "run",
			fmt.Sprintf("%s exited with status %d: %s", name, result.ExitCode, tail(result.Stderr)), runErr)
	default:
		return result, services.Wrap(services.ErrProcess, "procexec", "run",
			fmt.Sprintf("failed to start %s", name), runErr)
	}
}

// tail returns the last non-empty line of captured stderr, which is usually
// the actual tool error.
func tail(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no output"
}

type limitWriter struct {
	buf       strings.Builder
	limit     int
	truncated bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	switch {
	case remaining <= 0:
		if len(p) > 0 {
			w.truncated = true
		}
	case len(p) > remaining:
		w.buf.Write(p[:remaining])
		w.truncated = true
	default:
		w.buf.Write(p)
	}
	return len(p), nil
}

func (w *limitWriter) String() string {
	return w.buf.String()
}
