// Package runner executes external commands and captures their output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/btctl/internal/device"
)

// Result holds what an external command produced.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Diagnostic returns the trimmed stderr text.
func (r *Result) Diagnostic() string {
	return strings.TrimSpace(string(r.Stderr))
}

// Failed reports whether the command exited nonzero or wrote anything to
// stderr, whitespace included. The control tool reports some errors
// (e.g. "Failed to unpair") on stderr while still exiting 0.
func (r *Result) Failed() bool {
	return r.ExitCode != 0 || len(r.Stderr) != 0
}

// Err returns an *device.ExternalCommandError for a failed result, nil otherwise.
func (r *Result) Err(command string) error {
	if !r.Failed() {
		return nil
	}
	return &device.ExternalCommandError{
		Command:  command,
		ExitCode: r.ExitCode,
		Stderr:   string(r.Stderr),
	}
}

// Runner runs an external command.
//
// A nonzero exit status is reported through Result.ExitCode with a nil error;
// the error is reserved for commands that could not be started or were
// interrupted by ctx.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger *logrus.Logger
}

// NewExecRunner creates a Runner backed by os/exec.
func NewExecRunner(logger *logrus.Logger) *ExecRunner {
	if logger == nil {
		logger = logrus.New()
	}
	return &ExecRunner{logger: logger}
}

// Run executes name with args and waits for it to exit.
// The process is killed when ctx is done.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := r.logger.WithField("command", CommandLine(name, args...))
	logger.Debug("Running external command")

	start := time.Now()
	err := cmd.Run()
	result := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return result, err
		}
		result.ExitCode = exitErr.ExitCode()
	}

	logger.WithFields(logrus.Fields{
		"exit_code":    result.ExitCode,
		"elapsed":      time.Since(start).Truncate(time.Millisecond),
		"stdout_bytes": len(result.Stdout),
		"stderr_bytes": len(result.Stderr),
	}).Debug("External command finished")

	return result, nil
}

// CommandLine renders a command for logs and error messages.
func CommandLine(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
