package device

import (
	"errors"
	"fmt"
	"strings"
)

// ControlToolName is the third-party utility that performs device actions.
const ControlToolName = "blueutil"

// ParseError reports inventory output that is not valid data for the expected schema.
type ParseError struct {
	Source string // tool that produced the output, e.g. "system_profiler"
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("could not parse JSON from %s", e.Source)
	}
	return fmt.Sprintf("could not parse JSON from %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ToolNotFoundError reports that the control utility could not be resolved.
type ToolNotFoundError struct {
	Tool string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Tool)
}

// ExternalCommandError reports an external command that exited with a nonzero
// code or wrote diagnostic text. Stderr is carried verbatim.
type ExternalCommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExternalCommandError) Error() string {
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return fmt.Sprintf("%s: %s", e.Command, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	if e.ExitCode == 0 && e.Stderr != "" {
		return fmt.Sprintf("%s: blank output on stderr", e.Command)
	}
	return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
}

func (e *ExternalCommandError) Unwrap() error { return e.Err }

// DiscoveryError reports a failed inquiry scan.
type DiscoveryError struct {
	Stderr   string
	ExitCode int
	Err      error
}

func (e *DiscoveryError) Error() string {
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return fmt.Sprintf("discovery failed: %s", msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("discovery failed: %v", e.Err)
	}
	return fmt.Sprintf("discovery failed: exit status %d", e.ExitCode)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// Action precondition errors
var (
	ErrUnknownDevice  = errors.New("unknown device")
	ErrNotDiscovered  = errors.New("device was not seen by the last discovery")
	ErrAlreadyPaired  = errors.New("device is already paired")
	ErrActionInFlight = errors.New("another action is in progress for this device")
)

// ErrorDescriptor is the human-readable form of an error shown to the user.
type ErrorDescriptor struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Describe converts err into an ErrorDescriptor. The message is taken from the
// external tool's diagnostic text when there is any. Returns nil for a nil error.
func Describe(err error) *ErrorDescriptor {
	if err == nil {
		return nil
	}

	var (
		parseErr     *ParseError
		toolErr      *ToolNotFoundError
		commandErr   *ExternalCommandError
		discoveryErr *DiscoveryError
	)

	switch {
	case errors.As(err, &toolErr):
		return &ErrorDescriptor{
			Title:   fmt.Sprintf("%s not found", toolErr.Tool),
			Message: fmt.Sprintf("Please ensure %s is installed and in your PATH.", toolErr.Tool),
		}
	case errors.As(err, &parseErr):
		return &ErrorDescriptor{Title: "Could not fetch devices", Message: parseErr.Error()}
	case errors.As(err, &discoveryErr):
		return &ErrorDescriptor{Title: "Could not discover devices", Message: diagnostic(discoveryErr.Stderr, discoveryErr.Err, discoveryErr.Error())}
	case errors.As(err, &commandErr):
		return &ErrorDescriptor{Title: "Command failed", Message: diagnostic(commandErr.Stderr, commandErr.Err, commandErr.Error())}
	default:
		return &ErrorDescriptor{Title: "Error", Message: err.Error()}
	}
}

func diagnostic(stderr string, err error, fallback string) string {
	if msg := strings.TrimSpace(stderr); msg != "" {
		return msg
	}
	if err != nil {
		return err.Error()
	}
	return fallback
}
