package upstream

import (
	"errors"
	"fmt"
)

var (
	ErrClosed      = errors.New("upstream: stream closed")
	ErrNotStarted  = errors.New("upstream: process not started")
	ErrEmptyPrompt = errors.New("upstream: empty prompt")
)

// ProcessError wraps failures of the CLI subprocess itself.
type ProcessError struct {
	Message string
	Stderr  string
	Cause   error
}

func (e *ProcessError) Error() string {
	msg := "upstream: " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Stderr != "" {
		msg += " (stderr: " + e.Stderr + ")"
	}
	return msg
}

func (e *ProcessError) Unwrap() error { return e.Cause }

type CLINotFoundError struct {
	Path  string
	Cause error
}

func (e *CLINotFoundError) Error() string {
	return fmt.Sprintf("upstream: claude CLI not found at %q: %v", e.Path, e.Cause)
}

func (e *CLINotFoundError) Unwrap() error { return e.Cause }

// DecodeError reports a line the CLI wrote that is not valid stream-json.
type DecodeError struct {
	Line  string
	Cause error
}

func (e *DecodeError) Error() string {
	line := e.Line
	if len(line) > 200 {
		line = line[:200] + "..."
	}
	return fmt.Sprintf("upstream: decode %q: %v", line, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }
