package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandevgo/tuskrelay/internal/upstream"
)

// ErrClientGone means the client transport refused a write; the turn is abandoned.
var ErrClientGone = errors.New("client disconnected")

// Failure kinds reported in the terminal error event.
const (
	KindTimeout     = "timeout"
	KindCancelled   = "cancelled"
	KindCLINotFound = "cli_not_found"
	KindProcess     = "process_error"
	KindProtocol    = "protocol_error"
	KindResult      = "upstream_error"
	KindUnknown     = "upstream_failure"
)

// UpstreamFailure ends a turn with an error event instead of done.
type UpstreamFailure struct {
	Message string
	Kind    string
	Cause   error
}

func (e *UpstreamFailure) Error() string {
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.Message)
}

func (e *UpstreamFailure) Unwrap() error { return e.Cause }

func classify(err error) *UpstreamFailure {
	var f *UpstreamFailure
	if errors.As(err, &f) {
		return f
	}

	kind := KindUnknown
	var (
		notFound *upstream.CLINotFoundError
		proc     *upstream.ProcessError
		decode   *upstream.DecodeError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
	case errors.As(err, &notFound):
		kind = KindCLINotFound
	case errors.As(err, &decode):
		kind = KindProtocol
	case errors.As(err, &proc):
		kind = KindProcess
	}
	return &UpstreamFailure{Message: err.Error(), Kind: kind, Cause: err}
}

// PolicyViolation describes a tool call rejected by the relay's deny list.
type PolicyViolation struct {
	ToolCallID string
	Tool       string
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("%s is disabled. Use the MCP tools configured for this agent instead.", e.Tool)
}
