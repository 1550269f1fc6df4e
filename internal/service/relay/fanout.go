package relay

import (
	"context"
	"fmt"

	"github.com/sandevgo/tuskrelay/internal/event"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

// Sink receives events in emission order. A returned error means the
// receiver is gone and will not accept further events.
type Sink interface {
	Send(ctx context.Context, e event.Event) error
}

type SinkFunc func(ctx context.Context, e event.Event) error

func (f SinkFunc) Send(ctx context.Context, e event.Event) error { return f(ctx, e) }

// AuditHook observes every event of a turn. It must not block.
type AuditHook func(ctx context.Context, e event.Event)

// LogAudit writes one debug line per event to the context logger.
func LogAudit(ctx context.Context, e event.Event) {
	log.FromCtx(ctx).Debug().
		Str("event", string(e.Kind)).
		Interface("data", e.Data).
		Msg("turn event")
}

// fanout delivers each event to the client, the transcript and the audit hook.
// The transcript always receives the event, even once the client is gone.
type fanout struct {
	client     Sink
	transcript *event.Transcript
	audit      AuditHook
	gone       bool
}

func newFanout(client Sink, transcript *event.Transcript, audit AuditHook) *fanout {
	return &fanout{client: client, transcript: transcript, audit: audit}
}

func (f *fanout) emit(ctx context.Context, events ...event.Event) error {
	for _, e := range events {
		f.transcript.Append(e)
		if f.audit != nil {
			f.audit(ctx, e)
		}
		if f.gone {
			continue
		}
		if err := f.client.Send(ctx, e); err != nil {
			f.gone = true
			return fmt.Errorf("%w: %v", ErrClientGone, err)
		}
	}
	if f.gone {
		return ErrClientGone
	}
	return nil
}
