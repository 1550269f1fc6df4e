package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sandevgo/tuskrelay/internal/event"
)

// sseSink writes events as server-sent events and flushes after each one.
type sseSink struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newSSESink(w http.ResponseWriter) *sseSink {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &sseSink{w: w, rc: http.NewResponseController(w)}
}

func (s *sseSink) Send(ctx context.Context, e event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame, err := e.SSE()
	if err != nil {
		return err
	}
	if _, err := s.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write sse frame: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush sse frame: %w", err)
	}
	return nil
}
