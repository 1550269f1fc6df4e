// Package upstreamtest provides scripted upstream streams for tests.
package upstreamtest

import (
	"context"
	"io"
	"sync"

	"github.com/sandevgo/tuskrelay/internal/upstream"
)

// Step is one scripted item: a message, or an error when Err is set.
type Step struct {
	Msg upstream.Message
	Err error
	// Block makes Next wait for ctx cancellation instead of returning.
	Block bool
}

func Msg(m upstream.Message) Step { return Step{Msg: m} }
func Err(err error) Step          { return Step{Err: err} }
func Block() Step                 { return Step{Block: true} }

// Opener replays Steps and records the requests it was opened with.
type Opener struct {
	Steps   []Step
	OpenErr error

	mu       sync.Mutex
	requests []upstream.Request
	closed   int
}

func (o *Opener) Open(ctx context.Context, req upstream.Request) (upstream.Stream, error) {
	o.mu.Lock()
	o.requests = append(o.requests, req)
	o.mu.Unlock()
	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	return &stream{owner: o, steps: o.Steps}, nil
}

func (o *Opener) Requests() []upstream.Request {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]upstream.Request(nil), o.requests...)
}

// Closed reports how many streams were closed.
func (o *Opener) Closed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

type stream struct {
	owner *Opener
	steps []Step
	pos   int
}

func (s *stream) Next(ctx context.Context) (upstream.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.steps) {
		return nil, io.EOF
	}
	st := s.steps[s.pos]
	s.pos++
	if st.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return st.Msg, st.Err
}

func (s *stream) Close() error {
	s.owner.mu.Lock()
	s.owner.closed++
	s.owner.mu.Unlock()
	return nil
}
