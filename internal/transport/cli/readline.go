// Package cli is a terminal chat client for the relay.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sandevgo/tuskrelay/internal/service/relay"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

// Runner runs one chat turn.
type Runner interface {
	Run(ctx context.Context, turn relay.Turn, client relay.Sink) relay.Outcome
}

type Options struct {
	RuntimePath string
	// ConversationID resumes an existing conversation; empty starts a new one.
	ConversationID string
	ShowThinking   bool
}

type ReadLine struct {
	relay  Runner
	opts   Options
	rl     *readline.Instance
	convID string
}

func NewReadLine(r Runner, opts Options) (*ReadLine, error) {
	// Ensure runtime directory exists
	if err := os.MkdirAll(opts.RuntimePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(opts.RuntimePath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		relay:  r,
		opts:   opts,
		rl:     rl,
		convID: opts.ConversationID,
	}, nil
}

func (r *ReadLine) Name() string { return "terminal chat" }

// Start reads prompts until exit, EOF or ctrl+c on an empty line.
func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("terminal chat started. Type 'exit' to quit, '/new' to start over.")

	for {
		// Check context before blocking read
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					return nil
				}
				continue
			} else if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit":
			return nil
		case "/new":
			r.convID = ""
			fmt.Fprintln(r.rl.Stdout(), "[System] Started a new conversation.")
			continue
		}

		out := newPrinter(r.rl.Stdout(), r.opts.ShowThinking)
		outcome := r.relay.Run(ctx, relay.Turn{
			ConversationID: r.convID,
			Message:        line,
			IncludeMemory:  true,
		}, out)
		r.convID = outcome.ConversationID

		if outcome.Err != nil {
			logger.Error().Err(outcome.Err).Str("conversation_id", outcome.ConversationID).Msg("turn failed")
		}
	}
}

// ConversationID is the conversation the next prompt continues.
func (r *ReadLine) ConversationID() string { return r.convID }

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
