// Package relay runs chat turns: it drives one upstream session, normalizes
// its output for the client and records the outcome.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/internal/event"
	"github.com/sandevgo/tuskrelay/internal/service/memory"
	"github.com/sandevgo/tuskrelay/internal/upstream"
	"github.com/sandevgo/tuskrelay/pkg/log"
	"github.com/sandevgo/tuskrelay/pkg/retry"
)

const DefaultProvider = "OpenRouter"

type MemoryContext interface {
	BuildContext(ctx context.Context, labels []string) (*memory.Context, error)
}

type PromptBuilder interface {
	Build(mem *memory.Context) string
}

type TranscriptArchive interface {
	Save(ctx context.Context, rec event.Record) error
}

type Deps struct {
	Upstream      upstream.Opener
	Conversations core.ConversationRepository
	Memory        MemoryContext
	Prompt        PromptBuilder
	Archive       TranscriptArchive
	Audit         AuditHook
}

type Options struct {
	AgentID         string
	Model           string
	Provider        string
	AllowedTools    []string
	DisallowedTools []string
	WorkDir         string
	TurnTimeout     time.Duration
	MemoryEnabled   bool
	MemoryLabels    []string
}

// Turn is one user message to relay.
type Turn struct {
	ConversationID string
	Message        string
	// ResumeToken overrides the token stored with the conversation.
	ResumeToken   string
	ResetSession  bool
	IncludeMemory bool
	MemoryLabels  []string
}

type Outcome struct {
	ConversationID string
	SessionID      string
	Text           string
	Events         int
	Err            error
}

type Relay struct {
	deps Deps
	opts Options
}

func New(deps Deps, opts Options) *Relay {
	if opts.Provider == "" {
		opts.Provider = DefaultProvider
	}
	if deps.Audit == nil {
		deps.Audit = LogAudit
	}
	return &Relay{deps: deps, opts: opts}
}

func (r *Relay) Model() string { return r.opts.Model }

// Run executes a turn, emitting events to client until a terminal event or
// until the client goes away. Persistence happens regardless of the client.
func (r *Relay) Run(ctx context.Context, turn Turn, client Sink) Outcome {
	convID := turn.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	ctx = log.WithComponent(ctx, "relay")
	logger := log.FromCtx(ctx).With().Str("conversation_id", convID).Logger()
	ctx = logger.WithContext(ctx)

	var existing *core.Conversation
	conv, err := r.deps.Conversations.Get(ctx, convID)
	switch {
	case err == nil:
		existing = conv
	case !errors.Is(err, core.ErrNotFound):
		logger.Warn().Err(err).Msg("failed to load conversation, continuing without history")
	}

	token := turn.ResumeToken
	if token == "" && existing != nil && !turn.ResetSession {
		token = existing.ResumeToken
	}
	if turn.ResetSession {
		token = ""
	}

	transcript := &event.Transcript{}
	out := newFanout(client, transcript, r.deps.Audit)
	norm := NewNormalizer(logger, token, r.opts.DisallowedTools)

	turnCtx, cancel := r.turnContext(ctx)
	defer cancel()

	failure := r.drive(turnCtx, convID, turn, token, out, norm)

	if errors.Is(failure, ErrClientGone) {
		logger.Info().Msg("client disconnected, turn abandoned")
	} else {
		var terminal event.Event
		if failure != nil {
			f := classify(failure)
			logger.Error().Err(f.Cause).Str("kind", f.Kind).Msg("turn failed")
			terminal = norm.Fail(f)
		} else {
			terminal = event.New(event.Done, nil)
		}
		if err := out.emit(ctx, terminal); err != nil {
			logger.Debug().Err(err).Msg("terminal event not delivered")
		}
	}

	persistCtx := context.WithoutCancel(ctx)
	r.persist(persistCtx, convID, existing, turn.Message, norm)
	r.archive(persistCtx, transcript.Record(convID))

	return Outcome{
		ConversationID: convID,
		SessionID:      norm.SessionID(),
		Text:           norm.Text(),
		Events:         transcript.Len(),
		Err:            failure,
	}
}

func (r *Relay) turnContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.TurnTimeout > 0 {
		return context.WithTimeout(ctx, r.opts.TurnTimeout)
	}
	return context.WithCancel(ctx)
}

// drive runs the turn up to, not including, the terminal event.
func (r *Relay) drive(ctx context.Context, convID string, turn Turn, token string, out *fanout, norm *Normalizer) error {
	logger := log.FromCtx(ctx)

	if err := out.emit(ctx, event.New(event.ConversationID, event.Data{"id": convID, "conversation_id": convID})); err != nil {
		return err
	}

	labels := turn.MemoryLabels
	if len(labels) == 0 {
		labels = r.opts.MemoryLabels
	}
	useMemory := r.opts.MemoryEnabled && turn.IncludeMemory && r.deps.Memory != nil

	var mem *memory.Context
	if useMemory {
		var err error
		mem, err = r.deps.Memory.BuildContext(ctx, labels)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to build memory context")
			mem = nil
		}
	}

	if err := out.emit(ctx, norm.Begin()...); err != nil {
		return err
	}

	var systemPrompt string
	if r.deps.Prompt != nil {
		systemPrompt = r.deps.Prompt.Build(mem)
	}

	stream, err := r.deps.Upstream.Open(ctx, upstream.Request{
		Prompt:          turn.Message,
		ResumeToken:     token,
		SystemPrompt:    systemPrompt,
		AllowedTools:    r.opts.AllowedTools,
		DisallowedTools: r.opts.DisallowedTools,
		WorkDir:         r.opts.WorkDir,
	})
	if err != nil {
		return fmt.Errorf("failed to open upstream session: %w", err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			logger.Debug().Err(err).Msg("upstream close")
		}
	}()

	var blocks []string
	if useMemory {
		blocks = labels
	}
	start := norm.Opened(StartInfo{
		AgentID:       r.opts.AgentID,
		Model:         r.opts.Model,
		Provider:      r.opts.Provider,
		MemoryEnabled: useMemory,
		MemoryBlocks:  blocks,
	})
	if err := out.emit(ctx, start...); err != nil {
		return err
	}

	for {
		msg, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out.emit(ctx, norm.Finish()...)
		}
		if err != nil {
			return err
		}
		if err := out.emit(ctx, norm.Handle(msg)...); err != nil {
			return err
		}
		if end, ok := msg.(upstream.EndOfTurn); ok {
			if end.IsError {
				return &UpstreamFailure{Message: resultMessage(end), Kind: KindResult}
			}
			return nil
		}
	}
}

func resultMessage(end upstream.EndOfTurn) string {
	if end.Result != "" {
		return end.Result
	}
	return "upstream reported " + end.Subtype
}

func (r *Relay) persist(ctx context.Context, convID string, existing *core.Conversation, prompt string, norm *Normalizer) {
	logger := log.FromCtx(ctx)
	now := time.Now().UTC()

	var messages []core.ChatMessage
	if existing != nil {
		messages = append(messages, existing.Messages...)
	}
	messages = append(messages,
		core.ChatMessage{Role: core.RoleUser, Content: prompt, Timestamp: now},
		core.ChatMessage{Role: core.RoleAssistant, Content: norm.Text(), Timestamp: now},
	)

	var token *string
	if id := norm.SessionID(); id != "" {
		token = &id
	}

	err := retry.NewRetrier(retry.NewOnceConfig()).Do(ctx, func() error {
		return r.deps.Conversations.Upsert(ctx, convID, messages, token)
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to persist conversation")
	}
}

func (r *Relay) archive(ctx context.Context, rec event.Record) {
	if r.deps.Archive == nil {
		return
	}
	if err := r.deps.Archive.Save(ctx, rec); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("failed to archive transcript")
	}
}
