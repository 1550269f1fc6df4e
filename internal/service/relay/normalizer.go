package relay

import (
	"maps"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sandevgo/tuskrelay/internal/event"
	"github.com/sandevgo/tuskrelay/internal/upstream"
)

type State int

const (
	StateIdle State = iota
	StateThinking
	StateGenerating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateThinking:
		return "thinking"
	case StateGenerating:
		return "generating"
	case StateDone:
		return "done"
	case StateFailed:
		return "error"
	default:
		return "unknown"
	}
}

type ToolStatus string

const (
	ToolPending   ToolStatus = "pending"
	ToolRunning   ToolStatus = "running"
	ToolCompleted ToolStatus = "completed"
	ToolFailed    ToolStatus = "failed"
)

type ToolInvocation struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Input  map[string]any `json:"input"`
	Status ToolStatus     `json:"status"`
}

func (t *ToolInvocation) snapshot() map[string]any {
	return map[string]any{
		"id":     t.ID,
		"name":   t.Name,
		"input":  maps.Clone(t.Input),
		"status": string(t.Status),
	}
}

// StartInfo is echoed to the client in message_start.
type StartInfo struct {
	AgentID       string
	Model         string
	Provider      string
	MemoryEnabled bool
	MemoryBlocks  []string
}

// Normalizer maps upstream messages of one turn onto client events.
// It is not safe for concurrent use; one turn drives one Normalizer.
type Normalizer struct {
	logger zerolog.Logger

	state      State
	knownToken string
	sessionID  string
	disallowed map[string]bool
	open       map[string]*ToolInvocation
	denied     map[string]bool
	text       strings.Builder
	result     *upstream.EndOfTurn
}

func NewNormalizer(logger zerolog.Logger, knownToken string, disallowed []string) *Normalizer {
	deny := make(map[string]bool, len(disallowed))
	for _, d := range disallowed {
		deny[d] = true
	}
	return &Normalizer{
		logger:     logger,
		knownToken: knownToken,
		disallowed: deny,
		open:       map[string]*ToolInvocation{},
		denied:     map[string]bool{},
	}
}

func (n *Normalizer) State() State { return n.state }

// Text is the assistant text accumulated so far.
func (n *Normalizer) Text() string { return n.text.String() }

// SessionID is the resumption token reported by upstream this turn, if any.
func (n *Normalizer) SessionID() string { return n.sessionID }

// Result is the end-of-turn message, nil until one arrives.
func (n *Normalizer) Result() *upstream.EndOfTurn { return n.result }

// OpenTools returns the ids of invocations still waiting for a result.
func (n *Normalizer) OpenTools() []string {
	ids := make([]string, 0, len(n.open))
	for id := range n.open {
		ids = append(ids, id)
	}
	return ids
}

// Begin precedes opening the session.
func (n *Normalizer) Begin() []event.Event {
	n.state = StateThinking
	return []event.Event{event.New(event.ThinkingStart, event.Data{"message": "Thinking..."})}
}

// Opened follows a successful session open.
func (n *Normalizer) Opened(info StartInfo) []event.Event {
	n.state = StateGenerating
	blocks := info.MemoryBlocks
	if blocks == nil {
		blocks = []string{}
	}
	return []event.Event{
		event.New(event.ThinkingStop, nil),
		event.New(event.MessageStart, event.Data{
			"agent_id":       info.AgentID,
			"model":          info.Model,
			"provider":       info.Provider,
			"memory_enabled": info.MemoryEnabled,
			"memory_blocks":  blocks,
		}),
	}
}

func (n *Normalizer) Handle(msg upstream.Message) []event.Event {
	if n.state == StateDone || n.state == StateFailed {
		n.logger.Debug().Type("message", msg).Msg("message after end of turn dropped")
		return nil
	}

	switch m := msg.(type) {
	case upstream.SystemInit:
		return n.systemInit(m)
	case upstream.TextDelta:
		n.text.WriteString(m.Text)
		return []event.Event{event.New(event.ContentDelta, event.Data{"text": m.Text})}
	case upstream.ThinkingDelta:
		return []event.Event{event.New(event.ThinkingDelta, event.Data{"thinking": m.Thinking})}
	case upstream.ToolUse:
		return n.toolUse(m)
	case upstream.ToolResult:
		return n.toolResult(m)
	case upstream.EndOfTurn:
		if m.SessionID != "" && n.sessionID == "" {
			n.sessionID = m.SessionID
		}
		n.result = &m
		return n.stop(m.StopReason())
	}
	return nil
}

func (n *Normalizer) systemInit(m upstream.SystemInit) []event.Event {
	tools := m.Tools
	if tools == nil {
		tools = []string{}
	}
	out := []event.Event{event.New(event.SystemInit, event.Data{
		"session_id": m.SessionID,
		"model":      m.Model,
		"tools":      tools,
	})}
	if m.SessionID == "" {
		return out
	}
	n.sessionID = m.SessionID
	if m.SessionID != n.knownToken {
		n.knownToken = m.SessionID
		out = append(out, event.New(event.SessionID, event.Data{"session_id": m.SessionID}))
	}
	return out
}

func (n *Normalizer) toolUse(m upstream.ToolUse) []event.Event {
	input := m.Input
	if input == nil {
		input = map[string]any{}
	}
	inv := &ToolInvocation{ID: m.ID, Name: m.Name, Input: input, Status: ToolRunning}
	out := []event.Event{event.New(event.ToolUseStart, event.Data{
		"tool_call_id": m.ID,
		"tool_name":    m.Name,
		"tool_input":   input,
	})}

	if !n.disallowed[m.Name] {
		n.open[m.ID] = inv
		return out
	}

	violation := &PolicyViolation{ToolCallID: m.ID, Tool: m.Name}
	n.logger.Warn().Str("tool", m.Name).Str("tool_call_id", m.ID).Msg("disallowed tool rejected")
	n.denied[m.ID] = true
	inv.Status = ToolFailed
	return append(out,
		event.New(event.ToolResult, event.Data{
			"tool_use_id":      m.ID,
			"content":          violation.Error(),
			"is_error":         true,
			"policy_violation": true,
		}),
		event.New(event.ToolUseStop, event.Data{"tool_call": inv.snapshot()}),
	)
}

func (n *Normalizer) toolResult(m upstream.ToolResult) []event.Event {
	if n.denied[m.ToolUseID] {
		n.logger.Debug().Str("tool_call_id", m.ToolUseID).Msg("upstream result for rejected tool dropped")
		return nil
	}

	out := []event.Event{event.New(event.ToolResult, event.Data{
		"tool_use_id": m.ToolUseID,
		"content":     m.Content,
		"is_error":    m.IsError,
	})}

	inv, ok := n.open[m.ToolUseID]
	if !ok {
		n.logger.Debug().Str("tool_call_id", m.ToolUseID).Msg("tool result without matching tool use")
		return out
	}
	delete(n.open, m.ToolUseID)
	inv.Status = ToolCompleted
	if m.IsError {
		inv.Status = ToolFailed
	}
	return append(out, event.New(event.ToolUseStop, event.Data{"tool_call": inv.snapshot()}))
}

func (n *Normalizer) stop(reason string) []event.Event {
	n.state = StateDone
	return []event.Event{
		event.New(event.ContentStop, nil),
		event.New(event.MessageStop, event.Data{"stop_reason": reason}),
	}
}

// Finish closes a turn whose stream ended without an explicit end-of-turn.
func (n *Normalizer) Finish() []event.Event {
	if n.state == StateDone || n.state == StateFailed {
		return nil
	}
	return n.stop("end_turn")
}

// Fail moves to the error state and returns the terminal error event.
func (n *Normalizer) Fail(f *UpstreamFailure) event.Event {
	n.state = StateFailed
	return event.New(event.Error, event.Data{"error": f.Message, "type": f.Kind})
}
