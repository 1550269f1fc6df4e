// Package event defines the normalized events a chat turn emits to clients.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

type Kind string

const (
	ConversationID Kind = "conversation_id"
	SessionID      Kind = "session_id"
	SystemInit     Kind = "system_init"
	ThinkingStart  Kind = "thinking_start"
	ThinkingDelta  Kind = "thinking_delta"
	ThinkingStop   Kind = "thinking_stop"
	MessageStart   Kind = "message_start"
	ContentDelta   Kind = "content_delta"
	ContentStop    Kind = "content_stop"
	ToolUseStart   Kind = "tool_use_start"
	ToolUseStop    Kind = "tool_use_stop"
	ToolResult     Kind = "tool_result"
	MessageStop    Kind = "message_stop"
	Error          Kind = "error"
	Done           Kind = "done"
)

// Side-channel kinds used only by the websocket transport.
const (
	Connected     Kind = "connected"
	Pong          Kind = "pong"
	MemoryContext Kind = "memory_context"
	FileTree      Kind = "file_tree"
)

var turnKinds = map[Kind]struct{}{
	ConversationID: {}, SessionID: {}, SystemInit: {}, ThinkingStart: {}, ThinkingDelta: {},
	ThinkingStop: {}, MessageStart: {}, ContentDelta: {}, ContentStop: {}, ToolUseStart: {},
	ToolUseStop: {}, ToolResult: {}, MessageStop: {}, Error: {}, Done: {},
}

// IsTurnKind reports whether k belongs to the chat turn vocabulary.
func IsTurnKind(k Kind) bool {
	_, ok := turnKinds[k]
	return ok
}

// Terminal kinds end a turn; nothing follows them.
func (k Kind) Terminal() bool {
	return k == Done || k == Error
}

type Data = map[string]any

// Event is immutable once emitted.
type Event struct {
	Kind      Kind      `json:"event"`
	Data      Data      `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func New(kind Kind, data Data) Event {
	if data == nil {
		data = Data{}
	}
	return Event{Kind: kind, Data: data, Timestamp: time.Now().UTC()}
}

// envelope is the client wire shape.
type envelope struct {
	Event Kind `json:"event"`
	Data  Data `json:"data"`
}

// Wire encodes the client envelope {"event": kind, "data": payload}.
func (e Event) Wire() ([]byte, error) {
	b, err := json.Marshal(envelope{Event: e.Kind, Data: e.Data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", e.Kind, err)
	}
	return b, nil
}

// SSE frames the envelope as a single server-sent event.
func (e Event) SSE() ([]byte, error) {
	b, err := e.Wire()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(b)+8)
	out = append(out, "data: "...)
	out = append(out, b...)
	out = append(out, '\n', '\n')
	return out, nil
}
