package upstream

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Decoder turns stream-json lines into Messages.
//
// With partial messages enabled the CLI emits text twice: as stream_event deltas and
// again inside the complete assistant message. Only the deltas are kept in that
// mode; tool_use blocks always come from the complete message.
type Decoder struct {
	partial bool
}

func NewDecoder(partial bool) *Decoder {
	return &Decoder{partial: partial}
}

// Decode returns zero or more messages for one line. Unknown types are skipped.
func (d *Decoder) Decode(line []byte) ([]Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	var raw rawLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, &DecodeError{Line: string(line), Cause: err}
	}

	switch raw.Type {
	case "system":
		if raw.Subtype != "init" {
			return nil, nil
		}
		return []Message{SystemInit{SessionID: raw.Session, Model: raw.Model, Tools: raw.Tools}}, nil
	case "stream_event":
		return d.decodeStreamEvent(raw.Event)
	case "assistant":
		return d.decodeAssistant(raw.Message)
	case "user":
		return decodeUser(raw.Message)
	case "result":
		return []Message{EndOfTurn{
			SessionID: raw.Session,
			Subtype:   raw.Subtype,
			IsError:   raw.IsError,
			Result:    raw.Result,
		}}, nil
	}
	return nil, nil
}

func (d *Decoder) decodeStreamEvent(data json.RawMessage) ([]Message, error) {
	if !d.partial || len(data) == 0 {
		return nil, nil
	}
	var ev rawStreamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, &DecodeError{Line: string(data), Cause: err}
	}
	if ev.Type != "content_block_delta" {
		return nil, nil
	}
	switch ev.Delta.Type {
	case "text_delta":
		return []Message{TextDelta{Text: ev.Delta.Text}}, nil
	case "thinking_delta":
		return []Message{ThinkingDelta{Thinking: ev.Delta.Thinking}}, nil
	}
	return nil, nil
}

func (d *Decoder) decodeAssistant(msg *rawContent) ([]Message, error) {
	blocks, err := contentBlocks(msg)
	if err != nil {
		return nil, err
	}
	var out []Message
	for _, b := range blocks {
		switch b.Type {
		case "tool_use":
			out = append(out, ToolUse{ID: b.ID, Name: b.Name, Input: b.Input})
		case "text":
			if !d.partial && b.Text != "" {
				out = append(out, TextDelta{Text: b.Text})
			}
		case "thinking":
			if !d.partial && b.Thinking != "" {
				out = append(out, ThinkingDelta{Thinking: b.Thinking})
			}
		}
	}
	return out, nil
}

func decodeUser(msg *rawContent) ([]Message, error) {
	blocks, err := contentBlocks(msg)
	if err != nil {
		return nil, err
	}
	var out []Message
	for _, b := range blocks {
		if b.Type != "tool_result" {
			continue
		}
		out = append(out, ToolResult{
			ToolUseID: b.ToolUseID,
			Content:   flattenContent(b.Content),
			IsError:   b.IsError,
		})
	}
	return out, nil
}

func contentBlocks(msg *rawContent) ([]rawBlock, error) {
	if msg == nil || len(msg.Content) == 0 || msg.Content[0] != '[' {
		return nil, nil
	}
	var blocks []rawBlock
	if err := json.Unmarshal(msg.Content, &blocks); err != nil {
		return nil, &DecodeError{Line: string(msg.Content), Cause: err}
	}
	return blocks, nil
}

// flattenContent renders a tool_result payload (string or block list) as text.
func flattenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []rawBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		parts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			if b.Type == "text" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return string(raw)
}
