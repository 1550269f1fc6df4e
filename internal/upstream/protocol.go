package upstream

import "encoding/json"

// Wire shapes of the claude CLI stream-json output. Only the fields the relay reads
// are modelled.

type rawLine struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype"`
	Session string          `json:"session_id"`
	Model   string          `json:"model"`
	Tools   []string        `json:"tools"`
	Message *rawContent     `json:"message"`
	Event   json.RawMessage `json:"event"`
	IsError bool            `json:"is_error"`
	Result  string          `json:"result"`
}

type rawContent struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type rawBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     map[string]any  `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"`
	IsError   bool            `json:"is_error"`
}

type rawStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Thinking string `json:"thinking"`
	} `json:"delta"`
}
