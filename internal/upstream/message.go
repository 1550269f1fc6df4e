package upstream

// Message is one decoded item of the agent stream. The set of implementations is
// closed: consumers switch on the concrete type.
type Message interface {
	isMessage()
}

// SystemInit opens every session and carries the resumption token.
type SystemInit struct {
	SessionID string
	Model     string
	Tools     []string
}

type TextDelta struct {
	Text string
}

type ThinkingDelta struct {
	Thinking string
}

// ToolUse is a tool invocation requested by the model.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// EndOfTurn is the final message of a turn.
type EndOfTurn struct {
	SessionID string
	Subtype   string
	IsError   bool
	Result    string
}

// StopReason maps the result subtype onto the message_stop vocabulary.
func (e EndOfTurn) StopReason() string {
	if e.Subtype == "" || e.Subtype == "success" {
		return "end_turn"
	}
	return e.Subtype
}

func (SystemInit) isMessage()    {}
func (TextDelta) isMessage()     {}
func (ThinkingDelta) isMessage() {}
func (ToolUse) isMessage()       {}
func (ToolResult) isMessage()    {}
func (EndOfTurn) isMessage()     {}
