package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/sandevgo/tuskrelay/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(t *testing.T, showThinking bool, events ...event.Event) string {
	t.Helper()
	var buf bytes.Buffer
	send := newPrinter(&buf, showThinking)
	for _, e := range events {
		require.NoError(t, send(context.Background(), e))
	}
	return buf.String()
}

func TestPrinter_Content(t *testing.T) {
	out := feed(t, false,
		event.New(event.ConversationID, event.Data{"conversation_id": "c1"}),
		event.New(event.ThinkingDelta, event.Data{"thinking": "hmm"}),
		event.New(event.ContentDelta, event.Data{"text": "Hello"}),
		event.New(event.ContentDelta, event.Data{"text": " world"}),
		event.New(event.Done, nil),
	)
	assert.Equal(t, "Hello world\n", out)
}

func TestPrinter_Thinking(t *testing.T) {
	out := feed(t, true,
		event.New(event.ThinkingDelta, event.Data{"thinking": "hmm"}),
		event.New(event.ContentDelta, event.Data{"text": "ok\n"}),
		event.New(event.Done, nil),
	)
	assert.Contains(t, out, "[Thinking]\n")
	assert.Contains(t, out, "hmm")
	assert.True(t, bytes.HasSuffix([]byte(out), []byte("ok\n")))
}

func TestPrinter_ToolsAndErrors(t *testing.T) {
	out := feed(t, false,
		event.New(event.ContentDelta, event.Data{"text": "Let me check"}),
		event.New(event.ToolUseStart, event.Data{"tool_name": "Read", "tool_input": map[string]any{"path": "a.txt"}}),
		event.New(event.ToolResult, event.Data{"content": "ok", "is_error": false}),
		event.New(event.ToolResult, event.Data{"content": "boom", "is_error": true}),
		event.New(event.Error, event.Data{"error": "upstream died", "type": "process_error"}),
	)
	assert.Contains(t, out, "Let me check\n  > Calling Read map[path:a.txt]\n")
	assert.NotContains(t, out, "ok")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "Error (process_error): upstream died")
}
