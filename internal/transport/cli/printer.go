package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/sandevgo/tuskrelay/internal/event"
	"github.com/sandevgo/tuskrelay/internal/service/relay"
	"github.com/sandevgo/tuskrelay/internal/service/ui"
)

// printer renders turn events as plain terminal output.
type printer struct {
	w            io.Writer
	showThinking bool
	thinking     bool
	midLine      bool
}

func newPrinter(w io.Writer, showThinking bool) relay.SinkFunc {
	p := &printer{w: w, showThinking: showThinking}
	return p.send
}

func (p *printer) send(_ context.Context, e event.Event) error {
	switch e.Kind {
	case event.ThinkingDelta:
		if !p.showThinking {
			return nil
		}
		if !p.thinking {
			p.line("[Thinking]")
			p.thinking = true
		}
		_, err := fmt.Fprint(p.w, ui.DescStyle.Render(str(e.Data["thinking"])))
		p.midLine = true
		return err

	case event.ContentDelta:
		if p.thinking {
			p.endLine()
			p.thinking = false
		}
		text := str(e.Data["text"])
		_, err := fmt.Fprint(p.w, text)
		p.midLine = text != "" && text[len(text)-1] != '\n'
		return err

	case event.ToolUseStart:
		p.line(fmt.Sprintf("  > Calling %s %v", str(e.Data["tool_name"]), e.Data["tool_input"]))

	case event.ToolResult:
		if b, _ := e.Data["is_error"].(bool); b {
			p.line(ui.ErrorStyle.Render("  ! " + str(e.Data["content"])))
		}

	case event.Error:
		p.line(ui.ErrorStyle.Render(fmt.Sprintf("Error (%s): %s", str(e.Data["type"]), str(e.Data["error"]))))

	case event.Done:
		p.endLine()
	}
	return nil
}

func (p *printer) line(s string) {
	p.endLine()
	fmt.Fprintln(p.w, s)
}

func (p *printer) endLine() {
	if p.midLine {
		fmt.Fprintln(p.w)
		p.midLine = false
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
