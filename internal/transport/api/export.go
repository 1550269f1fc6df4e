package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/pkg/conv"
	"gopkg.in/yaml.v3"
)

type exporter struct {
	contentType string
	ext         string
	export      func(c *core.Conversation) ([]byte, error)
}

var exporters = map[string]exporter{
	"json":     {contentType: "application/json", ext: "json", export: exportJSON},
	"yaml":     {contentType: "application/yaml", ext: "yaml", export: exportYAML},
	"markdown": {contentType: "text/markdown; charset=utf-8", ext: "md", export: exportMarkdown},
	"html":     {contentType: "text/html; charset=utf-8", ext: "html", export: exportHTML},
}

func exportJSON(c *core.Conversation) ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

func exportYAML(c *core.Conversation) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode conversation: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func conversationTitle(c *core.Conversation) string {
	if c.Title != "" {
		return c.Title
	}
	return "Conversation " + c.ID
}

func exportMarkdown(c *core.Conversation) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", conversationTitle(c))
	fmt.Fprintf(&b, "_Created %s, updated %s_\n", c.CreatedAt.Format(time.RFC3339), c.UpdatedAt.Format(time.RFC3339))

	for _, m := range c.Messages {
		b.WriteString("\n## ")
		switch m.Role {
		case core.RoleUser:
			b.WriteString("User")
		case core.RoleAssistant:
			b.WriteString("Assistant")
		default:
			b.WriteString("System")
		}
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}

const htmlPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body>
%s
</body>
</html>
`

func exportHTML(c *core.Conversation) ([]byte, error) {
	md, err := exportMarkdown(c)
	if err != nil {
		return nil, err
	}
	page := fmt.Sprintf(htmlPage, conv.EscapeText(conversationTitle(c)), conv.MarkdownToHTML(md))
	return []byte(page), nil
}
