package memory

import (
	"os"
	"path/filepath"
	"strings"
)

// PromptFiles are optional markdown files in the runtime dir appended to the
// agent's system prompt, in this order.
var PromptFiles = []string{"SYSTEM.md", "IDENTITY.md", "USER.md"}

type SysPrompt struct {
	runtimePath string
	base        string
}

func NewSysPrompt(runtimePath, base string) *SysPrompt {
	return &SysPrompt{runtimePath: runtimePath, base: base}
}

// Build joins the configured prompt, the runtime prompt files and the memory section.
func (p *SysPrompt) Build(memory *Context) string {
	var parts []string
	if s := strings.TrimSpace(p.base); s != "" {
		parts = append(parts, s)
	}
	for _, name := range PromptFiles {
		content, err := os.ReadFile(filepath.Join(p.runtimePath, name))
		if err != nil {
			continue
		}
		if s := strings.TrimSpace(string(content)); s != "" {
			parts = append(parts, s)
		}
	}
	if memory != nil && memory.Text != "" {
		parts = append(parts, "## Memory\n"+memory.Text)
	}
	return strings.Join(parts, "\n\n")
}
