package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

const defaultSystemPrompt = `Web research policy:
- Use the MCP search tools for every web lookup.
- Do not call the legacy WebSearch, WebFetch, Task or TaskOutput tools.
- Use the memory MCP tools to read and store durable facts about the user.`

// AgentConfig describes how the claude CLI is launched for each turn.
type AgentConfig struct {
	CLIPath         string   `env:"RELAY_CLAUDE_CLI" envDefault:"claude"`
	PermissionMode  string   `env:"RELAY_PERMISSION_MODE" envDefault:"dontAsk"`
	AllowedTools    []string `env:"RELAY_ALLOWED_TOOLS" envDefault:"Bash,Read,Write,Edit,Glob,Grep,mcp__memory__memory_search,mcp__memory__memory_upsert,mcp__memory__memory_context" envSeparator:","`
	DisallowedTools []string `env:"RELAY_DISALLOWED_TOOLS" envDefault:"WebSearch,WebFetch,Task,TaskOutput" envSeparator:","`
	SystemPrompt    string   `env:"RELAY_SYSTEM_PROMPT"`
	// PartialMessages streams token deltas instead of whole assistant messages.
	PartialMessages bool `env:"RELAY_PARTIAL_MESSAGES" envDefault:"true"`
}

func LoadAgentConfig() (*AgentConfig, error) {
	c := &AgentConfig{}
	if err := env.Parse(c); err != nil {
		return nil, err
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	return c, nil
}

func NewAgentConfig(ctx context.Context) *AgentConfig {
	c, err := LoadAgentConfig()
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Agent config")
	}
	return c
}
