// Package upstream runs the claude CLI for one turn and decodes its stream-json output.
package upstream

import (
	"context"
	"maps"
	"os"
	"slices"
	"strings"
)

// Config is the transport target of an Adapter. It is copied on construction and
// never changes afterwards; use a second Adapter for a second credential.
type Config struct {
	CLIPath         string
	BaseURL         string
	AuthToken       string
	Model           string
	MCPConfigPath   string
	PermissionMode  string
	PartialMessages bool
	// Env is added to the child environment after the ANTHROPIC_* variables.
	Env map[string]string
}

// Request is everything that varies per turn.
type Request struct {
	Prompt          string
	ResumeToken     string
	SystemPrompt    string
	AllowedTools    []string
	DisallowedTools []string
	WorkDir         string
}

// Stream yields messages of a single turn. Next returns io.EOF once the turn is over.
type Stream interface {
	Next(ctx context.Context) (Message, error)
	Close() error
}

// Opener starts turns. The relay depends on this, not on the CLI.
type Opener interface {
	Open(ctx context.Context, req Request) (Stream, error)
}

type Adapter struct {
	cfg Config
}

func NewAdapter(cfg Config) *Adapter {
	cfg.Env = maps.Clone(cfg.Env)
	if cfg.CLIPath == "" {
		cfg.CLIPath = "claude"
	}
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Model() string {
	return a.cfg.Model
}

// BuildArgs renders the CLI invocation for req.
func (a *Adapter) BuildArgs(req Request) []string {
	args := []string{
		"-p",
		"--output-format", "stream-json",
		"--verbose",
	}
	if a.cfg.PartialMessages {
		args = append(args, "--include-partial-messages")
	}
	if a.cfg.Model != "" {
		args = append(args, "--model", a.cfg.Model)
	}
	if a.cfg.PermissionMode != "" {
		args = append(args, "--permission-mode", a.cfg.PermissionMode)
	}
	if a.cfg.MCPConfigPath != "" {
		args = append(args, "--mcp-config", a.cfg.MCPConfigPath)
	}
	if req.ResumeToken != "" {
		args = append(args, "--resume", req.ResumeToken)
	}
	if req.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", req.SystemPrompt)
	}
	if len(req.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(req.AllowedTools, ","))
	}
	if len(req.DisallowedTools) > 0 {
		args = append(args, "--disallowedTools", strings.Join(req.DisallowedTools, ","))
	}
	return append(args, "--", req.Prompt)
}

// Environ builds the child environment. The parent process env is never modified.
func (a *Adapter) Environ() []string {
	env := slices.DeleteFunc(os.Environ(), func(kv string) bool {
		return strings.HasPrefix(kv, "ANTHROPIC_BASE_URL=") ||
			strings.HasPrefix(kv, "ANTHROPIC_AUTH_TOKEN=") ||
			strings.HasPrefix(kv, "ANTHROPIC_API_KEY=")
	})
	if a.cfg.BaseURL != "" {
		env = append(env, "ANTHROPIC_BASE_URL="+a.cfg.BaseURL)
	}
	if a.cfg.AuthToken != "" {
		env = append(env, "ANTHROPIC_AUTH_TOKEN="+a.cfg.AuthToken)
	}
	// an empty key forces the CLI onto the bearer token
	env = append(env, "ANTHROPIC_API_KEY=")

	keys := slices.Sorted(maps.Keys(a.cfg.Env))
	for _, k := range keys {
		env = append(env, k+"="+a.cfg.Env[k])
	}
	return env
}

func (a *Adapter) Open(ctx context.Context, req Request) (Stream, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	s, err := startProcess(ctx, a, req)
	if err != nil {
		return nil, err
	}
	return s, nil
}
