// Package test holds helpers for tests that need a real claude CLI and network access.
package test

import (
	"os"
	"os/exec"
	"testing"
)

// RequireCLI skips the test unless the claude CLI is on PATH (or at RELAY_CLAUDE_CLI).
func RequireCLI(t *testing.T) string {
	t.Helper()
	name := os.Getenv("RELAY_CLAUDE_CLI")
	if name == "" {
		name = "claude"
	}
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("claude CLI not found: %v", err)
	}
	return path
}

// RequireAPIKey skips the test unless OPENROUTER_API_KEY is set.
func RequireAPIKey(t *testing.T) string {
	t.Helper()
	key := os.Getenv("OPENROUTER_API_KEY")
	if key == "" {
		t.Skip("OPENROUTER_API_KEY is not set")
	}
	return key
}
