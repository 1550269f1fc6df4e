package installer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/internal/providers/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeText(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func TestOpenRouterKeyStep(t *testing.T) {
	state := NewInstallState(t.TempDir())
	step := NewOpenRouterKeyStep()

	next, _ := step.Update(enter, state, 80, 24)
	require.NotNil(t, next, "empty key must not advance")
	assert.Contains(t, next.View(state), "required")

	next, _ = next.Update(typeText("sk-or-test"), state, 80, 24)
	require.NotNil(t, next)
	assert.NotContains(t, next.View(state), "sk-or-test")

	next, _ = next.Update(enter, state, 80, 24)
	assert.Nil(t, next)
	assert.Equal(t, "sk-or-test", state.EnvVars["OPENROUTER_API_KEY"])
}

func TestTextStep(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "default", input: "", want: ":8000"},
		{name: "typed", input: "127.0.0.1:9000", want: "127.0.0.1:9000"},
		{name: "trimmed", input: "  :7000 ", want: ":7000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewInstallState(t.TempDir())
			var step Step = NewTextStep("Listen on:", "RELAY_LISTEN_ADDR", ":8000")
			if tt.input != "" {
				step, _ = step.Update(typeText(tt.input), state, 80, 24)
			}
			next, _ := step.Update(enter, state, 80, 24)
			assert.Nil(t, next)
			assert.Equal(t, tt.want, state.EnvVars["RELAY_LISTEN_ADDR"])
		})
	}
}

func TestModelStep(t *testing.T) {
	var gotKey string
	lister := func(ctx context.Context, apiKey string) ([]core.Model, error) {
		gotKey = apiKey
		return []core.Model{
			{ID: "google/gemma-3-27b-it:free", Name: "Gemma 3 27B", ContextLength: 131072},
			{ID: "meta/llama:free", Name: "Llama", ContextLength: 8192},
		}, nil
	}

	state := NewInstallState(t.TempDir())
	state.EnvVars["OPENROUTER_API_KEY"] = "sk-or-test"

	step := NewModelStep(lister)
	assert.Contains(t, step.View(state), "Fetching")

	next, cmd := step.Update(nil, state, 80, 24)
	require.NotNil(t, next)
	require.NotNil(t, cmd)

	msg := cmd()
	assert.Equal(t, "sk-or-test", gotKey)
	require.IsType(t, modelsMsg{}, msg)

	next, _ = next.Update(msg, state, 80, 24)
	require.NotNil(t, next)
	assert.Contains(t, next.View(state), "Gemma 3 27B")

	next, _ = next.Update(enter, state, 80, 24)
	assert.Nil(t, next)
	assert.Equal(t, "google/gemma-3-27b-it:free", state.EnvVars["OPENROUTER_MODEL"])
}

func TestModelStep_ErrorRetry(t *testing.T) {
	calls := 0
	lister := func(ctx context.Context, apiKey string) ([]core.Model, error) {
		calls++
		return nil, errors.New("unauthorized")
	}

	state := NewInstallState(t.TempDir())
	step := NewModelStep(lister)

	next, cmd := step.Update(nil, state, 80, 24)
	next, _ = next.Update(cmd(), state, 80, 24)
	require.NotNil(t, next)
	assert.Contains(t, next.View(state), "unauthorized")

	next, _ = next.Update(enter, state, 80, 24)
	_, cmd = next.Update(nil, state, 80, 24)
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 2, calls)
}

func TestModelStep_NoFreeModels(t *testing.T) {
	lister := func(ctx context.Context, apiKey string) ([]core.Model, error) {
		return nil, nil
	}
	step := NewModelStep(lister).(*ModelStep)
	msg := step.fetch("key")()
	err, ok := msg.(error)
	require.True(t, ok)
	assert.Contains(t, err.Error(), "no free models")
}

func TestFinalizationStep_KeepsExisting(t *testing.T) {
	state := NewInstallState(t.TempDir())
	state.EnvVars["RELAY_REQUIRE_FREE_MODEL"] = "false"

	next, _ := NewFinalizationStep().Update(nextMsg{}, state, 80, 24)
	assert.Nil(t, next)
	assert.Equal(t, "false", state.EnvVars["RELAY_REQUIRE_FREE_MODEL"])
	assert.Equal(t, "true", state.EnvVars["RELAY_MEMORY_ENABLED"])
	assert.Equal(t, "0", state.EnvVars["RELAY_DEBUG"])
}

func TestSaveEnv_Merges(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("RELAY_PRICING_TTL=60s\nOPENROUTER_MODEL=old\n"), 0o600))

	state := NewInstallState(dir)
	state.EnvVars["OPENROUTER_MODEL"] = "new:free"
	state.EnvVars["OPENROUTER_API_KEY"] = "sk-or-test"

	next, _ := NewSaveEnvStep().Update(nextMsg{}, state, 80, 24)
	assert.Nil(t, next)

	got, err := godotenv.Read(envPath)
	require.NoError(t, err)
	assert.Equal(t, "60s", got["RELAY_PRICING_TTL"])
	assert.Equal(t, "new:free", got["OPENROUTER_MODEL"])
	assert.Equal(t, "sk-or-test", got["OPENROUTER_API_KEY"])
}

func TestInitializeFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "USER.md"), []byte("custom"), 0o644))

	require.NoError(t, InitializeFiles(context.Background(), dir, "/usr/local/bin/relay"))

	system, err := os.ReadFile(filepath.Join(dir, "SYSTEM.md"))
	require.NoError(t, err)
	assert.Contains(t, string(system), dir)

	user, err := os.ReadFile(filepath.Join(dir, "USER.md"))
	require.NoError(t, err)
	assert.Equal(t, "custom", string(user), "existing prompt files are kept")

	_, err = os.Stat(filepath.Join(dir, "IDENTITY.md"))
	require.NoError(t, err)

	cfg, err := mcp.NewFileStorage(filepath.Join(dir, "mcp_config.json")).Load(context.Background())
	require.NoError(t, err)
	srv, ok := cfg.MCPServers[mcp.MemoryServerName]
	require.True(t, ok)
	assert.Equal(t, "/usr/local/bin/relay", srv.Command)
}

func TestWizard_CtrlC(t *testing.T) {
	m := initialModel(Options{RuntimePath: t.TempDir()})
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, next.(model).quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, "Installation cancelled.\n", next.View())
}

func TestWizard_AdvancesSteps(t *testing.T) {
	m := initialModel(Options{RuntimePath: t.TempDir()})
	assert.Contains(t, m.View(), "Installing TuskRelay")

	next, _ := m.Update(typeText("sk-or-test"))
	next, _ = next.Update(enter)
	got := next.(model)
	assert.Equal(t, 1, got.currentStep)
	assert.Equal(t, "sk-or-test", got.state.EnvVars["OPENROUTER_API_KEY"])
}
