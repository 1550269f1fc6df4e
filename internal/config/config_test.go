package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppConfig_Defaults(t *testing.T) {
	runtime := t.TempDir()
	t.Setenv("RELAY_RUNTIME_PATH", runtime)

	c, err := LoadAppConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8000", c.ListenAddr)
	assert.Equal(t, 5*time.Minute, c.TurnTimeout)
	assert.Equal(t, []string{"human", "persona", "preferences", "knowledge"}, c.MemoryLabels)
	assert.Equal(t, filepath.Join(runtime, "workspace"), c.GetWorkspacePath())
	assert.Equal(t, filepath.Join(runtime, "relay.db"), c.GetDatabasePath())
	assert.Equal(t, filepath.Join(runtime, ".env"), c.GetEnvPath())
}

func TestLoadAppConfig_AbsoluteWorkspace(t *testing.T) {
	ws := t.TempDir()
	t.Setenv("RELAY_RUNTIME_PATH", t.TempDir())
	t.Setenv("RELAY_WORKSPACE_PATH", ws)

	c, err := LoadAppConfig()
	require.NoError(t, err)
	assert.Equal(t, ws, c.GetWorkspacePath())
}

func TestLoadOpenRouterConfig(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		t.Setenv("OPENROUTER_API_KEY", "")
		_, err := LoadOpenRouterConfig()
		assert.Error(t, err)
	})

	t.Run("proxy overrides base url", func(t *testing.T) {
		t.Setenv("OPENROUTER_API_KEY", "sk-test")
		t.Setenv("RELAY_PROXY_URL", "http://127.0.0.1:8787")

		c, err := LoadOpenRouterConfig()
		require.NoError(t, err)
		assert.True(t, c.RequireFree)
		assert.Equal(t, 300*time.Second, c.PricingTTL)
		assert.Equal(t, "http://127.0.0.1:8787", c.AgentBaseURL())
	})
}

func TestLoadAgentConfig_DefaultPrompt(t *testing.T) {
	c, err := LoadAgentConfig()
	require.NoError(t, err)

	assert.Contains(t, c.DisallowedTools, "WebSearch")
	assert.Contains(t, c.AllowedTools, "Read")
	assert.NotEmpty(t, c.SystemPrompt)
	assert.True(t, c.PartialMessages)
}
