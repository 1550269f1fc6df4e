package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"RELAY_RUNTIME_PATH" envDefault:".tuskrelay"`
	ListenAddr  string `env:"RELAY_LISTEN_ADDR" envDefault:":8000"`
	// Relative workspace paths are resolved against the runtime dir.
	WorkspacePath string        `env:"RELAY_WORKSPACE_PATH" envDefault:"workspace"`
	TurnTimeout   time.Duration `env:"RELAY_TURN_TIMEOUT" envDefault:"5m"`
	CORSOrigins   []string      `env:"RELAY_CORS_ORIGINS" envDefault:"*" envSeparator:","`
	LogJSON       bool          `env:"RELAY_LOG_JSON"`

	AgentID           string   `env:"RELAY_AGENT_ID" envDefault:"tuskrelay"`
	MemoryEnabled     bool     `env:"RELAY_MEMORY_ENABLED" envDefault:"true"`
	MemoryLabels      []string `env:"RELAY_MEMORY_LABELS" envDefault:"human,persona,preferences,knowledge" envSeparator:","`
	MemoryTokenBudget int      `env:"RELAY_MEMORY_TOKEN_BUDGET" envDefault:"2000"`
}

func LoadAppConfig() (*AppConfig, error) {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		return nil, err
	}
	c.RuntimePath = resolveHome(c.RuntimePath)
	return c, nil
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c, err := LoadAppConfig()
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetWorkspacePath() string {
	if filepath.IsAbs(c.WorkspacePath) {
		return c.WorkspacePath
	}
	return filepath.Join(c.RuntimePath, c.WorkspacePath)
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "relay.db")
}

func (c AppConfig) GetArchivePath() string {
	return filepath.Join(c.RuntimePath, "transcripts.bolt")
}

// GetTranscriptLogPath is the file mirroring the most recent turn transcript.
func (c AppConfig) GetTranscriptLogPath() string {
	return filepath.Join(c.RuntimePath, "chat-stream.log")
}

func (c AppConfig) GetMCPConfigPath() string {
	return filepath.Join(c.RuntimePath, "mcp_config.json")
}

func (c AppConfig) GetEnvPath() string {
	return filepath.Join(c.RuntimePath, ".env")
}
