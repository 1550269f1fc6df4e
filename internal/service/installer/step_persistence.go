package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandevgo/tuskrelay/configs"
	"github.com/sandevgo/tuskrelay/internal/providers/mcp"
	"github.com/sandevgo/tuskrelay/internal/service/memory"
	"github.com/sandevgo/tuskrelay/pkg/env"
)

// SaveEnvStep merges the collected configuration into <runtime>/.env
type SaveEnvStep struct {
	err   error
	saved bool
}

func NewSaveEnvStep() Step {
	return &SaveEnvStep{}
}

func (s *SaveEnvStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *SaveEnvStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.saved {
		return nil, nil
	}
	if err := SaveEnv(state); err != nil {
		s.err = err
		return s, nil
	}
	s.saved = true
	return nil, nil
}

// SaveEnv writes state.EnvVars to the runtime .env, keeping keys it does not set.
func SaveEnv(state *InstallState) error {
	if err := os.MkdirAll(state.RuntimePath, 0o755); err != nil {
		return fmt.Errorf("failed to create runtime directory: %w", err)
	}
	return env.WriteFile(filepath.Join(state.RuntimePath, ".env"), state.EnvVars)
}

func (s *SaveEnvStep) View(state *InstallState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", s.err)) + "\n\n(press ctrl+c to quit)\n"
	}
	if s.saved {
		return "Configuration saved successfully!\n"
	}
	return "Saving configuration...\n"
}

// InitializeFilesStep writes the default prompt files and registers the memory MCP server
type InitializeFilesStep struct {
	executable string
	err        error
	done       bool
}

func NewInitializeFilesStep(executable string) Step {
	return &InitializeFilesStep{executable: executable}
}

func (s *InitializeFilesStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *InitializeFilesStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.done {
		return nil, nil
	}
	if err := InitializeFiles(context.Background(), state.RuntimePath, s.executable); err != nil {
		s.err = err
		return s, nil
	}
	s.done = true
	return nil, nil
}

// InitializeFiles copies prompt files that do not exist yet and makes sure
// mcp_config.json launches the memory server.
func InitializeFiles(ctx context.Context, runtimePath, executable string) error {
	if err := os.MkdirAll(runtimePath, 0o755); err != nil {
		return fmt.Errorf("failed to create runtime directory: %w", err)
	}

	for _, name := range memory.PromptFiles {
		dst := filepath.Join(runtimePath, name)
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		data, err := configs.FS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read embedded %s: %w", name, err)
		}
		if name == "SYSTEM.md" {
			data = []byte(fmt.Sprintf(string(data), runtimePath))
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dst, err)
		}
	}

	if executable == "" {
		return nil
	}
	storage := mcp.NewFileStorage(filepath.Join(runtimePath, "mcp_config.json"))
	if _, err := storage.Ensure(ctx, mcp.MemoryServerName, mcp.MemoryServer(executable, runtimePath)); err != nil {
		return fmt.Errorf("failed to register memory mcp server: %w", err)
	}
	return nil
}

func (s *InitializeFilesStep) View(state *InstallState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", s.err)) + "\n\n(press ctrl+c to quit)\n"
	}
	if s.done {
		return "Runtime files initialized successfully!\n"
	}
	return "Initializing runtime files...\n"
}
