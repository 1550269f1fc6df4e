package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/sandevgo/tuskrelay/pkg/log"
)

type FileStorage struct {
	path string
	mu   sync.RWMutex
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{
		path: path,
	}
}

func (c *FileStorage) Path() string { return c.path }

// Load reads the config. If the file is missing, it creates a default one.
func (c *FileStorage) Load(ctx context.Context) (*Config, error) {
	c.mu.RLock()
	data, err := os.ReadFile(c.path)
	c.mu.RUnlock()

	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read mcp config: %w", err)
		}

		dir := filepath.Dir(c.path)
		if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
			return nil, fmt.Errorf("config directory does not exist: %w", err)
		}

		log.FromCtx(ctx).Info().Str("path", c.path).Msg("mcp config not found, creating default")

		config := &Config{MCPServers: make(map[string]ServerConfig)}
		if err = c.Save(ctx, config); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}

	config := &Config{}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse mcp config: %w", err)
	}
	if config.MCPServers == nil {
		config.MCPServers = make(map[string]ServerConfig)
	}
	return config, nil
}

func (c *FileStorage) Save(ctx context.Context, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// Ensure registers server under name, leaving the other entries untouched.
// It reports whether the file changed.
func (c *FileStorage) Ensure(ctx context.Context, name string, server ServerConfig) (bool, error) {
	if _, err := server.GetTransport(); err != nil {
		return false, fmt.Errorf("server %q: %w", name, err)
	}
	cfg, err := c.Load(ctx)
	if err != nil {
		return false, err
	}
	if current, ok := cfg.MCPServers[name]; ok && reflect.DeepEqual(current, server) {
		return false, nil
	}
	cfg.MCPServers[name] = server
	if err := c.Save(ctx, cfg); err != nil {
		return false, err
	}
	log.FromCtx(ctx).Info().Str("server", name).Msg("mcp server registered")
	return true, nil
}
