// Package mcp manages the MCP server configuration handed to the agent CLI
// and probes the configured servers.
package mcp

import "fmt"

type TransportType string

const (
	TransportHTTP  TransportType = "http"
	TransportSSE   TransportType = "sse"
	TransportStdio TransportType = "stdio"
)

// MemoryServerName is the entry under which the relay registers its own memory server.
// Tools it exposes reach the agent as mcp__memory__<tool>.
const MemoryServerName = "memory"

// Config mirrors the --mcp-config file format of the claude CLI.
type Config struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

type ServerConfig struct {
	Type    TransportType     `json:"type,omitempty"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (c *ServerConfig) GetTransport() (TransportType, error) {
	switch c.Type {
	case TransportHTTP, TransportSSE:
		if c.URL == "" {
			return "", fmt.Errorf("invalid config: %s transport without url", c.Type)
		}
		return c.Type, nil
	case TransportStdio:
		if c.Command == "" {
			return "", fmt.Errorf("invalid config: stdio transport without command")
		}
		return TransportStdio, nil
	case "":
	default:
		return "", fmt.Errorf("invalid config: unknown transport %q", c.Type)
	}

	if c.URL != "" {
		return TransportHTTP, nil
	}
	if c.Command != "" {
		return TransportStdio, nil
	}
	return "", fmt.Errorf("invalid config: neither url nor command provided")
}

// MemoryServer is the entry that launches `<executable> mcp` over stdio.
func MemoryServer(executable, runtimePath string) ServerConfig {
	return ServerConfig{
		Type:    TransportStdio,
		Command: executable,
		Args:    []string{"mcp"},
		Env:     map[string]string{"RELAY_RUNTIME_PATH": runtimePath},
	}
}
