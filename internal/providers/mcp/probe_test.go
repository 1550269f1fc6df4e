package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoServer() *server.MCPServer {
	s := server.NewMCPServer("echo", "1.0.0", server.WithToolCapabilities(false))
	handler := func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
		return mcpproto.NewToolResultText("ok"), nil
	}
	s.AddTool(mcpproto.NewTool("shout", mcpproto.WithDescription("Shout it")), handler)
	s.AddTool(mcpproto.NewTool("echo", mcpproto.WithDescription("Echo it")), handler)
	return s
}

func TestProber_Probe(t *testing.T) {
	srv := echoServer()
	connect := func(ctx context.Context, cfg ServerConfig) (*client.Client, error) {
		if cfg.Command == "unreachable" {
			return nil, errors.New("exec: not found")
		}
		cli, err := client.NewInProcessClient(srv)
		if err != nil {
			return nil, err
		}
		return start(ctx, cli)
	}

	cfg := &Config{MCPServers: map[string]ServerConfig{
		"memory": {Command: "relay", Args: []string{"mcp"}},
		"down":   {Command: "unreachable"},
		"empty":  {},
	}}

	statuses := NewProber(connect, time.Second).Probe(context.Background(), cfg)
	require.Len(t, statuses, 3)

	assert.Equal(t, "down", statuses[0].Name)
	assert.False(t, statuses[0].OK())
	assert.Contains(t, statuses[0].Error, "not found")

	assert.Equal(t, "empty", statuses[1].Name)
	assert.Contains(t, statuses[1].Error, "neither url nor command")

	mem := statuses[2]
	require.True(t, mem.OK(), mem.Error)
	assert.Equal(t, TransportStdio, mem.Transport)
	require.Len(t, mem.Tools, 2)
	assert.Equal(t, "echo", mem.Tools[0].Name)
	assert.Equal(t, "Echo it", mem.Tools[0].Description)
	assert.Equal(t, "mcp__memory__echo", mem.Tools[0].AgentName)
}

func TestConnect_InvalidConfig(t *testing.T) {
	_, err := Connect(context.Background(), ServerConfig{Type: "grpc", URL: "x"})
	require.Error(t, err)
}
