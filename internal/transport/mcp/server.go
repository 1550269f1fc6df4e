// Package mcp serves the relay's memory store to the agent CLI as an MCP server over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"strings"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/internal/service/memory"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

const (
	ToolSearch  = "memory_search"
	ToolUpsert  = "memory_upsert"
	ToolContext = "memory_context"

	defaultSearchLimit = 10
)

type MemoryService interface {
	Search(ctx context.Context, query string, filter core.MemoryFilter) ([]core.MemoryBlock, error)
	Upsert(ctx context.Context, b core.MemoryBlock) (*core.MemoryBlock, error)
	BuildContext(ctx context.Context, labels []string) (*memory.Context, error)
}

type Server struct {
	mcp    *server.MCPServer
	memory MemoryService
	labels []string
}

func NewServer(mem MemoryService, labels []string) *Server {
	s := &Server{
		mcp:    server.NewMCPServer("tuskrelay-memory", core.RelayVersion, server.WithToolCapabilities(false)),
		memory: mem,
		labels: labels,
	}

	types := make([]string, len(core.MemoryTypes))
	for i, t := range core.MemoryTypes {
		types[i] = string(t)
	}

	s.mcp.AddTool(mcpproto.NewTool(ToolSearch,
		mcpproto.WithDescription("Search stored memory blocks by keyword in their key or value."),
		mcpproto.WithString("query", mcpproto.Required(), mcpproto.Description("Keyword to look for")),
		mcpproto.WithString("type", mcpproto.Enum(types...), mcpproto.Description("Restrict to one memory type")),
		mcpproto.WithNumber("limit", mcpproto.Description("Maximum number of results, default 10")),
	), s.handleSearch)

	s.mcp.AddTool(mcpproto.NewTool(ToolUpsert,
		mcpproto.WithDescription("Create or replace the memory block identified by type and key."),
		mcpproto.WithString("type", mcpproto.Required(), mcpproto.Enum(types...)),
		mcpproto.WithString("key", mcpproto.Required(), mcpproto.Description("Short identifier, e.g. name or editor")),
		mcpproto.WithString("value", mcpproto.Required(), mcpproto.Description("The fact to remember")),
	), s.handleUpsert)

	s.mcp.AddTool(mcpproto.NewTool(ToolContext,
		mcpproto.WithDescription("Render stored memory as a markdown summary."),
		mcpproto.WithString("labels", mcpproto.Description("Comma separated memory types, default all configured")),
	), s.handleContext)

	return s
}

func (s *Server) Name() string { return "memory mcp server" }

// MCPServer exposes the underlying server for in-process clients.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// Serve speaks MCP over the given streams until ctx is done or in closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	logger := log.FromCtx(ctx).With().Str("component", "mcp").Logger()
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(stdlog.New(logger, "", 0))

	logger.Info().Msg("serving memory tools over stdio")
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("mcp stdio server: %w", err)
	}
	return nil
}

func toolError(err error) *mcpproto.CallToolResult {
	if errors.Is(err, core.ErrInvalid) || errors.Is(err, core.ErrNotFound) {
		return mcpproto.NewToolResultError(err.Error())
	}
	return mcpproto.NewToolResultError("memory store unavailable: " + err.Error())
}

type blockView struct {
	Type  core.MemoryType `json:"type"`
	Key   string          `json:"key"`
	Value string          `json:"value"`
}

func (s *Server) handleSearch(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}

	filter := core.MemoryFilter{Limit: req.GetInt("limit", defaultSearchLimit)}
	if t := req.GetString("type", ""); t != "" {
		mt, err := core.ParseMemoryType(t)
		if err != nil {
			return toolError(err), nil
		}
		filter.Type = mt
	}

	blocks, err := s.memory.Search(ctx, query, filter)
	if err != nil {
		return toolError(err), nil
	}
	if len(blocks) == 0 {
		return mcpproto.NewToolResultText("No memories found."), nil
	}

	views := make([]blockView, len(blocks))
	for i, b := range blocks {
		views[i] = blockView{Type: b.Type, Key: b.Key, Value: b.Value}
	}
	out, err := json.Marshal(views)
	if err != nil {
		return nil, err
	}
	return mcpproto.NewToolResultText(string(out)), nil
}

func (s *Server) handleUpsert(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	var b core.MemoryBlock
	for name, dst := range map[string]*string{"key": &b.Key, "value": &b.Value} {
		v, err := req.RequireString(name)
		if err != nil {
			return mcpproto.NewToolResultError(err.Error()), nil
		}
		*dst = v
	}
	t, err := req.RequireString("type")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}
	b.Type = core.MemoryType(t)
	b.Metadata = map[string]any{"source": "agent"}

	saved, err := s.memory.Upsert(ctx, b)
	if err != nil {
		return toolError(err), nil
	}
	return mcpproto.NewToolResultText(fmt.Sprintf("Saved %s/%s.", saved.Type, saved.Key)), nil
}

func (s *Server) handleContext(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	labels := s.labels
	if raw := req.GetString("labels", ""); raw != "" {
		labels = nil
		for _, l := range strings.Split(raw, ",") {
			if l = strings.TrimSpace(l); l != "" {
				labels = append(labels, l)
			}
		}
	}

	mc, err := s.memory.BuildContext(ctx, labels)
	if err != nil {
		return toolError(err), nil
	}
	if mc.Text == "" {
		return mcpproto.NewToolResultText("No memories stored yet."), nil
	}
	return mcpproto.NewToolResultText(mc.Text), nil
}
