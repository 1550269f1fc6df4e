package api

import (
	"net/http"
	"strings"

	"github.com/sandevgo/tuskrelay/internal/core"
)

var toolDescriptions = map[string]string{
	"Bash":  "Execute shell commands in the workspace",
	"Read":  "Read file contents from the workspace",
	"Write": "Create or overwrite files in the workspace",
	"Edit":  "Find and replace text in files",
	"Glob":  "List files matching glob patterns",
	"Grep":  "Search for text patterns in files",

	"mcp__memory__memory_search":  "Search stored memory blocks by keyword",
	"mcp__memory__memory_upsert":  "Create or update a memory block",
	"mcp__memory__memory_context": "Render the memory context for the agent",
}

type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Native      bool   `json:"native"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    core.RelayName,
		"version": core.RelayVersion,
		"status":  "running",
		"endpoints": map[string]string{
			"chat":      "/chat/stream",
			"memory":    "/memory",
			"workspace": "/workspace",
			"tools":     "/tools",
			"models":    "/models/free",
			"websocket": "/ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	tools := make([]toolInfo, 0, len(s.opts.AllowedTools))
	for _, name := range s.opts.AllowedTools {
		tools = append(tools, toolInfo{
			Name:        name,
			Description: toolDescriptions[name],
			Native:      !isMCPTool(name),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"info":  "Tools are executed by the agent CLI during chat turns",
		"tools": tools,
		"note":  "Use /chat/stream or /ws to interact with the agent.",
	})
}

func isMCPTool(name string) bool {
	return strings.HasPrefix(name, "mcp__")
}

func (s *Server) handleFreeModels(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pricing == nil {
		writeError(w, http.StatusServiceUnavailable, "model pricing is not configured")
		return
	}
	models, err := s.deps.Pricing.FreeModels(r.Context(), queryBool(r, "refresh", false))
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load free models")
		writeError(w, http.StatusBadGateway, "failed to load models from provider")
		return
	}
	if models == nil {
		models = []core.Model{}
	}
	var current string
	if s.deps.Relay != nil {
		current = s.deps.Relay.Model()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current": current,
		"models":  models,
	})
}
