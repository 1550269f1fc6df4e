package mcp

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/sandevgo/tuskrelay/pkg/log"
)

const DefaultProbeTimeout = 15 * time.Second

type ToolInfo struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// AgentName is how the claude CLI addresses the tool in allow and deny lists.
	AgentName string `json:"agent_name" yaml:"agent_name"`
}

type ServerStatus struct {
	Name      string        `json:"name" yaml:"name"`
	Transport TransportType `json:"transport,omitempty" yaml:"transport,omitempty"`
	Tools     []ToolInfo    `json:"tools,omitempty" yaml:"tools,omitempty"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}

func (s ServerStatus) OK() bool { return s.Error == "" }

// Prober connects to every configured server and lists its tools, the same
// view the agent CLI gets at the start of a turn.
type Prober struct {
	connect Transport
	timeout time.Duration
}

func NewProber(connect Transport, timeout time.Duration) *Prober {
	if connect == nil {
		connect = Connect
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{connect: connect, timeout: timeout}
}

func (p *Prober) Probe(ctx context.Context, cfg *Config) []ServerStatus {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make([]ServerStatus, 0, len(cfg.MCPServers))
	)
	for name, srv := range cfg.MCPServers {
		wg.Add(1)
		go func(name string, srv ServerConfig) {
			defer wg.Done()
			status := p.probeOne(ctx, name, srv)
			mu.Lock()
			out = append(out, status)
			mu.Unlock()
		}(name, srv)
	}
	wg.Wait()

	slices.SortFunc(out, func(a, b ServerStatus) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (p *Prober) probeOne(ctx context.Context, name string, srv ServerConfig) ServerStatus {
	status := ServerStatus{Name: name}
	t, err := srv.GetTransport()
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Transport = t

	tCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cli, err := p.connect(tCtx, srv)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("server", name).Msg("mcp server unreachable")
		status.Error = err.Error()
		return status
	}
	defer func(cli *client.Client) { _ = cli.Close() }(cli)

	resp, err := cli.ListTools(tCtx, mcpproto.ListToolsRequest{})
	if err != nil {
		status.Error = fmt.Sprintf("failed to list tools: %v", err)
		return status
	}
	for _, tool := range resp.Tools {
		status.Tools = append(status.Tools, ToolInfo{
			Name:        tool.Name,
			Description: tool.Description,
			AgentName:   AgentToolName(name, tool.Name),
		})
	}
	slices.SortFunc(status.Tools, func(a, b ToolInfo) int { return strings.Compare(a.Name, b.Name) })
	return status
}

// AgentToolName is the mcp__<server>__<tool> form used by the claude CLI.
func AgentToolName(server, tool string) string {
	return "mcp__" + server + "__" + tool
}
