package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/tuskrelay/internal/config"
	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/internal/providers/mcp"
	"github.com/sandevgo/tuskrelay/internal/providers/openrouter"
	"github.com/sandevgo/tuskrelay/internal/service/memory"
	"github.com/sandevgo/tuskrelay/internal/service/pricing"
	"github.com/sandevgo/tuskrelay/internal/service/relay"
	"github.com/sandevgo/tuskrelay/internal/service/workspace"
	"github.com/sandevgo/tuskrelay/internal/storage/archive"
	"github.com/sandevgo/tuskrelay/internal/storage/sqlite"
	"github.com/sandevgo/tuskrelay/internal/transport/api"
	"github.com/sandevgo/tuskrelay/internal/upstream"
	"github.com/sandevgo/tuskrelay/pkg/log"
	"github.com/sandevgo/tuskrelay/pkg/srv"
)

// Stack holds everything a transport needs to serve turns.
type Stack struct {
	App           *config.AppConfig
	Agent         *config.AgentConfig
	Relay         *relay.Relay
	Conversations core.ConversationRepository
	Memory        *memory.Service
	Workspace     *workspace.Workspace
	Pricing       *pricing.Policy
	// Closers release the stores; they run last on shutdown.
	Closers []srv.Service
}

// NewServices wires the stack behind the HTTP API.
func NewServices(ctx context.Context) []srv.Service {
	st := NewStack(ctx)
	services := append([]srv.Service{}, st.Closers...)

	services = append(services, api.NewServer(ctx, api.Deps{
		Relay:         st.Relay,
		Conversations: st.Conversations,
		Memory:        st.Memory,
		Workspace:     st.Workspace,
		Pricing:       st.Pricing,
	}, api.Options{
		ListenAddr:   st.App.ListenAddr,
		CORSOrigins:  st.App.CORSOrigins,
		AllowedTools: st.Agent.AllowedTools,
		MemoryLabels: st.App.MemoryLabels,
	}))
	return services
}

func NewStack(ctx context.Context) *Stack {
	logger := log.FromCtx(ctx)
	closers := make([]srv.Service, 0)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	orCfg := config.NewOpenRouterConfig(ctx)
	agentCfg := config.NewAgentConfig(ctx)

	// 2. Storage
	db, conversations, memoryRepo, err := initStorage(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	closers = append(closers, srv.NewCleanup("database", db.Close))

	transcripts, err := archive.Open(appCfg.GetArchivePath(), appCfg.GetTranscriptLogPath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open transcript archive")
	}
	closers = append(closers, srv.NewCleanup("transcript archive", transcripts.Close))

	// 3. Model policy
	policy := pricing.NewPolicy(openrouter.NewClient(orCfg.BaseURL, orCfg.APIKey), orCfg.PricingTTL)
	if err := verifyModel(ctx, policy, orCfg); err != nil {
		logger.Fatal().Err(err).Msg("model check failed")
	}

	// 4. Agent CLI
	if err := ensureMemoryServer(ctx, appCfg); err != nil {
		logger.Warn().Err(err).Msg("memory tools will not be available to the agent")
	}
	adapter := upstream.NewAdapter(upstream.Config{
		CLIPath:         agentCfg.CLIPath,
		BaseURL:         orCfg.AgentBaseURL(),
		AuthToken:       orCfg.APIKey,
		Model:           orCfg.Model,
		MCPConfigPath:   appCfg.GetMCPConfigPath(),
		PermissionMode:  agentCfg.PermissionMode,
		PartialMessages: agentCfg.PartialMessages,
	})

	ws, err := workspace.New(appCfg.GetWorkspacePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize workspace")
	}

	// 5. Memory + relay
	mem := memory.NewService(memoryRepo, appCfg.MemoryTokenBudget)
	r := relay.New(relay.Deps{
		Upstream:      adapter,
		Conversations: conversations,
		Memory:        mem,
		Prompt:        memory.NewSysPrompt(appCfg.GetRuntimePath(), agentCfg.SystemPrompt),
		Archive:       transcripts,
	}, relay.Options{
		AgentID:         appCfg.AgentID,
		Model:           orCfg.Model,
		AllowedTools:    agentCfg.AllowedTools,
		DisallowedTools: agentCfg.DisallowedTools,
		WorkDir:         ws.Root(),
		TurnTimeout:     appCfg.TurnTimeout,
		MemoryEnabled:   appCfg.MemoryEnabled,
		MemoryLabels:    appCfg.MemoryLabels,
	})

	return &Stack{
		App:           appCfg,
		Agent:         agentCfg,
		Relay:         r,
		Conversations: conversations,
		Memory:        mem,
		Workspace:     ws,
		Pricing:       policy,
		Closers:       closers,
	}
}

func initStorage(ctx context.Context, cfg *config.AppConfig) (*sql.DB, core.ConversationRepository, core.MemoryRepository, error) {
	db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
	if err != nil {
		return nil, nil, nil, err
	}
	return db, sqlite.NewConversationsRepo(db), sqlite.NewMemoryBlocksRepo(db), nil
}

// verifyModel refuses paid, unknown or unverifiable models when RELAY_REQUIRE_FREE_MODEL
// is set. Without it every failure is logged and startup continues.
func verifyModel(ctx context.Context, policy *pricing.Policy, cfg *config.OpenRouterConfig) error {
	logger := log.FromCtx(ctx)
	m, err := policy.EnsureFree(ctx, cfg.Model)
	if err == nil {
		logger.Info().Str("model", m.ID).Int("context_length", m.ContextLength).Msg("using free model")
		return nil
	}
	if cfg.RequireFree {
		var notFree *pricing.ModelNotFreeError
		var notFound *pricing.ModelNotFoundError
		if errors.As(err, &notFree) || errors.As(err, &notFound) {
			return fmt.Errorf("configured model is not allowed, run 'relay models' to pick a free one: %w", err)
		}
		return fmt.Errorf("failed to verify model pricing: %w", err)
	}
	logger.Warn().Err(err).Msg("configured model is not a verified free model")
	return nil
}

func ensureMemoryServer(ctx context.Context, cfg *config.AppConfig) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	storage := mcp.NewFileStorage(cfg.GetMCPConfigPath())
	added, err := storage.Ensure(ctx, mcp.MemoryServerName, mcp.MemoryServer(exe, cfg.GetRuntimePath()))
	if err != nil {
		return err
	}
	if added {
		log.FromCtx(ctx).Info().Str("path", storage.Path()).Msg("registered memory mcp server")
	}
	return nil
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
