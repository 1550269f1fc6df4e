package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sandevgo/tuskrelay/internal/config"
	"github.com/sandevgo/tuskrelay/internal/providers/mcp"
	"github.com/sandevgo/tuskrelay/internal/service/memory"
	"github.com/sandevgo/tuskrelay/internal/storage/sqlite"
	mcpserver "github.com/sandevgo/tuskrelay/internal/transport/mcp"
	"github.com/sandevgo/tuskrelay/pkg/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the memory tools over MCP stdio",
	Long:  `Runs the memory MCP server on stdin/stdout. The agent CLI launches this through mcp_config.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			return err
		}
		appCfg, err := config.LoadAppConfig()
		if err != nil {
			return fmt.Errorf("failed to parse App config: %w", err)
		}

		db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
		if err != nil {
			return err
		}
		defer db.Close()

		mem := memory.NewService(sqlite.NewMemoryBlocksRepo(db), appCfg.MemoryTokenBudget)
		return mcpserver.NewServer(mem, appCfg.MemoryLabels).Serve(ctx, os.Stdin, os.Stdout)
	},
}

var mcpListCmd = &cobra.Command{
	Use:   "list",
	Short: "Connect to the configured MCP servers and list their tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			return err
		}
		appCfg, err := config.LoadAppConfig()
		if err != nil {
			return fmt.Errorf("failed to parse App config: %w", err)
		}

		cfg, err := mcp.NewFileStorage(appCfg.GetMCPConfigPath()).Load(ctx)
		if err != nil {
			return err
		}
		statuses := mcp.NewProber(mcp.Connect, mcp.DefaultProbeTimeout).Probe(ctx, cfg)

		failed := 0
		for _, s := range statuses {
			if !s.OK() {
				failed++
			}
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(statuses); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
		if failed > 0 {
			log.FromCtx(ctx).Warn().Int("failed", failed).Msg("some mcp servers are unreachable")
		}
		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpListCmd)
	rootCmd.AddCommand(mcpCmd)
}
