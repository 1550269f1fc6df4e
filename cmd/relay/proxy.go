package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sandevgo/tuskrelay/internal/config"
	"github.com/sandevgo/tuskrelay/internal/proxy"
	"github.com/sandevgo/tuskrelay/pkg/log"
	"github.com/sandevgo/tuskrelay/pkg/srv"
	"github.com/spf13/cobra"
)

var proxyAddr string

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run a reverse proxy that pins every request to the configured model",
	Long: `Forwards Anthropic-style requests to OpenRouter, replacing the "model" field with
OPENROUTER_MODEL. Point RELAY_PROXY_URL at it to keep the agent CLI on a free model.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			return err
		}
		orCfg, err := config.LoadOpenRouterConfig()
		if err != nil {
			return fmt.Errorf("failed to parse OpenRouter config: %w", err)
		}

		p, err := proxy.New(ctx, proxy.Options{
			ListenAddr: proxyAddr,
			Target:     orCfg.BaseURL,
			APIKey:     orCfg.APIKey,
			Model:      orCfg.Model,
		})
		if err != nil {
			return err
		}

		services := []srv.Service{p}
		srv.StartServices(ctx, services)
		srv.ShutdownServices(ctx, services)
		log.FromCtx(ctx).Info().Msg("proxy stopped")
		return nil
	},
}

func init() {
	proxyCmd.Flags().StringVar(&proxyAddr, "addr", ":9999", "listen address")
	rootCmd.AddCommand(proxyCmd)
}
