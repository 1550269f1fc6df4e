package main

import (
	"context"
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/sandevgo/tuskrelay/internal/config"
	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/internal/providers/openrouter"
	"github.com/sandevgo/tuskrelay/internal/service/installer"
	"github.com/sandevgo/tuskrelay/internal/service/pricing"
	"github.com/sandevgo/tuskrelay/pkg/log"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:           "install",
	Short:         "Configure TuskRelay interactively",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting installation process")

		runtimePath := config.GetRuntimePath()
		exe, err := os.Executable()
		if err != nil {
			logger.Warn().Err(err).Msg("cannot resolve executable, memory mcp server not registered")
		}

		// run wizard (includes save step)
		_, err = installer.RunWizard(installer.Options{
			RuntimePath: runtimePath,
			Executable:  exe,
			ListModels:  listFreeModels,
		})
		if errors.Is(err, installer.ErrInterrupted) {
			logger.Warn().Msg("installation cancelled")
			return nil
		}
		if err != nil {
			return err
		}

		envPath := config.AppConfig{RuntimePath: runtimePath}.GetEnvPath()
		if err := godotenv.Load(envPath); err != nil {
			logger.Warn().Err(err).Str("path", envPath).Msg("failed to load .env file")
		}

		logger.Info().Msgf("initialized runtime directory at: %s", runtimePath)
		logger.Info().Msg("Installation complete! You can now run 'relay start'.")
		return nil
	},
}

func listFreeModels(ctx context.Context, apiKey string) ([]core.Model, error) {
	baseURL := os.Getenv("OPENROUTER_BASE_URL")
	if baseURL == "" {
		baseURL = config.DefaultOpenRouterBaseURL
	}
	return pricing.NewPolicy(openrouter.NewClient(baseURL, apiKey), 0).FreeModels(ctx, true)
}

func init() {
	rootCmd.AddCommand(installCmd)
}
