package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/sandevgo/tuskrelay/internal/config"
	"github.com/sandevgo/tuskrelay/internal/providers/openrouter"
	"github.com/sandevgo/tuskrelay/internal/service/pricing"
	"github.com/sandevgo/tuskrelay/internal/service/ui"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the free OpenRouter models available to your key",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			return err
		}
		orCfg, err := config.LoadOpenRouterConfig()
		if err != nil {
			return fmt.Errorf("failed to parse OpenRouter config: %w", err)
		}

		policy := pricing.NewPolicy(openrouter.NewClient(orCfg.BaseURL, orCfg.APIKey), orCfg.PricingTTL)
		models, err := policy.FreeModels(ctx, true)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.TitleStyle.Render(fmt.Sprintf("FREE MODELS (%d)", len(models))))

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCONTEXT\tNAME")
		for _, m := range models {
			id := m.ID
			if m.ID == orCfg.Model {
				id = ui.OKStyle.Render("* " + m.ID)
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\n", id, m.ContextLength, ui.DescStyle.Render(m.Name))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
