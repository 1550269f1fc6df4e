package main

import (
	"fmt"
	"io"

	"github.com/sandevgo/tuskrelay/internal/config"
	"github.com/sandevgo/tuskrelay/internal/service/ui"
	"github.com/sandevgo/tuskrelay/internal/service/workspace"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	treeDepth  int
	treeHidden bool
	treeYAML   bool
)

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Print the agent workspace tree",
	Args:  cobra.MaximumNArgs(1),
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

		ws, err := workspace.New(appCfg.GetWorkspacePath())
		if err != nil {
			return err
		}
		rel := ""
		if len(args) == 1 {
			rel = args[0]
		}
		root, err := ws.Tree(rel, treeDepth, treeHidden)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if treeYAML {
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(root); err != nil {
				return err
			}
			return enc.Close()
		}
		fmt.Fprintln(out, ui.TitleStyle.Render(ws.Root()))
		printTree(out, root.Children, "")
		return nil
	},
}

func printTree(w io.Writer, files []workspace.File, indent string) {
	for i, f := range files {
		branch, next := "├── ", "│   "
		if i == len(files)-1 {
			branch, next = "└── ", "    "
		}
		name := f.Name
		if f.IsDirectory {
			name = ui.UsageStyle.Render(name + "/")
		}
		fmt.Fprintln(w, indent+branch+name)
		if len(f.Children) > 0 {
			printTree(w, f.Children, indent+next)
		}
	}
}

func init() {
	treeCmd.Flags().IntVar(&treeDepth, "depth", workspace.DefaultTreeDepth, "maximum depth")
	treeCmd.Flags().BoolVar(&treeHidden, "hidden", false, "include dotfiles")
	treeCmd.Flags().BoolVar(&treeYAML, "yaml", false, "print the tree as YAML")
	rootCmd.AddCommand(treeCmd)
}
