package main

import (
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aristath/finassist/internal/config"
	"github.com/aristath/finassist/internal/scheduler"
	"github.com/aristath/finassist/internal/tui"
)

func newChatCmd(root *rootOptions) *cobra.Command {
	var userID, contextPath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session. The right-hand panes show the tasks
planned for each message and their progress. Press Ctrl+S to edit settings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := root.load()
			if err != nil {
				return err
			}
			var fc scheduler.FinancialContext
			if contextPath != "" {
				if fc, err = readFinancialContext(contextPath); err != nil {
					return err
				}
			}
			globalPath, err := config.GlobalPath()
			if err != nil {
				return err
			}
			projectPath := root.configPath
			if projectPath == "" {
				projectPath = filepath.Join(config.Dir, "config.json")
			}

			// Logs would corrupt the alternate screen.
			logFile, err := openLogFile(cfg)
			if err != nil {
				return err
			}
			defer logFile.Close()

			a, err := newApp(ctx, cfg, logFile)
			if err != nil {
				return err
			}
			defer a.Close()

			coord, err := a.withCoordinator(ctx, root.completer)
			if err != nil {
				return err
			}

			model := tui.New(ctx, coord, a.bus, tui.Options{
				UserID:            userID,
				FinancialContext:  fc,
				Config:            cfg,
				GlobalConfigPath:  globalPath,
				ProjectConfigPath: projectPath,
			})
			_, err = tea.NewProgram(model,
				tea.WithAltScreen(),
				tea.WithContext(ctx),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			).Run()
			return err
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "local", "User ID for memory and history")
	cmd.Flags().StringVarP(&contextPath, "context", "c", "", "JSON file with the financial context")
	return cmd
}
