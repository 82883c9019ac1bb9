package main

import (
	"github.com/spf13/cobra"

	"github.com/aristath/finassist/internal/backend"
	"github.com/aristath/finassist/internal/config"
)

type rootOptions struct {
	configPath string          // Replaces the project config when set
	completer  backend.Backend // Overrides the configured backend in tests
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&rootOptions{})
}

func newRootCmdWith(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finassist",
		Short: "Personal finance assistant",
		Long: `finassist answers questions about your finances, records expenses and
imports statements. Each message is planned into a small workflow of
document, analysis, operation, validation and reply tasks.

Configuration is read from ~/.finassist/config.json and .finassist/config.json.
The Anthropic backend reads its key from ANTHROPIC_API_KEY.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file to use instead of .finassist/config.json")

	cmd.AddCommand(newAskCmd(opts))
	cmd.AddCommand(newChatCmd(opts))
	cmd.AddCommand(newKnowledgeCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(newConfigCmd())
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	if o.configPath == "" {
		return config.LoadDefault()
	}
	globalPath, err := config.GlobalPath()
	if err != nil {
		return nil, err
	}
	return config.Load(globalPath, o.configPath)
}
