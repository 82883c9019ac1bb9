package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aristath/finassist/internal/persistence"
)

func newKnowledgeCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage the knowledge base used for retrieval",
	}
	cmd.AddCommand(newKnowledgeAddCmd(root))
	cmd.AddCommand(newKnowledgeSearchCmd(root))
	return cmd
}

func newKnowledgeAddCmd(root *rootOptions) *cobra.Command {
	var title, category, id string

	cmd := &cobra.Command{
		Use:   "add FILE|TEXT",
		Short: "Add an entry to the knowledge base",
		Long: `Add an entry to the knowledge base. The argument is read as a file when
one exists at that path, otherwise it is used as the entry text.

Examples:
  finassist knowledge add --title "50/30/20 rule" --category budgeting docs/budgeting.md
  finassist knowledge add --title "Card interest" --category "credit cards" "Revolving credit..."`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := args[0]
			if data, err := os.ReadFile(args[0]); err == nil {
				content = string(data)
			}
			content = strings.TrimSpace(content)
			if content == "" {
				return fmt.Errorf("knowledge entry is empty")
			}

			cfg, err := root.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			entryID, err := a.store.AddKnowledge(cmd.Context(), persistence.KnowledgeEntry{
				ID:       id,
				Title:    title,
				Category: category,
				Content:  content,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added knowledge entry %s\n", entryID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Entry title")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Entry category (listed in context summaries)")
	cmd.Flags().StringVar(&id, "id", "", "Entry ID; an existing entry with this ID is replaced")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newKnowledgeSearchCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Show the knowledge entries closest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			hits, err := a.store.SearchKnowledge(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintln(out, "No knowledge entries found.")
				return nil
			}
			for _, h := range hits {
				fmt.Fprintf(out, "%.3f  %s", h.RawSimilarity, h.Label())
				if c := h.Category(); c != "" {
					fmt.Fprintf(out, " [%s]", c)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of entries")
	return cmd
}
