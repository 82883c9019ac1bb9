package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var limit int
	var showTasks bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent requests and their workflow outcome",
		Args:  cobra.NoArgs,
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

			runs, err := a.store.ListWorkflowRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No requests recorded yet.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tUSER\tOUTCOME\tTASKS\tELAPSED\tMESSAGE")
			for _, run := range runs {
				outcome := "ok"
				switch {
				case run.Fallback:
					outcome = "fallback"
				case !run.Success:
					outcome = "failed"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%dms\t%s\n",
					run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					run.UserID, outcome, len(run.Tasks), run.ElapsedMs, truncate(run.Message, 50))
				if showTasks {
					for _, t := range run.Tasks {
						line := fmt.Sprintf("  %s %s", t.Kind, t.Status)
						if t.Error != "" {
							line += ": " + t.Error
						}
						fmt.Fprintf(tw, "\t\t\t\t\t%s\n", line)
					}
				}
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of requests to show")
	cmd.Flags().BoolVar(&showTasks, "tasks", false, "Show each request's tasks")
	return cmd
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
