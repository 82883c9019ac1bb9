package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aristath/finassist/internal/events"
	"github.com/aristath/finassist/internal/orchestrator"
	"github.com/aristath/finassist/internal/scheduler"
)

type askOptions struct {
	userID      string
	attachPath  string
	contextPath string
	jsonOutput  bool
	verbose     bool
}

func newAskCmd(root *rootOptions) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask MESSAGE",
		Short: "Send a message to the assistant",
		Long: `Send a message to the assistant and print its reply.

Examples:
  finassist ask "Gastei 50 reais no supermercado"
  finassist ask "Analise meus gastos e importe este extrato" --attach extrato.csv
  finassist ask "How much can I save this month?" --context accounts.json --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, root, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&opts.userID, "user", "u", "local", "User ID for memory and history")
	cmd.Flags().StringVarP(&opts.attachPath, "attach", "a", "", "Attach a statement, receipt or invoice")
	cmd.Flags().StringVarP(&opts.contextPath, "context", "c", "", "JSON file with the financial context (accounts, cards, recent transactions)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the full response as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print task events and timings to stderr")
	return cmd
}

func runAsk(cmd *cobra.Command, root *rootOptions, opts *askOptions, message string) error {
	ctx := cmd.Context()

	cfg, err := root.load()
	if err != nil {
		return err
	}

	req := orchestrator.Request{Message: message, UserID: opts.userID}
	if opts.contextPath != "" {
		fc, err := readFinancialContext(opts.contextPath)
		if err != nil {
			return err
		}
		req.FinancialContext = fc
	}
	if opts.attachPath != "" {
		att, err := readAttachment(opts.attachPath)
		if err != nil {
			return err
		}
		req.Attachment = att
	}

	a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	coord, err := a.withCoordinator(ctx, root.completer)
	if err != nil {
		return err
	}

	var printed chan struct{}
	if opts.verbose {
		printed = make(chan struct{})
		sub := a.bus.SubscribeAll(64)
		go func() {
			defer close(printed)
			for ev := range sub {
				printEvent(cmd.ErrOrStderr(), ev)
			}
		}()
	}

	resp := coord.ProcessRequest(ctx, req)

	if opts.verbose {
		a.bus.Close()
		<-printed
		printStats(cmd.ErrOrStderr(), a)
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintln(out, resp.Message)
	if len(resp.Sources) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Sources (confidence %.2f):\n", resp.ConfidenceScore)
		for _, s := range resp.Sources {
			fmt.Fprintf(out, "  - [%s] %s (%.2f)\n", s.Type, s.Title, s.Confidence)
		}
	}
	if !resp.Success {
		return fmt.Errorf("request failed (workflow %s)", resp.WorkflowID)
	}
	return nil
}

func readFinancialContext(path string) (scheduler.FinancialContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading context: %w", err)
	}
	var fc scheduler.FinancialContext
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing context %s: %w", path, err)
	}
	return fc, nil
}

func readAttachment(path string) (*scheduler.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}
	return &scheduler.Attachment{
		Name:     filepath.Base(path),
		MIMEType: mime.TypeByExtension(filepath.Ext(path)),
		Data:     data,
	}, nil
}

func printEvent(w io.Writer, ev events.Event) {
	switch e := ev.(type) {
	case events.TaskStartedEvent:
		fmt.Fprintf(w, "▶ %s %s (%s)\n", e.Kind, short(e.ID), e.Priority)
	case events.TaskCompletedEvent:
		fmt.Fprintf(w, "✓ %s %s in %s\n", e.Kind, short(e.ID), e.Duration.Round(1e6))
	case events.TaskFailedEvent:
		fmt.Fprintf(w, "✗ %s %s: %v\n", e.Kind, short(e.ID), e.Err)
	case events.TaskSkippedEvent:
		fmt.Fprintf(w, "- %s %s skipped (dependency %s failed)\n", e.Kind, short(e.ID), short(e.Cause))
	case events.WorkflowStartedEvent:
		fmt.Fprintf(w, "workflow planned with %d task(s)\n", e.Total)
	case events.WorkflowCompletedEvent:
		fmt.Fprintf(w, "workflow success=%t tasks=%d completed=%d failed=%d elapsed=%s\n",
			e.Success, e.Total, e.Completed, e.Failed, e.Elapsed.Round(1e6))
	}
}

func printStats(w io.Writer, a *app) {
	stats := a.window.Stats()
	for _, k := range a.window.Kinds() {
		s := stats[k]
		fmt.Fprintf(w, "  %-20s runs=%d success=%.0f%% avg=%s\n", k, s.Count, s.SuccessRate*100, s.AvgDuration.Round(1e6))
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
