package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ClaudeAdapter implements Backend by running the Claude CLI in print mode,
// one subprocess per request.
type ClaudeAdapter struct {
	command      string
	workDir      string
	model        string
	systemPrompt string
	procMgr      *ProcessManager
}

// claudeResponse is the JSON printed by `claude -p --output-format json`.
// Older releases nest content blocks under "result"; newer ones print the
// text directly.
type claudeResponse struct {
	SessionID string          `json:"session_id"`
	IsError   bool            `json:"is_error"`
	Result    json.RawMessage `json:"result"`
}

type claudeContent struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewClaudeAdapter creates a Claude CLI backend.
// The ProcessManager is optional - if nil, subprocesses won't be tracked.
func NewClaudeAdapter(cfg Config, procMgr *ProcessManager) (*ClaudeAdapter, error) {
	command := cfg.Command
	if command == "" {
		command = "claude"
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	return &ClaudeAdapter{
		command:      command,
		workDir:      workDir,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		procMgr:      procMgr,
	}, nil
}

// Send runs one CLI invocation and returns its text output.
func (a *ClaudeAdapter) Send(ctx context.Context, msg Message) (Response, error) {
	cmd := newCommand(ctx, a.command, a.buildArgs(msg)...)
	cmd.Dir = a.workDir

	stdout, stderr, err := executeCommand(ctx, cmd, a.procMgr)
	if err != nil {
		return Response{}, fmt.Errorf("claude command failed: %w", err)
	}

	resp, err := parseClaudeResponse(stdout)
	if err != nil {
		return Response{}, fmt.Errorf("failed to parse claude response: %w (stderr: %s)", err, strings.TrimSpace(string(stderr)))
	}
	resp.Model = a.model
	return resp, nil
}

// Name implements Backend.
func (a *ClaudeAdapter) Name() string { return "claude-cli" }

// Close is a no-op (subprocess-per-invocation model).
func (a *ClaudeAdapter) Close() error {
	return nil
}

// buildArgs constructs the command-line arguments for the claude CLI.
func (a *ClaudeAdapter) buildArgs(msg Message) []string {
	args := []string{"-p", msg.Content, "--output-format", "json"}

	if a.model != "" {
		args = append(args, "--model", a.model)
	}

	system := msg.System
	if system == "" {
		system = a.systemPrompt
	}
	if system != "" {
		args = append(args, "--system-prompt", system)
	}

	return args
}

// parseClaudeResponse extracts the text from the CLI's JSON output.
func parseClaudeResponse(data []byte) (Response, error) {
	var cr claudeResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return Response{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	var content string
	if len(cr.Result) > 0 {
		var text string
		if err := json.Unmarshal(cr.Result, &text); err == nil {
			content = text
		} else {
			var nested claudeContent
			if err := json.Unmarshal(cr.Result, &nested); err != nil {
				return Response{}, fmt.Errorf("unexpected result shape: %w", err)
			}
			for _, item := range nested.Content {
				if item.Type == "text" {
					content += item.Text
				}
			}
		}
	}

	if cr.IsError {
		return Response{}, fmt.Errorf("claude reported an error: %s", content)
	}
	return Response{Content: content}, nil
}
