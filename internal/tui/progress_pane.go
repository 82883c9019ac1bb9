package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/finassist/internal/events"
)

// ProgressPaneModel shows task counts for the current workflow.
type ProgressPaneModel struct {
	total     int
	completed int
	running   int
	failed    int
	skipped   int
	done      bool
	success   bool
	elapsed   time.Duration
	width     int
	height    int
}

// NewProgressPaneModel creates a new progress pane model.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{}
}

// Reset clears the counts for a new workflow.
func (m *ProgressPaneModel) Reset() {
	*m = ProgressPaneModel{width: m.width, height: m.height}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.WorkflowStartedEvent:
		m.Reset()
		m.total = msg.Total

	case events.TaskStartedEvent:
		m.running++

	case events.TaskCompletedEvent:
		m.running = max(m.running-1, 0)
		m.completed++

	case events.TaskFailedEvent:
		m.running = max(m.running-1, 0)
		m.failed++

	case events.TaskSkippedEvent:
		m.skipped++

	case events.WorkflowCompletedEvent:
		// Aborted tasks publish nothing, so the final counts come from here.
		m.done = true
		m.success = msg.Success
		m.elapsed = msg.Elapsed
		m.total = msg.Total
		m.completed = msg.Completed
		m.failed = msg.Failed - m.skipped
		m.running = 0
	}

	return m, nil
}

// Pending returns the number of tasks not yet started.
func (m ProgressPaneModel) Pending() int {
	if m.done {
		return 0
	}
	return max(m.total-m.completed-m.running-m.failed-m.skipped, 0)
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Workflow")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n")

	fmt.Fprintf(&b, "Completed: %s  Running: %s  Failed: %s  Skipped: %s  Pending: %s\n",
		StyleStatusComplete.Render(fmt.Sprint(m.completed)),
		StyleStatusRunning.Render(fmt.Sprint(m.running)),
		StyleStatusFailed.Render(fmt.Sprint(m.failed)),
		StyleStatusPending.Render(fmt.Sprint(m.skipped)),
		StyleStatusPending.Render(fmt.Sprint(m.Pending())),
	)

	if m.total > 0 {
		barWidth := min(m.width-14, 40)
		completedWidth := (m.completed * barWidth) / m.total
		failedWidth := ((m.failed + m.skipped) * barWidth) / m.total
		runningWidth := (m.running * barWidth) / m.total
		pendingWidth := barWidth - completedWidth - failedWidth - runningWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, completedWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, runningWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))
		fmt.Fprintf(&b, "[%s]  %d/%d", bar, m.completed, m.total)
	}

	if m.done {
		status := StyleStatusComplete.Render("succeeded")
		if !m.success {
			status = StyleStatusFailed.Render("failed")
		}
		fmt.Fprintf(&b, "  %s in %v", status, m.elapsed.Round(time.Millisecond))
	}

	return StyleUnfocusedBorder.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}
