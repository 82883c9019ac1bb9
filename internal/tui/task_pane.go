package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/finassist/internal/events"
)

// TaskState is the display state of one task in the current workflow.
type TaskState struct {
	TaskID    string
	Kind      string
	Priority  string
	Status    string // "running", "completed", "failed", "skipped"
	Detail    []string
	StartTime time.Time
	Duration  time.Duration
}

// TaskPaneModel lists the tasks of the current workflow with a detail
// viewport for the selected one.
type TaskPaneModel struct {
	tasks       map[string]*TaskState
	order       []string
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewTaskPaneModel creates an empty task pane.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: viewport.New(0, 0),
	}
}

// Reset clears the pane for a new workflow.
func (m *TaskPaneModel) Reset() {
	m.tasks = make(map[string]*TaskState)
	m.order = nil
	m.selectedIdx = 0
	m.updateViewportContent()
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskStartedEvent:
		if _, exists := m.tasks[msg.ID]; !exists {
			m.tasks[msg.ID] = &TaskState{
				TaskID:    msg.ID,
				Kind:      msg.Kind,
				Priority:  msg.Priority,
				Status:    "running",
				Detail:    []string{fmt.Sprintf("Started %s (%s priority)", msg.Timestamp.Format("15:04:05"), msg.Priority)},
				StartTime: msg.Timestamp,
			}
			m.order = append(m.order, msg.ID)
		}
		m.refreshIfSelected(msg.ID)

	case events.TaskCompletedEvent:
		if task, exists := m.tasks[msg.ID]; exists {
			task.Status = "completed"
			task.Duration = msg.Duration
			task.Detail = append(task.Detail, fmt.Sprintf("Completed in %v", msg.Duration.Round(time.Millisecond)))
		}
		m.refreshIfSelected(msg.ID)

	case events.TaskFailedEvent:
		if task, exists := m.tasks[msg.ID]; exists {
			task.Status = "failed"
			task.Duration = msg.Duration
			line := fmt.Sprintf("Failed after %v: %v", msg.Duration.Round(time.Millisecond), msg.Err)
			if msg.Critical {
				line += " (critical)"
			}
			task.Detail = append(task.Detail, line)
		}
		m.refreshIfSelected(msg.ID)

	case events.TaskSkippedEvent:
		// Skipped tasks never started, so they appear here first.
		if _, exists := m.tasks[msg.ID]; !exists {
			m.tasks[msg.ID] = &TaskState{TaskID: msg.ID, Kind: msg.Kind}
			m.order = append(m.order, msg.ID)
		}
		task := m.tasks[msg.ID]
		task.Status = "skipped"
		task.Detail = append(task.Detail, fmt.Sprintf("Skipped: dependency %s failed", msg.Cause))
		m.refreshIfSelected(msg.ID)
	}

	return m, cmd
}

func (m *TaskPaneModel) refreshIfSelected(id string) {
	if len(m.order) == 1 || m.selectedTaskID() == id {
		m.updateViewportContent()
	}
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listHeight := max(len(m.order)+3, 5)
	list := m.renderTaskList(m.width - 4)
	detail := lipgloss.NewStyle().
		Width(m.width - 4).
		Height(max(m.height-listHeight-2, 1)).
		Render(m.viewport.View())

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, list, detail))
}

func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("No workflow yet"))
		return b.String()
	}

	for i, id := range m.order {
		task := m.tasks[id]
		line := fmt.Sprintf("%s %s", StatusIcon(task.Status), task.Kind)
		if task.Duration > 0 {
			line += StyleStatusPending.Render(fmt.Sprintf(" %v", task.Duration.Round(time.Millisecond)))
		}
		if i == m.selectedIdx && m.focused {
			line = lipgloss.NewStyle().
				Background(lipgloss.Color("62")).
				Foreground(lipgloss.Color("0")).
				Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// StatusIcon returns a styled status indicator.
func StatusIcon(status string) string {
	switch status {
	case "running":
		return StyleStatusRunning.Render("●")
	case "completed":
		return StyleStatusComplete.Render("✓")
	case "failed":
		return StyleStatusFailed.Render("✗")
	case "skipped":
		return StyleStatusPending.Render("-")
	default:
		return StyleStatusPending.Render("○")
	}
}

func (m TaskPaneModel) selectedTaskID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.order[m.selectedIdx]
	}
	return ""
}

// Selected returns the selected task, if any.
func (m TaskPaneModel) Selected() (TaskState, bool) {
	task, ok := m.tasks[m.selectedTaskID()]
	if !ok {
		return TaskState{}, false
	}
	return *task, true
}

// Len returns the number of tasks shown.
func (m TaskPaneModel) Len() int {
	return len(m.order)
}

func (m *TaskPaneModel) updateViewportContent() {
	task, ok := m.tasks[m.selectedTaskID()]
	if !ok {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(strings.Join(task.Detail, "\n"))
	m.viewport.GotoBottom()
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = max(w-4, 10)
	m.viewport.Height = max(h-len(m.order)-7, 3)
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
