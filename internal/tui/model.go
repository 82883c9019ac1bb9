// Package tui is the interactive chat interface. It shows the conversation,
// the tasks of the workflow behind the latest reply, and their progress.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/finassist/internal/config"
	"github.com/aristath/finassist/internal/events"
	"github.com/aristath/finassist/internal/orchestrator"
	"github.com/aristath/finassist/internal/scheduler"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneChat PaneID = iota
	PaneTasks
)

// Processor answers one chat message.
type Processor interface {
	ProcessRequest(ctx context.Context, req orchestrator.Request) orchestrator.Response
}

// Options configures a chat session.
type Options struct {
	UserID            string
	FinancialContext  scheduler.FinancialContext
	Config            *config.Config
	GlobalConfigPath  string
	ProjectConfigPath string
}

// responseMsg carries a finished request back into the update loop.
type responseMsg struct {
	resp orchestrator.Response
}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	chat         ChatPaneModel
	tasks        TaskPaneModel
	progress     ProgressPaneModel
	settings     SettingsPaneModel
	focusedPane  PaneID
	showSettings bool

	ctx       context.Context
	cancel    context.CancelFunc
	processor Processor
	opts      Options
	eventSub  <-chan events.Event

	busy     bool
	width    int
	height   int
	quitting bool
}

// New creates a new TUI model. It subscribes to every event on bus; requests
// run under ctx and are cancelled when the user quits.
func New(ctx context.Context, processor Processor, bus *events.EventBus, opts Options) Model {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	ctx, cancel := context.WithCancel(ctx)
	return Model{
		chat:      NewChatPaneModel(),
		tasks:     NewTaskPaneModel(),
		progress:  NewProgressPaneModel(),
		settings:  NewSettingsPaneModel(opts.Config, opts.GlobalConfigPath, opts.ProjectConfigPath),
		ctx:       ctx,
		cancel:    cancel,
		processor: processor,
		opts:      opts,
		eventSub:  bus.SubscribeAll(256),
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// submit runs one request off the update loop.
func (m Model) submit(text string) tea.Cmd {
	ctx, processor := m.ctx, m.processor
	req := orchestrator.Request{
		Message:          text,
		UserID:           m.opts.UserID,
		FinancialContext: m.opts.FinancialContext,
	}
	return func() tea.Msg {
		return responseMsg{resp: processor.ProcessRequest(ctx, req)}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == KeyCtrlC {
			return m.quit()
		}

		// The settings form is modal.
		if m.showSettings {
			var cmd tea.Cmd
			m.settings, cmd = m.settings.Update(msg)
			if !m.settings.IsVisible() {
				m.showSettings = false
			}
			return m, cmd
		}

		switch msg.String() {
		case KeyQuit:
			return m.quit()

		case KeySettings:
			m.showSettings = true
			m.settings.SetVisible(true)
			cmds = append(cmds, m.settings.Init())

		case KeyTab, KeyShiftTab:
			m.focusedPane = (m.focusedPane + 1) % 2
			m.updateFocusStates()

		case KeyEnter:
			if m.focusedPane != PaneChat || m.busy {
				break
			}
			text := m.chat.TakeInput()
			if text == "" {
				break
			}
			m.busy = true
			m.chat.AddUser(text)
			m.tasks.Reset()
			m.progress.Reset()
			cmds = append(cmds, m.submit(text))

		default:
			var cmd tea.Cmd
			switch m.focusedPane {
			case PaneChat:
				m.chat, cmd = m.chat.Update(msg)
			case PaneTasks:
				m.tasks, cmd = m.tasks.Update(msg)
			}
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.settings.SetSize(msg.Width, msg.Height)

	case responseMsg:
		m.busy = false
		m.chat.AddResponse(msg.resp)

	case events.TaskStartedEvent, events.TaskCompletedEvent, events.TaskFailedEvent, events.TaskSkippedEvent:
		var cmd tea.Cmd
		m.tasks, cmd = m.tasks.Update(msg)
		m.progress, _ = m.progress.Update(msg)
		m.computeLayout()
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.WorkflowStartedEvent, events.WorkflowCompletedEvent:
		m.progress, _ = m.progress.Update(msg)
		cmds = append(cmds, waitForEvent(m.eventSub))

	default:
		if m.showSettings {
			var cmd tea.Cmd
			m.settings, cmd = m.settings.Update(msg)
			cmds = append(cmds, cmd)
		} else {
			var cmd tea.Cmd
			m.chat, cmd = m.chat.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.cancel()
	return m, tea.Quit
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.showSettings {
		return m.settings.View()
	}

	right := lipgloss.JoinVertical(lipgloss.Left, m.tasks.View(), m.progress.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.chat.View(), right)
	return lipgloss.JoinVertical(lipgloss.Left, body, HelpView(m.busy))
}

const progressHeight = 6

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	chatWidth := (m.width * 65) / 100
	rightWidth := m.width - chatWidth
	availableHeight := m.height - 1 // help bar

	m.chat.SetSize(chatWidth, availableHeight)
	m.tasks.SetSize(rightWidth, availableHeight-progressHeight)
	m.progress.SetSize(rightWidth, progressHeight)
	m.updateFocusStates()
}

func (m *Model) updateFocusStates() {
	m.chat.SetFocused(m.focusedPane == PaneChat)
	m.tasks.SetFocused(m.focusedPane == PaneTasks)
}

// Busy reports whether a request is in flight.
func (m Model) Busy() bool {
	return m.busy
}
