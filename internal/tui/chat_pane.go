package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/finassist/internal/orchestrator"
)

// ChatEntry is one line of the conversation.
type ChatEntry struct {
	FromUser bool
	Text     string
	Response orchestrator.Response
}

// ChatPaneModel shows the conversation above a message input.
type ChatPaneModel struct {
	entries  []ChatEntry
	viewport viewport.Model
	input    textinput.Model
	width    int
	height   int
	focused  bool
}

// NewChatPaneModel creates the conversation pane with a focused input.
func NewChatPaneModel() ChatPaneModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about your finances, e.g. \"Gastei 50 reais no supermercado\""
	ti.Prompt = "› "
	ti.CharLimit = 2000
	ti.Focus()

	return ChatPaneModel{
		viewport: viewport.New(0, 0),
		input:    ti,
		focused:  true,
	}
}

// Update handles messages for the chat pane.
func (m ChatPaneModel) Update(msg tea.Msg) (ChatPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case "pgup", "pgdown":
			m.viewport, cmd = m.viewport.Update(msg)
		default:
			m.input, cmd = m.input.Update(msg)
		}
	default:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// TakeInput returns the trimmed input and clears it.
func (m *ChatPaneModel) TakeInput() string {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	return text
}

// AddUser appends a user message.
func (m *ChatPaneModel) AddUser(text string) {
	m.entries = append(m.entries, ChatEntry{FromUser: true, Text: text})
	m.refresh()
}

// AddResponse appends an assistant reply.
func (m *ChatPaneModel) AddResponse(resp orchestrator.Response) {
	m.entries = append(m.entries, ChatEntry{Text: resp.Message, Response: resp})
	m.refresh()
}

// Entries returns the conversation so far.
func (m ChatPaneModel) Entries() []ChatEntry {
	return m.entries
}

func (m *ChatPaneModel) refresh() {
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

func (m ChatPaneModel) render() string {
	wrap := lipgloss.NewStyle().Width(max(m.width-6, 20))
	var b strings.Builder

	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		if e.FromUser {
			b.WriteString(StyleUser.Render("You"))
			b.WriteString("\n")
			b.WriteString(wrap.Render(e.Text))
			b.WriteString("\n")
			continue
		}

		label := "Assistant"
		if e.Response.Fallback {
			label += " (direct answer)"
		}
		b.WriteString(StyleAssistant.Render(label))
		b.WriteString("\n")
		b.WriteString(wrap.Render(e.Text))
		b.WriteString("\n")
		for _, s := range e.Response.Sources {
			b.WriteString(StyleSource.Render(fmt.Sprintf("  ↳ %s: %s (%.2f)", s.Type, s.Title, s.Confidence)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// View renders the chat pane.
func (m ChatPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		strings.Repeat("─", max(m.width-4, 0)),
		m.input.View(),
	)
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(body)
}

// SetSize updates the pane dimensions.
func (m *ChatPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = max(w-4, 10)
	m.viewport.Height = max(h-5, 3)
	m.input.Width = max(w-8, 10)
	m.refresh()
}

// SetFocused updates the focus state.
func (m *ChatPaneModel) SetFocused(focused bool) {
	m.focused = focused
	if focused {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}
