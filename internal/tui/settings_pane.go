package tui

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/finassist/internal/config"
)

// SettingsPaneModel manages the settings form overlay. Saved settings apply
// the next time finassist starts.
type SettingsPaneModel struct {
	form        *huh.Form
	config      *config.Config
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error

	// Form field bindings. Shared by pointer so copies of the model see
	// what the form writes.
	fields *settingsFields
}

type settingsFields struct {
	saveTarget      string
	backendType     string
	model           string
	maxTokens       string
	knowledgeWeight string
	memoryWeight    string
	minSimilarity   string
	maxConcurrency  string
}

// NewSettingsPaneModel creates a new settings pane.
func NewSettingsPaneModel(cfg *config.Config, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,
		fields:      &settingsFields{},
	}
	m.loadFields()
	m.buildForm()
	return m
}

func (m *SettingsPaneModel) loadFields() {
	m.fields.saveTarget = "global"
	m.fields.backendType = m.config.Backend.Type
	m.fields.model = m.config.Backend.Model
	m.fields.maxTokens = strconv.Itoa(m.config.Backend.MaxTokens)
	m.fields.knowledgeWeight = formatFloat(m.config.Retrieval.KnowledgeWeight)
	m.fields.memoryWeight = formatFloat(m.config.Retrieval.MemoryWeight)
	m.fields.minSimilarity = formatFloat(m.config.Retrieval.MinSimilarity)
	m.fields.maxConcurrency = strconv.Itoa(m.config.Scheduler.MaxConcurrency)
}

func (m *SettingsPaneModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Global (~/.finassist/config.json)", "global"),
					huh.NewOption("Project (.finassist/config.json)", "project"),
				).
				Value(&m.fields.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Key("backendType").
				Title("Backend").
				Options(
					huh.NewOption("Anthropic API", "anthropic"),
					huh.NewOption("Amazon Bedrock", "bedrock"),
					huh.NewOption("Claude CLI", "claude-cli"),
				).
				Value(&m.fields.backendType),

			huh.NewInput().
				Key("model").
				Title("Model").
				Value(&m.fields.model).
				Placeholder("backend default"),

			huh.NewInput().
				Key("maxTokens").
				Title("Max Tokens").
				Value(&m.fields.maxTokens).
				Validate(validatePositiveInt),
		).Title("Backend Settings"),

		huh.NewGroup(
			huh.NewInput().
				Key("knowledgeWeight").
				Title("Knowledge Weight").
				Value(&m.fields.knowledgeWeight).
				Validate(validateUnit),

			huh.NewInput().
				Key("memoryWeight").
				Title("Memory Weight").
				Value(&m.fields.memoryWeight).
				Validate(validateUnit),

			huh.NewInput().
				Key("minSimilarity").
				Title("Minimum Similarity").
				Value(&m.fields.minSimilarity).
				Validate(validateUnit),

			huh.NewInput().
				Key("maxConcurrency").
				Title("Max Concurrent Tasks").
				Value(&m.fields.maxConcurrency).
				Validate(validatePositiveInt),
		).Title("Retrieval and Scheduling"),
	)
}

// Init initializes the settings pane.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings pane.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		m.visible = false
		m.saved = false
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.err = m.save()
		m.saved = m.err == nil
		if m.saved {
			m.visible = false
		}
	}

	return m, cmd
}

func (m *SettingsPaneModel) save() error {
	next := *m.config
	if err := m.applyFormTo(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}

	targetPath := m.globalPath
	if m.fields.saveTarget == "project" {
		targetPath = m.projectPath
	}
	if err := config.Save(&next, targetPath); err != nil {
		return err
	}
	*m.config = next
	return nil
}

// applyFormTo copies form field values onto cfg.
func (m *SettingsPaneModel) applyFormTo(cfg *config.Config) error {
	var err error
	cfg.Backend.Type = m.fields.backendType
	cfg.Backend.Model = m.fields.model
	if cfg.Backend.MaxTokens, err = strconv.Atoi(m.fields.maxTokens); err != nil {
		return fmt.Errorf("max tokens: %w", err)
	}
	if cfg.Retrieval.KnowledgeWeight, err = strconv.ParseFloat(m.fields.knowledgeWeight, 64); err != nil {
		return fmt.Errorf("knowledge weight: %w", err)
	}
	if cfg.Retrieval.MemoryWeight, err = strconv.ParseFloat(m.fields.memoryWeight, 64); err != nil {
		return fmt.Errorf("memory weight: %w", err)
	}
	if cfg.Retrieval.MinSimilarity, err = strconv.ParseFloat(m.fields.minSimilarity, 64); err != nil {
		return fmt.Errorf("minimum similarity: %w", err)
	}
	if cfg.Scheduler.MaxConcurrency, err = strconv.Atoi(m.fields.maxConcurrency); err != nil {
		return fmt.Errorf("max concurrency: %w", err)
	}
	return nil
}

// View renders the settings pane.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string
	if m.err != nil {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true).
			Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	} else {
		content = m.form.View()
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings (applied on next start)")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the settings pane. Showing it rebuilds the form
// from the current config.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil
	if v {
		m.loadFields()
		m.buildForm()
		if m.width > 0 {
			m.form.WithWidth(m.width - 8).WithHeight(m.height - 8)
		}
	}
}

// IsVisible returns whether the settings pane is currently visible.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}

// Saved reports whether the last form submission was written.
func (m SettingsPaneModel) Saved() bool {
	return m.saved
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive whole number")
	}
	return nil
}

func validateUnit(s string) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 1 {
		return fmt.Errorf("must be between 0 and 1")
	}
	return nil
}
