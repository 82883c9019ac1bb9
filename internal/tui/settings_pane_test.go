package tui

import (
	"path/filepath"
	"testing"

	"github.com/aristath/finassist/internal/config"
)

func TestSettingsSave(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "global", "config.json")
	project := filepath.Join(dir, "project", "config.json")

	tests := []struct {
		name   string
		target string
		path   string
	}{
		{"global", "global", global},
		{"project", "project", project},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			m := NewSettingsPaneModel(cfg, global, project)
			m.fields.saveTarget = tt.target
			m.fields.backendType = "claude-cli"
			m.fields.maxTokens = "2048"
			m.fields.knowledgeWeight = "0.6"
			m.fields.memoryWeight = "0.4"

			if err := m.save(); err != nil {
				t.Fatalf("save failed: %v", err)
			}

			loaded, err := config.Load("", tt.path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.Backend.Type != "claude-cli" || loaded.Backend.MaxTokens != 2048 {
				t.Errorf("backend = %+v", loaded.Backend)
			}
			if loaded.Retrieval.KnowledgeWeight != 0.6 || loaded.Retrieval.MemoryWeight != 0.4 {
				t.Errorf("retrieval = %+v", loaded.Retrieval)
			}
			if cfg.Backend.Type != "claude-cli" {
				t.Error("saved settings not applied to the shared config")
			}
		})
	}
}

func TestSettingsRejectsInvalidValues(t *testing.T) {
	cfg := config.DefaultConfig()
	path := filepath.Join(t.TempDir(), "config.json")
	m := NewSettingsPaneModel(cfg, path, path)

	m.fields.minSimilarity = "1.5"
	if err := m.save(); err == nil {
		t.Fatal("expected out-of-range similarity to fail")
	}
	if cfg.Retrieval.MinSimilarity != config.DefaultConfig().Retrieval.MinSimilarity {
		t.Error("rejected settings must not change the config")
	}

	m.fields.minSimilarity = "0.5"
	m.fields.maxTokens = "lots"
	if err := m.save(); err == nil {
		t.Fatal("expected non-numeric max tokens to fail")
	}
}

func TestSettingsValidators(t *testing.T) {
	tests := []struct {
		name  string
		check func(string) error
		input string
		ok    bool
	}{
		{"unit zero", validateUnit, "0", true},
		{"unit one", validateUnit, "1", true},
		{"unit above", validateUnit, "1.01", false},
		{"unit text", validateUnit, "high", false},
		{"int positive", validatePositiveInt, "5", true},
		{"int zero", validatePositiveInt, "0", false},
		{"int float", validatePositiveInt, "2.5", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.check(tt.input); (err == nil) != tt.ok {
				t.Errorf("check(%q) = %v, want ok=%t", tt.input, err, tt.ok)
			}
		})
	}
}
