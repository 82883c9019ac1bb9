package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		global  string
		project string
		modify  func(c *Config)
		wantErr string
	}{
		{
			name: "No config files - returns defaults",
		},
		{
			name:   "Global only - overrides nested fields",
			global: `{"cache": {"ttl": "10m"}, "backend": {"model": "claude-haiku-4-5"}}`,
			modify: func(c *Config) {
				c.Cache.TTL = Duration{10 * time.Minute}
				c.Backend.Model = "claude-haiku-4-5"
			},
		},
		{
			name:    "Project overrides global",
			global:  `{"scheduler": {"max_concurrency": 3, "task_timeout": "45s"}}`,
			project: `{"scheduler": {"max_concurrency": 8}, "retrieval": {"knowledge_weight": 0.8, "memory_weight": 0.2}}`,
			modify: func(c *Config) {
				c.Scheduler.MaxConcurrency = 8
				c.Scheduler.TaskTimeout = Duration{45 * time.Second}
				c.Retrieval.KnowledgeWeight = 0.8
				c.Retrieval.MemoryWeight = 0.2
			},
		},
		{
			name:    "Project replaces keyword lists",
			project: `{"planner": {"action_keywords": ["pague", "pix"]}}`,
			modify: func(c *Config) {
				c.Planner.ActionKeywords = []string{"pague", "pix"}
			},
		},
		{
			name:    "Malformed JSON in global",
			global:  `{"backend": {`,
			wantErr: "loading global config",
		},
		{
			name:    "Malformed JSON in project",
			project: `not json`,
			wantErr: "loading project config",
		},
		{
			name:    "Bad duration",
			project: `{"cache": {"ttl": "five minutes"}}`,
			wantErr: "invalid duration",
		},
		{
			name:    "Invalid values are rejected",
			project: `{"retrieval": {"min_similarity": 1.5}, "logging": {"format": "xml"}}`,
			wantErr: "min_similarity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			globalPath := filepath.Join(dir, "missing-global.json")
			projectPath := filepath.Join(dir, "missing-project.json")
			if tt.global != "" {
				globalPath = writeFile(t, dir, "global.json", tt.global)
			}
			if tt.project != "" {
				projectPath = writeFile(t, dir, "project.json", tt.project)
			}

			cfg, err := Load(globalPath, projectPath)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			want := DefaultConfig()
			if tt.modify != nil {
				tt.modify(want)
			}
			if diff := cmp.Diff(want, cfg); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadEmptyPaths(t *testing.T) {
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDefaultUsesHomeAndProject(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.MkdirAll(filepath.Join(home, Dir), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(home, Dir), "config.json", `{"logging": {"level": "debug"}}`)

	project := t.TempDir()
	if err := os.MkdirAll(filepath.Join(project, Dir), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(project, Dir), "config.json", `{"logging": {"format": "json"}}`)
	t.Chdir(project)

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault failed: %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Expected merged logging config, got %+v", cfg.Logging)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend.Type = "codex"
	cfg.Scheduler.MaxConcurrency = 0
	cfg.Cache.TTL = Duration{}
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"backend.type", "scheduler.max_concurrency", "cache.ttl", "logging.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %q in error: %v", want, err)
		}
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestStoragePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := DefaultConfig()
	path, err := cfg.StoragePath()
	if err != nil {
		t.Fatalf("StoragePath failed: %v", err)
	}
	if want := filepath.Join(home, Dir, "finassist.db"); path != want {
		t.Errorf("Expected %s, got %s", want, path)
	}

	cfg.Storage.Path = ":memory:"
	if path, _ := cfg.StoragePath(); path != ":memory:" {
		t.Errorf("Expected explicit path to win, got %s", path)
	}
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	if err := d.UnmarshalJSON([]byte(`"1m30s"`)); err != nil || d.Duration != 90*time.Second {
		t.Errorf("string form: %v, %v", d, err)
	}
	if err := d.UnmarshalJSON([]byte(`1000000`)); err != nil || d.Duration != time.Millisecond {
		t.Errorf("numeric form: %v, %v", d, err)
	}
	if err := d.UnmarshalJSON([]byte(`null`)); err != nil || d.Duration != time.Millisecond {
		t.Errorf("null should keep the value: %v, %v", d, err)
	}
	if err := d.UnmarshalJSON([]byte(`true`)); err == nil {
		t.Error("Expected error for boolean duration")
	}

	out, err := Duration{5 * time.Minute}.MarshalJSON()
	if err != nil || string(out) != `"5m0s"` {
		t.Errorf("MarshalJSON = %s, %v", out, err)
	}
}
