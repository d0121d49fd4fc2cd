package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/refgraph/pkg/analysis"
)

func clearAnalysisEnv(t *testing.T) {
	t.Helper()
	t.Setenv(analysis.EnvSkipCycles, "")
	t.Setenv(analysis.EnvCyclesTimeoutSeconds, "")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Output.Format != FormatText {
		t.Errorf("expected default format 'text', got %q", cfg.Output.Format)
	}
	if cfg.Output.TopN != 10 {
		t.Errorf("expected top_n 10, got %d", cfg.Output.TopN)
	}
	if cfg.Watch.Debounce != 200*time.Millisecond {
		t.Errorf("expected debounce 200ms, got %v", cfg.Watch.Debounce)
	}
	if cfg.Watch.CacheTTL != analysis.DefaultCacheTTL {
		t.Errorf("expected cache ttl %v, got %v", analysis.DefaultCacheTTL, cfg.Watch.CacheTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFrom_NonExistent(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Output.Format != FormatText {
		t.Errorf("expected default config, got format %q", cfg.Output.Format)
	}
}

func TestLoadFrom_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
sources:
  - name: skills
    path: ~/work/skills.json
  - name: other
    path: /absolute/graph.yaml

analysis:
  cycles_timeout: 5s
  max_cycles: 25

diagnostics:
  include_self_refs: false
  impact_threshold: 3

output:
  format: json
  color: never

watch:
  debounce: 500ms
  force_poll: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(cfg.Sources))
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, "work/skills.json"); cfg.Sources[0].Path != want {
		t.Errorf("expected expanded path %q, got %q", want, cfg.Sources[0].Path)
	}
	if cfg.Sources[1].Path != "/absolute/graph.yaml" {
		t.Errorf("absolute path changed: %q", cfg.Sources[1].Path)
	}
	if cfg.Analysis.CyclesTimeout != 5*time.Second || cfg.Analysis.MaxCycles != 25 {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if cfg.Output.Format != FormatJSON || cfg.Output.Color != "never" {
		t.Errorf("output = %+v", cfg.Output)
	}
	if cfg.Output.TopN != 10 {
		t.Errorf("unset fields should keep defaults, top_n = %d", cfg.Output.TopN)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond || !cfg.Watch.ForcePoll {
		t.Errorf("watch = %+v", cfg.Watch)
	}
	if cfg.Watch.PollInterval != 2*time.Second {
		t.Errorf("poll interval default lost: %v", cfg.Watch.PollInterval)
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "output: [", "parsing config"},
		{"bad format", "output:\n  format: xml\n", "output.format"},
		{"bad color", "output:\n  color: sometimes\n", "output.color"},
		{"bad duration", "watch:\n  debounce: soon\n", "parsing config"},
		{"negative limit", "analysis:\n  max_cycles: -1\n", "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFrom(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadFrom error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Sources = []Source{{Name: "main", Path: "/tmp/graph.json"}}
	cfg.Analysis.CyclesTimeout = 3 * time.Second
	cfg.Output.Format = FormatMarkdown

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "cycles_timeout: 3s") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.FindSource("MAIN") == nil {
		t.Error("FindSource should be case-insensitive")
	}
	if loaded.FindSource("nope") != nil {
		t.Error("unexpected source")
	}
	if loaded.Analysis.CyclesTimeout != 3*time.Second || loaded.Output.Format != FormatMarkdown {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestXDGPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_STATE_HOME", "/xdg/state")

	if got := ConfigPath(); got != "/xdg/config/refgraph/config.yaml" {
		t.Errorf("ConfigPath = %q", got)
	}
	if got := StateDir(); got != "/xdg/state/refgraph" {
		t.Errorf("StateDir = %q", got)
	}
}

func TestLoadUsesXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := Save(Config{Output: OutputConfig{Format: FormatJSON}}); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Output.Format != FormatJSON {
		t.Errorf("format = %q", cfg.Output.Format)
	}
}

func TestAnalysisConfig(t *testing.T) {
	clearAnalysisEnv(t)

	cfg := DefaultConfig().AnalysisConfig(10, 20)
	want := analysis.ConfigForSize(10, 20)
	if cfg != want {
		t.Errorf("empty section should keep size defaults: %+v vs %+v", cfg, want)
	}

	c := DefaultConfig()
	c.Analysis.CyclesTimeout = 9 * time.Second
	c.Analysis.MaxCycles = 7
	cfg = c.AnalysisConfig(10, 20)
	if cfg.CyclesTimeout != 9*time.Second || cfg.MaxCyclesToStore != 7 {
		t.Errorf("overrides not applied: %+v", cfg)
	}

	c = DefaultConfig()
	c.Analysis.SkipCycles = true
	if cfg := c.AnalysisConfig(10, 20); cfg.ComputeCycles || cfg.CyclesSkipReason == "" {
		t.Errorf("skip_cycles not honored: %+v", cfg)
	}

	c = DefaultConfig()
	c.Analysis.MaxCycleNodes = 10000
	if cfg := c.AnalysisConfig(6000, 6000); !cfg.ComputeCycles {
		t.Errorf("raised node limit should re-enable cycles: %+v", cfg)
	}

	c = DefaultConfig()
	c.Analysis.Full = true
	if cfg := c.AnalysisConfig(6000, 6000); !cfg.ComputeCycles || cfg.MaxCycleNodes != 0 {
		t.Errorf("full analysis should lift the guard: %+v", cfg)
	}
}

func TestAnalysisConfigEnvWins(t *testing.T) {
	clearAnalysisEnv(t)
	t.Setenv(analysis.EnvCyclesTimeoutSeconds, "4")

	c := DefaultConfig()
	c.Analysis.CyclesTimeout = time.Second
	if cfg := c.AnalysisConfig(10, 10); cfg.CyclesTimeout != 4*time.Second {
		t.Errorf("env timeout should win, got %v", cfg.CyclesTimeout)
	}

	t.Setenv(analysis.EnvSkipCycles, "1")
	if cfg := c.AnalysisConfig(10, 10); cfg.ComputeCycles {
		t.Error("env skip should win")
	}
}

func TestDiagnosticConfig(t *testing.T) {
	if got := DefaultConfig().DiagnosticConfig(); got != analysis.DefaultDiagnosticConfig() {
		t.Errorf("defaults changed: %+v", got)
	}

	off := false
	c := DefaultConfig()
	c.Diagnostics = DiagnosticsSection{MaxCycles: 3, IncludeSelfRefs: &off, ImpactThreshold: 2}
	got := c.DiagnosticConfig()
	if got.MaxCycles != 3 || got.IncludeSelfLoops || got.ImpactThreshold != 2 {
		t.Errorf("DiagnosticConfig = %+v", got)
	}
}
