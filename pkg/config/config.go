// Package config handles loading and saving refgraph configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/refgraph/config.yaml
//   - State:   ~/.local/state/refgraph/ (analysis cache)
//
// Command-line flags override the file, and REFGRAPH_* environment variables
// override both for the analysis limits.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/refgraph/pkg/analysis"
)

const appName = "refgraph"

// Source is a named graph location.
type Source struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// AnalysisSection bounds the analysis. Zero values keep the size-based defaults.
type AnalysisSection struct {
	Full          bool          `yaml:"full,omitempty"`           // lift the size guard
	SkipCycles    bool          `yaml:"skip_cycles,omitempty"`    // never enumerate cycles
	CyclesTimeout time.Duration `yaml:"cycles_timeout,omitempty"` // e.g. "5s"
	MaxCycles     int           `yaml:"max_cycles,omitempty"`
	MaxCycleNodes int           `yaml:"max_cycle_nodes,omitempty"`
}

// DiagnosticsSection tunes the findings list.
type DiagnosticsSection struct {
	MaxCycles       int   `yaml:"max_cycles,omitempty"`
	IncludeSelfRefs *bool `yaml:"include_self_refs,omitempty"`
	ImpactThreshold int   `yaml:"impact_threshold,omitempty"`
}

// OutputConfig holds output preferences.
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // text, json, markdown
	Pretty bool   `yaml:"pretty,omitempty"` // render markdown in the terminal
	Color  string `yaml:"color,omitempty"`  // auto, always, never
	TopN   int    `yaml:"top_n,omitempty"`  // rows in ranked tables
}

// WatchConfig controls --watch.
type WatchConfig struct {
	Debounce     time.Duration `yaml:"debounce,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	ForcePoll    bool          `yaml:"force_poll,omitempty"`
	CacheTTL     time.Duration `yaml:"cache_ttl,omitempty"`
}

// Config is the top-level configuration for refgraph.
type Config struct {
	Sources     []Source           `yaml:"sources,omitempty"`
	Analysis    AnalysisSection    `yaml:"analysis,omitempty"`
	Diagnostics DiagnosticsSection `yaml:"diagnostics,omitempty"`
	Output      OutputConfig       `yaml:"output,omitempty"`
	Watch       WatchConfig        `yaml:"watch,omitempty"`
}

// Output formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Output: OutputConfig{
			Format: FormatText,
			Color:  "auto",
			TopN:   10,
		},
		Watch: WatchConfig{
			Debounce:     200 * time.Millisecond,
			PollInterval: 2 * time.Second,
			CacheTTL:     analysis.DefaultCacheTTL,
		},
	}
}

// ConfigDir returns the XDG config directory for refgraph.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// StateDir returns the XDG state directory for refgraph.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}

	for i := range cfg.Sources {
		cfg.Sources[i].Path = expandHome(cfg.Sources[i].Path)
	}

	return cfg, nil
}

// Validate rejects values no command could honor.
func (c Config) Validate() error {
	switch c.Output.Format {
	case "", FormatText, FormatJSON, FormatMarkdown:
	default:
		return fmt.Errorf("output.format %q (want text, json or markdown)", c.Output.Format)
	}
	switch c.Output.Color {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("output.color %q (want auto, always or never)", c.Output.Color)
	}
	if c.Analysis.CyclesTimeout < 0 || c.Watch.Debounce < 0 || c.Watch.PollInterval < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.Analysis.MaxCycles < 0 || c.Analysis.MaxCycleNodes < 0 || c.Diagnostics.ImpactThreshold < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// FindSource returns the source with the given name, or nil.
func (c Config) FindSource(name string) *Source {
	for i := range c.Sources {
		if strings.EqualFold(c.Sources[i].Name, name) {
			return &c.Sources[i]
		}
	}
	return nil
}

// AnalysisConfig resolves the analysis limits for a graph of the given size.
// The file adjusts the size-based defaults; REFGRAPH_* variables win.
func (c Config) AnalysisConfig(nodeCount, edgeCount int) analysis.AnalysisConfig {
	var cfg analysis.AnalysisConfig
	if c.Analysis.Full {
		cfg = analysis.FullAnalysisConfig()
	} else {
		cfg = analysis.ConfigForSize(nodeCount, edgeCount)
	}

	if c.Analysis.SkipCycles {
		cfg.ComputeCycles = false
		cfg.CyclesSkipReason = "disabled in config"
	}
	if c.Analysis.CyclesTimeout > 0 {
		cfg.CyclesTimeout = c.Analysis.CyclesTimeout
	}
	if c.Analysis.MaxCycles > 0 {
		cfg.MaxCyclesToStore = c.Analysis.MaxCycles
	}
	if c.Analysis.MaxCycleNodes > 0 {
		cfg.MaxCycleNodes = c.Analysis.MaxCycleNodes
		if !c.Analysis.SkipCycles && nodeCount <= cfg.MaxCycleNodes && !cfg.ComputeCycles {
			cfg.ComputeCycles = true
			cfg.CyclesSkipReason = ""
		}
	}

	return analysis.ApplyEnvOverrides(cfg)
}

// DiagnosticConfig resolves the findings thresholds.
func (c Config) DiagnosticConfig() analysis.DiagnosticConfig {
	cfg := analysis.DefaultDiagnosticConfig()
	if c.Diagnostics.MaxCycles > 0 {
		cfg.MaxCycles = c.Diagnostics.MaxCycles
	}
	if c.Diagnostics.IncludeSelfRefs != nil {
		cfg.IncludeSelfLoops = *c.Diagnostics.IncludeSelfRefs
	}
	if c.Diagnostics.ImpactThreshold > 0 {
		cfg.ImpactThreshold = c.Diagnostics.ImpactThreshold
	}
	return cfg
}

// ResolvedPath returns the source path with ~ expanded.
func (s Source) ResolvedPath() string {
	return expandHome(s.Path)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
