// Package hooks runs user commands around exports.
// Hooks are configured via .refgraph/hooks.yaml next to the graph and run
// before (pre-export) and after (post-export) the export files are written.
package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HookPhase represents when a hook runs
type HookPhase string

const (
	// PreExport runs before any export is written. Failure cancels the export.
	PreExport HookPhase = "pre-export"
	// PostExport runs after the exports are written. Failure is reported but the files stay.
	PostExport HookPhase = "post-export"
)

// On-error policies.
const (
	OnErrorFail     = "fail"
	OnErrorContinue = "continue"
)

// ConfigDir and ConfigFile locate the hook configuration inside a project.
const (
	ConfigDir  = ".refgraph"
	ConfigFile = "hooks.yaml"
)

// Hook defines a single hook configuration
type Hook struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"`                       // run with sh -c
	Timeout time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`   // default: 30s
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`           // values are expanded against the environment
	OnError string            `yaml:"on_error,omitempty" json:"on_error,omitempty"` // "fail" (default for pre) or "continue" (default for post)
}

// Config holds all hook configurations
type Config struct {
	Hooks HooksByPhase `yaml:"hooks" json:"hooks"`
}

// HooksByPhase organizes hooks by their execution phase
type HooksByPhase struct {
	PreExport  []Hook `yaml:"pre-export,omitempty" json:"pre-export,omitempty"`
	PostExport []Hook `yaml:"post-export,omitempty" json:"post-export,omitempty"`
}

// ExportContext is passed to hooks as REFGRAPH_* environment variables.
type ExportContext struct {
	ExportPath   string    // REFGRAPH_EXPORT_PATH: output file or directory
	ExportFormat string    // REFGRAPH_EXPORT_FORMAT: sqlite, mermaid, dot, graph, markdown (comma-separated)
	NodeCount    int       // REFGRAPH_NODE_COUNT
	CycleCount   int       // REFGRAPH_CYCLE_COUNT
	GraphSource  string    // REFGRAPH_SOURCE: file the graph was loaded from
	Timestamp    time.Time // REFGRAPH_TIMESTAMP (RFC3339)
}

// ToEnv converts export context to environment variables
func (c ExportContext) ToEnv() []string {
	return []string{
		fmt.Sprintf("REFGRAPH_EXPORT_PATH=%s", c.ExportPath),
		fmt.Sprintf("REFGRAPH_EXPORT_FORMAT=%s", c.ExportFormat),
		fmt.Sprintf("REFGRAPH_NODE_COUNT=%d", c.NodeCount),
		fmt.Sprintf("REFGRAPH_CYCLE_COUNT=%d", c.CycleCount),
		fmt.Sprintf("REFGRAPH_SOURCE=%s", c.GraphSource),
		fmt.Sprintf("REFGRAPH_TIMESTAMP=%s", c.Timestamp.Format(time.RFC3339)),
	}
}

// DefaultTimeout is the default hook execution timeout
const DefaultTimeout = 30 * time.Second

// Loader loads hook configuration from .refgraph/hooks.yaml
type Loader struct {
	projectDir string
	config     *Config
	warnings   []string
}

// LoaderOption configures the loader
type LoaderOption func(*Loader)

// WithProjectDir sets the project directory (default: current directory)
func WithProjectDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.projectDir = dir
	}
}

// NewLoader creates a new hook loader with options
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}

	for _, opt := range opts {
		opt(l)
	}

	if l.projectDir == "" {
		l.projectDir, _ = os.Getwd()
	}

	return l
}

// Path returns the hooks file the loader reads.
func (l *Loader) Path() string {
	return filepath.Join(l.projectDir, ConfigDir, ConfigFile)
}

// Load loads hook configuration. A missing file means no hooks.
func (l *Loader) Load() error {
	configPath := l.Path()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			l.config = &Config{}
			return nil
		}
		return fmt.Errorf("reading hooks config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing %s: %w", configPath, err)
	}

	l.normalizeConfig(&config)

	l.config = &config
	return nil
}

func (l *Loader) normalizeConfig(config *Config) {
	config.Hooks.PreExport, l.warnings = normalizeHooks(config.Hooks.PreExport, PreExport, l.warnings)
	config.Hooks.PostExport, l.warnings = normalizeHooks(config.Hooks.PostExport, PostExport, l.warnings)
}

// normalizeHooks applies defaults, drops empty commands, and accumulates warnings.
func normalizeHooks(hooks []Hook, phase HookPhase, warnings []string) ([]Hook, []string) {
	var out []Hook
	for i := range hooks {
		hook := hooks[i]
		if strings.TrimSpace(hook.Command) == "" {
			warnings = append(warnings, fmt.Sprintf("%s hook %d has empty command; skipping", phase, i+1))
			continue
		}
		if hook.Timeout == 0 {
			hook.Timeout = DefaultTimeout
		}
		switch hook.OnError {
		case OnErrorFail, OnErrorContinue:
		case "":
			hook.OnError = OnErrorContinue
			if phase == PreExport {
				hook.OnError = OnErrorFail
			}
		default:
			warnings = append(warnings, fmt.Sprintf("%s hook %d has unknown on_error %q; using %q", phase, i+1, hook.OnError, OnErrorFail))
			hook.OnError = OnErrorFail
		}
		if hook.Name == "" {
			hook.Name = fmt.Sprintf("%s-%d", phase, i+1)
		}
		out = append(out, hook)
	}
	return out, warnings
}

// Config returns the loaded configuration (or empty if not loaded)
func (l *Loader) Config() *Config {
	if l.config == nil {
		return &Config{}
	}
	return l.config
}

// HasHooks returns true if any hooks are configured
func (l *Loader) HasHooks() bool {
	if l.config == nil {
		return false
	}
	return len(l.config.Hooks.PreExport) > 0 || len(l.config.Hooks.PostExport) > 0
}

// GetHooks returns hooks for a specific phase
func (l *Loader) GetHooks(phase HookPhase) []Hook {
	if l.config == nil {
		return nil
	}

	switch phase {
	case PreExport:
		return l.config.Hooks.PreExport
	case PostExport:
		return l.config.Hooks.PostExport
	default:
		return nil
	}
}

// Warnings returns any warnings from loading
func (l *Loader) Warnings() []string {
	return l.warnings
}

// LoadDefault creates a loader for the current directory and loads it.
func LoadDefault() (*Loader, error) {
	loader := NewLoader()
	if err := loader.Load(); err != nil {
		return nil, err
	}
	return loader, nil
}

// UnmarshalYAML accepts timeouts as durations ("5s") or bare seconds ("30").
func (h *Hook) UnmarshalYAML(node *yaml.Node) error {
	// Must mirror Hook except for Timeout.
	type hookDTO struct {
		Name    string            `yaml:"name"`
		Command string            `yaml:"command"`
		Timeout string            `yaml:"timeout,omitempty"`
		Env     map[string]string `yaml:"env,omitempty"`
		OnError string            `yaml:"on_error,omitempty"`
	}

	var dto hookDTO
	if err := node.Decode(&dto); err != nil {
		return err
	}

	h.Name = dto.Name
	h.Command = dto.Command
	h.Env = dto.Env
	h.OnError = dto.OnError

	if dto.Timeout != "" {
		d, err := time.ParseDuration(dto.Timeout)
		if err == nil {
			h.Timeout = d
		} else {
			var seconds float64
			if _, scanErr := fmt.Sscanf(dto.Timeout, "%f", &seconds); scanErr == nil {
				h.Timeout = time.Duration(seconds * float64(time.Second))
			} else {
				return fmt.Errorf("invalid timeout %q: %w", dto.Timeout, err)
			}
		}
	}

	return nil
}
