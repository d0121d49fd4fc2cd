package drift

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// ConfigDir and ConfigFile locate drift thresholds inside a project.
const (
	ConfigDir  = ".refgraph"
	ConfigFile = "drift.yaml"
)

// Config holds the thresholds for drift alerts.
type Config struct {
	// Density growth, in percent over the baseline.
	DensityWarningPct float64 `yaml:"density_warning_pct" json:"density_warning_pct"`
	DensityInfoPct    float64 `yaml:"density_info_pct" json:"density_info_pct"`

	NodeGrowthInfoPct float64 `yaml:"node_growth_info_pct" json:"node_growth_info_pct"`
	EdgeGrowthInfoPct float64 `yaml:"edge_growth_info_pct" json:"edge_growth_info_pct"`

	// Absolute increases.
	DanglingIncreaseThreshold     int `yaml:"dangling_increase_threshold" json:"dangling_increase_threshold"`
	UnreferencedIncreaseThreshold int `yaml:"unreferenced_increase_threshold" json:"unreferenced_increase_threshold"`

	// Change in dependent count of a most-referenced node, in percent.
	ReferencedChangeWarningPct float64 `yaml:"referenced_change_warning_pct" json:"referenced_change_warning_pct"`

	DisabledAlerts []string `yaml:"disabled_alerts,omitempty" json:"disabled_alerts,omitempty"`
}

// DefaultConfig returns the built-in thresholds.
func DefaultConfig() *Config {
	return &Config{
		DensityWarningPct:             50,
		DensityInfoPct:                20,
		NodeGrowthInfoPct:             25,
		EdgeGrowthInfoPct:             25,
		DanglingIncreaseThreshold:     1,
		UnreferencedIncreaseThreshold: 5,
		ReferencedChangeWarningPct:    50,
	}
}

// Validate checks that thresholds are usable.
func (c *Config) Validate() error {
	var errs []error
	if c.DensityWarningPct < 0 {
		errs = append(errs, fmt.Errorf("density_warning_pct must be >= 0, got %v", c.DensityWarningPct))
	}
	if c.DensityInfoPct < 0 {
		errs = append(errs, fmt.Errorf("density_info_pct must be >= 0, got %v", c.DensityInfoPct))
	}
	if c.DensityInfoPct > c.DensityWarningPct {
		errs = append(errs, fmt.Errorf("density_info_pct (%v) must not exceed density_warning_pct (%v)", c.DensityInfoPct, c.DensityWarningPct))
	}
	if c.NodeGrowthInfoPct < 0 {
		errs = append(errs, fmt.Errorf("node_growth_info_pct must be >= 0, got %v", c.NodeGrowthInfoPct))
	}
	if c.EdgeGrowthInfoPct < 0 {
		errs = append(errs, fmt.Errorf("edge_growth_info_pct must be >= 0, got %v", c.EdgeGrowthInfoPct))
	}
	if c.DanglingIncreaseThreshold < 0 {
		errs = append(errs, fmt.Errorf("dangling_increase_threshold must be >= 0, got %d", c.DanglingIncreaseThreshold))
	}
	if c.UnreferencedIncreaseThreshold < 0 {
		errs = append(errs, fmt.Errorf("unreferenced_increase_threshold must be >= 0, got %d", c.UnreferencedIncreaseThreshold))
	}
	if c.ReferencedChangeWarningPct < 0 {
		errs = append(errs, fmt.Errorf("referenced_change_warning_pct must be >= 0, got %v", c.ReferencedChangeWarningPct))
	}
	return errors.Join(errs...)
}

// IsAlertDisabled reports whether alerts of the given type are suppressed.
func (c *Config) IsAlertDisabled(alertType string) bool {
	return slices.Contains(c.DisabledAlerts, alertType)
}

// ConfigPath returns the drift config path for a project directory.
func ConfigPath(projectDir string) string {
	return filepath.Join(projectDir, ConfigDir, ConfigFile)
}

// LoadConfig reads .refgraph/drift.yaml under projectDir. Missing files
// yield the defaults; fields absent from the file keep their defaults.
func LoadConfig(projectDir string) (*Config, error) {
	config := DefaultConfig()
	path := ConfigPath(projectDir)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("reading drift config: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing drift config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid drift config %s: %w", path, err)
	}
	return config, nil
}

// SaveConfig writes config to .refgraph/drift.yaml under projectDir.
func SaveConfig(projectDir string, config *Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid drift config: %w", err)
	}
	dir := filepath.Join(projectDir, ConfigDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("encoding drift config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(projectDir), data, 0o644); err != nil {
		return fmt.Errorf("writing drift config: %w", err)
	}
	return nil
}

// ExampleConfig returns a commented drift.yaml with the default values.
func ExampleConfig() string {
	return `# Drift thresholds for refgraph --check-drift
# Place in .refgraph/drift.yaml next to your graph files.

# Density growth over the baseline, in percent
density_warning_pct: 50
density_info_pct: 20

# Node and reference count growth that is worth mentioning, in percent
node_growth_info_pct: 25
edge_growth_info_pct: 25

# New dangling references before a warning is raised
dangling_increase_threshold: 1

# New unreferenced nodes before an info alert is raised
unreferenced_increase_threshold: 5

# Change in dependents of a most-referenced node, in percent
referenced_change_warning_pct: 50

# Alert types to suppress entirely
# disabled_alerts:
#   - node_growth
#   - edge_growth
`
}
