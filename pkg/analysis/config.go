package analysis

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// AnalysisConfig controls which components the Analyzer runs and how the
// potentially expensive cycle enumeration is bounded.
type AnalysisConfig struct {
	// Cycle enumeration (super-linear on dense graphs)
	ComputeCycles    bool          `json:"compute_cycles"`
	CyclesTimeout    time.Duration `json:"cycles_timeout"`
	MaxCyclesToStore int           `json:"max_cycles_to_store"`
	MaxCycleNodes    int           `json:"max_cycle_nodes"` // Graphs with more nodes skip cycle enumeration (0 = no limit)
	CyclesSkipReason string        `json:"cycles_skip_reason,omitempty"`

	// Strongly connected components (gonum Tarjan, linear)
	ComputeGroups bool `json:"compute_groups"`

	// Orders, stats and impact checks are linear and always computed.
}

// DefaultConfig returns the default analysis configuration.
func DefaultConfig() AnalysisConfig {
	cfg := AnalysisConfig{
		ComputeCycles:    true,
		CyclesTimeout:    2 * time.Second,
		MaxCyclesToStore: 1000,
		MaxCycleNodes:    5000,
		ComputeGroups:    true,
	}
	return ApplyEnvOverrides(cfg)
}

// ConfigForSize returns a configuration tuned to the graph size.
// Larger or denser graphs get shorter timeouts and smaller cycle caps.
func ConfigForSize(nodeCount, edgeCount int) AnalysisConfig {
	density := 0.0
	if nodeCount > 1 {
		density = float64(edgeCount) / float64(nodeCount*(nodeCount-1))
	}

	cfg := AnalysisConfig{
		ComputeCycles:    true,
		MaxCycleNodes:    5000,
		ComputeGroups:    true,
		CyclesTimeout:    2 * time.Second,
		MaxCyclesToStore: 1000,
	}

	switch {
	case nodeCount < 500:
		// defaults
	case nodeCount < 5000:
		cfg.CyclesTimeout = 500 * time.Millisecond
		cfg.MaxCyclesToStore = 100
		if density > 0.05 {
			cfg.MaxCyclesToStore = 50
		}
	default:
		cfg.ComputeCycles = false
		cfg.CyclesSkipReason = "graph too large (>5000 nodes)"
		cfg.MaxCyclesToStore = 10
	}
	return ApplyEnvOverrides(cfg)
}

// FullAnalysisConfig removes the size guard and uses generous timeouts.
func FullAnalysisConfig() AnalysisConfig {
	cfg := AnalysisConfig{
		ComputeCycles:    true,
		CyclesTimeout:    30 * time.Second,
		MaxCyclesToStore: 10000,
		ComputeGroups:    true,
	}
	return ApplyEnvOverrides(cfg)
}

const (
	// EnvSkipCycles disables cycle enumeration.
	EnvSkipCycles = "REFGRAPH_SKIP_CYCLES"
	// EnvCyclesTimeoutSeconds overrides the cycle timeout when set (>0).
	EnvCyclesTimeoutSeconds = "REFGRAPH_CYCLES_TIMEOUT_S"
)

// ApplyEnvOverrides applies environment-variable tunables to the config.
//
// Supported:
//   - REFGRAPH_SKIP_CYCLES=1: skip cycle enumeration.
//   - REFGRAPH_CYCLES_TIMEOUT_S=N: cycle timeout of N seconds (must be >0).
func ApplyEnvOverrides(cfg AnalysisConfig) AnalysisConfig {
	if envBool(EnvSkipCycles) {
		cfg.ComputeCycles = false
		cfg.CyclesSkipReason = EnvSkipCycles + " set"
	}
	if seconds, ok := envPositiveInt(EnvCyclesTimeoutSeconds); ok && cfg.ComputeCycles {
		cfg.CyclesTimeout = time.Duration(seconds) * time.Second
	}
	return cfg
}

func envPositiveInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func envBool(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
