package analysis

import (
	"testing"
	"time"
)

func TestConfigForSize(t *testing.T) {
	tests := []struct {
		name          string
		nodes, edges  int
		wantCycles    bool
		wantTimeout   time.Duration
		wantMaxStored int
	}{
		{"small", 100, 200, true, 2 * time.Second, 1000},
		{"medium sparse", 1000, 2000, true, 500 * time.Millisecond, 100},
		{"medium dense", 1000, 100000, true, 500 * time.Millisecond, 50},
		{"large", 10000, 20000, false, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ConfigForSize(tt.nodes, tt.edges)
			if cfg.ComputeCycles != tt.wantCycles {
				t.Errorf("ComputeCycles = %v, want %v", cfg.ComputeCycles, tt.wantCycles)
			}
			if tt.wantCycles && cfg.CyclesTimeout != tt.wantTimeout {
				t.Errorf("CyclesTimeout = %v, want %v", cfg.CyclesTimeout, tt.wantTimeout)
			}
			if cfg.MaxCyclesToStore != tt.wantMaxStored {
				t.Errorf("MaxCyclesToStore = %d, want %d", cfg.MaxCyclesToStore, tt.wantMaxStored)
			}
			if !tt.wantCycles && cfg.CyclesSkipReason == "" {
				t.Error("skipped cycles need a reason")
			}
			if !cfg.ComputeGroups {
				t.Error("groups are linear and always enabled")
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Run("skip cycles", func(t *testing.T) {
		t.Setenv(EnvSkipCycles, "yes")
		cfg := DefaultConfig()
		if cfg.ComputeCycles {
			t.Error("expected cycles disabled")
		}
		if cfg.CyclesSkipReason != "REFGRAPH_SKIP_CYCLES set" {
			t.Errorf("reason = %q", cfg.CyclesSkipReason)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Setenv(EnvCyclesTimeoutSeconds, "7")
		if got := DefaultConfig().CyclesTimeout; got != 7*time.Second {
			t.Errorf("CyclesTimeout = %v, want 7s", got)
		}
	})

	t.Run("invalid timeout ignored", func(t *testing.T) {
		t.Setenv(EnvCyclesTimeoutSeconds, "-3")
		if got := DefaultConfig().CyclesTimeout; got != 2*time.Second {
			t.Errorf("CyclesTimeout = %v, want default 2s", got)
		}
	})

	t.Run("false value", func(t *testing.T) {
		t.Setenv(EnvSkipCycles, "0")
		if !DefaultConfig().ComputeCycles {
			t.Error("0 should not disable cycles")
		}
	})
}

func TestFullAnalysisConfigHasNoNodeGuard(t *testing.T) {
	cfg := FullAnalysisConfig()
	if cfg.MaxCycleNodes != 0 || !cfg.ComputeCycles {
		t.Errorf("FullAnalysisConfig = %+v", cfg)
	}
}
