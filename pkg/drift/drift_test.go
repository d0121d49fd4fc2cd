package drift

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/refgraph/pkg/baseline"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

func findAlert(result *Result, typ AlertType) *Alert {
	for i := range result.Alerts {
		if result.Alerts[i].Type == typ {
			return &result.Alerts[i]
		}
	}
	return nil
}

func TestCalculatorNoDrift(t *testing.T) {
	bl := &baseline.Baseline{
		Version:   1,
		CreatedAt: time.Now(),
		Stats: baseline.GraphStats{
			NodeCount:         100,
			EdgeCount:         200,
			Density:           0.02,
			CycleCount:        1,
			DanglingCount:     2,
			UnreferencedCount: 10,
		},
		Cycles: [][]string{{"A", "B", "A"}},
	}

	current := &baseline.Baseline{
		Version:   1,
		CreatedAt: time.Now(),
		Stats:     bl.Stats,
		Cycles:    [][]string{{"B", "A", "B"}}, // same cycle, other rotation
	}

	result := NewCalculator(bl, current, nil).Calculate()
	if result.HasDrift {
		t.Errorf("expected no drift, got %d alerts: %+v", len(result.Alerts), result.Alerts)
	}
	if result.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, want 0", result.ExitCode())
	}
}

func TestCalculatorNewCycle(t *testing.T) {
	bl := &baseline.Baseline{
		Stats:  baseline.GraphStats{NodeCount: 10, EdgeCount: 15},
		Cycles: [][]string{},
	}
	current := &baseline.Baseline{
		Stats:  bl.Stats,
		Cycles: [][]string{{"A", "B", "C", "A"}},
	}

	result := NewCalculator(bl, current, nil).Calculate()

	if !result.HasDrift {
		t.Error("expected drift to be detected")
	}
	if result.CriticalCount != 1 {
		t.Errorf("expected 1 critical alert, got %d", result.CriticalCount)
	}
	alert := findAlert(result, AlertNewCycle)
	if alert == nil {
		t.Fatal("expected new_cycle alert")
	}
	if alert.Severity != SeverityCritical {
		t.Errorf("new cycle should be critical, got %s", alert.Severity)
	}
	if alert.Delta != 1 || len(alert.Details) != 1 || alert.Details[0] != "A → B → C → A" {
		t.Errorf("unexpected alert %+v", alert)
	}
	if result.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d, want 1", result.ExitCode())
	}
}

func TestCalculatorResolvedCycle(t *testing.T) {
	bl := &baseline.Baseline{
		Stats:  baseline.GraphStats{NodeCount: 10},
		Cycles: [][]string{{"A", "B", "C", "A"}, {"X", "Y", "X"}},
	}
	current := &baseline.Baseline{
		Stats:  bl.Stats,
		Cycles: [][]string{{"A", "B", "C", "A"}},
	}

	result := NewCalculator(bl, current, nil).Calculate()

	if findAlert(result, AlertNewCycle) != nil {
		t.Error("removing a cycle must not raise new_cycle")
	}
	alert := findAlert(result, AlertResolvedCycle)
	if alert == nil {
		t.Fatal("expected resolved_cycle alert")
	}
	if alert.Severity != SeverityInfo || alert.Details[0] != "X → Y → X" {
		t.Errorf("unexpected alert %+v", alert)
	}
	if result.ExitCode() != 0 {
		t.Errorf("info-only result should exit 0, got %d", result.ExitCode())
	}
}

func TestCalculatorDensity(t *testing.T) {
	tests := []struct {
		name     string
		base     float64
		current  float64
		want     Severity
		expected bool
	}{
		{"warning at 100%", 0.02, 0.04, SeverityWarning, true},
		{"warning at exactly 50%", 0.02, 0.03, SeverityWarning, true},
		{"info at 30%", 0.02, 0.026, SeverityInfo, true},
		{"below info", 0.02, 0.022, "", false},
		{"decrease", 0.04, 0.02, "", false},
		{"zero baseline", 0, 0.5, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bl := &baseline.Baseline{Stats: baseline.GraphStats{NodeCount: 100, Density: tt.base}}
			current := &baseline.Baseline{Stats: baseline.GraphStats{NodeCount: 100, Density: tt.current}}

			alert := findAlert(NewCalculator(bl, current, nil).Calculate(), AlertDensityGrowth)
			if (alert != nil) != tt.expected {
				t.Fatalf("alert present = %v, want %v", alert != nil, tt.expected)
			}
			if alert != nil && alert.Severity != tt.want {
				t.Errorf("severity = %s, want %s", alert.Severity, tt.want)
			}
		})
	}
}

func TestCalculatorGrowth(t *testing.T) {
	bl := &baseline.Baseline{Stats: baseline.GraphStats{NodeCount: 100, EdgeCount: 200}}
	current := &baseline.Baseline{Stats: baseline.GraphStats{NodeCount: 130, EdgeCount: 220}}

	result := NewCalculator(bl, current, nil).Calculate()

	nodes := findAlert(result, AlertNodeGrowth)
	if nodes == nil {
		t.Fatal("expected node_growth for +30%")
	}
	if nodes.Delta != 30 || nodes.Severity != SeverityInfo {
		t.Errorf("unexpected node alert %+v", nodes)
	}
	if findAlert(result, AlertEdgeGrowth) != nil {
		t.Error("+10% references is below the default threshold")
	}
}

func TestCalculatorDanglingIncrease(t *testing.T) {
	bl := &baseline.Baseline{
		Stats:    baseline.GraphStats{NodeCount: 10, DanglingCount: 1},
		Dangling: []model.Reference{{From: "A", To: "ghost"}},
	}
	current := &baseline.Baseline{
		Stats: baseline.GraphStats{NodeCount: 10, DanglingCount: 3},
		Dangling: []model.Reference{
			{From: "A", To: "ghost"},
			{From: "B", To: "gone"},
			{From: "C", To: "gone"},
		},
	}

	result := NewCalculator(bl, current, nil).Calculate()

	alert := findAlert(result, AlertDanglingIncrease)
	if alert == nil {
		t.Fatal("expected dangling_increase alert")
	}
	if alert.Severity != SeverityWarning || alert.Delta != 2 {
		t.Errorf("unexpected alert %+v", alert)
	}
	want := []string{"B → gone", "C → gone"}
	if strings.Join(alert.Details, ",") != strings.Join(want, ",") {
		t.Errorf("details = %v, want %v", alert.Details, want)
	}
	if result.ExitCode() != 2 {
		t.Errorf("ExitCode() = %d, want 2", result.ExitCode())
	}
}

func TestCalculatorDanglingStrictThreshold(t *testing.T) {
	bl := &baseline.Baseline{Stats: baseline.GraphStats{DanglingCount: 1}}
	current := &baseline.Baseline{Stats: baseline.GraphStats{DanglingCount: 3}}

	cfg := DefaultConfig()
	cfg.DanglingIncreaseThreshold = 5
	if findAlert(NewCalculator(bl, current, cfg).Calculate(), AlertDanglingIncrease) != nil {
		t.Error("+2 should not alert with threshold 5")
	}

	cfg.DanglingIncreaseThreshold = 0
	if findAlert(NewCalculator(bl, current, cfg).Calculate(), AlertDanglingIncrease) == nil {
		t.Error("threshold 0 should alert on any increase")
	}
	if findAlert(NewCalculator(current, bl, cfg).Calculate(), AlertDanglingIncrease) != nil {
		t.Error("a decrease should never alert")
	}
}

func TestCalculatorUnreferencedIncrease(t *testing.T) {
	bl := &baseline.Baseline{Stats: baseline.GraphStats{UnreferencedCount: 2}}
	current := &baseline.Baseline{Stats: baseline.GraphStats{UnreferencedCount: 9}}

	alert := findAlert(NewCalculator(bl, current, nil).Calculate(), AlertUnreferencedIncrease)
	if alert == nil {
		t.Fatal("expected unreferenced_increase alert")
	}
	if alert.Severity != SeverityInfo || alert.Delta != 7 {
		t.Errorf("unexpected alert %+v", alert)
	}
}

func TestCalculatorReferencedChange(t *testing.T) {
	bl := &baseline.Baseline{
		Stats: baseline.GraphStats{NodeCount: 100},
		TopMetrics: baseline.TopMetrics{
			MostReferenced: []baseline.MetricItem{
				{ID: "core", Value: 20},
				{ID: "util", Value: 10},
			},
		},
	}
	current := &baseline.Baseline{
		Stats: baseline.GraphStats{NodeCount: 100},
		TopMetrics: baseline.TopMetrics{
			MostReferenced: []baseline.MetricItem{
				{ID: "core", Value: 35}, // +75%
				{ID: "util", Value: 12}, // +20%
				{ID: "new", Value: 18},  // not in baseline
			},
		},
	}

	alert := findAlert(NewCalculator(bl, current, nil).Calculate(), AlertReferencedChange)
	if alert == nil {
		t.Fatal("expected referenced_change alert")
	}
	if len(alert.Details) != 1 || !strings.HasPrefix(alert.Details[0], "core: 20 → 35") {
		t.Errorf("details = %v, want only core", alert.Details)
	}
}

func TestCalculatorAlertOrder(t *testing.T) {
	bl := &baseline.Baseline{
		Stats: baseline.GraphStats{NodeCount: 10, EdgeCount: 10, DanglingCount: 0},
	}
	current := &baseline.Baseline{
		Stats:  baseline.GraphStats{NodeCount: 20, EdgeCount: 10, DanglingCount: 1},
		Cycles: [][]string{{"A", "A"}},
	}

	result := NewCalculator(bl, current, nil).Calculate()
	if len(result.Alerts) != 3 {
		t.Fatalf("expected 3 alerts, got %+v", result.Alerts)
	}
	wantOrder := []Severity{SeverityCritical, SeverityWarning, SeverityInfo}
	for i, want := range wantOrder {
		if result.Alerts[i].Severity != want {
			t.Errorf("alert %d severity = %s, want %s", i, result.Alerts[i].Severity, want)
		}
	}
	if result.CriticalCount != 1 || result.WarningCount != 1 || result.InfoCount != 1 {
		t.Errorf("counts = %d/%d/%d", result.CriticalCount, result.WarningCount, result.InfoCount)
	}
}

func TestCalculatorEmptyMetrics(t *testing.T) {
	result := NewCalculator(&baseline.Baseline{}, &baseline.Baseline{}, nil).Calculate()
	if result.HasDrift {
		t.Errorf("empty baselines should not drift, got %+v", result.Alerts)
	}
	if result.Alerts == nil {
		t.Error("Alerts should be an empty slice, not nil")
	}
}

func TestResultSummary(t *testing.T) {
	result := &Result{
		HasDrift: true,
		Alerts: []Alert{
			{Type: AlertNewCycle, Severity: SeverityCritical, Message: "New cycle", Details: []string{"A → B → A"}},
			{Type: AlertDensityGrowth, Severity: SeverityWarning, Message: "Density up"},
		},
		CriticalCount: 1,
		WarningCount:  1,
	}

	summary := result.Summary()
	for _, want := range []string{"CRITICAL", "WARNING", "A → B → A", "1 critical, 1 warning"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary should contain %q:\n%s", want, summary)
		}
	}

	if got := (&Result{}).Summary(); got != "No drift detected.\n" {
		t.Errorf("empty summary = %q", got)
	}
}

func TestResultExitCode(t *testing.T) {
	tests := []struct {
		name     string
		result   *Result
		expected int
	}{
		{"no drift", &Result{}, 0},
		{"info only", &Result{HasDrift: true, InfoCount: 1}, 0},
		{"warning", &Result{HasDrift: true, WarningCount: 1}, 2},
		{"critical", &Result{HasDrift: true, CriticalCount: 1}, 1},
		{"critical and warning", &Result{HasDrift: true, CriticalCount: 1, WarningCount: 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.ExitCode(); got != tt.expected {
				t.Errorf("ExitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestResultHasCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   *Result
		expected bool
	}{
		{"no alerts", &Result{}, false},
		{"info only", &Result{InfoCount: 5}, false},
		{"warning only", &Result{WarningCount: 3}, false},
		{"critical", &Result{CriticalCount: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.HasCritical(); got != tt.expected {
				t.Errorf("HasCritical() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestResultHasWarnings(t *testing.T) {
	tests := []struct {
		name     string
		result   *Result
		expected bool
	}{
		{"no alerts", &Result{}, false},
		{"info only", &Result{InfoCount: 5}, false},
		{"warning only", &Result{WarningCount: 1}, true},
		{"critical only", &Result{CriticalCount: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.HasWarnings(); got != tt.expected {
				t.Errorf("HasWarnings() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestExampleConfig(t *testing.T) {
	example := ExampleConfig()

	var config Config
	if err := yaml.Unmarshal([]byte(example), &config); err != nil {
		t.Fatalf("ExampleConfig() returned invalid YAML: %v", err)
	}
	for _, key := range []string{"density_warning_pct", "density_info_pct", "dangling_increase_threshold", "referenced_change_warning_pct"} {
		if !strings.Contains(example, key) {
			t.Errorf("ExampleConfig() should contain %q", key)
		}
	}
	if !reflect.DeepEqual(&config, DefaultConfig()) {
		t.Errorf("ExampleConfig() values differ from defaults:\n got %+v\nwant %+v", config, *DefaultConfig())
	}
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, ConfigDir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ConfigPath(dir), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestConfigLoadDefault(t *testing.T) {
	config, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.DensityWarningPct != 50 {
		t.Errorf("expected default density_warning_pct=50, got %f", config.DensityWarningPct)
	}
}

func TestConfigLoadCustom(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `
density_warning_pct: 75
dangling_increase_threshold: 10
disabled_alerts: [node_growth]
`)

	config, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.DensityWarningPct != 75 {
		t.Errorf("expected density_warning_pct=75, got %f", config.DensityWarningPct)
	}
	if config.DanglingIncreaseThreshold != 10 {
		t.Errorf("expected dangling_increase_threshold=10, got %d", config.DanglingIncreaseThreshold)
	}
	if config.DensityInfoPct != 20 {
		t.Errorf("unset fields should keep defaults, density_info_pct=%f", config.DensityInfoPct)
	}
	if !config.IsAlertDisabled("node_growth") {
		t.Error("node_growth should be disabled")
	}
}

func TestConfigLoadInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `density_warning_pct: -50`)

	if _, err := LoadConfig(tmpDir); err == nil || !strings.Contains(err.Error(), "invalid") {
		t.Errorf("expected invalid config error, got %v", err)
	}
}

func TestConfigLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "density_warning_pct: 50\n  bad_indentation: true\n    this_is_invalid")

	_, err := LoadConfig(tmpDir)
	if err == nil || !strings.Contains(err.Error(), "parsing") {
		t.Errorf("expected parsing error, got %v", err)
	}
}

func TestConfigLoadPermissionError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("Skipping permission test when running as root")
	}

	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "density_warning_pct: 50")
	path := ConfigPath(tmpDir)
	if err := os.Chmod(path, 0o000); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(path, 0o644)

	_, err := LoadConfig(tmpDir)
	if err == nil || !strings.Contains(err.Error(), "reading") {
		t.Errorf("expected reading error, got %v", err)
	}
}

func TestConfigSave(t *testing.T) {
	tmpDir := t.TempDir()
	config := DefaultConfig()
	config.DensityWarningPct = 80
	config.DisabledAlerts = []string{"edge_growth"}

	if err := SaveConfig(tmpDir, config); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig after save: %v", err)
	}
	if loaded.DensityWarningPct != 80 || !loaded.IsAlertDisabled("edge_growth") {
		t.Errorf("saved config not read back: %+v", loaded)
	}
}

func TestConfigSaveInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()

	err := SaveConfig(tmpDir, &Config{DensityWarningPct: -100})
	if err == nil || !strings.Contains(err.Error(), "invalid") {
		t.Errorf("expected invalid config error, got %v", err)
	}
	if _, err := os.Stat(ConfigPath(tmpDir)); err == nil {
		t.Error("config file should not have been created for invalid config")
	}
}

func TestConfigSaveMkdirError(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigDir), []byte("blocking file"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := SaveConfig(tmpDir, DefaultConfig())
	if err == nil || !strings.Contains(err.Error(), "creating config directory") {
		t.Errorf("expected mkdir error, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"valid default", DefaultConfig(), false},
		{"zero value", &Config{}, false},
		{"negative density warning", &Config{DensityWarningPct: -10}, true},
		{"info > warning", &Config{DensityWarningPct: 10, DensityInfoPct: 20}, true},
		{"negative dangling", &Config{DensityWarningPct: 50, DanglingIncreaseThreshold: -1}, true},
		{"negative unreferenced", &Config{DensityWarningPct: 50, UnreferencedIncreaseThreshold: -1}, true},
		{"negative node growth", &Config{DensityWarningPct: 50, NodeGrowthInfoPct: -5}, true},
		{"negative edge growth", &Config{DensityWarningPct: 50, EdgeGrowthInfoPct: -5}, true},
		{"negative referenced change", &Config{DensityWarningPct: 50, ReferencedChangeWarningPct: -20}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCycleKey(t *testing.T) {
	key1 := cycleKey([]string{"A", "B", "C", "A"})
	if key1 != cycleKey([]string{"A", "B", "C", "A"}) {
		t.Error("identical cycles should match")
	}
	if key1 != cycleKey([]string{"B", "C", "A", "B"}) {
		t.Error("rotations of one cycle should match")
	}
	if key1 != cycleKey([]string{"C", "A", "B"}) {
		t.Error("open and closed forms should match")
	}
	if key1 == cycleKey([]string{"A", "C", "B", "A"}) {
		t.Error("reversed direction is a different cycle")
	}
	if key1 == cycleKey([]string{"X", "Y", "Z", "X"}) {
		t.Error("different cycles should have different keys")
	}
	if cycleKey([]string{"A", "A"}) != "A" {
		t.Errorf("self reference key = %q, want A", cycleKey([]string{"A", "A"}))
	}
	if key := cycleKey([]string{}); key != "" {
		t.Errorf("empty cycle should have empty key, got %s", key)
	}
}

func TestDisabledAlerts(t *testing.T) {
	bl := &baseline.Baseline{Stats: baseline.GraphStats{NodeCount: 10, EdgeCount: 15}}
	current := &baseline.Baseline{
		Stats:  baseline.GraphStats{NodeCount: 10, EdgeCount: 15},
		Cycles: [][]string{{"A", "B", "C", "A"}},
	}

	cfg := DefaultConfig()
	if findAlert(NewCalculator(bl, current, cfg).Calculate(), AlertNewCycle) == nil {
		t.Fatal("expected cycle alert without disabling")
	}

	cfg.DisabledAlerts = []string{"new_cycle"}
	result := NewCalculator(bl, current, cfg).Calculate()
	if findAlert(result, AlertNewCycle) != nil {
		t.Error("cycle alert should be disabled")
	}
	if result.HasDrift || result.ExitCode() != 0 {
		t.Errorf("disabled alerts must not count, got %+v", result)
	}
}

func TestIsAlertDisabled(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.IsAlertDisabled("node_growth") {
		t.Error("node_growth should not be disabled by default")
	}

	cfg.DisabledAlerts = []string{"node_growth", "new_cycle"}
	if !cfg.IsAlertDisabled("node_growth") || !cfg.IsAlertDisabled("new_cycle") {
		t.Error("listed alerts should be disabled")
	}
	if cfg.IsAlertDisabled("density_growth") {
		t.Error("density_growth should not be disabled")
	}
}
