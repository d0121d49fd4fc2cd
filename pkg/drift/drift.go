// Package drift compares a current graph snapshot against a saved baseline
// and raises alerts for structural regressions.
package drift

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/refgraph/pkg/baseline"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

// Severity ranks an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// AlertType names what drifted.
type AlertType string

const (
	AlertNewCycle             AlertType = "new_cycle"
	AlertResolvedCycle        AlertType = "resolved_cycle"
	AlertDensityGrowth        AlertType = "density_growth"
	AlertNodeGrowth           AlertType = "node_growth"
	AlertEdgeGrowth           AlertType = "edge_growth"
	AlertDanglingIncrease     AlertType = "dangling_increase"
	AlertUnreferencedIncrease AlertType = "unreferenced_increase"
	AlertReferencedChange     AlertType = "referenced_change"
)

// Alert is one detected change.
type Alert struct {
	Type          AlertType `json:"type"`
	Severity      Severity  `json:"severity"`
	Message       string    `json:"message"`
	BaselineValue float64   `json:"baseline_value,omitempty"`
	CurrentValue  float64   `json:"current_value,omitempty"`
	Delta         float64   `json:"delta,omitempty"`
	Details       []string  `json:"details,omitempty"`
}

// Result is the outcome of a drift check.
type Result struct {
	HasDrift      bool      `json:"has_drift"`
	Alerts        []Alert   `json:"alerts"`
	CriticalCount int       `json:"critical_count"`
	WarningCount  int       `json:"warning_count"`
	InfoCount     int       `json:"info_count"`
	BaselineAt    time.Time `json:"baseline_at"`
	CheckedAt     time.Time `json:"checked_at"`
}

// HasCritical reports whether any critical alert was raised.
func (r *Result) HasCritical() bool { return r.CriticalCount > 0 }

// HasWarnings reports whether any warning or critical alert was raised.
func (r *Result) HasWarnings() bool { return r.WarningCount > 0 || r.CriticalCount > 0 }

// ExitCode maps the result to a process exit code:
// 0 for no drift or info only, 1 for critical, 2 for warnings.
func (r *Result) ExitCode() int {
	switch {
	case r.CriticalCount > 0:
		return 1
	case r.WarningCount > 0:
		return 2
	default:
		return 0
	}
}

// Summary renders the result for a terminal.
func (r *Result) Summary() string {
	if !r.HasDrift {
		return "No drift detected.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Drift detected: %d critical, %d warning, %d info\n", r.CriticalCount, r.WarningCount, r.InfoCount)
	for _, a := range r.Alerts {
		fmt.Fprintf(&sb, "  [%s] %s\n", strings.ToUpper(string(a.Severity)), a.Message)
		for _, d := range a.Details {
			fmt.Fprintf(&sb, "      - %s\n", d)
		}
	}
	return sb.String()
}

// Calculator compares two baselines.
type Calculator struct {
	baseline *baseline.Baseline
	current  *baseline.Baseline
	config   *Config
}

// NewCalculator creates a calculator. A nil config uses DefaultConfig.
func NewCalculator(bl, current *baseline.Baseline, config *Config) *Calculator {
	if config == nil {
		config = DefaultConfig()
	}
	return &Calculator{baseline: bl, current: current, config: config}
}

// Calculate runs every check and returns the alerts, most severe first.
func (c *Calculator) Calculate() *Result {
	result := &Result{
		Alerts:     []Alert{},
		BaselineAt: c.baseline.CreatedAt,
		CheckedAt:  c.current.CreatedAt,
	}

	c.checkCycles(result)
	c.checkDensity(result)
	c.checkGrowth(result)
	c.checkDangling(result)
	c.checkUnreferenced(result)
	c.checkReferenced(result)

	sort.SliceStable(result.Alerts, func(i, j int) bool {
		return result.Alerts[i].Severity.rank() > result.Alerts[j].Severity.rank()
	})
	for _, a := range result.Alerts {
		switch a.Severity {
		case SeverityCritical:
			result.CriticalCount++
		case SeverityWarning:
			result.WarningCount++
		default:
			result.InfoCount++
		}
	}
	result.HasDrift = len(result.Alerts) > 0
	return result
}

func (c *Calculator) add(result *Result, a Alert) {
	if c.config.IsAlertDisabled(string(a.Type)) {
		return
	}
	result.Alerts = append(result.Alerts, a)
}

func (c *Calculator) checkCycles(result *Result) {
	before := make(map[string]bool, len(c.baseline.Cycles))
	for _, cycle := range c.baseline.Cycles {
		before[cycleKey(cycle)] = true
	}
	after := make(map[string]bool, len(c.current.Cycles))
	for _, cycle := range c.current.Cycles {
		after[cycleKey(cycle)] = true
	}

	var added, resolved []string
	for _, cycle := range c.current.Cycles {
		if !before[cycleKey(cycle)] {
			added = append(added, strings.Join(cycle, " → "))
		}
	}
	for _, cycle := range c.baseline.Cycles {
		if !after[cycleKey(cycle)] {
			resolved = append(resolved, strings.Join(cycle, " → "))
		}
	}

	if len(added) > 0 {
		c.add(result, Alert{
			Type:          AlertNewCycle,
			Severity:      SeverityCritical,
			Message:       fmt.Sprintf("%d new reference cycle(s)", len(added)),
			BaselineValue: float64(len(c.baseline.Cycles)),
			CurrentValue:  float64(len(c.current.Cycles)),
			Delta:         float64(len(added)),
			Details:       added,
		})
	}
	if len(resolved) > 0 {
		c.add(result, Alert{
			Type:          AlertResolvedCycle,
			Severity:      SeverityInfo,
			Message:       fmt.Sprintf("%d cycle(s) resolved", len(resolved)),
			BaselineValue: float64(len(c.baseline.Cycles)),
			CurrentValue:  float64(len(c.current.Cycles)),
			Delta:         -float64(len(resolved)),
			Details:       resolved,
		})
	}
}

func (c *Calculator) checkDensity(result *Result) {
	base, cur := c.baseline.Stats.Density, c.current.Stats.Density
	if base == 0 || cur <= base {
		return
	}
	pct := (cur - base) / base * 100

	severity := SeverityInfo
	switch {
	case pct >= c.config.DensityWarningPct:
		severity = SeverityWarning
	case pct < c.config.DensityInfoPct:
		return
	}
	c.add(result, Alert{
		Type:          AlertDensityGrowth,
		Severity:      severity,
		Message:       fmt.Sprintf("Graph density up %.0f%% (%.4f → %.4f)", pct, base, cur),
		BaselineValue: base,
		CurrentValue:  cur,
		Delta:         cur - base,
	})
}

func (c *Calculator) checkGrowth(result *Result) {
	b, s := c.baseline.Stats, c.current.Stats
	if pct, ok := growth(b.NodeCount, s.NodeCount, c.config.NodeGrowthInfoPct); ok {
		c.add(result, Alert{
			Type:          AlertNodeGrowth,
			Severity:      SeverityInfo,
			Message:       fmt.Sprintf("Node count up %.0f%% (%d → %d)", pct, b.NodeCount, s.NodeCount),
			BaselineValue: float64(b.NodeCount),
			CurrentValue:  float64(s.NodeCount),
			Delta:         float64(s.NodeCount - b.NodeCount),
		})
	}
	if pct, ok := growth(b.EdgeCount, s.EdgeCount, c.config.EdgeGrowthInfoPct); ok {
		c.add(result, Alert{
			Type:          AlertEdgeGrowth,
			Severity:      SeverityInfo,
			Message:       fmt.Sprintf("Reference count up %.0f%% (%d → %d)", pct, b.EdgeCount, s.EdgeCount),
			BaselineValue: float64(b.EdgeCount),
			CurrentValue:  float64(s.EdgeCount),
			Delta:         float64(s.EdgeCount - b.EdgeCount),
		})
	}
}

// growth returns the percent increase from base to cur when it reaches threshold.
func growth(base, cur int, threshold float64) (float64, bool) {
	if base == 0 || cur <= base {
		return 0, false
	}
	pct := float64(cur-base) / float64(base) * 100
	return pct, pct >= threshold
}

func (c *Calculator) checkDangling(result *Result) {
	base, cur := c.baseline.Stats.DanglingCount, c.current.Stats.DanglingCount
	delta := cur - base
	if delta <= 0 || delta < c.config.DanglingIncreaseThreshold {
		return
	}

	known := make(map[model.Reference]bool, len(c.baseline.Dangling))
	for _, ref := range c.baseline.Dangling {
		known[ref] = true
	}
	var details []string
	for _, ref := range c.current.Dangling {
		if !known[ref] {
			details = append(details, fmt.Sprintf("%s → %s", ref.From, ref.To))
		}
	}

	c.add(result, Alert{
		Type:          AlertDanglingIncrease,
		Severity:      SeverityWarning,
		Message:       fmt.Sprintf("%d more dangling reference(s) (%d → %d)", delta, base, cur),
		BaselineValue: float64(base),
		CurrentValue:  float64(cur),
		Delta:         float64(delta),
		Details:       details,
	})
}

func (c *Calculator) checkUnreferenced(result *Result) {
	base, cur := c.baseline.Stats.UnreferencedCount, c.current.Stats.UnreferencedCount
	delta := cur - base
	if delta <= 0 || delta < c.config.UnreferencedIncreaseThreshold {
		return
	}
	c.add(result, Alert{
		Type:          AlertUnreferencedIncrease,
		Severity:      SeverityInfo,
		Message:       fmt.Sprintf("%d more unreferenced node(s) (%d → %d)", delta, base, cur),
		BaselineValue: float64(base),
		CurrentValue:  float64(cur),
		Delta:         float64(delta),
	})
}

// checkReferenced flags most-referenced nodes whose dependent count moved
// by at least the configured percentage. Nodes new to the list are ignored.
func (c *Calculator) checkReferenced(result *Result) {
	before := make(map[string]float64, len(c.baseline.TopMetrics.MostReferenced))
	for _, item := range c.baseline.TopMetrics.MostReferenced {
		before[item.ID] = item.Value
	}

	var details []string
	var maxPct float64
	for _, item := range c.current.TopMetrics.MostReferenced {
		base, ok := before[item.ID]
		if !ok || base == 0 || item.Value == base {
			continue
		}
		pct := math.Abs(item.Value-base) / base * 100
		if pct < c.config.ReferencedChangeWarningPct {
			continue
		}
		details = append(details, fmt.Sprintf("%s: %.0f → %.0f dependents (%+.0f%%)", item.ID, base, item.Value, (item.Value-base)/base*100))
		maxPct = math.Max(maxPct, pct)
	}
	if len(details) == 0 {
		return
	}
	c.add(result, Alert{
		Type:     AlertReferencedChange,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("%d heavily referenced node(s) changed by up to %.0f%%", len(details), maxPct),
		Delta:    float64(len(details)),
		Details:  details,
	})
}

// cycleKey returns a rotation-invariant key for a cycle. The closing
// repeat of the first label, if present, is ignored.
func cycleKey(cycle []string) string {
	nodes := cycle
	if len(nodes) > 1 && nodes[0] == nodes[len(nodes)-1] {
		nodes = nodes[:len(nodes)-1]
	}
	if len(nodes) == 0 {
		return ""
	}
	start := 0
	for i, label := range nodes {
		if label < nodes[start] {
			start = i
		}
	}
	rotated := make([]string, 0, len(nodes))
	rotated = append(rotated, nodes[start:]...)
	rotated = append(rotated, nodes[:start]...)
	return strings.Join(rotated, "\x00")
}
