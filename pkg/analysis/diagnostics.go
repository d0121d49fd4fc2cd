package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/refgraph/pkg/model"
)

// DiagnosticKind classifies a diagnostic for the warning surface.
type DiagnosticKind string

const (
	DiagnosticCycle    DiagnosticKind = "cycle"
	DiagnosticDangling DiagnosticKind = "dangling_reference"
	DiagnosticImpact   DiagnosticKind = "high_impact"
)

// Diagnostic is a single user-facing finding about the reference graph.
type Diagnostic struct {
	Kind       DiagnosticKind `json:"kind"`
	Target     string         `json:"target"`
	Summary    string         `json:"summary"`
	Detail     string         `json:"detail,omitempty"`
	Confidence float64        `json:"confidence"`
	Related    []string       `json:"related,omitempty"`
	Action     string         `json:"action,omitempty"`
}

// DiagnosticConfig configures diagnostic generation
type DiagnosticConfig struct {
	// MaxCycles is the maximum number of cycle warnings to report
	// Default: 10
	MaxCycles int

	// IncludeSelfLoops whether to report self-references
	// Default: true
	IncludeSelfLoops bool

	// ImpactThreshold is the number of direct dependents at which a node is
	// reported as high impact. 0 disables impact diagnostics.
	// Default: 5
	ImpactThreshold int
}

// DefaultDiagnosticConfig returns sensible defaults
func DefaultDiagnosticConfig() DiagnosticConfig {
	return DiagnosticConfig{
		MaxCycles:        10,
		IncludeSelfLoops: true,
		ImpactThreshold:  5,
	}
}

// Diagnose turns a report into diagnostics: cycle warnings first, then
// dangling references, then high-impact nodes.
func Diagnose(g *model.RefGraph, report *Report, config DiagnosticConfig) []Diagnostic {
	if g == nil || report == nil {
		return nil
	}
	diags := cycleWarnings(report.Cycles, config)
	diags = append(diags, danglingWarnings(report.Dangling)...)
	if config.ImpactThreshold > 0 {
		diags = append(diags, impactWarnings(g, config.ImpactThreshold)...)
	}
	return diags
}

func cycleWarnings(cycles []Cycle, config DiagnosticConfig) []Diagnostic {
	var diags []Diagnostic
	reported := 0
	for _, cycle := range cycles {
		if reported >= config.MaxCycles {
			break
		}
		if cycle.IsSelfLoop() && !config.IncludeSelfLoops {
			continue
		}
		reported++

		cycleLen := cycle.Len()

		// Shorter cycles are more likely to be a mistake
		confidence := 1.0 - (float64(cycleLen-2) * 0.1)
		if confidence > 1.0 {
			confidence = 1.0
		}
		if confidence < 0.5 {
			confidence = 0.5
		}

		var summary string
		switch cycleLen {
		case 1:
			summary = fmt.Sprintf("Self-reference: %s references itself", cycle[0])
		case 2:
			summary = fmt.Sprintf("Direct circular reference between %s and %s", cycle[0], cycle[1])
		default:
			summary = fmt.Sprintf("Circular reference through %d entities", cycleLen)
		}

		d := Diagnostic{
			Kind:       DiagnosticCycle,
			Target:     cycle[0],
			Summary:    summary,
			Detail:     fmt.Sprintf("Cycle path: %s", formatCyclePath(cycle)),
			Confidence: confidence,
			// Suggest removing the closing edge of the loop
			Action: fmt.Sprintf("remove reference %s -> %s", cycle[cycleLen-1], cycle[0]),
		}
		if cycleLen >= 2 {
			d.Related = cycle.Nodes()[1:]
		}
		diags = append(diags, d)
	}
	return diags
}

func danglingWarnings(refs []model.Reference) []Diagnostic {
	byTarget := make(map[string][]string)
	var targets []string
	for _, ref := range refs {
		if _, ok := byTarget[ref.To]; !ok {
			targets = append(targets, ref.To)
		}
		byTarget[ref.To] = append(byTarget[ref.To], ref.From)
	}

	diags := make([]Diagnostic, 0, len(targets))
	for _, target := range targets {
		from := uniqueStrings(byTarget[target])
		diags = append(diags, Diagnostic{
			Kind:       DiagnosticDangling,
			Target:     target,
			Summary:    fmt.Sprintf("%s is referenced but not defined", target),
			Detail:     fmt.Sprintf("Referenced by: %s", strings.Join(from, ", ")),
			Confidence: 1.0,
			Related:    from,
		})
	}
	return diags
}

func impactWarnings(g *model.RefGraph, threshold int) []Diagnostic {
	idx := NewReverseIndex(g)
	var diags []Diagnostic
	for _, label := range g.Labels() {
		deps := idx.Dependents(label)
		if len(deps) < threshold {
			continue
		}
		diags = append(diags, Diagnostic{
			Kind:       DiagnosticImpact,
			Target:     label,
			Summary:    fmt.Sprintf("%d entities depend on %s", len(deps), label),
			Detail:     "Renaming or deleting it breaks every dependent",
			Confidence: 1.0,
			Related:    deps,
		})
	}
	sort.SliceStable(diags, func(i, j int) bool {
		return len(diags[i].Related) > len(diags[j].Related)
	})
	return diags
}

// formatCyclePath creates a readable cycle path string
func formatCyclePath(cycle []string) string {
	if len(cycle) == 0 {
		return ""
	}
	return strings.Join(cycle, " → ")
}

// WouldCreateCycle checks if adding a reference from->to would create a
// cycle. When it would, the returned path is the closed loop starting at from.
func WouldCreateCycle(g *model.RefGraph, from, to string) (bool, []string) {
	if from == to {
		return true, []string{from, from}
	}
	// A path to -> ... -> from plus the new edge closes a loop.
	if path, ok := shortestPathAny(g, to, from); ok {
		return true, append([]string{from}, path...)
	}
	return false, nil
}

// CheckReferenceAddition validates if a reference can be added without creating a cycle
// Returns (canAdd, cyclePath, warning)
func CheckReferenceAddition(g *model.RefGraph, from, to string) (bool, []string, string) {
	wouldCycle, path := WouldCreateCycle(g, from, to)
	if wouldCycle {
		warning := fmt.Sprintf("Adding reference %s → %s would create cycle: %s", from, to, formatCyclePath(path))
		return false, path, warning
	}
	return true, nil, ""
}

// shortestPathAny is ShortestPath but also starts from labels that are not
// nodes (a dangling target has no outgoing edges, so it only reaches itself).
func shortestPathAny(g *model.RefGraph, from, to string) ([]string, bool) {
	if !g.Has(from) {
		if from == to {
			return []string{from}, true
		}
		return nil, false
	}
	return ShortestPath(g, from, to)
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
