package analysis

import (
	"sort"
	"time"

	"github.com/vanderheijden86/refgraph/pkg/model"
)

// Snapshot is a graph together with its analysis at a point in time.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source,omitempty"` // file the graph was loaded from
	Graph     *model.RefGraph `json:"-"`
	Report    *Report         `json:"report,omitempty"`
}

// NewSnapshot wraps an already analyzed graph.
func NewSnapshot(g *model.RefGraph, report *Report, source string) *Snapshot {
	return &Snapshot{
		Timestamp: time.Now(),
		Source:    source,
		Graph:     g,
		Report:    report,
	}
}

// SnapshotDiff represents the differences between two snapshots
type SnapshotDiff struct {
	FromTimestamp time.Time `json:"from_timestamp"`
	ToTimestamp   time.Time `json:"to_timestamp"`

	// Node changes
	AddedNodes   []string `json:"added_nodes"`
	RemovedNodes []string `json:"removed_nodes"`
	ChangedNodes []string `json:"changed_nodes"` // dependency list differs

	// Reference changes
	AddedReferences   []model.Reference `json:"added_references"`
	RemovedReferences []model.Reference `json:"removed_references"`

	// Graph changes
	NewCycles      []Cycle `json:"new_cycles"`
	ResolvedCycles []Cycle `json:"resolved_cycles"`

	Deltas  StatsDeltas `json:"deltas"`
	Summary DiffSummary `json:"summary"`
}

// StatsDeltas tracks changes in key metrics
type StatsDeltas struct {
	Nodes    int `json:"nodes"`
	Edges    int `json:"edges"`
	Cycles   int `json:"cycles"`
	Dangling int `json:"dangling"`
}

// DiffSummary provides quick overview of changes
type DiffSummary struct {
	TotalChanges     int    `json:"total_changes"`
	CyclesIntroduced int    `json:"cycles_introduced"`
	CyclesResolved   int    `json:"cycles_resolved"`
	HealthTrend      string `json:"health_trend"` // "improving", "degrading", "stable"
}

// CompareSnapshots computes the diff between two snapshots. Cycles are
// matched by rotation, so re-discovering a loop from another start is not
// reported as a change.
func CompareSnapshots(from, to *Snapshot) *SnapshotDiff {
	diff := &SnapshotDiff{
		FromTimestamp: from.Timestamp,
		ToTimestamp:   to.Timestamp,
	}

	for _, label := range to.Graph.Labels() {
		if !from.Graph.Has(label) {
			diff.AddedNodes = append(diff.AddedNodes, label)
			continue
		}
		if !equalLists(from.Graph.Dependencies(label), to.Graph.Dependencies(label)) {
			diff.ChangedNodes = append(diff.ChangedNodes, label)
		}
	}
	for _, label := range from.Graph.Labels() {
		if !to.Graph.Has(label) {
			diff.RemovedNodes = append(diff.RemovedNodes, label)
		}
	}

	diff.AddedReferences = referenceDifference(to.Graph, from.Graph)
	diff.RemovedReferences = referenceDifference(from.Graph, to.Graph)

	diff.NewCycles, diff.ResolvedCycles = compareCycles(reportCycles(from.Report), reportCycles(to.Report))
	diff.Deltas = calculateDeltas(from, to)
	diff.Summary = calculateSummary(diff)
	return diff
}

// IsEmpty returns true if there are no changes
func (d *SnapshotDiff) IsEmpty() bool {
	return d.Summary.TotalChanges == 0 &&
		d.Summary.CyclesIntroduced == 0 &&
		d.Summary.CyclesResolved == 0
}

func reportCycles(r *Report) []Cycle {
	if r == nil {
		return nil
	}
	return r.Cycles
}

// compareCycles returns cycles only in to (new) and only in from (resolved).
func compareCycles(from, to []Cycle) (newCycles, resolved []Cycle) {
	fromSet := make(map[string]bool, len(from))
	for _, c := range from {
		if c.IsClosed() {
			fromSet[c.key()] = true
		}
	}
	toSet := make(map[string]bool, len(to))
	for _, c := range to {
		if !c.IsClosed() {
			continue
		}
		toSet[c.key()] = true
		if !fromSet[c.key()] {
			newCycles = append(newCycles, c)
		}
	}
	for _, c := range from {
		if c.IsClosed() && !toSet[c.key()] {
			resolved = append(resolved, c)
		}
	}
	return newCycles, resolved
}

// referenceDifference returns the distinct references of a that b lacks.
func referenceDifference(a, b *model.RefGraph) []model.Reference {
	inB := make(map[model.Reference]bool)
	for _, ref := range b.References() {
		inB[ref] = true
	}
	seen := make(map[model.Reference]bool)
	var out []model.Reference
	for _, ref := range a.References() {
		if inB[ref] || seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

func calculateDeltas(from, to *Snapshot) StatsDeltas {
	deltas := StatsDeltas{
		Nodes: to.Graph.Len() - from.Graph.Len(),
		Edges: to.Graph.EdgeCount() - from.Graph.EdgeCount(),
	}
	if from.Report != nil && to.Report != nil {
		deltas.Cycles = len(to.Report.Cycles) - len(from.Report.Cycles)
		deltas.Dangling = len(to.Report.Dangling) - len(from.Report.Dangling)
	}
	return deltas
}

// calculateSummary generates summary statistics
func calculateSummary(diff *SnapshotDiff) DiffSummary {
	summary := DiffSummary{
		CyclesIntroduced: len(diff.NewCycles),
		CyclesResolved:   len(diff.ResolvedCycles),
	}
	summary.TotalChanges = len(diff.AddedNodes) + len(diff.RemovedNodes) + len(diff.ChangedNodes)

	score := 0
	// Resolving cycles is good
	score += summary.CyclesResolved * 2
	// Introducing cycles is bad
	score -= summary.CyclesIntroduced * 3
	// Fixing dangling references is good
	if diff.Deltas.Dangling < 0 {
		score += 2
	} else if diff.Deltas.Dangling > 0 {
		score--
	}

	switch {
	case score > 1:
		summary.HealthTrend = "improving"
	case score < -1:
		summary.HealthTrend = "degrading"
	default:
		summary.HealthTrend = "stable"
	}
	return summary
}

func equalLists(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
