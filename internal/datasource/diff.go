package datasource

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/vanderheijden86/refgraph/pkg/model"
)

// SourceDiff represents differences between two data sources
type SourceDiff struct {
	// SourceA is the path of the first source
	SourceA string `json:"source_a"`
	// SourceB is the path of the second source
	SourceB string `json:"source_b"`
	// MissingInA contains labels present in B but not in A
	MissingInA []string `json:"missing_in_a,omitempty"`
	// MissingInB contains labels present in A but not in B
	MissingInB []string `json:"missing_in_b,omitempty"`
	// RefMismatch contains nodes whose dependency lists differ
	RefMismatch []RefDifference `json:"ref_mismatch,omitempty"`
	// CountA is the number of nodes in source A
	CountA int `json:"count_a"`
	// CountB is the number of nodes in source B
	CountB int `json:"count_b"`
}

// RefDifference is a dependency-list mismatch for a single node
type RefDifference struct {
	Label string   `json:"label"`
	RefsA []string `json:"refs_a"`
	RefsB []string `json:"refs_b"`
}

// HasInconsistencies returns true if there are any differences between sources
func (d SourceDiff) HasInconsistencies() bool {
	return len(d.MissingInA) > 0 || len(d.MissingInB) > 0 || len(d.RefMismatch) > 0
}

// Summary returns a human-readable summary of the differences
func (d SourceDiff) Summary() string {
	if !d.HasInconsistencies() {
		return fmt.Sprintf("Sources match (%d nodes each)", d.CountA)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Inconsistencies found between %s and %s:\n", d.SourceA, d.SourceB)

	if d.CountA != d.CountB {
		fmt.Fprintf(&sb, "  - Count mismatch: %d vs %d\n", d.CountA, d.CountB)
	}
	writeLabels := func(labels []string, in, notIn string) {
		if len(labels) == 0 {
			return
		}
		fmt.Fprintf(&sb, "  - %d nodes in %s but not %s\n", len(labels), in, notIn)
		if len(labels) <= 5 {
			for _, label := range labels {
				fmt.Fprintf(&sb, "    - %s\n", label)
			}
		}
	}
	writeLabels(d.MissingInA, d.SourceB, d.SourceA)
	writeLabels(d.MissingInB, d.SourceA, d.SourceB)

	if len(d.RefMismatch) > 0 {
		fmt.Fprintf(&sb, "  - %d nodes with different references\n", len(d.RefMismatch))
		if len(d.RefMismatch) <= 5 {
			for _, m := range d.RefMismatch {
				fmt.Fprintf(&sb, "    - %s: [%s] vs [%s]\n", m.Label, strings.Join(m.RefsA, ", "), strings.Join(m.RefsB, ", "))
			}
		}
	}

	return sb.String()
}

// DiffOptions configures the diff operation
type DiffOptions struct {
	// IgnoreOrder compares dependency lists as multisets
	IgnoreOrder bool
	// MaxDifferences limits the number of differences tracked (0 = unlimited)
	MaxDifferences int
}

// DefaultDiffOptions returns sensible default diff options
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{MaxDifferences: 100}
}

// DetectInconsistencies compares two graphs and returns differences. Results
// are sorted by label.
func DetectInconsistencies(a, b *model.RefGraph, sourceA, sourceB string, opts DiffOptions) SourceDiff {
	diff := SourceDiff{
		SourceA: sourceA,
		SourceB: sourceB,
		CountA:  a.Len(),
		CountB:  b.Len(),
	}
	room := func(n int) bool { return opts.MaxDifferences == 0 || n < opts.MaxDifferences }

	for _, label := range sortedLabels(a) {
		if !b.Has(label) {
			if room(len(diff.MissingInB)) {
				diff.MissingInB = append(diff.MissingInB, label)
			}
			continue
		}
		refsA, refsB := a.Dependencies(label), b.Dependencies(label)
		if !sameRefs(refsA, refsB, opts.IgnoreOrder) && room(len(diff.RefMismatch)) {
			diff.RefMismatch = append(diff.RefMismatch, RefDifference{Label: label, RefsA: refsA, RefsB: refsB})
		}
	}
	for _, label := range sortedLabels(b) {
		if !a.Has(label) && room(len(diff.MissingInA)) {
			diff.MissingInA = append(diff.MissingInA, label)
		}
	}

	return diff
}

func sortedLabels(g *model.RefGraph) []string {
	labels := g.Labels()
	sort.Strings(labels)
	return labels
}

func sameRefs(a, b []string, ignoreOrder bool) bool {
	if ignoreOrder {
		a, b = slices.Clone(a), slices.Clone(b)
		sort.Strings(a)
		sort.Strings(b)
	}
	return slices.Equal(a, b)
}

// CompareSources loads and compares two data sources
func CompareSources(sourceA, sourceB DataSource, opts DiffOptions) (*SourceDiff, error) {
	a, err := LoadFromSource(sourceA)
	if err != nil {
		return nil, fmt.Errorf("failed to load source A (%s): %w", sourceA.Path, err)
	}
	b, err := LoadFromSource(sourceB)
	if err != nil {
		return nil, fmt.Errorf("failed to load source B (%s): %w", sourceB.Path, err)
	}

	diff := DetectInconsistencies(a, b, sourceA.Path, sourceB.Path, opts)
	return &diff, nil
}

// CheckAllSourcesConsistent compares every pair of valid sources and returns
// the pairs that disagree.
func CheckAllSourcesConsistent(sources []DataSource, opts DiffOptions) ([]SourceDiff, error) {
	var diffs []SourceDiff
	for i := 0; i < len(sources); i++ {
		if !sources[i].Valid {
			continue
		}
		for j := i + 1; j < len(sources); j++ {
			if !sources[j].Valid {
				continue
			}
			diff, err := CompareSources(sources[i], sources[j], opts)
			if err != nil {
				return diffs, err
			}
			if diff.HasInconsistencies() {
				diffs = append(diffs, *diff)
			}
		}
	}
	return diffs, nil
}

// InconsistencyReport provides a comprehensive report of all source inconsistencies
type InconsistencyReport struct {
	// Sources is the list of all sources checked
	Sources []DataSource `json:"sources"`
	// Diffs contains all detected differences
	Diffs []SourceDiff `json:"diffs"`
	// TotalInconsistencies is the total number of inconsistencies found
	TotalInconsistencies int `json:"total_inconsistencies"`
	// HasCriticalInconsistencies is set when a shared node's references differ
	HasCriticalInconsistencies bool `json:"has_critical_inconsistencies"`
}

// GenerateInconsistencyReport creates a comprehensive report
func GenerateInconsistencyReport(sources []DataSource, opts DiffOptions) (*InconsistencyReport, error) {
	diffs, err := CheckAllSourcesConsistent(sources, opts)
	if err != nil {
		return nil, err
	}

	report := &InconsistencyReport{
		Sources: sources,
		Diffs:   diffs,
	}
	for _, diff := range diffs {
		report.TotalInconsistencies += len(diff.MissingInA) + len(diff.MissingInB) + len(diff.RefMismatch)
		if len(diff.RefMismatch) > 0 {
			report.HasCriticalInconsistencies = true
		}
	}
	return report, nil
}
