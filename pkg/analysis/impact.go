package analysis

import (
	"github.com/vanderheijden86/refgraph/pkg/metrics"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

// ReverseIndex maps a label to the nodes that reference it.
// Each edge contributes one entry, so a node listing a target twice appears twice.
type ReverseIndex struct {
	entries map[string][]string
}

// NewReverseIndex builds the dependents lookup for g in store order.
func NewReverseIndex(g *model.RefGraph) *ReverseIndex {
	idx := &ReverseIndex{entries: make(map[string][]string)}
	for _, label := range g.Labels() {
		g.EachDependency(label, func(dep string) {
			idx.entries[dep] = append(idx.entries[dep], label)
		})
	}
	return idx
}

// Dependents returns the distinct nodes referencing target, in store order.
func (r *ReverseIndex) Dependents(target string) []string {
	refs := r.entries[target]
	if len(refs) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out
}

// Count returns the number of edges pointing at target, with multiplicity.
func (r *ReverseIndex) Count(target string) int {
	return len(r.entries[target])
}

// Referenced reports whether any node lists target as a dependency.
func (r *ReverseIndex) Referenced(target string) bool {
	return len(r.entries[target]) > 0
}

// Dependents returns every node of g whose dependency list contains target.
// Only direct dependents are returned. An empty result means target can be
// removed without breaking another entity.
func Dependents(g *model.RefGraph, target string) []string {
	defer metrics.Timer(metrics.ImpactQuery)()

	out := []string{}
	for _, label := range g.Labels() {
		found := false
		g.EachDependency(label, func(dep string) {
			if dep == target {
				found = true
			}
		})
		if found {
			out = append(out, label)
		}
	}
	return out
}

// Orphans returns the candidates that no node of g lists as a dependency, in
// candidate order. Candidates are expected to exist; Orphans does not check
// that they are nodes of g, which separates "exists but unused" from
// "does not exist" for the caller.
func Orphans(g *model.RefGraph, candidates []string) []string {
	defer metrics.Timer(metrics.ImpactQuery)()

	referenced := make(map[string]bool)
	for _, label := range g.Labels() {
		g.EachDependency(label, func(dep string) {
			referenced[dep] = true
		})
	}

	out := []string{}
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		if !referenced[c] {
			out = append(out, c)
		}
	}
	return out
}

// Unreferenced returns the nodes of g that nothing references.
func Unreferenced(g *model.RefGraph) []string {
	return Orphans(g, g.Labels())
}

// TransitiveDependents returns every node that reaches target through one or
// more references, nearest first. target itself is included only when it
// reaches itself through a cycle.
func TransitiveDependents(g *model.RefGraph, target string) []string {
	defer metrics.Timer(metrics.ImpactQuery)()

	idx := NewReverseIndex(g)
	out := []string{}
	seen := make(map[string]bool)
	queue := []string{target}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ref := range idx.Dependents(cur) {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			out = append(out, ref)
			queue = append(queue, ref)
		}
	}
	return out
}

// DanglingReferences returns every edge whose target is not a node of g.
func DanglingReferences(g *model.RefGraph) []model.Reference {
	out := []model.Reference{}
	for _, ref := range g.References() {
		if !g.Has(ref.To) {
			out = append(out, ref)
		}
	}
	return out
}
