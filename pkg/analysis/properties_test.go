package analysis

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/refgraph/pkg/model"
	"github.com/vanderheijden86/refgraph/pkg/testutil"
)

// drawGraph draws a small graph. Dependency index n stands for a dangling
// label, so self-references, duplicates and dangling targets all occur.
func drawGraph(t *rapid.T) *model.RefGraph {
	n := rapid.IntRange(0, 7).Draw(t, "nodes")
	b := model.NewBuilder()
	for i := 0; i < n; i++ {
		idx := rapid.SliceOfN(rapid.IntRange(0, n), 0, 4).Draw(t, fmt.Sprintf("deps%d", i))
		deps := make([]string, len(idx))
		for j, d := range idx {
			if d == n {
				deps[j] = "ghost"
			} else {
				deps[j] = fmt.Sprintf("n%d", d)
			}
		}
		b.Add(fmt.Sprintf("n%d", i), deps...)
	}
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestPropertyCyclesAreClosedAndDistinct(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := drawGraph(t)
		cycles := FindCycles(g)
		for _, c := range cycles {
			testutil.AssertClosedCycle(t, g, c)
		}
		testutil.AssertNoRotationDuplicates(t, cycles)
	})
}

func TestPropertySelfReferenceAlwaysReported(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := drawGraph(t)
		reported := make(map[string]bool)
		for _, c := range FindCycles(g) {
			if c.IsSelfLoop() {
				reported[c[0]] = true
			}
		}
		for _, label := range g.Labels() {
			if testutil.HasReference(g, label, label) != reported[label] {
				t.Fatalf("self reference of %s: listed=%v reported=%v",
					label, testutil.HasReference(g, label, label), reported[label])
			}
		}
	})
}

func TestPropertyCycleDetectionAgreesWithPlanner(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := drawGraph(t)
		found := len(FindCycles(g)) > 0
		del := DeletionOrder(g)
		dep := DependencyOrder(g)
		if found != del.HasCycle || found != dep.HasCycle || found == Acyclic(g) {
			t.Fatalf("cycles found=%v deletion=%v dependency=%v acyclic=%v", found, del.HasCycle, dep.HasCycle, Acyclic(g))
		}
		if found {
			if del.Order != nil || dep.Order != nil {
				t.Fatalf("cycle plans carry partial orders %v / %v", del.Order, dep.Order)
			}
			return
		}
		testutil.AssertValidDeletionOrder(t, g, del.Order)
		testutil.AssertValidDependencyOrder(t, g, dep.Order)
	})
}

func TestPropertyDependentsListTarget(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := drawGraph(t)
		labels := append(g.Labels(), "ghost")
		target := rapid.SampledFrom(labels).Draw(t, "target")

		deps := Dependents(g, target)
		seen := make(map[string]bool)
		for _, d := range deps {
			if seen[d] {
				t.Fatalf("dependent %s listed twice", d)
			}
			seen[d] = true
			if !testutil.HasReference(g, d, target) {
				t.Fatalf("%s listed as dependent of %s without a reference", d, target)
			}
		}
		for _, label := range g.Labels() {
			if testutil.HasReference(g, label, target) && !seen[label] {
				t.Fatalf("%s references %s but is not listed", label, target)
			}
		}

		orphaned := len(Orphans(g, []string{target})) == 1
		if orphaned != (len(deps) == 0) {
			t.Fatalf("Orphans and Dependents disagree on %s", target)
		}
	})
}

func TestPropertyShortestPathIsValidAndMinimal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := drawGraph(t)
		if g.Len() == 0 {
			return
		}
		labels := g.Labels()
		from := rapid.SampledFrom(labels).Draw(t, "from")
		to := rapid.SampledFrom(append(labels, "ghost")).Draw(t, "to")

		path, ok := ShortestPath(g, from, to)
		reachable := from == to
		for _, r := range Reachable(g, from) {
			if r == to {
				reachable = true
			}
		}
		if ok != reachable {
			t.Fatalf("ShortestPath ok=%v but reachable=%v", ok, reachable)
		}
		if !ok {
			return
		}
		if path[0] != from || path[len(path)-1] != to {
			t.Fatalf("path %v does not run from %s to %s", path, from, to)
		}
		for i := 0; i+1 < len(path); i++ {
			if !testutil.HasReference(g, path[i], path[i+1]) {
				t.Fatalf("path %v uses missing reference %s -> %s", path, path[i], path[i+1])
			}
		}
		if d := bfsDistance(g, from, to); len(path)-1 != d {
			t.Fatalf("path %v has %d edges, shortest is %d", path, len(path)-1, d)
		}
	})
}

func TestPropertyStatsMatchCounts(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := drawGraph(t)
		s := ComputeStats(g)
		if s.EdgeCount != len(g.References()) {
			t.Fatalf("EdgeCount=%d, references=%d", s.EdgeCount, len(g.References()))
		}
		maxIn := 0
		for _, c := range DependentCounts(g) {
			if c > maxIn {
				maxIn = c
			}
		}
		if s.MaxInDegree != maxIn {
			t.Fatalf("MaxInDegree=%d, want %d", s.MaxInDegree, maxIn)
		}
		if s.DanglingCount != len(DanglingReferences(g)) {
			t.Fatalf("DanglingCount=%d, want %d", s.DanglingCount, len(DanglingReferences(g)))
		}
	})
}

// bfsDistance is an independent level-by-level BFS used as an oracle.
func bfsDistance(g *model.RefGraph, from, to string) int {
	if from == to {
		return 0
	}
	seen := map[string]bool{from: true}
	frontier := []string{from}
	for dist := 1; len(frontier) > 0; dist++ {
		var next []string
		for _, cur := range frontier {
			for _, dep := range g.Dependencies(cur) {
				if dep == to {
					return dist
				}
				if !seen[dep] {
					seen[dep] = true
					next = append(next, dep)
				}
			}
		}
		frontier = next
	}
	return -1
}
