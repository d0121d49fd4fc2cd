package testutil

import (
	"strings"

	"github.com/vanderheijden86/refgraph/pkg/model"
)

// T is the subset of testing.T the assertions use; *testing.T and
// *rapid.T both satisfy it.
type T interface {
	Helper()
	Errorf(format string, args ...any)
}

// AssertClosedCycle verifies that cycle starts and ends on the same label,
// that consecutive labels are joined by a reference in g, and that no label
// repeats inside the loop.
func AssertClosedCycle(t T, g *model.RefGraph, cycle []string) {
	t.Helper()
	if len(cycle) < 2 {
		t.Errorf("cycle %v too short", cycle)
		return
	}
	if cycle[0] != cycle[len(cycle)-1] {
		t.Errorf("cycle %v is not closed", cycle)
	}
	seen := make(map[string]bool)
	for i, label := range cycle[:len(cycle)-1] {
		if seen[label] {
			t.Errorf("cycle %v repeats %s", cycle, label)
		}
		seen[label] = true
		if !HasReference(g, label, cycle[i+1]) {
			t.Errorf("cycle %v uses missing reference %s -> %s", cycle, label, cycle[i+1])
		}
	}
}

// AssertNoRotationDuplicates verifies that no two cycles are rotations of
// each other.
func AssertNoRotationDuplicates[C ~[]string](t T, cycles []C) {
	t.Helper()
	seen := make(map[string]int)
	for i, c := range cycles {
		if len(c) < 2 {
			continue
		}
		k := rotationKey(c[:len(c)-1])
		if j, ok := seen[k]; ok {
			t.Errorf("cycle %d %v is a rotation of cycle %d %v", i, c, j, cycles[j])
		}
		seen[k] = i
	}
}

// AssertValidDeletionOrder verifies that order is a permutation of g's labels
// in which no node appears after a node that lists it as a dependency is
// still pending, i.e. every dependent precedes its dependencies.
func AssertValidDeletionOrder(t T, g *model.RefGraph, order []string) {
	t.Helper()
	pos := assertPermutation(t, g, order)
	if pos == nil {
		return
	}
	for _, ref := range g.References() {
		if !g.Has(ref.To) {
			continue
		}
		if pos[ref.From] >= pos[ref.To] {
			t.Errorf("%s (pos %d) must come before its dependency %s (pos %d)",
				ref.From, pos[ref.From], ref.To, pos[ref.To])
		}
	}
}

// AssertValidDependencyOrder verifies that every in-store dependency precedes
// the node that lists it.
func AssertValidDependencyOrder(t T, g *model.RefGraph, order []string) {
	t.Helper()
	pos := assertPermutation(t, g, order)
	if pos == nil {
		return
	}
	for _, ref := range g.References() {
		if !g.Has(ref.To) {
			continue
		}
		if pos[ref.To] >= pos[ref.From] {
			t.Errorf("dependency %s (pos %d) must come before %s (pos %d)",
				ref.To, pos[ref.To], ref.From, pos[ref.From])
		}
	}
}

// AssertStringsEqual compares two slices element by element.
func AssertStringsEqual(t T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("got %v (len %d), want %v (len %d)", got, len(got), want, len(want))
		return
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q (got %v, want %v)", i, got[i], want[i], got, want)
			return
		}
	}
}

// HasReference reports whether from lists to as a dependency in g.
func HasReference(g *model.RefGraph, from, to string) bool {
	found := false
	g.EachDependency(from, func(dep string) {
		if dep == to {
			found = true
		}
	})
	return found
}

func assertPermutation(t T, g *model.RefGraph, order []string) map[string]int {
	t.Helper()
	if len(order) != g.Len() {
		t.Errorf("order has %d labels, graph has %d", len(order), g.Len())
		return nil
	}
	pos := make(map[string]int, len(order))
	for i, label := range order {
		if !g.Has(label) {
			t.Errorf("order contains %q which is not a node", label)
			return nil
		}
		if _, dup := pos[label]; dup {
			t.Errorf("order contains %q twice", label)
			return nil
		}
		pos[label] = i
	}
	return pos
}

func rotationKey(loop []string) string {
	start := 0
	for i := range loop {
		if loop[i] < loop[start] {
			start = i
		}
	}
	rotated := make([]string, len(loop))
	for i := range loop {
		rotated[i] = loop[(start+i)%len(loop)]
	}
	return strings.Join(rotated, "\x00")
}
