package analysis

import (
	"strings"

	"github.com/vanderheijden86/refgraph/pkg/metrics"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

// Cycle is a closed walk: the first and last labels are the same.
// A self-reference is reported as [X, X].
type Cycle []string

// Len returns the number of edges in the loop (len-1 for a closed cycle).
func (c Cycle) Len() int {
	if len(c) == 0 {
		return 0
	}
	return len(c) - 1
}

// Nodes returns the loop without the closing label.
func (c Cycle) Nodes() []string {
	if len(c) == 0 {
		return nil
	}
	return append([]string(nil), c[:len(c)-1]...)
}

// IsClosed reports whether the cycle starts and ends on the same label.
func (c Cycle) IsClosed() bool {
	return len(c) >= 2 && c[0] == c[len(c)-1]
}

// IsSelfLoop reports whether the cycle is a single self-reference.
func (c Cycle) IsSelfLoop() bool {
	return len(c) == 2 && c[0] == c[1]
}

// String renders the cycle as "A -> B -> A".
func (c Cycle) String() string {
	return strings.Join(c, " -> ")
}

// key returns a rotation-invariant identity for a loop with distinct labels:
// the loop rotated so that its smallest label comes first.
func (c Cycle) key() string {
	loop := c[:len(c)-1]
	start := 0
	for i := range loop {
		if loop[i] < loop[start] {
			start = i
		}
	}
	var sb strings.Builder
	for i := range loop {
		if i > 0 {
			sb.WriteByte(0)
		}
		sb.WriteString(loop[(start+i)%len(loop)])
	}
	return sb.String()
}

// IsRotation reports whether a and b describe the same loop from different
// starting points. Reversed loops are not rotations of each other.
func IsRotation(a, b Cycle) bool {
	if len(a) != len(b) || len(a) < 2 {
		return false
	}
	n := len(a) - 1
	for offset := 0; offset < n; offset++ {
		match := true
		for i := 0; i < n; i++ {
			if a[i] != b[(i+offset)%n] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// FindCycles enumerates every distinct cycle reachable by depth-first search
// from the nodes of g, taken in store order. Rotations of an already recorded
// cycle are dropped. A graph without cycles yields an empty slice.
func FindCycles(g *model.RefGraph) []Cycle {
	return FindCyclesLimit(g, 0)
}

// FindCyclesLimit is FindCycles but stops once limit distinct cycles were
// recorded. limit <= 0 means no limit.
func FindCyclesLimit(g *model.RefGraph, limit int) []Cycle {
	defer metrics.Timer(metrics.CycleDetection)()

	cycles := []Cycle{}
	if g.Len() == 0 {
		return cycles
	}

	visited := make(map[string]bool, g.Len())
	onStack := make(map[string]bool)
	seen := make(map[string]bool)
	var path []string

	// frame is one level of the DFS; next indexes the dependency to visit.
	type frame struct {
		label string
		deps  []string
		next  int
	}
	var stack []frame

	push := func(label string) {
		visited[label] = true
		onStack[label] = true
		path = append(path, label)
		stack = append(stack, frame{label: label, deps: g.Dependencies(label)})
	}

	for _, root := range g.Labels() {
		if visited[root] {
			continue
		}
		push(root)

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next >= len(top.deps) {
				onStack[top.label] = false
				path = path[:len(path)-1]
				stack = stack[:len(stack)-1]
				continue
			}
			dep := top.deps[top.next]
			top.next++

			if onStack[dep] {
				c := closeLoop(path, dep)
				k := c.key()
				if !seen[k] {
					seen[k] = true
					cycles = append(cycles, c)
					if limit > 0 && len(cycles) >= limit {
						return cycles
					}
				}
				continue
			}
			if !visited[dep] {
				push(dep)
			}
		}
	}
	return cycles
}

// HasCycle reports whether g contains at least one cycle.
func HasCycle(g *model.RefGraph) bool {
	return len(FindCyclesLimit(g, 1)) > 0
}

// closeLoop slices path from the first occurrence of label and appends label.
func closeLoop(path []string, label string) Cycle {
	start := 0
	for i, p := range path {
		if p == label {
			start = i
			break
		}
	}
	c := make(Cycle, 0, len(path)-start+1)
	c = append(c, path[start:]...)
	return append(c, label)
}
