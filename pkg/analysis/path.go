package analysis

import (
	"github.com/vanderheijden86/refgraph/pkg/metrics"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

// ShortestPath returns the fewest-edge chain of references from `from` to `to`,
// following dependency edges forward. The boolean is false when no path
// exists, including when `from` is not a node of g. A present node reaches
// itself with a single-element path.
func ShortestPath(g *model.RefGraph, from, to string) ([]string, bool) {
	defer metrics.Timer(metrics.PathFind)()

	if !g.Has(from) {
		return nil, false
	}
	if from == to {
		return []string{from}, true
	}

	// parent records how each discovered label was first reached.
	parent := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			return walkBack(parent, from, to), true
		}
		g.EachDependency(cur, func(dep string) {
			if _, ok := parent[dep]; ok {
				return
			}
			parent[dep] = cur
			queue = append(queue, dep)
		})
	}
	return nil, false
}

func walkBack(parent map[string]string, from, to string) []string {
	var rev []string
	for cur := to; ; cur = parent[cur] {
		rev = append(rev, cur)
		if cur == from {
			break
		}
	}
	path := make([]string, len(rev))
	for i, label := range rev {
		path[len(rev)-1-i] = label
	}
	return path
}

// Reachable returns every label reachable from `from` (excluding `from`
// unless a cycle leads back to it), in breadth-first order. Dangling
// targets are included as leaves.
func Reachable(g *model.RefGraph, from string) []string {
	out := []string{}
	if !g.Has(from) {
		return out
	}
	seen := map[string]bool{}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		g.EachDependency(cur, func(dep string) {
			if seen[dep] {
				return
			}
			seen[dep] = true
			out = append(out, dep)
			queue = append(queue, dep)
		})
	}
	return out
}
