package analysis

import (
	"sort"

	"github.com/vanderheijden86/refgraph/pkg/model"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// directed is a gonum view of a RefGraph. simple.DirectedGraph rejects
// self-edges, so self-references are kept aside in selfLoops.
type directed struct {
	g         *simple.DirectedGraph
	idToNode  map[string]int64
	nodeToID  map[int64]string
	selfLoops map[string]bool
}

// newDirected mirrors g into a gonum directed graph. Duplicate references
// collapse to one edge; dangling targets become nodes.
func newDirected(g *model.RefGraph) *directed {
	d := &directed{
		g:         simple.NewDirectedGraph(),
		idToNode:  make(map[string]int64, g.Len()),
		nodeToID:  make(map[int64]string, g.Len()),
		selfLoops: make(map[string]bool),
	}

	node := func(label string) int64 {
		if id, ok := d.idToNode[label]; ok {
			return id
		}
		n := d.g.NewNode()
		d.g.AddNode(n)
		d.idToNode[label] = n.ID()
		d.nodeToID[n.ID()] = label
		return n.ID()
	}

	for _, label := range g.Labels() {
		node(label)
	}
	for _, label := range g.Labels() {
		u := d.idToNode[label]
		g.EachDependency(label, func(dep string) {
			if dep == label {
				d.selfLoops[label] = true
				return
			}
			v := node(dep)
			d.g.SetEdge(d.g.NewEdge(d.g.Node(u), d.g.Node(v)))
		})
	}
	return d
}

// CycleGroups returns the strongly connected components of g that contain a
// cycle: components with more than one node, plus nodes with a
// self-reference. Labels inside a group are sorted; groups are ordered by
// size (largest first) then by first label.
func CycleGroups(g *model.RefGraph) [][]string {
	groups := [][]string{}
	if g.Len() == 0 {
		return groups
	}

	d := newDirected(g)
	for _, comp := range topo.TarjanSCC(d.g) {
		if len(comp) == 1 && !d.selfLoops[d.nodeToID[comp[0].ID()]] {
			continue
		}
		labels := make([]string, 0, len(comp))
		for _, n := range comp {
			labels = append(labels, d.nodeToID[n.ID()])
		}
		sort.Strings(labels)
		groups = append(groups, labels)
	}

	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) > len(groups[j])
		}
		return groups[i][0] < groups[j][0]
	})
	return groups
}

// Acyclic reports whether gonum's topological sort succeeds on g, self
// references included. It is an independent check on DeletionOrder.
func Acyclic(g *model.RefGraph) bool {
	d := newDirected(g)
	if len(d.selfLoops) > 0 {
		return false
	}
	_, err := topo.Sort(d.g)
	return err == nil
}
