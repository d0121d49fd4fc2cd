package export

import (
	"fmt"

	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/multi"

	"github.com/vanderheijden86/refgraph/pkg/analysis"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

// Colors shared by the DOT and snapshot renderers.
const (
	dotNodeFill     = "#BBDEFB"
	dotCycleFill    = "#FFCDD2"
	dotDanglingFill = "#ECEFF1"
	dotCycleEdge    = "#E53935"
	dotEdge         = "#607D8B"
)

// attrs is a fixed attribute list.
type attrs []encoding.Attribute

func (a attrs) Attributes() []encoding.Attribute { return a }

// dotNode is a store label placed in the DOT multigraph.
type dotNode struct {
	id    int64
	label string
	attrs attrs
}

func (n dotNode) ID() int64                        { return n.id }
func (n dotNode) DOTID() string                    { return n.label }
func (n dotNode) Attributes() []encoding.Attribute { return n.attrs }

// dotLine is one dependency-list entry. Duplicate entries become parallel lines.
type dotLine struct {
	multi.Line
	attrs attrs
}

func (l dotLine) Attributes() []encoding.Attribute { return l.attrs }

// dotGraph names the multigraph and carries the top-level attributes.
type dotGraph struct {
	*multi.DirectedGraph
	name string
}

func (g dotGraph) DOTID() string { return g.name }

func (g dotGraph) DOTAttributers() (graph, node, edge encoding.Attributer) {
	return attrs{{Key: "rankdir", Value: "LR"}},
		attrs{{Key: "shape", Value: "box"}, {Key: "style", Value: "filled"}, {Key: "fontname", Value: "Helvetica"}},
		nil
}

// GenerateDOT renders g in Graphviz DOT. Every dependency-list entry becomes
// one edge, so self-references and duplicates are visible. Nodes on a reported
// cycle are filled red; dangling targets are drawn as dashed placeholders.
func GenerateDOT(g *model.RefGraph, cycles []analysis.Cycle, name string) (string, error) {
	if name == "" {
		name = "refgraph"
	}
	dg := dotGraph{DirectedGraph: multi.NewDirectedGraph(), name: name}

	onCycle := make(map[string]bool)
	for _, c := range cycles {
		for _, label := range c.Nodes() {
			onCycle[label] = true
		}
	}

	nodes := make(map[string]dotNode, g.Len())
	add := func(label string, a attrs) dotNode {
		n := dotNode{id: int64(len(nodes)), label: label, attrs: a}
		nodes[label] = n
		dg.AddNode(n)
		return n
	}

	for _, label := range g.Labels() {
		fill := dotNodeFill
		if onCycle[label] {
			fill = dotCycleFill
		}
		add(label, attrs{{Key: "fillcolor", Value: fill}})
	}
	for _, ref := range analysis.DanglingReferences(g) {
		if _, ok := nodes[ref.To]; !ok {
			add(ref.To, attrs{
				{Key: "fillcolor", Value: dotDanglingFill},
				{Key: "style", Value: "dashed"},
			})
		}
	}

	closing := cycleEdges(cycles)
	for _, label := range g.Labels() {
		from := nodes[label]
		for _, dep := range g.Dependencies(label) {
			to := nodes[dep]
			line, ok := dg.NewLine(from, to).(multi.Line)
			if !ok {
				return "", fmt.Errorf("dot: unexpected line type for %s -> %s", label, dep)
			}

			a := attrs{{Key: "color", Value: dotEdge}}
			switch {
			case !g.Has(dep):
				a = attrs{{Key: "color", Value: dotEdge}, {Key: "style", Value: "dashed"}}
			case closing[model.Reference{From: label, To: dep}]:
				a = attrs{{Key: "color", Value: dotCycleEdge}, {Key: "penwidth", Value: "2"}}
			}
			dg.SetLine(dotLine{Line: line, attrs: a})
		}
	}

	b, err := dot.MarshalMulti(dg, "", "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal dot: %w", err)
	}
	return string(b) + "\n", nil
}
