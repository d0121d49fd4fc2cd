package export

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/refgraph/pkg/analysis"
	"github.com/vanderheijden86/refgraph/pkg/metrics"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

// GraphExportFormat specifies the output format for graph export.
type GraphExportFormat string

const (
	GraphFormatJSON    GraphExportFormat = "json"
	GraphFormatDOT     GraphExportFormat = "dot"
	GraphFormatMermaid GraphExportFormat = "mermaid"
)

// GraphExportConfig configures graph export behavior.
type GraphExportConfig struct {
	Format   GraphExportFormat // Output format (json, dot, mermaid)
	Root     string            // Subgraph reachable from this label
	Depth    int               // Max depth for subgraph (0 = unlimited)
	DataHash string            // Hash of input data for provenance
}

// GraphExportResult contains the exported graph and metadata.
type GraphExportResult struct {
	Format         string            `json:"format"`
	Graph          string            `json:"graph,omitempty"`
	Nodes          int               `json:"nodes"`
	Edges          int               `json:"edges"`
	FiltersApplied map[string]string `json:"filters_applied,omitempty"`
	Explanation    GraphExplanation  `json:"explanation"`
	DataHash       string            `json:"data_hash,omitempty"`
	Adjacency      *AdjacencyGraph   `json:"adjacency,omitempty"`
}

// GraphExplanation provides context for automated consumers.
type GraphExplanation struct {
	What        string `json:"what"`
	HowToRender string `json:"how_to_render,omitempty"`
	WhenToUse   string `json:"when_to_use"`
}

// AdjacencyGraph is the JSON adjacency list representation.
type AdjacencyGraph struct {
	Nodes []AdjacencyNode `json:"nodes"`
	Edges []AdjacencyEdge `json:"edges"`
}

// AdjacencyNode represents a node in the adjacency graph.
type AdjacencyNode struct {
	ID         string `json:"id"`
	OutDegree  int    `json:"out_degree"`
	Dependents int    `json:"dependents"`
	InCycle    bool   `json:"in_cycle,omitempty"`
}

// AdjacencyEdge represents one dependency-list entry.
type AdjacencyEdge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Dangling bool   `json:"dangling,omitempty"`
}

// ExportGraph exports the reference graph in the specified format.
func ExportGraph(g *model.RefGraph, cycles []analysis.Cycle, config GraphExportConfig) (*GraphExportResult, error) {
	defer metrics.Timer(metrics.Export)()

	filtersApplied := make(map[string]string)
	if config.Root != "" {
		if !g.Has(config.Root) {
			return nil, fmt.Errorf("root %q is not a node", config.Root)
		}
		g = extractSubgraph(g, config.Root, config.Depth)
		cycles = cyclesWithin(cycles, g)
		filtersApplied["root"] = config.Root
		if config.Depth > 0 {
			filtersApplied["depth"] = fmt.Sprintf("%d", config.Depth)
		}
	}

	if g.Len() == 0 {
		return &GraphExportResult{
			Format: string(config.Format),
			Explanation: GraphExplanation{
				What:      "Empty graph - the store has no nodes",
				WhenToUse: "Load a non-empty adjacency file",
			},
		}, nil
	}

	result := &GraphExportResult{
		Format:         string(config.Format),
		Nodes:          g.Len(),
		Edges:          g.EdgeCount(),
		FiltersApplied: filtersApplied,
		DataHash:       config.DataHash,
	}

	switch config.Format {
	case GraphFormatDOT:
		graph, err := GenerateDOT(g, cycles, "refgraph")
		if err != nil {
			return nil, err
		}
		result.Graph = graph
		result.Explanation = GraphExplanation{
			What:        "Reference graph in Graphviz DOT format",
			HowToRender: "Save to file.dot, run: dot -Tpng file.dot -o graph.png",
			WhenToUse:   "When you need a visual overview of references for documentation or debugging",
		}

	case GraphFormatMermaid:
		result.Graph = GenerateMermaid(g, cycles, MermaidConfig{})
		result.Explanation = GraphExplanation{
			What:        "Reference graph in Mermaid diagram format",
			HowToRender: "Paste into any Markdown renderer that supports Mermaid, or use mermaid.live",
			WhenToUse:   "When you need an embeddable diagram for documentation",
		}

	case GraphFormatJSON, "":
		result.Format = string(GraphFormatJSON)
		result.Adjacency = generateAdjacency(g, cycles)
		result.Explanation = GraphExplanation{
			What:      "Reference graph as JSON adjacency list",
			WhenToUse: "When you need programmatic access to the graph structure",
		}

	default:
		return nil, fmt.Errorf("unsupported graph format %q (want json, dot or mermaid)", config.Format)
	}

	return result, nil
}

// extractSubgraph keeps the nodes reachable from root within maxDepth hops.
// References leaving the kept set are dropped; dangling references stay.
func extractSubgraph(g *model.RefGraph, root string, maxDepth int) *model.RefGraph {
	type item struct {
		label string
		depth int
	}
	visited := map[string]bool{root: true}
	queue := []item{{root, 0}}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && curr.depth >= maxDepth {
			continue
		}
		g.EachDependency(curr.label, func(dep string) {
			if g.Has(dep) && !visited[dep] {
				visited[dep] = true
				queue = append(queue, item{dep, curr.depth + 1})
			}
		})
	}

	b := model.NewBuilder()
	for _, label := range g.Labels() {
		if !visited[label] {
			continue
		}
		deps := []string{}
		for _, dep := range g.Dependencies(label) {
			if visited[dep] || !g.Has(dep) {
				deps = append(deps, dep)
			}
		}
		b.Add(label, deps...)
	}
	sub, _ := b.Build() // labels come from a valid store
	return sub
}

// cyclesWithin keeps the cycles whose every node is in g.
func cyclesWithin(cycles []analysis.Cycle, g *model.RefGraph) []analysis.Cycle {
	var kept []analysis.Cycle
	for _, c := range cycles {
		inside := true
		for _, label := range c.Nodes() {
			if !g.Has(label) {
				inside = false
				break
			}
		}
		if inside {
			kept = append(kept, c)
		}
	}
	return kept
}

// generateAdjacency creates a JSON adjacency list representation in store order.
func generateAdjacency(g *model.RefGraph, cycles []analysis.Cycle) *AdjacencyGraph {
	counts := analysis.DependentCounts(g)
	onCycle := make(map[string]bool)
	for _, c := range cycles {
		for _, label := range c.Nodes() {
			onCycle[label] = true
		}
	}

	nodes := make([]AdjacencyNode, 0, g.Len())
	for _, label := range g.Labels() {
		nodes = append(nodes, AdjacencyNode{
			ID:         label,
			OutDegree:  g.OutDegree(label),
			Dependents: counts[label],
			InCycle:    onCycle[label],
		})
	}

	edges := make([]AdjacencyEdge, 0, g.EdgeCount())
	for _, ref := range g.References() {
		edges = append(edges, AdjacencyEdge{From: ref.From, To: ref.To, Dangling: !g.Has(ref.To)})
	}

	return &AdjacencyGraph{Nodes: nodes, Edges: edges}
}

// JSON returns the result as indented JSON bytes.
func (r *GraphExportResult) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
