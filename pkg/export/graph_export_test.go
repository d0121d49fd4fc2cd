package export

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/refgraph/pkg/analysis"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

func TestExportGraph_Formats(t *testing.T) {
	g := model.MustFromMap(map[string][]string{"A": {"B"}, "B": {"C"}, "C": {}})

	tests := []struct {
		format GraphExportFormat
		want   string
	}{
		{GraphFormatDOT, "digraph"},
		{GraphFormatMermaid, "graph TD"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			res, err := ExportGraph(g, nil, GraphExportConfig{Format: tt.format})
			if err != nil {
				t.Fatalf("ExportGraph: %v", err)
			}
			if !strings.Contains(res.Graph, tt.want) {
				t.Errorf("graph missing %q:\n%s", tt.want, res.Graph)
			}
			if res.Nodes != 3 || res.Edges != 2 {
				t.Errorf("counts = %d/%d, want 3/2", res.Nodes, res.Edges)
			}
			if res.Explanation.HowToRender == "" {
				t.Error("expected render hint")
			}
		})
	}
}

func TestExportGraph_JSONAdjacency(t *testing.T) {
	g := model.MustFromMap(map[string][]string{"A": {"B", "ghost"}, "B": {"A"}})
	res, err := ExportGraph(g, analysis.FindCycles(g), GraphExportConfig{DataHash: "abc"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Format != "json" || res.Adjacency == nil {
		t.Fatalf("expected json adjacency, got %+v", res)
	}
	if len(res.Adjacency.Nodes) != 2 || len(res.Adjacency.Edges) != 3 {
		t.Fatalf("adjacency = %+v", res.Adjacency)
	}
	if !res.Adjacency.Nodes[0].InCycle || res.Adjacency.Nodes[0].Dependents != 1 {
		t.Errorf("node A = %+v", res.Adjacency.Nodes[0])
	}
	if !res.Adjacency.Edges[1].Dangling {
		t.Errorf("A -> ghost should be dangling: %+v", res.Adjacency.Edges[1])
	}

	data, err := res.JSON()
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["data_hash"] != "abc" {
		t.Errorf("data_hash = %v", decoded["data_hash"])
	}
}

func TestExportGraph_RootAndDepth(t *testing.T) {
	g := model.MustFromMap(map[string][]string{
		"A": {"B"},
		"B": {"C"},
		"C": {"D"},
		"D": {},
		"X": {"A"},
	})

	res, err := ExportGraph(g, nil, GraphExportConfig{Root: "B"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Nodes != 3 || res.Edges != 2 {
		t.Errorf("subgraph from B = %d nodes/%d edges, want 3/2", res.Nodes, res.Edges)
	}
	if res.FiltersApplied["root"] != "B" {
		t.Errorf("filters = %v", res.FiltersApplied)
	}

	res, err = ExportGraph(g, nil, GraphExportConfig{Root: "A", Depth: 1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Nodes != 2 || res.Edges != 1 {
		t.Errorf("depth 1 from A = %d nodes/%d edges, want 2/1", res.Nodes, res.Edges)
	}
	if res.FiltersApplied["depth"] != "1" {
		t.Errorf("filters = %v", res.FiltersApplied)
	}
}

func TestExportGraph_SubgraphDropsOutsideCycles(t *testing.T) {
	g := model.MustFromMap(map[string][]string{"A": {"B"}, "B": {"A"}, "C": {"A"}})
	sub := extractSubgraph(g, "A", 0)
	if sub.Has("C") {
		t.Error("C is not reachable from A")
	}
	if got := cyclesWithin(analysis.FindCycles(g), sub); len(got) != 1 {
		t.Errorf("cyclesWithin = %v, want the A-B cycle", got)
	}
	if got := cyclesWithin([]analysis.Cycle{{"C", "A", "C"}}, sub); len(got) != 0 {
		t.Errorf("cycle through C should be dropped: %v", got)
	}
}

func TestExportGraph_Errors(t *testing.T) {
	g := model.MustFromMap(map[string][]string{"A": {}})
	if _, err := ExportGraph(g, nil, GraphExportConfig{Root: "missing"}); err == nil {
		t.Error("expected error for unknown root")
	}
	if _, err := ExportGraph(g, nil, GraphExportConfig{Format: "gexf"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestExportGraph_Empty(t *testing.T) {
	res, err := ExportGraph(model.MustFromMap(nil), nil, GraphExportConfig{Format: GraphFormatDOT})
	if err != nil {
		t.Fatal(err)
	}
	if res.Graph != "" || res.Nodes != 0 {
		t.Errorf("empty graph should carry only an explanation: %+v", res)
	}
	if !strings.Contains(res.Explanation.What, "Empty") {
		t.Errorf("explanation = %+v", res.Explanation)
	}
}
