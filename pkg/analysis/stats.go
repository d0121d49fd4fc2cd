package analysis

import (
	"github.com/vanderheijden86/refgraph/pkg/metrics"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

// Stats holds aggregate metrics for summaries and diagnostics.
type Stats struct {
	NodeCount    int     `json:"node_count"`
	EdgeCount    int     `json:"edge_count"`
	MaxOutDegree int     `json:"max_out_degree"`
	MaxInDegree  int     `json:"max_in_degree"`
	AvgOutDegree float64 `json:"avg_out_degree"`
	Density      float64 `json:"density"`

	MaxOutLabel   string `json:"max_out_label,omitempty"` // first node holding MaxOutDegree
	MaxInLabel    string `json:"max_in_label,omitempty"`  // first node holding MaxInDegree
	DanglingCount int    `json:"dangling_count"`          // edges to labels with no node
	SelfLoopCount int    `json:"self_loop_count"`         // nodes listing themselves
}

// ComputeStats aggregates g in a single pass over its adjacency.
// In-degree follows DependentCounts: multiplicity counted, dangling targets ignored.
func ComputeStats(g *model.RefGraph) Stats {
	defer metrics.Timer(metrics.GraphStats)()

	labels := g.Labels()
	s := Stats{NodeCount: len(labels)}
	in := make(map[string]int, len(labels))

	for _, label := range labels {
		out := g.OutDegree(label)
		s.EdgeCount += out
		if s.MaxOutLabel == "" || out > s.MaxOutDegree {
			s.MaxOutDegree = out
			s.MaxOutLabel = label
		}
		selfLoop := false
		g.EachDependency(label, func(dep string) {
			if !g.Has(dep) {
				s.DanglingCount++
				return
			}
			in[dep]++
			if dep == label {
				selfLoop = true
			}
		})
		if selfLoop {
			s.SelfLoopCount++
		}
	}

	for _, label := range labels {
		if s.MaxInLabel == "" || in[label] > s.MaxInDegree {
			s.MaxInDegree = in[label]
			s.MaxInLabel = label
		}
	}

	if s.NodeCount > 0 {
		s.AvgOutDegree = float64(s.EdgeCount) / float64(s.NodeCount)
	}
	if s.NodeCount > 1 {
		n := float64(s.NodeCount)
		s.Density = float64(s.EdgeCount) / (n * (n - 1))
	}
	return s
}
