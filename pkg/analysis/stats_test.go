package analysis

import (
	"math"
	"testing"

	"github.com/vanderheijden86/refgraph/pkg/model"
	"github.com/vanderheijden86/refgraph/pkg/testutil"
)

func TestComputeStats(t *testing.T) {
	g := model.MustFromMap(map[string][]string{
		"A": {"B", "C"},
		"B": {"C"},
		"C": {},
	})
	s := ComputeStats(g)

	if s.NodeCount != 3 || s.EdgeCount != 3 {
		t.Errorf("nodes/edges = %d/%d, want 3/3", s.NodeCount, s.EdgeCount)
	}
	if s.MaxOutDegree != 2 || s.MaxOutLabel != "A" {
		t.Errorf("max out = %d (%s), want 2 (A)", s.MaxOutDegree, s.MaxOutLabel)
	}
	if s.MaxInDegree != 2 || s.MaxInLabel != "C" {
		t.Errorf("max in = %d (%s), want 2 (C)", s.MaxInDegree, s.MaxInLabel)
	}
	if s.AvgOutDegree != 1.0 {
		t.Errorf("avg out = %f, want 1.0", s.AvgOutDegree)
	}
	if math.Abs(s.Density-0.5) > 1e-9 {
		t.Errorf("density = %f, want 0.5", s.Density)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	s := ComputeStats(model.MustFromMap(map[string][]string{}))
	if s != (Stats{}) {
		t.Errorf("empty graph stats = %+v, want zero value", s)
	}
}

func TestComputeStatsDanglingAndSelfLoops(t *testing.T) {
	g := model.MustFromMap(map[string][]string{
		"A": {"ghost", "ghost", "B"},
		"B": {"B"},
	})
	s := ComputeStats(g)
	if s.EdgeCount != 4 {
		t.Errorf("edges = %d, want 4 (dangling references still count)", s.EdgeCount)
	}
	if s.DanglingCount != 2 {
		t.Errorf("dangling = %d, want 2", s.DanglingCount)
	}
	if s.SelfLoopCount != 1 {
		t.Errorf("self loops = %d, want 1", s.SelfLoopCount)
	}
	// ghost has no node, so it never holds the max in-degree
	if s.MaxInDegree != 2 || s.MaxInLabel != "B" {
		t.Errorf("max in = %d (%s), want 2 (B)", s.MaxInDegree, s.MaxInLabel)
	}
}

func TestComputeStatsTiesKeepFirstLabel(t *testing.T) {
	g, _ := model.NewBuilder().Add("X", "Z").Add("Y", "Z").Add("Z").Build()
	s := ComputeStats(g)
	if s.MaxOutLabel != "X" {
		t.Errorf("max out label = %s, want first of tie X", s.MaxOutLabel)
	}
}

func TestComputeStatsStar(t *testing.T) {
	s := ComputeStats(testutil.NewDefault().Star(10).Graph())
	if s.MaxInDegree != 10 || s.MaxInLabel != "hub" {
		t.Errorf("max in = %d (%s), want 10 (hub)", s.MaxInDegree, s.MaxInLabel)
	}
	if s.MaxOutDegree != 1 {
		t.Errorf("max out = %d, want 1", s.MaxOutDegree)
	}
}
