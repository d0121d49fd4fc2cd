package analysis

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/vanderheijden86/refgraph/pkg/model"
	"github.com/vanderheijden86/refgraph/pkg/testutil"
)

func TestAnalyzeRing(t *testing.T) {
	g := model.MustFromMap(map[string][]string{"A": {"B"}, "B": {"C"}, "C": {"A"}})

	report, err := NewAnalyzer(g).AnalyzeWithConfig(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(report.Cycles) != 1 || !reflect.DeepEqual([]string(report.Cycles[0]), []string{"A", "B", "C", "A"}) {
		t.Errorf("Cycles = %v, want [[A B C A]]", report.Cycles)
	}
	if !report.DeletionOrder.HasCycle || !report.DependencyOrder.HasCycle {
		t.Error("both orders should report the cycle")
	}
	if !reflect.DeepEqual(report.CycleGroups, [][]string{{"A", "B", "C"}}) {
		t.Errorf("CycleGroups = %v", report.CycleGroups)
	}
	if report.Stats.NodeCount != 3 || report.Stats.EdgeCount != 3 {
		t.Errorf("Stats = %+v", report.Stats)
	}
	if len(report.Unreferenced) != 0 || len(report.Dangling) != 0 {
		t.Errorf("unexpected unreferenced %v / dangling %v", report.Unreferenced, report.Dangling)
	}
	if report.Status.Cycles.State != "computed" || report.Status.Groups.State != "computed" {
		t.Errorf("Status = %+v", report.Status)
	}
	if report.Profile.NodeCount != 3 || report.Profile.Total <= 0 {
		t.Errorf("Profile = %+v", report.Profile)
	}
	if in := report.InCycle(); !in["A"] || !in["B"] || !in["C"] {
		t.Errorf("InCycle() = %v", in)
	}
}

func TestAnalyzeNilGraph(t *testing.T) {
	if _, err := NewAnalyzer(nil).Analyze(context.Background()); !errors.Is(err, ErrNilGraph) {
		t.Errorf("err = %v, want ErrNilGraph", err)
	}
}

func TestAnalyzeUsesSizeConfigByDefault(t *testing.T) {
	g := testutil.NewDefault().Chain(5).Graph()
	report, err := NewAnalyzer(g).Analyze(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !report.Config.ComputeCycles {
		t.Error("small graph should compute cycles")
	}
	testutil.AssertStringsEqual(t, report.DeletionOrder.Order, []string{"n0", "n1", "n2", "n3", "n4"})
	testutil.AssertStringsEqual(t, report.Unreferenced, []string{"n0"})
}

func TestAnalyzeSkipsCycles(t *testing.T) {
	g := testutil.NewDefault().Cycle(3).Graph()
	cfg := DefaultConfig()
	cfg.ComputeCycles = false
	cfg.CyclesSkipReason = "disabled by test"

	a := NewAnalyzer(g)
	a.SetConfig(&cfg)
	report, err := a.Analyze(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Status.Cycles.State != "skipped" || report.Status.Cycles.Reason != "disabled by test" {
		t.Errorf("cycle status = %+v", report.Status.Cycles)
	}
	if report.Cycles == nil || len(report.Cycles) != 0 {
		t.Errorf("skipped cycles should be an empty slice, got %v", report.Cycles)
	}
	// The planner is linear and still runs.
	if !report.DeletionOrder.HasCycle {
		t.Error("deletion order should still detect the cycle")
	}
}

func TestAnalyzeCycleNodeGuard(t *testing.T) {
	g := testutil.NewDefault().Cycle(10).Graph()
	cfg := DefaultConfig()
	cfg.MaxCycleNodes = 5

	report, err := NewAnalyzer(g).AnalyzeWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status.Cycles.State != "skipped" {
		t.Errorf("state = %s, want skipped", report.Status.Cycles.State)
	}
	if report.Status.Cycles.Reason != "graph exceeds cycle node limit" {
		t.Errorf("reason = %q", report.Status.Cycles.Reason)
	}
}

func TestAnalyzeTruncatesCycles(t *testing.T) {
	g := model.MustFromMap(map[string][]string{
		"A": {"B"}, "B": {"A"},
		"C": {"D"}, "D": {"C"},
		"E": {"E"},
	})
	cfg := DefaultConfig()
	cfg.MaxCyclesToStore = 2

	report, err := NewAnalyzer(g).AnalyzeWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Cycles) != 2 || !report.CyclesTruncated {
		t.Errorf("cycles = %d truncated = %v, want 2 true", len(report.Cycles), report.CyclesTruncated)
	}
	if report.Status.Cycles.State != "computed" || report.Status.Cycles.Reason != "truncated" {
		t.Errorf("status = %+v", report.Status.Cycles)
	}
}

func TestAnalyzeSkipsGroups(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ComputeGroups = false
	report, err := NewAnalyzer(testutil.NewDefault().Cycle(3).Graph()).AnalyzeWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status.Groups.State != "skipped" || len(report.CycleGroups) != 0 {
		t.Errorf("groups status = %+v groups = %v", report.Status.Groups, report.CycleGroups)
	}
}

func TestAnalyzeConcurrentReaders(t *testing.T) {
	g := testutil.NewDefault().Random(60, 0.05, false).Graph()
	want := FindCycles(g)

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			r, err := NewAnalyzer(g).AnalyzeWithConfig(context.Background(), FullAnalysisConfig())
			if err == nil && len(r.Cycles) != len(want) {
				err = errors.New("cycle count differs between concurrent analyses")
			}
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		select {
		case err := <-errs:
			if err != nil {
				t.Error(err)
			}
		case <-time.After(30 * time.Second):
			t.Fatal("timed out waiting for concurrent analyses")
		}
	}
}

func TestStateFromTiming(t *testing.T) {
	tests := []struct {
		enabled, timedOut bool
		want              string
	}{
		{false, false, "skipped"},
		{false, true, "skipped"},
		{true, true, "timeout"},
		{true, false, "computed"},
	}
	for _, tt := range tests {
		if got := stateFromTiming(tt.enabled, tt.timedOut); got != tt.want {
			t.Errorf("stateFromTiming(%v, %v) = %s, want %s", tt.enabled, tt.timedOut, got, tt.want)
		}
	}
}
