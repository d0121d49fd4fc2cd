package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/vanderheijden86/refgraph/pkg/debug"
	"github.com/vanderheijden86/refgraph/pkg/model"

	"golang.org/x/sync/errgroup"
)

// ErrNilGraph is returned when an Analyzer is run without a graph.
var ErrNilGraph = errors.New("analysis: nil graph")

// Profile captures timing information for one Analyze call.
type Profile struct {
	NodeCount int `json:"node_count"`
	EdgeCount int `json:"edge_count"`

	Stats           time.Duration `json:"stats"`
	Cycles          time.Duration `json:"cycles"`
	CyclesTO        bool          `json:"cycles_timeout"`
	DeletionOrder   time.Duration `json:"deletion_order"`
	DependencyOrder time.Duration `json:"dependency_order"`
	Groups          time.Duration `json:"groups"`
	Impact          time.Duration `json:"impact"`

	Total time.Duration `json:"total"`
}

// StatusEntry records the computation state of one component.
type StatusEntry struct {
	State   string        `json:"state"`            // computed|timeout|skipped
	Reason  string        `json:"reason,omitempty"` // explanation when skipped/timeout/truncated
	Elapsed time.Duration `json:"ms,omitempty"`
}

// ComponentStatus captures per-component outcome for the optional components.
type ComponentStatus struct {
	Cycles StatusEntry `json:"cycles"`
	Groups StatusEntry `json:"groups"`
}

// Report bundles every analysis result for one graph snapshot.
type Report struct {
	Stats           Stats             `json:"stats"`
	Cycles          []Cycle           `json:"cycles"`
	CyclesTruncated bool              `json:"cycles_truncated,omitempty"`
	DeletionOrder   OrderPlan         `json:"deletion_order"`
	DependencyOrder OrderPlan         `json:"dependency_order"`
	CycleGroups     [][]string        `json:"cycle_groups"`
	Unreferenced    []string          `json:"unreferenced"`
	Dangling        []model.Reference `json:"dangling"`

	Status  ComponentStatus `json:"status"`
	Profile Profile         `json:"profile"`
	Config  AnalysisConfig  `json:"-"`
}

// InCycle returns the set of labels that appear on at least one reported cycle.
func (r *Report) InCycle() map[string]bool {
	set := make(map[string]bool)
	for _, c := range r.Cycles {
		for _, label := range c.Nodes() {
			set[label] = true
		}
	}
	return set
}

// stateFromTiming converts config flags/timeouts to a user-facing state string.
func stateFromTiming(enabled bool, timedOut bool) string {
	switch {
	case !enabled:
		return "skipped"
	case timedOut:
		return "timeout"
	default:
		return "computed"
	}
}

// Analyzer runs every analysis over one read-only graph snapshot.
type Analyzer struct {
	g      *model.RefGraph
	config *AnalysisConfig // nil means size-based defaults
}

// NewAnalyzer returns an Analyzer for g. g must not be modified while an
// analysis is running.
func NewAnalyzer(g *model.RefGraph) *Analyzer {
	return &Analyzer{g: g}
}

// SetConfig sets a custom analysis configuration.
// Pass nil to use size-based automatic configuration.
func (a *Analyzer) SetConfig(config *AnalysisConfig) {
	a.config = config
}

// Analyze runs all components. If SetConfig was called that config is used,
// otherwise ConfigForSize picks one from the graph size.
func (a *Analyzer) Analyze(ctx context.Context) (*Report, error) {
	if a.g == nil {
		return nil, ErrNilGraph
	}
	var config AnalysisConfig
	if a.config != nil {
		config = *a.config
	} else {
		config = ConfigForSize(a.g.Len(), a.g.EdgeCount())
	}
	return a.AnalyzeWithConfig(ctx, config)
}

// AnalyzeWithConfig runs all components with an explicit configuration.
// Components share the graph read-only and run concurrently. Cycle
// enumeration is bounded by MaxCycleNodes and CyclesTimeout; when it is
// skipped or times out the rest of the report is still returned.
func (a *Analyzer) AnalyzeWithConfig(ctx context.Context, config AnalysisConfig) (*Report, error) {
	if a.g == nil {
		return nil, ErrNilGraph
	}
	defer debug.LogEnterExit("analysis.Analyze")()

	totalStart := time.Now()
	report := &Report{
		Config: config,
		Profile: Profile{
			NodeCount: a.g.Len(),
			EdgeCount: a.g.EdgeCount(),
		},
	}

	if config.ComputeCycles && config.MaxCycleNodes > 0 && a.g.Len() > config.MaxCycleNodes {
		config.ComputeCycles = false
		if config.CyclesSkipReason == "" {
			config.CyclesSkipReason = "graph exceeds cycle node limit"
		}
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		start := time.Now()
		report.Stats = ComputeStats(a.g)
		report.Profile.Stats = time.Since(start)
		return nil
	})

	eg.Go(func() error {
		start := time.Now()
		report.DeletionOrder = DeletionOrder(a.g)
		report.Profile.DeletionOrder = time.Since(start)
		return nil
	})

	eg.Go(func() error {
		start := time.Now()
		report.DependencyOrder = DependencyOrder(a.g)
		report.Profile.DependencyOrder = time.Since(start)
		return nil
	})

	eg.Go(func() error {
		start := time.Now()
		report.Unreferenced = Unreferenced(a.g)
		report.Dangling = DanglingReferences(a.g)
		report.Profile.Impact = time.Since(start)
		return nil
	})

	eg.Go(func() error {
		report.CycleGroups = [][]string{}
		if !config.ComputeGroups {
			report.Status.Groups = StatusEntry{State: "skipped"}
			return nil
		}
		start := time.Now()
		report.CycleGroups = CycleGroups(a.g)
		report.Profile.Groups = time.Since(start)
		report.Status.Groups = StatusEntry{State: "computed", Elapsed: report.Profile.Groups}
		return nil
	})

	eg.Go(func() error {
		return a.runCycles(ctx, config, report)
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	report.Profile.Total = time.Since(totalStart)
	debug.Log("analysis: %d nodes, %d edges, %d cycles (%s) in %v",
		report.Profile.NodeCount, report.Profile.EdgeCount, len(report.Cycles),
		report.Status.Cycles.State, report.Profile.Total)
	return report, nil
}

// runCycles enumerates cycles in a separate goroutine so a pathological
// graph cannot hold the report past CyclesTimeout. On timeout the goroutine
// result is discarded.
func (a *Analyzer) runCycles(ctx context.Context, config AnalysisConfig, report *Report) error {
	report.Cycles = []Cycle{}
	if !config.ComputeCycles {
		report.Status.Cycles = StatusEntry{State: stateFromTiming(false, false), Reason: config.CyclesSkipReason}
		return nil
	}

	maxCycles := config.MaxCyclesToStore
	if maxCycles == 0 {
		maxCycles = 100
	}

	start := time.Now()
	done := make(chan []Cycle, 1)
	go func() {
		// One extra cycle tells us whether the cap truncated the result.
		done <- FindCyclesLimit(a.g, maxCycles+1)
	}()

	var timeout <-chan time.Time
	if config.CyclesTimeout > 0 {
		timer := time.NewTimer(config.CyclesTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	reason := config.CyclesSkipReason
	select {
	case cycles := <-done:
		if len(cycles) > maxCycles {
			cycles = cycles[:maxCycles]
			report.CyclesTruncated = true
			if reason != "" {
				reason += "; "
			}
			reason += "truncated"
		}
		report.Cycles = cycles
	case <-timeout:
		report.Profile.CyclesTO = true
	case <-ctx.Done():
		return ctx.Err()
	}

	report.Profile.Cycles = time.Since(start)
	report.Status.Cycles = StatusEntry{
		State:   stateFromTiming(true, report.Profile.CyclesTO),
		Reason:  reason,
		Elapsed: report.Profile.Cycles,
	}
	return nil
}
