package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/refgraph/internal/datasource"
	"github.com/vanderheijden86/refgraph/pkg/analysis"
	"github.com/vanderheijden86/refgraph/pkg/config"
	"github.com/vanderheijden86/refgraph/pkg/export"
	"github.com/vanderheijden86/refgraph/pkg/metrics"
	"github.com/vanderheijden86/refgraph/pkg/model"
	"github.com/vanderheijden86/refgraph/pkg/version"
)

// robotEnvelope is embedded in every robot document.
type robotEnvelope struct {
	GeneratedAt time.Time `json:"generated_at"`
	Version     string    `json:"version"`
	DataHash    string    `json:"data_hash"`
	Source      string    `json:"source,omitempty"`
}

func newEnvelope(g *model.RefGraph, src datasource.DataSource) robotEnvelope {
	return robotEnvelope{
		GeneratedAt: time.Now().UTC(),
		Version:     version.Version,
		DataHash:    analysis.ComputeGraphHash(g),
		Source:      src.Path,
	}
}

type robotCycles struct {
	robotEnvelope
	Count     int                  `json:"count"`
	Cycles    [][]string           `json:"cycles"`
	Truncated bool                 `json:"truncated,omitempty"`
	Status    analysis.StatusEntry `json:"status"`
}

type robotOrder struct {
	robotEnvelope
	Kind     string   `json:"kind"`
	Order    []string `json:"order"`
	HasCycle bool     `json:"has_cycle"`
	Blocked  []string `json:"blocked,omitempty"`
}

type robotDependents struct {
	robotEnvelope
	Target     string   `json:"target"`
	Exists     bool     `json:"exists"`
	Direct     []string `json:"direct"`
	Transitive []string `json:"transitive"`
}

type robotOrphans struct {
	robotEnvelope
	Candidates []string `json:"candidates"`
	Orphans    []string `json:"orphans"`
	Unknown    []string `json:"unknown,omitempty"`
}

type robotPath struct {
	robotEnvelope
	From  string   `json:"from"`
	To    string   `json:"to"`
	Found bool     `json:"found"`
	Path  []string `json:"path"`
	Hops  int      `json:"hops"`
}

type robotStats struct {
	robotEnvelope
	Stats analysis.Stats `json:"stats"`
}

type robotDiagnostics struct {
	robotEnvelope
	Count       int                   `json:"count"`
	Diagnostics []analysis.Diagnostic `json:"diagnostics"`
}

type robotCheckRef struct {
	robotEnvelope
	From    string   `json:"from"`
	To      string   `json:"to"`
	CanAdd  bool     `json:"can_add"`
	Cycle   []string `json:"cycle,omitempty"`
	Warning string   `json:"warning,omitempty"`
}

type robotSources struct {
	robotEnvelope
	Dir      string                          `json:"dir"`
	Selected string                          `json:"selected"`
	Report   *datasource.InconsistencyReport `json:"consistency"`
}

type robotAll struct {
	robotEnvelope
	Report      *analysis.Report        `json:"report"`
	Diagnostics []analysis.Diagnostic   `json:"diagnostics"`
	Metrics     []metrics.TimingStats   `json:"metrics,omitempty"`
	Config      analysis.AnalysisConfig `json:"analysis_config"`
}

// writeRobot emits the JSON document for the selected robot flag.
func writeRobot(w io.Writer, opts *options, cfg config.Config, g *model.RefGraph, report *analysis.Report, src datasource.DataSource) error {
	env := newEnvelope(g, src)

	var doc any
	switch {
	case opts.robotCycles:
		cycles := make([][]string, 0, len(report.Cycles))
		for _, c := range report.Cycles {
			cycles = append(cycles, c)
		}
		doc = robotCycles{
			robotEnvelope: env,
			Count:         len(cycles),
			Cycles:        cycles,
			Truncated:     report.CyclesTruncated,
			Status:        report.Status.Cycles,
		}

	case opts.robotOrder:
		doc = orderDoc(env, export.OrderKindDeletion, report.DeletionOrder)

	case opts.robotDepOrder:
		doc = orderDoc(env, export.OrderKindDependency, report.DependencyOrder)

	case opts.robotDependents != "":
		target := opts.robotDependents
		doc = robotDependents{
			robotEnvelope: env,
			Target:        target,
			Exists:        g.Has(target),
			Direct:        nonNil(analysis.Dependents(g, target)),
			Transitive:    nonNil(analysis.TransitiveDependents(g, target)),
		}

	case opts.robotOrphans != "":
		var candidates, known, unknown []string
		for _, label := range strings.Split(opts.robotOrphans, ",") {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			candidates = append(candidates, label)
			if g.Has(label) {
				known = append(known, label)
			} else {
				unknown = append(unknown, label)
			}
		}
		doc = robotOrphans{
			robotEnvelope: env,
			Candidates:    nonNil(candidates),
			Orphans:       nonNil(analysis.Orphans(g, known)),
			Unknown:       unknown,
		}

	case opts.robotPath != "":
		from, to, _ := splitPair(opts.robotPath)
		path, found := analysis.ShortestPath(g, from, to)
		hops := 0
		if found {
			hops = len(path) - 1
		}
		doc = robotPath{robotEnvelope: env, From: from, To: to, Found: found, Path: nonNil(path), Hops: hops}

	case opts.robotStats:
		doc = robotStats{robotEnvelope: env, Stats: report.Stats}

	case opts.robotDiagnose:
		diags := analysis.Diagnose(g, report, cfg.DiagnosticConfig())
		if diags == nil {
			diags = []analysis.Diagnostic{}
		}
		doc = robotDiagnostics{robotEnvelope: env, Count: len(diags), Diagnostics: diags}

	case opts.robotCheckRef != "":
		from, to, _ := splitPair(opts.robotCheckRef)
		canAdd, cycle, warning := analysis.CheckReferenceAddition(g, from, to)
		doc = robotCheckRef{robotEnvelope: env, From: from, To: to, CanAdd: canAdd, Cycle: cycle, Warning: warning}

	case opts.robotGraph:
		result, err := export.ExportGraph(g, report.Cycles, export.GraphExportConfig{
			Format:   export.GraphExportFormat(opts.graphFormat),
			Root:     opts.graphRoot,
			Depth:    opts.graphDepth,
			DataHash: env.DataHash,
		})
		if err != nil {
			return fmt.Errorf("export graph: %w", err)
		}
		doc = result

	case opts.robotSources:
		dir := projectDir(src)
		sources, err := datasource.DiscoverSources(datasource.DiscoveryOptions{
			Dir:                    dir,
			ValidateAfterDiscovery: true,
			IncludeInvalid:         true,
		})
		if err != nil {
			return err
		}
		report, err := datasource.GenerateInconsistencyReport(sources, datasource.DefaultDiffOptions())
		if err != nil {
			return fmt.Errorf("compare sources: %w", err)
		}
		if report.Diffs == nil {
			report.Diffs = []datasource.SourceDiff{}
		}
		doc = robotSources{
			robotEnvelope: env,
			Dir:           dir,
			Selected:      src.Path,
			Report:        report,
		}

	default:
		return writeRobotAll(w, cfg, g, report, src)
	}

	return encodeJSON(w, doc)
}

// writeRobotAll emits the full report together with its findings.
func writeRobotAll(w io.Writer, cfg config.Config, g *model.RefGraph, report *analysis.Report, src datasource.DataSource) error {
	diags := analysis.Diagnose(g, report, cfg.DiagnosticConfig())
	if diags == nil {
		diags = []analysis.Diagnostic{}
	}
	return encodeJSON(w, robotAll{
		robotEnvelope: newEnvelope(g, src),
		Report:        report,
		Diagnostics:   diags,
		Metrics:       metrics.AllTimingStats(),
		Config:        report.Config,
	})
}

func orderDoc(env robotEnvelope, kind string, plan analysis.OrderPlan) robotOrder {
	return robotOrder{
		robotEnvelope: env,
		Kind:          kind,
		Order:         nonNil(plan.Order),
		HasCycle:      plan.HasCycle,
		Blocked:       plan.Blocked,
	}
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
