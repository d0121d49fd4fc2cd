// Package baseline stores a snapshot of graph health so later runs can be
// checked for drift.
package baseline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/refgraph/pkg/analysis"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

// CurrentVersion is the baseline file format version.
const CurrentVersion = 1

// DefaultDir and DefaultFilename locate the baseline inside a project.
const (
	DefaultDir      = ".refgraph"
	DefaultFilename = "baseline.json"
)

// TopN is the number of most-referenced nodes recorded.
const TopN = 10

// GraphStats are the scalar health numbers of a graph.
type GraphStats struct {
	NodeCount         int     `json:"node_count"`
	EdgeCount         int     `json:"edge_count"`
	Density           float64 `json:"density"`
	CycleCount        int     `json:"cycle_count"`
	DanglingCount     int     `json:"dangling_count"`
	SelfLoopCount     int     `json:"self_loop_count"`
	UnreferencedCount int     `json:"unreferenced_count"`
	MaxInDegree       int     `json:"max_in_degree"`
	MaxOutDegree      int     `json:"max_out_degree"`
}

// MetricItem is one ranked node.
type MetricItem struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

// TopMetrics holds ranked node lists.
type TopMetrics struct {
	MostReferenced []MetricItem `json:"most_referenced,omitempty"` // by direct dependent count
}

// Baseline is a saved snapshot of graph health.
type Baseline struct {
	Version     int               `json:"version"`
	CreatedAt   time.Time         `json:"created_at"`
	Description string            `json:"description,omitempty"`
	Source      string            `json:"source,omitempty"`
	DataHash    string            `json:"data_hash,omitempty"`
	Stats       GraphStats        `json:"stats"`
	TopMetrics  TopMetrics        `json:"top_metrics"`
	Cycles      [][]string        `json:"cycles,omitempty"`
	Dangling    []model.Reference `json:"dangling,omitempty"`
}

// DefaultPath returns the baseline path for a project directory.
func DefaultPath(projectDir string) string {
	return filepath.Join(projectDir, DefaultDir, DefaultFilename)
}

// New builds a baseline from an analyzed graph.
func New(g *model.RefGraph, report *analysis.Report, source, description string) *Baseline {
	s := report.Stats
	b := &Baseline{
		Version:     CurrentVersion,
		CreatedAt:   time.Now().UTC(),
		Description: description,
		Source:      source,
		DataHash:    analysis.ComputeGraphHash(g),
		Stats: GraphStats{
			NodeCount:         s.NodeCount,
			EdgeCount:         s.EdgeCount,
			Density:           s.Density,
			CycleCount:        len(report.Cycles),
			DanglingCount:     s.DanglingCount,
			SelfLoopCount:     s.SelfLoopCount,
			UnreferencedCount: len(report.Unreferenced),
			MaxInDegree:       s.MaxInDegree,
			MaxOutDegree:      s.MaxOutDegree,
		},
		Dangling: report.Dangling,
	}
	for _, c := range report.Cycles {
		b.Cycles = append(b.Cycles, append([]string(nil), c...))
	}
	b.TopMetrics.MostReferenced = mostReferenced(g, TopN)
	return b
}

func mostReferenced(g *model.RefGraph, n int) []MetricItem {
	counts := analysis.DependentCounts(g)
	labels := g.Labels()
	sort.SliceStable(labels, func(i, j int) bool { return counts[labels[i]] > counts[labels[j]] })

	var items []MetricItem
	for _, label := range labels {
		if len(items) == n || counts[label] == 0 {
			break
		}
		items = append(items, MetricItem{ID: label, Value: float64(counts[label])})
	}
	return items
}

// Save writes the baseline as JSON, creating parent directories.
func (b *Baseline) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating baseline dir: %w", err)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding baseline: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing baseline: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing baseline: %w", err)
	}
	return nil
}

// Load reads a baseline file.
func Load(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading baseline: %w", err)
	}
	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parsing baseline %s: %w", path, err)
	}
	if b.Version > CurrentVersion {
		return nil, fmt.Errorf("baseline %s has version %d, newer than supported %d", path, b.Version, CurrentVersion)
	}
	return &b, nil
}

// Exists reports whether a baseline file exists at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Summary is a short human description of the baseline.
func (b *Baseline) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Baseline from %s", b.CreatedAt.Format(time.RFC3339))
	if b.Description != "" {
		fmt.Fprintf(&sb, " (%s)", b.Description)
	}
	fmt.Fprintf(&sb, ": %d nodes, %d references, %d cycles, %d dangling",
		b.Stats.NodeCount, b.Stats.EdgeCount, b.Stats.CycleCount, b.Stats.DanglingCount)
	return sb.String()
}
