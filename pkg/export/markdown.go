package export

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/refgraph/pkg/analysis"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

// MarkdownOptions configures the Markdown report.
type MarkdownOptions struct {
	Title        string
	TopN         int                       // rows in the most-referenced table; 0 means 10
	Diagnostics  analysis.DiagnosticConfig // thresholds for the findings section
	GeneratedAt  time.Time                 // zero means now
	IncludeGraph bool                      // embed a Mermaid diagram
}

// DefaultMarkdownOptions returns the options used by the CLI.
func DefaultMarkdownOptions() MarkdownOptions {
	return MarkdownOptions{
		Title:        "Reference Graph Report",
		TopN:         10,
		Diagnostics:  analysis.DefaultDiagnosticConfig(),
		IncludeGraph: true,
	}
}

// GenerateMarkdown renders a report as Markdown.
func GenerateMarkdown(g *model.RefGraph, report *analysis.Report, opts MarkdownOptions) (string, error) {
	if g == nil || report == nil {
		return "", fmt.Errorf("markdown: graph and report are required")
	}
	if opts.Title == "" {
		opts.Title = "Reference Graph Report"
	}
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	generated := opts.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(opts.Title)))
	sb.WriteString(fmt.Sprintf("*Generated: %s*\n\n", generated.Format(time.RFC1123)))

	// Summary
	s := report.Stats
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| **Nodes** | %d |\n", s.NodeCount))
	sb.WriteString(fmt.Sprintf("| **References** | %d |\n", s.EdgeCount))
	sb.WriteString(fmt.Sprintf("| Cycles | %d |\n", len(report.Cycles)))
	sb.WriteString(fmt.Sprintf("| Self references | %d |\n", s.SelfLoopCount))
	sb.WriteString(fmt.Sprintf("| Dangling references | %d |\n", s.DanglingCount))
	sb.WriteString(fmt.Sprintf("| Unreferenced nodes | %d |\n", len(report.Unreferenced)))
	sb.WriteString(fmt.Sprintf("| Max out-degree | %d %s |\n", s.MaxOutDegree, labelSuffix(s.MaxOutLabel)))
	sb.WriteString(fmt.Sprintf("| Max in-degree | %d %s |\n", s.MaxInDegree, labelSuffix(s.MaxInLabel)))
	sb.WriteString(fmt.Sprintf("| Density | %.4f |\n\n", s.Density))

	// Findings
	diags := analysis.Diagnose(g, report, opts.Diagnostics)
	sb.WriteString("## Findings\n\n")
	if len(diags) == 0 {
		sb.WriteString("✅ No cycles, dangling references or high-impact nodes.\n\n")
	} else {
		for _, d := range diags {
			sb.WriteString(fmt.Sprintf("- %s **%s** `%s`: %s\n", diagnosticIcon(d.Kind), d.Kind, d.Target, escapeMarkdown(d.Summary)))
			if d.Action != "" {
				sb.WriteString(fmt.Sprintf("  - Suggested: %s\n", escapeMarkdown(d.Action)))
			}
		}
		sb.WriteString("\n")
	}

	// Cycles
	sb.WriteString("## Cycles\n\n")
	switch {
	case report.Status.Cycles.State == "skipped":
		sb.WriteString(fmt.Sprintf("Cycle detection skipped: %s\n\n", report.Status.Cycles.Reason))
	case len(report.Cycles) == 0:
		sb.WriteString("None.\n\n")
	default:
		for i, c := range report.Cycles {
			sb.WriteString(fmt.Sprintf("%d. `%s`\n", i+1, strings.Join(c, " → ")))
		}
		if report.CyclesTruncated {
			sb.WriteString("\n*Cycle list truncated.*\n")
		}
		sb.WriteString("\n")
	}

	// Orders
	writeOrder(&sb, "Deletion Order", "Referrers first; every node is removed before anything it references.", report.DeletionOrder)
	writeOrder(&sb, "Dependency Order", "Leaves first; every node appears after everything it references.", report.DependencyOrder)

	// Most referenced
	sb.WriteString("## Most Referenced\n\n")
	counts := analysis.DependentCounts(g)
	ranked := g.Labels()
	sort.SliceStable(ranked, func(i, j int) bool { return counts[ranked[i]] > counts[ranked[j]] })
	if len(ranked) > opts.TopN {
		ranked = ranked[:opts.TopN]
	}
	sb.WriteString("| Node | Dependents | References |\n|------|-----------:|-----------:|\n")
	for _, label := range ranked {
		sb.WriteString(fmt.Sprintf("| `%s` | %d | %d |\n", escapeTableCell(label), counts[label], g.OutDegree(label)))
	}
	sb.WriteString("\n")

	// Unreferenced and dangling
	if len(report.Unreferenced) > 0 {
		sb.WriteString("## Unreferenced Nodes\n\n")
		for _, label := range report.Unreferenced {
			sb.WriteString(fmt.Sprintf("- `%s`\n", label))
		}
		sb.WriteString("\n")
	}
	if len(report.Dangling) > 0 {
		sb.WriteString("## Dangling References\n\n")
		for _, ref := range report.Dangling {
			sb.WriteString(fmt.Sprintf("- `%s` → `%s`\n", ref.From, ref.To))
		}
		sb.WriteString("\n")
	}

	if opts.IncludeGraph {
		sb.WriteString("## Reference Graph\n\n")
		sb.WriteString("```mermaid\n")
		sb.WriteString(GenerateMermaid(g, report.Cycles, MermaidConfig{ShowNoDependenciesNode: true}))
		sb.WriteString("```\n")
	}

	return sb.String(), nil
}

func writeOrder(sb *strings.Builder, heading, blurb string, plan analysis.OrderPlan) {
	sb.WriteString(fmt.Sprintf("## %s\n\n", heading))
	if plan.HasCycle {
		sb.WriteString(fmt.Sprintf("⛔ No order exists: %d node(s) are held by a cycle", len(plan.Blocked)))
		if len(plan.Blocked) > 0 {
			sb.WriteString(fmt.Sprintf(" (`%s`)", strings.Join(plan.Blocked, "`, `")))
		}
		sb.WriteString(".\n\n")
		return
	}
	sb.WriteString(blurb + "\n\n")
	for i, label := range plan.Order {
		sb.WriteString(fmt.Sprintf("%d. `%s`\n", i+1, label))
	}
	sb.WriteString("\n")
}

func diagnosticIcon(kind analysis.DiagnosticKind) string {
	switch kind {
	case analysis.DiagnosticCycle:
		return "🔁"
	case analysis.DiagnosticDangling:
		return "👻"
	case analysis.DiagnosticImpact:
		return "⚡"
	default:
		return "•"
	}
}

func labelSuffix(label string) string {
	if label == "" {
		return ""
	}
	return fmt.Sprintf("(`%s`)", escapeTableCell(label))
}

func escapeTableCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "|", "\\|")
}

func escapeMarkdown(s string) string {
	return strings.NewReplacer("\n", " ", "\r", "").Replace(s)
}

// SaveMarkdownToFile writes the generated markdown to a file.
func SaveMarkdownToFile(g *model.RefGraph, report *analysis.Report, opts MarkdownOptions, filename string) error {
	content, err := GenerateMarkdown(g, report, opts)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, []byte(content), 0644)
}
