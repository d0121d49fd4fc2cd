package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vanderheijden86/refgraph/pkg/analysis"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

// ReportOptions controls the human-readable report.
type ReportOptions struct {
	Source      string
	Width       int // 0 means DefaultWidth
	TopN        int // rows in the most-referenced table; 0 means 10
	Diagnostics analysis.DiagnosticConfig
	Profile     bool // append the timing breakdown
}

// RenderReport renders the full analysis of g for a terminal.
func RenderReport(t Theme, g *model.RefGraph, report *analysis.Report, opts ReportOptions) string {
	if g == nil || report == nil {
		return t.Subtle.Render("No graph loaded.") + "\n"
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.TopN <= 0 {
		opts.TopN = 10
	}

	var sections []string

	title := "refgraph"
	if opts.Source != "" {
		title += " · " + opts.Source
	}
	sections = append(sections, t.Title.Render(truncate(title, opts.Width-2)))

	sections = append(sections, t.Section.Render("Summary"), renderStatsTable(t, report))
	sections = append(sections, t.Section.Render("Findings"), renderFindings(t, analysis.Diagnose(g, report, opts.Diagnostics), opts.Width))
	sections = append(sections, t.Section.Render("Cycles"), RenderCycles(t, report, opts.Width))
	sections = append(sections,
		t.Section.Render("Deletion order"), renderOrder(t, report.DeletionOrder, opts.Width),
		t.Section.Render("Dependency order"), renderOrder(t, report.DependencyOrder, opts.Width),
	)
	sections = append(sections, t.Section.Render("Most referenced"), renderMostReferenced(t, g, opts.TopN))

	if len(report.Unreferenced) > 0 {
		sections = append(sections, t.Section.Render("Unreferenced"), wrapList(t.Base, report.Unreferenced, opts.Width))
	}
	if opts.Profile {
		sections = append(sections, t.Section.Render("Profile"), renderProfile(t, report.Profile))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func renderStatsTable(t Theme, report *analysis.Report) string {
	s := report.Stats
	rows := [][]string{
		{"Nodes", fmt.Sprintf("%d", s.NodeCount)},
		{"References", fmt.Sprintf("%d", s.EdgeCount)},
		{"Cycles", cycleCount(report)},
		{"Self references", fmt.Sprintf("%d", s.SelfLoopCount)},
		{"Dangling references", fmt.Sprintf("%d", s.DanglingCount)},
		{"Unreferenced nodes", fmt.Sprintf("%d", len(report.Unreferenced))},
		{"Max out-degree", degreeCell(s.MaxOutDegree, s.MaxOutLabel)},
		{"Max in-degree", degreeCell(s.MaxInDegree, s.MaxInLabel)},
		{"Avg out-degree", fmt.Sprintf("%.2f", s.AvgOutDegree)},
		{"Density", fmt.Sprintf("%.4f", s.Density)},
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(t.Renderer.NewStyle().Foreground(t.Border)).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return t.TableRow.Foreground(t.Secondary)
			}
			return t.TableRow.Bold(true)
		}).
		String()
}

func cycleCount(report *analysis.Report) string {
	switch report.Status.Cycles.State {
	case "skipped":
		return "skipped"
	case "timeout":
		return fmt.Sprintf("%d+ (timeout)", len(report.Cycles))
	}
	if report.CyclesTruncated {
		return fmt.Sprintf("%d+", len(report.Cycles))
	}
	return fmt.Sprintf("%d", len(report.Cycles))
}

func degreeCell(n int, label string) string {
	if label == "" {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%d (%s)", n, truncate(label, 40))
}

func renderFindings(t Theme, diags []analysis.Diagnostic, width int) string {
	if len(diags) == 0 {
		return t.Success.Render("✓ No cycles, dangling references or high-impact nodes.")
	}
	lines := make([]string, 0, len(diags))
	for _, d := range diags {
		var icon string
		style := t.Base
		switch d.Kind {
		case analysis.DiagnosticCycle:
			icon, style = "↻", t.Danger
		case analysis.DiagnosticDangling:
			icon, style = "?", t.Warning
		case analysis.DiagnosticImpact:
			icon, style = "⚡", t.Base.Foreground(t.Impact)
		}
		lines = append(lines, style.Render(icon+" "+truncate(d.Summary, width-2)))
		if d.Action != "" {
			lines = append(lines, t.Subtle.Render("  "+truncate(d.Action, width-2)))
		}
	}
	return strings.Join(lines, "\n")
}

// RenderCycles lists the reported cycles as closed paths.
func RenderCycles(t Theme, report *analysis.Report, width int) string {
	if report.Status.Cycles.State == "skipped" {
		return t.Subtle.Render("Cycle detection skipped: " + report.Status.Cycles.Reason)
	}
	if len(report.Cycles) == 0 {
		return t.Success.Render("None.")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	lines := make([]string, 0, len(report.Cycles)+1)
	for i, c := range report.Cycles {
		prefix := fmt.Sprintf("%3d. ", i+1)
		path := strings.Join(c, " → ")
		lines = append(lines, t.Label.Render(prefix)+t.CycleTx.Render(truncate(path, width-len(prefix))))
	}
	if report.CyclesTruncated {
		lines = append(lines, t.Subtle.Render("     (list truncated)"))
	}
	return strings.Join(lines, "\n")
}

func renderOrder(t Theme, plan analysis.OrderPlan, width int) string {
	if plan.HasCycle {
		msg := fmt.Sprintf("No order exists: %d node(s) held by a cycle", len(plan.Blocked))
		out := t.Danger.Render(msg)
		if len(plan.Blocked) > 0 {
			out += "\n" + wrapList(t.CycleTx, plan.Blocked, width)
		}
		return out
	}
	if len(plan.Order) == 0 {
		return t.Subtle.Render("(empty)")
	}
	return wrapList(t.Base, plan.Order, width)
}

// wrapList joins items with arrows and wraps at width.
func wrapList(style lipgloss.Style, items []string, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	var lines []string
	var line strings.Builder
	lineWidth := 0
	for i, item := range items {
		item = truncate(item, width)
		piece := item
		if i < len(items)-1 {
			piece += " → "
		}
		pw := lipgloss.Width(piece)
		if lineWidth > 0 && lineWidth+pw > width {
			lines = append(lines, style.Render(strings.TrimRight(line.String(), " ")))
			line.Reset()
			lineWidth = 0
		}
		line.WriteString(piece)
		lineWidth += pw
	}
	if line.Len() > 0 {
		lines = append(lines, style.Render(strings.TrimRight(line.String(), " ")))
	}
	return strings.Join(lines, "\n")
}

func renderMostReferenced(t Theme, g *model.RefGraph, topN int) string {
	counts := analysis.DependentCounts(g)
	ranked := g.Labels()
	sort.SliceStable(ranked, func(i, j int) bool { return counts[ranked[i]] > counts[ranked[j]] })
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	if len(ranked) == 0 {
		return t.Subtle.Render("(no nodes)")
	}

	rows := make([][]string, 0, len(ranked))
	for _, label := range ranked {
		rows = append(rows, []string{
			truncate(label, 40),
			fmt.Sprintf("%d", counts[label]),
			fmt.Sprintf("%d", g.OutDegree(label)),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(t.Renderer.NewStyle().Foreground(t.Border)).
		Headers("NODE", "DEPENDENTS", "REFERENCES").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return t.TableHdr
			}
			if col > 0 {
				return t.TableRow.Align(lipgloss.Right)
			}
			return t.TableRow
		}).
		String()
}

func renderProfile(t Theme, p analysis.Profile) string {
	rows := [][]string{
		{"stats", FormatDuration(p.Stats)},
		{"cycles", FormatDuration(p.Cycles)},
		{"deletion order", FormatDuration(p.DeletionOrder)},
		{"dependency order", FormatDuration(p.DependencyOrder)},
		{"groups", FormatDuration(p.Groups)},
		{"impact", FormatDuration(p.Impact)},
		{"total", FormatDuration(p.Total)},
	}
	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString(t.Label.Render(padRight(r[0], 18)) + r[1] + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderPath renders the result of a path query.
func RenderPath(t Theme, from, to string, path []string, found bool) string {
	if !found {
		return t.Warning.Render(fmt.Sprintf("No path from %s to %s.", from, to))
	}
	hops := len(path) - 1
	header := t.Label.Render(fmt.Sprintf("%d hop(s): ", hops))
	return header + t.Base.Render(strings.Join(path, " → "))
}

// RenderDependents renders the direct and transitive dependents of target.
func RenderDependents(t Theme, target string, direct, transitive []string, width int) string {
	var sb strings.Builder
	sb.WriteString(t.Section.Render("Dependents of "+target) + "\n")
	if len(direct) == 0 {
		sb.WriteString(t.Success.Render("Nothing references this node.") + "\n")
		return sb.String()
	}
	sb.WriteString(t.Label.Render(fmt.Sprintf("direct (%d): ", len(direct))) + "\n")
	sb.WriteString(wrapCommaList(t.Base, direct, width) + "\n")
	sb.WriteString(t.Label.Render(fmt.Sprintf("transitive (%d): ", len(transitive))) + "\n")
	sb.WriteString(wrapCommaList(t.Base, transitive, width) + "\n")
	return sb.String()
}

func wrapCommaList(style lipgloss.Style, items []string, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	return style.Width(width).Render(strings.Join(items, ", "))
}

// RenderDiff renders the changes between two analyses for watch mode.
func RenderDiff(t Theme, diff *analysis.SnapshotDiff) string {
	if diff == nil || diff.IsEmpty() {
		return t.Subtle.Render("No changes.")
	}

	var lines []string
	trend := diff.Summary.HealthTrend
	trendStyle := t.Base
	switch trend {
	case "improving":
		trendStyle = t.Success
	case "degrading":
		trendStyle = t.Danger
	}
	lines = append(lines, fmt.Sprintf("%s %s %s",
		t.Number.Render(fmt.Sprintf("%d change(s)", diff.Summary.TotalChanges)),
		t.Label.Render("·"),
		trendStyle.Render(trend)))

	add := func(sign string, style lipgloss.Style, label string, items []string) {
		if len(items) == 0 {
			return
		}
		lines = append(lines, style.Render(fmt.Sprintf("%s %s: %s", sign, label, strings.Join(items, ", "))))
	}
	add("+", t.Success, "nodes", diff.AddedNodes)
	add("-", t.Warning, "nodes", diff.RemovedNodes)
	add("~", t.Base, "changed", diff.ChangedNodes)
	add("+", t.Success, "references", refStrings(diff.AddedReferences))
	add("-", t.Warning, "references", refStrings(diff.RemovedReferences))

	for _, c := range diff.NewCycles {
		lines = append(lines, t.Danger.Render("↻ new cycle: "+strings.Join(c, " → ")))
	}
	for _, c := range diff.ResolvedCycles {
		lines = append(lines, t.Success.Render("✓ resolved: "+strings.Join(c, " → ")))
	}

	d := diff.Deltas
	lines = append(lines, t.Label.Render(fmt.Sprintf("Δ nodes %+d  references %+d  cycles %+d  dangling %+d", d.Nodes, d.Edges, d.Cycles, d.Dangling)))
	return strings.Join(lines, "\n")
}

func refStrings(refs []model.Reference) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.From + "→" + r.To
	}
	return out
}
