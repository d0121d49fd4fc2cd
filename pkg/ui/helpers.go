package ui

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/vanderheijden86/refgraph/pkg/model"
)

// DefaultWidth is used when the output is not a terminal and COLUMNS is unset.
const DefaultWidth = 100

// TerminalWidth returns the width of f when it is a terminal, else $COLUMNS,
// else DefaultWidth.
func TerminalWidth(f *os.File) int {
	if f != nil {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			if w, _, err := term.GetSize(fd); err == nil && w > 0 {
				return w
			}
		}
	}
	if cols, err := strconv.Atoi(strings.TrimSpace(os.Getenv("COLUMNS"))); err == nil && cols > 0 {
		return cols
	}
	return DefaultWidth
}

// truncateRunesHelper truncates a string to max visual width (cells), adding suffix if needed.
func truncateRunesHelper(s string, maxWidth int, suffix string) string {
	if maxWidth <= 0 {
		return ""
	}

	width := runewidth.StringWidth(s)
	if width <= maxWidth {
		return s
	}

	suffixWidth := runewidth.StringWidth(suffix)
	if suffixWidth > maxWidth {
		return runewidth.Truncate(suffix, maxWidth, "")
	}

	return runewidth.Truncate(s, maxWidth-suffixWidth, "") + suffix
}

// padRight pads s with spaces to width cells.
func padRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// truncate truncates s to maxWidth cells.
func truncate(s string, maxWidth int) string {
	return truncateRunesHelper(s, maxWidth, "…")
}

// FormatDuration renders short timings the way the profile section shows them.
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// Tree node kinds.
const (
	NodeRoot     = "root"
	NodeRef      = "ref"
	NodeCycle    = "cycle"
	NodeDangling = "dangling"
	NodeElided   = "elided"
)

// DependencyNode is a visual node in a dependency tree.
type DependencyNode struct {
	Label    string
	Kind     string
	Children []*DependencyNode
}

// BuildDependencyTree expands the dependencies of root. A label already on
// the current branch is shown once more as a cycle marker and not expanded.
// maxDepth limits recursion; 0 means unlimited.
func BuildDependencyTree(g *model.RefGraph, root string, maxDepth int) *DependencyNode {
	if !g.Has(root) {
		return nil
	}
	onPath := make(map[string]bool)
	return buildTreeRecursive(g, root, NodeRoot, onPath, 0, maxDepth)
}

func buildTreeRecursive(g *model.RefGraph, label, kind string, onPath map[string]bool, depth, maxDepth int) *DependencyNode {
	if onPath[label] {
		return &DependencyNode{Label: label, Kind: NodeCycle}
	}
	if !g.Has(label) {
		return &DependencyNode{Label: label, Kind: NodeDangling}
	}

	node := &DependencyNode{Label: label, Kind: kind}
	if maxDepth > 0 && depth >= maxDepth {
		if g.OutDegree(label) > 0 {
			node.Children = []*DependencyNode{{Label: fmt.Sprintf("%d more", g.OutDegree(label)), Kind: NodeElided}}
		}
		return node
	}

	onPath[label] = true
	defer func() { onPath[label] = false }() // revisit in other branches

	g.EachDependency(label, func(dep string) {
		node.Children = append(node.Children, buildTreeRecursive(g, dep, NodeRef, onPath, depth+1, maxDepth))
	})
	return node
}

// RenderDependencyTree renders a dependency tree as indented text.
func RenderDependencyTree(t Theme, node *DependencyNode) string {
	if node == nil {
		return "No dependency data."
	}

	var sb strings.Builder
	renderTreeNode(&sb, t, node, "", true, true)
	return sb.String()
}

func renderTreeNode(sb *strings.Builder, t Theme, node *DependencyNode, prefix string, isLast, isRoot bool) {
	connector := ""
	if !isRoot {
		connector = "├── "
		if isLast {
			connector = "└── "
		}
	}

	text := truncateRunesHelper(node.Label, 60, "...")
	switch node.Kind {
	case NodeCycle:
		text = t.CycleTx.Render(text + " ↻ (cycle)")
	case NodeDangling:
		text = t.Warning.Render(text + " (missing)")
	case NodeElided:
		text = t.Subtle.Render("… " + text)
	case NodeRoot:
		text = t.Number.Render(text)
	}
	sb.WriteString(prefix + connector + text + "\n")

	childPrefix := ""
	if !isRoot {
		childPrefix = prefix + "│   "
		if isLast {
			childPrefix = prefix + "    "
		}
	}
	for i, child := range node.Children {
		renderTreeNode(sb, t, child, childPrefix, i == len(node.Children)-1, false)
	}
}
