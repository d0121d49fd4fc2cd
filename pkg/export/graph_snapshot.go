package export

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vanderheijden86/refgraph/pkg/analysis"
	"github.com/vanderheijden86/refgraph/pkg/metrics"
	"github.com/vanderheijden86/refgraph/pkg/model"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"
)

// GraphSnapshotOptions controls graph snapshot export behaviour.
type GraphSnapshotOptions struct {
	Path     string           // Output path; format inferred from extension when Format empty
	Format   string           // "svg" or "png" (case-insensitive). If empty, inferred from Path.
	Title    string           // Optional title rendered in summary block
	Preset   string           // Layout preset: "compact" (default) or "roomy"
	Graph    *model.RefGraph  // Graph to render
	Report   *analysis.Report // Analysis used for cycle highlighting; computed when nil
	DataHash string           // Hash of the graph for provenance
}

// SaveGraphSnapshot renders a static graph snapshot (SVG or PNG) with a
// summary block. Leaves sit in the leftmost column and every referrer is
// placed to the right of what it references.
func SaveGraphSnapshot(opts GraphSnapshotOptions) error {
	defer metrics.Timer(metrics.Export)()

	if opts.Graph.Len() == 0 {
		return fmt.Errorf("no nodes to export")
	}
	if opts.Report == nil {
		report, err := analysis.NewAnalyzer(opts.Graph).Analyze(context.Background())
		if err != nil {
			return fmt.Errorf("analyze: %w", err)
		}
		opts.Report = report
	}
	if opts.DataHash == "" {
		opts.DataHash = analysis.ComputeGraphHash(opts.Graph)
	}

	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg"
			if opts.Path != "" && filepath.Ext(opts.Path) == "" {
				opts.Path = opts.Path + ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	layout := buildLayout(opts)

	switch format {
	case "svg":
		return renderSVG(opts, layout)
	case "png":
		return renderPNG(opts, layout)
	default:
		return fmt.Errorf("unhandled format %q", format)
	}
}

// --- layout computation ----------------------------------------------------

type layoutNode struct {
	ID         string
	Level      int
	InCycle    bool
	Dependents int
	OutDegree  int
	X, Y       float64
	NodeW      float64
	NodeH      float64
}

type layoutEdge struct {
	From string
	To   string
}

type layoutResult struct {
	Nodes   []layoutNode
	Edges   []layoutEdge
	Width   int
	Height  int
	Header  float64
	Summary summaryInfo
}

type summaryInfo struct {
	Title        string
	DataHash     string
	NodeCount    int
	EdgeCount    int
	CycleCount   int
	MostReferred string
}

// nodeLevels assigns each node 1 + the highest level among its in-store
// dependencies. A reference back onto the current DFS path is skipped, so a
// cycle is laid out along its walk order.
func nodeLevels(g *model.RefGraph) map[string]int {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, g.Len())
	level := make(map[string]int, g.Len())

	var visit func(label string) int
	visit = func(label string) int {
		switch state[label] {
		case done:
			return level[label]
		case visiting:
			return 0
		}
		state[label] = visiting
		lvl := 1
		g.EachDependency(label, func(dep string) {
			if !g.Has(dep) {
				return
			}
			if l := visit(dep); l+1 > lvl && state[dep] == done {
				lvl = l + 1
			}
		})
		state[label] = done
		level[label] = lvl
		return lvl
	}

	for _, label := range g.Labels() {
		visit(label)
	}
	return level
}

func buildLayout(opts GraphSnapshotOptions) layoutResult {
	const (
		nodeWCompact  = 170.0
		nodeHCompact  = 56.0
		nodeWRoomy    = 190.0
		nodeHRoomy    = 68.0
		colGapCompact = 80.0
		rowGapCompact = 36.0
		colGapRoomy   = 110.0
		rowGapRoomy   = 50.0
		padding       = 36.0
		headerHeight  = 120.0
	)

	roomy := strings.EqualFold(opts.Preset, "roomy")
	nodeW := nodeWCompact
	nodeH := nodeHCompact
	colGap := colGapCompact
	rowGap := rowGapCompact
	if roomy {
		nodeW = nodeWRoomy
		nodeH = nodeHRoomy
		colGap = colGapRoomy
		rowGap = rowGapRoomy
	}

	g := opts.Graph
	levels := nodeLevels(g)
	counts := analysis.DependentCounts(g)
	inCycle := opts.Report.InCycle()

	maxLevel := 1
	levelBuckets := make(map[int][]layoutNode)
	for _, label := range g.Labels() {
		lvl := levels[label]
		if lvl > maxLevel {
			maxLevel = lvl
		}
		levelBuckets[lvl] = append(levelBuckets[lvl], layoutNode{
			ID:         label,
			Level:      lvl,
			InCycle:    inCycle[label],
			Dependents: counts[label],
			OutDegree:  g.OutDegree(label),
			NodeW:      nodeW,
			NodeH:      nodeH,
		})
	}

	// most referenced first within a column, then label
	for lvl := 1; lvl <= maxLevel; lvl++ {
		nodes := levelBuckets[lvl]
		sort.SliceStable(nodes, func(i, j int) bool {
			if nodes[i].Dependents != nodes[j].Dependents {
				return nodes[i].Dependents > nodes[j].Dependents
			}
			return nodes[i].ID < nodes[j].ID
		})
		levelBuckets[lvl] = nodes
	}

	var nodes []layoutNode
	maxRows := 0
	for lvl := 1; lvl <= maxLevel; lvl++ {
		bucket := levelBuckets[lvl]
		if len(bucket) > maxRows {
			maxRows = len(bucket)
		}
		for idx := range bucket {
			bucket[idx].X = padding + float64(lvl-1)*(nodeW+colGap)
			bucket[idx].Y = padding + headerHeight + float64(idx)*(nodeH+rowGap)
			nodes = append(nodes, bucket[idx])
		}
	}

	width := int(padding*2 + float64(maxLevel)*(nodeW+colGap) + nodeW)
	if width < 640 {
		width = 640
	}
	height := int(padding*2 + headerHeight + float64(maxRows)*(nodeH+rowGap) + nodeH)
	if height < 480 {
		height = 480
	}

	// one edge per distinct in-store reference
	var edges []layoutEdge
	seen := make(map[model.Reference]bool)
	for _, ref := range g.References() {
		if !g.Has(ref.To) || seen[ref] {
			continue
		}
		seen[ref] = true
		edges = append(edges, layoutEdge{From: ref.From, To: ref.To})
	}

	title := opts.Title
	if strings.TrimSpace(title) == "" {
		title = "Reference Graph Snapshot"
	}

	return layoutResult{
		Nodes:  nodes,
		Edges:  edges,
		Width:  width,
		Height: height,
		Header: headerHeight,
		Summary: summaryInfo{
			Title:        title,
			DataHash:     opts.DataHash,
			NodeCount:    len(nodes),
			EdgeCount:    g.EdgeCount(),
			CycleCount:   len(opts.Report.Cycles),
			MostReferred: mostReferred(g.Labels(), counts),
		},
	}
}

// mostReferred names the node with the most dependents; ties go to store order.
func mostReferred(labels []string, counts map[string]int) string {
	best, bestCount := "", -1
	for _, label := range labels {
		if counts[label] > bestCount {
			best, bestCount = label, counts[label]
		}
	}
	if best == "" {
		return "n/a"
	}
	return fmt.Sprintf("%s (%d)", best, bestCount)
}

// --- rendering -------------------------------------------------------------

var (
	colorNode      = color.RGBA{0xbb, 0xde, 0xfb, 0xff}
	colorCycle     = color.RGBA{0xff, 0xcd, 0xd2, 0xff}
	colorStroke    = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorEdge      = color.RGBA{0x6b, 0x80, 0xbf, 0xff}
	colorEdgeArrow = color.RGBA{0x6b, 0x80, 0xbf, 0xff}
	colorText      = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle    = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop  = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG  = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	colorLegendBG  = color.RGBA{0xee, 0xee, 0xee, 0xff}
)

func nodeColor(n layoutNode) color.RGBA {
	if n.InCycle {
		return colorCycle
	}
	return colorNode
}

func nodeCaption(n layoutNode) string {
	return fmt.Sprintf("refs %d  dependents %d", n.OutDegree, n.Dependents)
}

// edgeEnds runs from the referrer's left side to the dependency's right side.
// A dependency in the same or a later column (a cycle) is entered from its left.
func edgeEnds(from, to layoutNode) (x1, y1, x2, y2 float64, pointsLeft bool) {
	x1 = from.X
	y1 = from.Y + from.NodeH/2
	y2 = to.Y + to.NodeH/2
	if to.Level < from.Level {
		return x1, y1, to.X + to.NodeW, y2, true
	}
	return from.X + from.NodeW, y1, to.X, y2, false
}

func renderPNG(opts GraphSnapshotOptions, layout layoutResult) error {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	// header
	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(layout.Width)-32, layout.Header-24, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)

	drawSummaryBlock(dc, layout)
	drawLegend(dc, layout)

	nodePos := make(map[string]layoutNode, len(layout.Nodes))
	for _, n := range layout.Nodes {
		nodePos[n.ID] = n
	}
	dc.SetLineWidth(2)
	for _, e := range layout.Edges {
		x1, y1, x2, y2, left := edgeEnds(nodePos[e.From], nodePos[e.To])
		dc.SetColor(colorEdge)
		dc.DrawLine(x1, y1, x2, y2)
		dc.Stroke()
		dx := -8.0
		if left {
			dx = 8.0
		}
		drawArrow(dc, x2, y2, dx, 0)
	}

	for _, n := range layout.Nodes {
		drawNode(dc, n)
	}

	return dc.SavePNG(opts.Path)
}

func renderSVG(opts GraphSnapshotOptions, layout layoutResult) error {
	file, err := os.Create(opts.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	return renderSVGToWriter(file, layout)
}

func renderSVGToWriter(w io.Writer, layout layoutResult) error {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, layout.Width-32, int(layout.Header-24), 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))

	drawSummaryBlockSVG(canvas, layout)
	drawLegendSVG(canvas, layout)

	nodePos := make(map[string]layoutNode, len(layout.Nodes))
	for _, n := range layout.Nodes {
		nodePos[n.ID] = n
	}

	for _, e := range layout.Edges {
		fx1, fy1, fx2, fy2, left := edgeEnds(nodePos[e.From], nodePos[e.To])
		x1, y1, x2, y2 := int(fx1), int(fy1), int(fx2), int(fy2)
		canvas.Line(x1, y1, x2, y2, fmt.Sprintf("stroke:%s;stroke-width:2", css(colorEdge)))
		back := -8
		if left {
			back = 8
		}
		canvas.Polygon(
			[]int{x2, x2 + back, x2 + back},
			[]int{y2, y2 + 4, y2 - 4},
			fmt.Sprintf("fill:%s", css(colorEdgeArrow)),
		)
	}

	for _, n := range layout.Nodes {
		x := int(n.X)
		y := int(n.Y)
		canvas.Roundrect(x, y, int(n.NodeW), int(n.NodeH), 8, 8,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.2", css(nodeColor(n)), css(colorStroke)))
		canvas.Text(x+10, y+22, truncate(n.ID, 22), fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorText)))
		canvas.Text(x+10, y+42, nodeCaption(n), fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
	}

	canvas.End()
	return nil
}

func drawNode(dc *gg.Context, n layoutNode) {
	dc.SetColor(nodeColor(n))
	dc.DrawRoundedRectangle(n.X, n.Y, n.NodeW, n.NodeH, 8)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.SetLineWidth(1.2)
	dc.DrawRoundedRectangle(n.X, n.Y, n.NodeW, n.NodeH, 8)
	dc.Stroke()

	dc.SetColor(colorText)
	dc.DrawStringAnchored(truncate(n.ID, 22), n.X+10, n.Y+18, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(nodeCaption(n), n.X+10, n.Y+38, 0, 0.5)
}

func drawArrow(dc *gg.Context, x, y, dx, dy float64) {
	dc.SetColor(colorEdgeArrow)
	dc.NewSubPath()
	dc.MoveTo(x, y)
	dc.LineTo(x+dx, y+dy+4)
	dc.LineTo(x+dx, y+dy-4)
	dc.ClosePath()
	dc.Fill()
}

func summaryLines(layout layoutResult) []string {
	return []string{
		fmt.Sprintf("data_hash: %s", layout.Summary.DataHash),
		fmt.Sprintf("nodes: %d  references: %d  cycles: %d", layout.Summary.NodeCount, layout.Summary.EdgeCount, layout.Summary.CycleCount),
		fmt.Sprintf("most referenced: %s", layout.Summary.MostReferred),
	}
}

func drawSummaryBlock(dc *gg.Context, layout layoutResult) {
	dc.SetColor(colorText)
	dc.DrawStringAnchored(layout.Summary.Title, 32, 44, 0, 0.5)
	dc.SetColor(colorSubtle)
	for i, line := range summaryLines(layout) {
		dc.DrawStringAnchored(line, 32, float64(64+20*i), 0, 0.5)
	}
}

func drawLegend(dc *gg.Context, layout layoutResult) {
	boxW := 180.0
	boxH := 64.0
	x := float64(layout.Width) - boxW - 20
	y := 24.0
	dc.SetColor(colorLegendBG)
	dc.DrawRoundedRectangle(x, y, boxW, boxH, 10)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.DrawRoundedRectangle(x, y, boxW, boxH, 10)
	dc.Stroke()

	dc.SetColor(colorText)
	dc.DrawStringAnchored("Legend", x+12, y+18, 0, 0.5)
	drawLegendRow(dc, x+12, y+36, colorNode, "Node")
	drawLegendRow(dc, x+12, y+52, colorCycle, "On a cycle")
}

func drawLegendRow(dc *gg.Context, x, y float64, c color.RGBA, label string) {
	dc.SetColor(c)
	dc.DrawRoundedRectangle(x, y-8, 14, 14, 3)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.DrawRoundedRectangle(x, y-8, 14, 14, 3)
	dc.Stroke()
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(label, x+20, y, 0, 0.5)
}

func drawSummaryBlockSVG(canvas *svg.SVG, layout layoutResult) {
	canvas.Text(32, 44, layout.Summary.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	for i, line := range summaryLines(layout) {
		canvas.Text(32, 64+20*i, line, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))
	}
}

func drawLegendSVG(canvas *svg.SVG, layout layoutResult) {
	boxW := 180
	boxH := 64
	x := layout.Width - boxW - 20
	y := 24
	canvas.Roundrect(x, y, boxW, boxH, 10, 10, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(colorLegendBG), css(colorStroke)))
	canvas.Text(x+12, y+18, "Legend", fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorText)))
	drawLegendRowSVG(canvas, x+12, y+36, colorNode, "Node")
	drawLegendRowSVG(canvas, x+12, y+52, colorCycle, "On a cycle")
}

func drawLegendRowSVG(canvas *svg.SVG, x, y int, c color.RGBA, label string) {
	canvas.Roundrect(x, y-8, 14, 14, 3, 3, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(c), css(colorStroke)))
	canvas.Text(x+20, y, label, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
}

// --- helpers ---------------------------------------------------------------

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
