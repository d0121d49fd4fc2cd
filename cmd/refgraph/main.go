package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"

	"github.com/vanderheijden86/refgraph/internal/datasource"
	"github.com/vanderheijden86/refgraph/pkg/analysis"
	"github.com/vanderheijden86/refgraph/pkg/config"
	"github.com/vanderheijden86/refgraph/pkg/debug"
	"github.com/vanderheijden86/refgraph/pkg/export"
	"github.com/vanderheijden86/refgraph/pkg/loader"
	"github.com/vanderheijden86/refgraph/pkg/metrics"
	"github.com/vanderheijden86/refgraph/pkg/model"
	"github.com/vanderheijden86/refgraph/pkg/ui"
	"github.com/vanderheijden86/refgraph/pkg/version"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errUsage marks errors caused by bad flag combinations.
var errUsage = errors.New("usage")

type options struct {
	graph      string
	source     string
	configPath string
	cpuProfile string
	debug      bool
	version    bool

	// Robot mode: one JSON document on stdout.
	robotCycles     bool
	robotOrder      bool
	robotDepOrder   bool
	robotDependents string
	robotOrphans    string
	robotPath       string
	robotStats      bool
	robotDiagnose   bool
	robotCheckRef   string
	robotAll        bool
	robotGraph      bool
	robotSources    bool
	graphFormat     string
	graphRoot       string
	graphDepth      int

	// Human output.
	format  string
	pretty  bool
	color   string
	profile bool
	tree    string
	depth   int

	// Exports.
	exportSQLite  string
	exportMermaid string
	exportDOT     string
	exportGraph   string
	exportMD      string
	copy          bool
	noHooks       bool

	// Baseline and drift.
	saveBaseline bool
	baselineDesc string
	baselinePath string
	baselineInfo bool
	checkDrift   bool

	watch bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("refgraph", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: refgraph [options]")
		fmt.Fprintln(stderr, "\nAnalyze a reference graph: cycles, deletion order, dependents and paths.")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.graph, "graph", "", "Graph file (.json, .jsonl, .yaml, .sqlite3) or directory to scan (default: current directory)")
	fs.StringVar(&opts.source, "source", "", "Named source from the config file")
	fs.StringVar(&opts.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/refgraph/config.yaml)")
	fs.StringVar(&opts.cpuProfile, "cpu-profile", "", "Write CPU profile to file")
	fs.BoolVar(&opts.debug, "debug", false, "Log debug output to stderr")
	fs.BoolVar(&opts.version, "version", false, "Show version")

	fs.BoolVar(&opts.robotCycles, "robot-cycles", false, "Output cycles as JSON")
	fs.BoolVar(&opts.robotOrder, "robot-order", false, "Output the deletion order (referrers first) as JSON")
	fs.BoolVar(&opts.robotDepOrder, "robot-dependency-order", false, "Output the dependency order (leaves first) as JSON")
	fs.StringVar(&opts.robotDependents, "robot-dependents", "", "Output direct and transitive dependents of LABEL as JSON")
	fs.StringVar(&opts.robotOrphans, "robot-orphans", "", "Output which of the comma-separated labels nothing references")
	fs.StringVar(&opts.robotPath, "robot-path", "", "Output the shortest reference path FROM:TO as JSON")
	fs.BoolVar(&opts.robotStats, "robot-stats", false, "Output graph statistics as JSON")
	fs.BoolVar(&opts.robotDiagnose, "robot-diagnostics", false, "Output findings (cycles, dangling references, high-impact nodes) as JSON")
	fs.StringVar(&opts.robotCheckRef, "robot-check-ref", "", "Check whether adding reference FROM:TO would create a cycle")
	fs.BoolVar(&opts.robotAll, "robot-all", false, "Output the full report as JSON")
	fs.BoolVar(&opts.robotGraph, "robot-graph", false, "Output the graph (see --graph-format, --graph-root, --graph-depth)")
	fs.BoolVar(&opts.robotSources, "robot-sources", false, "Output every graph source next to the loaded one and how they disagree")
	fs.StringVar(&opts.graphFormat, "graph-format", "json", "Graph output format: json, dot, mermaid")
	fs.StringVar(&opts.graphRoot, "graph-root", "", "Limit --robot-graph to what LABEL reaches")
	fs.IntVar(&opts.graphDepth, "graph-depth", 0, "Max hops from --graph-root (0 = unlimited)")

	fs.StringVar(&opts.format, "format", "", "Report format: text, json, markdown (default from config)")
	fs.BoolVar(&opts.pretty, "pretty", false, "Render the Markdown report in the terminal")
	fs.StringVar(&opts.color, "color", "", "Color: auto, always, never (default from config)")
	fs.BoolVar(&opts.profile, "profile", false, "Include analysis timings in the report")
	fs.StringVar(&opts.tree, "tree", "", "Print the dependency tree of LABEL")
	fs.IntVar(&opts.depth, "depth", 0, "Max depth for --tree (0 = unlimited)")

	fs.StringVar(&opts.exportSQLite, "export-sqlite", "", "Export graph and report to a SQLite database in DIR")
	fs.StringVar(&opts.exportMermaid, "export-mermaid", "", "Write a Mermaid diagram to FILE")
	fs.StringVar(&opts.exportDOT, "export-dot", "", "Write a Graphviz DOT file to FILE")
	fs.StringVar(&opts.exportGraph, "export-graph", "", "Render a graph snapshot to FILE (.svg or .png)")
	fs.StringVar(&opts.exportMD, "export-md", "", "Write a Markdown report to FILE")
	fs.BoolVar(&opts.copy, "copy", false, "Copy the Mermaid diagram to the clipboard")
	fs.BoolVar(&opts.noHooks, "no-hooks", false, "Skip hooks from .refgraph/hooks.yaml during export")

	fs.BoolVar(&opts.saveBaseline, "save-baseline", false, "Save the current graph health as the drift baseline")
	fs.StringVar(&opts.baselineDesc, "baseline-desc", "", "Description stored with --save-baseline")
	fs.StringVar(&opts.baselinePath, "baseline", "", "Baseline file (default: .refgraph/baseline.json next to the graph)")
	fs.BoolVar(&opts.baselineInfo, "baseline-info", false, "Describe the saved baseline")
	fs.BoolVar(&opts.checkDrift, "check-drift", false, "Compare against the baseline; exit 1 on critical drift, 2 on warnings")

	fs.BoolVar(&opts.watch, "watch", false, "Re-analyze when the graph changes")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}
	return opts, opts.validate()
}

// robotModes returns the names of the robot flags that are set.
func (o *options) robotModes() []string {
	var modes []string
	add := func(set bool, name string) {
		if set {
			modes = append(modes, name)
		}
	}
	add(o.robotCycles, "--robot-cycles")
	add(o.robotOrder, "--robot-order")
	add(o.robotDepOrder, "--robot-dependency-order")
	add(o.robotDependents != "", "--robot-dependents")
	add(o.robotOrphans != "", "--robot-orphans")
	add(o.robotPath != "", "--robot-path")
	add(o.robotStats, "--robot-stats")
	add(o.robotDiagnose, "--robot-diagnostics")
	add(o.robotCheckRef != "", "--robot-check-ref")
	add(o.robotAll, "--robot-all")
	add(o.robotGraph, "--robot-graph")
	add(o.robotSources, "--robot-sources")
	return modes
}

func (o *options) robot() bool { return len(o.robotModes()) > 0 }

func (o *options) exporting() bool {
	return o.exportSQLite != "" || o.exportMermaid != "" || o.exportDOT != "" ||
		o.exportGraph != "" || o.exportMD != "" || o.copy
}

// baselineModes returns the names of the baseline flags that are set.
func (o *options) baselineModes() []string {
	var modes []string
	if o.saveBaseline {
		modes = append(modes, "--save-baseline")
	}
	if o.baselineInfo {
		modes = append(modes, "--baseline-info")
	}
	if o.checkDrift {
		modes = append(modes, "--check-drift")
	}
	return modes
}

func (o *options) validate() error {
	if modes := o.robotModes(); len(modes) > 1 {
		return fmt.Errorf("%w: %s are mutually exclusive", errUsage, strings.Join(modes, ", "))
	}
	if modes := o.baselineModes(); len(modes) > 1 {
		return fmt.Errorf("%w: %s are mutually exclusive", errUsage, strings.Join(modes, ", "))
	} else if len(modes) == 1 && (o.robot() || o.watch) {
		return fmt.Errorf("%w: %s cannot be combined with robot output or --watch", errUsage, modes[0])
	}
	if o.graph != "" && o.source != "" {
		return fmt.Errorf("%w: --graph and --source are mutually exclusive", errUsage)
	}
	if o.watch && o.robot() {
		return fmt.Errorf("%w: --watch cannot be combined with robot output", errUsage)
	}
	for _, pair := range []struct{ flag, value string }{
		{"--robot-path", o.robotPath},
		{"--robot-check-ref", o.robotCheckRef},
	} {
		if pair.value == "" {
			continue
		}
		if _, _, err := splitPair(pair.value); err != nil {
			return fmt.Errorf("%w: %s: %v", errUsage, pair.flag, err)
		}
	}
	switch o.format {
	case "", config.FormatText, config.FormatJSON, config.FormatMarkdown:
	default:
		return fmt.Errorf("%w: unknown --format %q", errUsage, o.format)
	}
	switch o.color {
	case "", ui.ColorAuto, ui.ColorAlways, ui.ColorNever:
	default:
		return fmt.Errorf("%w: unknown --color %q", errUsage, o.color)
	}
	return nil
}

// splitPair parses FROM:TO. The last colon separates the labels so FROM
// may itself contain colons.
func splitPair(s string) (string, string, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return "", "", fmt.Errorf("want FROM:TO, got %q", s)
	}
	return s[:i], s[i+1:], nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	if opts.version {
		fmt.Fprintln(stdout, version.String())
		return exitOK
	}

	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Could not create CPU profile: %v\n", err)
			return exitError
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(stderr, "Could not start CPU profile: %v\n", err)
			return exitError
		}
		defer pprof.StopCPUProfile()
	}

	if opts.debug {
		debug.SetEnabled(true)
		debug.SetOutput(stderr)
	}
	if opts.robot() {
		_ = os.Setenv(loader.RobotEnvVar, "1")
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return exitError
	}
	applyOutputFlags(opts, &cfg)

	path, err := resolveGraphPath(opts, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	g, src, err := loadGraph(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading graph: %v\n", err)
		return exitError
	}
	debug.Log("loaded %s: %d nodes, %d references", src, g.Len(), g.EdgeCount())

	acfg := cfg.AnalysisConfig(g.Len(), g.EdgeCount())
	report, err := analysis.NewAnalyzer(g).AnalyzeWithConfig(ctx, acfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error analyzing graph: %v\n", err)
		return exitError
	}

	if len(opts.baselineModes()) > 0 {
		return runBaseline(stdout, stderr, opts, cfg, g, report, src)
	}

	if opts.robot() {
		if err := writeRobot(stdout, opts, cfg, g, report, src); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		return exitOK
	}

	if opts.exporting() {
		if err := runExports(ctx, opts, cfg, g, report, src, stderr); err != nil {
			fmt.Fprintf(stderr, "Error exporting: %v\n", err)
			return exitError
		}
		if !opts.watch {
			return exitOK
		}
	}

	if err := writeHuman(stdout, opts, cfg, g, report, src); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	if opts.watch {
		if err := runWatch(ctx, opts, cfg, g, report, src, stdout, stderr); err != nil {
			fmt.Fprintf(stderr, "Error watching: %v\n", err)
			return exitError
		}
	}
	return exitOK
}

// loadConfig reads --config when given, else the XDG config file. A missing
// default file yields defaults; an explicit path must exist.
func loadConfig(opts *options) (config.Config, error) {
	if opts.configPath != "" {
		if _, err := os.Stat(opts.configPath); err != nil {
			return config.Config{}, err
		}
		return config.LoadFrom(opts.configPath)
	}
	return config.Load()
}

func applyOutputFlags(opts *options, cfg *config.Config) {
	if opts.format != "" {
		cfg.Output.Format = opts.format
	}
	if opts.pretty {
		cfg.Output.Pretty = true
	}
	if opts.color != "" {
		cfg.Output.Color = opts.color
	}
}

func resolveGraphPath(opts *options, cfg config.Config) (string, error) {
	switch {
	case opts.graph != "":
		return opts.graph, nil
	case opts.source != "":
		src := cfg.FindSource(opts.source)
		if src == nil {
			return "", fmt.Errorf("no source named %q in config", opts.source)
		}
		return src.ResolvedPath(), nil
	case len(cfg.Sources) == 1:
		return cfg.Sources[0].ResolvedPath(), nil
	default:
		return ".", nil
	}
}

func loadGraph(path string) (*model.RefGraph, datasource.DataSource, error) {
	defer metrics.Timer(metrics.GraphLoad)()
	return datasource.Load(path)
}

// writeHuman prints the report in the configured format.
func writeHuman(w io.Writer, opts *options, cfg config.Config, g *model.RefGraph, report *analysis.Report, src datasource.DataSource) error {
	width := ui.DefaultWidth
	if f, ok := w.(*os.File); ok {
		width = ui.TerminalWidth(f)
	}
	theme := ui.DefaultTheme(ui.NewRenderer(w, cfg.Output.Color))

	if opts.tree != "" {
		if !g.Has(opts.tree) {
			return fmt.Errorf("no node labelled %q", opts.tree)
		}
		_, err := fmt.Fprint(w, ui.RenderDependencyTree(theme, ui.BuildDependencyTree(g, opts.tree, opts.depth)))
		return err
	}

	switch cfg.Output.Format {
	case config.FormatJSON:
		return writeRobotAll(w, cfg, g, report, src)

	case config.FormatMarkdown:
		mdOpts := markdownOptions(cfg, src)
		md, err := export.GenerateMarkdown(g, report, mdOpts)
		if err != nil {
			return err
		}
		if cfg.Output.Pretty {
			md, err = ui.RenderMarkdown(md, ui.MarkdownStyle(cfg.Output.Color), width)
			if err != nil {
				return err
			}
		}
		_, err = fmt.Fprint(w, md)
		return err

	default:
		if cfg.Output.Pretty {
			md, err := export.GenerateMarkdown(g, report, markdownOptions(cfg, src))
			if err != nil {
				return err
			}
			out, err := ui.RenderMarkdown(md, ui.MarkdownStyle(cfg.Output.Color), width)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(w, out)
			return err
		}
		_, err := fmt.Fprint(w, ui.RenderReport(theme, g, report, ui.ReportOptions{
			Source:      src.Path,
			Width:       width,
			TopN:        cfg.Output.TopN,
			Diagnostics: cfg.DiagnosticConfig(),
			Profile:     opts.profile,
		}))
		return err
	}
}

func markdownOptions(cfg config.Config, src datasource.DataSource) export.MarkdownOptions {
	mdOpts := export.DefaultMarkdownOptions()
	if src.Path != "" {
		mdOpts.Title = "Reference Graph Report: " + src.Path
	}
	mdOpts.TopN = cfg.Output.TopN
	mdOpts.Diagnostics = cfg.DiagnosticConfig()
	return mdOpts
}
