package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/refgraph/internal/datasource"
	"github.com/vanderheijden86/refgraph/pkg/analysis"
	"github.com/vanderheijden86/refgraph/pkg/config"
	"github.com/vanderheijden86/refgraph/pkg/export"
	"github.com/vanderheijden86/refgraph/pkg/hooks"
	"github.com/vanderheijden86/refgraph/pkg/model"
	"github.com/vanderheijden86/refgraph/pkg/version"
)

// clipboardWrite is swapped out in tests.
var clipboardWrite = clipboard.WriteAll

// exportTargets lists the requested file exports as format names and paths.
func (o *options) exportTargets() (formats, paths []string) {
	for _, t := range []struct{ format, path string }{
		{"sqlite", o.exportSQLite},
		{"mermaid", o.exportMermaid},
		{"dot", o.exportDOT},
		{"graph", o.exportGraph},
		{"markdown", o.exportMD},
	} {
		if t.path != "" {
			formats = append(formats, t.format)
			paths = append(paths, t.path)
		}
	}
	return formats, paths
}

// runExports runs the pre-export hooks, writes every requested export and
// then runs the post-export hooks.
func runExports(ctx context.Context, opts *options, cfg config.Config, g *model.RefGraph, report *analysis.Report, src datasource.DataSource, stderr io.Writer) error {
	formats, paths := opts.exportTargets()
	if len(paths) == 0 {
		return writeExports(ctx, opts, cfg, g, report, src, stderr)
	}

	executor, err := hooks.RunHooks(projectDir(src), hooks.ExportContext{
		ExportPath:   paths[0],
		ExportFormat: strings.Join(formats, ","),
		NodeCount:    g.Len(),
		CycleCount:   len(report.Cycles),
		GraphSource:  src.Path,
		Timestamp:    time.Now(),
	}, opts.noHooks)
	if err != nil {
		return fmt.Errorf("loading hooks: %w", err)
	}
	if executor == nil {
		return writeExports(ctx, opts, cfg, g, report, src, stderr)
	}

	if err := executor.RunPreExport(); err != nil {
		fmt.Fprint(stderr, executor.Summary())
		return err
	}
	if err := writeExports(ctx, opts, cfg, g, report, src, stderr); err != nil {
		return err
	}
	postErr := executor.RunPostExport()
	fmt.Fprint(stderr, executor.Summary())
	return postErr
}

// writeExports writes every requested export. Exports only read g and report,
// so they run concurrently; the first failure is returned.
func writeExports(ctx context.Context, opts *options, cfg config.Config, g *model.RefGraph, report *analysis.Report, src datasource.DataSource, stderr io.Writer) error {
	var mu sync.Mutex
	done := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(stderr, format+"\n", args...)
	}

	hash := analysis.ComputeGraphHash(g)
	eg, ctx := errgroup.WithContext(ctx)

	if opts.exportSQLite != "" {
		eg.Go(func() error {
			exp := export.NewSQLiteExporter(g, report)
			exp.SetVersion(version.Version)
			exp.Config.Title = src.Path
			path, err := exp.Export(opts.exportSQLite)
			if err != nil {
				return fmt.Errorf("sqlite: %w", err)
			}
			done("Exported SQLite database to %s (run %s)", path, exp.RunID())
			return nil
		})
	}

	if opts.exportMermaid != "" {
		eg.Go(func() error {
			diagram := export.GenerateMermaid(g, report.Cycles, export.MermaidConfig{ShowNoDependenciesNode: true})
			if err := os.WriteFile(opts.exportMermaid, []byte(diagram), 0o644); err != nil {
				return fmt.Errorf("mermaid: %w", err)
			}
			done("Exported Mermaid diagram to %s", opts.exportMermaid)
			return nil
		})
	}

	if opts.exportDOT != "" {
		eg.Go(func() error {
			out, err := export.GenerateDOT(g, report.Cycles, "refgraph")
			if err != nil {
				return fmt.Errorf("dot: %w", err)
			}
			if err := os.WriteFile(opts.exportDOT, []byte(out), 0o644); err != nil {
				return fmt.Errorf("dot: %w", err)
			}
			done("Exported DOT graph to %s", opts.exportDOT)
			return nil
		})
	}

	if opts.exportGraph != "" {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			title := "Reference graph"
			if src.Path != "" {
				title = src.Path
			}
			err := export.SaveGraphSnapshot(export.GraphSnapshotOptions{
				Path:     opts.exportGraph,
				Title:    title,
				Graph:    g,
				Report:   report,
				DataHash: hash,
			})
			if err != nil {
				return fmt.Errorf("graph snapshot: %w", err)
			}
			done("Exported graph snapshot to %s", opts.exportGraph)
			return nil
		})
	}

	if opts.exportMD != "" {
		eg.Go(func() error {
			if err := export.SaveMarkdownToFile(g, report, markdownOptions(cfg, src), opts.exportMD); err != nil {
				return fmt.Errorf("markdown: %w", err)
			}
			done("Exported Markdown report to %s", opts.exportMD)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}

	if opts.copy {
		diagram := export.GenerateMermaid(g, report.Cycles, export.MermaidConfig{ShowNoDependenciesNode: true})
		if err := clipboardWrite(diagram); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		done("Copied Mermaid diagram to clipboard")
	}
	return nil
}
