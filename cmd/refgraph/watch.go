package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vanderheijden86/refgraph/internal/datasource"
	"github.com/vanderheijden86/refgraph/pkg/analysis"
	"github.com/vanderheijden86/refgraph/pkg/config"
	"github.com/vanderheijden86/refgraph/pkg/debug"
	"github.com/vanderheijden86/refgraph/pkg/model"
	"github.com/vanderheijden86/refgraph/pkg/ui"
	"github.com/vanderheijden86/refgraph/pkg/watcher"
)

// watchTarget returns what to watch: the path given on the command line
// when it is a directory, else the file that was loaded.
func watchTarget(requested string, src datasource.DataSource) string {
	if info, err := os.Stat(requested); err == nil && info.IsDir() {
		return requested
	}
	return src.Path
}

// runWatch re-analyzes the graph whenever its source changes and prints what
// changed since the previous analysis. It returns when ctx is done.
func runWatch(ctx context.Context, opts *options, cfg config.Config, g *model.RefGraph, report *analysis.Report, src datasource.DataSource, stdout, stderr io.Writer) error {
	requested, err := resolveGraphPath(opts, cfg)
	if err != nil {
		return err
	}
	target := watchTarget(requested, src)

	cache := analysis.NewCache(cfg.Watch.CacheTTL)
	cache.Set(g, report)
	prev := analysis.NewSnapshot(g, report, src.Path)

	w, err := watcher.NewWatcher(target,
		watcher.WithDebounceDuration(cfg.Watch.Debounce),
		watcher.WithPollInterval(cfg.Watch.PollInterval),
		watcher.WithForcePoll(cfg.Watch.ForcePoll),
		watcher.WithFilter(func(name string) bool {
			_, _, ok := datasource.TypeForPath(name)
			return ok
		}),
		watcher.WithOnError(func(err error) {
			fmt.Fprintf(stderr, "Warning: watcher: %v\n", err)
		}),
	)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	mode := "fsnotify"
	if w.IsPolling() {
		mode = fmt.Sprintf("polling every %s", w.PollInterval())
	}
	fmt.Fprintf(stderr, "Watching %s (%s). Press Ctrl+C to stop.\n", target, mode)

	theme := ui.DefaultTheme(ui.NewRenderer(stdout, cfg.Output.Color))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Changed():
		}

		next, err := reanalyze(ctx, cache, cfg, requested)
		if err != nil {
			fmt.Fprintf(stderr, "Warning: reload failed: %v\n", err)
			continue
		}

		diff := analysis.CompareSnapshots(prev, next)
		prev = next
		if diff.IsEmpty() {
			debug.Log("watch: change without graph differences")
			continue
		}

		if cfg.Output.Format == config.FormatJSON {
			if err := encodeJSON(stdout, diff); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(stdout, "\n%s %s\n%s\n",
			theme.Label.Render(time.Now().Format("15:04:05")),
			theme.Number.Render(next.Source),
			ui.RenderDiff(theme, diff))
	}
}

// reanalyze reloads the source and returns a snapshot of its analysis,
// reusing the cached report when the graph did not change.
func reanalyze(ctx context.Context, cache *analysis.Cache, cfg config.Config, path string) (*analysis.Snapshot, error) {
	g, src, err := loadGraph(path)
	if err != nil {
		return nil, err
	}
	acfg := cfg.AnalysisConfig(g.Len(), g.EdgeCount())
	report, hit, err := cache.AnalyzeCached(ctx, g, &acfg)
	if err != nil {
		return nil, err
	}
	debug.Log("watch: reloaded %s (%d nodes, cache hit=%v)", src.Path, g.Len(), hit)
	return analysis.NewSnapshot(g, report, src.Path), nil
}
