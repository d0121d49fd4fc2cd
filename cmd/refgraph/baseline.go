package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/vanderheijden86/refgraph/internal/datasource"
	"github.com/vanderheijden86/refgraph/pkg/analysis"
	"github.com/vanderheijden86/refgraph/pkg/baseline"
	"github.com/vanderheijden86/refgraph/pkg/config"
	"github.com/vanderheijden86/refgraph/pkg/drift"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

// projectDir is the directory holding the graph source; .refgraph/ lives there.
func projectDir(src datasource.DataSource) string {
	if src.Path == "" {
		return "."
	}
	return filepath.Dir(src.Path)
}

func baselinePath(opts *options, src datasource.DataSource) string {
	if opts.baselinePath != "" {
		return opts.baselinePath
	}
	return baseline.DefaultPath(projectDir(src))
}

// runBaseline handles --save-baseline, --baseline-info and --check-drift.
// It returns the process exit code.
func runBaseline(stdout, stderr io.Writer, opts *options, cfg config.Config, g *model.RefGraph, report *analysis.Report, src datasource.DataSource) int {
	path := baselinePath(opts, src)

	switch {
	case opts.saveBaseline:
		bl := baseline.New(g, report, src.Path, opts.baselineDesc)
		if err := bl.Save(path); err != nil {
			fmt.Fprintf(stderr, "Error saving baseline: %v\n", err)
			return exitError
		}
		fmt.Fprintf(stdout, "Saved baseline to %s\n%s\n", path, bl.Summary())
		return exitOK

	case opts.baselineInfo:
		if !baseline.Exists(path) {
			fmt.Fprintf(stderr, "No baseline at %s. Create one with --save-baseline.\n", path)
			return exitError
		}
		bl, err := baseline.Load(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		fmt.Fprintln(stdout, bl.Summary())
		return exitOK
	}

	if !baseline.Exists(path) {
		fmt.Fprintf(stderr, "No baseline at %s. Create one with --save-baseline.\n", path)
		return exitError
	}
	bl, err := baseline.Load(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	driftCfg, err := drift.LoadConfig(projectDir(src))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	current := baseline.New(g, report, src.Path, "")
	result := drift.NewCalculator(bl, current, driftCfg).Calculate()

	if cfg.Output.Format == config.FormatJSON {
		out := struct {
			robotEnvelope
			Baseline string        `json:"baseline"`
			Result   *drift.Result `json:"result"`
		}{
			robotEnvelope: newEnvelope(g, src),
			Baseline:      path,
			Result:        result,
		}
		if err := encodeJSON(stdout, out); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
	} else {
		fmt.Fprint(stdout, result.Summary())
	}
	return result.ExitCode()
}
