// Package datasource discovers adjacency sources in a directory and loads the
// freshest valid one. Sources are adjacency files the loader understands and
// SQLite databases written by the exporter.
package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeSQLite is a database written by the SQLite exporter
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeJSON is a JSON adjacency object
	SourceTypeJSON SourceType = "json"
	// SourceTypeJSONL is one node record per line
	SourceTypeJSONL SourceType = "jsonl"
	// SourceTypeYAML is a YAML adjacency mapping
	SourceTypeYAML SourceType = "yaml"
)

// Priority values for source types (higher = more authoritative)
const (
	PrioritySQLite = 100
	PriorityJSON   = 80
	PriorityYAML   = 70
	PriorityJSONL  = 50
)

// DataSource represents a potential source of graph data
type DataSource struct {
	// Type identifies the source type
	Type SourceType `json:"type"`
	// Path is the path to the source file
	Path string `json:"path"`
	// Priority determines preference when timestamps are equal (higher = preferred)
	Priority int `json:"priority"`
	// ModTime is the last modification time of the source
	ModTime time.Time `json:"mod_time"`
	// Valid indicates whether the source passed validation
	Valid bool `json:"valid"`
	// ValidationError describes why validation failed (if Valid is false)
	ValidationError string `json:"validation_error,omitempty"`
	// NodeCount is the number of nodes in the source (set during validation)
	NodeCount int `json:"node_count"`
	// Size is the file size in bytes
	Size int64 `json:"size"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, nodes=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.NodeCount, status)
}

// TypeForPath classifies a file by extension. ok is false for files that are
// not graph sources.
func TypeForPath(path string) (t SourceType, priority int, ok bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sqlite3", ".sqlite", ".db":
		return SourceTypeSQLite, PrioritySQLite, true
	case ".json":
		return SourceTypeJSON, PriorityJSON, true
	case ".yaml", ".yml":
		return SourceTypeYAML, PriorityYAML, true
	case ".jsonl", ".ndjson":
		return SourceTypeJSONL, PriorityJSONL, true
	default:
		return "", 0, false
	}
}

// NewDataSource describes a single file as a source.
func NewDataSource(path string) (DataSource, error) {
	t, priority, ok := TypeForPath(path)
	if !ok {
		return DataSource{}, fmt.Errorf("%s: not a graph source", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return DataSource{}, err
	}
	if info.IsDir() {
		return DataSource{}, fmt.Errorf("%s: is a directory", path)
	}
	return DataSource{
		Type:     t,
		Path:     path,
		Priority: priority,
		ModTime:  info.ModTime(),
		Size:     info.Size(),
	}, nil
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// Dir is the directory to scan (uses cwd if empty)
	Dir string
	// ValidateAfterDiscovery runs validation on each discovered source
	ValidateAfterDiscovery bool
	// IncludeInvalid includes sources that failed validation in results
	IncludeInvalid bool
	// Verbose enables detailed logging during discovery
	Verbose bool
	// Logger receives log messages when Verbose is true
	Logger func(msg string)
}

// DiscoverSources finds all potential graph sources in a directory, freshest
// first.
func DiscoverSources(opts DiscoveryOptions) ([]DataSource, error) {
	if opts.Logger == nil {
		opts.Logger = func(string) {}
	}

	dir := opts.Dir
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	if opts.Verbose {
		opts.Logger(fmt.Sprintf("Discovering sources in: %s", dir))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}

	var sources []DataSource
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if skipName(name) {
			continue
		}
		t, priority, ok := TypeForPath(name)
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(dir, name)
		sources = append(sources, DataSource{
			Type:     t,
			Path:     path,
			Priority: priority,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
		if opts.Verbose {
			opts.Logger(fmt.Sprintf("Found %s: %s (mod=%s)", t, path, info.ModTime().Format(time.RFC3339)))
		}
	}

	if opts.ValidateAfterDiscovery {
		for i := range sources {
			if err := ValidateSource(&sources[i]); err != nil && opts.Verbose {
				opts.Logger(fmt.Sprintf("Validation failed for %s: %v", sources[i].Path, err))
			}
		}
	}

	if opts.ValidateAfterDiscovery && !opts.IncludeInvalid {
		var validSources []DataSource
		for _, s := range sources {
			if s.Valid {
				validSources = append(validSources, s)
			}
		}
		sources = validSources
	}

	sortSources(sources)

	if opts.Verbose {
		opts.Logger(fmt.Sprintf("Discovered %d sources", len(sources)))
	}

	return sources, nil
}

// skipName drops editor leftovers, backups and hidden files.
func skipName(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, "~") ||
		strings.Contains(name, ".backup") ||
		strings.Contains(name, ".orig") ||
		strings.HasSuffix(name, "-wal") ||
		strings.HasSuffix(name, "-shm") ||
		strings.HasSuffix(name, "-journal")
}

// sortSources orders by mod time, newest first, then by priority.
func sortSources(sources []DataSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
}
