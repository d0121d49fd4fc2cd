package datasource

import (
	"fmt"
	"os"

	"github.com/vanderheijden86/refgraph/pkg/debug"
	"github.com/vanderheijden86/refgraph/pkg/loader"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

// Load reads a graph from path. A file is loaded by its extension; a
// directory is scanned and its freshest valid source is loaded.
func Load(path string) (*model.RefGraph, DataSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, DataSource{}, err
	}
	if info.IsDir() {
		return LoadFromDir(path)
	}

	source, err := NewDataSource(path)
	if err != nil {
		return nil, DataSource{}, err
	}
	g, err := LoadFromSource(source)
	if err != nil {
		return nil, source, err
	}
	source.Valid = true
	source.NodeCount = g.Len()
	return g, source, nil
}

// LoadFromDir discovers sources in dir and loads the best one.
func LoadFromDir(dir string) (*model.RefGraph, DataSource, error) {
	sources, err := DiscoverSources(DiscoveryOptions{
		Dir:                    dir,
		ValidateAfterDiscovery: true,
		Verbose:                debug.Enabled(),
		Logger:                 func(msg string) { debug.Log("%s", msg) },
	})
	if err != nil {
		return nil, DataSource{}, err
	}

	best, err := SelectBestSource(sources)
	if err != nil {
		return nil, DataSource{}, fmt.Errorf("%s: %w", dir, err)
	}
	debug.Log("datasource: selected %s", best)

	g, err := LoadFromSource(best)
	if err != nil {
		return nil, best, err
	}
	return g, best, nil
}

// LoadFromSource loads a graph from a specific DataSource, dispatching to the
// appropriate reader based on source type.
func LoadFromSource(source DataSource) (*model.RefGraph, error) {
	switch source.Type {
	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite source %s: %w", source.Path, err)
		}
		defer reader.Close()
		g, err := reader.LoadGraph()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source.Path, err)
		}
		return g, nil

	case SourceTypeJSON, SourceTypeJSONL, SourceTypeYAML:
		return loader.LoadFile(source.Path)

	default:
		return nil, fmt.Errorf("unknown source type: %s", source.Type)
	}
}
