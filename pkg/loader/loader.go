// Package loader reads adjacency files into a model.RefGraph.
//
// Supported formats:
//
//	JSON   {"skill_a": ["skill_b"], "skill_b": []}  or  {"nodes": {...}}
//	JSONL  {"name": "skill_a", "refs": ["skill_b"]}  one node per line
//	YAML   skill_a: [skill_b]                        or  nodes: {...}
//
// Node order follows the file so analyses are reproducible.
package loader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/refgraph/pkg/debug"
	"github.com/vanderheijden86/refgraph/pkg/metrics"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

// Errors returned for input that cannot become a graph.
var (
	ErrUnsupportedFormat = errors.New("unsupported graph format")
	ErrMalformed         = errors.New("malformed graph")
)

// RobotEnvVar suppresses the default stderr warnings when set to "1".
const RobotEnvVar = "REFGRAPH_ROBOT"

// Format identifies an adjacency file encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// DetectFormat picks a format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}

// DefaultMaxBufferSize is the default buffer size for JSONL lines (10MB).
const DefaultMaxBufferSize = 1024 * 1024 * 10

// ParseOptions configures parsing.
type ParseOptions struct {
	// WarningHandler is called with warning messages (e.g., malformed JSONL lines).
	// If nil, warnings are printed to os.Stderr unless REFGRAPH_ROBOT=1.
	WarningHandler func(string)

	// BufferSize sets the maximum JSONL line size in bytes.
	// Longer lines are skipped with a warning. 0 uses DefaultMaxBufferSize.
	BufferSize int

	// Strict turns skipped JSONL lines into errors.
	Strict bool
}

func (o ParseOptions) warn() func(string) {
	if o.WarningHandler != nil {
		return o.WarningHandler
	}
	if os.Getenv(RobotEnvVar) == "1" {
		return func(string) {}
	}
	return func(msg string) {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
	}
}

// LoadFile reads a graph from path, choosing the format by extension.
func LoadFile(path string) (*model.RefGraph, error) {
	return LoadFileWithOptions(path, ParseOptions{})
}

// LoadFileWithOptions reads a graph from path with custom options.
func LoadFileWithOptions(path string, opts ParseOptions) (*model.RefGraph, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph file: %w", err)
	}
	defer file.Close()

	g, err := Parse(file, format, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Parse reads a graph in the given format.
func Parse(r io.Reader, format Format, opts ParseOptions) (*model.RefGraph, error) {
	defer metrics.Timer(metrics.GraphLoad)()
	defer debug.LogEnterExit("loader.Parse(" + string(format) + ")")()

	switch format {
	case FormatJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("error reading graph: %w", err)
		}
		return ParseJSON(data)
	case FormatJSONL:
		return ParseJSONL(r, opts)
	case FormatYAML:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("error reading graph: %w", err)
		}
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("format %q: %w", format, ErrUnsupportedFormat)
	}
}

// ParseJSON parses a {label: [deps]} object, optionally wrapped as {"nodes": {...}}.
func ParseJSON(data []byte) (*model.RefGraph, error) {
	data = bytes.TrimSpace(stripBOM(data))
	b := model.NewBuilder()
	if err := decodeJSONObject(data, b, true); err != nil {
		return nil, err
	}
	return b.Build()
}

// decodeJSONObject walks an object with a token decoder so key order survives.
func decodeJSONObject(data []byte, b *model.Builder, allowWrapper bool) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: top level must be an object", ErrMalformed)
	}

	first := true
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		label, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%w: node %q: %v", ErrMalformed, label, err)
		}
		raw = bytes.TrimSpace(raw)

		if allowWrapper && first && label == "nodes" && len(raw) > 0 && raw[0] == '{' && !dec.More() {
			if err := decodeJSONObject(raw, b, false); err != nil {
				return err
			}
			break
		}
		first = false

		deps, err := jsonDeps(label, raw)
		if err != nil {
			b.Fail(err)
			return err
		}
		b.Add(label, deps...)
	}
	return endJSONObject(dec, data)
}

// endJSONObject consumes the closing brace and requires nothing after it, so
// a truncated or concatenated file is rejected instead of loading partially.
func endJSONObject(dec *json.Decoder, data []byte) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: unterminated object: %v", ErrMalformed, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '}' {
		return fmt.Errorf("%w: unterminated object", ErrMalformed)
	}
	if off := dec.InputOffset(); off < int64(len(data)) && len(bytes.TrimSpace(data[off:])) > 0 {
		return fmt.Errorf("%w: trailing data at offset %d", ErrMalformed, off)
	}
	return nil
}

func jsonDeps(label string, raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("node %q: %w", label, model.ErrNilDependencies)
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: node %q: dependencies must be a list", ErrMalformed, label)
	}
	deps := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: node %q dependency %d: expected string, got %T", ErrMalformed, label, i, item)
		}
		deps[i] = s
	}
	return deps, nil
}

// jsonlRecord is one JSONL line.
type jsonlRecord struct {
	Name *string          `json:"name"`
	Refs *json.RawMessage `json:"refs"`
}

// ParseJSONL parses one {"name", "refs"} record per line. Lines that are not
// valid JSON are skipped with a warning (a file being rewritten may be read
// half-written); records with a missing name or a null refs list are errors.
func ParseJSONL(r io.Reader, opts ParseOptions) (*model.RefGraph, error) {
	maxCapacity := opts.BufferSize
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxBufferSize
	}
	reader := bufio.NewReaderSize(r, maxCapacity)
	warn := opts.warn()

	b := model.NewBuilder()
	lineNum := 0
	for {
		lineNum++
		// ReadLine returns a single line without the end-of-line bytes.
		// isPrefix is set when the line did not fit in the buffer.
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading graph stream at line %d: %w", lineNum, err)
		}

		if isPrefix {
			msg := fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity)
			if opts.Strict {
				return nil, fmt.Errorf("%w: %s", ErrMalformed, msg)
			}
			warn(msg)
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err == io.EOF {
					break
				}
				if err != nil {
					return nil, fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)
				}
			}
			continue
		}

		if lineNum == 1 {
			line = stripBOM(line)
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var rec jsonlRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			msg := fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err)
			if opts.Strict {
				return nil, fmt.Errorf("%w: %s", ErrMalformed, msg)
			}
			warn(msg)
			continue
		}
		if rec.Name == nil {
			return nil, fmt.Errorf("%w: line %d: missing name", ErrMalformed, lineNum)
		}
		if rec.Refs == nil {
			return nil, fmt.Errorf("line %d: node %q: %w", lineNum, *rec.Name, model.ErrNilDependencies)
		}
		deps, err := jsonDeps(*rec.Name, *rec.Refs)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		b.Add(*rec.Name, deps...)
	}

	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	debug.Log("loader: %d nodes from %d JSONL lines", g.Len(), lineNum-1)
	return g, nil
}

// ParseYAML parses a YAML mapping of label to sequence, optionally wrapped
// as nodes: {...}. Keys must be strings; mapping order is kept.
func ParseYAML(data []byte) (*model.RefGraph, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(stripBOM(data), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	b := model.NewBuilder()
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return b.Build() // empty document
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: top level must be a mapping", ErrMalformed, root.Line)
	}
	if len(root.Content) == 2 && root.Content[0].Value == "nodes" && root.Content[1].Kind == yaml.MappingNode {
		root = root.Content[1]
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode || key.ShortTag() != "!!str" {
			return nil, fmt.Errorf("%w: line %d: label %q must be a string", ErrMalformed, key.Line, key.Value)
		}
		label := key.Value

		switch {
		case val.Kind == yaml.ScalarNode && val.ShortTag() == "!!null":
			return nil, fmt.Errorf("line %d: node %q: %w", val.Line, label, model.ErrNilDependencies)
		case val.Kind != yaml.SequenceNode:
			return nil, fmt.Errorf("%w: line %d: node %q: dependencies must be a list", ErrMalformed, val.Line, label)
		}

		deps := make([]string, 0, len(val.Content))
		for j, item := range val.Content {
			if item.Kind != yaml.ScalarNode || item.ShortTag() != "!!str" {
				return nil, fmt.Errorf("%w: line %d: node %q dependency %d must be a string", ErrMalformed, item.Line, label, j)
			}
			deps = append(deps, item.Value)
		}
		b.Add(label, deps...)
	}
	return b.Build()
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
