// Package model defines the reference graph that every analysis operates on.
//
// A RefGraph maps a node label (the name of a content entity such as a skill)
// to the ordered list of labels it references. Labels that appear only as
// references are "dangling": they are legal and are treated as leaves.
package model

import (
	"errors"
	"fmt"
	"sort"
)

// Errors returned when building a graph from malformed input.
var (
	ErrEmptyLabel      = errors.New("empty label")
	ErrDuplicateLabel  = errors.New("duplicate label")
	ErrNilDependencies = errors.New("nil dependency list")
)

// RefGraph is an immutable directed adjacency structure.
// Node labels keep their insertion order so traversals are deterministic.
type RefGraph struct {
	labels []string
	deps   map[string][]string
}

// Reference is a single directed edge: From lists To as a dependency.
type Reference struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Labels returns the node labels in insertion order.
func (g *RefGraph) Labels() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.labels...)
}

// Len returns the number of nodes (keys) in the graph.
func (g *RefGraph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.labels)
}

// Has reports whether label is a node of the graph.
// Dangling reference targets are not nodes.
func (g *RefGraph) Has(label string) bool {
	if g == nil {
		return false
	}
	_, ok := g.deps[label]
	return ok
}

// Dependencies returns a copy of the dependency list of label, duplicates included.
// Unknown labels have no dependencies.
func (g *RefGraph) Dependencies(label string) []string {
	if g == nil {
		return nil
	}
	deps := g.deps[label]
	if len(deps) == 0 {
		return nil
	}
	return append([]string(nil), deps...)
}

// EachDependency calls fn for every dependency of label in order without copying.
// fn must not retain or modify the graph.
func (g *RefGraph) EachDependency(label string, fn func(dep string)) {
	if g == nil {
		return
	}
	for _, dep := range g.deps[label] {
		fn(dep)
	}
}

// OutDegree returns the length of label's dependency list.
func (g *RefGraph) OutDegree(label string) int {
	if g == nil {
		return 0
	}
	return len(g.deps[label])
}

// EdgeCount returns the sum of all dependency list lengths.
func (g *RefGraph) EdgeCount() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, label := range g.labels {
		n += len(g.deps[label])
	}
	return n
}

// References returns every edge in store order.
func (g *RefGraph) References() []Reference {
	if g == nil {
		return nil
	}
	refs := make([]Reference, 0, g.EdgeCount())
	for _, label := range g.labels {
		for _, dep := range g.deps[label] {
			refs = append(refs, Reference{From: label, To: dep})
		}
	}
	return refs
}

// ToMap returns a deep copy of the adjacency as a plain map.
func (g *RefGraph) ToMap() map[string][]string {
	if g == nil {
		return nil
	}
	m := make(map[string][]string, len(g.labels))
	for _, label := range g.labels {
		m[label] = append([]string{}, g.deps[label]...)
	}
	return m
}

// Builder accumulates nodes for a RefGraph.
// The first error is sticky and reported by Build.
type Builder struct {
	labels []string
	deps   map[string][]string
	err    error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{deps: make(map[string][]string)}
}

// Add appends a node with its dependency list.
func (b *Builder) Add(label string, deps ...string) *Builder {
	if b.err != nil {
		return b
	}
	if label == "" {
		b.err = fmt.Errorf("node %d: %w", len(b.labels), ErrEmptyLabel)
		return b
	}
	if _, exists := b.deps[label]; exists {
		b.err = fmt.Errorf("node %q: %w", label, ErrDuplicateLabel)
		return b
	}
	for i, dep := range deps {
		if dep == "" {
			b.err = fmt.Errorf("node %q dependency %d: %w", label, i, ErrEmptyLabel)
			return b
		}
	}
	b.labels = append(b.labels, label)
	b.deps[label] = append([]string{}, deps...)
	return b
}

// Fail records an external validation error (e.g. a null list found by a loader).
func (b *Builder) Fail(err error) *Builder {
	if b.err == nil && err != nil {
		b.err = err
	}
	return b
}

// Build returns the finished graph or the first construction error.
func (b *Builder) Build() (*RefGraph, error) {
	if b.err != nil {
		return nil, b.err
	}
	g := &RefGraph{
		labels: b.labels,
		deps:   b.deps,
	}
	b.labels = nil
	b.deps = make(map[string][]string)
	return g, nil
}

// FromMap builds a graph from a plain map. Keys are sorted so the result does
// not depend on map iteration order. A nil list is rejected.
func FromMap(m map[string][]string) (*RefGraph, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := NewBuilder()
	for _, k := range keys {
		if m[k] == nil {
			b.Fail(fmt.Errorf("node %q: %w", k, ErrNilDependencies))
			break
		}
		b.Add(k, m[k]...)
	}
	return b.Build()
}

// MustFromMap is FromMap for fixtures; it panics on malformed input.
func MustFromMap(m map[string][]string) *RefGraph {
	g, err := FromMap(m)
	if err != nil {
		panic(err)
	}
	return g
}
