// Package testutil provides test fixture generators for various graph topologies.
// All generators produce deterministic output for reproducible tests.
package testutil

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/refgraph/pkg/model"
)

// GraphFixture represents an abstract graph for testing graph algorithms.
// Edges are index pairs: [i, j] means Nodes[i] lists Nodes[j] as a dependency.
type GraphFixture struct {
	Description string     `json:"description"`
	Nodes       []string   `json:"nodes"`
	Edges       [][2]int   `json:"edges"`
	Dangling    []Dangling `json:"dangling,omitempty"`
	Properties  Properties `json:"properties,omitempty"`
}

// Dangling is a reference from Nodes[From] to a label that has no node.
type Dangling struct {
	From int    `json:"from"`
	To   string `json:"to"`
}

// Properties holds optional metadata about the fixture.
type Properties struct {
	HasCycles   bool `json:"has_cycles,omitempty"`
	IsConnected bool `json:"is_connected,omitempty"`
}

// Adjacency converts the fixture into the label -> dependencies form.
// Every node gets a (possibly empty) list.
func (gf GraphFixture) Adjacency() map[string][]string {
	adj := make(map[string][]string, len(gf.Nodes))
	for _, n := range gf.Nodes {
		adj[n] = []string{}
	}
	for _, e := range gf.Edges {
		from := gf.Nodes[e[0]]
		adj[from] = append(adj[from], gf.Nodes[e[1]])
	}
	for _, d := range gf.Dangling {
		from := gf.Nodes[d.From]
		adj[from] = append(adj[from], d.To)
	}
	return adj
}

// Graph builds a RefGraph keeping the fixture's node order.
func (gf GraphFixture) Graph() *model.RefGraph {
	adj := gf.Adjacency()
	b := model.NewBuilder()
	for _, n := range gf.Nodes {
		b.Add(n, adj[n]...)
	}
	g, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("testutil: invalid fixture %q: %v", gf.Description, err))
	}
	return g
}

// WriteJSON writes the fixture's adjacency as a {label: [deps]} JSON file
// under dir and returns its path.
func (gf GraphFixture) WriteJSON(dir, name string) (string, error) {
	data, err := json.MarshalIndent(gf.Adjacency(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal fixture: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write fixture: %w", err)
	}
	return path, nil
}

// GeneratorConfig controls random generation.
type GeneratorConfig struct {
	Seed   int64  // Random seed for determinism (0 = use current time)
	Prefix string // Prefix for generated labels (default: "n")
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:   42, // Deterministic
		Prefix: "n",
	}
}

// Generator creates test fixtures with various topologies.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "n"
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

func (g *Generator) label(i int) string {
	return fmt.Sprintf("%s%d", g.cfg.Prefix, i)
}

// ============================================================================
// Graph Topology Generators
// ============================================================================

// Chain creates a linear chain: n0 -> n1 -> ... -> n{size-1}
// n0 references n1, n1 references n2, and so on; the last node is a leaf.
// Properties: DAG, single path
func (g *Generator) Chain(size int) GraphFixture {
	nodes := make([]string, size)
	edges := make([][2]int, 0, size)
	for i := 0; i < size; i++ {
		nodes[i] = g.label(i)
		if i+1 < size {
			edges = append(edges, [2]int{i, i + 1})
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Linear chain of %d nodes", size),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true},
	}
}

// Star creates a star topology where every spoke references the hub.
// Properties: DAG, hub has in-degree = spokes
func (g *Generator) Star(spokes int) GraphFixture {
	nodes := make([]string, spokes+1)
	edges := make([][2]int, spokes)
	nodes[0] = "hub"
	for i := 1; i <= spokes; i++ {
		nodes[i] = fmt.Sprintf("spoke%d", i)
		edges[i-1] = [2]int{i, 0}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Star with hub and %d spokes; spokes reference hub", spokes),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true},
	}
}

// ReverseStar creates a star where the hub references every spoke.
func (g *Generator) ReverseStar(spokes int) GraphFixture {
	nodes := make([]string, spokes+1)
	edges := make([][2]int, spokes)
	nodes[0] = "hub"
	for i := 1; i <= spokes; i++ {
		nodes[i] = fmt.Sprintf("spoke%d", i)
		edges[i-1] = [2]int{0, i}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Reverse star with hub referencing %d spokes", spokes),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true},
	}
}

// Diamond creates top -> mid1..midN -> bottom.
func (g *Generator) Diamond(width int) GraphFixture {
	if width < 1 {
		width = 1
	}
	size := width + 2
	nodes := make([]string, size)
	edges := make([][2]int, 0, width*2)
	nodes[0] = "top"
	nodes[size-1] = "bottom"
	for i := 1; i <= width; i++ {
		nodes[i] = fmt.Sprintf("mid%d", i)
		edges = append(edges, [2]int{0, i}, [2]int{i, size - 1})
	}
	return GraphFixture{
		Description: fmt.Sprintf("Diamond with %d middle nodes", width),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true},
	}
}

// Cycle creates a ring: n0 -> n1 -> ... -> n{size-1} -> n0
func (g *Generator) Cycle(size int) GraphFixture {
	nodes := make([]string, size)
	edges := make([][2]int, size)
	for i := 0; i < size; i++ {
		nodes[i] = g.label(i)
		edges[i] = [2]int{i, (i + 1) % size}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Cycle of %d nodes", size),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{HasCycles: true, IsConnected: true},
	}
}

// SelfLoop creates a single node that references itself.
func (g *Generator) SelfLoop() GraphFixture {
	return GraphFixture{
		Description: "Single node with self-loop",
		Nodes:       []string{g.label(0)},
		Edges:       [][2]int{{0, 0}},
		Properties:  Properties{HasCycles: true, IsConnected: true},
	}
}

// Tree creates a tree with given depth and branching factor; parents
// reference their children.
func (g *Generator) Tree(depth, breadth int) GraphFixture {
	if depth < 1 {
		depth = 1
	}
	if breadth < 1 {
		breadth = 1
	}
	nodes := []string{g.label(0)}
	var edges [][2]int
	current := []int{0}
	for d := 0; d < depth; d++ {
		var next []int
		for _, parent := range current {
			for b := 0; b < breadth; b++ {
				child := len(nodes)
				nodes = append(nodes, g.label(child))
				edges = append(edges, [2]int{parent, child})
				next = append(next, child)
			}
		}
		current = next
	}
	return GraphFixture{
		Description: fmt.Sprintf("Tree with depth=%d, breadth=%d (%d nodes)", depth, breadth, len(nodes)),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true},
	}
}

// Disconnected creates isolated chains of componentSize nodes.
func (g *Generator) Disconnected(components, componentSize int) GraphFixture {
	var nodes []string
	var edges [][2]int
	for c := 0; c < components; c++ {
		for i := 0; i < componentSize; i++ {
			nodes = append(nodes, fmt.Sprintf("c%d_n%d", c, i))
			if i > 0 {
				edges = append(edges, [2]int{len(nodes) - 2, len(nodes) - 1})
			}
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("%d disconnected chains of %d nodes", components, componentSize),
		Nodes:       nodes,
		Edges:       edges,
	}
}

// Complete creates a complete DAG where every earlier node references every
// later node: n*(n-1)/2 edges.
func (g *Generator) Complete(size int) GraphFixture {
	nodes := make([]string, size)
	edges := make([][2]int, 0, size*(size-1)/2)
	for i := 0; i < size; i++ {
		nodes[i] = g.label(i)
		for j := i + 1; j < size; j++ {
			edges = append(edges, [2]int{i, j})
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Complete DAG of %d nodes", size),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: size > 0},
	}
}

// WithDangling appends a reference from node 0 to a label that has no node.
func (g *Generator) WithDangling(gf GraphFixture, missing string) GraphFixture {
	if len(gf.Nodes) == 0 {
		return gf
	}
	gf.Dangling = append(gf.Dangling, Dangling{From: 0, To: missing})
	gf.Description += fmt.Sprintf(" plus dangling reference to %s", missing)
	return gf
}

// Random creates a random graph where each ordered pair (i, j), i != j, is an
// edge with probability p. When acyclic is set only i < j pairs are used.
func (g *Generator) Random(size int, p float64, acyclic bool) GraphFixture {
	nodes := make([]string, size)
	var edges [][2]int
	for i := 0; i < size; i++ {
		nodes[i] = g.label(i)
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if i == j || (acyclic && j < i) {
				continue
			}
			if g.rng.Float64() < p {
				edges = append(edges, [2]int{i, j})
			}
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Random graph n=%d p=%.2f acyclic=%v", size, p, acyclic),
		Nodes:       nodes,
		Edges:       edges,
	}
}
