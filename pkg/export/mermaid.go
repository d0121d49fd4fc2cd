package export

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/vanderheijden86/refgraph/pkg/analysis"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

// MermaidConfig configures the Mermaid graph generation.
type MermaidConfig struct {
	ShowNoDependenciesNode bool // If true, adds a "No References" node when no edges exist
	HideDangling           bool // If true, references to labels with no node are dropped
}

// GenerateMermaid renders g as a Mermaid flowchart. Nodes on a reported cycle
// are highlighted and the references that close a cycle are drawn bold.
// Output follows store order so the same graph always renders the same text.
func GenerateMermaid(g *model.RefGraph, cycles []analysis.Cycle, config MermaidConfig) string {
	var sb strings.Builder

	sb.WriteString("graph TD\n")

	sb.WriteString("    classDef node fill:#8BE9FD,stroke:#333,color:#000\n")
	sb.WriteString("    classDef cycle fill:#FF5555,stroke:#333,color:#fff\n")
	sb.WriteString("    classDef dangling fill:#44475A,stroke:#999,stroke-dasharray: 5 5,color:#fff\n")
	sb.WriteString("\n")

	ids := newSafeIDs()
	for _, label := range g.Labels() {
		ids.get(label)
	}
	var dangling []string
	if !config.HideDangling {
		for _, ref := range analysis.DanglingReferences(g) {
			if !ids.has(ref.To) {
				ids.get(ref.To)
				dangling = append(dangling, ref.To)
			}
		}
	}

	onCycle := make(map[string]bool)
	for _, c := range cycles {
		for _, label := range c.Nodes() {
			onCycle[label] = true
		}
	}

	for _, label := range g.Labels() {
		safeID := ids.get(label)
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", safeID, sanitizeMermaidText(label)))
		class := "node"
		if onCycle[label] {
			class = "cycle"
		}
		sb.WriteString(fmt.Sprintf("    class %s %s\n", safeID, class))
	}
	for _, label := range dangling {
		safeID := ids.get(label)
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", safeID, sanitizeMermaidText(label)))
		sb.WriteString(fmt.Sprintf("    class %s dangling\n", safeID))
	}

	sb.WriteString("\n")

	closing := cycleEdges(cycles)
	hasLinks := false
	for _, label := range g.Labels() {
		seen := make(map[string]bool)
		for _, dep := range g.Dependencies(label) {
			if seen[dep] {
				continue
			}
			seen[dep] = true

			linkStyle := "-->"
			switch {
			case !g.Has(dep):
				if config.HideDangling {
					continue
				}
				linkStyle = "-.->"
			case closing[model.Reference{From: label, To: dep}]:
				linkStyle = "==>"
			}

			sb.WriteString(fmt.Sprintf("    %s %s %s\n", ids.get(label), linkStyle, ids.get(dep)))
			hasLinks = true
		}
	}

	if config.ShowNoDependenciesNode && !hasLinks && g.Len() > 0 {
		sb.WriteString("    NoLinks[\"No References\"]\n")
	}

	return sb.String()
}

// cycleEdges returns the references walked by the given cycles.
func cycleEdges(cycles []analysis.Cycle) map[model.Reference]bool {
	edges := make(map[model.Reference]bool)
	for _, c := range cycles {
		for i := 0; i+1 < len(c); i++ {
			edges[model.Reference{From: c[i], To: c[i+1]}] = true
		}
	}
	return edges
}

// safeIDs hands out deterministic, collision-free Mermaid IDs.
type safeIDs struct {
	byLabel map[string]string
	used    map[string]bool
}

func newSafeIDs() *safeIDs {
	return &safeIDs{byLabel: make(map[string]string), used: make(map[string]bool)}
}

func (s *safeIDs) has(label string) bool {
	_, ok := s.byLabel[label]
	return ok
}

func (s *safeIDs) get(label string) string {
	if safe, ok := s.byLabel[label]; ok {
		return safe
	}
	base := sanitizeMermaidID(label)
	safe := base
	if s.used[safe] {
		// Collision: derive stable hash-based suffix
		h := fnv.New32a()
		_, _ = h.Write([]byte(label))
		safe = fmt.Sprintf("%s_%x", base, h.Sum32())
	}
	s.used[safe] = true
	s.byLabel[label] = safe
	return safe
}

// sanitizeMermaidID keeps letters, digits, dashes and underscores.
func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			sb.WriteRune(r)
		}
	}
	result := sb.String()
	if result == "" {
		return "node"
	}
	// Mermaid reserves a few bare words as keywords.
	switch strings.ToLower(result) {
	case "end", "graph", "subgraph", "class", "classdef", "style", "click":
		return "n_" + result
	}
	return result
}

// sanitizeMermaidText prepares text for use in Mermaid node labels.
// Removes/escapes characters that break Mermaid syntax.
func sanitizeMermaidText(text string) string {
	replacer := strings.NewReplacer(
		"\"", "'",
		"[", "(",
		"]", ")",
		"{", "(",
		"}", ")",
		"<", "&lt;",
		">", "&gt;",
		"|", "/",
		"`", "'",
		"\n", " ",
		"\r", "",
	)
	result := replacer.Replace(text)

	result = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, result)

	return strings.TrimSpace(result)
}
