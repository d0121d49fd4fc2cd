package analysis

import (
	"github.com/vanderheijden86/refgraph/pkg/metrics"
	"github.com/vanderheijden86/refgraph/pkg/model"
)

// OrderPlan is the outcome of an elimination ordering.
// When HasCycle is set, Order is nil and Blocked lists the nodes that could
// never become eligible because they sustain each other through a cycle.
type OrderPlan struct {
	Order    []string `json:"order,omitempty"`
	HasCycle bool     `json:"has_cycle"`
	Blocked  []string `json:"blocked,omitempty"`
}

// OK reports whether the plan covers every node.
func (p OrderPlan) OK() bool {
	return !p.HasCycle
}

// DependentCounts returns, for every node of g, how many dependency-list
// entries name it. Entries are counted with multiplicity; dangling targets are
// not nodes and are not counted.
func DependentCounts(g *model.RefGraph) map[string]int {
	labels := g.Labels()
	counts := make(map[string]int, len(labels))
	for _, label := range labels {
		counts[label] = 0
	}
	for _, label := range labels {
		g.EachDependency(label, func(dep string) {
			if g.Has(dep) {
				counts[dep]++
			}
		})
	}
	return counts
}

// DeletionOrder computes an order in which nodes can be removed safely: a node
// is emitted once no unprocessed node lists it as a dependency. Nodes nothing
// depends on come first. If a cycle keeps some node from ever becoming
// eligible the plan reports HasCycle instead of a partial order.
func DeletionOrder(g *model.RefGraph) OrderPlan {
	defer metrics.Timer(metrics.DeletionOrder)()

	labels := g.Labels()
	remaining := DependentCounts(g)

	queue := make([]string, 0, len(labels))
	for _, label := range labels {
		if remaining[label] == 0 {
			queue = append(queue, label)
		}
	}

	order := make([]string, 0, len(labels))
	for len(queue) > 0 {
		label := queue[0]
		queue = queue[1:]
		order = append(order, label)

		g.EachDependency(label, func(dep string) {
			if !g.Has(dep) {
				return
			}
			remaining[dep]--
			if remaining[dep] == 0 {
				queue = append(queue, dep)
			}
		})
	}

	return finishPlan(labels, order, remaining)
}

// DependencyOrder computes a load order: a node is emitted once every one of
// its in-store dependencies has been emitted, so dependencies come first.
// Dangling references do not hold a node back.
func DependencyOrder(g *model.RefGraph) OrderPlan {
	defer metrics.Timer(metrics.DeletionOrder)()

	labels := g.Labels()
	idx := NewReverseIndex(g)

	// pending counts unresolved dependency entries, with multiplicity.
	pending := make(map[string]int, len(labels))
	queue := make([]string, 0, len(labels))
	for _, label := range labels {
		n := 0
		g.EachDependency(label, func(dep string) {
			if g.Has(dep) {
				n++
			}
		})
		pending[label] = n
		if n == 0 {
			queue = append(queue, label)
		}
	}

	order := make([]string, 0, len(labels))
	for len(queue) > 0 {
		label := queue[0]
		queue = queue[1:]
		order = append(order, label)

		for _, ref := range idx.entries[label] {
			pending[ref]--
			if pending[ref] == 0 {
				queue = append(queue, ref)
			}
		}
	}

	return finishPlan(labels, order, pending)
}

func finishPlan(labels, order []string, remaining map[string]int) OrderPlan {
	if len(order) == len(labels) {
		return OrderPlan{Order: order}
	}
	var blocked []string
	for _, label := range labels {
		if remaining[label] > 0 {
			blocked = append(blocked, label)
		}
	}
	return OrderPlan{HasCycle: true, Blocked: blocked}
}
