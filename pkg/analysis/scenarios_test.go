package analysis

import (
	"reflect"
	"testing"

	"github.com/vanderheijden86/refgraph/pkg/model"
)

// Worked examples from the engine documentation.

func TestScenarioThreeNodeRing(t *testing.T) {
	g := model.MustFromMap(map[string][]string{"A": {"B"}, "B": {"C"}, "C": {"A"}})

	cycles := FindCycles(g)
	if len(cycles) != 1 || !reflect.DeepEqual([]string(cycles[0]), []string{"A", "B", "C", "A"}) {
		t.Errorf("FindCycles() = %v, want [[A B C A]]", cycles)
	}
	if plan := DeletionOrder(g); !plan.HasCycle {
		t.Errorf("DeletionOrder() = %v, want cycle present", plan.Order)
	}
	if got := Dependents(g, "A"); !reflect.DeepEqual(got, []string{"C"}) {
		t.Errorf("Dependents(A) = %v, want [C]", got)
	}
}

func TestScenarioLeavesBeforeReferrer(t *testing.T) {
	g := model.MustFromMap(map[string][]string{"A": {"B", "C"}, "B": {}, "C": {}})

	plan := DependencyOrder(g)
	if plan.HasCycle {
		t.Fatal("unexpected cycle")
	}
	okOrders := [][]string{{"B", "C", "A"}, {"C", "B", "A"}}
	if !reflect.DeepEqual(plan.Order, okOrders[0]) && !reflect.DeepEqual(plan.Order, okOrders[1]) {
		t.Errorf("DependencyOrder() = %v, want [B C A] or [C B A]", plan.Order)
	}

	// Deletion removes the referrer first so nothing is left pointing at a removed node.
	if del := DeletionOrder(g); !reflect.DeepEqual(del.Order, []string{"A", "B", "C"}) {
		t.Errorf("DeletionOrder() = %v, want [A B C]", del.Order)
	}
}

func TestScenarioCyclePlusIsolatedNode(t *testing.T) {
	g := model.MustFromMap(map[string][]string{"A": {"B"}, "B": {"A"}, "X": {}})

	cycles := FindCycles(g)
	if len(cycles) != 1 || !reflect.DeepEqual([]string(cycles[0]), []string{"A", "B", "A"}) {
		t.Fatalf("FindCycles() = %v, want [[A B A]]", cycles)
	}
	for _, label := range cycles[0] {
		if label == "X" {
			t.Error("X must not appear in any cycle")
		}
	}
}
