package graph

import (
	"reflect"
	"testing"
)

func TestRegisterAndDependents(t *testing.T) {
	g := New()
	g.Register(1, []Ref{{Note: 0, Property: 2}})
	g.Register(2, []Ref{{Note: 1, Property: 0}})

	if got := g.Dependents(0); !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("Dependents(0) = %v", got)
	}
	if got := g.Dependents(1); !reflect.DeepEqual(got, []int{2}) {
		t.Fatalf("Dependents(1) = %v", got)
	}
	if got := g.TransitiveDependents(0); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("TransitiveDependents(0) = %v", got)
	}
}

func TestRegisterReplacesPriorEdges(t *testing.T) {
	g := New()
	g.Register(1, []Ref{{Note: 0, Property: 2}})
	g.Register(1, []Ref{{Note: 0, Property: 3}})
	if got := g.Dependencies(1); len(got) != 1 || got[0].Property != 3 {
		t.Fatalf("expected single edge to property 3, got %+v", got)
	}
}

func TestWouldCycleSelfReference(t *testing.T) {
	g := New()
	if !g.WouldCycle(5, 5) {
		t.Fatalf("self reference should cycle")
	}
}

func TestWouldCycleDetectsClosingLoop(t *testing.T) {
	g := New()
	// 2 depends on 1, 1 depends on 0. Adding "0 depends on 2" would close
	// a loop 0 -> 2 -> 1 -> 0.
	g.Register(2, []Ref{{Note: 1, Property: 0}})
	g.Register(1, []Ref{{Note: 0, Property: 0}})
	if !g.WouldCycle(2, 0) {
		t.Fatalf("expected cycle when 0 would depend on 2")
	}
	if g.WouldCycle(3, 0) {
		t.Fatalf("unrelated note 3 should not cycle")
	}
}

func TestTopoSortOrdersProvidersFirst(t *testing.T) {
	g := New()
	g.Register(2, []Ref{{Note: 1, Property: 0}})
	g.Register(1, []Ref{{Note: 0, Property: 0}})
	order, err := g.TopoSort([]int{0, 1, 2})
	if err != nil {
		t.Fatalf("TopoSort: %v", err)
	}
	if !reflect.DeepEqual(order, []int{0, 1, 2}) {
		t.Fatalf("order = %v", order)
	}
}

func TestTopoSortTieBreakAscending(t *testing.T) {
	g := New()
	// 5 and 3 both depend on nothing within the set; both ready at once.
	order, err := g.TopoSort([]int{5, 3, 4})
	if err != nil {
		t.Fatalf("TopoSort: %v", err)
	}
	if !reflect.DeepEqual(order, []int{3, 4, 5}) {
		t.Fatalf("order = %v", order)
	}
}

func TestTopoSortDetectsCycle(t *testing.T) {
	g := New()
	g.Register(1, []Ref{{Note: 2, Property: 0}})
	g.Register(2, []Ref{{Note: 1, Property: 0}})
	_, err := g.TopoSort([]int{1, 2})
	if err == nil {
		t.Fatalf("expected cycle error")
	}
}

func TestRemoveStripsBothDirections(t *testing.T) {
	g := New()
	g.Register(1, []Ref{{Note: 0, Property: 2}})
	g.Remove(0)
	if got := g.Dependencies(1); len(got) != 0 {
		t.Fatalf("expected no dependencies after provider removed, got %+v", got)
	}
}

func TestDependentsByProperty(t *testing.T) {
	g := New()
	g.Register(1, []Ref{{Note: 0, Property: 2}})
	g.Register(2, []Ref{{Note: 0, Property: 3}})
	if got := g.DependentsByProperty(0, 2); !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("DependentsByProperty(0,2) = %v", got)
	}
}
