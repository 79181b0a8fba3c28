package module

import "github.com/3merillon/rmt-compose-poc-sub004/internal/expr/graph"

// moduleSnapshot is a deep copy of every piece of mutable state Set and
// BatchSet touch, letting BatchSet roll an entire batch back atomically
// when one change in it fails to validate (spec §4.6: a rejected mutation
// must leave the Module exactly as it was).
type moduleSnapshot struct {
	notes     map[int]*noteState
	graph     *graph.Graph
	cache     map[int]*cacheEntry
	corrupted map[int]corruptionMask
	dirty     map[int]struct{}
}

func (m *Module) snapshot() moduleSnapshot {
	notes := make(map[int]*noteState, len(m.notes))
	for id, st := range m.notes {
		notes[id] = &noteState{note: st.note.clone(), compiled: st.compiled}
	}
	cache := make(map[int]*cacheEntry, len(m.cache))
	for id, e := range m.cache {
		c := *e
		cache[id] = &c
	}
	corrupted := make(map[int]corruptionMask, len(m.corrupted))
	for id, v := range m.corrupted {
		corrupted[id] = v
	}
	dirty := make(map[int]struct{}, len(m.dirty))
	for id := range m.dirty {
		dirty[id] = struct{}{}
	}
	return moduleSnapshot{notes: notes, graph: m.cloneGraph(), cache: cache, corrupted: corrupted, dirty: dirty}
}

func (m *Module) restore(s moduleSnapshot) {
	m.notes = s.notes
	m.graph = s.graph
	m.cache = s.cache
	m.corrupted = s.corrupted
	m.dirty = s.dirty
}

// cloneGraph rebuilds an equivalent graph from the current one's edges,
// since graph.Graph carries no exported cloning primitive of its own.
func (m *Module) cloneGraph() *graph.Graph {
	g := graph.New()
	for id, st := range m.notes {
		g.Register(id, m.noteRefsFrom(st, m.graph))
	}
	return g
}

// noteRefsFrom reads back a note's currently registered edges rather than
// recomputing them, so cloning is a pure copy independent of ancestor
// resolution having changed mid-batch.
func (m *Module) noteRefsFrom(st *noteState, g *graph.Graph) []graph.Ref {
	return g.Dependencies(st.note.ID)
}
