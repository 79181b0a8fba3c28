package module

import (
	"fmt"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/coreerr"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/graph"
)

// Delete removes noteID (spec §4.7 "Delete"). With cascade=true it also
// removes every transitive dependent, since their expressions would
// otherwise dangle. With cascade=false, every dependent property that
// referenced noteID is first liberated to its current value (spec
// §4.7 "Liberate"), preserving what the composition currently sounds
// like while dropping the now-stale reference.
func (m *Module) Delete(noteID int, cascade bool) error {
	if noteID == 0 {
		return coreerr.Syntax(-1, "the base note cannot be deleted")
	}
	if !m.exists(noteID) {
		return coreerr.DanglingReference(noteID)
	}

	if cascade {
		toRemove := append([]int{noteID}, m.graph.TransitiveDependents(noteID)...)
		for _, id := range toRemove {
			m.removeNoteHard(id)
		}
		return m.Reevaluate()
	}

	for _, dep := range m.graph.Dependents(noteID) {
		st, ok := m.notes[dep]
		if !ok {
			continue
		}
		for v := byte(0); v < 5; v++ {
			if st.compiled[v].Empty() {
				continue
			}
			references := false
			for _, r := range m.resolveExprRefs(st.compiled[v]) {
				if r.Note == noteID {
					references = true
					break
				}
			}
			if references {
				if err := m.Liberate(dep, v); err != nil {
					return err
				}
			}
		}
	}
	m.removeNoteHard(noteID)
	return m.Reevaluate()
}

func (m *Module) removeNoteHard(id int) {
	delete(m.notes, id)
	delete(m.cache, id)
	delete(m.corrupted, id)
	delete(m.dirty, id)
	m.graph.Remove(id)
}

// Stats is a snapshot of module-level counters suitable for metrics
// emission (see internal/metrics).
type Stats struct {
	NoteCount      int
	DirtyCount     int
	CorruptedCount int
	EdgeCount      int
}

// Stats computes the current counters.
func (m *Module) Stats() Stats {
	s := Stats{NoteCount: len(m.notes), DirtyCount: len(m.dirty)}
	for id := range m.notes {
		if m.corrupted[id].any() {
			s.CorruptedCount++
		}
		s.EdgeCount += len(m.graph.Dependencies(id))
	}
	return s
}

// Validate re-derives every note's dependency edges from its current
// expressions and parentage and checks them against what the graph has
// registered, and that the whole note set still topologically sorts
// (spec §4.6 invariant: the graph's indices are always exact inverses and
// always acyclic). It mutates nothing; a non-nil error indicates a bug in
// Set/Delete/Liberate bookkeeping, not a user-facing condition.
func (m *Module) Validate() error {
	for id, st := range m.notes {
		want := m.noteRefs(st)
		got := m.graph.Dependencies(id)
		if !refSetEqual(want, got) {
			return fmt.Errorf("module: note %d dependency edges out of sync: want %v, got %v", id, want, got)
		}
	}
	ids := m.NoteIDs()
	if _, err := m.graph.TopoSort(ids); err != nil {
		return fmt.Errorf("module: graph is not acyclic: %w", err)
	}
	return nil
}

func refSetEqual(a, b []graph.Ref) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[graph.Ref]int, len(a))
	for _, r := range a {
		seen[r]++
	}
	for _, r := range b {
		seen[r]--
	}
	for _, n := range seen {
		if n != 0 {
			return false
		}
	}
	return true
}
