// Package module implements the incremental re-evaluation scheduler and
// note store of spec §4.6-§4.7 (C7): the thing that ties the compiler,
// VM, and dependency graph together into a live, editable composition.
// Mutating a note's expression never re-evaluates the whole graph — only
// the changed note and its transitive dependents are marked dirty and
// re-run, the same incremental-recompute shape as the teacher's own
// orchestration layer (internal/agents/reaper/daw), generalized here from
// "re-run an agent step" to "re-run a dirty note".
package module

import (
	"sort"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/coreerr"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/bytecode"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/compiler"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/graph"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/rational"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/symbolic"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/vm"
)

type cacheEntry struct {
	values    [6]symbolic.Power
	evaluated [6]bool
	numErr    [6]*coreerr.NumericError
}

// corruptionMask is one bit per property (same six slots as cacheEntry:
// startTime/duration/frequency/tempo/beatsPerMeasure/measureLength),
// spec §3's "3-bit mask... directly corrupted and/or transitively
// corrupted" generalized to all six cached properties.
type corruptionMask [6]bool

func (c corruptionMask) any() bool {
	for _, v := range c {
		if v {
			return true
		}
	}
	return false
}

// Module is a live, editable set of notes with incremental re-evaluation.
// The zero value is not usable; construct with New.
type Module struct {
	notes map[int]*noteState
	graph *graph.Graph
	cache map[int]*cacheEntry
	// corrupted is persisted across Reevaluate calls: a note's corruption
	// mask only changes when it or one of its providers is re-evaluated.
	corrupted map[int]corruptionMask
	dirty     map[int]struct{}
}

// New returns a Module with only the base note (id 0), whose tempo
// (120) and beatsPerMeasure (4) are always locally set (spec §3), and
// whose startTime/duration/frequency default to 0/0/440.
func New() (*Module, error) {
	m := &Module{
		notes:     make(map[int]*noteState),
		graph:     graph.New(),
		cache:     make(map[int]*cacheEntry),
		corrupted: make(map[int]corruptionMask),
		dirty:     make(map[int]struct{}),
	}
	base := &Note{ID: 0, Exprs: [5]string{"0", "0", "440", "120", "4"}}
	if err := m.addNote(base); err != nil {
		return nil, err
	}
	for v := byte(0); v < 5; v++ {
		if err := m.Set(0, v, base.Exprs[v]); err != nil {
			return nil, err
		}
	}
	if err := m.Reevaluate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Module) addNote(n *Note) error {
	if _, exists := m.notes[n.ID]; exists {
		return coreerr.DuplicateID(n.ID)
	}
	m.notes[n.ID] = &noteState{note: n}
	m.cache[n.ID] = &cacheEntry{}
	return nil
}

// AddNote inserts a new note with no locally set properties, inheriting
// tempo/beatsPerMeasure per parentID/measureChainOf. Callers then use Set
// to give it expressions.
func (m *Module) AddNote(id int, parentID, measureChainOf *int, color, instrument string) error {
	if parentID != nil {
		if _, ok := m.notes[*parentID]; !ok {
			return coreerr.DanglingReference(*parentID)
		}
	}
	if measureChainOf != nil {
		if _, ok := m.notes[*measureChainOf]; !ok {
			return coreerr.DanglingReference(*measureChainOf)
		}
	}
	n := &Note{ID: id, ParentID: cloneIntPtr(parentID), MeasureChainOf: cloneIntPtr(measureChainOf), Color: color, Instrument: instrument}
	if err := m.addNote(n); err != nil {
		return err
	}
	m.graph.Register(id, m.noteRefs(m.notes[id]))
	m.markDirty(id)
	return nil
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Note returns note id's current definition, or nil if it does not exist.
func (m *Module) Note(id int) *Note {
	st, ok := m.notes[id]
	if !ok {
		return nil
	}
	return st.note
}

// NoteIDs returns every note id in the module, ascending.
func (m *Module) NoteIDs() []int {
	ids := make([]int, 0, len(m.notes))
	for id := range m.notes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (m *Module) exists(id int) bool {
	_, ok := m.notes[id]
	return ok
}

// resolveTempoAncestor walks argNoteID's ParentID chain for the nearest
// note with a locally set tempo (spec §3). argNoteID itself qualifies.
func (m *Module) resolveTempoAncestor(argNoteID int) int {
	for {
		if argNoteID == 0 {
			return 0
		}
		st, ok := m.notes[argNoteID]
		if !ok {
			return 0
		}
		if st.note.HasLocal(bytecode.VarTempo) {
			return argNoteID
		}
		if st.note.ParentID == nil {
			return 0
		}
		argNoteID = *st.note.ParentID
	}
}

// resolveMeasureAncestor is the same walk for beatsPerMeasure, preferring
// MeasureChainOf over ParentID when both are set (spec §3).
func (m *Module) resolveMeasureAncestor(argNoteID int) int {
	for {
		if argNoteID == 0 {
			return 0
		}
		st, ok := m.notes[argNoteID]
		if !ok {
			return 0
		}
		if st.note.HasLocal(bytecode.VarBeatsPerMeasure) {
			return argNoteID
		}
		next := st.note.MeasureChainOf
		if next == nil {
			next = st.note.ParentID
		}
		if next == nil {
			return 0
		}
		argNoteID = *next
	}
}

// resolveExprRefs translates one compiled expression's raw Refs into
// resolved (provider note, property) graph edges.
func (m *Module) resolveExprRefs(expr bytecode.Expression) []graph.Ref {
	var refs []graph.Ref
	for _, r := range expr.Refs {
		switch r.Kind {
		case bytecode.RefBase:
			refs = append(refs, graph.Ref{Note: 0, Property: r.Var})
		case bytecode.RefNote:
			refs = append(refs, graph.Ref{Note: r.NoteID, Property: r.Var})
		case bytecode.RefTempo:
			refs = append(refs, graph.Ref{Note: m.resolveTempoAncestor(r.NoteID), Property: bytecode.VarTempo})
		case bytecode.RefMeasureLen:
			refs = append(refs, graph.Ref{Note: m.resolveMeasureAncestor(r.NoteID), Property: bytecode.VarBeatsPerMeasure})
			refs = append(refs, graph.Ref{Note: m.resolveTempoAncestor(r.NoteID), Property: bytecode.VarTempo})
		}
	}
	return refs
}

// noteRefs is the full edge set for note: the union of every locally set
// property's expression refs, plus the implicit inheritance edges a note
// carries when it does not set tempo/beatsPerMeasure itself (so that a
// change to the owning ancestor still marks this note dirty, even though
// nothing of its own expressions mentions that ancestor).
func (m *Module) noteRefs(st *noteState) []graph.Ref {
	seen := make(map[graph.Ref]struct{})
	var out []graph.Ref
	add := func(r graph.Ref) {
		if _, ok := seen[r]; !ok {
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	for _, expr := range st.compiled {
		if expr.Empty() {
			continue
		}
		for _, r := range m.resolveExprRefs(expr) {
			add(r)
		}
	}
	id := st.note.ID
	if owner := m.resolveTempoAncestor(id); owner != id {
		add(graph.Ref{Note: owner, Property: bytecode.VarTempo})
	}
	if owner := m.resolveMeasureAncestor(id); owner != id {
		add(graph.Ref{Note: owner, Property: bytecode.VarBeatsPerMeasure})
	}
	return out
}

func (m *Module) markDirty(id int) {
	m.dirty[id] = struct{}{}
	for _, d := range m.graph.TransitiveDependents(id) {
		m.dirty[d] = struct{}{}
	}
}

// Set compiles source and assigns it to note noteID's property (spec
// §4.4, §4.6 "mutation protocol"). It validates self-reference and
// would-be cycles against the resolved reference set before committing
// anything; on any error the Module is left completely unchanged. A
// successful Set registers the new dependency edges and marks noteID and
// its transitive dependents dirty, but does not itself re-evaluate —
// call Reevaluate (or use BatchSet) to do that.
func (m *Module) Set(noteID int, property byte, source string) error {
	if property > bytecode.VarBeatsPerMeasure {
		return coreerr.Syntax(-1, "measureLength is derived and cannot be set directly")
	}
	st, ok := m.notes[noteID]
	if !ok {
		return coreerr.DanglingReference(noteID)
	}
	expr, err := compiler.Compile(source)
	if err != nil {
		return err
	}
	for _, r := range m.resolveExprRefs(expr) {
		if r.Note == noteID {
			return coreerr.SelfReference(noteID)
		}
		if !m.exists(r.Note) {
			return coreerr.DanglingReference(r.Note)
		}
		if m.graph.WouldCycle(r.Note, noteID) {
			return coreerr.Cycle([]int{noteID, r.Note})
		}
	}

	st.note.Exprs[property] = source
	st.compiled[property] = expr
	m.graph.Register(noteID, m.noteRefs(st))
	m.markDirty(noteID)
	return nil
}

// Change is one pending edit for BatchSet.
type Change struct {
	NoteID   int
	Property byte
	Source   string
}

// BatchSet applies every change via Set, then performs a single
// Reevaluate pass. If any change fails to compile or validate, no change
// in the batch is applied and the Module is left unchanged.
func (m *Module) BatchSet(changes []Change) error {
	snapshot := m.snapshot()
	for _, c := range changes {
		if err := m.Set(c.NoteID, c.Property, c.Source); err != nil {
			m.restore(snapshot)
			return err
		}
	}
	return m.Reevaluate()
}

// Reevaluate topologically sorts the dirty set and re-evaluates every
// dirty note's properties (spec §4.6 "evaluation protocol"), then runs a
// second pass propagating per-property corruption flags from providers to
// dependents, and finally clears the dirty set.
func (m *Module) Reevaluate() error {
	if len(m.dirty) == 0 {
		return nil
	}
	ids := make([]int, 0, len(m.dirty))
	for id := range m.dirty {
		ids = append(ids, id)
	}
	order, err := m.graph.TopoSort(ids)
	if err != nil {
		return err
	}

	for _, id := range order {
		m.evaluateNote(id)
	}
	for _, id := range order {
		st := m.notes[id]
		var mask corruptionMask
		for v := byte(0); v < 6; v++ {
			if m.cache[id].numErr[v] != nil {
				mask[v] = true
				continue
			}
			for _, r := range m.propertyRefs(st, v) {
				if m.corrupted[r.Note][r.Property] {
					mask[v] = true
					break
				}
			}
		}
		m.corrupted[id] = mask
	}

	m.dirty = make(map[int]struct{})
	return nil
}

// propertyRefs returns the provider (note, property) pairs that
// determine st's property v, scoped to v itself rather than the note's
// whole merged edge set: v's own compiled expression's refs, or — when v
// is tempo/beatsPerMeasure and not locally set — the ancestor it copies
// its value from, or — when v is measureLength, which has no expression
// of its own — both ancestors its derived formula reads.
func (m *Module) propertyRefs(st *noteState, v byte) []graph.Ref {
	id := st.note.ID
	switch {
	case v == bytecode.VarMeasureLength:
		return []graph.Ref{
			{Note: m.resolveTempoAncestor(id), Property: bytecode.VarTempo},
			{Note: m.resolveMeasureAncestor(id), Property: bytecode.VarBeatsPerMeasure},
		}
	case v == bytecode.VarTempo && !st.note.HasLocal(v):
		return []graph.Ref{{Note: m.resolveTempoAncestor(id), Property: bytecode.VarTempo}}
	case v == bytecode.VarBeatsPerMeasure && !st.note.HasLocal(v):
		return []graph.Ref{{Note: m.resolveMeasureAncestor(id), Property: bytecode.VarBeatsPerMeasure}}
	default:
		return m.resolveExprRefs(st.compiled[v])
	}
}

func (m *Module) evaluateNote(id int) {
	st := m.notes[id]
	entry := m.cache[id]
	res := &resolver{m: m}

	for v := byte(0); v < 5; v++ {
		switch {
		case v == bytecode.VarTempo && !st.note.HasLocal(v):
			owner := m.resolveTempoAncestor(id)
			entry.values[v] = m.cache[owner].values[bytecode.VarTempo]
			entry.numErr[v] = nil
		case v == bytecode.VarBeatsPerMeasure && !st.note.HasLocal(v):
			owner := m.resolveMeasureAncestor(id)
			entry.values[v] = m.cache[owner].values[bytecode.VarBeatsPerMeasure]
			entry.numErr[v] = nil
		default:
			val, numErr := vm.Evaluate(id, v, st.compiled[v], res)
			entry.values[v] = val
			entry.numErr[v] = numErr
		}
		entry.evaluated[v] = true
	}

	sixty := symbolic.FromRational(rational.FromInt(60))
	beatLen, divErr := sixty.Div(entry.values[bytecode.VarTempo])
	if divErr != nil {
		entry.numErr[bytecode.VarMeasureLength] = &coreerr.NumericError{Kind: coreerr.KindDivisionByZero, Note: id, Property: int(bytecode.VarMeasureLength)}
		beatLen = symbolic.Power{Irrational: true, Approx: 60.0 / entry.values[bytecode.VarTempo].Float64()}
	} else {
		entry.numErr[bytecode.VarMeasureLength] = nil
	}
	entry.values[bytecode.VarMeasureLength] = entry.values[bytecode.VarBeatsPerMeasure].Mul(beatLen)
	entry.evaluated[bytecode.VarMeasureLength] = true
}

// resolver adapts Module to vm.Resolver.
type resolver struct{ m *Module }

func (r *resolver) Value(note int, v byte) (symbolic.Power, bool) {
	entry, ok := r.m.cache[note]
	if !ok || !entry.evaluated[v] {
		return symbolic.Power{}, false
	}
	return entry.values[v], true
}

func (r *resolver) ResolveTempoAncestor(argNoteID int) int    { return r.m.resolveTempoAncestor(argNoteID) }
func (r *resolver) ResolveMeasureAncestor(argNoteID int) int  { return r.m.resolveMeasureAncestor(argNoteID) }

// Value returns note's currently cached property value, whether that
// property has been evaluated, and whether it is corrupted (direct or
// transitive numeric error scoped to v, not the note as a whole).
func (m *Module) Value(note int, v byte) (symbolic.Power, bool, bool) {
	entry, ok := m.cache[note]
	if !ok {
		return symbolic.Power{}, false, false
	}
	return entry.values[v], entry.evaluated[v], m.corrupted[note][v]
}

// Corrupted reports whether any of note's properties is currently
// corrupted.
func (m *Module) Corrupted(note int) bool { return m.corrupted[note].any() }

// DependentsByProperty exposes the graph's property-typed index.
func (m *Module) DependentsByProperty(note int, property byte) []int {
	return m.graph.DependentsByProperty(note, property)
}

// TransitiveDependents exposes the graph's closure query.
func (m *Module) TransitiveDependents(note int) []int {
	return m.graph.TransitiveDependents(note)
}
