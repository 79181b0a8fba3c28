package module

import "github.com/3merillon/rmt-compose-poc-sub004/internal/expr/bytecode"

// Note is one note in a composition's dependency graph (spec §3, §6).
// Exprs holds the raw source text for the five user-settable properties,
// indexed by bytecode var index (startTime, duration, frequency, tempo,
// beatsPerMeasure); an empty string means the property is not locally set
// and its effective value is inherited. measureLength (var index 5) is
// never user-settable — it is always derived from the note's own
// resolved tempo and beatsPerMeasure (spec §3 "measureLength formula").
//
// ParentID and MeasureChainOf drive the tempo/beatsPerMeasure inheritance
// walk (spec §3 "tempo inheritance"): ParentID is the note's place in the
// general parent chain, used to find the nearest ancestor with a locally
// set tempo; MeasureChainOf is a separate chain used for beatsPerMeasure,
// letting a note inherit its tempo from one ancestor and its measure
// grouping from another. Either may be nil: a nil MeasureChainOf makes
// the beatsPerMeasure walk follow ParentID, and a nil ParentID ends the
// walk at the base note (id 0), which always sets both tempo and
// beatsPerMeasure locally.
type Note struct {
	ID             int
	ParentID       *int
	MeasureChainOf *int
	Color          string
	Instrument     string
	Exprs          [5]string
}

// HasLocal reports whether property v (0..4) is locally set on the note.
func (n *Note) HasLocal(v byte) bool {
	if int(v) >= len(n.Exprs) {
		return false
	}
	return n.Exprs[v] != ""
}

func (n *Note) clone() *Note {
	c := *n
	if n.ParentID != nil {
		p := *n.ParentID
		c.ParentID = &p
	}
	if n.MeasureChainOf != nil {
		m := *n.MeasureChainOf
		c.MeasureChainOf = &m
	}
	return &c
}

type noteState struct {
	note     *Note
	compiled [5]bytecode.Expression
}
