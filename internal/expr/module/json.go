package module

import (
	"encoding/json"
	"fmt"
)

// noteJSON is the wire representation of one note (spec §6 "Module JSON
// format"). Exprs is keyed by property name rather than var index so the
// format stays readable and stable across internal var-index changes.
type noteJSON struct {
	ID             int               `json:"id"`
	ParentID       *int              `json:"parentId,omitempty"`
	MeasureChainOf *int              `json:"measureChainOf,omitempty"`
	Color          string            `json:"color,omitempty"`
	Instrument     string            `json:"instrument,omitempty"`
	Exprs          map[string]string `json:"exprs,omitempty"`
}

type moduleJSON struct {
	Notes []noteJSON `json:"notes"`
}

var jsonPropertyNames = []string{"startTime", "duration", "frequency", "tempo", "beatsPerMeasure"}

// ToJSON serializes every note's id, parentage, and raw expression source
// (spec §6). Computed values are not included — FromJSON recompiles and
// re-evaluates everything from the stored expressions.
func (m *Module) ToJSON() ([]byte, error) {
	var doc moduleJSON
	for _, id := range m.NoteIDs() {
		n := m.notes[id].note
		nj := noteJSON{
			ID:             n.ID,
			ParentID:       cloneIntPtr(n.ParentID),
			MeasureChainOf: cloneIntPtr(n.MeasureChainOf),
			Color:          n.Color,
			Instrument:     n.Instrument,
		}
		exprs := make(map[string]string)
		for v, name := range jsonPropertyNames {
			if n.HasLocal(byte(v)) {
				exprs[name] = n.Exprs[v]
			}
		}
		if len(exprs) > 0 {
			nj.Exprs = exprs
		}
		doc.Notes = append(doc.Notes, nj)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FromJSON rebuilds a Module from data previously produced by ToJSON,
// recompiling and re-evaluating every note. Note 0 (the base note) must
// be present; any base property the document leaves out keeps the
// default New gives it.
func FromJSON(data []byte) (*Module, error) {
	var doc moduleJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("module: decoding json: %w", err)
	}

	base, rest, err := splitBase(doc.Notes)
	if err != nil {
		return nil, err
	}
	m, err := New()
	if err != nil {
		return nil, err
	}

	if err := applyNoteJSON(m, base); err != nil {
		return nil, err
	}
	for _, nj := range rest {
		if err := m.AddNote(nj.ID, nj.ParentID, nj.MeasureChainOf, nj.Color, nj.Instrument); err != nil {
			return nil, fmt.Errorf("module: adding note %d: %w", nj.ID, err)
		}
	}
	for _, nj := range rest {
		if err := applyNoteJSON(m, nj); err != nil {
			return nil, err
		}
	}
	if err := m.Reevaluate(); err != nil {
		return nil, err
	}
	return m, nil
}

func splitBase(notes []noteJSON) (noteJSON, []noteJSON, error) {
	for i, n := range notes {
		if n.ID == 0 {
			rest := make([]noteJSON, 0, len(notes)-1)
			rest = append(rest, notes[:i]...)
			rest = append(rest, notes[i+1:]...)
			return n, rest, nil
		}
	}
	return noteJSON{}, nil, fmt.Errorf("module: json missing base note (id 0)")
}

func applyNoteJSON(m *Module, nj noteJSON) error {
	if nj.Color != "" || nj.Instrument != "" {
		if st := m.notes[nj.ID]; st != nil {
			st.note.Color = nj.Color
			st.note.Instrument = nj.Instrument
		}
	}
	for v, name := range jsonPropertyNames {
		src, ok := nj.Exprs[name]
		if !ok || src == "" {
			continue
		}
		if err := m.Set(nj.ID, byte(v), src); err != nil {
			return fmt.Errorf("module: note %d property %s: %w", nj.ID, name, err)
		}
	}
	return nil
}

