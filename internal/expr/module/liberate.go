package module

import (
	"math/big"
	"strconv"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/coreerr"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/bytecode"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/rational"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/symbolic"
)

// Liberate freezes note's property to a standalone expression carrying
// its current computed value, removing every dependency edge the
// property's old expression introduced (spec §4.7 "Liberate"). It is
// used both directly (detach a note from what it currently depends on)
// and internally by Delete when a note being removed still has
// dependents that must keep their current sound.
func (m *Module) Liberate(noteID int, property byte) error {
	_, ok := m.notes[noteID]
	if !ok {
		return coreerr.DanglingReference(noteID)
	}
	if property > bytecode.VarBeatsPerMeasure {
		return coreerr.Syntax(-1, "measureLength is derived and cannot be liberated directly")
	}
	val, evaluated, _ := m.Value(noteID, property)
	if !evaluated {
		return coreerr.MissingDependency(noteID)
	}
	source := symbolicToDSL(val)
	return m.Set(noteID, property, source)
}

// symbolicToDSL renders p as DSL source that compiles back to an
// equivalent standalone value: a pure rational becomes its literal; a
// symbolic value becomes a coefficient times pow() terms, preserving the
// exact algebraic identity rather than collapsing to a float. A corrupted
// (Irrational) value has no exact representation, so it is rendered as
// the best rational approximation of its float64 value instead.
func symbolicToDSL(p symbolic.Power) string {
	if p.Irrational {
		return approxLiteral(p.Approx)
	}
	out := p.Coeff.String()
	for _, t := range p.Terms {
		out += " * (" + strconv.FormatInt(t.Base, 10) + "^(" + t.Exp.String() + "))"
	}
	return out
}

func approxLiteral(f float64) string {
	r := new(big.Rat).SetFloat64(f)
	if r == nil {
		return "0"
	}
	v, err := rational.FromBigPair(r.Num(), r.Denom())
	if err != nil {
		return "0"
	}
	return v.String()
}
