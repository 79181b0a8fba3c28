package module

import (
	"github.com/3merillon/rmt-compose-poc-sub004/internal/coreerr"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/bytecode"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/rational"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/symbolic"
)

// EvaluateToBase rewrites noteID's property as a source expression that
// references only the base note and literal constants, preserving the
// current numeric value (spec §4.7 "Evaluate-to-base-note"). It is
// read-only: unlike Liberate it never calls Set, so the note's actual
// expression and dependency edges are untouched.
//
// startTime and duration are rewritten as base.startTime/0 plus a
// rational multiple of beat(base) (= 60/tempo(base)), matching the
// spec's `base.t + k*60/tempo(base)` form. Every other property is
// rewritten as a rational-and-symbolic-power multiple of the
// corresponding base property, via the same algebraic reconstruction
// Liberate uses (symbolic.Power.Div preserves exact integer-base powers
// instead of collapsing to a float).
func (m *Module) EvaluateToBase(noteID int, property byte) (string, error) {
	if !m.exists(noteID) {
		return "", coreerr.DanglingReference(noteID)
	}
	if property > bytecode.VarBeatsPerMeasure {
		return "", coreerr.Syntax(-1, "measureLength is derived and has no base rewrite")
	}
	val, evaluated, _ := m.Value(noteID, property)
	if !evaluated {
		return "", coreerr.MissingDependency(noteID)
	}

	if property == bytecode.VarStartTime || property == bytecode.VarDuration {
		if src, ok := m.evaluateToBaseTiming(property, val); ok {
			return src, nil
		}
		return approxLiteral(val.Float64()), nil
	}

	base, baseEvaluated, _ := m.Value(0, property)
	if !baseEvaluated || base.Coeff.IsZero() {
		return symbolicToDSL(val), nil
	}
	ratio, err := val.Div(base)
	if err != nil {
		return approxLiteral(val.Float64()), nil
	}
	return "base." + bytecode.VarName(property) + " * (" + symbolicToDSL(ratio) + ")", nil
}

func (m *Module) evaluateToBaseTiming(property byte, val symbolic.Power) (string, bool) {
	r, ok := val.Rational()
	if !ok {
		return "", false
	}
	baseBeat, evaluated, _ := m.Value(0, bytecode.VarTempo)
	if !evaluated || baseBeat.Coeff.IsZero() {
		return "", false
	}
	beatLen, err := rational.FromInt(60).Div(baseBeat.Coeff)
	if err != nil || beatLen.IsZero() {
		return "", false
	}

	if property == bytecode.VarDuration {
		k, err := r.Div(beatLen)
		if err != nil {
			return "", false
		}
		return "(" + k.String() + ") * beat(base)", true
	}

	baseStart, evaluated, _ := m.Value(0, bytecode.VarStartTime)
	if !evaluated {
		return "", false
	}
	baseStartR, ok := baseStart.Rational()
	if !ok {
		return "", false
	}
	offset := r.Sub(baseStartR)
	k, err := offset.Div(beatLen)
	if err != nil {
		return "", false
	}
	return "base.startTime + (" + k.String() + ") * beat(base)", true
}
