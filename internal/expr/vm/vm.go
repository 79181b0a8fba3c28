// Package vm evaluates a compiled bytecode.Expression against the current
// state of a note graph (spec §4.5, C5). It is a small stack machine: push
// operands, pop and combine. The VM itself knows nothing about notes or
// parentage beyond the Resolver interface — module.Module supplies that,
// keeping the evaluation core reusable and unit-testable in isolation,
// the same layering the teacher uses between its DSL parsers and the
// orchestration that actually drives a DAW session.
package vm

import (
	"encoding/binary"
	"math"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/coreerr"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/bytecode"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/rational"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/symbolic"
)

// Resolver supplies the two things the VM cannot compute on its own:
// another note's already-evaluated property value, and the tempo/measure
// inheritance walk (spec §3 "tempo inheritance"), which depends on note
// parentage the VM has no notion of.
type Resolver interface {
	// Value returns note's var property, and whether it has been evaluated
	// yet (false for a note not yet reached by the current topological pass).
	Value(note int, v byte) (symbolic.Power, bool)
	// ResolveTempoAncestor walks from argNoteID (0 = base) up the chain of
	// parents to the nearest note with a locally-set tempo, per spec §3.
	ResolveTempoAncestor(argNoteID int) int
	// ResolveMeasureAncestor is the same walk for beatsPerMeasure.
	ResolveMeasureAncestor(argNoteID int) int
}

// Evaluate runs expr's bytecode to a single symbolic.Power value. note and
// property identify what is being computed, purely to annotate a
// NumericError if one occurs; they do not affect the computation. A
// non-nil NumericError never aborts evaluation — the returned value is
// always usable (an approximation when corrupted), per spec §7's rule
// that numeric errors set a corruption flag rather than propagate as a Go
// error.
func Evaluate(note int, property byte, expr bytecode.Expression, res Resolver) (symbolic.Power, *coreerr.NumericError) {
	if expr.Empty() {
		return symbolic.FromRational(rational.Zero), nil
	}

	var stack []symbolic.Power
	var numErr *coreerr.NumericError
	fail := func(kind coreerr.Kind) {
		if numErr == nil {
			numErr = &coreerr.NumericError{Kind: kind, Note: note, Property: int(property)}
		}
	}

	code := expr.Code
	pos := 0
	for pos < len(code) {
		op := bytecode.Op(code[pos])
		pos++
		switch op {
		case bytecode.OpLoadConst:
			idx, next := readU16(code, pos)
			pos = next
			stack = append(stack, symbolic.FromRational(expr.Consts[idx]))

		case bytecode.OpLoadBase:
			v := code[pos]
			pos++
			stack = append(stack, fetch(res, 0, v, fail))

		case bytecode.OpLoadRef:
			id, next := readU16(code, pos)
			pos = next
			v := code[pos]
			pos++
			stack = append(stack, fetch(res, int(id), v, fail))

		case bytecode.OpLoadTempo:
			id, next := readU16(code, pos)
			pos = next
			ancestor := res.ResolveTempoAncestor(int(id))
			stack = append(stack, fetch(res, ancestor, bytecode.VarTempo, fail))

		case bytecode.OpLoadMeasureLen:
			id, next := readU16(code, pos)
			pos = next
			bpmAncestor := res.ResolveMeasureAncestor(int(id))
			tempoAncestor := res.ResolveTempoAncestor(int(id))
			bpm := fetch(res, bpmAncestor, bytecode.VarBeatsPerMeasure, fail)
			tempo := fetch(res, tempoAncestor, bytecode.VarTempo, fail)
			beatLen, divErr := symbolic.FromRational(rational.FromInt(60)).Div(tempo)
			if divErr != nil {
				fail(coreerr.KindDivisionByZero)
				beatLen = symbolic.Power{Irrational: true, Approx: 60.0 / tempo.Float64()}
			}
			stack = append(stack, bpm.Mul(beatLen))

		case bytecode.OpAdd:
			b, a := pop2(&stack)
			stack = append(stack, a.Add(b))

		case bytecode.OpSub:
			b, a := pop2(&stack)
			stack = append(stack, a.Sub(b))

		case bytecode.OpMul:
			b, a := pop2(&stack)
			stack = append(stack, a.Mul(b))

		case bytecode.OpDiv:
			b, a := pop2(&stack)
			result, err := a.Div(b)
			if err != nil {
				fail(coreerr.KindDivisionByZero)
				result = symbolic.Power{Irrational: true, Approx: a.Float64() / b.Float64()}
			}
			stack = append(stack, result)

		case bytecode.OpPow:
			exp, base := pop2(&stack)
			stack = append(stack, evalPow(base, exp, fail))

		case bytecode.OpNeg:
			a := pop1(&stack)
			stack = append(stack, a.Neg())

		default:
			fail(coreerr.KindOverflow)
		}
	}

	if len(stack) == 0 {
		return symbolic.FromRational(rational.Zero), numErr
	}
	return stack[len(stack)-1], numErr
}

func fetch(res Resolver, note int, v byte, fail func(coreerr.Kind)) symbolic.Power {
	val, ok := res.Value(note, v)
	if !ok {
		fail(coreerr.KindMissingDependency)
		return symbolic.FromRational(rational.Zero)
	}
	return val
}

// evalPow applies base^exp, generalizing spec §4.2's pow (which is stated
// for a plain rational base) to a symbolic base with an integer exponent,
// and falling back to a numeric approximation for anything the exact
// algebra cannot represent (a symbolic base with a non-integer exponent,
// or an exponent that is itself symbolic).
func evalPow(base, exp symbolic.Power, fail func(coreerr.Kind)) symbolic.Power {
	expRat, expIsRational := exp.Rational()
	if !expIsRational {
		fail(coreerr.KindNonRationalBase)
		return symbolic.Power{Irrational: true, Approx: math.Pow(base.Float64(), exp.Float64())}
	}
	if baseRat, baseIsRational := base.Rational(); baseIsRational {
		p, err := symbolic.Pow(baseRat, expRat)
		if err != nil {
			fail(coreerr.KindNonRationalBase)
			return symbolic.Power{Irrational: true, Approx: math.Pow(base.Float64(), exp.Float64())}
		}
		return p
	}
	if !expRat.IsInteger() {
		fail(coreerr.KindNonRationalBase)
		return symbolic.Power{Irrational: true, Approx: math.Pow(base.Float64(), exp.Float64())}
	}
	p, err := base.PowInt(expRat.Int64())
	if err != nil {
		fail(coreerr.KindDivisionByZero)
		return symbolic.Power{Irrational: true, Approx: math.Pow(base.Float64(), exp.Float64())}
	}
	return p
}

func pop1(stack *[]symbolic.Power) symbolic.Power {
	s := *stack
	v := s[len(s)-1]
	*stack = s[:len(s)-1]
	return v
}

func pop2(stack *[]symbolic.Power) (b, a symbolic.Power) {
	b = pop1(stack)
	a = pop1(stack)
	return
}

func readU16(code []byte, pos int) (uint16, int) {
	return binary.BigEndian.Uint16(code[pos : pos+2]), pos + 2
}
