package vm

import (
	"testing"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/bytecode"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/rational"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/symbolic"
)

type fakeResolver struct {
	values map[[2]int]symbolic.Power
	tempo  map[int]int
	meas   map[int]int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{values: make(map[[2]int]symbolic.Power), tempo: make(map[int]int), meas: make(map[int]int)}
}

func (f *fakeResolver) set(note int, v byte, p symbolic.Power) {
	f.values[[2]int{note, int(v)}] = p
}

func (f *fakeResolver) Value(note int, v byte) (symbolic.Power, bool) {
	p, ok := f.values[[2]int{note, int(v)}]
	return p, ok
}

func (f *fakeResolver) ResolveTempoAncestor(argNoteID int) int {
	if a, ok := f.tempo[argNoteID]; ok {
		return a
	}
	return argNoteID
}

func (f *fakeResolver) ResolveMeasureAncestor(argNoteID int) int {
	if a, ok := f.meas[argNoteID]; ok {
		return a
	}
	return argNoteID
}

func mustRat(n, d int64) rational.Rational {
	r, _ := rational.FromPair(n, d)
	return r
}

func TestEvaluateConstArithmetic(t *testing.T) {
	b := bytecode.NewBuilder()
	b.EmitConst(rational.FromInt(3))
	b.EmitConst(rational.FromInt(2))
	b.EmitOp(bytecode.OpMul)
	expr := b.Build()

	val, numErr := Evaluate(1, 0, expr, newFakeResolver())
	if numErr != nil {
		t.Fatalf("unexpected numeric error: %v", numErr)
	}
	r, ok := val.Rational()
	if !ok || !r.Equals(rational.FromInt(6)) {
		t.Fatalf("want 6, got %v", val)
	}
}

func TestEvaluateBaseRef(t *testing.T) {
	res := newFakeResolver()
	res.set(0, bytecode.VarFrequency, symbolic.FromRational(mustRat(440, 1)))

	b := bytecode.NewBuilder()
	b.EmitLoadBase(bytecode.VarFrequency)
	b.EmitConst(mustRat(3, 2))
	b.EmitOp(bytecode.OpMul)
	expr := b.Build()

	val, numErr := Evaluate(1, bytecode.VarFrequency, expr, res)
	if numErr != nil {
		t.Fatalf("unexpected numeric error: %v", numErr)
	}
	r, ok := val.Rational()
	if !ok || !r.Equals(mustRat(660, 1)) {
		t.Fatalf("want 660, got %v", val)
	}
}

func TestEvaluateDivisionByZeroCorrupts(t *testing.T) {
	res := newFakeResolver()
	b := bytecode.NewBuilder()
	b.EmitConst(rational.FromInt(5))
	b.EmitConst(rational.FromInt(0))
	b.EmitOp(bytecode.OpDiv)
	expr := b.Build()

	val, numErr := Evaluate(1, 0, expr, res)
	if numErr == nil {
		t.Fatalf("expected numeric error")
	}
	if !val.Irrational {
		t.Fatalf("expected corrupted/irrational result")
	}
}

func TestEvaluateEqualTemperament(t *testing.T) {
	// (2^(1/12))^12 must fold back to exactly 2, preserving the exact
	// algebraic identity rather than drifting via floating point.
	res := newFakeResolver()
	b := bytecode.NewBuilder()
	b.EmitConst(rational.FromInt(2))
	b.EmitConst(mustRat(1, 12))
	b.EmitOp(bytecode.OpPow)
	b.EmitConst(rational.FromInt(12))
	b.EmitOp(bytecode.OpPow)
	expr := b.Build()

	val, numErr := Evaluate(1, 0, expr, res)
	if numErr != nil {
		t.Fatalf("unexpected numeric error: %v", numErr)
	}
	r, ok := val.Rational()
	if !ok || !r.Equals(rational.FromInt(2)) {
		t.Fatalf("want exact 2, got %v (irrational=%v approx=%v)", val, val.Irrational, val.Approx)
	}
}

func TestEvaluateTempoResolution(t *testing.T) {
	res := newFakeResolver()
	res.tempo[3] = 0
	res.set(0, bytecode.VarTempo, symbolic.FromRational(rational.FromInt(120)))

	b := bytecode.NewBuilder()
	b.EmitLoadTempo(3)
	expr := b.Build()

	val, numErr := Evaluate(1, bytecode.VarTempo, expr, res)
	if numErr != nil {
		t.Fatalf("unexpected numeric error: %v", numErr)
	}
	r, ok := val.Rational()
	if !ok || !r.Equals(rational.FromInt(120)) {
		t.Fatalf("want 120, got %v", val)
	}
}

func TestEvaluateMeasureLength(t *testing.T) {
	res := newFakeResolver()
	res.tempo[2] = 0
	res.meas[2] = 0
	res.set(0, bytecode.VarTempo, symbolic.FromRational(rational.FromInt(120)))
	res.set(0, bytecode.VarBeatsPerMeasure, symbolic.FromRational(rational.FromInt(4)))

	b := bytecode.NewBuilder()
	b.EmitLoadMeasureLen(2)
	expr := b.Build()

	// measureLength = beatsPerMeasure * 60/tempo = 4 * 60/120 = 2
	val, numErr := Evaluate(1, bytecode.VarMeasureLength, expr, res)
	if numErr != nil {
		t.Fatalf("unexpected numeric error: %v", numErr)
	}
	r, ok := val.Rational()
	if !ok || !r.Equals(rational.FromInt(2)) {
		t.Fatalf("want 2, got %v", val)
	}
}

func TestEvaluateMissingDependency(t *testing.T) {
	res := newFakeResolver()
	b := bytecode.NewBuilder()
	b.EmitLoadRef(7, bytecode.VarFrequency)
	expr := b.Build()

	_, numErr := Evaluate(1, bytecode.VarFrequency, expr, res)
	if numErr == nil {
		t.Fatalf("expected missing dependency error")
	}
}
