package compiler

import (
	"errors"
	"testing"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/coreerr"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/bytecode"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/rational"
)

func TestCompileDSL_Literal(t *testing.T) {
	expr, err := Compile("3/2")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(expr.Consts) != 1 || expr.Consts[0].String() != "3/2" {
		t.Fatalf("want single const 3/2, got %+v", expr.Consts)
	}
	if expr.ReferencesBase {
		t.Fatalf("literal should not reference base")
	}
}

func TestCompileDSL_Precedence(t *testing.T) {
	a, err := Compile("2 + 3 * 4")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	b, err := Compile("(2 + (3 * 4))")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if string(a.Code) != string(b.Code) {
		t.Fatalf("precedence mismatch: %v vs %v", a.Code, b.Code)
	}
}

func TestCompileDSL_UnaryBindsInsidePow(t *testing.T) {
	// -2^2 parses as (-2)^2 per the authoritative grammar (unary consumed
	// before factor looks for a trailing '^').
	expr, err := Compile("-2^2")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := bytecode.NewBuilder()
	want.EmitConst(rational.FromInt(2))
	want.EmitOp(bytecode.OpNeg)
	want.EmitConst(rational.FromInt(2))
	want.EmitOp(bytecode.OpPow)
	wantExpr := want.Build()
	if string(expr.Code) != string(wantExpr.Code) {
		t.Fatalf("got %v want %v", expr.Code, wantExpr.Code)
	}
}

func TestCompileDSL_BaseRef(t *testing.T) {
	expr, err := Compile("base.frequency * 2")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !expr.ReferencesBase {
		t.Fatalf("expected ReferencesBase true")
	}
	if len(expr.Refs) != 1 || expr.Refs[0].Kind != bytecode.RefBase || expr.Refs[0].Var != bytecode.VarFrequency {
		t.Fatalf("unexpected refs: %+v", expr.Refs)
	}
}

func TestCompileDSL_NoteRef(t *testing.T) {
	expr, err := Compile("[3].startTime + [3].duration")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(expr.Refs) != 2 {
		t.Fatalf("want 2 refs, got %+v", expr.Refs)
	}
	for _, r := range expr.Refs {
		if r.Kind != bytecode.RefNote || r.NoteID != 3 {
			t.Fatalf("unexpected ref: %+v", r)
		}
	}
}

func TestCompileDSL_TempoMeasureBeat(t *testing.T) {
	for _, src := range []string{"tempo(base)", "measure([2])", "beat(base)"} {
		if _, err := Compile(src); err != nil {
			t.Fatalf("Compile(%q): %v", src, err)
		}
	}
}

func TestCompileDSL_DivisionByZeroConstant(t *testing.T) {
	_, err := Compile("5 / 0")
	var cerr *coreerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != coreerr.KindDivisionByZeroConstant {
		t.Fatalf("want DivisionByZeroConstant, got %v", err)
	}
}

func TestCompileDSL_UnbalancedParens(t *testing.T) {
	_, err := Compile("(1 + 2")
	var cerr *coreerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != coreerr.KindUnbalancedParens {
		t.Fatalf("want UnbalancedParens, got %v", err)
	}
}

func TestCompileDSL_UnknownIdentifier(t *testing.T) {
	_, err := Compile("base.bogus")
	var cerr *coreerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != coreerr.KindUnknownIdentifier {
		t.Fatalf("want UnknownIdentifier, got %v", err)
	}
}

func TestCompileEmpty(t *testing.T) {
	_, err := Compile("   ")
	var cerr *coreerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != coreerr.KindEmptyExpression {
		t.Fatalf("want EmptyExpression, got %v", err)
	}
}

func TestCompileLegacy_Fraction(t *testing.T) {
	expr, err := Compile("new Fraction(3,2)")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(expr.Consts) != 1 || expr.Consts[0].String() != "3/2" {
		t.Fatalf("unexpected consts: %+v", expr.Consts)
	}
}

func TestCompileLegacy_Chain(t *testing.T) {
	expr, err := Compile("new Fraction(1,1).add(baseNote.getVariable('frequency')).mul(new Fraction(3,2))")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !expr.ReferencesBase {
		t.Fatalf("expected ReferencesBase true")
	}
}

func TestCompileLegacy_FindTempo(t *testing.T) {
	expr, err := Compile("findTempo(getNoteById(5))")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(expr.Refs) != 1 || expr.Refs[0].Kind != bytecode.RefTempo || expr.Refs[0].NoteID != 5 {
		t.Fatalf("unexpected refs: %+v", expr.Refs)
	}
}

func TestCompileDSLAndLegacyAgree(t *testing.T) {
	dsl, err := Compile("[1].frequency * (3/2)")
	if err != nil {
		t.Fatalf("Compile dsl: %v", err)
	}
	legacy, err := Compile("getNoteById(1).getVariable('frequency').mul(new Fraction(3,2))")
	if err != nil {
		t.Fatalf("Compile legacy: %v", err)
	}
	if string(dsl.Code) != string(legacy.Code) {
		t.Fatalf("dsl and legacy diverged: %v vs %v", dsl.Code, legacy.Code)
	}
}
