package module

import (
	"testing"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/bytecode"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/rational"
)

func intp(v int) *int { return &v }

func TestNewBaseDefaults(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	val, ok, corrupted := m.Value(0, bytecode.VarFrequency)
	if !ok || corrupted {
		t.Fatalf("base frequency not evaluated cleanly")
	}
	r, _ := val.Rational()
	if r.Int64() != 440 {
		t.Fatalf("want 440, got %v", r)
	}
	mlen, ok, _ := m.Value(0, bytecode.VarMeasureLength)
	if !ok {
		t.Fatalf("measureLength not evaluated")
	}
	r2, _ := mlen.Rational()
	if !r2.Equals(rational.FromInt(2)) {
		t.Fatalf("want measureLength 2, got %v", mlen)
	}
}

func TestMajorChord(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.AddNote(1, intp(0), nil, "", ""); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := m.AddNote(2, intp(0), nil, "", ""); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := m.BatchSet([]Change{
		{NoteID: 1, Property: bytecode.VarFrequency, Source: "base.frequency * (5/4)"},
		{NoteID: 2, Property: bytecode.VarFrequency, Source: "base.frequency * (3/2)"},
	}); err != nil {
		t.Fatalf("BatchSet: %v", err)
	}
	v1, _, corrupted1 := m.Value(1, bytecode.VarFrequency)
	v2, _, corrupted2 := m.Value(2, bytecode.VarFrequency)
	if corrupted1 || corrupted2 {
		t.Fatalf("chord notes should not be corrupted")
	}
	r1, _ := v1.Rational()
	r2, _ := v2.Rational()
	if r1.Int64() != 550 {
		t.Fatalf("want 550, got %v", r1)
	}
	if r2.Int64() != 660 {
		t.Fatalf("want 660, got %v", r2)
	}
}

func TestSequentialMelody(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.AddNote(1, intp(0), nil, "", ""); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := m.AddNote(2, intp(0), nil, "", ""); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := m.BatchSet([]Change{
		{NoteID: 1, Property: bytecode.VarStartTime, Source: "0"},
		{NoteID: 1, Property: bytecode.VarDuration, Source: "1"},
		{NoteID: 2, Property: bytecode.VarStartTime, Source: "[1].startTime + [1].duration"},
		{NoteID: 2, Property: bytecode.VarDuration, Source: "1"},
	}); err != nil {
		t.Fatalf("BatchSet: %v", err)
	}
	v, _, _ := m.Value(2, bytecode.VarStartTime)
	r, _ := v.Rational()
	if r.Int64() != 1 {
		t.Fatalf("want note 2 startTime 1, got %v", r)
	}
}

func TestEqualTemperamentPreserved(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.AddNote(1, intp(0), nil, "", ""); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := m.Set(1, bytecode.VarFrequency, "base.frequency * (2^(1/12))^12"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Reevaluate(); err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}
	val, _, corrupted := m.Value(1, bytecode.VarFrequency)
	if corrupted {
		t.Fatalf("expected exact result, not corrupted")
	}
	r, ok := val.Rational()
	if !ok || r.Int64() != 880 {
		t.Fatalf("expected exact 880 (one octave up), got %+v", val)
	}
}

func TestCycleRejected(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.AddNote(1, intp(0), nil, "", ""); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := m.AddNote(2, intp(0), nil, "", ""); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := m.Set(1, bytecode.VarFrequency, "[2].frequency"); err != nil {
		t.Fatalf("Set note 1: %v", err)
	}
	if err := m.Reevaluate(); err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}
	if err := m.Set(2, bytecode.VarFrequency, "[1].frequency"); err == nil {
		t.Fatalf("expected cycle rejection")
	}
}

func TestSelfReferenceRejected(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.AddNote(1, intp(0), nil, "", ""); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := m.Set(1, bytecode.VarFrequency, "[1].startTime + 1"); err == nil {
		t.Fatalf("expected self-reference rejection")
	}
}

func TestDivisionByZeroCorrupts(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.AddNote(1, intp(0), nil, "", ""); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	// base.duration is 0 by default; dividing by it is only detectable at
	// runtime since the divisor is a property read, not a literal.
	if err := m.Set(1, bytecode.VarFrequency, "base.frequency / base.duration"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Reevaluate(); err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}
	_, _, corrupted := m.Value(1, bytecode.VarFrequency)
	if !corrupted {
		t.Fatalf("expected runtime division by zero to corrupt note 1")
	}
}

func TestLiberateThenDelete(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.AddNote(1, intp(0), nil, "", ""); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := m.AddNote(2, intp(0), nil, "", ""); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := m.Set(1, bytecode.VarFrequency, "base.frequency * (3/2)"); err != nil {
		t.Fatalf("Set 1: %v", err)
	}
	if err := m.Set(2, bytecode.VarFrequency, "[1].frequency * (4/3)"); err != nil {
		t.Fatalf("Set 2: %v", err)
	}
	if err := m.Reevaluate(); err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}
	before, _, _ := m.Value(2, bytecode.VarFrequency)
	beforeR, _ := before.Rational()

	if err := m.Delete(1, false); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if m.Note(1) != nil {
		t.Fatalf("note 1 should be removed")
	}
	after, _, corrupted := m.Value(2, bytecode.VarFrequency)
	if corrupted {
		t.Fatalf("note 2 should not be corrupted after liberation")
	}
	afterR, _ := after.Rational()
	if !beforeR.Equals(afterR) {
		t.Fatalf("value drifted across delete: before %v after %v", beforeR, afterR)
	}
}

func TestEvaluateToBaseFrequency(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.AddNote(1, intp(0), nil, "", ""); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := m.AddNote(2, intp(0), nil, "", ""); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := m.Set(1, bytecode.VarFrequency, "base.frequency * (2^(1/12))^7"); err != nil {
		t.Fatalf("Set 1: %v", err)
	}
	if err := m.Set(2, bytecode.VarFrequency, "[1].frequency * (3/2)"); err != nil {
		t.Fatalf("Set 2: %v", err)
	}
	if err := m.Reevaluate(); err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}

	src, err := m.EvaluateToBase(2, bytecode.VarFrequency)
	if err != nil {
		t.Fatalf("EvaluateToBase: %v", err)
	}

	m2, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m2.AddNote(1, intp(0), nil, "", ""); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := m2.Set(1, bytecode.VarFrequency, src); err != nil {
		t.Fatalf("rewritten source %q did not compile: %v", src, err)
	}
	if err := m2.Reevaluate(); err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}
	want, _, _ := m.Value(2, bytecode.VarFrequency)
	got, _, _ := m2.Value(1, bytecode.VarFrequency)
	diff := want.Float64() - got.Float64()
	if diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("value drifted: want %v got %v", want, got)
	}
}

func TestValidateClean(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.AddNote(1, intp(0), nil, "", ""); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := m.Set(1, bytecode.VarFrequency, "base.frequency * (3/2)"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Reevaluate(); err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestToJSONFromJSONRoundTrip(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.AddNote(1, intp(0), nil, "red", "piano"); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if err := m.Set(1, bytecode.VarFrequency, "base.frequency * (3/2)"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Reevaluate(); err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}
	data, err := m.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	m2, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	v1, _, _ := m.Value(1, bytecode.VarFrequency)
	v2, _, _ := m2.Value(1, bytecode.VarFrequency)
	r1, _ := v1.Rational()
	r2, _ := v2.Rational()
	if !r1.Equals(r2) {
		t.Fatalf("round trip changed value: %v vs %v", r1, r2)
	}
}
