package bytecode

import (
	"encoding/binary"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/rational"
)

// Expression is a compiled, immutable expression (spec §4.4 "Outputs"): the
// instruction stream, its constant pool, and the reference set the
// compiler discovered while emitting it. The empty expression (Code has
// length zero) is valid and evaluates to the rational 0 (spec §4.3).
type Expression struct {
	Code           []byte
	Consts         []rational.Rational
	Refs           []Ref
	ReferencesBase bool
}

// Builder accumulates instructions for one compiled expression. It is the
// single emission point both compiler front ends (DSL and legacy) funnel
// through, guaranteeing they produce identical bytecode for equivalent
// programs (spec §4.4, §8 "compile(dsl) ≡ compile(legacy)").
type Builder struct {
	code    []byte
	consts  []rational.Rational
	refs    []Ref
	refSeen map[Ref]bool
	refBase bool
}

func NewBuilder() *Builder {
	return &Builder{refSeen: make(map[Ref]bool)}
}

func (b *Builder) addRef(r Ref) {
	if r.Kind == RefBase || (r.Kind == RefNote && r.NoteID == 0) {
		b.refBase = true
	}
	if !b.refSeen[r] {
		b.refSeen[r] = true
		b.refs = append(b.refs, r)
	}
}

// EmitConst appends a LOAD_CONST for r, reusing an existing pool slot with
// an equal value.
func (b *Builder) EmitConst(r rational.Rational) {
	idx := -1
	for i, c := range b.consts {
		if c.Equals(r) {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = len(b.consts)
		b.consts = append(b.consts, r)
	}
	b.code = append(b.code, byte(OpLoadConst))
	b.code = appendU16(b.code, uint16(idx))
}

// EmitLoadBase appends a LOAD_BASE for var v.
func (b *Builder) EmitLoadBase(v byte) {
	b.addRef(Ref{Kind: RefBase, NoteID: 0, Var: v})
	b.code = append(b.code, byte(OpLoadBase), v)
}

// EmitLoadRef appends a LOAD_REF for (noteID, v).
func (b *Builder) EmitLoadRef(noteID int, v byte) {
	b.addRef(Ref{Kind: RefNote, NoteID: noteID, Var: v})
	b.code = append(b.code, byte(OpLoadRef))
	b.code = appendU16(b.code, uint16(noteID))
	b.code = append(b.code, v)
}

// EmitLoadTempo appends a LOAD_TEMPO with raw argument noteID (0 = base).
func (b *Builder) EmitLoadTempo(noteID int) {
	b.addRef(Ref{Kind: RefTempo, NoteID: noteID})
	b.code = append(b.code, byte(OpLoadTempo))
	b.code = appendU16(b.code, uint16(noteID))
}

// EmitLoadMeasureLen appends a LOAD_MEASURE_LEN with raw argument noteID.
func (b *Builder) EmitLoadMeasureLen(noteID int) {
	b.addRef(Ref{Kind: RefMeasureLen, NoteID: noteID})
	b.code = append(b.code, byte(OpLoadMeasureLen))
	b.code = appendU16(b.code, uint16(noteID))
}

func (b *Builder) EmitOp(op Op) {
	b.code = append(b.code, byte(op))
}

// Build finalizes the expression. The Builder must not be reused afterward.
func (b *Builder) Build() Expression {
	return Expression{
		Code:           b.code,
		Consts:         b.consts,
		Refs:           b.refs,
		ReferencesBase: b.refBase,
	}
}

func appendU16(code []byte, v uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return append(code, buf[:]...)
}

func readU16(code []byte, pos int) (uint16, int) {
	return binary.BigEndian.Uint16(code[pos : pos+2]), pos + 2
}

// Empty reports whether the expression has no instructions, in which case
// it evaluates to the rational 0 (spec §4.3).
func (e Expression) Empty() bool { return len(e.Code) == 0 }
