// Package bytecode defines the compact stack-based instruction format
// compiled expressions are reduced to (spec §3, §4.3, C3), plus a
// decompiler that renders bytecode back to DSL text. The module's
// EvaluateToBase and Liberate do not call it: they build their source
// text from evaluated values. Opcode doc comments name each
// instruction's stack effect, the convention used throughout the
// retrieval pack's own bytecode VMs (CWBudde-go-dws's instruction.go,
// sentra-language's bytecode.go, ATSOTECK-rage's opcode.go).
package bytecode

// Op is a single-byte opcode.
type Op byte

const (
	// OpLoadConst pushes rational constant Consts[u16] onto the stack.
	// Stack: [] -> [const]
	OpLoadConst Op = iota
	// OpLoadBase pushes the named property (u8 var index) of the base note.
	// Stack: [] -> [base.var]
	OpLoadBase
	// OpLoadRef pushes the named property (u8 var index) of note u16.
	// Stack: [] -> [note[id].var]
	OpLoadRef
	// OpLoadTempo walks the tempo inheritance chain starting at note u16
	// (0 denotes the base note) and pushes the resolved tempo.
	// Stack: [] -> [tempo]
	OpLoadTempo
	// OpLoadMeasureLen walks the inheritance chain starting at note u16
	// and pushes the resolved measure length (beatsPerMeasure * 60/tempo).
	// Stack: [] -> [measureLength]
	OpLoadMeasureLen
	// OpAdd pops b, a; pushes a+b.
	OpAdd
	// OpSub pops b, a; pushes a-b.
	OpSub
	// OpMul pops b, a; pushes a*b.
	OpMul
	// OpDiv pops b, a; pushes a/b.
	OpDiv
	// OpPow pops exponent, base; pushes base^exponent.
	OpPow
	// OpNeg pops a; pushes -a.
	OpNeg
)

// Var indices are the fixed six note properties (spec §3).
const (
	VarStartTime       byte = 0
	VarDuration        byte = 1
	VarFrequency       byte = 2
	VarTempo           byte = 3
	VarBeatsPerMeasure byte = 4
	VarMeasureLength   byte = 5
)

// VarName maps a var index to its canonical DSL property name.
func VarName(v byte) string {
	switch v {
	case VarStartTime:
		return "startTime"
	case VarDuration:
		return "duration"
	case VarFrequency:
		return "frequency"
	case VarTempo:
		return "tempo"
	case VarBeatsPerMeasure:
		return "beatsPerMeasure"
	case VarMeasureLength:
		return "measureLength"
	default:
		return "?"
	}
}

// RefKind distinguishes the four instructions that can introduce a
// dependency edge.
type RefKind byte

const (
	RefBase RefKind = iota
	RefNote
	RefTempo
	RefMeasureLen
)

// Ref is one (noteId, var) reference recorded alongside the bytecode that
// reads it, used to build dependency-graph edges (spec §3, §4.6). For
// RefTempo/RefMeasureLen, NoteID is the raw DSL argument (0 for base, n for
// [n]) — the walk to the actual tempo/measure-length-owning ancestor is
// resolved by the module layer, which knows note parentage (see
// internal/expr/module).
type Ref struct {
	Kind   RefKind
	NoteID int
	Var    byte
}
