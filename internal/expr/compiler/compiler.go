// Package compiler turns the two surface syntaxes spec §4.4 allows — a
// small infix DSL and a legacy Fraction method-chain form inherited from
// the system this module replaces — into one shared bytecode.Expression
// (C4). Both front ends funnel through bytecode.Builder so that
// compile(dsl) and compile(legacy) agree on the instructions they emit
// for equivalent programs (spec §8).
package compiler

import (
	"strings"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/coreerr"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/bytecode"
)

// Compile sniffs src's surface syntax and compiles it to a bytecode
// Expression. An empty or whitespace-only source is rejected with
// EmptyExpression (spec §4.4) — the empty Expression value is reserved
// for "no expression set" and is never the result of compiling text.
func Compile(src string) (bytecode.Expression, error) {
	if strings.TrimSpace(src) == "" {
		return bytecode.Expression{}, coreerr.EmptyExpression()
	}
	if looksLikeDSL(src) {
		return compileDSL(src)
	}
	return compileLegacy(src)
}

// propertyVar resolves a property name or shorthand to its var index
// (spec §3, §4.4 shorthand table).
func propertyVar(name string) (byte, bool) {
	switch name {
	case "startTime", "s", "t":
		return bytecode.VarStartTime, true
	case "duration", "d":
		return bytecode.VarDuration, true
	case "frequency", "f":
		return bytecode.VarFrequency, true
	case "tempo":
		return bytecode.VarTempo, true
	case "beatsPerMeasure", "bpm":
		return bytecode.VarBeatsPerMeasure, true
	case "measureLength", "ml":
		return bytecode.VarMeasureLength, true
	default:
		return 0, false
	}
}

func syntaxErr(pos int, msg string) error {
	return coreerr.Syntax(pos, msg)
}
