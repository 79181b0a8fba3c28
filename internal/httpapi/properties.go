package httpapi

import "github.com/3merillon/rmt-compose-poc-sub004/internal/expr/bytecode"

// parseProperty resolves a JSON property name to its var index, the
// inverse of bytecode.VarName, for request bodies and query params that
// name a property by string (spec §6's JSON format keys properties by
// name, not index).
func parseProperty(name string) (byte, bool) {
	switch name {
	case "startTime":
		return bytecode.VarStartTime, true
	case "duration":
		return bytecode.VarDuration, true
	case "frequency":
		return bytecode.VarFrequency, true
	case "tempo":
		return bytecode.VarTempo, true
	case "beatsPerMeasure":
		return bytecode.VarBeatsPerMeasure, true
	case "measureLength":
		return bytecode.VarMeasureLength, true
	default:
		return 0, false
	}
}
