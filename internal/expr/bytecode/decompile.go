package bytecode

import (
	"fmt"
)

// Decompile reconstructs a DSL source string for expr such that compiling
// the result yields an equivalent Expression (spec §4.3, §8
// "compile(decompile(bc)) ≡ bc"). It fully parenthesizes every compound
// subexpression rather than computing minimal precedence-aware
// punctuation: correctness of the round trip only requires that grouping
// be preserved, not that the output be the prettiest possible DSL text.
func Decompile(expr Expression) (string, error) {
	if expr.Empty() {
		return "0", nil
	}
	var stack []string
	code := expr.Code
	pos := 0
	for pos < len(code) {
		op := Op(code[pos])
		pos++
		switch op {
		case OpLoadConst:
			idx, next := readU16(code, pos)
			pos = next
			stack = append(stack, expr.Consts[int(idx)].String())
		case OpLoadBase:
			v := code[pos]
			pos++
			stack = append(stack, "base."+VarName(v))
		case OpLoadRef:
			id, next := readU16(code, pos)
			pos = next
			v := code[pos]
			pos++
			stack = append(stack, fmt.Sprintf("[%d].%s", id, VarName(v)))
		case OpLoadTempo:
			id, next := readU16(code, pos)
			pos = next
			stack = append(stack, "tempo("+argText(int(id))+")")
		case OpLoadMeasureLen:
			id, next := readU16(code, pos)
			pos = next
			stack = append(stack, "measure("+argText(int(id))+")")
		case OpNeg:
			a := pop(&stack)
			stack = append(stack, "(-"+a+")")
		case OpAdd, OpSub, OpMul, OpDiv, OpPow:
			b := pop(&stack)
			a := pop(&stack)
			stack = append(stack, "("+a+" "+opSymbol(op)+" "+b+")")
		default:
			return "", fmt.Errorf("bytecode: unknown opcode %d at %d", op, pos-1)
		}
	}
	if len(stack) != 1 {
		return "", fmt.Errorf("bytecode: malformed expression, stack depth %d at end", len(stack))
	}
	return stack[0], nil
}

func argText(id int) string {
	if id == 0 {
		return "base"
	}
	return fmt.Sprintf("[%d]", id)
}

func opSymbol(op Op) string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpPow:
		return "^"
	default:
		return "?"
	}
}

func pop(stack *[]string) string {
	s := *stack
	v := s[len(s)-1]
	*stack = s[:len(s)-1]
	return v
}
