// Package coreerr defines the error taxonomy of the expression core (see
// spec §7). Structural errors abort the operation that raised them and
// leave the Module unchanged; numeric errors never reach a caller as a Go
// error — they set a corruption bit and let evaluation continue.
package coreerr

import (
	"fmt"
	"strings"
)

// Kind identifies an error category from the taxonomy in spec §7.
type Kind int

const (
	KindSyntax Kind = iota
	KindEmptyExpression
	KindUnknownIdentifier
	KindUnbalancedParens
	KindDivisionByZeroConstant
	KindSelfReference
	KindCircularDependency
	KindDuplicateID
	KindDanglingReference
	KindDivisionByZero
	KindNonRationalBase
	KindRadicalMismatch
	KindMissingDependency
	KindOverflow
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "SyntaxError"
	case KindEmptyExpression:
		return "EmptyExpression"
	case KindUnknownIdentifier:
		return "UnknownIdentifier"
	case KindUnbalancedParens:
		return "UnbalancedParens"
	case KindDivisionByZeroConstant:
		return "DivisionByZeroConstant"
	case KindSelfReference:
		return "SelfReference"
	case KindCircularDependency:
		return "CircularDependency"
	case KindDuplicateID:
		return "DuplicateId"
	case KindDanglingReference:
		return "DanglingReference"
	case KindDivisionByZero:
		return "DivisionByZero"
	case KindNonRationalBase:
		return "NonRationalBase"
	case KindRadicalMismatch:
		return "RadicalMismatch"
	case KindMissingDependency:
		return "MissingDependency"
	case KindOverflow:
		return "Overflow"
	default:
		return "Unknown"
	}
}

// Error is the taxonomy's single concrete type, distinguished by Kind so
// callers can use errors.As/errors.Is instead of string matching.
type Error struct {
	Kind Kind
	Pos  int   // byte offset into source, -1 when not applicable
	Note int   // note id involved, -1 when not applicable
	Path []int // cycle path, for KindCircularDependency
	Msg  string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Pos >= 0 {
		fmt.Fprintf(&b, " (pos %d)", e.Pos)
	}
	if e.Note >= 0 {
		fmt.Fprintf(&b, " (note %d)", e.Note)
	}
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " (path %v)", e.Path)
	}
	return b.String()
}

// Is makes errors.Is(err, coreerr.Sentinel(kind)) work by comparing Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel returns a bare *Error carrying only a Kind, useful with errors.Is.
func Sentinel(k Kind) *Error { return &Error{Kind: k, Pos: -1, Note: -1} }

func Syntax(pos int, msg string) *Error {
	return &Error{Kind: KindSyntax, Pos: pos, Note: -1, Msg: msg}
}

func EmptyExpression() *Error {
	return &Error{Kind: KindEmptyExpression, Pos: -1, Note: -1}
}

func UnknownIdentifier(pos int, name string) *Error {
	return &Error{Kind: KindUnknownIdentifier, Pos: pos, Note: -1, Msg: name}
}

func UnbalancedParens(pos int) *Error {
	return &Error{Kind: KindUnbalancedParens, Pos: pos, Note: -1}
}

func DivisionByZeroConstant(pos int) *Error {
	return &Error{Kind: KindDivisionByZeroConstant, Pos: pos, Note: -1}
}

func SelfReference(note int) *Error {
	return &Error{Kind: KindSelfReference, Pos: -1, Note: note}
}

func Cycle(path []int) *Error {
	return &Error{Kind: KindCircularDependency, Pos: -1, Note: -1, Path: path}
}

func DuplicateID(id int) *Error {
	return &Error{Kind: KindDuplicateID, Pos: -1, Note: id}
}

func DanglingReference(note int) *Error {
	return &Error{Kind: KindDanglingReference, Pos: -1, Note: note}
}

// MissingDependency reports that note has not been evaluated yet, e.g.
// when Liberate is asked to freeze a property before any Reevaluate has
// run.
func MissingDependency(note int) *Error {
	return &Error{Kind: KindMissingDependency, Pos: -1, Note: note}
}

// NumericError never crosses the core boundary as a Go error (spec §7): it
// is recorded against the evaluation record that produced it so the host
// layer can log/report it, while evaluation continues with an approximate
// value.
type NumericError struct {
	Kind     Kind
	Note     int
	Property int
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("%s (note %d, property %d)", e.Kind, e.Note, e.Property)
}
