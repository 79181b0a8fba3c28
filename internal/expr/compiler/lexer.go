package compiler

import (
	"strings"
)

type tokenKind int

const (
	tEOF tokenKind = iota
	tNumber
	tIdent
	tPlus
	tMinus
	tStar
	tSlash
	tCaret
	tLParen
	tRParen
	tLBracket
	tRBracket
	tDot
	tComma
	tString
)

type token struct {
	kind tokenKind
	pos  int
	text string
	// for tNumber: numerator/denominator text, den empty means denominator 1
	num, den string
}

// lex tokenizes DSL source (spec §4.4 grammar). It knows nothing about
// grammar rules — that is the parser's job — mirroring the teacher's own
// split between scanning (magda_dsl_parser.go's rune-by-rune state
// machines) and interpretation.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	n := len(src)
	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '+':
			toks = append(toks, token{kind: tPlus, pos: i})
			i++
		case c == '-':
			toks = append(toks, token{kind: tMinus, pos: i})
			i++
		case c == '*':
			toks = append(toks, token{kind: tStar, pos: i})
			i++
		case c == '/':
			toks = append(toks, token{kind: tSlash, pos: i})
			i++
		case c == '^':
			toks = append(toks, token{kind: tCaret, pos: i})
			i++
		case c == '(':
			toks = append(toks, token{kind: tLParen, pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tRParen, pos: i})
			i++
		case c == '[':
			toks = append(toks, token{kind: tLBracket, pos: i})
			i++
		case c == ']':
			toks = append(toks, token{kind: tRBracket, pos: i})
			i++
		case c == '.':
			toks = append(toks, token{kind: tDot, pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tComma, pos: i})
			i++
		case isDigit(c):
			start := i
			for i < n && isDigit(src[i]) {
				i++
			}
			numText := src[start:i]
			denText := ""
			if i < n && src[i] == '/' && i+1 < n && isDigit(src[i+1]) {
				i++
				dstart := i
				for i < n && isDigit(src[i]) {
					i++
				}
				denText = src[dstart:i]
			}
			toks = append(toks, token{kind: tNumber, pos: start, num: numText, den: denText})
		case c == '\'' || c == '"':
			quote := c
			start := i
			i++
			var sb strings.Builder
			closed := false
			for i < n {
				if src[i] == '\\' && i+1 < n {
					sb.WriteByte(src[i+1])
					i += 2
					continue
				}
				if src[i] == quote {
					i++
					closed = true
					break
				}
				sb.WriteByte(src[i])
				i++
			}
			if !closed {
				return nil, syntaxErr(start, "unterminated string literal")
			}
			toks = append(toks, token{kind: tString, pos: start, text: sb.String()})
		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tIdent, pos: start, text: src[start:i]})
		default:
			return nil, syntaxErr(i, "unexpected character '"+string(c)+"'")
		}
	}
	toks = append(toks, token{kind: tEOF, pos: n})
	return toks, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

// looksLikeDSL sniffs which surface syntax a source string uses (spec
// §4.4): presence of legacy vocabulary (`new Fraction(`, `.mul(`, etc.)
// selects the legacy method-chain grammar; anything else is tried as DSL.
func looksLikeDSL(src string) bool {
	legacyMarkers := []string{"new Fraction(", ".mul(", ".add(", ".sub(", ".div(", ".neg(", ".pow(", "getVariable(", "findTempo(", "findMeasureLength(", "baseNote", "getNoteById("}
	for _, m := range legacyMarkers {
		if strings.Contains(src, m) {
			return false
		}
	}
	return true
}
