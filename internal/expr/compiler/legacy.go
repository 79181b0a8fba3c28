package compiler

import (
	"strconv"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/coreerr"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/bytecode"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/rational"
)

// legacyParser compiles the method-chain surface syntax the system this
// module replaces used for its stored expressions (spec §4.4):
//
//	legacyExpr := primary chainOp*
//	chainOp    := '.' 'add' '(' legacyExpr ')'
//	            | '.' 'sub' '(' legacyExpr ')'
//	            | '.' 'mul' '(' legacyExpr ')'
//	            | '.' 'div' '(' legacyExpr ')'
//	            | '.' 'pow' '(' legacyExpr ')'
//	            | '.' 'neg' '(' ')'
//	primary    := 'new' 'Fraction' '(' NUMBER (',' NUMBER)? ')'
//	            | target '.' 'getVariable' '(' STRING ')'
//	            | 'findTempo' '(' target ')'
//	            | 'findMeasureLength' '(' target ')'
//	target     := 'baseNote' | 'getNoteById' '(' NUMBER ')'
//
// It funnels through the same bytecode.Builder as the DSL parser so the
// two front ends produce identical instructions for equivalent programs.
type legacyParser struct {
	toks []token
	pos  int
	b    *bytecode.Builder
}

func compileLegacy(src string) (bytecode.Expression, error) {
	toks, err := lex(src)
	if err != nil {
		return bytecode.Expression{}, err
	}
	p := &legacyParser{toks: toks, b: bytecode.NewBuilder()}
	if err := p.parseChain(); err != nil {
		return bytecode.Expression{}, err
	}
	if p.peek().kind != tEOF {
		return bytecode.Expression{}, syntaxErr(p.peek().pos, "trailing input after expression")
	}
	return p.b.Build(), nil
}

func (p *legacyParser) peek() token    { return p.toks[p.pos] }
func (p *legacyParser) advance() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *legacyParser) expect(k tokenKind, what string) (token, error) {
	if p.peek().kind != k {
		if k == tRParen {
			return token{}, coreerr.UnbalancedParens(p.peek().pos)
		}
		return token{}, syntaxErr(p.peek().pos, "expected "+what)
	}
	return p.advance(), nil
}

func (p *legacyParser) expectKeyword(word string) (token, error) {
	t := p.peek()
	if t.kind != tIdent || t.text != word {
		return token{}, syntaxErr(t.pos, "expected '"+word+"'")
	}
	return p.advance(), nil
}

func (p *legacyParser) parseChain() error {
	if err := p.parsePrimary(); err != nil {
		return err
	}
	for p.peek().kind == tDot {
		p.advance()
		method, err := p.expectIdent()
		if err != nil {
			return err
		}
		if _, err := p.expect(tLParen, "'('"); err != nil {
			return err
		}
		switch method.text {
		case "add":
			if err := p.parseChain(); err != nil {
				return err
			}
			p.b.EmitOp(bytecode.OpAdd)
		case "sub":
			if err := p.parseChain(); err != nil {
				return err
			}
			p.b.EmitOp(bytecode.OpSub)
		case "mul":
			if err := p.parseChain(); err != nil {
				return err
			}
			p.b.EmitOp(bytecode.OpMul)
		case "div":
			if err := p.parseChain(); err != nil {
				return err
			}
			p.b.EmitOp(bytecode.OpDiv)
		case "pow":
			if err := p.parseChain(); err != nil {
				return err
			}
			p.b.EmitOp(bytecode.OpPow)
		case "neg":
			p.b.EmitOp(bytecode.OpNeg)
		default:
			return coreerr.UnknownIdentifier(method.pos, method.text)
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return err
		}
	}
	return nil
}

func (p *legacyParser) parsePrimary() error {
	t := p.peek()
	if t.kind != tIdent {
		return syntaxErr(t.pos, "expected expression")
	}
	switch t.text {
	case "new":
		p.advance()
		if _, err := p.expectKeyword("Fraction"); err != nil {
			return err
		}
		if _, err := p.expect(tLParen, "'('"); err != nil {
			return err
		}
		numTok, err := p.expect(tNumber, "numerator")
		if err != nil {
			return err
		}
		num, convErr := strconv.ParseInt(numTok.num, 10, 64)
		if convErr != nil {
			return syntaxErr(numTok.pos, "number out of range")
		}
		den := int64(1)
		if p.peek().kind == tComma {
			p.advance()
			denTok, err := p.expect(tNumber, "denominator")
			if err != nil {
				return err
			}
			den, convErr = strconv.ParseInt(denTok.num, 10, 64)
			if convErr != nil {
				return syntaxErr(denTok.pos, "number out of range")
			}
			if den == 0 {
				return coreerr.DivisionByZeroConstant(denTok.pos)
			}
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return err
		}
		r, _ := rational.FromPair(num, den)
		p.b.EmitConst(r)
		return nil
	case "findTempo":
		p.advance()
		if _, err := p.expect(tLParen, "'('"); err != nil {
			return err
		}
		id, err := p.parseTarget()
		if err != nil {
			return err
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return err
		}
		p.b.EmitLoadTempo(id)
		return nil
	case "findMeasureLength":
		p.advance()
		if _, err := p.expect(tLParen, "'('"); err != nil {
			return err
		}
		id, err := p.parseTarget()
		if err != nil {
			return err
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return err
		}
		p.b.EmitLoadMeasureLen(id)
		return nil
	case "baseNote", "getNoteById":
		id, err := p.parseTarget()
		if err != nil {
			return err
		}
		if _, err := p.expect(tDot, "'.'"); err != nil {
			return err
		}
		if _, err := p.expectKeyword("getVariable"); err != nil {
			return err
		}
		if _, err := p.expect(tLParen, "'('"); err != nil {
			return err
		}
		nameTok, err := p.expect(tString, "variable name")
		if err != nil {
			return err
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return err
		}
		v, ok := propertyVar(nameTok.text)
		if !ok {
			return coreerr.UnknownIdentifier(nameTok.pos, nameTok.text)
		}
		if id == 0 {
			p.b.EmitLoadBase(v)
		} else {
			p.b.EmitLoadRef(id, v)
		}
		return nil
	default:
		return coreerr.UnknownIdentifier(t.pos, t.text)
	}
}

// parseTarget parses 'baseNote' or 'getNoteById' '(' NUMBER ')', returning
// the referenced note id (0 for base).
func (p *legacyParser) parseTarget() (int, error) {
	t := p.peek()
	if t.kind != tIdent {
		return 0, syntaxErr(t.pos, "expected 'baseNote' or 'getNoteById(...)'")
	}
	switch t.text {
	case "baseNote":
		p.advance()
		return 0, nil
	case "getNoteById":
		p.advance()
		if _, err := p.expect(tLParen, "'('"); err != nil {
			return 0, err
		}
		idTok, err := p.expect(tNumber, "note id")
		if err != nil {
			return 0, err
		}
		id, convErr := strconv.Atoi(idTok.num)
		if convErr != nil {
			return 0, syntaxErr(idTok.pos, "note id out of range")
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return 0, err
		}
		return id, nil
	default:
		return 0, coreerr.UnknownIdentifier(t.pos, t.text)
	}
}

func (p *legacyParser) expectIdent() (token, error) {
	if p.peek().kind != tIdent {
		return token{}, syntaxErr(p.peek().pos, "expected method name")
	}
	return p.advance(), nil
}
