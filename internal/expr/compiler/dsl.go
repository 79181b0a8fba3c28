package compiler

import (
	"strconv"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/coreerr"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/bytecode"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/rational"
)

// dslParser is a recursive-descent parser for the DSL grammar (spec §4.4,
// authoritative BNF):
//
//	expr   := term (('+' | '-') term)*
//	term   := factor (('*' | '/') factor)*
//	factor := unary ('^' factor)?
//	unary  := '-' unary | atom
//	atom   := NUMBER | '(' expr ')' | 'base' '.' IDENT
//	        | '[' NUMBER ']' '.' IDENT
//	        | 'tempo' '(' arg ')' | 'measure' '(' arg ')' | 'beat' '(' arg ')'
//	arg    := 'base' | '[' NUMBER ']'
//
// Unary minus binds inside '^': "-2^2" parses as (-2)^2, since unary is
// parsed (and its '-' consumed) before factor looks for a trailing '^'.
type dslParser struct {
	toks []token
	pos  int
	b    *bytecode.Builder
}

func compileDSL(src string) (bytecode.Expression, error) {
	toks, err := lex(src)
	if err != nil {
		return bytecode.Expression{}, err
	}
	p := &dslParser{toks: toks, b: bytecode.NewBuilder()}
	if err := p.parseExpr(); err != nil {
		return bytecode.Expression{}, err
	}
	if p.peek().kind != tEOF {
		return bytecode.Expression{}, syntaxErr(p.peek().pos, "trailing input after expression")
	}
	return p.b.Build(), nil
}

func (p *dslParser) peek() token   { return p.toks[p.pos] }
func (p *dslParser) advance() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *dslParser) expect(k tokenKind, what string) (token, error) {
	if p.peek().kind != k {
		if k == tRParen {
			return token{}, coreerr.UnbalancedParens(p.peek().pos)
		}
		return token{}, syntaxErr(p.peek().pos, "expected "+what)
	}
	return p.advance(), nil
}

func (p *dslParser) parseExpr() error {
	if err := p.parseTerm(); err != nil {
		return err
	}
	for {
		switch p.peek().kind {
		case tPlus:
			p.advance()
			if err := p.parseTerm(); err != nil {
				return err
			}
			p.b.EmitOp(bytecode.OpAdd)
		case tMinus:
			p.advance()
			if err := p.parseTerm(); err != nil {
				return err
			}
			p.b.EmitOp(bytecode.OpSub)
		default:
			return nil
		}
	}
}

func (p *dslParser) parseTerm() error {
	if err := p.parseFactor(); err != nil {
		return err
	}
	for {
		switch p.peek().kind {
		case tStar:
			p.advance()
			if err := p.parseFactor(); err != nil {
				return err
			}
			p.b.EmitOp(bytecode.OpMul)
		case tSlash:
			divTok := p.peek()
			p.advance()
			zero, err := p.checkDivByZeroConstant()
			if err != nil {
				return err
			}
			if err := p.parseFactor(); err != nil {
				return err
			}
			if zero {
				return coreerr.DivisionByZeroConstant(divTok.pos)
			}
			p.b.EmitOp(bytecode.OpDiv)
		default:
			return nil
		}
	}
}

// checkDivByZeroConstant reports whether the upcoming factor is the bare
// literal 0, a compile-time-detectable division by zero (spec §4.4).
// Division by an expression that merely evaluates to zero at runtime is
// not caught here; that surfaces later as a runtime DivisionByZero.
func (p *dslParser) checkDivByZeroConstant() (bool, error) {
	t := p.peek()
	return t.kind == tNumber && t.num == "0", nil
}

func (p *dslParser) parseFactor() error {
	if err := p.parseUnary(); err != nil {
		return err
	}
	if p.peek().kind == tCaret {
		p.advance()
		if err := p.parseFactor(); err != nil {
			return err
		}
		p.b.EmitOp(bytecode.OpPow)
	}
	return nil
}

func (p *dslParser) parseUnary() error {
	if p.peek().kind == tMinus {
		p.advance()
		if err := p.parseUnary(); err != nil {
			return err
		}
		p.b.EmitOp(bytecode.OpNeg)
		return nil
	}
	return p.parseAtom()
}

func (p *dslParser) parseAtom() error {
	t := p.peek()
	switch t.kind {
	case tNumber:
		p.advance()
		r, err := parseNumberToken(t)
		if err != nil {
			return err
		}
		p.b.EmitConst(r)
		return nil
	case tLParen:
		p.advance()
		if err := p.parseExpr(); err != nil {
			return err
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return err
		}
		return nil
	case tLBracket:
		return p.parseBracketRef()
	case tIdent:
		switch t.text {
		case "base":
			p.advance()
			if _, err := p.expect(tDot, "'.'"); err != nil {
				return err
			}
			name, err := p.expectIdent()
			if err != nil {
				return err
			}
			v, ok := propertyVar(name.text)
			if !ok {
				return coreerr.UnknownIdentifier(name.pos, name.text)
			}
			p.b.EmitLoadBase(v)
			return nil
		case "tempo":
			p.advance()
			id, err := p.parseArgCall()
			if err != nil {
				return err
			}
			p.b.EmitLoadTempo(id)
			return nil
		case "measure":
			p.advance()
			id, err := p.parseArgCall()
			if err != nil {
				return err
			}
			p.b.EmitLoadMeasureLen(id)
			return nil
		case "beat":
			p.advance()
			id, err := p.parseArgCall()
			if err != nil {
				return err
			}
			// beat(x) sugar for 60 / tempo(x) (spec §4.4).
			p.b.EmitConst(rational.FromInt(60))
			p.b.EmitLoadTempo(id)
			p.b.EmitOp(bytecode.OpDiv)
			return nil
		default:
			return coreerr.UnknownIdentifier(t.pos, t.text)
		}
	default:
		return syntaxErr(t.pos, "expected expression")
	}
}

// parseBracketRef parses '[' NUMBER ']' '.' IDENT.
func (p *dslParser) parseBracketRef() error {
	p.advance()
	idTok, err := p.expect(tNumber, "note id")
	if err != nil {
		return err
	}
	if idTok.den != "" {
		return syntaxErr(idTok.pos, "note id must be an integer")
	}
	id, convErr := strconv.Atoi(idTok.num)
	if convErr != nil {
		return syntaxErr(idTok.pos, "note id out of range")
	}
	if _, err := p.expect(tRBracket, "']'"); err != nil {
		return err
	}
	if _, err := p.expect(tDot, "'.'"); err != nil {
		return err
	}
	name, err := p.expectIdent()
	if err != nil {
		return err
	}
	v, ok := propertyVar(name.text)
	if !ok {
		return coreerr.UnknownIdentifier(name.pos, name.text)
	}
	p.b.EmitLoadRef(id, v)
	return nil
}

// parseArgCall parses '(' arg ')' where arg is 'base' or '[' NUMBER ']',
// returning the raw argument note id (0 for base).
func (p *dslParser) parseArgCall() (int, error) {
	if _, err := p.expect(tLParen, "'('"); err != nil {
		return 0, err
	}
	id, err := p.parseArg()
	if err != nil {
		return 0, err
	}
	if _, err := p.expect(tRParen, "')'"); err != nil {
		return 0, err
	}
	return id, nil
}

func (p *dslParser) parseArg() (int, error) {
	t := p.peek()
	switch t.kind {
	case tIdent:
		if t.text != "base" {
			return 0, coreerr.UnknownIdentifier(t.pos, t.text)
		}
		p.advance()
		return 0, nil
	case tLBracket:
		p.advance()
		idTok, err := p.expect(tNumber, "note id")
		if err != nil {
			return 0, err
		}
		id, convErr := strconv.Atoi(idTok.num)
		if convErr != nil {
			return 0, syntaxErr(idTok.pos, "note id out of range")
		}
		if _, err := p.expect(tRBracket, "']'"); err != nil {
			return 0, err
		}
		return id, nil
	default:
		return 0, syntaxErr(t.pos, "expected 'base' or '[id]'")
	}
}

func (p *dslParser) expectIdent() (token, error) {
	if p.peek().kind != tIdent {
		return token{}, syntaxErr(p.peek().pos, "expected identifier")
	}
	return p.advance(), nil
}

func parseNumberToken(t token) (rational.Rational, error) {
	n, err := strconv.ParseInt(t.num, 10, 64)
	if err != nil {
		return rational.Zero, syntaxErr(t.pos, "number out of range")
	}
	if t.den == "" {
		return rational.FromInt(n), nil
	}
	d, err := strconv.ParseInt(t.den, 10, 64)
	if err != nil {
		return rational.Zero, syntaxErr(t.pos, "number out of range")
	}
	r, rerr := rational.FromPair(n, d)
	if rerr != nil {
		return rational.Zero, coreerr.DivisionByZeroConstant(t.pos)
	}
	return r, nil
}
