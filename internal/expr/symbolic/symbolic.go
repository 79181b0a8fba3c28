// Package symbolic implements the symbolic-power value c·∏ bᵢ^eᵢ of spec
// §4.2 (C2): a rational coefficient times a sorted, deduplicated set of
// (positive-integer base, non-zero rational exponent) terms. Like-base
// multiplication adds exponents; integer exponents always fold back into
// the coefficient, so a value whose Terms slice is empty is always a pure
// rational and round-trips through Rational() exactly.
package symbolic

import (
	"math"
	"sort"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/coreerr"
	"github.com/3merillon/rmt-compose-poc-sub004/internal/expr/rational"
)

// Term is one base^exponent factor. Base is always a positive integer;
// Exp is never zero (a zero exponent collapses the term away entirely).
type Term struct {
	Base int64
	Exp  rational.Rational
}

// Power is c·∏ bᵢ^eᵢ. Terms is sorted ascending by Base with unique bases.
// Irrational marks a value produced by an addition/subtraction the algebra
// could not resolve exactly (spec §4.2, "corruption boundary"); Approx then
// carries a numeric approximation for visualization.
type Power struct {
	Coeff      rational.Rational
	Terms      []Term
	Irrational bool
	Approx     float64
}

// FromRational lifts a plain rational into a pure-rational Power (empty
// term set).
func FromRational(r rational.Rational) Power {
	return Power{Coeff: r}
}

// IsPureRational reports whether p carries no symbolic terms.
func (p Power) IsPureRational() bool {
	return !p.Irrational && len(p.Terms) == 0
}

// Rational extracts the coefficient when p is a pure rational.
func (p Power) Rational() (rational.Rational, bool) {
	if p.IsPureRational() {
		return p.Coeff, true
	}
	return rational.Zero, false
}

// Float64 returns a numeric approximation, exact when p is a pure
// rational and otherwise (or when Irrational) a floating-point estimate.
func (p Power) Float64() float64 {
	if p.Irrational {
		return p.Approx
	}
	v := p.Coeff.Float64()
	for _, t := range p.Terms {
		v *= math.Pow(float64(t.Base), t.Exp.Float64())
	}
	return v
}

func cloneTerms(ts []Term) []Term {
	out := make([]Term, len(ts))
	copy(out, ts)
	return out
}

func findTerm(ts []Term, base int64) (int, bool) {
	i := sort.Search(len(ts), func(i int) bool { return ts[i].Base >= base })
	if i < len(ts) && ts[i].Base == base {
		return i, true
	}
	return i, false
}

func insertTerm(ts []Term, t Term) []Term {
	i, found := findTerm(ts, t.Base)
	if found {
		// Should not happen: callers merge exponents before inserting.
		ts[i] = t
		return ts
	}
	ts = append(ts, Term{})
	copy(ts[i+1:], ts[i:len(ts)-1])
	ts[i] = t
	return ts
}

// Pow implements spec §4.2's pow(base, exp): integer exponents fold into
// the coefficient; a non-integer exponent requires a positive-integer
// base and produces a new term; anything else is NonRationalBase.
func Pow(base, exp rational.Rational) (Power, error) {
	if exp.IsZero() {
		return Power{Coeff: rational.One}, nil
	}
	if exp.IsInteger() {
		c, err := base.PowInt(exp.Int64())
		if err != nil {
			return Power{}, err
		}
		return Power{Coeff: c}, nil
	}
	if !base.IsPositiveInteger() {
		return Power{}, coreerr.Sentinel(coreerr.KindNonRationalBase)
	}
	return Power{Coeff: rational.One, Terms: []Term{{Base: base.Int64(), Exp: exp}}}, nil
}

// foldIntegerTerms multiplies every term whose exponent is a (non-zero)
// integer into coeff and drops it, generalizing the zero-exponent drop
// above to spec §4.2's full rule: "integer exponents collapse into c".
// Base is always a positive integer (the Term invariant), so raising it
// to an exact integer power never fails.
func foldIntegerTerms(coeff rational.Rational, terms []Term) (rational.Rational, []Term) {
	out := terms[:0:0]
	for _, t := range terms {
		if t.Exp.IsInteger() {
			c, _ := rational.FromInt(t.Base).PowInt(t.Exp.Int64())
			coeff = coeff.Mul(c)
			continue
		}
		out = append(out, t)
	}
	return coeff, out
}

// Mul multiplies coefficients and unions term sets, adding exponents on
// shared bases, dropping any whose exponent collapses to zero, and
// folding any that collapse to a non-zero integer back into the
// coefficient.
func (p Power) Mul(o Power) Power {
	out := Power{Coeff: p.Coeff.Mul(o.Coeff), Terms: cloneTerms(p.Terms)}
	for _, t := range o.Terms {
		if i, found := findTerm(out.Terms, t.Base); found {
			sum := out.Terms[i].Exp.Add(t.Exp)
			if sum.IsZero() {
				out.Terms = append(out.Terms[:i], out.Terms[i+1:]...)
			} else {
				out.Terms[i].Exp = sum
			}
		} else {
			out.Terms = insertTerm(out.Terms, t)
		}
	}
	out.Coeff, out.Terms = foldIntegerTerms(out.Coeff, out.Terms)
	return out
}

// Inverse returns 1/p when p is invertible (non-zero coefficient).
func (p Power) Inverse() (Power, error) {
	if p.Coeff.IsZero() {
		return Power{}, coreerr.Sentinel(coreerr.KindDivisionByZero)
	}
	inv, err := p.Coeff.PowInt(-1)
	if err != nil {
		return Power{}, err
	}
	out := Power{Coeff: inv, Terms: cloneTerms(p.Terms)}
	for i := range out.Terms {
		out.Terms[i].Exp = out.Terms[i].Exp.Neg()
	}
	return out, nil
}

// Div multiplies by the inverse of o.
func (p Power) Div(o Power) (Power, error) {
	inv, err := o.Inverse()
	if err != nil {
		return Power{}, err
	}
	return p.Mul(inv), nil
}

// Neg flips the coefficient's sign.
func (p Power) Neg() Power {
	return Power{Coeff: p.Coeff.Neg(), Terms: cloneTerms(p.Terms), Irrational: p.Irrational, Approx: -p.Approx}
}

func termSetEqual(a, b []Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Base != b[i].Base || !a[i].Exp.Equals(b[i].Exp) {
			return false
		}
	}
	return true
}

// Add implements spec §4.2's addition rule: succeeds only when both
// operands carry identical term sets, so the coefficients simply combine;
// otherwise the result is irrational-corrupted and carries a numeric
// approximation rather than aborting (spec treats this as the algebra's
// corruption boundary, not a Go error — see DESIGN.md open question #1).
func (p Power) Add(o Power) Power {
	if !p.Irrational && !o.Irrational && termSetEqual(p.Terms, o.Terms) {
		return Power{Coeff: p.Coeff.Add(o.Coeff), Terms: cloneTerms(p.Terms)}
	}
	return Power{Irrational: true, Approx: p.Float64() + o.Float64()}
}

// Sub is Add(p, Neg(o)).
func (p Power) Sub(o Power) Power {
	return p.Add(o.Neg())
}

// PowInt raises a (possibly symbolic) value to an exact integer power by
// scaling every term's exponent, generalizing spec §4.2's pow rule (which
// is stated for a plain rational base) to an already-symbolic base. This
// stays exact: (2^(1/12))^12 scales the term exponent to 1/12*12 = 1, a
// non-zero integer, which foldIntegerTerms then multiplies into the
// coefficient, leaving a pure rational per spec §8's worked example.
func (p Power) PowInt(e int64) (Power, error) {
	c, err := p.Coeff.PowInt(e)
	if err != nil {
		return Power{}, err
	}
	if e == 0 {
		return Power{Coeff: c}, nil
	}
	terms := make([]Term, 0, len(p.Terms))
	for _, t := range p.Terms {
		terms = append(terms, Term{Base: t.Base, Exp: t.Exp.Mul(rational.FromInt(e))})
	}
	c, terms = foldIntegerTerms(c, terms)
	return Power{Coeff: c, Terms: terms}, nil
}
