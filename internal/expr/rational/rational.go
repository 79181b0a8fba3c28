// Package rational implements exact arithmetic over signed/unsigned
// arbitrary-precision fractions (spec §4.1, C1). Every constructor and
// arithmetic operation returns a value already reduced by gcd; equality is
// structural on that reduced form. No third-party bignum/rational library
// appears anywhere in the retrieval pack (checked core-coin-go-core,
// go-ethereum, FibFastDoubling — all reach for math/big directly), so this
// package is the one deliberately stdlib-only piece of the core; see
// DESIGN.md.
package rational

import (
	"fmt"
	"math/big"

	"github.com/3merillon/rmt-compose-poc-sub004/internal/coreerr"
)

// Rational is a reduced fraction with a non-negative denominator.
type Rational struct {
	num *big.Int
	den *big.Int
}

var (
	bigZero = big.NewInt(0)
	bigOne  = big.NewInt(1)
)

// Zero is the additive identity.
var Zero = Rational{num: big.NewInt(0), den: big.NewInt(1)}

// One is the multiplicative identity.
var One = Rational{num: big.NewInt(1), den: big.NewInt(1)}

func reduce(n, d *big.Int) Rational {
	if d.Sign() == 0 {
		panic("rational: zero denominator reached reduce (caller must validate)")
	}
	if d.Sign() < 0 {
		n = new(big.Int).Neg(n)
		d = new(big.Int).Neg(d)
	}
	if n.Sign() == 0 {
		return Rational{num: big.NewInt(0), den: big.NewInt(1)}
	}
	g := new(big.Int).GCD(nil, nil, new(big.Int).Abs(n), d)
	if g.Cmp(bigOne) != 0 {
		n = new(big.Int).Quo(n, g)
		d = new(big.Int).Quo(d, g)
	}
	return Rational{num: n, den: d}
}

// FromInt builds the rational n/1.
func FromInt(n int64) Rational {
	return Rational{num: big.NewInt(n), den: big.NewInt(1)}
}

// FromBigInt builds the rational n/1 from an arbitrary-precision integer.
func FromBigInt(n *big.Int) Rational {
	return Rational{num: new(big.Int).Set(n), den: big.NewInt(1)}
}

// FromPair builds n/d, rejecting a zero denominator.
func FromPair(n, d int64) (Rational, error) {
	if d == 0 {
		return Rational{}, coreerr.Sentinel(coreerr.KindDivisionByZero)
	}
	return reduce(big.NewInt(n), big.NewInt(d)), nil
}

// FromBigPair builds n/d from arbitrary-precision integers.
func FromBigPair(n, d *big.Int) (Rational, error) {
	if d.Sign() == 0 {
		return Rational{}, coreerr.Sentinel(coreerr.KindDivisionByZero)
	}
	return reduce(new(big.Int).Set(n), new(big.Int).Set(d)), nil
}

func (r Rational) ensure() Rational {
	if r.den == nil {
		return Zero
	}
	return r
}

// Num returns the reduced numerator.
func (r Rational) Num() *big.Int { return new(big.Int).Set(r.ensure().num) }

// Den returns the reduced, always-positive denominator.
func (r Rational) Den() *big.Int { return new(big.Int).Set(r.ensure().den) }

func (r Rational) Add(o Rational) Rational {
	r, o = r.ensure(), o.ensure()
	n := new(big.Int).Add(new(big.Int).Mul(r.num, o.den), new(big.Int).Mul(o.num, r.den))
	d := new(big.Int).Mul(r.den, o.den)
	return reduce(n, d)
}

func (r Rational) Sub(o Rational) Rational {
	return r.Add(o.Neg())
}

func (r Rational) Mul(o Rational) Rational {
	r, o = r.ensure(), o.ensure()
	n := new(big.Int).Mul(r.num, o.num)
	d := new(big.Int).Mul(r.den, o.den)
	return reduce(n, d)
}

func (r Rational) Div(o Rational) (Rational, error) {
	o = o.ensure()
	if o.num.Sign() == 0 {
		return Rational{}, coreerr.Sentinel(coreerr.KindDivisionByZero)
	}
	r = r.ensure()
	n := new(big.Int).Mul(r.num, o.den)
	d := new(big.Int).Mul(r.den, o.num)
	return reduce(n, d), nil
}

func (r Rational) Neg() Rational {
	r = r.ensure()
	return Rational{num: new(big.Int).Neg(r.num), den: new(big.Int).Set(r.den)}
}

// PowInt raises r to an exact integer power (positive, negative, or zero).
func (r Rational) PowInt(e int64) (Rational, error) {
	r = r.ensure()
	if e == 0 {
		return One, nil
	}
	neg := e < 0
	abs := e
	if neg {
		abs = -e
	}
	n := new(big.Int).Exp(r.num, big.NewInt(abs), nil)
	d := new(big.Int).Exp(r.den, big.NewInt(abs), nil)
	if neg {
		if n.Sign() == 0 {
			return Rational{}, coreerr.Sentinel(coreerr.KindDivisionByZero)
		}
		n, d = d, n
	}
	return reduce(n, d), nil
}

func (r Rational) Cmp(o Rational) int {
	r, o = r.ensure(), o.ensure()
	lhs := new(big.Int).Mul(r.num, o.den)
	rhs := new(big.Int).Mul(o.num, r.den)
	return lhs.Cmp(rhs)
}

func (r Rational) Equals(o Rational) bool {
	return r.Cmp(o) == 0
}

func (r Rational) IsZero() bool { return r.ensure().num.Sign() == 0 }

func (r Rational) Sign() int { return r.ensure().num.Sign() }

// IsInteger reports whether the reduced denominator is 1.
func (r Rational) IsInteger() bool { return r.ensure().den.Cmp(bigOne) == 0 }

// IsPositiveInteger reports whether r is a positive integer (a valid
// symbolic-power base per spec §3).
func (r Rational) IsPositiveInteger() bool {
	r = r.ensure()
	return r.den.Cmp(bigOne) == 0 && r.num.Sign() > 0
}

// Int64 returns the reduced numerator as an int64, valid only when
// IsInteger() and the value fits.
func (r Rational) Int64() int64 { return r.ensure().num.Int64() }

// Float64 returns a floating-point approximation, used only for reporting
// corrupted/irrational values — never for core arithmetic.
func (r Rational) Float64() float64 {
	r = r.ensure()
	f := new(big.Rat).SetFrac(r.num, r.den)
	v, _ := f.Float64()
	return v
}

func (r Rational) String() string {
	r = r.ensure()
	if r.den.Cmp(bigOne) == 0 {
		return r.num.String()
	}
	return fmt.Sprintf("%s/%s", r.num.String(), r.den.String())
}
