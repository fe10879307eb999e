// Package currency implements the demurraged <-> static (inflationary)
// atto-unit conversion (spec §4.3, C3). It is pure, deterministic given a
// unix timestamp, and uses exact big-integer arithmetic throughout — no
// floating point ever touches the conversion path.
package currency

import "math/big"

const (
	// SecondsPerDay is the length of one Circles "day" in seconds.
	SecondsPerDay int64 = 86400

	// EpochUnix is the protocol's day-zero instant (2020-10-15T00:00:00Z).
	EpochUnix int64 = 1_602_720_000
)

// gamma36, beta36 and one36 are fixed-point constants scaled by 10^36.
// gamma36 is 0.93^(1/365.25) (the daily demurrage multiplier) rounded
// half-up to 36 decimal places; beta36 is its reciprocal. These literals are
// carried exactly from the reference implementation.
var (
	gamma36 = mustBig("999801332008598957430613406568191166")
	beta36  = mustBig("1000198707468214629156271489013303962")
	one36   = mustBig("1000000000000000000000000000000000000")
)

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("currency: invalid constant literal " + s)
	}
	return v
}

// DayIndex returns the (possibly negative) Circles day index for a unix
// timestamp: floor((t - EpochUnix) / 86400).
func DayIndex(unixSeconds int64) int64 {
	delta := unixSeconds - EpochUnix
	day := delta / SecondsPerDay
	if delta%SecondsPerDay != 0 && delta < 0 {
		day--
	}
	return day
}

// pow raises base (10^36-scaled) to a non-negative integer exponent, using
// binary exponentiation with a rescale-by-10^36 after every multiplication,
// matching the source's pow36 exactly.
func pow(base *big.Int, exp int64) *big.Int {
	result := new(big.Int).Set(one36)
	b := new(big.Int).Set(base)
	e := exp
	for e > 0 {
		if e&1 == 1 {
			result.Mul(result, b)
			result.Div(result, one36)
		}
		b.Mul(b, b)
		b.Div(b, one36)
		e >>= 1
	}
	return result
}

// DemurragedToStatic converts a demurraged atto-circles amount into its
// static (inflationary) equivalent at time t. Negative day indices (before
// EpochUnix) are the identity.
func DemurragedToStatic(x *big.Int, t int64) *big.Int {
	day := DayIndex(t)
	if day < 0 {
		return new(big.Int).Set(x)
	}
	factor := pow(beta36, day)
	out := new(big.Int).Mul(x, factor)
	return out.Div(out, one36)
}

// StaticToDemurraged converts a static (inflationary) atto-circles amount
// into its demurraged equivalent at time t. Negative day indices (before
// EpochUnix) are the identity.
func StaticToDemurraged(x *big.Int, t int64) *big.Int {
	day := DayIndex(t)
	if day < 0 {
		return new(big.Int).Set(x)
	}
	factor := pow(gamma36, day)
	out := new(big.Int).Mul(x, factor)
	return out.Div(out, one36)
}
