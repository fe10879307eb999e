// Package amount implements the two numeric domains the pipeline works in:
// U192 (on-chain transfer/edge amounts) and U256 (reported max-flow and
// other protocol-level totals). Narrowing from U256 to U192 happens only at
// the edges of the pipeline (the pathfinder adapter, C5) so that nothing in
// between has to reason about width conversions (spec §9 "Amount widths").
package amount

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/deluXtreme/circles-go/cerrors"
)

// U256 is an unsigned integer in the 256-bit domain (e.g. a pathfinder's
// reported max_flow).
type U256 struct{ i uint256.Int }

// U192 is an unsigned integer in the 192-bit domain (e.g. a single transfer
// step's value, a flow-matrix edge amount).
type U192 struct{ i uint256.Int }

// Zero256 is the additive identity in the 256-bit domain.
var Zero256 = U256{}

// Zero192 is the additive identity in the 192-bit domain.
var Zero192 = U192{}

// FromUint64 lifts a native uint64 into the 256-bit domain.
func FromUint64(v uint64) U256 {
	var u U256
	u.i.SetUint64(v)
	return u
}

// FromUint64U192 lifts a native uint64 into the 192-bit domain; always fits.
func FromUint64U192(v uint64) U192 {
	var u U192
	u.i.SetUint64(v)
	return u
}

// ParseDecimalU256 parses a base-10 string (as returned by the pathfinder
// and token-info services) into a U256.
func ParseDecimalU256(s string) (U256, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return U256{}, errors.Wrapf(err, "amount: invalid decimal %q", s)
	}
	return U256{i: *v}, nil
}

// ParseDecimalU192 parses a base-10 string and narrows it into the 192-bit
// domain, returning cerrors.AmountOutOfDomain if it does not fit. This is
// the boundary check specified in §4.5: "reject entries whose amount
// exceeds the 192-bit domain with an explicit error."
func ParseDecimalU192(s string) (U192, error) {
	wide, err := ParseDecimalU256(s)
	if err != nil {
		return U192{}, err
	}
	return wide.NarrowToU192()
}

// FitsU192 reports whether u's value is representable in 192 bits.
func (u U256) FitsU192() bool {
	return u.i.BitLen() <= 192
}

// NarrowToU192 narrows u into the 192-bit domain, or fails with
// cerrors.AmountOutOfDomain if it does not fit.
func (u U256) NarrowToU192() (U192, error) {
	if !u.FitsU192() {
		return U192{}, &cerrors.AmountOutOfDomain{Domain: "192-bit", Value: u.String()}
	}
	return U192{i: u.i}, nil
}

// Widen lifts u into the 256-bit domain. Always exact.
func (u U192) Widen() U256 {
	return U256{i: u.i}
}

// Add returns a+b in the 256-bit domain.
func (a U256) Add(b U256) U256 {
	var r U256
	r.i.Add(&a.i, &b.i)
	return r
}

// SatSub returns a-b, floored at zero (used for leftover-balance
// computation in §4.4 step 4, which never goes negative by construction
// but is guarded defensively against balance/usage drift).
func (a U256) SatSub(b U256) U256 {
	if a.Cmp(b) <= 0 {
		return Zero256
	}
	var r U256
	r.i.Sub(&a.i, &b.i)
	return r
}

// Mul returns a*b in the 256-bit domain.
func (a U256) Mul(b U256) U256 {
	var r U256
	r.i.Mul(&a.i, &b.i)
	return r
}

// Div returns a/b (integer floor division) in the 256-bit domain.
func (a U256) Div(b U256) U256 {
	var r U256
	r.i.Div(&a.i, &b.i)
	return r
}

// Cmp returns -1, 0 or 1 comparing a and b.
func (a U256) Cmp(b U256) int { return a.i.Cmp(&b.i) }

// Equal reports whether a == b.
func (a U256) Equal(b U256) bool { return a.Cmp(b) == 0 }

// IsZero reports whether u is zero.
func (u U256) IsZero() bool { return u.i.IsZero() }

// String renders u in base 10.
func (u U256) String() string { return u.i.ToBig().String() }

// BigInt returns u as a *big.Int, the form go-ethereum's ABI packer expects
// for uint256/uint192 arguments.
func (u U256) BigInt() *big.Int { return u.i.ToBig() }

// Cmp returns -1, 0 or 1 comparing a and b.
func (a U192) Cmp(b U192) int { return a.i.Cmp(&b.i) }

// Equal reports whether a == b.
func (a U192) Equal(b U192) bool { return a.Cmp(b) == 0 }

// IsZero reports whether u is zero.
func (u U192) IsZero() bool { return u.i.IsZero() }

// String renders u in base 10.
func (u U192) String() string { return u.i.ToBig().String() }

// BigInt returns u as a *big.Int, the form go-ethereum's ABI packer expects
// for uint256/uint192 arguments.
func (u U192) BigInt() *big.Int { return u.i.ToBig() }

// Bytes24 returns u's big-endian 24-byte (192-bit) representation, the form
// the settlement contract's ABI expects for a uint192 argument.
func (u U192) Bytes24() [24]byte {
	var out [24]byte
	b := u.i.Bytes32()
	copy(out[:], b[8:])
	return out
}

// TruncateToMultiple floors u to the nearest multiple of m (m must be
// non-zero). Used by the transfer orchestrator's quantization step (§4.6
// step 1: truncate to a multiple of 10^12).
func TruncateToMultiple(u, m U256) U256 {
	if m.IsZero() {
		return u
	}
	return u.Div(m).Mul(m)
}
