// Package address implements the 20-byte avatar address used throughout the
// Circles trust graph: every vertex in a flow matrix, every token owner, and
// every service request key is one of these.
package address

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Length is the size of an Address in bytes.
const Length = common.AddressLength

// Address is an opaque 20-byte avatar identifier. Comparison is raw,
// unsigned byte-wise ordering on the underlying array; there is no notion
// of checksum casing at this layer.
type Address common.Address

// Zero is the all-zero address.
var Zero Address

// ParseAddress converts a hex string (with or without a "0x" prefix) into an
// Address. Casing is irrelevant: the wire/text form is only normalized at
// ingest, never carried through the core as a string.
func ParseAddress(s string) (Address, error) {
	var a Address
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if len(s) != Length*2 {
		return a, errors.Errorf("address: invalid length %d", len(s))
	}
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return a, errors.Wrap(err, "address: invalid hex")
	}
	return a, nil
}

// BytesToAddress left-pads or truncates b to Length bytes and returns the
// resulting Address.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > Length {
		b = b[len(b)-Length:]
	}
	copy(a[Length-len(b):], b)
	return a
}

// Bytes returns the raw 20-byte form.
func (a Address) Bytes() []byte { return a[:] }

// String renders the canonical "0x"-prefixed lowercase hex form.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Compare returns -1, 0 or 1 comparing a and b as unsigned big-endian
// byte strings — the ordering relation used for vertex indexing (§3, §4.1).
func (a Address) Compare(b Address) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Less reports whether a sorts strictly before b.
func (a Address) Less(b Address) bool { return a.Compare(b) < 0 }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Sort sorts addrs ascending by byte-wise value, in place, and returns it
// for convenience.
func Sort(addrs []Address) []Address {
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })
	return addrs
}

// Set is an ordered, deduplicated collection of addresses used to build the
// vertex index for a flow matrix (§4.1). Insertion order is irrelevant; the
// final view is always byte-wise ascending.
type Set struct {
	m map[Address]struct{}
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{m: make(map[Address]struct{})}
}

// Add inserts a into the set.
func (s *Set) Add(a Address) {
	s.m[a] = struct{}{}
}

// Sorted returns the set's members as a byte-wise ascending slice.
func (s *Set) Sorted() []Address {
	out := make([]Address, 0, len(s.m))
	for a := range s.m {
		out = append(out, a)
	}
	return Sort(out)
}

// Len returns the number of distinct addresses in the set.
func (s *Set) Len() int { return len(s.m) }
