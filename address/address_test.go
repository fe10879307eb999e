package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("0x0102030405060708090a0b0c0d0e0f1011121314")
	require.NoError(t, err)
	assert.Equal(t, "0x0102030405060708090a0b0c0d0e0f1011121314", a.String())

	b, err := ParseAddress("0102030405060708090a0b0c0d0e0f1011121314")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = ParseAddress("0x1234")
	assert.Error(t, err)
}

func TestBytesToAddress(t *testing.T) {
	a := BytesToAddress([]byte("avatar"))
	assert.Equal(t, "avatar", string(a[Length-6:]))
}

func TestOrderingIsByteWise(t *testing.T) {
	a := BytesToAddress([]byte{0x00, 0x01})
	b := BytesToAddress([]byte{0x00, 0x02})
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestSetSortedIsStrictlyIncreasing(t *testing.T) {
	s := NewSet()
	addrs := []Address{
		BytesToAddress([]byte{3}),
		BytesToAddress([]byte{1}),
		BytesToAddress([]byte{2}),
		BytesToAddress([]byte{1}), // duplicate
	}
	for _, a := range addrs {
		s.Add(a)
	}
	sorted := s.Sorted()
	require.Len(t, sorted, 3)
	for i := 1; i < len(sorted); i++ {
		assert.True(t, sorted[i-1].Less(sorted[i]))
	}
}

func TestMarshalTextRoundTrip(t *testing.T) {
	a := BytesToAddress([]byte("avatar"))
	text, err := a.MarshalText()
	require.NoError(t, err)

	var b Address
	require.NoError(t, b.UnmarshalText(text))
	assert.Equal(t, a, b)
}
