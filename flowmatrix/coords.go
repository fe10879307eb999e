// Package flowmatrix implements the coordinate packer (C1) and flow-matrix
// builder (C2) of spec §4.1/§4.2: the deterministic reduction of an ordered
// transfer path into the vertex-indexed, coordinate-packed matrix a
// settlement contract executes atomically.
package flowmatrix

import "github.com/deluXtreme/circles-go/address"

// VertexIndex assigns a dense u16 index to every distinct address
// referenced by source, sink and the path (spec §4.1). It is pure and
// deterministic: the index of an address is its position in the byte-wise
// ascending sorted list of all referenced addresses.
type VertexIndex struct {
	Vertices []address.Address
	index    map[address.Address]uint16
}

// BuildVertexIndex computes (vertices, index) for the given source, sink and
// path. Vertices is strictly increasing byte-wise ascending.
func BuildVertexIndex(source, sink address.Address, steps []Step) *VertexIndex {
	set := address.NewSet()
	set.Add(source)
	set.Add(sink)
	for _, s := range steps {
		set.Add(s.From)
		set.Add(s.To)
		set.Add(s.TokenOwner)
	}
	sorted := set.Sorted()
	idx := make(map[address.Address]uint16, len(sorted))
	for i, a := range sorted {
		idx[a] = uint16(i)
	}
	return &VertexIndex{Vertices: sorted, index: idx}
}

// Index returns the position of a in the sorted vertex list. Callers must
// only query addresses that were part of the set passed to
// BuildVertexIndex; a miss returns (0, false).
func (v *VertexIndex) Index(a address.Address) (uint16, bool) {
	i, ok := v.index[a]
	return i, ok
}

// Len returns the number of distinct vertices.
func (v *VertexIndex) Len() int { return len(v.Vertices) }

// PackCoordinates serializes a sequence of u16 coordinates as big-endian
// byte pairs, high byte first, with no padding or length prefix (spec
// §4.1). An empty input yields an empty output.
func PackCoordinates(coords []uint16) []byte {
	out := make([]byte, 0, len(coords)*2)
	for _, c := range coords {
		out = append(out, byte(c>>8), byte(c))
	}
	return out
}
