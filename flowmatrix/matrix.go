package flowmatrix

import (
	"github.com/deluXtreme/circles-go/address"
	"github.com/deluXtreme/circles-go/amount"
	"github.com/deluXtreme/circles-go/cerrors"
)

// MaxVertices is the size of the u16 vertex-index space (spec §3: a vertex
// index is a u16). Build accepts at most MaxVertices-1 (65535) distinct
// vertices.
const MaxVertices = 1 << 16

// Step is a single hop of a path, already narrowed to the 192-bit amount
// domain (spec §3 TransferStep). from == to is permitted (self-loops);
// Value == 0 is permitted and round-trips.
type Step struct {
	From       address.Address
	To         address.Address
	TokenOwner address.Address
	Value      amount.U192
}

// FlowEdge is (stream_sink_id, amount) per spec §3. StreamSinkID == 1 marks
// a terminal edge (the final hop into stream 1's sink); 0 marks a
// non-terminal edge.
type FlowEdge struct {
	StreamSinkID uint16
	Amount       amount.U192
}

// Stream bundles the terminal edges attributable to one logical payment.
// This package only ever emits a single stream (spec §3: "multi-stream
// composition is a non-goal here").
type Stream struct {
	SourceCoordinate uint16
	FlowEdgeIDs      []uint16
	Data             []byte
}

// FlowMatrix is the in-memory product of the flow-matrix builder (spec §3).
// It is constructed per transfer intent and consumed once by the ABI
// encoder; it owns no shared state and is never mutated after Build
// returns (except for the orchestrator's tx_data injection into Streams[0],
// which is an explicit, documented exception — see transfer.Builder).
type FlowMatrix struct {
	Vertices         []address.Address
	Edges            []FlowEdge
	Streams          []Stream
	Packed           []byte
	SourceCoordinate uint16
}

// Build implements C2: it reduces (source, sink, expectedValue, path) into
// a FlowMatrix, or fails with *cerrors.CapacityExceeded / *cerrors.Imbalanced.
//
// Algorithm (spec §4.2):
//  1. index vertices via C1, rejecting paths with >65535 distinct vertices.
//  2. build one FlowEdge per step, marking edges landing on sink as terminal.
//  3. promote an edge to terminal if none landed on sink (last To==sink
//     edge wins; otherwise the final edge in the path).
//  4. require the terminal edges' amounts sum to expectedValue.
//  5. emit the single stream referencing the terminal edges, ascending.
//  6. pack (token_owner, from, to) index triples in path order.
func Build(source, sink address.Address, expectedValue amount.U256, path []Step) (*FlowMatrix, error) {
	idx := BuildVertexIndex(source, sink, path)
	if idx.Len() > MaxVertices-1 {
		return nil, &cerrors.CapacityExceeded{Count: idx.Len()}
	}

	edges := make([]FlowEdge, len(path))
	for i, s := range path {
		sinkID := uint16(0)
		if s.To == sink {
			sinkID = 1
		}
		edges[i] = FlowEdge{StreamSinkID: sinkID, Amount: s.Value}
	}

	hasTerminal := false
	for _, e := range edges {
		if e.StreamSinkID == 1 {
			hasTerminal = true
			break
		}
	}
	if !hasTerminal && len(edges) > 0 {
		promote := len(edges) - 1
		for i := len(path) - 1; i >= 0; i-- {
			if path[i].To == sink {
				promote = i
				break
			}
		}
		edges[promote].StreamSinkID = 1
	}

	terminalSum := amount.Zero256
	var termEdgeIDs []uint16
	for i, e := range edges {
		if e.StreamSinkID == 1 {
			terminalSum = terminalSum.Add(e.Amount.Widen())
			termEdgeIDs = append(termEdgeIDs, uint16(i))
		}
	}
	if !terminalSum.Equal(expectedValue) {
		return nil, &cerrors.Imbalanced{TerminalSum: terminalSum.String(), Expected: expectedValue.String()}
	}

	sourceCoord, _ := idx.Index(source)

	stream := Stream{
		SourceCoordinate: sourceCoord,
		FlowEdgeIDs:      termEdgeIDs,
		Data:             nil,
	}

	coords := make([]uint16, 0, len(path)*3)
	for _, s := range path {
		tokenOwnerIdx, _ := idx.Index(s.TokenOwner)
		fromIdx, _ := idx.Index(s.From)
		toIdx, _ := idx.Index(s.To)
		coords = append(coords, tokenOwnerIdx, fromIdx, toIdx)
	}

	return &FlowMatrix{
		Vertices:         idx.Vertices,
		Edges:            edges,
		Streams:          []Stream{stream},
		Packed:           PackCoordinates(coords),
		SourceCoordinate: sourceCoord,
	}, nil
}

// CheckNetting is the optional, opt-in diagnostic from SPEC_FULL.md's
// supplemented features: it verifies that a path's per-vertex net flow is
// consistent with source being the sole net-negative vertex and sink the
// sole net-positive one (or, if source == sink, that every vertex nets to
// zero). It sums actual edge amounts per vertex (not just edge presence),
// so a vertex whose inflow and outflow edge counts happen to match but whose
// amounts don't is still caught. It participates in no control flow unless
// a caller opts in (transfer.Options.VerifyNetting); Build above never
// calls it.
func CheckNetting(source, sink address.Address, path []Step) error {
	inflow := map[address.Address]amount.U256{}
	outflow := map[address.Address]amount.U256{}
	vertices := address.NewSet()
	for _, s := range path {
		vertices.Add(s.From)
		vertices.Add(s.To)
		outflow[s.From] = outflow[s.From].Add(s.Value.Widen())
		inflow[s.To] = inflow[s.To].Add(s.Value.Widen())
	}

	// net returns a vertex's |inflow - outflow| and whether outflow exceeds
	// inflow, since amount.U256 has no signed representation.
	net := func(v address.Address) (magnitude amount.U256, negative bool) {
		in, out := inflow[v], outflow[v]
		if in.Cmp(out) >= 0 {
			return in.SatSub(out), false
		}
		return out.SatSub(in), true
	}

	if source == sink {
		for _, v := range vertices.Sorted() {
			magnitude, _ := net(v)
			if !magnitude.IsZero() {
				return &cerrors.Imbalanced{TerminalSum: v.String(), Expected: "0 (coincident source/sink)"}
			}
		}
		return nil
	}

	for _, v := range vertices.Sorted() {
		magnitude, negative := net(v)
		switch v {
		case source:
			if !negative || magnitude.IsZero() {
				return &cerrors.Imbalanced{TerminalSum: "source net " + v.String(), Expected: "net negative"}
			}
		case sink:
			if negative || magnitude.IsZero() {
				return &cerrors.Imbalanced{TerminalSum: "sink net " + v.String(), Expected: "net positive"}
			}
		default:
			if !magnitude.IsZero() {
				return &cerrors.Imbalanced{TerminalSum: "vertex net " + v.String(), Expected: "0"}
			}
		}
	}
	return nil
}
