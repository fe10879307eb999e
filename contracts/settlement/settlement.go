// Package settlement implements C7: it binds a flowmatrix.FlowMatrix and
// the wrapper reconciler's unwrap/rewrap calls to the settlement contract's
// ABI. It carries no business logic of its own — every amount, address and
// ordering decision was already made by C2/C4; this package only encodes,
// directly against github.com/ethereum/go-ethereum/accounts/abi.
package settlement

import (
	"fmt"
	"math/big"
	"strings"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/deluXtreme/circles-go/address"
	"github.com/deluXtreme/circles-go/amount"
	"github.com/deluXtreme/circles-go/flowmatrix"
	"github.com/deluXtreme/circles-go/wrapper"
)

// CircleType is the settlement Hub's "_type" argument to wrap, distinguishing
// the two currency representations C3 converts between (grounded on
// original_source/crates/transfers/src/builder.rs's
// "_type: 1u8, // Inflationary").
type CircleType uint8

const (
	// CircleTypeDemurraged requests a demurraged wrapper on wrap.
	CircleTypeDemurraged CircleType = 0
	// CircleTypeInflationary requests an inflationary wrapper on wrap.
	CircleTypeInflationary CircleType = 1
)

// hubABIJSON describes the Hub's flow-matrix settlement surface: the
// operateFlowMatrix function C6 calls for every transfer, its "redeem"
// sibling (spec §4.7: "prepends a stream-source coordinate", here appended
// as the ABI's trailing argument per the function's parameter order),
// setApprovalForAll (the conservative approval gate of §4.6 step 7), and
// wrap (used to re-wrap inflationary leftovers, §4.4 step 4).
const hubABIJSON = `[
	{
		"type": "function",
		"name": "operateFlowMatrix",
		"inputs": [
			{"name": "_flowVertices", "type": "address[]"},
			{"name": "_flow", "type": "tuple[]", "components": [
				{"name": "streamSinkId", "type": "uint16"},
				{"name": "amount", "type": "uint192"}
			]},
			{"name": "_streams", "type": "tuple[]", "components": [
				{"name": "sourceCoordinate", "type": "uint16"},
				{"name": "flowEdgeIds", "type": "uint16[]"},
				{"name": "data", "type": "bytes"}
			]},
			{"name": "_packedCoordinates", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "operateFlowMatrixRedeem",
		"inputs": [
			{"name": "_flowVertices", "type": "address[]"},
			{"name": "_flow", "type": "tuple[]", "components": [
				{"name": "streamSinkId", "type": "uint16"},
				{"name": "amount", "type": "uint192"}
			]},
			{"name": "_streams", "type": "tuple[]", "components": [
				{"name": "sourceCoordinate", "type": "uint16"},
				{"name": "flowEdgeIds", "type": "uint16[]"},
				{"name": "data", "type": "bytes"}
			]},
			{"name": "_packedCoordinates", "type": "bytes"},
			{"name": "_sourceCoordinate", "type": "uint16"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "setApprovalForAll",
		"inputs": [
			{"name": "_operator", "type": "address"},
			{"name": "_approved", "type": "bool"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "isApprovedForAll",
		"inputs": [
			{"name": "_truster", "type": "address"},
			{"name": "_operator", "type": "address"}
		],
		"outputs": [{"name": "", "type": "bool"}]
	},
	{
		"type": "function",
		"name": "wrap",
		"inputs": [
			{"name": "_avatar", "type": "address"},
			{"name": "_amount", "type": "uint256"},
			{"name": "_type", "type": "uint8"}
		],
		"outputs": [{"name": "", "type": "address"}]
	}
]`

// wrapperABIJSON describes the single function a wrapper ERC20 (demurraged
// or inflationary) exposes for unwinding back to the underlying avatar's
// personal token: unwrap(uint256). Both wrapper kinds share this signature
// (original_source/crates/transfers/src/builder.rs calls
// DemurrageCircles::unwrapCall and InflationaryCircles::unwrapCall with an
// identical single-field argument); only the amount's currency domain
// differs, which C4 already resolved before this package sees it.
const wrapperABIJSON = `[
	{
		"type": "function",
		"name": "unwrap",
		"inputs": [{"name": "_amount", "type": "uint256"}],
		"outputs": []
	}
]`

var hubABI = mustParseABI(hubABIJSON)
var wrapperABI = mustParseABI(wrapperABIJSON)

func mustParseABI(data string) ethabi.ABI {
	a, err := ethabi.JSON(strings.NewReader(data))
	if err != nil {
		panic(fmt.Errorf("settlement: load ABI: %w", err))
	}
	return a
}

// encodeCall looks up name in a and packs args behind its 4-byte selector.
func encodeCall(a ethabi.ABI, name string, args ...interface{}) ([]byte, error) {
	m, ok := a.Methods[name]
	if !ok {
		return nil, fmt.Errorf("settlement: %s not found in ABI", name)
	}
	packed, err := m.Inputs.Pack(args...)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, len(m.ID)+len(packed))
	data = append(data, m.ID...)
	data = append(data, packed...)
	return data, nil
}

// flowEdgeArg and streamArg mirror the Hub's tuple components field-for-field
// so go-ethereum's ABI packer can match them by name (a Go struct field is
// matched to a component either by its `abi` tag or by its capitalized
// name).
type flowEdgeArg struct {
	StreamSinkId uint16   `abi:"streamSinkId"`
	Amount       *big.Int `abi:"amount"`
}

type streamArg struct {
	SourceCoordinate uint16   `abi:"sourceCoordinate"`
	FlowEdgeIds      []uint16 `abi:"flowEdgeIds"`
	Data             []byte   `abi:"data"`
}

func toEthAddress(a address.Address) common.Address {
	return common.Address(a)
}

func toVertexArgs(vertices []address.Address) []common.Address {
	out := make([]common.Address, len(vertices))
	for i, v := range vertices {
		out[i] = toEthAddress(v)
	}
	return out
}

func toFlowEdgeArgs(edges []flowmatrix.FlowEdge) []flowEdgeArg {
	out := make([]flowEdgeArg, len(edges))
	for i, e := range edges {
		out[i] = flowEdgeArg{StreamSinkId: e.StreamSinkID, Amount: e.Amount.BigInt()}
	}
	return out
}

func toStreamArgs(streams []flowmatrix.Stream) []streamArg {
	out := make([]streamArg, len(streams))
	for i, s := range streams {
		data := s.Data
		if data == nil {
			data = []byte{}
		}
		out[i] = streamArg{SourceCoordinate: s.SourceCoordinate, FlowEdgeIds: s.FlowEdgeIDs, Data: data}
	}
	return out
}

// EncodeOperateFlowMatrix encodes fm as a call to the Hub's
// operateFlowMatrix(address[],FlowEdge[],Stream[],bytes).
func EncodeOperateFlowMatrix(fm *flowmatrix.FlowMatrix) ([]byte, error) {
	return encodeCall(hubABI, "operateFlowMatrix",
		toVertexArgs(fm.Vertices),
		toFlowEdgeArgs(fm.Edges),
		toStreamArgs(fm.Streams),
		fm.Packed,
	)
}

// EncodeOperateFlowMatrixRedeem encodes fm as a call to the Hub's redeem
// variant, which additionally takes the stream's source coordinate as a
// trailing argument (spec §4.7).
func EncodeOperateFlowMatrixRedeem(fm *flowmatrix.FlowMatrix, sourceCoordinate uint16) ([]byte, error) {
	return encodeCall(hubABI, "operateFlowMatrixRedeem",
		toVertexArgs(fm.Vertices),
		toFlowEdgeArgs(fm.Edges),
		toStreamArgs(fm.Streams),
		fm.Packed,
		sourceCoordinate,
	)
}

// EncodeSetApprovalForAll encodes the Hub's one-time approval call (spec
// §4.6 step 7).
func EncodeSetApprovalForAll(operator address.Address, approved bool) ([]byte, error) {
	return encodeCall(hubABI, "setApprovalForAll", toEthAddress(operator), approved)
}

// EncodeIsApprovedForAll encodes a read-only isApprovedForAll(truster,
// operator) call. circles-go never issues this call itself (querying chain
// state is outside the core's scope, spec §1); it is exposed so a host
// application's transfer.ApprovalChecker implementation can build the call
// without duplicating the Hub's ABI.
func EncodeIsApprovedForAll(truster, operator address.Address) ([]byte, error) {
	return encodeCall(hubABI, "isApprovedForAll", toEthAddress(truster), toEthAddress(operator))
}

// DecodeIsApprovedForAllOutput decodes the boolean result of an
// isApprovedForAll eth_call.
func DecodeIsApprovedForAllOutput(output []byte) (bool, error) {
	m, ok := hubABI.Methods["isApprovedForAll"]
	if !ok {
		return false, fmt.Errorf("settlement: isApprovedForAll not found in ABI")
	}
	values, err := m.Outputs.UnpackValues(output)
	if err != nil {
		return false, err
	}
	approved, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("settlement: unexpected isApprovedForAll output type %T", values[0])
	}
	return approved, nil
}

// EncodeWrap encodes the Hub's wrap(address,uint256,uint8) call used to
// re-wrap an inflationary wrapper's leftover static balance (spec §4.4
// step 4).
func EncodeWrap(avatar address.Address, amt amount.U256, circleType CircleType) ([]byte, error) {
	return encodeCall(hubABI, "wrap", toEthAddress(avatar), amt.BigInt(), uint8(circleType))
}

// EncodeUnwrap encodes a wrapper contract's unwrap(uint256) call from a
// wrapper.UnwrapCall. The wrapper kind only determined which currency
// domain amt was already converted into by C4; the call shape is identical.
func EncodeUnwrap(call wrapper.UnwrapCall) ([]byte, error) {
	return encodeCall(wrapperABI, "unwrap", call.Amount.BigInt())
}

// EncodeRewrap encodes a settlement Hub wrap(...) call from a
// wrapper.RewrapCall, always requesting the inflationary variant (only
// inflationary wrappers produce leftover rewraps, spec §4.4 step 4).
func EncodeRewrap(call wrapper.RewrapCall) ([]byte, error) {
	return EncodeWrap(call.UnderlyingAvatar, call.LeftoverStatic, CircleTypeInflationary)
}
