package settlement

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// errorSelector and panicSelector are the 4-byte selectors Solidity uses to
// abi-encode a revert reason, per
// https://docs.soliditylang.org/en/latest/control-structures.html#revert.
var errorSelector = crypto.Keccak256([]byte("Error(string)"))[:4]
var panicSelector = crypto.Keccak256([]byte("Panic(uint256)"))[:4]

// panicReasons maps a Solidity panic code to its human-readable cause, per
// https://docs.soliditylang.org/en/latest/control-structures.html#panic-via-assert-and-error-via-require.
var panicReasons = map[uint64]string{
	0x00: "generic panic",
	0x01: "assert(false)",
	0x11: "arithmetic underflow or overflow",
	0x12: "division or modulo by zero",
	0x21: "enum overflow",
	0x22: "invalid encoded storage byte array accessed",
	0x31: "out-of-bounds array access; popping on an empty array",
	0x32: "out-of-bounds access of an array or bytesN",
	0x41: "out of memory",
	0x51: "uninitialized function",
}

// DecodeRevertReason resolves the abi-encoded revert reason returned by a
// failed settlement call (Error(string) or Panic(uint256)). circles-go
// never submits the transactions it assembles (spec §1 Non-goals), so it
// never calls this on its own; it is exposed so a host application can turn
// a reverted operateFlowMatrix / unwrap / wrap call's raw return data into a
// readable error without re-implementing Solidity's revert encoding.
func DecodeRevertReason(data []byte) (string, error) {
	if len(data) < 4 {
		return "", errors.New("settlement: revert data too short")
	}

	switch {
	case bytes.Equal(data[:4], errorSelector):
		stringType, err := ethabi.NewType("string", "", nil)
		if err != nil {
			return "", err
		}
		values, err := ethabi.Arguments{{Type: stringType}}.UnpackValues(data[4:])
		if err != nil {
			return "", err
		}
		reason, ok := values[0].(string)
		if !ok {
			return "", fmt.Errorf("settlement: unexpected revert reason type %T", values[0])
		}
		return reason, nil

	case bytes.Equal(data[:4], panicSelector):
		uint256Type, err := ethabi.NewType("uint256", "", nil)
		if err != nil {
			return "", err
		}
		values, err := ethabi.Arguments{{Type: uint256Type}}.UnpackValues(data[4:])
		if err != nil {
			return "", err
		}
		code, ok := values[0].(*big.Int)
		if !ok {
			return "", fmt.Errorf("settlement: unexpected panic code type %T", values[0])
		}
		if code.IsUint64() {
			if reason, ok := panicReasons[code.Uint64()]; ok {
				return reason, nil
			}
		}
		return fmt.Sprintf("unknown panic code: %#x", code), nil

	default:
		return "", errors.New("settlement: unrecognized revert selector")
	}
}
