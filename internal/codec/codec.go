package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrCodecMalformed is returned when bytes do not match the declared schema
	ErrCodecMalformed = errors.New("codec malformed")

	// ErrUnknownSelector is returned when a selector or topic is not registered
	ErrUnknownSelector = errors.New("unknown selector")
)

// Selector returns the first 4 bytes of keccak256(signature)
func Selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	return sel
}

// Arguments builds an argument schema from solidity type names, e.g. "address", "uint256[]".
// Tuples are not accepted here; use abi.NewType with components for those.
func Arguments(types ...string) (abi.Arguments, error) {
	args := make(abi.Arguments, 0, len(types))
	for i, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			return nil, fmt.Errorf("%w: type %q: %v", ErrCodecMalformed, t, err)
		}
		args = append(args, abi.Argument{Name: fmt.Sprintf("arg%d", i), Type: typ})
	}
	return args, nil
}

// MustArguments is Arguments that panics on an invalid type name
func MustArguments(types ...string) abi.Arguments {
	args, err := Arguments(types...)
	if err != nil {
		panic(err)
	}
	return args
}

// EncodeCall prepends the selector to the head-tail encoding of values
func EncodeCall(selector [4]byte, args abi.Arguments, values ...interface{}) ([]byte, error) {
	packed, err := args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodecMalformed, err)
	}
	out := make([]byte, 0, 4+len(packed))
	out = append(out, selector[:]...)
	return append(out, packed...), nil
}

// DecodeReturn decodes return data against the schema
func DecodeReturn(schema abi.Arguments, data []byte) ([]interface{}, error) {
	if len(data)%32 != 0 {
		return nil, fmt.Errorf("%w: length %d is not word aligned", ErrCodecMalformed, len(data))
	}
	values, err := schema.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodecMalformed, err)
	}
	return values, nil
}

// EncodeTopic encodes a single indexed event parameter.
// Value types occupy one padded word; dynamic types are replaced by the keccak256 of their encoding.
func EncodeTopic(t abi.Type, value interface{}) (common.Hash, error) {
	switch t.T {
	case abi.StringTy:
		s, ok := value.(string)
		if !ok {
			return common.Hash{}, fmt.Errorf("%w: expected string, got %T", ErrCodecMalformed, value)
		}
		return crypto.Keccak256Hash([]byte(s)), nil
	case abi.BytesTy:
		b, ok := value.([]byte)
		if !ok {
			return common.Hash{}, fmt.Errorf("%w: expected bytes, got %T", ErrCodecMalformed, value)
		}
		return crypto.Keccak256Hash(b), nil
	case abi.SliceTy, abi.ArrayTy, abi.TupleTy:
		packed, err := abi.Arguments{{Type: t}}.Pack(value)
		if err != nil {
			return common.Hash{}, fmt.Errorf("%w: %v", ErrCodecMalformed, err)
		}
		return crypto.Keccak256Hash(packed), nil
	}

	packed, err := abi.Arguments{{Type: t}}.Pack(value)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrCodecMalformed, err)
	}
	if len(packed) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: topic word is %d bytes", ErrCodecMalformed, len(packed))
	}
	return common.BytesToHash(packed), nil
}

// HashStruct computes keccak256(keccak256(typeDescriptor) ‖ encode(fields)).
// Fields must be value types; strings, bytes and nested structs are passed pre-hashed as bytes32.
func HashStruct(typeDescriptor string, fields abi.Arguments, values ...interface{}) (common.Hash, error) {
	for _, f := range fields {
		if isDynamic(f.Type) {
			return common.Hash{}, fmt.Errorf("%w: struct field %q of %s must be pre-hashed",
				ErrCodecMalformed, f.Name, strings.SplitN(typeDescriptor, "(", 2)[0])
		}
	}
	encoded, err := fields.Pack(values...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrCodecMalformed, err)
	}
	typeHash := crypto.Keccak256([]byte(typeDescriptor))
	return crypto.Keccak256Hash(typeHash, encoded), nil
}

func isDynamic(t abi.Type) bool {
	switch t.T {
	case abi.StringTy, abi.BytesTy, abi.SliceTy, abi.TupleTy:
		return true
	case abi.ArrayTy:
		return isDynamic(*t.Elem)
	}
	return false
}
