package codec

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/untron/untron-v3-engine/internal/domain"
)

const (
	// FillSignature is the canonical signature of the fill entry point
	FillSignature = "fill(address,uint256,(address,uint256,bytes)[])"

	// TronTransferSignature is the TRC-20 transfer function
	TronTransferSignature = "transfer(address,uint256)"

	// TronTransferCalldataLength is selector plus two words
	TronTransferCalldataLength = 4 + 2*32

	// BalanceOfSignature is the ERC-20 balance view
	BalanceOfSignature = "balanceOf(address)"

	// TransferFromSignature is the ERC-20 allowance transfer
	TransferFromSignature = "transferFrom(address,address,uint256)"
)

var (
	fillArgs         abi.Arguments
	transferArgs     = MustArguments("address", "uint256")
	transferFromArgs = MustArguments("address", "address", "uint256")
	addressArgs      = MustArguments("address")
	uint256Args      = MustArguments("uint256")
)

func init() {
	callsType, err := abi.NewType("tuple[]", "", []abi.ArgumentMarshaling{
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "data", Type: "bytes"},
	})
	if err != nil {
		panic(fmt.Sprintf("codec: calls type: %v", err))
	}
	head := MustArguments("address", "uint256")
	fillArgs = abi.Arguments{
		{Name: "targetToken", Type: head[0].Type},
		{Name: "maxClaims", Type: head[1].Type},
		{Name: "calls", Type: callsType},
	}
}

// EncodeFillCall builds calldata for fill(targetToken, maxClaims, calls)
func EncodeFillCall(targetToken common.Address, maxClaims uint64, calls []domain.Call) ([]byte, error) {
	if calls == nil {
		calls = []domain.Call{}
	}
	normalized := make([]domain.Call, len(calls))
	for i, c := range calls {
		normalized[i] = c
		if normalized[i].Value == nil {
			normalized[i].Value = new(big.Int)
		}
		if normalized[i].Data == nil {
			normalized[i].Data = []byte{}
		}
	}
	return EncodeCall(Selector(FillSignature), fillArgs, targetToken, new(big.Int).SetUint64(maxClaims), normalized)
}

// DecodeFillCall parses fill calldata
func DecodeFillCall(data []byte) (common.Address, uint64, []domain.Call, error) {
	sel := Selector(FillSignature)
	if len(data) < 4 {
		return common.Address{}, 0, nil, fmt.Errorf("%w: calldata is %d bytes", ErrCodecMalformed, len(data))
	}
	if !bytes.Equal(data[:4], sel[:]) {
		return common.Address{}, 0, nil, fmt.Errorf("%w: 0x%x", ErrUnknownSelector, data[:4])
	}
	values, err := DecodeReturn(fillArgs, data[4:])
	if err != nil {
		return common.Address{}, 0, nil, err
	}

	target, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, 0, nil, fmt.Errorf("%w: target token", ErrCodecMalformed)
	}
	maxClaims, ok := values[1].(*big.Int)
	if !ok || !maxClaims.IsUint64() {
		return common.Address{}, 0, nil, fmt.Errorf("%w: max claims", ErrCodecMalformed)
	}
	calls := *abi.ConvertType(values[2], new([]domain.Call)).(*[]domain.Call)
	return target, maxClaims.Uint64(), calls, nil
}

// DecodeTronTransfer parses TRC-20 transfer calldata into (recipient, amount)
func DecodeTronTransfer(calldata []byte) (common.Address, *big.Int, error) {
	if len(calldata) != TronTransferCalldataLength {
		return common.Address{}, nil, domain.ErrTronInvalidCalldataLength
	}
	sel := Selector(TronTransferSignature)
	if !bytes.Equal(calldata[:4], sel[:]) {
		return common.Address{}, nil, fmt.Errorf("%w: 0x%x", ErrUnknownSelector, calldata[:4])
	}
	values, err := DecodeReturn(transferArgs, calldata[4:])
	if err != nil {
		return common.Address{}, nil, err
	}
	return values[0].(common.Address), values[1].(*big.Int), nil
}

// EncodeTronTransfer builds TRC-20 transfer calldata
func EncodeTronTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return EncodeCall(Selector(TronTransferSignature), transferArgs, to, amount)
}

// EncodeTransfer builds ERC-20 transfer calldata; the layout is shared with TRC-20
func EncodeTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return EncodeTronTransfer(to, amount)
}

// EncodeTransferFrom builds ERC-20 transferFrom calldata
func EncodeTransferFrom(from, to common.Address, amount *big.Int) ([]byte, error) {
	return EncodeCall(Selector(TransferFromSignature), transferFromArgs, from, to, amount)
}

// EncodeBalanceOf builds balanceOf(holder) calldata
func EncodeBalanceOf(holder common.Address) ([]byte, error) {
	return EncodeCall(Selector(BalanceOfSignature), addressArgs, holder)
}

// DecodeUint256 decodes a single uint256 return value
func DecodeUint256(data []byte) (*big.Int, error) {
	values, err := DecodeReturn(uint256Args, data)
	if err != nil {
		return nil, err
	}
	return values[0].(*big.Int), nil
}
