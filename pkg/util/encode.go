package util

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20TransferABI = `[{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"}]`

var erc20ABI = mustParseABI(erc20TransferABI)

// ERC20TransferSelector is the 4-byte selector of transfer(address,uint256).
var ERC20TransferSelector = erc20ABI.Methods["transfer"].ID

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI definition: %v", err))
	}
	return parsed
}

// EncodeERC20Transfer packs calldata for transfer(to, amount).
func EncodeERC20Transfer(to common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil {
		return nil, fmt.Errorf("amount cannot be nil")
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount cannot be negative")
	}
	return erc20ABI.Pack("transfer", to, amount)
}

// DecodeERC20Transfer unpacks calldata produced by EncodeERC20Transfer.
func DecodeERC20Transfer(data []byte) (common.Address, *big.Int, error) {
	if len(data) < 4 {
		return common.Address{}, nil, fmt.Errorf("calldata too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:4], ERC20TransferSelector) {
		return common.Address{}, nil, fmt.Errorf("unsupported selector 0x%x", data[:4])
	}

	args, err := erc20ABI.Methods["transfer"].Inputs.Unpack(data[4:])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to unpack transfer arguments: %w", err)
	}
	if len(args) != 2 {
		return common.Address{}, nil, fmt.Errorf("expected 2 transfer arguments, got %d", len(args))
	}

	to, ok := args[0].(common.Address)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("unexpected type for recipient: %T", args[0])
	}
	amount, ok := args[1].(*big.Int)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("unexpected type for amount: %T", args[1])
	}
	return to, amount, nil
}

// EncodeString ABI-encodes a single string argument.
func EncodeString(str string) ([]byte, error) {
	stringType, _ := abi.NewType("string", "", nil)
	arguments := abi.Arguments{{Type: stringType}}

	encoded, err := arguments.Pack(str)
	if err != nil {
		return nil, err
	}

	return encoded, nil
}
