package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// The stablecoin the payment protocol settles in is an ERC-20 with the
// standard balanceOf/allowance/approve/transfer methods (spec §6). These
// helpers build the calldata for each, following the manual
// selector-plus-ABI-encoded-arguments pattern used throughout the pack's
// on-chain settlement code.

var (
	addressType = mustABIType("address")
	uint256Type = mustABIType("uint256")
)

func mustABIType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("chain: invalid abi type %q: %v", name, err))
	}
	return t
}

func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

func packCall(sig string, types []abi.Type, values ...any) ([]byte, error) {
	args := make(abi.Arguments, len(types))
	for i, t := range types {
		args[i] = abi.Argument{Type: t}
	}
	packed, err := args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", sig, err)
	}
	return append(selector(sig), packed...), nil
}

// PackBalanceOf builds calldata for ERC-20 balanceOf(address).
func PackBalanceOf(owner common.Address) ([]byte, error) {
	return packCall("balanceOf(address)", []abi.Type{addressType}, owner)
}

// PackAllowance builds calldata for ERC-20 allowance(address,address).
func PackAllowance(owner, spender common.Address) ([]byte, error) {
	return packCall("allowance(address,address)", []abi.Type{addressType, addressType}, owner, spender)
}

// PackApprove builds calldata for ERC-20 approve(address,uint256).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return packCall("approve(address,uint256)", []abi.Type{addressType, uint256Type}, spender, amount)
}

// PackTransfer builds calldata for ERC-20 transfer(address,uint256).
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return packCall("transfer(address,uint256)", []abi.Type{addressType, uint256Type}, to, amount)
}

// UnpackUint256 decodes a single uint256 return value (balanceOf,
// allowance).
func UnpackUint256(data []byte) (*big.Int, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("chain: short return data, want >= 32 bytes, got %d", len(data))
	}
	return new(big.Int).SetBytes(data[:32]), nil
}
