// Package chain defines the delegated on-chain signer/RPC abstraction of
// spec §6 — "the on-chain signing/RPC library... produces signatures and
// broadcasts ERC-20 transfers" — and ships a concrete implementation
// backed by go-ethereum: EIP-191 personal-sign signatures and ERC-20
// approve/transfer calls for x402-style payment facilitation.
//
// The core's contract against this package is the four operations named
// in spec §6: SignMessage, CallContract, WaitForReceipt, ReadContract.
// PaymentCoordinator depends only on these, never on *ethclient.Client
// directly, so a stub can substitute the whole package in tests.
package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// ReceiptStatus is the outcome of WaitForReceipt: spec §6's
// "{status, blockNumber}".
type ReceiptStatus struct {
	Status      uint64
	BlockNumber uint64
}

// Success reports whether the receipt's status indicates success (1).
func (r ReceiptStatus) Success() bool { return r.Status == 1 }

// Signer is the delegated signing capability of spec §6: signMessage.
type Signer interface {
	// Address returns the signer's on-chain address.
	Address() common.Address
	// SignMessage signs the canonical authorization text of spec §4.6 step
	// 3 and returns the raw 65-byte (r||s||v) signature.
	SignMessage(ctx context.Context, text string) ([]byte, error)
}

// RPC is the delegated chain-interaction capability of spec §6:
// callContract, waitForReceipt, readContract.
type RPC interface {
	// CallContract broadcasts a state-changing call to contractAddr with
	// the already-ABI-encoded calldata and returns the transaction hash.
	CallContract(ctx context.Context, contractAddr common.Address, calldata []byte) (txHash common.Hash, err error)
	// WaitForReceipt blocks until txHash is mined (or ctx is done) and
	// returns its status and block number.
	WaitForReceipt(ctx context.Context, txHash common.Hash) (ReceiptStatus, error)
	// ReadContract performs an eth_call against contractAddr with the
	// given calldata and returns the raw ABI-encoded return value.
	ReadContract(ctx context.Context, contractAddr common.Address, calldata []byte) ([]byte, error)
}
