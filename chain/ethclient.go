package chain

import (
	"context"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/goflow/orchestrator/xerrors"
)

// EthRPC implements RPC over a go-ethereum ethclient.Client, signing and
// broadcasting EIP-1559 transactions with the supplied PrivateKeySigner.
type EthRPC struct {
	client       *ethclient.Client
	chainID      *big.Int
	signer       *PrivateKeySigner
	pollInterval time.Duration
}

// NewEthRPC returns an RPC backed by client, signing outgoing transactions
// with signer for chainID.
func NewEthRPC(client *ethclient.Client, chainID *big.Int, signer *PrivateKeySigner) *EthRPC {
	return &EthRPC{client: client, chainID: chainID, signer: signer, pollInterval: 2 * time.Second}
}

var _ RPC = (*EthRPC)(nil)

// CallContract builds, signs, and broadcasts an EIP-1559 transaction
// carrying calldata to contractAddr, returning its hash once accepted by
// the mempool (not once mined — callers wanting finality call
// WaitForReceipt).
func (r *EthRPC) CallContract(ctx context.Context, contractAddr common.Address, calldata []byte) (common.Hash, error) {
	nonce, err := r.client.PendingNonceAt(ctx, r.signer.Address())
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.KindPayment, "fetching nonce", err)
	}

	tipCap, err := r.client.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.KindPayment, "suggesting gas tip", err)
	}

	head, err := r.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.KindPayment, "fetching chain head", err)
	}
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	msg := ethereum.CallMsg{From: r.signer.Address(), To: &contractAddr, Data: calldata}
	gasLimit, err := r.client.EstimateGas(ctx, msg)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.KindPayment, "estimating gas", err)
	}
	gasLimit = gasLimit * 12 / 10 // headroom for estimation drift between quote and broadcast

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   r.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &contractAddr,
		Data:      calldata,
	})

	signedTx, err := r.signer.SignTransaction(tx, r.chainID)
	if err != nil {
		return common.Hash{}, err
	}

	if err := r.client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.KindPayment, "broadcasting transaction", err)
	}
	return signedTx.Hash(), nil
}

// WaitForReceipt polls for txHash's receipt until it is mined or ctx ends.
func (r *EthRPC) WaitForReceipt(ctx context.Context, txHash common.Hash) (ReceiptStatus, error) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := r.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return ReceiptStatus{Status: receipt.Status, BlockNumber: receipt.BlockNumber.Uint64()}, nil
		}
		select {
		case <-ctx.Done():
			return ReceiptStatus{}, xerrors.Wrap(xerrors.KindPayment, "waiting for receipt", ctx.Err())
		case <-ticker.C:
		}
	}
}

// ReadContract performs a read-only eth_call against contractAddr.
func (r *EthRPC) ReadContract(ctx context.Context, contractAddr common.Address, calldata []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &contractAddr, Data: calldata}
	out, err := r.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindExecution, "calling contract", err)
	}
	return out, nil
}
