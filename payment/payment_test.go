package payment_test

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goflow/orchestrator/a2a"
	"github.com/goflow/orchestrator/a2a/types"
	"github.com/goflow/orchestrator/chain"
	"github.com/goflow/orchestrator/payment"
	"github.com/goflow/orchestrator/xerrors"
)

const (
	testAsset = "0x1111111111111111111111111111111111111111"
	testPayTo = "0x2222222222222222222222222222222222222222"
	testFrom  = "0x3333333333333333333333333333333333333333"
)

type fakeCaller struct {
	challenge    *a2a.Error
	unpaidCalls  int
	paidCalls    int
	lastMetadata map[string]any
	paidResult   types.Result
}

func (f *fakeCaller) Call(_ context.Context, _ string, _ map[string]any, _ string) (types.Result, error) {
	f.unpaidCalls++
	if f.challenge != nil {
		return types.Result{}, f.challenge
	}
	return types.Result{Kind: types.ResultKindMessage, Parts: []types.Part{{Kind: types.PartKindText, Text: "ok"}}}, nil
}

func (f *fakeCaller) CallWithMetadata(_ context.Context, _ string, _ map[string]any, _ string, metadata map[string]any) (types.Result, error) {
	f.paidCalls++
	f.lastMetadata = metadata
	return f.paidResult, nil
}

func (f *fakeCaller) Available(context.Context, string) bool { return true }
func (f *fakeCaller) ClearCache()                             {}

var _ a2a.Caller = (*fakeCaller)(nil)

type fakeSigner struct{ addr common.Address }

func (s *fakeSigner) Address() common.Address { return s.addr }
func (s *fakeSigner) SignMessage(context.Context, string) ([]byte, error) {
	sig := make([]byte, 65)
	sig[64] = 27
	return sig, nil
}

var _ chain.Signer = (*fakeSigner)(nil)

type fakeRPC struct {
	allowance      *big.Int
	transferHash   common.Hash
	approveHash    common.Hash
	receiptFails   bool
	approveCalls   int
	transferCalls  int
}

func (r *fakeRPC) CallContract(_ context.Context, to common.Address, calldata []byte) (common.Hash, error) {
	selector := calldata[:4]
	if string(selector) == string(approveSelector()) {
		r.approveCalls++
		return r.approveHash, nil
	}
	r.transferCalls++
	return r.transferHash, nil
}

func (r *fakeRPC) WaitForReceipt(context.Context, common.Hash) (chain.ReceiptStatus, error) {
	if r.receiptFails {
		return chain.ReceiptStatus{Status: 0}, nil
	}
	return chain.ReceiptStatus{Status: 1, BlockNumber: 1}, nil
}

func (r *fakeRPC) ReadContract(context.Context, common.Address, []byte) ([]byte, error) {
	padded := make([]byte, 32)
	r.allowance.FillBytes(padded)
	return padded, nil
}

var _ chain.RPC = (*fakeRPC)(nil)

func approveSelector() []byte {
	data, _ := chain.PackApprove(common.HexToAddress(testPayTo), big.NewInt(0))
	return data[:4]
}

func challengeError(t *testing.T, amount string) *a2a.Error {
	t.Helper()
	req := types.PaymentRequirement{
		Scheme:            "exact",
		Network:           "base-sepolia",
		Asset:             testAsset,
		PayTo:             testPayTo,
		MaxAmountRequired: amount,
		MaxTimeoutSeconds: 60,
	}
	data, err := json.Marshal(types.ChallengeData{Accepts: []types.PaymentRequirement{req}})
	require.NoError(t, err)
	return &a2a.Error{Code: a2a.PaymentRequiredCode, Message: "payment required", Data: data}
}

func TestCallPaidReturnsUnpaidResultWhenNoChallenge(t *testing.T) {
	caller := &fakeCaller{}
	coord := payment.New(caller, &fakeSigner{addr: common.HexToAddress(testFrom)}, &fakeRPC{allowance: big.NewInt(0)}, payment.Config{})

	result, settlement, err := coord.CallPaid(context.Background(), "https://agent.example.com", nil, "")
	require.NoError(t, err)
	assert.Nil(t, settlement)
	assert.Equal(t, "ok", result.Parts[0].Text)
	assert.Equal(t, 1, caller.unpaidCalls)
	assert.Equal(t, 0, caller.paidCalls)
}

func TestCallPaidSatisfiesChallengeAndRetries(t *testing.T) {
	caller := &fakeCaller{
		challenge:  challengeError(t, "100"),
		paidResult: types.Result{Kind: types.ResultKindMessage, Parts: []types.Part{{Kind: types.PartKindText, Text: "ok"}}},
	}
	rpc := &fakeRPC{
		allowance:    big.NewInt(0),
		transferHash: common.HexToHash("0xT"),
		approveHash:  common.HexToHash("0xA"),
	}
	coord := payment.New(caller, &fakeSigner{addr: common.HexToAddress(testFrom)}, rpc, payment.Config{})

	result, settlement, err := coord.CallPaid(context.Background(), "https://agent.example.com", nil, "")
	require.NoError(t, err)
	require.NotNil(t, settlement)
	assert.Equal(t, "ok", result.Parts[0].Text)
	assert.Equal(t, common.HexToHash("0xT").Hex(), settlement.TransactionHash)
	assert.Equal(t, 1, rpc.approveCalls, "insufficient allowance should trigger exactly one approve")
	assert.Equal(t, 1, rpc.transferCalls)
	assert.Equal(t, 1, caller.paidCalls)

	require.NotNil(t, caller.lastMetadata)
	assert.Equal(t, true, caller.lastMetadata["paymentProvided"])
	assert.Equal(t, settlement.TransactionHash, caller.lastMetadata["transactionHash"])
}

func TestCallPaidSkipsApproveWhenAllowanceSufficient(t *testing.T) {
	caller := &fakeCaller{challenge: challengeError(t, "100")}
	rpc := &fakeRPC{allowance: big.NewInt(1_000_000), transferHash: common.HexToHash("0xT")}
	coord := payment.New(caller, &fakeSigner{addr: common.HexToAddress(testFrom)}, rpc, payment.Config{})

	_, _, err := coord.CallPaid(context.Background(), "https://agent.example.com", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 0, rpc.approveCalls)
	assert.Equal(t, 1, rpc.transferCalls)
}

func TestCallPaidRejectsAmountOverCap(t *testing.T) {
	caller := &fakeCaller{challenge: challengeError(t, "1000000")}
	rpc := &fakeRPC{allowance: big.NewInt(0)}
	coord := payment.New(caller, &fakeSigner{addr: common.HexToAddress(testFrom)}, rpc, payment.Config{MaxPaymentAtomic: big.NewInt(100)})

	_, _, err := coord.CallPaid(context.Background(), "https://agent.example.com", nil, "")
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.KindPayment))
	assert.Equal(t, 0, rpc.transferCalls)
}

func TestCallPaidPropagatesNonPaymentErrors(t *testing.T) {
	caller := &fakeCaller{challenge: &a2a.Error{Code: a2a.JSONRPCInternalError, Message: "boom"}}
	coord := payment.New(caller, &fakeSigner{addr: common.HexToAddress(testFrom)}, &fakeRPC{allowance: big.NewInt(0)}, payment.Config{})

	_, settlement, err := coord.CallPaid(context.Background(), "https://agent.example.com", nil, "")
	require.Error(t, err)
	assert.Nil(t, settlement)
	assert.Equal(t, 0, caller.paidCalls)
}

func TestCallPaidFailsOnRevertedTransfer(t *testing.T) {
	caller := &fakeCaller{challenge: challengeError(t, "100")}
	rpc := &fakeRPC{allowance: big.NewInt(1_000_000), receiptFails: true}
	coord := payment.New(caller, &fakeSigner{addr: common.HexToAddress(testFrom)}, rpc, payment.Config{})

	_, settlement, err := coord.CallPaid(context.Background(), "https://agent.example.com", nil, "")
	require.Error(t, err)
	assert.Nil(t, settlement)
	assert.Equal(t, 0, caller.paidCalls, "retry must not be attempted without a confirmed settlement")
}
