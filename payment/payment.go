// Package payment implements the PaymentCoordinator of spec §4.6: it
// wraps an a2a.Caller so that payment-required (402) responses are
// transparently satisfied via a signed off-chain authorization and an
// on-chain ERC-20 transfer, then the original call is retried with proof
// attached.
package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/goflow/orchestrator/a2a"
	"github.com/goflow/orchestrator/a2a/types"
	"github.com/goflow/orchestrator/chain"
	"github.com/goflow/orchestrator/xerrors"
)

// Authorization is the payment-authorization (proof) shape of spec §3:
// the signed off-chain artifact a paid call attaches to its retry.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  int64  `json:"validAfter"`
	ValidBefore int64  `json:"validBefore"`
	Nonce       string `json:"nonce"`
	Signature   string `json:"signature"`
}

// Config bounds and addresses a Coordinator. Asset/recipient/network are
// read from the challenge itself; Config supplies the operator's side of
// the transaction (who signs, who broadcasts, what the policy permits).
type Config struct {
	// MaxPaymentAtomic caps the atomic amount this coordinator will ever
	// pay for a single call (spec §4.6 step 2, spec §6 MAX_PAYMENT_ATOMIC).
	MaxPaymentAtomic *big.Int
	// Clock returns the current time; overridable in tests. Defaults to
	// time.Now.
	Clock func() time.Time
}

// Coordinator implements spec §4.6's callPaid contract over an
// a2a.Caller, a chain.Signer, and a chain.RPC.
type Coordinator struct {
	caller a2a.Caller
	signer chain.Signer
	rpc    chain.RPC
	cfg    Config
}

// New constructs a Coordinator. cfg.Clock defaults to time.Now if nil.
func New(caller a2a.Caller, signer chain.Signer, rpc chain.RPC, cfg Config) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Coordinator{caller: caller, signer: signer, rpc: rpc, cfg: cfg}
}

// Settlement records the on-chain outcome of a satisfied challenge, kept
// by the engine on the NodeRun so a retried node never pays twice (spec
// §4.6's "never pay twice" security property).
type Settlement struct {
	TransactionHash string
	Network         string
	Payer           string
}

// CallPaid attempts the unpaid call first; if the agent responds with a
// 402 challenge, it satisfies it per spec §4.6 and retries once with
// proof attached. A non-402 error or a non-402 successful result is
// returned as-is.
func (c *Coordinator) CallPaid(ctx context.Context, endpointBase string, inputs map[string]any, contextID string) (types.Result, *Settlement, error) {
	result, err := c.caller.Call(ctx, endpointBase, inputs, contextID)
	if err == nil {
		return result, nil, nil
	}

	callerErr, ok := asPaymentChallenge(err)
	if !ok {
		return types.Result{}, nil, err
	}

	requirement, err := firstRequirement(callerErr)
	if err != nil {
		return types.Result{}, nil, err
	}

	if err := c.checkCap(requirement); err != nil {
		return types.Result{}, nil, err
	}

	auth, err := c.authorize(ctx, requirement)
	if err != nil {
		return types.Result{}, nil, err
	}

	if err := c.ensureAllowance(ctx, requirement); err != nil {
		return types.Result{}, nil, err
	}

	settlement, err := c.settle(ctx, requirement, auth)
	if err != nil {
		return types.Result{}, nil, err
	}

	metadata := map[string]any{
		"paymentProvided":     true,
		"paymentProof":        auth,
		"paymentRequirements": requirement,
		"transactionHash":     settlement.TransactionHash,
		"network":             settlement.Network,
		"payer":               settlement.Payer,
	}

	retried, err := c.caller.CallWithMetadata(ctx, endpointBase, inputs, contextID, metadata)
	if err != nil {
		// spec §4.6 security property: the transfer already succeeded; a
		// failure here is a delivery/agent fault, not a billing fault. The
		// caller (ExecutionEngine) records settlement.TransactionHash on
		// the failed NodeRun and must never re-enter CallPaid for this
		// node without a fresh challenge.
		return types.Result{}, settlement, xerrors.Wrap(xerrors.KindPayment, "retrying call after settlement", err)
	}
	return retried, settlement, nil
}

func asPaymentChallenge(err error) (*a2a.Error, bool) {
	callerErr, ok := err.(*a2a.Error)
	if !ok || !callerErr.IsPaymentRequired() {
		return nil, false
	}
	return callerErr, true
}

func firstRequirement(callerErr *a2a.Error) (types.PaymentRequirement, error) {
	var data types.ChallengeData
	if len(callerErr.Data) == 0 {
		return types.PaymentRequirement{}, xerrors.Payment("402 challenge carried no accepts data")
	}
	if err := json.Unmarshal(callerErr.Data, &data); err != nil {
		return types.PaymentRequirement{}, xerrors.Wrap(xerrors.KindPayment, "decoding challenge", err)
	}
	if len(data.Accepts) == 0 {
		return types.PaymentRequirement{}, xerrors.Payment("402 challenge accepts array is empty")
	}
	return data.Accepts[0], nil
}

func (c *Coordinator) checkCap(req types.PaymentRequirement) error {
	if c.cfg.MaxPaymentAtomic == nil {
		return nil
	}
	amount, ok := new(big.Int).SetString(req.MaxAmountRequired, 10)
	if !ok {
		return xerrors.Payment("maxAmountRequired %q is not a valid integer", req.MaxAmountRequired)
	}
	if amount.Cmp(c.cfg.MaxPaymentAtomic) > 0 {
		return xerrors.Payment("requested amount %s exceeds configured cap %s", amount, c.cfg.MaxPaymentAtomic)
	}
	return nil
}

// authorize produces the signed authorization of spec §4.6 step 3: a
// canonical-text signature binding from/to/value/validity/nonce.
func (c *Coordinator) authorize(ctx context.Context, req types.PaymentRequirement) (Authorization, error) {
	from := c.signer.Address().Hex()
	now := c.cfg.Clock().Unix()
	validBefore := now + req.MaxTimeoutSeconds
	if req.MaxTimeoutSeconds == 0 {
		validBefore = now + 300
	}

	nonce, err := randomNonce()
	if err != nil {
		return Authorization{}, xerrors.Wrap(xerrors.KindPayment, "generating nonce", err)
	}

	message := canonicalMessage(req.Network, req.Asset, from, req.PayTo, req.MaxAmountRequired)
	sig, err := c.signer.SignMessage(ctx, message)
	if err != nil {
		return Authorization{}, xerrors.Wrap(xerrors.KindPayment, "signing authorization", err)
	}

	return Authorization{
		From:        from,
		To:          req.PayTo,
		Value:       req.MaxAmountRequired,
		ValidAfter:  now,
		ValidBefore: validBefore,
		Nonce:       nonce,
		Signature:   "0x" + hex.EncodeToString(sig),
	}, nil
}

// canonicalMessage builds the exact text spec §4.6 step 3 specifies.
func canonicalMessage(network, asset, from, to, value string) string {
	return fmt.Sprintf("Chain ID: %s\nContract: %s\nUser: %s\nReceiver: %s\nAmount: %s\n", network, asset, from, to, value)
}

func randomNonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(buf), nil
}

// ensureAllowance implements spec §4.6 step 4: read current allowance;
// if insufficient, approve 110% of value and await confirmation.
func (c *Coordinator) ensureAllowance(ctx context.Context, req types.PaymentRequirement) error {
	asset := common.HexToAddress(req.Asset)
	spender := common.HexToAddress(req.PayTo)
	value, ok := new(big.Int).SetString(req.MaxAmountRequired, 10)
	if !ok {
		return xerrors.Payment("maxAmountRequired %q is not a valid integer", req.MaxAmountRequired)
	}

	allowanceCalldata, err := chain.PackAllowance(c.signer.Address(), spender)
	if err != nil {
		return xerrors.Wrap(xerrors.KindPayment, "packing allowance call", err)
	}
	raw, err := c.rpc.ReadContract(ctx, asset, allowanceCalldata)
	if err != nil {
		return xerrors.Wrap(xerrors.KindPayment, "reading allowance", err)
	}
	current, err := chain.UnpackUint256(raw)
	if err != nil {
		return xerrors.Wrap(xerrors.KindPayment, "decoding allowance", err)
	}
	if current.Cmp(value) >= 0 {
		return nil
	}

	approveAmount := new(big.Int).Div(new(big.Int).Mul(value, big.NewInt(110)), big.NewInt(100))
	approveCalldata, err := chain.PackApprove(spender, approveAmount)
	if err != nil {
		return xerrors.Wrap(xerrors.KindPayment, "packing approve call", err)
	}
	txHash, err := c.rpc.CallContract(ctx, asset, approveCalldata)
	if err != nil {
		return xerrors.Wrap(xerrors.KindPayment, "sending approve transaction", err)
	}
	receipt, err := c.rpc.WaitForReceipt(ctx, txHash)
	if err != nil {
		return xerrors.Wrap(xerrors.KindPayment, "awaiting approve confirmation", err)
	}
	if !receipt.Success() {
		return xerrors.Payment("approve transaction %s reverted", txHash.Hex())
	}
	return nil
}

// settle implements spec §4.6 step 5: an on-chain ERC-20 transfer of
// value atomic units from signer to recipient.
func (c *Coordinator) settle(ctx context.Context, req types.PaymentRequirement, _ Authorization) (*Settlement, error) {
	asset := common.HexToAddress(req.Asset)
	to := common.HexToAddress(req.PayTo)
	value, ok := new(big.Int).SetString(req.MaxAmountRequired, 10)
	if !ok {
		return nil, xerrors.Payment("maxAmountRequired %q is not a valid integer", req.MaxAmountRequired)
	}

	calldata, err := chain.PackTransfer(to, value)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindPayment, "packing transfer call", err)
	}
	txHash, err := c.rpc.CallContract(ctx, asset, calldata)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindPayment, "sending transfer transaction", err)
	}
	receipt, err := c.rpc.WaitForReceipt(ctx, txHash)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindPayment, "awaiting transfer confirmation", err)
	}
	if !receipt.Success() {
		return nil, xerrors.Payment("transfer transaction %s reverted", txHash.Hex())
	}

	return &Settlement{
		TransactionHash: txHash.Hex(),
		Network:         req.Network,
		Payer:           c.signer.Address().Hex(),
	}, nil
}
