package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/goflow/orchestrator/xerrors"
)

// PrivateKeySigner implements Signer by holding a raw ECDSA private key in
// process memory. SIGNER_KEY (spec §6) is parsed once at startup; the key
// material never appears in any error text (spec §7).
type PrivateKeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewPrivateKeySigner parses a hex-encoded private key (with or without a
// leading "0x").
func NewPrivateKeySigner(hexKey string) (*PrivateKeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindPayment, "parsing signer key", err)
	}
	return &PrivateKeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address returns the signer's on-chain address.
func (s *PrivateKeySigner) Address() common.Address { return s.address }

// SignMessage signs text using the personal-sign (EIP-191) scheme — the
// ecrecover-compatible digest spec §4.6's server-side verification expects
// ("the signer recovered from the signed canonical message equals from").
func (s *PrivateKeySigner) SignMessage(_ context.Context, text string) ([]byte, error) {
	digest := personalSignDigest(text)
	sig, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindPayment, "signing message", err)
	}
	// crypto.Sign returns v in {0,1}; ecrecover on the personal-sign scheme
	// expects v in {27,28}.
	sig[64] += 27
	return sig, nil
}

// SignTransaction signs tx for broadcast using the London (EIP-1559) signer.
func (s *PrivateKeySigner) SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.NewLondonSigner(chainID), s.key)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindPayment, "signing transaction", err)
	}
	return signed, nil
}

var _ Signer = (*PrivateKeySigner)(nil)

func personalSignDigest(text string) [32]byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(text), text)
	var out [32]byte
	copy(out[:], crypto.Keccak256([]byte(prefixed)))
	return out
}

// RecoverSigner recovers the address that produced sig over text, for
// server-side verification of a payment authorization (spec §4.6).
func RecoverSigner(text string, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, xerrors.Payment("signature must be 65 bytes, got %d", len(sig))
	}
	digest := personalSignDigest(text)
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(digest[:], normalized)
	if err != nil {
		return common.Address{}, xerrors.Wrap(xerrors.KindPayment, "recovering signer", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
