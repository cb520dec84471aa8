package chain_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goflow/orchestrator/chain"
)

var (
	owner   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	spender = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestPackBalanceOfHasBalanceOfSelector(t *testing.T) {
	data, err := chain.PackBalanceOf(owner)
	require.NoError(t, err)
	assert.Equal(t, "70a08231", fmtHex(data[:4]))
	assert.Len(t, data, 4+32)
}

func TestPackAllowanceHasAllowanceSelector(t *testing.T) {
	data, err := chain.PackAllowance(owner, spender)
	require.NoError(t, err)
	assert.Equal(t, "dd62ed3e", fmtHex(data[:4]))
	assert.Len(t, data, 4+64)
}

func TestPackApproveEncodesAmount(t *testing.T) {
	amount := big.NewInt(1_000_000)
	data, err := chain.PackApprove(spender, amount)
	require.NoError(t, err)
	assert.Equal(t, "095ea7b3", fmtHex(data[:4]))

	decoded, err := chain.UnpackUint256(data[4+32:])
	require.NoError(t, err)
	assert.Equal(t, amount, decoded)
}

func TestPackTransferEncodesRecipientAndAmount(t *testing.T) {
	amount := big.NewInt(42)
	data, err := chain.PackTransfer(owner, amount)
	require.NoError(t, err)
	assert.Equal(t, "a9059cbb", fmtHex(data[:4]))

	decoded, err := chain.UnpackUint256(data[4+32:])
	require.NoError(t, err)
	assert.Equal(t, amount, decoded)
}

func TestUnpackUint256RejectsShortData(t *testing.T) {
	_, err := chain.UnpackUint256([]byte{1, 2, 3})
	require.Error(t, err)
}

func fmtHex(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}
