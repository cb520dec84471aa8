package chain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goflow/orchestrator/chain"
)

func TestReceiptStatusSuccess(t *testing.T) {
	assert.True(t, chain.ReceiptStatus{Status: 1, BlockNumber: 10}.Success())
	assert.False(t, chain.ReceiptStatus{Status: 0, BlockNumber: 10}.Success())
}
