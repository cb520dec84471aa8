package retry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goflow/orchestrator/a2a"
	"github.com/goflow/orchestrator/a2a/retry"
	"github.com/goflow/orchestrator/xerrors"
)

func TestIsRetryableClassifiesContextDeadline(t *testing.T) {
	assert.True(t, retry.IsRetryable(context.DeadlineExceeded))
}

func TestIsRetryableRejectsContextCanceled(t *testing.T) {
	assert.False(t, retry.IsRetryable(context.Canceled))
}

func TestIsRetryableRejectsPaymentChallenge(t *testing.T) {
	err := &a2a.Error{Code: a2a.PaymentRequiredCode, Message: "payment required"}
	assert.False(t, retry.IsRetryable(err))
}

func TestIsRetryableAcceptsInternalRPCError(t *testing.T) {
	err := &a2a.Error{Code: a2a.JSONRPCInternalError, Message: "internal"}
	assert.True(t, retry.IsRetryable(err))
}

func TestIsRetryableRejectsInvalidParams(t *testing.T) {
	err := &a2a.Error{Code: a2a.JSONRPCInvalidParams, Message: "bad params"}
	assert.False(t, retry.IsRetryable(err))
}

func TestIsRetryableRejectsValidationError(t *testing.T) {
	assert.False(t, retry.IsRetryable(xerrors.Validation("bad input")))
}

func TestIsRetryableAcceptsExecutionError(t *testing.T) {
	assert.True(t, retry.IsRetryable(xerrors.Execution("timeout")))
}

func TestBackoffIsLinearInAttempt(t *testing.T) {
	assert.Equal(t, int64(200), retry.Backoff(100, 2))
	assert.Equal(t, int64(300), retry.Backoff(100, 3))
}

func TestBackoffClampsAttemptBelowOne(t *testing.T) {
	assert.Equal(t, int64(100), retry.Backoff(100, 0))
}
