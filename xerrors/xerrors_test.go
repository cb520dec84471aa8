package xerrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goflow/orchestrator/xerrors"
)

func TestWrapNilCauseReturnsNil(t *testing.T) {
	err := xerrors.Wrap(xerrors.KindExecution, "should not appear", nil)
	assert.Nil(t, err)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	err := xerrors.Wrap(xerrors.KindExecution, "call failed", cause)
	require.NotNil(t, err)
	assert.Equal(t, xerrors.KindExecution, err.Kind)
	assert.ErrorIs(t, err, cause)
}

func TestIsMatchesKind(t *testing.T) {
	err := xerrors.AgentNotFound("echo")
	assert.True(t, xerrors.Is(err, xerrors.KindAgentNotFound))
	assert.False(t, xerrors.Is(err, xerrors.KindPayment))
}

func TestIsMatchesOutermostKind(t *testing.T) {
	inner := xerrors.Validation("bad reference")
	outer := &xerrors.Error{Kind: xerrors.KindExecution, Message: "node failed", Cause: inner}
	assert.True(t, xerrors.Is(outer, xerrors.KindExecution))
}

func TestErrorMessageOmitsCauseWhenAbsent(t *testing.T) {
	err := xerrors.New(xerrors.KindState, "cannot cancel completed run")
	assert.Equal(t, "state: cannot cancel completed run", err.Error())
}
