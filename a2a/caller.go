// Package a2a implements the AgentCaller of spec §4.5: speaking the
// JSON-RPC "message/send" envelope, fetching agent-card descriptor
// documents, and decoding Message-or-Task results.
package a2a

import (
	"context"
	"encoding/json"

	"github.com/goflow/orchestrator/a2a/types"
)

// JSON-RPC 2.0 canonical error codes, plus the protocol's payment-required
// extension code (spec §3/§4.5/§6).
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603

	// PaymentRequiredCode is the JSON-RPC error code signaling a 402
	// payment-required challenge.
	PaymentRequiredCode = 402

	// MethodMessageSend is the JSON-RPC method name of spec §4.5.
	MethodMessageSend = "message/send"

	// AgentCardPath is appended to an agent's endpoint base URL to locate
	// its discovery document (spec §4.5/§6).
	AgentCardPath = "/.well-known/agent-card.json"
)

// Caller is the narrow capability the ExecutionEngine and
// PaymentCoordinator depend on to talk to a remote agent: invoke it and
// probe whether it's reachable. Implemented by httpclient.Client
// (HTTP/JSON-RPC).
type Caller interface {
	// Call invokes message/send against endpointBase with inputs as the
	// sole data part of the request message. contextID, if non-empty, is
	// attached to the outgoing message so the agent can correlate
	// multi-turn exchanges.
	Call(ctx context.Context, endpointBase string, inputs map[string]any, contextID string) (types.Result, error)

	// CallWithMetadata behaves like Call but additionally attaches metadata
	// to the outgoing message — used by the PaymentCoordinator to attach
	// payment proof on a paid retry (spec §4.6 step 6).
	CallWithMetadata(ctx context.Context, endpointBase string, inputs map[string]any, contextID string, metadata map[string]any) (types.Result, error)

	// Available probes the descriptor document at endpointBase.
	Available(ctx context.Context, endpointBase string) bool

	// ClearCache drops any memoized agent-card descriptors, for tests.
	ClearCache()
}

// Error represents a JSON-RPC error returned by the remote agent.
type Error struct {
	Code    int
	Message string
	Data    json.RawMessage
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// IsPaymentRequired reports whether e is a 402 payment-challenge error.
func (e *Error) IsPaymentRequired() bool {
	return e != nil && e.Code == PaymentRequiredCode
}
