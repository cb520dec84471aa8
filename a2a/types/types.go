// Package types defines the JSON-RPC wire types of the "message/send"
// agent protocol (spec §4.5/§6): the request envelope, the tagged-union
// Message-or-Task result, and the agent-card discovery document. Field
// names use camelCase JSON tags to match the wire protocol.
//
//nolint:tagliatelle // wire protocol requires camelCase JSON field names
package types

import "encoding/json"

// SendMessageRequest is the params object of a "message/send" JSON-RPC
// request.
type SendMessageRequest struct {
	Message       Message        `json:"message"`
	Configuration *Configuration `json:"configuration,omitempty"`
}

// Configuration controls delivery semantics of a message/send call. The
// core always sends Blocking: true (spec §4.5); streaming delivery is a
// noted-but-not-required capability (spec §1).
type Configuration struct {
	Blocking bool `json:"blocking"`
}

// Message is the request envelope's payload, or one arm of a Result.
type Message struct {
	Kind      string         `json:"kind"`
	MessageID string         `json:"messageId"`
	Role      string         `json:"role"`
	Parts     []Part         `json:"parts"`
	ContextID string         `json:"contextId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Part is one piece of content within a Message or Artifact. Exactly one
// of the payload fields is populated depending on Kind.
type Part struct {
	Kind  string          `json:"kind"`
	Text  string          `json:"text,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// PartKind enumerates Part.Kind values.
const (
	PartKindText     = "text"
	PartKindData     = "data"
	PartKindArtifact = "artifact"
	PartKindError    = "error"
)

// TaskStatus is the status snapshot carried by a Task result.
type TaskStatus struct {
	State string `json:"state"`
}

// Artifact is an output artifact attached to a Task result.
type Artifact struct {
	Name  string `json:"name,omitempty"`
	Parts []Part `json:"parts"`
}

// Result is the tagged union returned by a successful message/send call:
// either a Message (kind == "message") or a Task (kind == "task"), per
// spec §4.5.
type Result struct {
	Kind      string     `json:"kind"`
	MessageID string     `json:"messageId,omitempty"`
	Role      string     `json:"role,omitempty"`
	Parts     []Part     `json:"parts,omitempty"`
	ID        string     `json:"id,omitempty"`
	Status    TaskStatus `json:"status,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

const (
	ResultKindMessage = "message"
	ResultKindTask    = "task"
)

// IsMessage reports whether r is a Message result.
func (r Result) IsMessage() bool { return r.Kind == ResultKindMessage }

// IsTask reports whether r is a Task result.
func (r Result) IsTask() bool { return r.Kind == ResultKindTask }

// AgentCard is the discovery document served at
// <endpointBase>/.well-known/agent-card.json (spec §4.5/§6).
type AgentCard struct {
	Name         string         `json:"name"`
	URL          string         `json:"url,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Endpoints    map[string]string `json:"endpoints,omitempty"`
	Streaming    bool           `json:"streaming,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ResolvedURL returns c.URL, defaulting to endpointBase when the card
// omits it, per spec §4.5 ("`url` field defaults to `endpointBase` if
// absent").
func (c AgentCard) ResolvedURL(endpointBase string) string {
	if c.URL == "" {
		return endpointBase
	}
	return c.URL
}

// PaymentRequirement is the payment-requirement shape of spec §3, echoed
// verbatim inside a 402 challenge's data.accepts[0].
type PaymentRequirement struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	Resource          string `json:"resource,omitempty"`
	Description       string `json:"description,omitempty"`
	MimeType          string `json:"mimeType,omitempty"`
	MaxTimeoutSeconds int64  `json:"maxTimeoutSeconds,omitempty"`
}

// ChallengeData is the JSON-RPC error's `data` field when code == 402.
type ChallengeData struct {
	Accepts []PaymentRequirement `json:"accepts"`
}
