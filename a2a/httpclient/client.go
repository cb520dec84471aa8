// Package httpclient implements a2a.Caller over JSON-RPC HTTP POST, per
// spec §4.5/§6: the root path of the agent's declared base URL (not
// "/execute" — corrected per spec §4.5), with agent-card discovery,
// per-endpoint rate limiting, and descriptor memoization.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/goflow/orchestrator/a2a"
	"github.com/goflow/orchestrator/a2a/types"
	"github.com/goflow/orchestrator/xerrors"
)

// DefaultTimeout is the per-request timeout when no Option overrides it
// (spec §4.5: "default 60 s").
const DefaultTimeout = 60 * time.Second

type (
	// Option configures the Client.
	Option func(*Client)

	// Client implements a2a.Caller over JSON-RPC HTTP.
	Client struct {
		http    *http.Client
		headers http.Header
		timeout time.Duration
		id      atomic.Uint64

		cardMu sync.RWMutex
		cards  map[string]types.AgentCard
		group  singleflight.Group

		limiterMu sync.Mutex
		limiters  map[string]*rate.Limiter
		rps       rate.Limit // 0 (unlimited) unless WithRateLimit is used
		burst     int
	}

	rpcRequest struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		ID      uint64 `json:"id"`
		Params  any    `json:"params,omitempty"`
	}

	rpcResponse struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
		Error   *rpcError       `json:"error"`
		ID      uint64          `json:"id"`
	}

	rpcError struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
)

func (e *rpcError) asCallerError() *a2a.Error {
	if e == nil {
		return nil
	}
	return &a2a.Error{Code: e.Code, Message: e.Message, Data: e.Data}
}

// WithHTTPClient overrides the underlying *http.Client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithHeader adds a static header to all outgoing requests.
func WithHeader(name, value string) Option {
	return func(cl *Client) {
		if cl.headers == nil {
			cl.headers = make(http.Header)
		}
		cl.headers.Add(name, value)
	}
}

// WithBearerToken configures the client to send an Authorization Bearer token.
func WithBearerToken(token string) Option {
	return WithHeader("Authorization", "Bearer "+token)
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

// WithRateLimit caps outbound calls to rps requests per second per
// endpoint, with the given burst. This is additive to spec.md (SPEC_FULL.md
// §2 domain-stack wiring): a natural extension of "timeouts guard every
// outbound call" using golang.org/x/time/rate.
func WithRateLimit(rps float64, burst int) Option {
	return func(cl *Client) {
		cl.rps = rate.Limit(rps)
		cl.burst = burst
	}
}

// New constructs a Client implementing a2a.Caller.
func New(opts ...Option) *Client {
	cl := &Client{
		http:     &http.Client{Timeout: DefaultTimeout},
		headers:  make(http.Header),
		timeout:  DefaultTimeout,
		cards:    make(map[string]types.AgentCard),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cl)
		}
	}
	return cl
}

var _ a2a.Caller = (*Client)(nil)

func (c *Client) nextID() uint64 {
	return c.id.Add(1)
}

// Call invokes message/send with inputs as the sole data part.
func (c *Client) Call(ctx context.Context, endpointBase string, inputs map[string]any, contextID string) (types.Result, error) {
	return c.send(ctx, endpointBase, inputs, contextID, nil)
}

// CallWithMetadata behaves like Call but attaches metadata to the outgoing
// message (used by the payment coordinator's paid retry).
func (c *Client) CallWithMetadata(ctx context.Context, endpointBase string, inputs map[string]any, contextID string, metadata map[string]any) (types.Result, error) {
	return c.send(ctx, endpointBase, inputs, contextID, metadata)
}

func (c *Client) send(ctx context.Context, endpointBase string, inputs map[string]any, contextID string, metadata map[string]any) (types.Result, error) {
	if err := c.await(ctx, endpointBase); err != nil {
		return types.Result{}, err
	}

	card, err := c.fetchCard(ctx, endpointBase)
	if err != nil {
		return types.Result{}, err
	}

	dataPart, err := dataPart(inputs)
	if err != nil {
		return types.Result{}, err
	}

	req := types.SendMessageRequest{
		Message: types.Message{
			Kind:      "message",
			MessageID: newMessageID(),
			Role:      "user",
			Parts:     []types.Part{dataPart},
			ContextID: contextID,
			Metadata:  metadata,
		},
		Configuration: &types.Configuration{Blocking: true},
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.post(ctx, card.ResolvedURL(endpointBase), req)
	if err != nil {
		if ctx.Err() != nil {
			return types.Result{}, xerrors.Execution("timeout")
		}
		return types.Result{}, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, url string, params types.SendMessageRequest) (types.Result, error) {
	rpcReq := rpcRequest{
		JSONRPC: "2.0",
		Method:  a2a.MethodMessageSend,
		ID:      c.nextID(),
		Params:  params,
	}
	body, err := json.Marshal(rpcReq)
	if err != nil {
		return types.Result{}, xerrors.Wrap(xerrors.KindExecution, "encoding request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return types.Result{}, xerrors.Wrap(xerrors.KindExecution, "building request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, vs := range c.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return types.Result{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return types.Result{}, xerrors.Execution("agent endpoint returned HTTP %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return types.Result{}, xerrors.Wrap(xerrors.KindExecution, "decoding response", err)
	}
	if rpcResp.Error != nil {
		return types.Result{}, rpcResp.Error.asCallerError()
	}

	var result types.Result
	if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
		return types.Result{}, xerrors.Wrap(xerrors.KindExecution, "decoding result", err)
	}
	return result, nil
}

// Available probes the descriptor document at endpointBase.
func (c *Client) Available(ctx context.Context, endpointBase string) bool {
	_, err := c.fetchCard(ctx, endpointBase)
	return err == nil
}

// ClearCache drops every memoized agent-card descriptor.
func (c *Client) ClearCache() {
	c.cardMu.Lock()
	defer c.cardMu.Unlock()
	c.cards = make(map[string]types.AgentCard)
}

// fetchCard returns the memoized agent-card for endpointBase, fetching and
// caching it on first use. Concurrent fetches for the same endpoint are
// collapsed into one HTTP round trip via singleflight.
func (c *Client) fetchCard(ctx context.Context, endpointBase string) (types.AgentCard, error) {
	c.cardMu.RLock()
	card, ok := c.cards[endpointBase]
	c.cardMu.RUnlock()
	if ok {
		return card, nil
	}

	v, err, _ := c.group.Do(endpointBase, func() (any, error) {
		fetched, err := c.fetchCardUncached(ctx, endpointBase)
		if err != nil {
			return types.AgentCard{}, err
		}
		c.cardMu.Lock()
		c.cards[endpointBase] = fetched
		c.cardMu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return types.AgentCard{}, err
	}
	return v.(types.AgentCard), nil
}

func (c *Client) fetchCardUncached(ctx context.Context, endpointBase string) (types.AgentCard, error) {
	url := endpointBase + a2a.AgentCardPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.AgentCard{}, xerrors.Wrap(xerrors.KindExecution, "building agent-card request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return types.AgentCard{}, xerrors.Wrap(xerrors.KindExecution, "fetching agent-card", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return types.AgentCard{}, xerrors.Execution("agent-card endpoint returned HTTP %d", resp.StatusCode)
	}

	var card types.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return types.AgentCard{}, xerrors.Wrap(xerrors.KindExecution, "decoding agent-card", err)
	}
	return card, nil
}

// await blocks until the endpoint's rate limiter admits the call, if rate
// limiting is configured.
func (c *Client) await(ctx context.Context, endpointBase string) error {
	if c.rps == 0 {
		return nil
	}
	c.limiterMu.Lock()
	l, ok := c.limiters[endpointBase]
	if !ok {
		l = rate.NewLimiter(c.rps, c.burst)
		c.limiters[endpointBase] = l
	}
	c.limiterMu.Unlock()
	if err := l.Wait(ctx); err != nil {
		return xerrors.Wrap(xerrors.KindExecution, "rate limit wait", err)
	}
	return nil
}

func dataPart(inputs map[string]any) (types.Part, error) {
	raw, err := json.Marshal(inputs)
	if err != nil {
		return types.Part{}, xerrors.Wrap(xerrors.KindExecution, "encoding inputs", err)
	}
	return types.Part{Kind: types.PartKindData, Data: raw}, nil
}

func newMessageID() string {
	return uuid.NewString()
}
