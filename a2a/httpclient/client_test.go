package httpclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goflow/orchestrator/a2a"
	"github.com/goflow/orchestrator/a2a/httpclient"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	var cardHits int64
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/agent-card.json", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&cardHits, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "echo"})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		params := req["params"].(map[string]any)
		message := params["message"].(map[string]any)
		parts := message["parts"].([]any)
		part := parts[0].(map[string]any)
		data := part["data"].(map[string]any)

		resp := map[string]any{
			"jsonrpc": "2.0",
			"id":      req["id"],
			"result": map[string]any{
				"kind": "message",
				"parts": []any{
					map[string]any{"kind": "text", "text": data["message"]},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return httptest.NewServer(mux)
}

func TestCallRoundTripsTextResult(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	client := httpclient.New()
	result, err := client.Call(context.Background(), srv.URL, map[string]any{"message": "hi"}, "")
	require.NoError(t, err)
	assert.True(t, result.IsMessage())
	require.Len(t, result.Parts, 1)
	assert.Equal(t, "hi", result.Parts[0].Text)
}

func TestAvailableProbesAgentCard(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	client := httpclient.New()
	assert.True(t, client.Available(context.Background(), srv.URL))
}

func TestPaymentChallengeSurfacesAsTypedError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/agent-card.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "paid"})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error": map[string]any{
				"code":    402,
				"message": "payment required",
				"data": map[string]any{
					"accepts": []any{
						map[string]any{"scheme": "exact", "network": "base-sepolia"},
					},
				},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := httpclient.New()
	_, err := client.Call(context.Background(), srv.URL, map[string]any{"message": "hi"}, "")
	require.Error(t, err)

	var rpcErr *a2a.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.True(t, rpcErr.IsPaymentRequired())
}

func TestCallCachesAgentCardAcrossCalls(t *testing.T) {
	var cardHits int64
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/agent-card.json", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&cardHits, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "echo"})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": 1,
			"result": map[string]any{"kind": "message", "parts": []any{}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := httpclient.New()
	for i := 0; i < 5; i++ {
		_, err := client.Call(context.Background(), srv.URL, map[string]any{}, "")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&cardHits))

	client.ClearCache()
	_, err := client.Call(context.Background(), srv.URL, map[string]any{}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&cardHits))
}
