package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policypal/palgraph/pkg/ports"
)

type intentResult struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
}

func chatReply(t *testing.T, w http.ResponseWriter, content string, promptTokens, completionTokens int) {
	t.Helper()
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
		"usage": map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		},
	}
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func newTestClientWith(srvURL string) *Client {
	return New(Config{
		APIKey:  "test-key",
		BaseURL: srvURL,
	}, nil)
}

func TestClassify_StructuredOutput(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		chatReply(t, w, `{"action":"compare","confidence":0.92}`, 1000, 100)
	}))
	defer srv.Close()

	c := newTestClientWith(srv.URL)

	var out intentResult
	usage, err := c.Classify(context.Background(), ports.TaskIntent, []ports.ChatMessage{
		{Role: "user", Content: "compare these"},
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, "compare", out.Action)
	assert.InDelta(t, 0.92, out.Confidence, 1e-9)
	assert.Equal(t, 1100, usage.Tokens)

	// Routing and determinism pins.
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
	assert.Zero(t, gotReq.Temperature)
	assert.Zero(t, gotReq.Seed)
}

func TestClassify_CostAccounting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"action":"audit","confidence":1}`, 1_000_000, 0)
	}))
	defer srv.Close()

	c := newTestClientWith(srv.URL)

	var out intentResult
	usage, err := c.Classify(context.Background(), ports.TaskAudit, nil, &out)
	require.NoError(t, err)

	// Audit routes to gpt-4o: $5 per million input tokens.
	assert.InDelta(t, 5.0, usage.CostUSD, 1e-9)
}

func TestClassify_RetriesOnRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		chatReply(t, w, `{"action":"inquire","confidence":0.7}`, 10, 5)
	}))
	defer srv.Close()

	c := newTestClientWith(srv.URL)

	var out intentResult
	_, err := c.Classify(context.Background(), ports.TaskIntent, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "inquire", out.Action)
}

func TestClassify_RateLimitExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	c := newTestClientWith(srv.URL)

	var out intentResult
	_, err := c.Classify(context.Background(), ports.TaskIntent, nil, &out)
	assert.ErrorContains(t, err, "after 2 attempts")
}

func TestClassify_ServerErrorDoesNotRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	c := newTestClientWith(srv.URL)

	var out intentResult
	_, err := c.Classify(context.Background(), ports.TaskIntent, nil, &out)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestClassify_UnknownTask(t *testing.T) {
	c := newTestClientWith("http://127.0.0.1:0")

	var out intentResult
	_, err := c.Classify(context.Background(), "mystery", nil, &out)
	assert.ErrorContains(t, err, "no model routed")
}

func TestClassify_MissingAPIKey(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:0"}, nil)

	var out intentResult
	_, err := c.Classify(context.Background(), ports.TaskIntent, nil, &out)
	assert.ErrorContains(t, err, "API key")
}

func TestClassify_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		chatReply(t, w, `{"action":"inquire","confidence":0.5}`, 1, 1)
	}))
	defer srv.Close()

	c := New(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Timeout: 20 * time.Millisecond,
	}, nil)

	var out intentResult
	_, err := c.Classify(context.Background(), ports.TaskIntent, nil, &out)
	// Both attempts time out.
	assert.ErrorContains(t, err, "after 2 attempts")
}

func TestDecodeStructured_FencedJSON(t *testing.T) {
	var out intentResult
	err := decodeStructured("```json\n{\"action\":\"summarize\",\"confidence\":\"0.8\"}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, "summarize", out.Action)
	// Weak typing tolerates the stringified number.
	assert.InDelta(t, 0.8, out.Confidence, 1e-9)
}
