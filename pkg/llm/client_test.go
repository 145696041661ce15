package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	cfg := &Config{
		BaseURL:      server.URL,
		APIKey:       "test-key",
		DefaultModel: "test-model",
		Timeout:      defaultTimeout,
		LogLevel:     "error",
	}
	client, err := NewClient(cfg)
	require.NoError(t, err)
	return client, server
}

func completionBody(content string) map[string]any {
	return map[string]any{
		"id":      "cmpl-1",
		"model":   "test-model",
		"created": 1700000000,
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

func TestChatReturnsContent(t *testing.T) {
	var gotModel string
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel, _ = req["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionBody("hello"))
	})
	defer server.Close()

	resp, err := client.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "test-model", gotModel)
	require.Len(t, resp.Choices, 1)
	require.Equal(t, "hello", resp.Choices[0].Message.Content)
	require.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestChatRequiresMessages(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	defer server.Close()

	_, err := client.Chat(context.Background(), &ChatRequest{})
	require.Error(t, err)

	_, err = client.Chat(context.Background(), nil)
	require.Error(t, err)
}

func TestChatStructuredDecodesTarget(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Contains(t, req, "response_format")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionBody(`{"action":"buy","confidenceLevel":70}`))
	})
	defer server.Close()

	var v verdictProbe
	err := client.ChatStructured(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "verdict?"}},
	}, &v)
	require.NoError(t, err)
	require.Equal(t, "buy", v.Action)
	require.Equal(t, 70, v.Confidence)
}

func TestGenerateSchemaMarksOmitemptyOptional(t *testing.T) {
	type sample struct {
		Action string  `json:"action"`
		Note   string  `json:"note,omitempty"`
		Score  float64 `json:"score"`
	}
	schema, err := GenerateSchema(&sample{})
	require.NoError(t, err)
	require.Equal(t, "object", schema["type"])
	require.ElementsMatch(t, []string{"action", "score"}, schema["required"])

	props := schema["properties"].(map[string]interface{})
	require.Contains(t, props, "note")
	require.Equal(t, "number", props["score"].(map[string]interface{})["type"])
}
