package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClareAI/astra-voice-webhook/internal/core/model/provider"
	"github.com/ClareAI/astra-voice-webhook/internal/domain"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-3.5-turbo",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(body)
}

func TestCompleteSendsHistoryInOrder(t *testing.T) {
	var got capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody("  Your balance is 120 points.  "))
	}))
	defer srv.Close()

	client := NewChatClient(ChatConfig{
		APIKey:      "sk-test",
		BaseURL:     srv.URL + "/v1/",
		Model:       "gpt-3.5-turbo",
		MaxTokens:   150,
		Temperature: 0.3,
	})

	reply, err := client.Complete(context.Background(), provider.ChatRequest{
		SystemPrompt: "be brief",
		History: []domain.Turn{
			{Role: domain.RoleUser, Content: "hi"},
			{Role: domain.RoleAssistant, Content: "hello"},
		},
		UserInput: "what is my balance",
	})
	require.NoError(t, err)
	assert.Equal(t, "Your balance is 120 points.", reply)

	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	assert.Equal(t, 150, got.MaxTokens)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be brief", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.Equal(t, "what is my balance", got.Messages[3].Content)
}

func TestCompleteSurfacesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`)
	}))
	defer srv.Close()

	client := NewChatClient(ChatConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Model: "gpt-3.5-turbo"})
	_, err := client.Complete(context.Background(), provider.ChatRequest{SystemPrompt: "x", UserInput: "y"})
	assert.Error(t, err)
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	}))
	defer srv.Close()

	client := NewChatClient(ChatConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Model: "m"})
	_, err := client.Complete(context.Background(), provider.ChatRequest{SystemPrompt: "x", UserInput: "y"})
	assert.ErrorIs(t, err, provider.ErrEmptyCompletion)
}
