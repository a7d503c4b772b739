package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpenAIGenerate 测试兼容OpenAI协议的服务
func TestOpenAIGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "#### Question 1: True/False\nThe sky is blue.\nAnswer: True"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 12, "total_tokens": 22}
		}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(WithAPIKey("sk-test"), WithBaseURL(server.URL), WithModel(ModelGPT4o))
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), "write a quiz")
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Question 1")
	assert.Equal(t, 22, resp.TokenCount)
	assert.Equal(t, "gpt-4o", resp.ModelName)
	assert.Equal(t, "stop", resp.FinishReason)
}

// TestOpenAIErrors 测试错误转换
func TestOpenAIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(WithAPIKey("sk-bad"), WithBaseURL(server.URL), WithMaxRetries(0))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hi")
	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidAPIKey, llmErr.Code)

	_, err = NewOpenAIClient()
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidAPIKey, llmErr.Code)
}
