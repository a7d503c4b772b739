package llm

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestMockClientGenerate 测试使用Mock客户端的文本生成
func TestMockClientGenerate(t *testing.T) {
	mockClient := NewMockClient(t)

	expectedResp := &Response{
		Text:       "#### Question 1: Short Answer\nWhat is 2+2?\nAnswer: 4",
		TokenCount: 12,
		ModelName:  "mock-model",
		FinishTime: time.Now(),
	}
	mockClient.EXPECT().Generate(mock.Anything, "出题提示词", mock.Anything).Return(expectedResp, nil)

	resp, err := mockClient.Generate(context.Background(), "出题提示词")

	assert.NoError(t, err)
	assert.Equal(t, expectedResp.Text, resp.Text)
	assert.Equal(t, expectedResp.TokenCount, resp.TokenCount)
}

// TestMockClientChat 测试使用Mock客户端的对话功能
func TestMockClientChat(t *testing.T) {
	mockClient := NewMockClient(t)

	messages := []Message{
		{Role: RoleSystem, Content: "You are a quiz author."},
		{Role: RoleUser, Content: "Write one question about Go."},
	}
	expectedResp := &Response{
		Text:     "#### Question 1: True/False\nGo has generics.\nAnswer: True",
		Messages: []Message{{Role: RoleAssistant, Content: "#### Question 1: True/False"}},
	}
	mockClient.EXPECT().Chat(mock.Anything, messages, mock.Anything).Return(expectedResp, nil)

	resp, err := mockClient.Chat(context.Background(), messages)

	assert.NoError(t, err)
	assert.Equal(t, expectedResp.Text, resp.Text)
	assert.Len(t, resp.Messages, 1)
}

// TestMockClientErrors 测试错误处理
func TestMockClientErrors(t *testing.T) {
	mockClient := NewMockClient(t)

	emptyPromptErr := NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	mockClient.EXPECT().Generate(mock.Anything, "", mock.Anything).Return(nil, emptyPromptErr)

	_, err := mockClient.Generate(context.Background(), "")
	assert.Error(t, err)
	var llmErr LLMError
	assert.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeEmptyPrompt, llmErr.Code)
}

// TestMockClientName 测试模型名称方法
func TestMockClientName(t *testing.T) {
	mockClient := NewMockClient(t)
	mockClient.EXPECT().Name().Return("mock-model")

	assert.Equal(t, "mock-model", mockClient.Name())
}

// TestConfigAndOptions 测试配置选项
func TestConfigAndOptions(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ModelQwenTurbo, cfg.Model)
	assert.Equal(t, 90*time.Second, cfg.Timeout)

	cfg = NewConfig(
		WithAPIKey("test-key"),
		WithBaseURL("http://localhost:9999"),
		WithModel("custom-model"),
		WithTimeout(30*time.Second),
		WithMaxRetries(5),
		WithMaxTokens(100),
		WithTemperature(0.5),
		WithTopP(0.8),
	)

	assert.Equal(t, "test-key", cfg.APIKey)
	assert.Equal(t, "http://localhost:9999", cfg.BaseURL)
	assert.Equal(t, "custom-model", cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 100, cfg.MaxTokens)
	assert.Equal(t, float32(0.5), cfg.Temperature)
	assert.Equal(t, float32(0.8), cfg.TopP)

	// 空模型名不覆盖默认值
	cfg = NewConfig(WithModel(""))
	assert.Equal(t, ModelQwenTurbo, cfg.Model)
}

// TestGenerateOptions 测试生成选项
func TestGenerateOptions(t *testing.T) {
	opts := applyGenerateOptions([]GenerateOption{
		WithGenerateMaxTokens(123),
		WithGenerateTemperature(0.75),
		WithGenerateTopP(0.9),
		WithGenerateTopK(40),
		WithSystemPrompt("be brief"),
	})

	require.NotNil(t, opts.MaxTokens)
	assert.Equal(t, 123, *opts.MaxTokens)
	assert.Equal(t, float32(0.75), *opts.Temperature)
	assert.Equal(t, float32(0.9), *opts.TopP)
	assert.Equal(t, 40, *opts.TopK)

	messages := promptMessages("hello", opts)
	require.Len(t, messages, 2)
	assert.Equal(t, RoleSystem, messages[0].Role)
	assert.Equal(t, RoleUser, messages[1].Role)

	assert.Len(t, promptMessages("hello", &GenerateOptions{}), 1)
}

// TestClientFactory 测试客户端工厂功能
func TestClientFactory(t *testing.T) {
	RegisterClient("test-factory", func(opts ...Option) (Client, error) {
		return NewMockClient(t), nil
	})

	client, err := NewClient("test-factory")
	assert.NoError(t, err)
	assert.NotNil(t, client)

	_, err = NewClient("invalid-type")
	var llmErr LLMError
	assert.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidRequest, llmErr.Code)

	// 内置提供商在init中注册
	_, err = NewClient("tongyi")
	assert.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidAPIKey, llmErr.Code)

	client, err = NewClient("openai", WithAPIKey("sk-test"))
	require.NoError(t, err)
	assert.Equal(t, ModelGPT4oMini, client.Name())
}

// TestErrorHelpers 测试错误码映射与重试判断
func TestErrorHelpers(t *testing.T) {
	assert.Equal(t, ErrCodeInvalidAPIKey, CodeFromStatus(401))
	assert.Equal(t, ErrCodeRateLimited, CodeFromStatus(429))
	assert.Equal(t, ErrCodeModelOverload, CodeFromStatus(503))
	assert.Equal(t, ErrCodeServerError, CodeFromStatus(500))
	assert.Equal(t, ErrCodeInvalidRequest, CodeFromStatus(400))

	assert.True(t, IsRetryable(NewLLMError(ErrCodeRateLimited, "slow down")))
	assert.False(t, IsRetryable(NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)))
	assert.False(t, IsRetryable(assert.AnError))

	wrapped := WrapError(context.DeadlineExceeded, ErrCodeServerError)
	assert.Equal(t, ErrCodeTimeout, wrapped.Code)

	original := NewLLMError(ErrCodeContentFilter, ErrMsgContentFilter)
	assert.Equal(t, original, WrapError(original, ErrCodeServerError))
	assert.Equal(t, "unknown error", WrapError(nil, ErrCodeServerError).Message)
}

// TestTongyiClientIntegration 测试通义千问客户端集成
// 只有在设置TONGYI_API_KEY环境变量时才运行
func TestTongyiClientIntegration(t *testing.T) {
	apiKey := os.Getenv("TONGYI_API_KEY")
	if apiKey == "" {
		t.Skip("Haven't set TONGYI_API_KEY environment variable, skipping test")
	}

	client, err := NewTongyiClient(
		WithAPIKey(apiKey),
		WithModel(ModelQwenTurbo),
		WithTimeout(30*time.Second),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	generator := NewQuizGenerator(client, WithQuizMaxTokens(512))
	resp, err := generator.Generate(ctx, QuizRequest{Topic: "Go programming", NumQuestions: 1})
	if err != nil {
		t.Logf("API calling error: %v", err)
		t.Skip("Skipping API test")
	}
	assert.NotEmpty(t, resp.RawText)
}
