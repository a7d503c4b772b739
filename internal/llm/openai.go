package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient 兼容OpenAI Chat Completions协议的客户端
// BaseURL可指向任何兼容该协议的服务
type OpenAIClient struct {
	client      *openai.Client // OpenAI API客户端
	model       string         // 模型名称
	maxRetries  int            // 最大重试次数
	maxTokens   int            // 最大生成Token数
	temperature float32        // 温度参数
	topP        float32        // topP参数
}

// NewOpenAIClient 创建OpenAI客户端
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}
	// 未显式指定时替换为OpenAI的默认模型
	if cfg.Model == ModelQwenTurbo {
		cfg.Model = ModelGPT4oMini
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxRetries:  cfg.MaxRetries,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
	}, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.model
}

// Generate 根据提示词生成文本
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	if prompt == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	opts := applyGenerateOptions(options)
	return c.chat(ctx, promptMessages(prompt, opts), opts)
}

// Chat 进行多轮对话
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, options ...GenerateOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}
	return c.chat(ctx, messages, applyGenerateOptions(options))
}

func (c *OpenAIClient) chat(ctx context.Context, messages []Message, opts *GenerateOptions) (*Response, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
			Name:    m.Name,
		})
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.TopP != nil {
		req.TopP = *opts.TopP
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, NewLLMError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			return c.processResponse(resp)
		}

		lastErr = convertOpenAIError(err)
		if !IsRetryable(lastErr) || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

// processResponse 转换为统一响应结构
func (c *OpenAIClient) processResponse(resp openai.ChatCompletionResponse) (*Response, error) {
	if len(resp.Choices) == 0 {
		return nil, NewLLMError(ErrCodeServerError, "empty response from API")
	}

	choice := resp.Choices[0]
	model := resp.Model
	if model == "" {
		model = c.model
	}

	return &Response{
		Text: choice.Message.Content,
		Messages: []Message{{
			Role:    RoleAssistant,
			Content: choice.Message.Content,
		}},
		TokenCount:   resp.Usage.TotalTokens,
		ModelName:    model,
		FinishReason: string(choice.FinishReason),
		FinishTime:   time.Now(),
	}, nil
}

// convertOpenAIError 将SDK错误转换为LLMError
func convertOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewLLMError(ErrCodeTimeout, err.Error())
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := CodeFromStatus(apiErr.HTTPStatusCode)
		if apiErr.Code == "context_length_exceeded" {
			code = ErrCodeContextTooLong
		}
		if apiErr.Code == "content_filter" {
			code = ErrCodeContentFilter
		}
		return NewLLMError(code, fmt.Sprintf("API error: %s", apiErr.Message))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewLLMError(CodeFromStatus(reqErr.HTTPStatusCode), reqErr.Error())
	}

	return NewLLMError(ErrCodeNetworkError, err.Error())
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
}
