package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// 通义千问API端点
	defaultTongyiEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
)

// TongyiClient 通义千问大模型客户端实现
type TongyiClient struct {
	apiKey      string       // API密钥
	baseURL     string       // API端点
	model       string       // 模型名称
	httpClient  *http.Client // HTTP客户端
	maxRetries  int          // 最大重试次数
	maxTokens   int          // 最大生成Token数
	temperature float32      // 温度参数
	topP        float32      // topP参数
}

// NewTongyiClient 创建新的通义千问大模型客户端
func NewTongyiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTongyiEndpoint
	}

	return &TongyiClient{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       cfg.Model,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxRetries:  cfg.MaxRetries,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
	}, nil
}

// Name 返回模型名称
func (c *TongyiClient) Name() string {
	return c.model
}

// Generate 根据提示词生成文本
func (c *TongyiClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	if prompt == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	opts := applyGenerateOptions(options)
	return c.chat(ctx, promptMessages(prompt, opts), opts)
}

// Chat 进行多轮对话
func (c *TongyiClient) Chat(ctx context.Context, messages []Message, options ...GenerateOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}
	return c.chat(ctx, messages, applyGenerateOptions(options))
}

func (c *TongyiClient) chat(ctx context.Context, messages []Message, opts *GenerateOptions) (*Response, error) {
	params := &TongyiParameters{
		ResultFormat: "message", // 使用结构化返回格式
		TopK:         opts.TopK,
	}

	// 请求级选项优先，其次为客户端配置
	if opts.MaxTokens != nil {
		params.MaxTokens = opts.MaxTokens
	} else if c.maxTokens > 0 {
		maxTokens := c.maxTokens
		params.MaxTokens = &maxTokens
	}

	if opts.Temperature != nil {
		params.Temperature = opts.Temperature
	} else if c.temperature > 0 {
		temp := c.temperature
		params.Temperature = &temp
	}

	if opts.TopP != nil {
		params.TopP = opts.TopP
	} else if c.topP > 0 {
		topP := c.topP
		params.TopP = &topP
	}

	req := &TongyiRequest{
		Model:      c.model,
		Input:      &TongyiRequestInput{Messages: messages},
		Parameters: params,
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.processResponse(resp)
}

// sendRequest 发送API请求，服务端错误与网络错误按指数退避重试
func (c *TongyiClient) sendRequest(ctx context.Context, req *TongyiRequest) (*TongyiResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
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

		resp, err := c.doRequest(ctx, jsonData)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

// doRequest 发送单次请求
func (c *TongyiClient) doRequest(ctx context.Context, body []byte) (*TongyiResponse, error) {
	// 每次重试都需要新的请求体
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewLLMError(ErrCodeTimeout, ctx.Err().Error())
		}
		return nil, NewLLMError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewLLMError(ErrCodeNetworkError, fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		code := CodeFromStatus(resp.StatusCode)
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil && errResp.Message != "" {
			return nil, NewLLMError(code, fmt.Sprintf("API error: %s (%s)", errResp.Message, errResp.Code))
		}
		return nil, NewLLMError(code,
			fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(respBody)))
	}

	var tongyiResp TongyiResponse
	if err := json.Unmarshal(respBody, &tongyiResp); err != nil {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
	}

	if tongyiResp.Code != "" {
		return nil, NewLLMError(tongyiErrorCode(tongyiResp.Code),
			fmt.Sprintf("API error: %s (%s)", tongyiResp.Message, tongyiResp.Code))
	}

	return &tongyiResp, nil
}

// tongyiErrorCode 将通义千问的业务错误码映射为内部错误码
func tongyiErrorCode(code string) int {
	switch code {
	case "InvalidApiKey":
		return ErrCodeInvalidAPIKey
	case "Throttling", "Throttling.RateQuota":
		return ErrCodeRateLimited
	case "DataInspectionFailed":
		return ErrCodeContentFilter
	case "InvalidParameter":
		return ErrCodeInvalidRequest
	default:
		return ErrCodeServerError
	}
}

// processResponse 处理通义千问的响应
func (c *TongyiClient) processResponse(resp *TongyiResponse) (*Response, error) {
	result := &Response{
		ModelName:  c.model,
		TokenCount: resp.Usage.TotalTokens,
		FinishTime: time.Now(),
	}

	switch {
	case resp.Output.Text != nil:
		result.Text = *resp.Output.Text
		if resp.Output.FinishReason != nil {
			result.FinishReason = *resp.Output.FinishReason
		}
	case len(resp.Output.Choices) > 0:
		choice := resp.Output.Choices[0]
		result.Text = choice.Message.Content
		result.FinishReason = choice.FinishReason
		result.Messages = append(result.Messages, choice.Message)
	default:
		return nil, NewLLMError(ErrCodeServerError, "empty response from API")
	}

	return result, nil
}

func init() {
	RegisterClient("tongyi", NewTongyiClient)
}
