package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fyerfyer/quiz-gen-system/internal/quiz"
)

// 题目请求的默认值与范围
const (
	DefaultTopic        = "General Knowledge"
	DefaultDifficulty   = "medium"
	DefaultNumQuestions = 5
	MaxNumQuestions     = 20
)

// Difficulties 支持的难度
var Difficulties = []string{"easy", "medium", "hard"}

// DefaultQuizTemplate 默认出题提示词模板
// 包含变量：
// {{.Topic}} - 主题
// {{.Difficulty}} - 难度
// {{.NumQuestions}} - 题目数量
// {{.Types}} - 允许的题型
// {{.Material}} - 参考资料，可为空
const DefaultQuizTemplate = `You are a quiz author. Write a {{.Difficulty}} quiz about "{{.Topic}}" with exactly {{.NumQuestions}} questions.
Allowed question types: {{.Types}}.
{{.Material}}
Use exactly this Markdown layout and nothing else:

## <quiz title>

#### Question 1: <question type>
<question text>
A) <option>
B) <option>
C) <option>
D) <option>
Answer: <letter of the correct option, or the answer text>
Explanation: <one or two sentences>

Rules:
- Number the questions 1 to {{.NumQuestions}}, each under its own "#### Question N: <question type>" heading.
- The question type must be one of: {{.Types}}.
- Only Multiple Choice questions have the four options A) to D).
- True/False questions are answered with True or False.
- Put every field on its own line. Do not add commentary before or after the quiz.`

// materialTemplate 附带参考资料时插入的段落
const materialTemplate = `Base every question only on the reference material below.

Reference material:
"""
%s
"""
`

// QuizRequest 出题请求
type QuizRequest struct {
	Topic        string   `json:"topic"`
	Difficulty   string   `json:"difficulty"`
	NumQuestions int      `json:"num_questions"`
	Types        []string `json:"types,omitempty"`
	Material     string   `json:"-"` // 上传文档提取出的文本
	Source       string   `json:"-"` // 资料来源的文件名，只用于记录
}

// Normalize 填充默认值并校验请求
func (r *QuizRequest) Normalize() error {
	r.Topic = strings.TrimSpace(r.Topic)
	if r.Topic == "" {
		r.Topic = DefaultTopic
	}

	r.Difficulty = strings.ToLower(strings.TrimSpace(r.Difficulty))
	if r.Difficulty == "" {
		r.Difficulty = DefaultDifficulty
	}
	if !IsValidDifficulty(r.Difficulty) {
		return NewLLMError(ErrCodeInvalidRequest, "unsupported difficulty: "+r.Difficulty)
	}

	if r.NumQuestions == 0 {
		r.NumQuestions = DefaultNumQuestions
	}
	if r.NumQuestions < 1 || r.NumQuestions > MaxNumQuestions {
		return NewLLMError(ErrCodeInvalidRequest,
			fmt.Sprintf("num_questions must be between 1 and %d", MaxNumQuestions))
	}

	if len(r.Types) == 0 {
		r.Types = []string{
			string(quiz.TypeMultipleChoice),
			string(quiz.TypeShortAnswer),
			string(quiz.TypeTrueFalse),
		}
		return nil
	}
	types := make([]string, 0, len(r.Types))
	for _, name := range r.Types {
		t, ok := quiz.ParseType(name)
		if !ok {
			return NewLLMError(ErrCodeInvalidRequest, "unsupported question type: "+name)
		}
		types = append(types, string(t))
	}
	r.Types = types
	return nil
}

// IsValidDifficulty 判断难度是否受支持
func IsValidDifficulty(d string) bool {
	for _, v := range Difficulties {
		if v == d {
			return true
		}
	}
	return false
}

// QuizResponse 生成结果
type QuizResponse struct {
	RawText    string // 模型返回的原始文本
	ModelName  string // 模型名称
	TokenCount int    // 消耗的token数
	Truncated  bool   // 是否因长度限制被截断
}

// QuizConfig 出题生成器配置
type QuizConfig struct {
	Template         string        // 提示词模板
	MaxTokens        int           // 最大Token数
	Temperature      float32       // 温度参数
	Timeout          time.Duration // 超时时间
	MaxMaterialChars int           // 参考资料最大字符数
}

// DefaultQuizConfig 默认出题配置
func DefaultQuizConfig() *QuizConfig {
	return &QuizConfig{
		Template:         DefaultQuizTemplate,
		MaxTokens:        2048,
		Temperature:      0.7,
		Timeout:          90 * time.Second,
		MaxMaterialChars: 12000,
	}
}

// QuizOption 出题生成器配置选项
type QuizOption func(*QuizConfig)

// WithQuizTemplate 设置提示词模板
func WithQuizTemplate(template string) QuizOption {
	return func(c *QuizConfig) {
		if template != "" {
			c.Template = template
		}
	}
}

// WithQuizMaxTokens 设置最大Token数
func WithQuizMaxTokens(tokens int) QuizOption {
	return func(c *QuizConfig) {
		c.MaxTokens = tokens
	}
}

// WithQuizTemperature 设置温度参数
func WithQuizTemperature(temp float32) QuizOption {
	return func(c *QuizConfig) {
		c.Temperature = temp
	}
}

// WithQuizTimeout 设置请求超时时间
func WithQuizTimeout(timeout time.Duration) QuizOption {
	return func(c *QuizConfig) {
		c.Timeout = timeout
	}
}

// WithMaxMaterialChars 设置参考资料的最大字符数
func WithMaxMaterialChars(n int) QuizOption {
	return func(c *QuizConfig) {
		c.MaxMaterialChars = n
	}
}

// QuizGenerator 负责构建出题提示词并调用大模型
type QuizGenerator struct {
	Client Client       // 大模型客户端
	config *QuizConfig  // 配置
	mu     sync.RWMutex // 配置互斥锁
}

// NewQuizGenerator 创建出题生成器
func NewQuizGenerator(client Client, opts ...QuizOption) *QuizGenerator {
	cfg := DefaultQuizConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &QuizGenerator{
		Client: client,
		config: cfg,
	}
}

// UpdateConfig 更新配置
func (g *QuizGenerator) UpdateConfig(opts ...QuizOption) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cfg := *g.config
	for _, opt := range opts {
		opt(&cfg)
	}
	g.config = &cfg
}

// Generate 根据请求生成原始题目文本
func (g *QuizGenerator) Generate(ctx context.Context, req QuizRequest) (*QuizResponse, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	cfg := g.config
	g.mu.RUnlock()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	resp, err := g.Client.Generate(
		ctxWithTimeout,
		g.BuildPrompt(req),
		WithGenerateMaxTokens(cfg.MaxTokens),
		WithGenerateTemperature(cfg.Temperature),
	)
	if err != nil {
		return nil, WrapError(err, ErrCodeServerError)
	}

	return &QuizResponse{
		RawText:    resp.Text,
		ModelName:  resp.ModelName,
		TokenCount: resp.TokenCount,
		Truncated:  resp.Truncated(),
	}, nil
}

// BuildPrompt 用请求填充模板，请求需已Normalize
func (g *QuizGenerator) BuildPrompt(req QuizRequest) string {
	g.mu.RLock()
	template := g.config.Template
	maxChars := g.config.MaxMaterialChars
	g.mu.RUnlock()

	material := ""
	if m := strings.TrimSpace(req.Material); m != "" {
		material = "\n" + fmt.Sprintf(materialTemplate, TruncateRunes(m, maxChars))
	}

	r := strings.NewReplacer(
		"{{.Topic}}", req.Topic,
		"{{.Difficulty}}", req.Difficulty,
		"{{.NumQuestions}}", strconv.Itoa(req.NumQuestions),
		"{{.Types}}", strings.Join(req.Types, ", "),
		"{{.Material}}", material,
	)
	return r.Replace(template)
}

// TruncateRunes 按字符截断文本，maxChars<=0时不截断
func TruncateRunes(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxChars])
}
