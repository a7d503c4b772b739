// Package export 将生成的测验渲染为可下载的文件
package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyerfyer/quiz-gen-system/internal/models"
	"github.com/fyerfyer/quiz-gen-system/internal/quiz"
)

// Format 导出格式
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ErrUnsupportedFormat 不支持的导出格式
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Formats 所有支持的导出格式
var Formats = []Format{FormatMarkdown, FormatHTML, FormatPDF, FormatJSON, FormatYAML}

// ParseFormat 解析格式名称，接受常见别名
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "markdown", "md", "":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "pdf":
		return FormatPDF, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// Extension 文件扩展名
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatHTML:
		return ".html"
	case FormatPDF:
		return ".pdf"
	case FormatJSON:
		return ".json"
	case FormatYAML:
		return ".yaml"
	}
	return ""
}

// MimeType 内容类型
func (f Format) MimeType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	}
	return "application/octet-stream"
}

// Rendered 渲染结果
type Rendered struct {
	Data     []byte
	FileName string
	MimeType string
	Pages    int // 仅PDF有效
}

// Config 导出配置
type Config struct {
	PageSize string // PDF纸张大小，A4或Letter
	Author   string // PDF作者信息
}

// DefaultConfig 默认导出配置
func DefaultConfig() *Config {
	return &Config{
		PageSize: "A4",
		Author:   "quizgen",
	}
}

// Option 导出配置选项
type Option func(*Config)

// WithPageSize 设置PDF纸张大小
func WithPageSize(size string) Option {
	return func(c *Config) {
		if size != "" {
			c.PageSize = size
		}
	}
}

// WithAuthor 设置PDF作者
func WithAuthor(author string) Option {
	return func(c *Config) {
		c.Author = author
	}
}

// Exporter 测验导出器，可并发使用
type Exporter struct {
	config *Config
}

// NewExporter 创建导出器
func NewExporter(opts ...Option) *Exporter {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Exporter{config: cfg}
}

// Render 按指定格式渲染测验
func (e *Exporter) Render(q *models.Quiz, format Format) (*Rendered, error) {
	if q == nil {
		return nil, errors.New("quiz is nil")
	}

	doc := newDocument(q)

	var (
		data  []byte
		pages int
		err   error
	)
	switch format {
	case FormatMarkdown:
		data = []byte(renderMarkdown(doc))
	case FormatHTML:
		data = renderHTML(doc)
	case FormatPDF:
		data, pages, err = e.renderPDF(doc)
	case FormatJSON:
		data, err = renderJSON(doc)
	case FormatYAML:
		data, err = renderYAML(doc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", format, err)
	}

	return &Rendered{
		Data:     data,
		FileName: "quiz-" + q.ID + format.Extension(),
		MimeType: format.MimeType(),
		Pages:    pages,
	}, nil
}

// document 导出内容
type document struct {
	ID         string          `json:"id" yaml:"id"`
	Topic      string          `json:"topic" yaml:"topic"`
	Difficulty string          `json:"difficulty" yaml:"difficulty"`
	Model      string          `json:"model,omitempty" yaml:"model,omitempty"`
	CreatedAt  string          `json:"created_at" yaml:"created_at"`
	Questions  []quiz.Question `json:"questions" yaml:"questions"`
}

func newDocument(q *models.Quiz) *document {
	return &document{
		ID:         q.ID,
		Topic:      q.Topic,
		Difficulty: q.Difficulty,
		Model:      q.Model,
		CreatedAt:  q.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Questions:  models.ToQuestions(q.Questions),
	}
}

func (d *document) title() string {
	if d.Topic == "" {
		return "Quiz"
	}
	return "Quiz: " + d.Topic
}
