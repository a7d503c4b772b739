package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Parser 文档解析器接口
// 负责把上传的资料转换为可放入提示词的纯文本
type Parser interface {
	// Parse 解析文档，返回文本内容
	Parse(filePath string) (string, error)

	// ParseReader 从Reader解析文档，filename用于确定文档类型
	ParseReader(r io.Reader, filename string) (string, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ErrUnsupportedType 不支持的文档类型
var ErrUnsupportedType = errors.New("unsupported document type")

// ErrEmptyContent 文档中没有可用的文本
var ErrEmptyContent = errors.New("no text content found in document")

// ParserFactory 根据文件扩展名创建对应的解析器
func ParserFactory(filePath string) (Parser, error) {
	switch DetectContentType(filePath) {
	case PDF:
		return NewPDFParser(), nil
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(filePath))
	}
}

// DetectContentType 根据文件扩展名检测内容类型
func DetectContentType(filePath string) ContentType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	case ".txt", ".text":
		return PlainText
	default:
		return Unknown
	}
}

// ExtractText 按文件名选择解析器并返回规范化后的文本
func ExtractText(r io.Reader, filename string) (string, error) {
	parser, err := ParserFactory(filename)
	if err != nil {
		return "", err
	}

	text, err := parser.ParseReader(r, filename)
	if err != nil {
		return "", err
	}

	text = Normalize(text)
	if text == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

var (
	// 行内连续空白
	inlineSpacePattern = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	// 三个及以上连续换行
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
)

// Normalize 将文本转为NFC形式，合并行内空白并压缩多余的空行
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpacePattern.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// Truncate 按字符截断文本，优先在段落或句子边界处截断
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:maxChars])

	// 边界太靠前时直接硬截断
	minKeep := len(cut) / 2
	if idx := strings.LastIndex(cut, "\n\n"); idx >= minKeep {
		return strings.TrimSpace(cut[:idx])
	}
	if idx := strings.LastIndexAny(cut, ".!?。！？"); idx >= minKeep {
		_, size := utf8.DecodeRuneInString(cut[idx:])
		return strings.TrimSpace(cut[:idx+size])
	}
	return strings.TrimSpace(cut)
}

// openFile 打开文件并交给ParseReader处理
func openFile(p Parser, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}
