package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding/charmap"
)

// PDFParser PDF文档解析器
// pdfcpu导出每页的内容流，再从文本操作符中取出字符串
type PDFParser struct{}

// NewPDFParser 创建一个新的PDF解析器
func NewPDFParser() Parser {
	return &PDFParser{}
}

// Parse 解析PDF文件并提取其文本内容
func (p *PDFParser) Parse(filePath string) (string, error) {
	return openFile(p, filePath)
}

// ParseReader 从Reader解析PDF内容
func (p *PDFParser) ParseReader(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf content: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ExtractContent(bytes.NewReader(data), tmpDir, "content", nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract content from PDF: %w", err)
	}

	files, err := os.ReadDir(tmpDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted content dir: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		if strings.HasSuffix(f.Name(), ".txt") {
			names = append(names, f.Name())
		}
	}
	// 按页码排序，page_10排在page_2之后
	sort.Slice(names, func(i, j int) bool {
		return pageNumber(names[i]) < pageNumber(names[j])
	})

	var allText strings.Builder
	for _, name := range names {
		stream, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			continue
		}
		text := strings.TrimSpace(decodePDFText(contentStreamText(string(stream))))
		if text == "" {
			continue
		}
		if allText.Len() > 0 {
			allText.WriteString("\n\n")
		}
		allText.WriteString(text)
	}

	result := strings.TrimSpace(allText.String())
	if result == "" {
		return "", ErrEmptyContent
	}
	return result, nil
}

// PageCount 返回PDF的页数
func PageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}

var pageNumberPattern = regexp.MustCompile(`(\d+)\.txt$`)

// pageNumber 从导出文件名中取出页码
func pageNumber(name string) int {
	m := pageNumberPattern.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

var (
	// 文本显示操作符：(string) Tj / (string) ' / [(a) -20 (b)] TJ
	textShowPattern = regexp.MustCompile(`(?s)(\((?:\\.|[^\\)])*\)|\[(?:[^\]\\]|\\.)*\])\s*(Tj|TJ|'|")`)
	// 换行操作符
	lineMovePattern = regexp.MustCompile(`^(?:T\*|Td|TD|ET)$`)
	// TJ数组中的字符串
	arrayStringPattern = regexp.MustCompile(`\((?:\\.|[^\\)])*\)`)
)

// contentStreamText 从内容流中提取可读文本
func contentStreamText(stream string) string {
	var sb strings.Builder
	last := 0
	for _, m := range textShowPattern.FindAllStringSubmatchIndex(stream, -1) {
		// 两次文本输出之间出现换行操作符时换行
		if sb.Len() > 0 && hasLineMove(stream[last:m[0]]) {
			sb.WriteString("\n")
		}

		operand := stream[m[2]:m[3]]
		if strings.HasPrefix(operand, "[") {
			for _, s := range arrayStringPattern.FindAllString(operand, -1) {
				sb.WriteString(unescapePDFString(s))
			}
		} else {
			sb.WriteString(unescapePDFString(operand))
		}
		last = m[1]
	}
	return sb.String()
}

// decodePDFText 标准字体按WinAnsi编码输出，非UTF-8内容按Windows-1252解码
func decodePDFText(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	decoded, err := charmap.Windows1252.NewDecoder().String(s)
	if err != nil {
		return strings.ToValidUTF8(s, "")
	}
	return decoded
}

// hasLineMove 判断片段中是否有换行操作符
func hasLineMove(segment string) bool {
	for _, field := range strings.Fields(segment) {
		if lineMovePattern.MatchString(field) {
			return true
		}
	}
	return false
}

// unescapePDFString 解析PDF字面量字符串的转义
func unescapePDFString(s string) string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")

	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b', 'f':
		case '0', '1', '2', '3', '4', '5', '6', '7':
			// 最多三位八进制
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(s[i:j], 8, 8)
			sb.WriteByte(byte(v))
			i = j - 1
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
