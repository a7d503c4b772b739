package document

import (
	"fmt"
	"io"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownParser Markdown文档解析器
// 遍历语法树收集文本，丢弃链接地址、图片和HTML等标记
type MarkdownParser struct{}

// NewMarkdownParser 创建新的Markdown解析器
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse 解析Markdown文件并提取文本内容
func (p *MarkdownParser) Parse(filePath string) (string, error) {
	return openFile(p, filePath)
}

// ParseReader 从Reader解析Markdown内容
func (p *MarkdownParser) ParseReader(r io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read markdown content: %w", err)
	}

	mdParser := parser.NewWithExtensions(parser.CommonExtensions)
	doc := mdParser.Parse(content)

	var sb strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Image, *ast.HTMLBlock, *ast.HTMLSpan:
			return ast.SkipChildren
		case *ast.Text:
			if entering {
				sb.Write(n.Literal)
			}
		case *ast.Code:
			if entering {
				sb.Write(n.Literal)
			}
		case *ast.CodeBlock:
			if entering {
				sb.Write(n.Literal)
				sb.WriteString("\n")
			}
		case *ast.Softbreak, *ast.Hardbreak:
			if entering {
				sb.WriteString("\n")
			}
		case *ast.Heading, *ast.Paragraph:
			if !entering {
				sb.WriteString("\n\n")
			}
		case *ast.ListItem:
			if entering {
				sb.WriteString("- ")
			}
		case *ast.TableCell:
			if !entering {
				sb.WriteString(" | ")
			}
		case *ast.TableRow:
			if !entering {
				sb.WriteString("\n")
			}
		}
		return ast.GoToNext
	})

	return sb.String(), nil
}
