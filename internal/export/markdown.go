package export

import (
	"fmt"
	"strings"

	"github.com/fyerfyer/quiz-gen-system/internal/quiz"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// renderMarkdown 按生成文本的标题格式输出，结果可以被quiz.Parse重新解析
// 每个字段单独成段，避免渲染HTML时多行合并
func renderMarkdown(d *document) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", d.title())
	fmt.Fprintf(&b, "Difficulty: %s\n\n", d.Difficulty)

	for i, q := range d.Questions {
		fmt.Fprintf(&b, "#### Question %d: %s\n\n", i+1, headingLabel(q))
		fmt.Fprintf(&b, "**%s**\n\n", q.Text)
		for _, opt := range q.Options {
			fmt.Fprintf(&b, "%s\n\n", opt)
		}
		if q.Answer != "" {
			fmt.Fprintf(&b, "Answer: %s\n\n", q.Answer)
		}
		if q.Explanation != "" {
			fmt.Fprintf(&b, "Explanation: %s\n\n", q.Explanation)
		}
	}

	return b.String()
}

// headingLabel 题目标题中的类型标签
func headingLabel(q quiz.Question) string {
	if q.Type == "" {
		return string(quiz.TypeUnknown)
	}
	return string(q.Type)
}

// renderHTML 将Markdown渲染为完整的HTML页面
func renderHTML(d *document) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse([]byte(renderMarkdown(d)))

	renderer := html.NewRenderer(html.RendererOptions{
		Title: d.title(),
		Flags: html.CommonFlags | html.CompletePage | html.HrefTargetBlank,
	})
	return markdown.Render(doc, renderer)
}
