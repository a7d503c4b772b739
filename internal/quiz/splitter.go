package quiz

import (
	"regexp"
	"strings"
)

// headingPattern 匹配题目标题行，例如 "#### Question 3: Multiple Choice"
// 第一个分组是题号，第二个分组是类型标签
var headingPattern = regexp.MustCompile(`(?mi)^#{1,6}[ \t]*[*_]*[ \t]*Question[ \t]+(\d+)[ \t]*:[ \t]*([^\n]*)$`)

// segment 一段归属于同一道候选题目的文本
type segment struct {
	heading string   // 标题行原文
	label   string   // 标题中的类型标签
	body    []string // 标题之后的正文行
}

// normalize 判断输入是否为空白文本
// 返回false表示整个解析流程直接返回空结果
func normalize(text string) bool {
	return strings.TrimSpace(text) != ""
}

// splitSections 按题目标题切分文本
// 标题行保留在它引出的段落中；第一个标题之前的内容（例如文档标题）不属于任何段落
func splitSections(text string) []segment {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	matches := headingPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	segments := make([]segment, 0, len(matches))
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		// 正文从标题行结束处开始
		body := strings.TrimPrefix(text[m[1]:end], "\n")

		segments = append(segments, segment{
			heading: text[m[0]:m[1]],
			label:   text[m[4]:m[5]],
			body:    strings.Split(body, "\n"),
		})
	}

	return segments
}
