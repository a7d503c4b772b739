package quiz

import (
	"regexp"
	"strings"
)

var (
	// numberedPattern 编号题目，例如 "1. What is 2+2?"
	numberedPattern = regexp.MustCompile(`^\d+\.\s*`)
	// questionWordPattern 以 question 开头的行，连同可能的题号和分隔符
	questionWordPattern = regexp.MustCompile(`(?i)^question\b\s*\d*\s*[:.)\-]?\s*`)
	// headingMarkerPattern Markdown标题符号
	headingMarkerPattern = regexp.MustCompile(`^#{1,6}\s*`)
)

// fallbackSegments 以更宽松的规则重新切分原文
// 仅在严格路径没有产出任何题目时调用，得到的题目类型固定为 Unknown
func fallbackSegments(text string) []Question {
	var (
		records []Question
		current *draft
		state   fieldState
	)

	flush := func() {
		if current == nil {
			return
		}
		if q, ok := current.build(TypeUnknown); ok {
			records = append(records, q)
		}
		current = nil
	}

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)

		if questionText, ok := openRecord(line); ok {
			flush()
			current = &draft{}
			state = stateAwaitingQuestion
			if questionText != "" {
				state, *current = step(state, *current, questionText)
			}
			continue
		}

		if current == nil {
			continue
		}
		state, *current = step(state, *current, line)
	}
	flush()

	return records
}

// openRecord 判断一行是否开启新题目，并返回该行携带的题干
// 标题行和只带题型标签的行不携带题干，题干从后续行读取
func openRecord(line string) (string, bool) {
	heading := headingMarkerPattern.MatchString(line)
	if heading {
		line = strings.TrimLeft(headingMarkerPattern.ReplaceAllString(line, ""), "*_ ")
	}

	if loc := numberedPattern.FindStringIndex(line); loc != nil {
		return openerText(line[loc[1]:]), true
	}

	if loc := questionWordPattern.FindStringIndex(line); loc != nil {
		if heading {
			return "", true
		}
		return openerText(line[loc[1]:]), true
	}

	return "", false
}

// openerText 开启行的剩余部分是题型标签时视为没有题干
func openerText(rest string) string {
	if _, ok := classify(rest); ok {
		return ""
	}
	return rest
}
