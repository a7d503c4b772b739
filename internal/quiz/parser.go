// Package quiz 从大模型生成的自由文本中提取结构化的测验题目
//
// 解析过程是纯函数：不做I/O、不持有状态，相同输入总是得到相同输出，
// 可以被多个goroutine并发调用。任何输入都会得到一个确定的结果，
// 没有识别出题目时返回空切片而不是错误。
package quiz

// Parse 解析生成文本，返回按出现顺序排列的题目
func Parse(text string) []Question {
	questions, _ := ParseWithStats(text)
	return questions
}

// ParseWithStats 解析生成文本，同时返回解析统计信息
func ParseWithStats(text string) ([]Question, Stats) {
	var stats Stats

	if !normalize(text) {
		return []Question{}, stats
	}

	// 严格路径：按标题切分，过滤类型，逐段提取
	segments := splitSections(text)
	stats.Headings = len(segments)

	var records []Question
	for _, seg := range segments {
		t, ok := classify(seg.label)
		if !ok {
			stats.Rejected++
			continue
		}

		q, ok := extract(seg.body, t)
		if !ok {
			stats.Incomplete++
			continue
		}
		records = append(records, q)
	}

	// 严格路径没有产出时使用兜底切分
	if len(records) == 0 {
		records = fallbackSegments(text)
		stats.Fallback = len(records) > 0
	}

	return assemble(records), stats
}

// assemble 按顺序汇总题目并展开字母答案
func assemble(records []Question) []Question {
	result := make([]Question, 0, len(records))
	for _, q := range records {
		result = append(result, resolveAnswer(q))
	}
	return result
}
