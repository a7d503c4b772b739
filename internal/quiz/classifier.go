package quiz

import "strings"

// recognizedTypes 严格路径接受的类型集合，键为归一化后的小写标签
var recognizedTypes = map[string]QuestionType{
	"multiple choice": TypeMultipleChoice,
	"short answer":    TypeShortAnswer,
	"true/false":      TypeTrueFalse,
}

// classify 识别标题中的类型标签
// 标签不在集合中时返回false，该段落直接丢弃
func classify(label string) (QuestionType, bool) {
	t, ok := recognizedTypes[normalizeLabel(label)]
	return t, ok
}

// normalizeLabel 去掉强调符号、合并空白、统一斜杠两侧的空格并转为小写
func normalizeLabel(label string) string {
	label = strings.Trim(strings.TrimSpace(label), "*_")
	label = strings.Join(strings.Fields(label), " ")
	label = strings.ReplaceAll(label, " /", "/")
	label = strings.ReplaceAll(label, "/ ", "/")
	return strings.ToLower(strings.TrimSpace(label))
}

// ParseType 将外部传入的题型名称解析为QuestionType
func ParseType(name string) (QuestionType, bool) {
	return classify(name)
}
