package quiz

// QuestionType 题目类型标签
type QuestionType string

const (
	// TypeMultipleChoice 单项选择题
	TypeMultipleChoice QuestionType = "Multiple Choice"
	// TypeShortAnswer 简答题
	TypeShortAnswer QuestionType = "Short Answer"
	// TypeTrueFalse 判断题
	TypeTrueFalse QuestionType = "True/False"
	// TypeUnknown 兜底解析得到的题目，没有标题中的类型信息
	TypeUnknown QuestionType = "Unknown"
)

// Question 从生成文本中提取出的一道题目
type Question struct {
	Text        string       `json:"text"`        // 题干
	Options     []string     `json:"options"`     // 选项，保持出现顺序
	Answer      string       `json:"answer"`      // 答案
	Explanation string       `json:"explanation"` // 解析
	Type        QuestionType `json:"type"`        // 题目类型
}

// Stats 一次解析过程的统计信息
// 供调用方记录日志，不影响解析结果
type Stats struct {
	Headings   int  // 切分器找到的题目标题数
	Rejected   int  // 类型不在识别范围内而被丢弃的段落数
	Incomplete int  // 没有题干而被丢弃的段落数
	Fallback   bool // 结果是否来自兜底切分
}
