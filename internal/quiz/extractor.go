package quiz

import (
	"regexp"
	"strings"
)

// OptionLetters 可识别的选项字母，对应四选一题型
const OptionLetters = "ABCD"

var (
	// optionPattern 选项行，例如 "A) Paris" 或 "B. Rome"
	optionPattern = regexp.MustCompile(`^[` + OptionLetters + `][).]\s*\S`)
	// answerPattern 答案行，关键字两侧允许出现强调符号
	answerPattern = regexp.MustCompile(`(?i)^[*_]*\s*answer\s*[*_]*\s*:(.*)$`)
	// explanationPattern 解析行
	explanationPattern = regexp.MustCompile(`(?i)^[*_]*\s*explanation\s*[*_]*\s*:(.*)$`)
	// orphanMarkerPattern 关键字闭合后残留的强调符号，例如 "**Answer:** C" 中的 "** "
	orphanMarkerPattern = regexp.MustCompile(`^[*_]+\s+`)
	// dunderPattern 形如 __init__ 的标识符，不当作强调处理
	dunderPattern = regexp.MustCompile(`^__\w+__$`)
)

// fieldState 逐行提取时当前所处的字段
type fieldState int

const (
	stateAwaitingQuestion fieldState = iota // 等待题干
	stateQuestion                           // 已读到题干
	stateOptions                            // 正在读取选项
	stateAnswer                             // 已读到答案
	stateExplanation                        // 正在读取解析，进入后不再离开
)

// draft 单个段落的题目草稿
type draft struct {
	text        string
	options     []string
	answer      string
	answered    bool // 已出现过答案行，即使值为空
	explanation []string
}

// step 处理一行文本，返回新的状态和草稿
func step(state fieldState, d draft, raw string) (fieldState, draft) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return state, d
	}

	switch state {
	case stateAwaitingQuestion:
		d.text = stripEmphasis(line)
		return stateQuestion, d
	case stateExplanation:
		d.explanation = append(d.explanation, line)
		return stateExplanation, d
	}

	if optionPattern.MatchString(line) {
		d.options = append(d.options, line)
		return stateOptions, d
	}

	if m := answerPattern.FindStringSubmatch(line); m != nil {
		if !d.answered {
			d.answer = trimMarkers(m[1])
			d.answered = true
		}
		return stateAnswer, d
	}

	if m := explanationPattern.FindStringSubmatch(line); m != nil {
		if rest := trimMarkers(m[1]); rest != "" {
			d.explanation = append(d.explanation, rest)
		}
		return stateExplanation, d
	}

	// 其余行视为噪声或续行，直接忽略
	return state, d
}

// extract 对一个段落的正文运行状态机
// 没有题干时返回false
func extract(lines []string, t QuestionType) (Question, bool) {
	state := stateAwaitingQuestion
	var d draft
	for _, line := range lines {
		state, d = step(state, d, line)
	}
	return d.build(t)
}

// build 将草稿转换为题目
func (d draft) build(t QuestionType) (Question, bool) {
	if d.text == "" {
		return Question{}, false
	}

	options := make([]string, len(d.options))
	copy(options, d.options)

	return Question{
		Text:        d.text,
		Options:     options,
		Answer:      d.answer,
		Explanation: strings.Join(d.explanation, " "),
		Type:        t,
	}, true
}

// stripEmphasis 去掉包裹整行的一层强调符号，例如 "**text**"
func stripEmphasis(line string) string {
	for _, marker := range []string{"**", "__", "*", "_"} {
		if len(line) > 2*len(marker) && strings.HasPrefix(line, marker) && strings.HasSuffix(line, marker) {
			return strings.TrimSpace(line[len(marker) : len(line)-len(marker)])
		}
	}
	return line
}

// trimMarkers 去掉字段值中关键字残留的强调符号和包裹整个值的一层强调
// 值内部成对的强调保持原样
func trimMarkers(s string) string {
	s = strings.TrimSpace(s)
	if m := orphanMarkerPattern.FindString(s); m != "" {
		s = s[len(m):]
	}

	// 整行加粗时只在一端残留 "*"，例如 "**Answer: C**"
	if n := len(s) - len(strings.TrimRight(s, "*")); n > 0 && strings.Count(s, "*") == n {
		s = s[:len(s)-n]
	}
	if n := len(s) - len(strings.TrimLeft(s, "*")); n > 0 && strings.Count(s, "*") == n {
		s = s[n:]
	}

	s = strings.TrimSpace(s)
	if dunderPattern.MatchString(s) {
		return s
	}
	return stripEmphasis(s)
}
