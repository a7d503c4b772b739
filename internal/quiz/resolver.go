package quiz

import "strings"

// resolveAnswer 将单字母答案展开为完整的选项文本
// 找不到对应选项时保留原字母
func resolveAnswer(q Question) Question {
	if len(q.Answer) != 1 || !strings.Contains(OptionLetters, q.Answer) || len(q.Options) == 0 {
		return q
	}

	for _, opt := range q.Options {
		if strings.HasPrefix(opt, q.Answer+")") || strings.HasPrefix(opt, q.Answer+".") {
			q.Answer = opt
			break
		}
	}
	return q
}
