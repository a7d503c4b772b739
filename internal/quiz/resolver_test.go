package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestResolveAnswer 测试字母答案展开
func TestResolveAnswer(t *testing.T) {
	options := []string{"A) Paris", "B) Rome", "C) Berlin", "D) Madrid"}

	tests := []struct {
		name     string
		question Question
		expected string
	}{
		{"letter with paren", Question{Options: options, Answer: "A"}, "A) Paris"},
		{"letter with dot", Question{Options: []string{"A. Paris", "B. Rome"}, Answer: "B"}, "B. Rome"},
		{"letter without option", Question{Options: options[:2], Answer: "D"}, "D"},
		{"no options", Question{Answer: "A"}, "A"},
		{"lowercase letter", Question{Options: options, Answer: "a"}, "a"},
		{"letter outside range", Question{Options: options, Answer: "E"}, "E"},
		{"full text answer", Question{Options: options, Answer: "Paris"}, "Paris"},
		{"first match wins", Question{Options: []string{"C) one", "C) two"}, Answer: "C"}, "C) one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveAnswer(tt.question).Answer)
		})
	}
}

// TestResolveAnswerDoesNotMutateOptions 测试展开答案不修改选项
func TestResolveAnswerDoesNotMutateOptions(t *testing.T) {
	q := Question{Options: []string{"A) x", "B) y"}, Answer: "B"}

	resolved := resolveAnswer(q)

	assert.Equal(t, "B", q.Answer)
	assert.Equal(t, "B) y", resolved.Answer)
	assert.Equal(t, q.Options, resolved.Options)
}

func TestParseType(t *testing.T) {
	typ, ok := ParseType("true / false")
	assert.True(t, ok)
	assert.Equal(t, TypeTrueFalse, typ)

	typ, ok = ParseType("MULTIPLE CHOICE")
	assert.True(t, ok)
	assert.Equal(t, TypeMultipleChoice, typ)

	_, ok = ParseType("Essay")
	assert.False(t, ok)
}
