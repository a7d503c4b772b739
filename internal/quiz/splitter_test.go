package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSplitSections 测试按标题切分并保留标题
func TestSplitSections(t *testing.T) {
	text := "## Biology Quiz\nIntro line\n### Question 1: Short Answer\nWhat is DNA?\r\nAnswer: A molecule\n#### **Question 2: True/False**\nCells have walls.\n"

	segments := splitSections(text)

	require.Len(t, segments, 2)
	assert.Equal(t, "### Question 1: Short Answer", segments[0].heading)
	assert.Equal(t, "Short Answer", segments[0].label)
	assert.Equal(t, []string{"What is DNA?", "Answer: A molecule", ""}, segments[0].body)
	assert.Equal(t, "True/False**", segments[1].label)
	assert.Equal(t, "Cells have walls.", segments[1].body[0])
}

// TestSplitSectionsNoHeadings 测试没有标题时不产生段落
func TestSplitSectionsNoHeadings(t *testing.T) {
	assert.Empty(t, splitSections("1. What?\nA) yes"))
	assert.Empty(t, splitSections("Question 1: Multiple Choice\nnot a heading"))
	assert.Empty(t, splitSections("  #### Question 1: Multiple Choice\nindented heading"))
}

// TestClassify 测试类型识别
func TestClassify(t *testing.T) {
	tests := []struct {
		label    string
		expected QuestionType
		ok       bool
	}{
		{"Multiple Choice", TypeMultipleChoice, true},
		{"multiple  choice ", TypeMultipleChoice, true},
		{"Short Answer", TypeShortAnswer, true},
		{"TRUE/FALSE", TypeTrueFalse, true},
		{"True / False", TypeTrueFalse, true},
		{"**Short Answer**", TypeShortAnswer, true},
		{"Fill-in-the-blank", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := classify(tt.label)
		assert.Equal(t, tt.ok, ok, tt.label)
		assert.Equal(t, tt.expected, got, tt.label)
	}
}

// TestNormalize 测试空白输入判断
func TestNormalize(t *testing.T) {
	assert.False(t, normalize(""))
	assert.False(t, normalize(" \n\t "))
	assert.True(t, normalize(" x "))
}
