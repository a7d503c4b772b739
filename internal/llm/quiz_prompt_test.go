package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestQuizRequestNormalize 测试默认值与校验
func TestQuizRequestNormalize(t *testing.T) {
	req := QuizRequest{}
	require.NoError(t, req.Normalize())
	assert.Equal(t, DefaultTopic, req.Topic)
	assert.Equal(t, DefaultDifficulty, req.Difficulty)
	assert.Equal(t, DefaultNumQuestions, req.NumQuestions)
	assert.Equal(t, []string{"Multiple Choice", "Short Answer", "True/False"}, req.Types)

	req = QuizRequest{Topic: " Space ", Difficulty: "HARD", NumQuestions: 3, Types: []string{"true/false"}}
	require.NoError(t, req.Normalize())
	assert.Equal(t, "Space", req.Topic)
	assert.Equal(t, "hard", req.Difficulty)
	assert.Equal(t, []string{"True/False"}, req.Types)

	invalid := []QuizRequest{
		{Difficulty: "impossible"},
		{NumQuestions: -1},
		{NumQuestions: MaxNumQuestions + 1},
		{Types: []string{"Essay"}},
	}
	for _, r := range invalid {
		err := r.Normalize()
		var llmErr LLMError
		require.ErrorAs(t, err, &llmErr)
		assert.Equal(t, ErrCodeInvalidRequest, llmErr.Code)
	}
}

// TestBuildPrompt 测试提示词填充
func TestBuildPrompt(t *testing.T) {
	g := NewQuizGenerator(nil)
	req := QuizRequest{Topic: "Photosynthesis", Difficulty: "easy", NumQuestions: 3}
	require.NoError(t, req.Normalize())

	prompt := g.BuildPrompt(req)
	assert.Contains(t, prompt, `easy quiz about "Photosynthesis" with exactly 3 questions`)
	assert.Contains(t, prompt, "Multiple Choice, Short Answer, True/False")
	assert.Contains(t, prompt, "#### Question 1: <question type>")
	assert.NotContains(t, prompt, "{{.")
	assert.NotContains(t, prompt, "Reference material")

	// 参考资料按字符截断
	g = NewQuizGenerator(nil, WithMaxMaterialChars(5))
	req.Material = "叶绿体吸收光能并合成葡萄糖"
	prompt = g.BuildPrompt(req)
	assert.Contains(t, prompt, "Reference material")
	assert.Contains(t, prompt, "叶绿体吸收\n")
	assert.NotContains(t, prompt, "光能")

	g.UpdateConfig(WithQuizTemplate("{{.NumQuestions}} x {{.Topic}}"))
	assert.Equal(t, "3 x Photosynthesis", g.BuildPrompt(req))
}

// TestQuizGeneratorGenerate 测试调用大模型
func TestQuizGeneratorGenerate(t *testing.T) {
	client := NewMockClient(t)
	client.EXPECT().
		Generate(mock.Anything, mock.MatchedBy(func(p string) bool {
			return strings.Contains(p, `"General Knowledge"`)
		}), mock.Anything).
		Run(func(ctx context.Context, prompt string, options ...GenerateOption) {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			opts := applyGenerateOptions(options)
			require.NotNil(t, opts.MaxTokens)
			assert.Equal(t, 1024, *opts.MaxTokens)
		}).
		Return(&Response{Text: "raw quiz", ModelName: "mock-model", TokenCount: 7, FinishReason: "length"}, nil)

	g := NewQuizGenerator(client, WithQuizMaxTokens(1024), WithQuizTimeout(time.Second))
	resp, err := g.Generate(context.Background(), QuizRequest{})
	require.NoError(t, err)
	assert.Equal(t, "raw quiz", resp.RawText)
	assert.Equal(t, "mock-model", resp.ModelName)
	assert.Equal(t, 7, resp.TokenCount)
	assert.True(t, resp.Truncated)
}

// TestQuizGeneratorErrors 测试错误包装
func TestQuizGeneratorErrors(t *testing.T) {
	client := NewMockClient(t)
	client.EXPECT().Generate(mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset"))

	g := NewQuizGenerator(client)
	_, err := g.Generate(context.Background(), QuizRequest{Topic: "Go"})
	var llmErr LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeServerError, llmErr.Code)

	// 非法请求不会调用大模型
	_, err = g.Generate(context.Background(), QuizRequest{Difficulty: "extreme"})
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrCodeInvalidRequest, llmErr.Code)
}
