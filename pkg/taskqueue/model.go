package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskQuizGenerate 异步生成题目任务
	TaskQuizGenerate TaskType = "quiz_generate"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	QuizID      string          `json:"quiz_id"`      // 关联的题目记录ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷
	Result      json.RawMessage `json:"result"`       // 任务结果
	Error       string          `json:"error"`        // 错误信息
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 已执行次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// Finished 任务是否已结束
func (t *Task) Finished() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// QuizGeneratePayload 生成题目任务载荷
type QuizGeneratePayload struct {
	QuizID       string   `json:"quiz_id"`
	Topic        string   `json:"topic"`
	Difficulty   string   `json:"difficulty"`
	NumQuestions int      `json:"num_questions"`
	Types        []string `json:"types,omitempty"`
	Material     string   `json:"material,omitempty"` // 上传文档提取出的文本
	Source       string   `json:"source,omitempty"`   // 上传文档的文件名
}

// QuizGenerateResult 生成题目任务结果
type QuizGenerateResult struct {
	QuizID        string `json:"quiz_id"`
	QuestionCount int    `json:"question_count"`
	UsedFallback  bool   `json:"used_fallback"`
	Attempts      int    `json:"attempts"`
	Model         string `json:"model"`
}
