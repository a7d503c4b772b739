package model

import (
	"time"

	"github.com/fyerfyer/quiz-gen-system/internal/models"
	"github.com/fyerfyer/quiz-gen-system/internal/quiz"
	"github.com/fyerfyer/quiz-gen-system/pkg/storage"
	"github.com/fyerfyer/quiz-gen-system/pkg/taskqueue"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// QuizInfo 题目记录信息
type QuizInfo struct {
	ID            string          `json:"id"`
	Topic         string          `json:"topic"`
	Difficulty    string          `json:"difficulty"`
	NumQuestions  int             `json:"num_questions"`
	Types         []string        `json:"types,omitempty"`
	SourceName    string          `json:"source_name,omitempty"`
	Status        string          `json:"status"`
	Model         string          `json:"model,omitempty"`
	Error         string          `json:"error,omitempty"`
	QuestionCount int             `json:"question_count"`
	UsedFallback  bool            `json:"used_fallback"`
	Attempts      int             `json:"attempts"`
	TaskID        string          `json:"task_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Questions     []quiz.Question `json:"questions,omitempty"`
}

// NewQuizInfo 转换题目记录，withQuestions控制是否包含题目
func NewQuizInfo(q *models.Quiz, withQuestions bool) QuizInfo {
	info := QuizInfo{
		ID:            q.ID,
		Topic:         q.Topic,
		Difficulty:    q.Difficulty,
		NumQuestions:  q.NumQuestions,
		Types:         q.TypeList(),
		SourceName:    q.SourceName,
		Status:        string(q.Status),
		Model:         q.Model,
		Error:         q.Error,
		QuestionCount: q.QuestionCount,
		UsedFallback:  q.UsedFallback,
		Attempts:      q.Attempts,
		TaskID:        q.TaskID,
		CreatedAt:     q.CreatedAt,
		UpdatedAt:     q.UpdatedAt,
	}
	if withQuestions {
		info.Questions = models.ToQuestions(q.Questions)
	}
	return info
}

// QuizListResponse 题目列表响应
type QuizListResponse struct {
	Total    int64      `json:"total"`     // 总数量
	Page     int        `json:"page"`      // 当前页码
	PageSize int        `json:"page_size"` // 每页大小
	Quizzes  []QuizInfo `json:"quizzes"`   // 记录列表
}

// QuizAcceptedResponse 异步生成已受理响应
type QuizAcceptedResponse struct {
	QuizID string `json:"quiz_id"`
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// QuizDeleteResponse 删除响应
type QuizDeleteResponse struct {
	Success bool   `json:"success"`
	QuizID  string `json:"quiz_id"`
}

// ParseStats 解析统计信息
type ParseStats struct {
	Headings   int  `json:"headings"`
	Rejected   int  `json:"rejected"`
	Incomplete int  `json:"incomplete"`
	Fallback   bool `json:"fallback"`
}

// ParseResponse 文本解析响应
type ParseResponse struct {
	Questions []quiz.Question `json:"questions"`
	Stats     ParseStats      `json:"stats"`
}

// NewParseResponse 创建解析响应
func NewParseResponse(questions []quiz.Question, stats quiz.Stats) ParseResponse {
	return ParseResponse{
		Questions: questions,
		Stats: ParseStats{
			Headings:   stats.Headings,
			Rejected:   stats.Rejected,
			Incomplete: stats.Incomplete,
			Fallback:   stats.Fallback,
		},
	}
}

// ExportResponse 导出响应
type ExportResponse struct {
	FileID      string `json:"file_id"`
	FileName    string `json:"filename"`
	Size        int64  `json:"size"`
	MimeType    string `json:"mime_type"`
	DownloadURL string `json:"download_url"`
}

// NewExportResponse 创建导出响应
func NewExportResponse(info storage.FileInfo) ExportResponse {
	return ExportResponse{
		FileID:      info.ID,
		FileName:    info.Name,
		Size:        info.Size,
		MimeType:    info.MimeType,
		DownloadURL: "/api/exports/" + info.ID,
	}
}

// TaskStatusResponse 任务状态响应
type TaskStatusResponse struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	QuizID      string      `json:"quiz_id"`
	Status      string      `json:"status"`
	Progress    float64     `json:"progress"`
	Attempts    int         `json:"attempts"`
	Error       string      `json:"error,omitempty"`
	Result      interface{} `json:"result,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// NewTaskStatusResponse 转换任务信息
func NewTaskStatusResponse(task *taskqueue.Task) TaskStatusResponse {
	info := taskqueue.NewTaskInfo(task)
	resp := TaskStatusResponse{
		ID:          info.ID,
		Type:        string(info.Type),
		QuizID:      info.QuizID,
		Status:      string(info.Status),
		Progress:    info.Progress,
		Attempts:    info.Attempts,
		Error:       info.Error,
		CreatedAt:   info.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
		CompletedAt: info.CompletedAt,
	}
	if len(info.Result) > 0 {
		resp.Result = info.Result
	}
	return resp
}

// PaginationResponse 分页响应信息
type PaginationResponse struct {
	Total    int `json:"total"`     // 总记录数
	Page     int `json:"page"`      // 当前页码
	PageSize int `json:"page_size"` // 每页大小
}

// LegacyQuestion 兼容接口的题目格式
type LegacyQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
	Type        string   `json:"type"`
}

// LegacyQuizResponse 兼容接口响应，不使用通用响应结构
type LegacyQuizResponse struct {
	Quiz []LegacyQuestion `json:"quiz"`
}

// NewLegacyQuizResponse 转换题目列表
func NewLegacyQuizResponse(questions []quiz.Question) LegacyQuizResponse {
	items := make([]LegacyQuestion, 0, len(questions))
	for _, q := range questions {
		options := q.Options
		if options == nil {
			options = []string{}
		}
		items = append(items, LegacyQuestion{
			Question:    q.Text,
			Options:     options,
			Answer:      q.Answer,
			Explanation: q.Explanation,
			Type:        string(q.Type),
		})
	}
	return LegacyQuizResponse{Quiz: items}
}

// LegacyErrorResponse 兼容接口的错误响应
type LegacyErrorResponse struct {
	Error string `json:"error"`
}
