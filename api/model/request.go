package model

import (
	"mime/multipart"
	"time"

	"github.com/fyerfyer/quiz-gen-system/internal/llm"
)

// 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// Offset 分页偏移量
func (p *PaginationRequest) Offset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// QuizGenerateRequest 出题请求
type QuizGenerateRequest struct {
	Topic        string   `form:"topic" json:"topic" binding:"omitempty,max=200"`                      // 主题
	Difficulty   string   `form:"difficulty" json:"difficulty" binding:"omitempty,difficulty"`         // 难度：easy、medium、hard
	NumQuestions int      `form:"num_questions" json:"num_questions" binding:"omitempty,min=1,max=20"` // 题目数量
	Types        []string `form:"types" json:"types" binding:"omitempty,dive,required"`                // 题型
	Async        bool     `form:"async" json:"async"`                                                  // 是否异步生成
}

// ToQuizRequest 转换为生成器请求
func (r *QuizGenerateRequest) ToQuizRequest() llm.QuizRequest {
	return llm.QuizRequest{
		Topic:        r.Topic,
		Difficulty:   r.Difficulty,
		NumQuestions: r.NumQuestions,
		Types:        r.Types,
	}
}

// QuizUploadRequest 上传资料出题请求
type QuizUploadRequest struct {
	QuizGenerateRequest
	File *multipart.FileHeader `form:"file" binding:"required"` // 资料文件
}

// QuizParseRequest 解析文本请求
type QuizParseRequest struct {
	Text string `json:"text" binding:"required"` // 生成文本
}

// QuizListRequest 列表请求
type QuizListRequest struct {
	PaginationRequest
	StartTime  *time.Time `form:"start_time" json:"start_time" binding:"omitempty"` // 开始时间
	EndTime    *time.Time `form:"end_time" json:"end_time" binding:"omitempty"`     // 结束时间
	Status     string     `form:"status" json:"status" binding:"omitempty,oneof=pending generating completed failed"`
	Topic      string     `form:"topic" json:"topic" binding:"omitempty"` // 主题关键字
	Difficulty string     `form:"difficulty" json:"difficulty" binding:"omitempty,difficulty"`
}

// Filters 转换为仓储过滤条件
func (r *QuizListRequest) Filters() map[string]interface{} {
	filters := make(map[string]interface{})
	if r.Status != "" {
		filters["status"] = r.Status
	}
	if r.Topic != "" {
		filters["topic"] = r.Topic
	}
	if r.Difficulty != "" {
		filters["difficulty"] = r.Difficulty
	}
	if r.StartTime != nil {
		filters["start_time"] = r.StartTime.Format("2006-01-02 15:04:05")
	}
	if r.EndTime != nil {
		filters["end_time"] = r.EndTime.Format("2006-01-02 15:04:05")
	}
	return filters
}

// QuizExportRequest 导出请求
type QuizExportRequest struct {
	Format string `form:"format" json:"format" binding:"omitempty"` // 导出格式
}

// LegacyQuizRequest 兼容接口请求
type LegacyQuizRequest struct {
	Topic        string `json:"topic"`
	Difficulty   string `json:"difficulty"`
	NumQuestions int    `json:"num_questions"`
}
