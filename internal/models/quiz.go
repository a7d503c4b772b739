package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fyerfyer/quiz-gen-system/internal/quiz"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuizStatus 题目生成状态类型
type QuizStatus string

const (
	// QuizStatusPending 已创建，等待生成
	QuizStatusPending QuizStatus = "pending"
	// QuizStatusGenerating 生成中
	QuizStatusGenerating QuizStatus = "generating"
	// QuizStatusCompleted 生成完成
	QuizStatusCompleted QuizStatus = "completed"
	// QuizStatusFailed 生成失败
	QuizStatusFailed QuizStatus = "failed"
)

// Valid 判断状态值是否合法
func (s QuizStatus) Valid() bool {
	switch s {
	case QuizStatusPending, QuizStatusGenerating, QuizStatusCompleted, QuizStatusFailed:
		return true
	}
	return false
}

// Quiz 一次出题请求及其结果
type Quiz struct {
	ID            string          `gorm:"primaryKey" json:"id"`
	Topic         string          `gorm:"not null;index" json:"topic"`
	Difficulty    string          `gorm:"size:20;not null" json:"difficulty"`
	NumQuestions  int             `gorm:"not null" json:"num_questions"`
	Types         string          `gorm:"size:255" json:"types"`       // 题型，逗号分隔
	SourceName    string          `gorm:"size:255" json:"source_name"` // 上传资料的文件名
	Status        QuizStatus      `gorm:"size:20;not null;index" json:"status"`
	Model         string          `gorm:"size:100" json:"model"`     // 生成所用模型
	RawText       string          `gorm:"type:text" json:"raw_text"` // 模型原始输出
	Error         string          `gorm:"type:text" json:"error"`    // 错误信息
	QuestionCount int             `gorm:"not null;default:0" json:"question_count"`
	UsedFallback  bool            `gorm:"not null;default:false" json:"used_fallback"`
	Attempts      int             `gorm:"not null;default:0" json:"attempts"`
	TokenCount    int             `gorm:"not null;default:0" json:"token_count"`
	TaskID        string          `gorm:"size:50;index" json:"task_id"`
	CreatedAt     time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`
	Questions     []*QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

// BeforeCreate 创建记录前设置时间
func (q *Quiz) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now
	return nil
}

// BeforeUpdate 更新记录前设置更新时间
func (q *Quiz) BeforeUpdate(tx *gorm.DB) (err error) {
	q.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Quiz) TableName() string {
	return "quizzes"
}

// TypeList 返回题型列表
func (q *Quiz) TypeList() []string {
	if q.Types == "" {
		return nil
	}
	return strings.Split(q.Types, ",")
}

// Finished 是否已结束（成功或失败）
func (q *Quiz) Finished() bool {
	return q.Status == QuizStatusCompleted || q.Status == QuizStatusFailed
}

// QuizQuestion 题目记录
type QuizQuestion struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"-"`
	QuizID      string         `gorm:"not null;index" json:"-"`
	Position    int            `gorm:"not null" json:"position"` // 在题目文本中的顺序，从0开始
	Text        string         `gorm:"type:text;not null" json:"text"`
	Options     datatypes.JSON `gorm:"type:json" json:"options"`
	Answer      string         `gorm:"type:text" json:"answer"`
	Explanation string         `gorm:"type:text" json:"explanation"`
	Type        string         `gorm:"size:30;not null" json:"type"`
	CreatedAt   time.Time      `gorm:"not null" json:"-"`
}

// BeforeCreate 创建记录前设置时间
func (qq *QuizQuestion) BeforeCreate(tx *gorm.DB) (err error) {
	qq.CreatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// NewQuizQuestions 将解析结果转换为数据库记录，保留原有顺序
func NewQuizQuestions(quizID string, questions []quiz.Question) []*QuizQuestion {
	records := make([]*QuizQuestion, 0, len(questions))
	for i, q := range questions {
		options := q.Options
		if options == nil {
			options = []string{}
		}
		data, _ := json.Marshal(options)
		records = append(records, &QuizQuestion{
			QuizID:      quizID,
			Position:    i,
			Text:        q.Text,
			Options:     datatypes.JSON(data),
			Answer:      q.Answer,
			Explanation: q.Explanation,
			Type:        string(q.Type),
		})
	}
	return records
}

// AfterFind 读取后校验选项，选项JSON损坏时查询直接失败
func (qq *QuizQuestion) AfterFind(tx *gorm.DB) (err error) {
	if _, err := qq.decodeOptions(); err != nil {
		return fmt.Errorf("%w: quiz %s position %d: %v", ErrCorruptQuestion, qq.QuizID, qq.Position, err)
	}
	return nil
}

func (qq *QuizQuestion) decodeOptions() ([]string, error) {
	options := []string{}
	if len(qq.Options) == 0 {
		return options, nil
	}
	if err := json.Unmarshal(qq.Options, &options); err != nil {
		return []string{}, err
	}
	if options == nil {
		options = []string{}
	}
	return options, nil
}

// ToQuestion 转换回引擎的题目结构
// 从数据库读取的记录已经过AfterFind校验
func (qq *QuizQuestion) ToQuestion() quiz.Question {
	options, _ := qq.decodeOptions()
	return quiz.Question{
		Text:        qq.Text,
		Options:     options,
		Answer:      qq.Answer,
		Explanation: qq.Explanation,
		Type:        quiz.QuestionType(qq.Type),
	}
}

// ToQuestions 批量转换
func ToQuestions(records []*QuizQuestion) []quiz.Question {
	questions := make([]quiz.Question, 0, len(records))
	for _, r := range records {
		questions = append(questions, r.ToQuestion())
	}
	return questions
}
