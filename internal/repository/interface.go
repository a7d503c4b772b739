package repository

import "github.com/fyerfyer/quiz-gen-system/internal/models"

// QuizRepository 题目仓储接口
// 负责题目请求记录及题目的存储和检索
type QuizRepository interface {
	// Create 创建题目记录
	Create(quiz *models.Quiz) error

	// Update 更新题目记录，不会修改已保存的题目
	Update(quiz *models.Quiz) error

	// GetByID 根据ID获取记录，包含按顺序排列的题目
	GetByID(id string) (*models.Quiz, error)

	// List 列出记录，支持分页和筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.Quiz, int64, error)

	// Delete 删除记录及其题目
	Delete(id string) error

	// UpdateStatus 更新生成状态
	UpdateStatus(id string, status models.QuizStatus, errorMsg string) error

	// SetTaskID 记录异步任务ID，只修改task_id一列
	SetTaskID(id, taskID string) error

	// SaveQuestions 替换记录下的全部题目
	SaveQuestions(quizID string, questions []*models.QuizQuestion) error

	// GetQuestions 获取记录下的全部题目
	GetQuestions(quizID string) ([]*models.QuizQuestion, error)
}
