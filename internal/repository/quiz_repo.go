package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/quiz-gen-system/internal/database"
	"github.com/fyerfyer/quiz-gen-system/internal/models"
	"github.com/fyerfyer/quiz-gen-system/pkg/taskqueue"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// quizRepository 题目仓储实现
type quizRepository struct {
	db        *gorm.DB        // 数据库连接
	taskQueue taskqueue.Queue // 任务队列，删除记录时清理关联任务
	ctx       context.Context
}

// NewQuizRepository 使用全局数据库连接创建仓储
func NewQuizRepository() QuizRepository {
	return &quizRepository{
		db:  database.MustDB(),
		ctx: context.Background(),
	}
}

// NewQuizRepositoryWithDB 使用指定的数据库连接创建仓储
func NewQuizRepositoryWithDB(db *gorm.DB) QuizRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &quizRepository{
		db:  db,
		ctx: context.Background(),
	}
}

// NewQuizRepositoryWithQueue 使用指定的数据库连接和任务队列创建仓储
func NewQuizRepositoryWithQueue(db *gorm.DB, queue taskqueue.Queue) QuizRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &quizRepository{
		db:        db,
		taskQueue: queue,
		ctx:       context.Background(),
	}
}

// Create 创建题目记录
func (r *quizRepository) Create(quiz *models.Quiz) error {
	if quiz.ID == "" {
		return errors.New("quiz ID cannot be empty")
	}
	if quiz.Status == "" {
		quiz.Status = models.QuizStatusPending
	}
	return r.db.Omit(clause.Associations).Create(quiz).Error
}

// Update 更新题目记录
// task_id只由SetTaskID写入
func (r *quizRepository) Update(quiz *models.Quiz) error {
	if quiz.ID == "" {
		return errors.New("quiz ID cannot be empty")
	}
	return r.db.Omit(clause.Associations, "task_id").Save(quiz).Error
}

// GetByID 根据ID获取记录
func (r *quizRepository) GetByID(id string) (*models.Quiz, error) {
	var quiz models.Quiz
	err := r.db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("id = ?", id).First(&quiz).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrQuizNotFound, id)
		}
		return nil, err
	}
	return &quiz, nil
}

// List 列出记录，按创建时间倒序
func (r *quizRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Quiz, int64, error) {
	var quizzes []*models.Quiz
	var total int64

	query := r.db.Model(&models.Quiz{})

	if filters != nil {
		if status, ok := filters["status"]; ok {
			switch s := status.(type) {
			case models.QuizStatus:
				query = query.Where("status = ?", string(s))
			case string:
				if s != "" {
					query = query.Where("status = ?", s)
				}
			default:
				if statusStr := fmt.Sprintf("%v", status); statusStr != "" {
					query = query.Where("status = ?", statusStr)
				}
			}
		}

		if topic, ok := filters["topic"].(string); ok && topic != "" {
			query = query.Where("topic LIKE ?", "%"+topic+"%")
		}

		if difficulty, ok := filters["difficulty"].(string); ok && difficulty != "" {
			query = query.Where("difficulty = ?", difficulty)
		}

		if startTime, ok := filters["start_time"].(string); ok && startTime != "" {
			query = query.Where("created_at >= ?", startTime)
		}

		if endTime, ok := filters["end_time"].(string); ok && endTime != "" {
			query = query.Where("created_at <= ?", endTime)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&quizzes).Error
	if err != nil {
		return nil, 0, err
	}

	return quizzes, total, nil
}

// Delete 删除记录及其题目
func (r *quizRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quiz_id = ?", id).Delete(&models.QuizQuestion{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&models.Quiz{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", models.ErrQuizNotFound, id)
		}

		// 任务可能已过期被清理，忽略删除错误
		if r.taskQueue != nil {
			tasks, err := r.taskQueue.GetTasksByQuiz(r.ctx, id)
			if err == nil {
				for _, task := range tasks {
					_ = r.taskQueue.DeleteTask(r.ctx, task.ID)
				}
			}
		}

		return nil
	})
}

// UpdateStatus 更新生成状态
func (r *quizRepository) UpdateStatus(id string, status models.QuizStatus, errorMsg string) error {
	if !status.Valid() {
		return models.ErrInvalidQuizStatus
	}

	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if errorMsg != "" {
		updates["error"] = errorMsg
	}

	result := r.db.Model(&models.Quiz{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrQuizNotFound, id)
	}
	return nil
}

// SetTaskID 记录异步任务ID
// 任务可能在入队后立即被执行，这里不能整行保存以免覆盖worker写入的状态
func (r *quizRepository) SetTaskID(id, taskID string) error {
	result := r.db.Model(&models.Quiz{}).Where("id = ?", id).Update("task_id", taskID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrQuizNotFound, id)
	}
	return nil
}

// SaveQuestions 替换记录下的全部题目并同步题目数量
func (r *quizRepository) SaveQuestions(quizID string, questions []*models.QuizQuestion) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quiz_id = ?", quizID).Delete(&models.QuizQuestion{}).Error; err != nil {
			return err
		}

		if len(questions) > 0 {
			for _, q := range questions {
				q.ID = 0
				q.QuizID = quizID
			}
			if err := tx.CreateInBatches(questions, 100).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.Quiz{}).
			Where("id = ?", quizID).
			Updates(map[string]interface{}{
				"question_count": len(questions),
				"updated_at":     time.Now(),
			}).Error
	})
}

// GetQuestions 获取记录下的全部题目
func (r *quizRepository) GetQuestions(quizID string) ([]*models.QuizQuestion, error) {
	var questions []*models.QuizQuestion
	err := r.db.Where("quiz_id = ?", quizID).
		Order("position ASC").
		Find(&questions).Error
	return questions, err
}

// WithContext 创建带有上下文的仓储
func (r *quizRepository) WithContext(ctx context.Context) QuizRepository {
	return &quizRepository{
		db:        r.db.WithContext(ctx),
		taskQueue: r.taskQueue,
		ctx:       ctx,
	}
}
