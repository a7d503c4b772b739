package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fyerfyer/quiz-gen-system/internal/database"
	"github.com/fyerfyer/quiz-gen-system/internal/models"
	"github.com/fyerfyer/quiz-gen-system/internal/quiz"
	"github.com/fyerfyer/quiz-gen-system/pkg/taskqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	// 使用唯一的内存数据库标识符
	dbName := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")

	require.NoError(t, database.AutoMigrate(db), "Failed to run migrations")

	// 替换全局DB为测试DB
	originalDB := database.DB
	database.DB = db

	return db, func() {
		database.DB = originalDB
	}
}

func newTestQuiz(id, topic string) *models.Quiz {
	return &models.Quiz{
		ID:           id,
		Topic:        topic,
		Difficulty:   "medium",
		NumQuestions: 3,
		Types:        "multiple-choice,true/false",
	}
}

func sampleQuestions() []quiz.Question {
	return []quiz.Question{
		{
			Text:    "What is the capital of France?",
			Options: []string{"A) Berlin", "B) Paris", "C) Rome", "D) Madrid"},
			Answer:  "B) Paris",
			Type:    quiz.TypeMultipleChoice,
		},
		{
			Text:        "The Earth orbits the Sun.",
			Options:     []string{},
			Answer:      "True",
			Explanation: "One orbit takes about 365 days.",
			Type:        quiz.TypeTrueFalse,
		},
	}
}

func TestQuizRepository_Create(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewQuizRepository()

	q := newTestQuiz("quiz-1", "Geography")
	require.NoError(t, repo.Create(q))
	assert.Equal(t, models.QuizStatusPending, q.Status)
	assert.False(t, q.CreatedAt.IsZero())

	got, err := repo.GetByID("quiz-1")
	require.NoError(t, err)
	assert.Equal(t, "Geography", got.Topic)
	assert.Equal(t, []string{"multiple-choice", "true/false"}, got.TypeList())

	// 缺少ID
	assert.Error(t, repo.Create(&models.Quiz{Topic: "x"}))

	// 重复ID
	assert.Error(t, repo.Create(newTestQuiz("quiz-1", "Geography")))
}

func TestQuizRepository_GetByID_NotFound(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewQuizRepository()
	_, err := repo.GetByID("missing")
	assert.ErrorIs(t, err, models.ErrQuizNotFound)
}

func TestQuizRepository_Update(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewQuizRepositoryWithDB(db)
	q := newTestQuiz("quiz-1", "Physics")
	require.NoError(t, repo.Create(q))
	require.NoError(t, repo.SaveQuestions(q.ID, models.NewQuizQuestions(q.ID, sampleQuestions())))

	require.NoError(t, repo.SetTaskID(q.ID, "task-1"))

	// q中的TaskID仍为空，整行更新不能覆盖已写入的任务ID
	q.RawText = "Question 1: ..."
	q.Model = "qwen-turbo"
	q.Status = models.QuizStatusCompleted
	require.NoError(t, repo.Update(q))

	got, err := repo.GetByID(q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Question 1: ...", got.RawText)
	assert.Equal(t, models.QuizStatusCompleted, got.Status)
	assert.Equal(t, "task-1", got.TaskID)
	// 更新记录不影响已保存的题目
	assert.Len(t, got.Questions, 2)
}

func TestQuizRepository_SaveQuestions(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewQuizRepository()
	require.NoError(t, repo.Create(newTestQuiz("quiz-1", "Geography")))

	records := models.NewQuizQuestions("quiz-1", sampleQuestions())
	require.NoError(t, repo.SaveQuestions("quiz-1", records))

	got, err := repo.GetByID("quiz-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.QuestionCount)
	require.Len(t, got.Questions, 2)
	assert.Equal(t, sampleQuestions(), models.ToQuestions(got.Questions))

	// 再次保存会替换原有题目
	replacement := models.NewQuizQuestions("quiz-1", sampleQuestions()[1:])
	require.NoError(t, repo.SaveQuestions("quiz-1", replacement))

	questions, err := repo.GetQuestions("quiz-1")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, string(quiz.TypeTrueFalse), questions[0].Type)

	got, err = repo.GetByID("quiz-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.QuestionCount)
}

func TestQuizRepository_CorruptOptions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewQuizRepository()
	require.NoError(t, repo.Create(newTestQuiz("quiz-1", "Geography")))
	require.NoError(t, repo.SaveQuestions("quiz-1", models.NewQuizQuestions("quiz-1", sampleQuestions())))

	// 选项列被写坏后读取应报错，而不是返回空选项
	require.NoError(t, db.Exec("UPDATE quiz_questions SET options = ? WHERE quiz_id = ? AND position = 0", "[\"A) Paris\",", "quiz-1").Error)

	_, err := repo.GetByID("quiz-1")
	assert.ErrorIs(t, err, models.ErrCorruptQuestion)

	_, err = repo.GetQuestions("quiz-1")
	assert.ErrorIs(t, err, models.ErrCorruptQuestion)
}

func TestQuizRepository_List(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewQuizRepository()
	base := time.Now().Add(-time.Hour)
	topics := []string{"World History", "Biology", "Ancient History"}
	for i, topic := range topics {
		q := newTestQuiz(fmt.Sprintf("quiz-%d", i), topic)
		q.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if i == 1 {
			q.Difficulty = "hard"
		}
		require.NoError(t, repo.Create(q))
	}
	require.NoError(t, repo.UpdateStatus("quiz-2", models.QuizStatusCompleted, ""))

	t.Run("All", func(t *testing.T) {
		quizzes, total, err := repo.List(0, 10, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, quizzes, 3)
		// 按创建时间倒序
		assert.Equal(t, "quiz-2", quizzes[0].ID)
		assert.Equal(t, "quiz-0", quizzes[2].ID)
	})

	t.Run("Pagination", func(t *testing.T) {
		quizzes, total, err := repo.List(1, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, quizzes, 1)
		assert.Equal(t, "quiz-1", quizzes[0].ID)
	})

	t.Run("Filters", func(t *testing.T) {
		quizzes, total, err := repo.List(0, 10, map[string]interface{}{"topic": "History"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, quizzes, 2)

		quizzes, _, err = repo.List(0, 10, map[string]interface{}{"difficulty": "hard"})
		require.NoError(t, err)
		require.Len(t, quizzes, 1)
		assert.Equal(t, "Biology", quizzes[0].Topic)

		quizzes, _, err = repo.List(0, 10, map[string]interface{}{"status": models.QuizStatusCompleted})
		require.NoError(t, err)
		require.Len(t, quizzes, 1)
		assert.Equal(t, "quiz-2", quizzes[0].ID)

		quizzes, _, err = repo.List(0, 10, map[string]interface{}{"status": "pending"})
		require.NoError(t, err)
		assert.Len(t, quizzes, 2)
	})
}

func TestQuizRepository_UpdateStatus(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewQuizRepository()
	require.NoError(t, repo.Create(newTestQuiz("quiz-1", "Chemistry")))

	require.NoError(t, repo.UpdateStatus("quiz-1", models.QuizStatusFailed, "upstream unavailable"))
	got, err := repo.GetByID("quiz-1")
	require.NoError(t, err)
	assert.Equal(t, models.QuizStatusFailed, got.Status)
	assert.Equal(t, "upstream unavailable", got.Error)
	assert.True(t, got.Finished())

	assert.ErrorIs(t, repo.UpdateStatus("quiz-1", "archived", ""), models.ErrInvalidQuizStatus)
	assert.ErrorIs(t, repo.UpdateStatus("missing", models.QuizStatusCompleted, ""), models.ErrQuizNotFound)
}

func TestQuizRepository_Delete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := taskqueue.DefaultConfig()
	cfg.RedisAddr = mr.Addr()
	queue, err := taskqueue.NewRedisQueue(cfg)
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()
	repo := NewQuizRepositoryWithQueue(db, queue)
	require.NoError(t, repo.Create(newTestQuiz("quiz-1", "Music")))
	require.NoError(t, repo.SaveQuestions("quiz-1", models.NewQuizQuestions("quiz-1", sampleQuestions())))

	taskID, err := queue.Enqueue(ctx, taskqueue.TaskQuizGenerate, "quiz-1", &taskqueue.QuizGeneratePayload{QuizID: "quiz-1", Topic: "Music"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete("quiz-1"))

	_, err = repo.GetByID("quiz-1")
	assert.ErrorIs(t, err, models.ErrQuizNotFound)

	questions, err := repo.GetQuestions("quiz-1")
	require.NoError(t, err)
	assert.Empty(t, questions)

	_, err = queue.GetTask(ctx, taskID)
	assert.ErrorIs(t, err, taskqueue.ErrTaskNotFound)

	assert.ErrorIs(t, repo.Delete("quiz-1"), models.ErrQuizNotFound)
}

func TestQuizRepository_SetTaskID(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewQuizRepository()
	require.NoError(t, repo.Create(newTestQuiz("quiz-1", "Art")))
	require.NoError(t, repo.UpdateStatus("quiz-1", models.QuizStatusGenerating, ""))

	require.NoError(t, repo.SetTaskID("quiz-1", "task-1"))

	got, err := repo.GetByID("quiz-1")
	require.NoError(t, err)
	assert.Equal(t, "task-1", got.TaskID)
	// 不影响其它列
	assert.Equal(t, models.QuizStatusGenerating, got.Status)

	assert.ErrorIs(t, repo.SetTaskID("missing", "task-2"), models.ErrQuizNotFound)
}
