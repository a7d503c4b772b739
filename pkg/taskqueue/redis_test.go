package taskqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestQueue 基于miniredis创建队列
func setupTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := DefaultConfig()
	cfg.RedisAddr = mr.Addr()
	cfg.RetryDelay = time.Second

	queue, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = queue.Close() })

	return queue.(*RedisQueue), mr
}

func testPayload(quizID string) *QuizGeneratePayload {
	return &QuizGeneratePayload{
		QuizID:       quizID,
		Topic:        "Astronomy",
		Difficulty:   "medium",
		NumQuestions: 5,
	}
}

// TestNewRedisQueue 测试创建队列与连接失败
func TestNewRedisQueue(t *testing.T) {
	queue, _ := setupTestQueue(t)
	assert.NotNil(t, queue)

	_, err := NewRedisQueue(&Config{RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)

	_, err = NewQueue("kafka", nil)
	assert.Error(t, err)
}

// TestRedisQueue_Enqueue 测试入队并读取任务记录
func TestRedisQueue_Enqueue(t *testing.T) {
	queue, _ := setupTestQueue(t)
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskQuizGenerate, "quiz-1", testPayload("quiz-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, taskID)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, TaskQuizGenerate, task.Type)
	assert.Equal(t, "quiz-1", task.QuizID)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, 2, task.MaxRetries)

	var payload QuizGeneratePayload
	require.NoError(t, UnmarshalPayload(task.Payload, &payload))
	assert.Equal(t, "Astronomy", payload.Topic)

	// asynq中的任务ID与记录一致
	info, err := queue.inspector.GetTaskInfo(defaultQueueName, taskID)
	require.NoError(t, err)
	assert.Equal(t, string(TaskQuizGenerate), info.Type)
}

// TestRedisQueue_EnqueueIn 测试延时入队
func TestRedisQueue_EnqueueIn(t *testing.T) {
	queue, _ := setupTestQueue(t)
	ctx := context.Background()

	taskID, err := queue.EnqueueIn(ctx, TaskQuizGenerate, "quiz-2", testPayload("quiz-2"), time.Hour)
	require.NoError(t, err)

	info, err := queue.inspector.GetTaskInfo(defaultQueueName, taskID)
	require.NoError(t, err)
	assert.Equal(t, asynq.TaskStateScheduled, info.State)

	taskID, err = queue.EnqueueAt(ctx, TaskQuizGenerate, "quiz-2", nil, time.Now().Add(time.Minute))
	require.NoError(t, err)
	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(task.Payload))
}

// TestRedisQueue_GetTasksByQuiz 测试按题目记录查询任务
func TestRedisQueue_GetTasksByQuiz(t *testing.T) {
	queue, _ := setupTestQueue(t)
	ctx := context.Background()

	first, err := queue.Enqueue(ctx, TaskQuizGenerate, "quiz-3", testPayload("quiz-3"))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := queue.Enqueue(ctx, TaskQuizGenerate, "quiz-3", testPayload("quiz-3"))
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, TaskQuizGenerate, "quiz-other", testPayload("quiz-other"))
	require.NoError(t, err)

	tasks, err := queue.GetTasksByQuiz(ctx, "quiz-3")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, first, tasks[0].ID)
	assert.Equal(t, second, tasks[1].ID)

	tasks, err = queue.GetTasksByQuiz(ctx, "quiz-none")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

// TestRedisQueue_UpdateTaskStatus 测试状态流转
func TestRedisQueue_UpdateTaskStatus(t *testing.T) {
	queue, _ := setupTestQueue(t)
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskQuizGenerate, "quiz-4", testPayload("quiz-4"))
	require.NoError(t, err)

	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, ""))
	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, task.Status)
	assert.Equal(t, 1, task.Attempts)
	assert.NotNil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)

	result := &QuizGenerateResult{QuizID: "quiz-4", QuestionCount: 5}
	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, ""))
	task, err = queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.True(t, task.Finished())
	assert.NotNil(t, task.CompletedAt)
	assert.JSONEq(t, `{"quiz_id":"quiz-4","question_count":5,"used_fallback":false,"attempts":0,"model":""}`, string(task.Result))

	err = queue.UpdateTaskStatus(ctx, "missing", StatusFailed, nil, "boom")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

// TestRedisQueue_DeleteTask 测试删除任务
func TestRedisQueue_DeleteTask(t *testing.T) {
	queue, _ := setupTestQueue(t)
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskQuizGenerate, "quiz-5", testPayload("quiz-5"))
	require.NoError(t, err)

	require.NoError(t, queue.DeleteTask(ctx, taskID))

	_, err = queue.GetTask(ctx, taskID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	tasks, err := queue.GetTasksByQuiz(ctx, "quiz-5")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	_, err = queue.inspector.GetTaskInfo(defaultQueueName, taskID)
	assert.Error(t, err)

	assert.ErrorIs(t, queue.DeleteTask(ctx, taskID), ErrTaskNotFound)
}

// TestRedisQueue_WaitForTask 测试等待任务结束
func TestRedisQueue_WaitForTask(t *testing.T) {
	queue, _ := setupTestQueue(t)
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskQuizGenerate, "quiz-6", testPayload("quiz-6"))
	require.NoError(t, err)

	// 未结束的任务在超时后返回错误
	_, err = queue.WaitForTask(ctx, taskID, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrTaskTimeout)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = queue.UpdateTaskStatus(context.Background(), taskID, StatusFailed, nil, "no questions")
		_ = queue.NotifyTaskUpdate(context.Background(), taskID)
	}()

	task, err := queue.WaitForTask(ctx, taskID, 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "no questions", task.Error)
}

// TestTaskInfo 测试TaskInfo生成
func TestTaskInfo(t *testing.T) {
	now := time.Now()
	task := &Task{
		ID:          "task-123",
		Type:        TaskQuizGenerate,
		QuizID:      "quiz-123",
		Status:      StatusCompleted,
		CreatedAt:   now.Add(-time.Minute),
		CompletedAt: &now,
		Attempts:    1,
	}

	info := NewTaskInfo(task)
	assert.Equal(t, task.ID, info.ID)
	assert.Equal(t, task.QuizID, info.QuizID)
	assert.Equal(t, 100.0, info.Progress)
	assert.Equal(t, 1, info.Attempts)

	task.Status = StatusProcessing
	assert.Equal(t, 50.0, NewTaskInfo(task).Progress)
	task.Status = StatusPending
	assert.Equal(t, 0.0, NewTaskInfo(task).Progress)
}

// TestPayloadHelpers 测试载荷序列化与永久错误
func TestPayloadHelpers(t *testing.T) {
	var payload QuizGeneratePayload
	assert.ErrorIs(t, UnmarshalPayload(nil, &payload), ErrInvalidPayload)
	assert.ErrorIs(t, UnmarshalPayload([]byte("{bad"), &payload), ErrInvalidPayload)

	base := errors.New("no questions")
	err := Permanent(base)
	assert.ErrorIs(t, err, base)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Nil(t, Permanent(nil))
}

// TestRedisWorker 测试工作者处理任务
// asynq服务端依赖完整的Redis命令集，只在本地Redis可用时运行
func TestRedisWorker(t *testing.T) {
	redisAddr := "localhost:6379"
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skip("Skipping Redis worker test: Redis not available at localhost:6379")
	}
	client.Close()

	cfg := DefaultConfig()
	cfg.RedisAddr = redisAddr
	cfg.RetryLimit = 0

	q, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	defer q.Close()
	rq := q.(*RedisQueue)

	var processed int32
	worker := NewRedisWorker(rq, cfg)
	worker.RegisterHandler(TaskQuizGenerate, HandlerFunc(func(ctx context.Context, task *Task) (interface{}, error) {
		atomic.AddInt32(&processed, 1)
		return &QuizGenerateResult{QuizID: task.QuizID, QuestionCount: 3}, nil
	}))
	require.NoError(t, worker.Start())
	defer worker.Stop()

	ctx := context.Background()
	taskID, err := rq.Enqueue(ctx, TaskQuizGenerate, "quiz-worker", testPayload("quiz-worker"))
	require.NoError(t, err)

	task, err := rq.WaitForTask(ctx, taskID, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&processed))

	var result QuizGenerateResult
	require.NoError(t, UnmarshalPayload(task.Result, &result))
	assert.Equal(t, 3, result.QuestionCount)
}
