package handler

import (
	"errors"
	"net/http"

	"github.com/fyerfyer/quiz-gen-system/api/middleware"
	"github.com/fyerfyer/quiz-gen-system/api/model"
	"github.com/fyerfyer/quiz-gen-system/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TaskHandler 处理任务相关的API请求
type TaskHandler struct {
	queue  taskqueue.Queue // 任务队列
	logger *logrus.Logger  // 日志记录器
}

// NewTaskHandler 创建新的任务处理器
func NewTaskHandler(queue taskqueue.Queue) *TaskHandler {
	return &TaskHandler{
		queue:  queue,
		logger: middleware.GetLogger(),
	}
}

// GetTaskStatus 获取任务状态
// GET /api/tasks/:id
func (h *TaskHandler) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")

	task, err := h.queue.GetTask(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, taskqueue.ErrTaskNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("task not found"))
			return
		}
		h.logger.WithError(err).WithField("task_id", taskID).Error("Failed to get task")
		middleware.HandleError(c, middleware.NewInternalError("failed to get task status"))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewTaskStatusResponse(task)))
}

// GetQuizTasks 获取题目记录关联的所有任务
// GET /api/quizzes/:id/tasks
func (h *TaskHandler) GetQuizTasks(c *gin.Context) {
	quizID := c.Param("id")

	tasks, err := h.queue.GetTasksByQuiz(c.Request.Context(), quizID)
	if err != nil {
		h.logger.WithError(err).WithField("quiz_id", quizID).Error("Failed to get quiz tasks")
		middleware.HandleError(c, middleware.NewInternalError("failed to get quiz tasks"))
		return
	}

	items := make([]model.TaskStatusResponse, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, model.NewTaskStatusResponse(task))
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(map[string]interface{}{
		"quiz_id": quizID,
		"tasks":   items,
	}))
}
