package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/fyerfyer/quiz-gen-system/api/middleware"
	"github.com/fyerfyer/quiz-gen-system/api/model"
	"github.com/fyerfyer/quiz-gen-system/internal/document"
	"github.com/fyerfyer/quiz-gen-system/internal/export"
	"github.com/fyerfyer/quiz-gen-system/internal/llm"
	"github.com/fyerfyer/quiz-gen-system/internal/models"
	"github.com/fyerfyer/quiz-gen-system/internal/services"
	"github.com/fyerfyer/quiz-gen-system/pkg/storage"
	"github.com/fyerfyer/quiz-gen-system/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DefaultMaxUploadSize 上传资料的默认大小限制
const DefaultMaxUploadSize int64 = 10 << 20

// QuizHandler 处理出题相关的API请求
type QuizHandler struct {
	service       *services.QuizService // 出题服务
	maxUploadSize int64                 // 上传资料大小限制（字节）
	logger        *logrus.Logger        // 日志记录器
}

// NewQuizHandler 创建出题处理器
func NewQuizHandler(service *services.QuizService, maxUploadSize int64) *QuizHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &QuizHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
		logger:        middleware.GetLogger(),
	}
}

// GenerateQuiz 生成题目
// POST /api/quizzes
func (h *QuizHandler) GenerateQuiz(c *gin.Context) {
	var req model.QuizGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid request parameters", model.ValidationMessage(err)))
		return
	}

	h.generate(c, req.ToQuizRequest(), req.Async)
}

// UploadAndGenerate 上传资料并据此出题
// POST /api/quizzes/upload
func (h *QuizHandler) UploadAndGenerate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+1<<20)

	var req model.QuizUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid request parameters", model.ValidationMessage(err)))
		return
	}

	filename := req.File.Filename
	if document.DetectContentType(filename) == document.Unknown {
		middleware.HandleError(c, middleware.NewValidationError("unsupported file type, only .pdf, .md, .markdown, .txt are accepted"))
		return
	}
	if req.File.Size > h.maxUploadSize {
		middleware.HandleError(c, middleware.NewValidationError("file too large", "limit is "+strconv.FormatInt(h.maxUploadSize, 10)+" bytes"))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		h.logger.WithError(err).WithField("filename", filename).Error("Failed to open uploaded file")
		middleware.HandleError(c, middleware.NewInternalError("failed to open uploaded file"))
		return
	}
	defer file.Close()

	text, err := document.ExtractText(file, filename)
	if err != nil {
		h.logger.WithError(err).WithField("filename", filename).Warn("Failed to extract material")
		if errors.Is(err, document.ErrEmptyContent) {
			middleware.HandleError(c, middleware.NewUnprocessableError("no text content found in the uploaded file"))
			return
		}
		middleware.HandleError(c, middleware.NewValidationError("failed to read the uploaded file", err.Error()))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"filename": filename,
		"size":     req.File.Size,
		"chars":    len([]rune(text)),
	}).Info("Material extracted from upload")

	quizReq := req.ToQuizRequest()
	quizReq.Material = text
	quizReq.Source = filename
	h.generate(c, quizReq, req.Async)
}

// generate 同步或异步生成题目并写出响应
func (h *QuizHandler) generate(c *gin.Context, req llm.QuizRequest, async bool) {
	ctx := c.Request.Context()

	if async {
		record, taskID, err := h.service.GenerateAsync(ctx, req)
		if err != nil {
			middleware.HandleError(c, h.toAppError(err))
			return
		}
		c.JSON(http.StatusAccepted, model.NewSuccessResponse(model.QuizAcceptedResponse{
			QuizID: record.ID,
			TaskID: taskID,
			Status: string(record.Status),
		}))
		return
	}

	record, err := h.service.Generate(ctx, req)
	if err != nil {
		middleware.HandleError(c, h.toAppError(err))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewQuizInfo(record, true)))
}

// ParseText 直接解析一段生成文本
// POST /api/quizzes/parse
func (h *QuizHandler) ParseText(c *gin.Context) {
	var req model.QuizParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid request parameters", model.ValidationMessage(err)))
		return
	}

	questions, stats := h.service.ParseText(req.Text)
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewParseResponse(questions, stats)))
}

// ListQuizzes 分页列出记录
// GET /api/quizzes
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	var req model.QuizListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid request parameters", model.ValidationMessage(err)))
		return
	}

	quizzes, total, err := h.service.ListQuizzes(c.Request.Context(), req.Offset(), req.GetPageSize(), req.Filters())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list quizzes")
		middleware.HandleError(c, middleware.NewInternalError("failed to list quizzes"))
		return
	}

	items := make([]model.QuizInfo, 0, len(quizzes))
	for _, q := range quizzes {
		items = append(items, model.NewQuizInfo(q, false))
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.QuizListResponse{
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
		Quizzes:  items,
	}))
}

// GetQuiz 获取单条记录及题目
// GET /api/quizzes/:id
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	record, err := h.service.GetQuiz(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, h.toAppError(err))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewQuizInfo(record, true)))
}

// DeleteQuiz 删除记录
// DELETE /api/quizzes/:id
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.DeleteQuiz(c.Request.Context(), id); err != nil {
		middleware.HandleError(c, h.toAppError(err))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.QuizDeleteResponse{
		Success: true,
		QuizID:  id,
	}))
}

// ExportQuiz 导出题目并保存文件
// POST /api/quizzes/:id/export?format=
func (h *QuizHandler) ExportQuiz(c *gin.Context) {
	var req model.QuizExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid request parameters", model.ValidationMessage(err)))
		return
	}

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		middleware.HandleError(c, h.toAppError(err))
		return
	}

	info, err := h.service.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		middleware.HandleError(c, h.toAppError(err))
		return
	}

	c.JSON(http.StatusCreated, model.NewSuccessResponse(model.NewExportResponse(info)))
}

// DownloadExport 下载导出文件
// GET /api/exports/:file_id
func (h *QuizHandler) DownloadExport(c *gin.Context) {
	rc, info, err := h.service.OpenExport(c.Request.Context(), c.Param("file_id"))
	if err != nil {
		middleware.HandleError(c, h.toAppError(err))
		return
	}
	defer rc.Close()

	extraHeaders := map[string]string{
		"Content-Disposition": `attachment; filename="` + info.Name + `"`,
	}
	size := info.Size
	if size <= 0 {
		size = -1
	}
	c.DataFromReader(http.StatusOK, size, storage.MimeType(info.Name), rc, extraHeaders)
}

// LegacyGenerateQuiz 兼容旧版前端的出题接口
// POST /generate_quiz
func (h *QuizHandler) LegacyGenerateQuiz(c *gin.Context) {
	var req model.LegacyQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, model.LegacyErrorResponse{Error: "invalid request body"})
		return
	}

	record, err := h.service.Generate(c.Request.Context(), llm.QuizRequest{
		Topic:        req.Topic,
		Difficulty:   req.Difficulty,
		NumQuestions: req.NumQuestions,
	})
	if err != nil {
		appErr := h.toAppError(err)
		h.logger.WithError(err).WithField(middleware.FieldTraceID, middleware.TraceID(c)).Warn("Legacy quiz generation failed")
		c.JSON(appErr.Code, model.LegacyErrorResponse{Error: appErr.Message})
		return
	}

	c.JSON(http.StatusOK, model.NewLegacyQuizResponse(models.ToQuestions(record.Questions)))
}

// toAppError 将服务层错误映射为API错误
func (h *QuizHandler) toAppError(err error) middleware.AppError {
	var llmErr llm.LLMError
	switch {
	case errors.Is(err, services.ErrNoQuestions):
		return middleware.NewUnprocessableError("the model response contained no recognizable questions")
	case errors.Is(err, models.ErrQuizNotFound):
		return middleware.NewNotFoundError("quiz not found")
	case errors.Is(err, storage.ErrNotFound):
		return middleware.NewNotFoundError("export file not found")
	case errors.Is(err, taskqueue.ErrTaskNotFound):
		return middleware.NewNotFoundError("task not found")
	case errors.Is(err, services.ErrQuizNotReady):
		return middleware.NewBusinessError("quiz is not completed yet", err.Error())
	case errors.Is(err, services.ErrAsyncDisabled):
		return middleware.NewUnavailableError("async generation is not enabled")
	case errors.Is(err, services.ErrStorageDisabled):
		return middleware.NewUnavailableError("export storage is not configured")
	case errors.Is(err, export.ErrUnsupportedFormat):
		return middleware.NewValidationError("unsupported export format", err.Error())
	case errors.As(err, &llmErr):
		if llmErr.Code == llm.ErrCodeInvalidRequest {
			return middleware.NewValidationError(llmErr.Message)
		}
		return middleware.NewUpstreamError("quiz generation failed", llmErr.Error())
	default:
		return middleware.NewInternalError("internal server error", err.Error())
	}
}
