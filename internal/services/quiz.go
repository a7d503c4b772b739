package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fyerfyer/quiz-gen-system/internal/cache"
	"github.com/fyerfyer/quiz-gen-system/internal/export"
	"github.com/fyerfyer/quiz-gen-system/internal/llm"
	"github.com/fyerfyer/quiz-gen-system/internal/models"
	"github.com/fyerfyer/quiz-gen-system/internal/quiz"
	"github.com/fyerfyer/quiz-gen-system/internal/repository"
	"github.com/fyerfyer/quiz-gen-system/pkg/storage"
	"github.com/fyerfyer/quiz-gen-system/pkg/taskqueue"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoQuestions 多次生成后仍未解析出任何题目
	ErrNoQuestions = errors.New("no questions could be extracted from the generated text")
	// ErrAsyncDisabled 未配置任务队列
	ErrAsyncDisabled = errors.New("async generation is not enabled")
	// ErrStorageDisabled 未配置导出存储
	ErrStorageDisabled = errors.New("export storage is not configured")
	// ErrQuizNotReady 题目尚未生成完成
	ErrQuizNotReady = errors.New("quiz is not completed")
)

// QuizService 出题服务
// 负责协调大模型生成、题目解析、持久化和导出
type QuizService struct {
	generator   *llm.QuizGenerator        // 出题生成器
	repo        repository.QuizRepository // 题目仓储
	cache       cache.Cache               // 生成结果缓存
	cacheTTL    time.Duration             // 缓存有效期
	maxAttempts int                       // 解析不出题目时的最多生成次数
	taskQueue   taskqueue.Queue           // 异步任务队列
	exporter    *export.Exporter          // 导出器
	storage     storage.Storage           // 导出文件存储
	logger      *logrus.Logger            // 日志记录器
}

// QuizOption 出题服务配置选项
type QuizOption func(*QuizService)

// NewQuizService 创建出题服务实例
func NewQuizService(generator *llm.QuizGenerator, repo repository.QuizRepository, c cache.Cache, opts ...QuizOption) *QuizService {
	service := &QuizService{
		generator:   generator,
		repo:        repo,
		cache:       c,
		cacheTTL:    24 * time.Hour,
		maxAttempts: 3,
		exporter:    export.NewExporter(),
		logger:      logrus.New(),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// WithCacheTTL 设置缓存时间
func WithCacheTTL(ttl time.Duration) QuizOption {
	return func(s *QuizService) {
		s.cacheTTL = ttl
	}
}

// WithMaxAttempts 设置最多生成次数
func WithMaxAttempts(n int) QuizOption {
	return func(s *QuizService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithTaskQueue 启用异步生成
func WithTaskQueue(queue taskqueue.Queue) QuizOption {
	return func(s *QuizService) {
		s.taskQueue = queue
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) QuizOption {
	return func(s *QuizService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExporter 设置导出器
func WithExporter(exporter *export.Exporter) QuizOption {
	return func(s *QuizService) {
		if exporter != nil {
			s.exporter = exporter
		}
	}
}

// WithStorage 设置导出文件存储
func WithStorage(st storage.Storage) QuizOption {
	return func(s *QuizService) {
		s.storage = st
	}
}

// AsyncEnabled 是否支持异步生成
func (s *QuizService) AsyncEnabled() bool {
	return s.taskQueue != nil
}

// Generate 同步生成题目
// 没有解析出题目时记录以failed状态保存，同时返回记录和ErrNoQuestions
func (s *QuizService) Generate(ctx context.Context, req llm.QuizRequest) (*models.Quiz, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	record := newQuizRecord(req, models.QuizStatusGenerating)
	if err := s.repo.Create(record); err != nil {
		return nil, fmt.Errorf("failed to create quiz: %w", err)
	}

	if err := s.run(ctx, record, req); err != nil {
		return record, err
	}
	return record, nil
}

// GenerateAsync 保存pending状态的记录并投递生成任务，返回记录和任务ID
func (s *QuizService) GenerateAsync(ctx context.Context, req llm.QuizRequest) (*models.Quiz, string, error) {
	if s.taskQueue == nil {
		return nil, "", ErrAsyncDisabled
	}
	if err := req.Normalize(); err != nil {
		return nil, "", err
	}

	record := newQuizRecord(req, models.QuizStatusPending)
	if err := s.repo.Create(record); err != nil {
		return nil, "", fmt.Errorf("failed to create quiz: %w", err)
	}

	payload := &taskqueue.QuizGeneratePayload{
		QuizID:       record.ID,
		Topic:        req.Topic,
		Difficulty:   req.Difficulty,
		NumQuestions: req.NumQuestions,
		Types:        req.Types,
		Material:     req.Material,
		Source:       req.Source,
	}
	taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskQuizGenerate, record.ID, payload)
	if err != nil {
		s.markFailed(record, err)
		return record, "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	if err := s.repo.SetTaskID(record.ID, taskID); err != nil {
		s.logger.WithError(err).WithField("quiz_id", record.ID).Warn("Failed to save task id")
	}
	record.TaskID = taskID

	s.logger.WithFields(logrus.Fields{
		"quiz_id": record.ID,
		"task_id": taskID,
		"topic":   req.Topic,
	}).Info("Quiz generation task enqueued")

	return record, taskID, nil
}

// ProcessTask 处理异步生成任务
func (s *QuizService) ProcessTask(ctx context.Context, task *taskqueue.Task) (interface{}, error) {
	var payload taskqueue.QuizGeneratePayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return nil, taskqueue.Permanent(err)
	}

	record, err := s.repo.GetByID(payload.QuizID)
	if err != nil {
		if errors.Is(err, models.ErrQuizNotFound) {
			return nil, taskqueue.Permanent(err)
		}
		return nil, err
	}

	// 重复投递时直接返回已有结果
	if record.Status == models.QuizStatusCompleted {
		return resultOf(record), nil
	}

	if err := s.repo.UpdateStatus(record.ID, models.QuizStatusGenerating, ""); err != nil {
		return nil, err
	}
	record.Status = models.QuizStatusGenerating
	record.Error = ""

	req := llm.QuizRequest{
		Topic:        payload.Topic,
		Difficulty:   payload.Difficulty,
		NumQuestions: payload.NumQuestions,
		Types:        payload.Types,
		Material:     payload.Material,
		Source:       payload.Source,
	}
	if err := req.Normalize(); err != nil {
		s.markFailed(record, err)
		return nil, taskqueue.Permanent(err)
	}

	if err := s.run(ctx, record, req); err != nil {
		if errors.Is(err, ErrNoQuestions) || !llm.IsRetryable(err) {
			return nil, taskqueue.Permanent(err)
		}
		return nil, err
	}

	return resultOf(record), nil
}

// generation 一次成功或失败的生成结果
type generation struct {
	RawText    string `json:"raw_text"`
	Model      string `json:"model"`
	TokenCount int    `json:"token_count"`
	Truncated  bool   `json:"truncated,omitempty"`
}

// run 生成并解析题目，结果写回记录
func (s *QuizService) run(ctx context.Context, record *models.Quiz, req llm.QuizRequest) error {
	log := s.logger.WithFields(logrus.Fields{
		"quiz_id":    record.ID,
		"topic":      req.Topic,
		"difficulty": req.Difficulty,
	})

	key := requestCacheKey(req)
	var (
		gen       *generation
		questions []quiz.Question
		stats     quiz.Stats
		attempts  int
	)

	if cached, ok := s.cachedGeneration(key); ok {
		questions, stats = quiz.ParseWithStats(cached.RawText)
		if len(questions) > 0 {
			gen = cached
			log.Debug("Using cached generation")
		}
	}

	for gen == nil && attempts < s.maxAttempts {
		attempts++
		resp, err := s.generator.Generate(ctx, req)
		if err != nil {
			record.Attempts += attempts
			log.WithError(err).WithField("attempt", attempts).Error("Quiz generation failed")
			s.markFailed(record, err)
			return err
		}

		record.TokenCount += resp.TokenCount
		questions, stats = quiz.ParseWithStats(resp.RawText)
		log.WithFields(logrus.Fields{
			"attempt":    attempts,
			"headings":   stats.Headings,
			"rejected":   stats.Rejected,
			"incomplete": stats.Incomplete,
			"fallback":   stats.Fallback,
			"questions":  len(questions),
			"truncated":  resp.Truncated,
		}).Info("Parsed generated quiz")

		current := &generation{
			RawText:    resp.RawText,
			Model:      resp.ModelName,
			TokenCount: resp.TokenCount,
			Truncated:  resp.Truncated,
		}
		record.RawText = current.RawText
		record.Model = current.Model
		if len(questions) > 0 {
			gen = current
		}
	}
	record.Attempts += attempts

	if gen == nil {
		log.WithField("attempts", attempts).Warn("No questions extracted")
		s.markFailed(record, ErrNoQuestions)
		return ErrNoQuestions
	}

	if attempts > 0 {
		s.storeGeneration(key, gen)
	}

	records := models.NewQuizQuestions(record.ID, questions)
	record.RawText = gen.RawText
	record.Model = gen.Model
	record.UsedFallback = stats.Fallback
	record.QuestionCount = len(records)
	record.Status = models.QuizStatusCompleted
	record.Error = ""

	if err := s.repo.Update(record); err != nil {
		return fmt.Errorf("failed to update quiz: %w", err)
	}
	if err := s.repo.SaveQuestions(record.ID, records); err != nil {
		return fmt.Errorf("failed to save questions: %w", err)
	}
	record.Questions = records

	log.WithField("questions", len(records)).Info("Quiz generated")
	return nil
}

// markFailed 将记录标记为失败
func (s *QuizService) markFailed(record *models.Quiz, cause error) {
	record.Status = models.QuizStatusFailed
	record.Error = cause.Error()
	if err := s.repo.Update(record); err != nil {
		s.logger.WithError(err).WithField("quiz_id", record.ID).Error("Failed to mark quiz as failed")
	}
}

func (s *QuizService) cachedGeneration(key string) (*generation, bool) {
	if s.cache == nil {
		return nil, false
	}
	value, found, err := s.cache.Get(key)
	if err != nil || !found {
		return nil, false
	}

	var gen generation
	if err := json.Unmarshal([]byte(value), &gen); err != nil {
		s.logger.WithError(err).Warn("Failed to unmarshal cached generation")
		return nil, false
	}
	return &gen, true
}

func (s *QuizService) storeGeneration(key string, gen *generation) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(gen)
	if err != nil {
		return
	}
	if err := s.cache.Set(key, string(data), s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache generation")
	}
}

// ParseText 直接解析一段生成文本
func (s *QuizService) ParseText(text string) ([]quiz.Question, quiz.Stats) {
	return quiz.ParseWithStats(text)
}

// GetQuiz 获取题目记录
func (s *QuizService) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	return s.repo.GetByID(id)
}

// ListQuizzes 分页列出记录
func (s *QuizService) ListQuizzes(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Quiz, int64, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(offset, limit, filters)
}

// DeleteQuiz 删除记录、题目及关联任务
func (s *QuizService) DeleteQuiz(ctx context.Context, id string) error {
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	s.logger.WithField("quiz_id", id).Info("Quiz deleted")
	return nil
}

// Render 按格式渲染已完成的题目
func (s *QuizService) Render(ctx context.Context, id string, format export.Format) (*export.Rendered, error) {
	record, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.QuizStatusCompleted {
		return nil, fmt.Errorf("%w: status is %s", ErrQuizNotReady, record.Status)
	}
	return s.exporter.Render(record, format)
}

// Export 渲染并保存导出文件
func (s *QuizService) Export(ctx context.Context, id string, format export.Format) (storage.FileInfo, error) {
	if s.storage == nil {
		return storage.FileInfo{}, ErrStorageDisabled
	}

	rendered, err := s.Render(ctx, id, format)
	if err != nil {
		return storage.FileInfo{}, err
	}

	info, err := s.storage.Save(ctx, bytes.NewReader(rendered.Data), rendered.FileName)
	if err != nil {
		return storage.FileInfo{}, fmt.Errorf("failed to save export: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"quiz_id": id,
		"file_id": info.ID,
		"format":  format,
		"size":    info.Size,
	}).Info("Quiz exported")

	return info, nil
}

// OpenExport 打开已保存的导出文件
func (s *QuizService) OpenExport(ctx context.Context, fileID string) (io.ReadCloser, storage.FileInfo, error) {
	if s.storage == nil {
		return nil, storage.FileInfo{}, ErrStorageDisabled
	}
	return s.storage.Get(ctx, fileID)
}

// newQuizRecord 根据请求创建记录
func newQuizRecord(req llm.QuizRequest, status models.QuizStatus) *models.Quiz {
	return &models.Quiz{
		ID:           uuid.New().String(),
		Topic:        req.Topic,
		Difficulty:   req.Difficulty,
		NumQuestions: req.NumQuestions,
		Types:        strings.Join(req.Types, ","),
		SourceName:   req.Source,
		Status:       status,
	}
}

// requestCacheKey 相同的请求参数和资料得到相同的键
func requestCacheKey(req llm.QuizRequest) string {
	return cache.GenerateCacheKey("quiz",
		req.Topic,
		req.Difficulty,
		strconv.Itoa(req.NumQuestions),
		strings.Join(req.Types, ","),
		req.Material,
	)
}

func resultOf(record *models.Quiz) *taskqueue.QuizGenerateResult {
	return &taskqueue.QuizGenerateResult{
		QuizID:        record.ID,
		QuestionCount: record.QuestionCount,
		UsedFallback:  record.UsedFallback,
		Attempts:      record.Attempts,
		Model:         record.Model,
	}
}
