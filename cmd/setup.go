package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fyerfyer/quiz-gen-system/api/middleware"
	"github.com/fyerfyer/quiz-gen-system/config"
	"github.com/fyerfyer/quiz-gen-system/internal/cache"
	"github.com/fyerfyer/quiz-gen-system/internal/database"
	"github.com/fyerfyer/quiz-gen-system/internal/export"
	"github.com/fyerfyer/quiz-gen-system/internal/llm"
	"github.com/fyerfyer/quiz-gen-system/internal/repository"
	"github.com/fyerfyer/quiz-gen-system/internal/services"
	"github.com/fyerfyer/quiz-gen-system/pkg/storage"
	"github.com/fyerfyer/quiz-gen-system/pkg/taskqueue"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// app 服务运行所需的组件
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	queue   taskqueue.Queue // 未启用异步生成时为nil
	service *services.QuizService
}

// loadConfig 加载配置并应用命令行覆盖
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}
	return cfg, nil
}

// setupLogger 设置日志系统，配置了日志文件时同时写入按大小轮转的文件
func setupLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	logger := middleware.GetLogger()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}))
	}

	return logger, nil
}

// newApp 按配置初始化数据库、缓存、存储、模型客户端与任务队列
func newApp(cfg *config.Config, logger *logrus.Logger) (*app, error) {
	dbConfig := database.DefaultConfig()
	dbConfig.Type = cfg.Database.Type
	dbConfig.DSN = cfg.Database.DSN
	if err := database.Setup(dbConfig, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cacheService, err := cache.NewCache(cache.Config{
		Type:            cfg.Cache.Type,
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		KeyPrefix:       "quizgen:cache:",
		DefaultTTL:      cfg.Quiz.CacheTTL,
		CleanupInterval: 10 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	exportStorage, err := storage.New(storage.Config{
		Type: storage.Type(cfg.Storage.Type),
		Local: storage.LocalConfig{
			Path: cfg.Storage.Path,
		},
		Minio: storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	client, err := llm.NewClient(cfg.LLM.Provider,
		llm.WithAPIKey(cfg.LLM.APIKey),
		llm.WithBaseURL(cfg.LLM.BaseURL),
		llm.WithModel(cfg.LLM.Model),
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithMaxRetries(cfg.LLM.MaxRetries),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTemperature(cfg.LLM.Temperature),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	generator := llm.NewQuizGenerator(client,
		llm.WithQuizMaxTokens(cfg.LLM.MaxTokens),
		llm.WithQuizTemperature(cfg.LLM.Temperature),
		llm.WithQuizTimeout(cfg.LLM.Timeout),
		llm.WithMaxMaterialChars(cfg.Quiz.MaxMaterialChars),
	)

	a := &app{cfg: cfg, logger: logger}

	var repo repository.QuizRepository
	if cfg.Queue.Enable {
		a.queue, err = setupTaskQueue(cfg.Queue, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize task queue: %w", err)
		}
		repo = repository.NewQuizRepositoryWithQueue(database.MustDB(), a.queue)
	} else {
		repo = repository.NewQuizRepository()
	}

	serviceOptions := []services.QuizOption{
		services.WithLogger(logger),
		services.WithCacheTTL(cfg.Quiz.CacheTTL),
		services.WithMaxAttempts(cfg.Quiz.MaxAttempts),
		services.WithStorage(exportStorage),
		services.WithExporter(export.NewExporter(
			export.WithPageSize(cfg.Export.PageSize),
			export.WithAuthor(cfg.Export.Author),
		)),
	}
	if a.queue != nil {
		serviceOptions = append(serviceOptions, services.WithTaskQueue(a.queue))
	}
	a.service = services.NewQuizService(generator, repo, cacheService, serviceOptions...)

	logger.WithFields(logrus.Fields{
		"llm_provider": cfg.LLM.Provider,
		"llm_model":    cfg.LLM.Model,
		"cache":        cfg.Cache.Type,
		"storage":      cfg.Storage.Type,
		"async":        a.queue != nil,
	}).Info("Application components initialized")

	return a, nil
}

// setupTaskQueue 设置任务队列
func setupTaskQueue(cfg config.QueueConfig, logger *logrus.Logger) (taskqueue.Queue, error) {
	queueConfig := taskqueue.DefaultConfig()
	queueConfig.RedisAddr = cfg.RedisAddr
	queueConfig.RedisPassword = cfg.RedisPassword
	queueConfig.RedisDB = cfg.RedisDB
	queueConfig.Concurrency = cfg.Concurrency
	queueConfig.RetryLimit = cfg.RetryLimit
	queueConfig.RetryDelay = cfg.RetryDelay
	queueConfig.TaskTimeout = cfg.TaskTimeout
	queueConfig.Logger = logger

	logger.WithFields(logrus.Fields{
		"type":        cfg.Type,
		"redis_addr":  cfg.RedisAddr,
		"concurrency": cfg.Concurrency,
		"retry_limit": cfg.RetryLimit,
	}).Info("Setting up task queue")

	return taskqueue.NewQueue(cfg.Type, queueConfig)
}

// newWorker 创建处理异步生成任务的工作者
func (a *app) newWorker() (taskqueue.Worker, error) {
	redisQueue, ok := a.queue.(*taskqueue.RedisQueue)
	if !ok {
		return nil, fmt.Errorf("worker requires the redis task queue")
	}
	worker := taskqueue.NewRedisWorker(redisQueue, nil)
	worker.RegisterHandler(taskqueue.TaskQuizGenerate, a.service)
	return worker, nil
}

// Close 释放数据库与队列连接
func (a *app) Close() {
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close task queue")
		}
	}
	if err := database.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close database")
	}
}
