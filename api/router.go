package api

import (
	"net/http"

	"github.com/fyerfyer/quiz-gen-system/api/handler"
	"github.com/fyerfyer/quiz-gen-system/api/middleware"
	"github.com/fyerfyer/quiz-gen-system/api/model"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
)

// RouterConfig 路由配置
type RouterConfig struct {
	RateLimitPerMinute int      // 生成接口每个客户端每分钟的请求数，0表示不限流
	RateLimitBurst     int      // 令牌桶容量
	AllowedOrigins     []string // 允许跨域的来源
}

// DefaultRouterConfig 默认路由配置
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RateLimitPerMinute: 30,
		RateLimitBurst:     5,
		AllowedOrigins:     []string{"*"},
	}
}

// SetupRouter 设置API路由
// taskHandler为nil时不注册任务查询接口
func SetupRouter(quizHandler *handler.QuizHandler, taskHandler *handler.TaskHandler, cfg RouterConfig) *gin.Engine {
	if err := model.RegisterValidators(); err != nil {
		middleware.GetLogger().WithError(err).Warn("Failed to register validators")
	}

	router := gin.New()

	// 应用全局中间件
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())

	// 在调试模式下记录请求体和响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
		router.Use(middleware.ResponseLogger())
	}

	limiter := middleware.RateLimit(cfg.RateLimitPerMinute, cfg.RateLimitBurst)

	// 兼容旧版前端的出题接口
	router.POST("/generate_quiz", limiter, quizHandler.LegacyGenerateQuiz)

	api := router.Group("/api")
	{
		quizGroup := api.Group("/quizzes")
		{
			// 生成题目 - POST /api/quizzes
			quizGroup.POST("", limiter, quizHandler.GenerateQuiz)

			// 上传资料出题 - POST /api/quizzes/upload
			quizGroup.POST("/upload", limiter, quizHandler.UploadAndGenerate)

			// 解析生成文本 - POST /api/quizzes/parse
			quizGroup.POST("/parse", quizHandler.ParseText)

			// 记录列表 - GET /api/quizzes
			quizGroup.GET("", quizHandler.ListQuizzes)

			// 记录详情 - GET /api/quizzes/:id
			quizGroup.GET("/:id", quizHandler.GetQuiz)

			// 删除记录 - DELETE /api/quizzes/:id
			quizGroup.DELETE("/:id", quizHandler.DeleteQuiz)

			// 导出 - POST /api/quizzes/:id/export?format=
			quizGroup.POST("/:id/export", quizHandler.ExportQuiz)

			if taskHandler != nil {
				// 关联任务 - GET /api/quizzes/:id/tasks
				quizGroup.GET("/:id/tasks", taskHandler.GetQuizTasks)
			}
		}

		// 下载导出文件 - GET /api/exports/:file_id
		api.GET("/exports/:file_id", quizHandler.DownloadExport)

		if taskHandler != nil {
			// 任务状态 - GET /api/tasks/:id
			api.GET("/tasks/:id", taskHandler.GetTaskStatus)
		}

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
				"async":  taskHandler != nil,
			})
		})
	}

	return router
}

// WithCORS 为HTTP处理器添加跨域支持
func WithCORS(h http.Handler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		return h
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.TraceIDHeader},
		ExposedHeaders:   []string{middleware.TraceIDHeader, "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	})(h)
}
