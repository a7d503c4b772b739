package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Quiz     QuizConfig     `mapstructure:"quiz"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Export   ExportConfig   `mapstructure:"export"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host               string        `mapstructure:"host"`                  // 服务器主机
	Port               int           `mapstructure:"port"`                  // 服务器端口
	Mode               string        `mapstructure:"mode"`                  // gin运行模式：debug 或 release
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`          // 读取超时
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`         // 写入超时，需覆盖同步生成的耗时
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"` // 每个客户端每分钟的生成请求数，0表示不限
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`      // 突发请求数
	AllowedOrigins     []string      `mapstructure:"allowed_origins"`       // 跨域白名单
	MaxUploadSize      int64         `mapstructure:"max_upload_size"`       // 上传文件大小上限(字节)
}

// LLMConfig 大语言模型配置
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`    // 提供商：tongyi 或 openai
	Model       string        `mapstructure:"model"`       // 模型名称
	APIKey      string        `mapstructure:"api_key"`     // API密钥，支持${VAR}
	BaseURL     string        `mapstructure:"base_url"`    // API端点，为空时使用提供商默认值
	Timeout     time.Duration `mapstructure:"timeout"`     // 请求超时
	MaxRetries  int           `mapstructure:"max_retries"` // 传输层最大重试次数
	MaxTokens   int           `mapstructure:"max_tokens"`  // 最大生成token数量
	Temperature float32       `mapstructure:"temperature"` // 采样温度
}

// QuizConfig 出题配置
type QuizConfig struct {
	MaxAttempts      int           `mapstructure:"max_attempts"`       // 零题目时的最大生成次数
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`          // 生成结果缓存时间
	MaxMaterialChars int           `mapstructure:"max_material_chars"` // 参考资料最大字符数
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type          string `mapstructure:"type"`           // 缓存类型：memory 或 redis
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string `mapstructure:"redis_password"` // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`       // Redis数据库
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool          `mapstructure:"enable"`         // 是否启用异步生成
	Type          string        `mapstructure:"type"`           // 队列类型
	RedisAddr     string        `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string        `mapstructure:"redis_password"` // Redis密码
	RedisDB       int           `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int           `mapstructure:"concurrency"`    // 任务处理并发数
	RetryLimit    int           `mapstructure:"retry_limit"`    // 任务最大重试次数
	RetryDelay    time.Duration `mapstructure:"retry_delay"`    // 重试延迟
	TaskTimeout   time.Duration `mapstructure:"task_timeout"`   // 单个任务的最长执行时间
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 数据库类型，目前仅支持sqlite
	DSN  string `mapstructure:"dsn"`  // 数据源名称
}

// StorageConfig 导出文件存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type"`     // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`     // 本地存储路径
	Endpoint  string `mapstructure:"endpoint"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
	Bucket    string `mapstructure:"bucket"`  // MinIO桶名称
}

// ExportConfig 导出配置
type ExportConfig struct {
	PageSize string `mapstructure:"page_size"` // PDF纸张大小
	Author   string `mapstructure:"author"`    // 文档作者
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`        // 日志级别
	File       string `mapstructure:"file"`         // 日志文件，为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // 单个日志文件大小上限
	MaxBackups int    `mapstructure:"max_backups"`  // 保留的旧日志文件数
	MaxAgeDays int    `mapstructure:"max_age_days"` // 旧日志保留天数
	Compress   bool   `mapstructure:"compress"`     // 是否压缩旧日志
}

// Load 从文件和环境变量加载配置
// 配置文件不存在时使用默认值
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	setDefaults(v)

	// 环境变量覆盖，如 SERVER_PORT、LLM_API_KEY
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "SERVER_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logrus.WithField("path", configPath).Warn("Config file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expandEnvironmentVariables(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.LLM.Provider {
	case "tongyi", "openai":
	default:
		return fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}
	switch c.Storage.Type {
	case "local", "minio":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Quiz.MaxAttempts < 1 {
		return fmt.Errorf("quiz.max_attempts must be at least 1")
	}
	return nil
}

// expandEnvironmentVariables 展开密钥类配置中的${VAR}
func expandEnvironmentVariables(cfg *Config) {
	for _, field := range []*string{
		&cfg.LLM.APIKey,
		&cfg.LLM.BaseURL,
		&cfg.Cache.RedisPassword,
		&cfg.Queue.RedisPassword,
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
	} {
		*field = expandValue(*field)
	}
}

// expandValue 展开形如${VAR}的取值，变量未设置时为空
func expandValue(s string) string {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return s
	}
	return os.Getenv(s[2 : len(s)-1])
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.rate_limit_per_minute", 30)
	v.SetDefault("server.rate_limit_burst", 5)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_size", 10<<20)

	// LLM默认配置
	v.SetDefault("llm.provider", "tongyi")
	v.SetDefault("llm.model", "qwen-turbo")
	v.SetDefault("llm.api_key", "${LLM_API_KEY}")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", "90s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.7)

	// 出题默认配置
	v.SetDefault("quiz.max_attempts", 3)
	v.SetDefault("quiz.cache_ttl", "24h")
	v.SetDefault("quiz.max_material_chars", 12000)

	// 缓存默认配置
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.type", "redis")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.retry_delay", "30s")
	v.SetDefault("queue.task_timeout", "5m")

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/quizzes.db")

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "data/exports")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "${MINIO_ACCESS_KEY}")
	v.SetDefault("storage.secret_key", "${MINIO_SECRET_KEY}")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "quizgen-exports")

	// 导出默认配置
	v.SetDefault("export.page_size", "A4")
	v.SetDefault("export.author", "quizgen")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
}
