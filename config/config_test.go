package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SERVER_PORT", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 180*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadSize)
	assert.Equal(t, "tongyi", cfg.LLM.Provider)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.Quiz.MaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.Quiz.CacheTTL)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.False(t, cfg.Queue.Enable)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "A4", cfg.Export.PageSize)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  rate_limit_per_minute: 0
  allowed_origins:
    - https://quiz.example.com
llm:
  provider: openai
  model: gpt-4o-mini
  timeout: 2m
queue:
  enable: true
  concurrency: 8
storage:
  type: minio
  bucket: exports
log:
  level: debug
  file: logs/quizgen.log
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 0, cfg.Server.RateLimitPerMinute)
	assert.Equal(t, []string{"https://quiz.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 2*time.Minute, cfg.LLM.Timeout)
	assert.True(t, cfg.Queue.Enable)
	assert.Equal(t, 8, cfg.Queue.Concurrency)
	assert.Equal(t, "minio", cfg.Storage.Type)
	assert.Equal(t, "exports", cfg.Storage.Bucket)
	assert.Equal(t, "logs/quizgen.log", cfg.Log.File)
	// 未出现在文件中的键保持默认值
	assert.Equal(t, 2048, cfg.LLM.MaxTokens)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("PORT", "7000")
	t.Setenv("QUIZGEN_TEST_KEY", "sk-secret")

	path := writeConfig(t, `
llm:
  api_key: ${QUIZGEN_TEST_KEY}
storage:
  access_key: ${QUIZGEN_UNSET_VAR}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "sk-secret", cfg.LLM.APIKey)
	assert.Empty(t, cfg.Storage.AccessKey)

	t.Setenv("SERVER_PORT", "7100")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Server.Port)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "llm:\n  provider: ollama\n"))
	assert.ErrorContains(t, err, "unsupported llm provider")

	_, err = Load(writeConfig(t, "storage:\n  type: s3\n"))
	assert.ErrorContains(t, err, "unsupported storage type")

	_, err = Load(writeConfig(t, "quiz:\n  max_attempts: 0\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not, a, map"))
	assert.ErrorContains(t, err, "failed to read config file")
}
