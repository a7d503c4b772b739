package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("file not found")

var timeNow = time.Now

// FileInfo 文件元数据结构
type FileInfo struct {
	ID        string    `json:"id"`                  // 文件唯一标识符
	Name      string    `json:"name"`                // 原始文件名
	Size      int64     `json:"size"`                // 文件大小(字节)
	MimeType  string    `json:"mime_type,omitempty"` // 文件MIME类型
	Path      string    `json:"-"`                   // 内部存储路径(实现相关)
	CreatedAt time.Time `json:"created_at"`
}

// Storage 导出文件存储接口
// 本地文件系统和MinIO各有一个实现
type Storage interface {
	// Save 保存文件并返回文件信息
	Save(ctx context.Context, reader io.Reader, filename string) (FileInfo, error)

	// Get 获取文件内容，调用方负责关闭
	Get(ctx context.Context, id string) (io.ReadCloser, FileInfo, error)

	// Delete 删除文件
	Delete(ctx context.Context, id string) error

	// List 列出所有文件
	List(ctx context.Context) ([]FileInfo, error)

	// Exists 检查文件是否存在
	Exists(ctx context.Context, id string) (bool, error)
}

// Type 存储类型
type Type string

const (
	TypeLocal Type = "local"
	TypeMinio Type = "minio"
)

// Config 存储配置
type Config struct {
	Type  Type
	Local LocalConfig
	Minio MinioConfig
}

// New 根据配置创建存储实现
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case TypeLocal, "":
		return NewLocalStorage(cfg.Local)
	case TypeMinio:
		return NewMinioStorage(cfg.Minio)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// MimeType 根据文件扩展名判断MIME类型
func MimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}

// datePath 按年/月/日组织目录
func datePath(t time.Time) string {
	return fmt.Sprintf("%04d/%02d/%02d", t.Year(), t.Month(), t.Day())
}

// idFromName 文件名去掉扩展名即为ID
func idFromName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// validID ID只允许uuid风格字符，防止路径穿越
func validID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if !(r == '-' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}
