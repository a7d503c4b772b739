package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// LocalStorage 本地文件存储实现
type LocalStorage struct {
	basePath string // 基础存储路径
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string // 本地存储路径
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	if cfg.Path == "" {
		cfg.Path = "data/exports"
	}

	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{basePath: absPath}, nil
}

// Save 保存文件到本地存储
func (s *LocalStorage) Save(ctx context.Context, reader io.Reader, filename string) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}

	id := uuid.New().String()
	ext := filepath.Ext(filename)
	now := timeNow()
	relDir := filepath.FromSlash(datePath(now))

	dirPath := filepath.Join(s.basePath, relDir)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return FileInfo{}, fmt.Errorf("failed to create directory: %w", err)
	}

	filePath := filepath.Join(dirPath, id+ext)
	file, err := os.Create(filePath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	size, err := io.Copy(file, reader)
	if err != nil {
		os.Remove(filePath)
		return FileInfo{}, fmt.Errorf("failed to write file: %w", err)
	}

	return FileInfo{
		ID:        id,
		Name:      filename,
		Size:      size,
		MimeType:  MimeType(filename),
		Path:      filepath.Join(relDir, id+ext),
		CreatedAt: now,
	}, nil
}

// Get 获取文件内容
func (s *LocalStorage) Get(ctx context.Context, id string) (io.ReadCloser, FileInfo, error) {
	info, err := s.find(ctx, id)
	if err != nil {
		return nil, FileInfo{}, err
	}

	file, err := os.Open(filepath.Join(s.basePath, info.Path))
	if err != nil {
		return nil, FileInfo{}, fmt.Errorf("failed to open file: %w", err)
	}
	return file, info, nil
}

// Delete 删除文件
func (s *LocalStorage) Delete(ctx context.Context, id string) error {
	info, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.basePath, info.Path)); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// List 列出所有文件，按创建时间倒序
func (s *LocalStorage) List(ctx context.Context) ([]FileInfo, error) {
	var files []FileInfo

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		info, err := s.fileInfo(path, d)
		if err != nil {
			return err
		}
		files = append(files, info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.find(ctx, id)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// find 根据ID查找文件
func (s *LocalStorage) find(ctx context.Context, id string) (FileInfo, error) {
	if !validID(id) {
		return FileInfo{}, ErrNotFound
	}

	var (
		found FileInfo
		ok    bool
	)
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || idFromName(path) != id {
			return nil
		}

		found, err = s.fileInfo(path, d)
		if err != nil {
			return err
		}
		ok = true
		return fs.SkipAll
	})
	if err != nil {
		return FileInfo{}, fmt.Errorf("error searching for file: %w", err)
	}
	if !ok {
		return FileInfo{}, ErrNotFound
	}
	return found, nil
}

func (s *LocalStorage) fileInfo(path string, d fs.DirEntry) (FileInfo, error) {
	stat, err := d.Info()
	if err != nil {
		return FileInfo{}, err
	}
	relPath, err := filepath.Rel(s.basePath, path)
	if err != nil {
		return FileInfo{}, err
	}

	name := filepath.Base(path)
	return FileInfo{
		ID:        idFromName(name),
		Name:      name,
		Size:      stat.Size(),
		MimeType:  MimeType(name),
		Path:      relPath,
		CreatedAt: stat.ModTime(),
	}, nil
}
