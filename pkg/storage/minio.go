package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// 原始文件名保存在对象元数据中
const metaOriginalName = "Original-Name"

// MinioStorage MinIO存储实现
type MinioStorage struct {
	client     *minio.Client // MinIO客户端
	bucketName string        // 存储桶名称
}

// MinioConfig MinIO存储配置
type MinioConfig struct {
	Endpoint  string // MinIO服务端点
	AccessKey string // 访问密钥ID
	SecretKey string // 秘密访问密钥
	UseSSL    bool   // 是否使用SSL
	Bucket    string // 存储桶名称
}

// NewMinioStorage 创建MinIO存储实例，桶不存在时自动创建
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = "quizgen-exports"
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

// Save 上传文件到MinIO
func (s *MinioStorage) Save(ctx context.Context, reader io.Reader, filename string) (FileInfo, error) {
	id := uuid.New().String()
	now := timeNow()
	objectName := path.Join(datePath(now), id+filepath.Ext(filename))
	contentType := MimeType(filename)

	// 大小未知时使用分片上传
	upload, err := s.client.PutObject(ctx, s.bucketName, objectName, reader, -1, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{metaOriginalName: filename},
	})
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload file: %w", err)
	}

	return FileInfo{
		ID:        id,
		Name:      filename,
		Size:      upload.Size,
		MimeType:  contentType,
		Path:      objectName,
		CreatedAt: now,
	}, nil
}

// Get 获取MinIO中的文件
func (s *MinioStorage) Get(ctx context.Context, id string) (io.ReadCloser, FileInfo, error) {
	info, err := s.find(ctx, id)
	if err != nil {
		return nil, FileInfo{}, err
	}

	obj, err := s.client.GetObject(ctx, s.bucketName, info.Path, minio.GetObjectOptions{})
	if err != nil {
		return nil, FileInfo{}, fmt.Errorf("failed to get object: %w", err)
	}

	if stat, err := obj.Stat(); err == nil {
		if name := stat.UserMetadata[metaOriginalName]; name != "" {
			info.Name = name
		}
	}
	return obj, info, nil
}

// Delete 从MinIO中删除文件
func (s *MinioStorage) Delete(ctx context.Context, id string) error {
	info, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.bucketName, info.Path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// List 列出MinIO中的所有文件
func (s *MinioStorage) List(ctx context.Context) ([]FileInfo, error) {
	var files []FileInfo
	err := s.walk(ctx, func(info FileInfo) bool {
		files = append(files, info)
		return true
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Exists 检查MinIO中是否存在指定ID的文件
func (s *MinioStorage) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.find(ctx, id)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// find 按ID查找对象
func (s *MinioStorage) find(ctx context.Context, id string) (FileInfo, error) {
	if !validID(id) {
		return FileInfo{}, ErrNotFound
	}

	var (
		found FileInfo
		ok    bool
	)
	err := s.walk(ctx, func(info FileInfo) bool {
		if info.ID == id {
			found, ok = info, true
			return false
		}
		return true
	})
	if err != nil {
		return FileInfo{}, err
	}
	if !ok {
		return FileInfo{}, ErrNotFound
	}
	return found, nil
}

// walk 遍历桶内对象，fn返回false时停止
func (s *MinioStorage) walk(ctx context.Context, fn func(FileInfo) bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objectCh := s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Recursive: true})
	for object := range objectCh {
		if object.Err != nil {
			return fmt.Errorf("error listing objects: %w", object.Err)
		}

		name := path.Base(object.Key)
		info := FileInfo{
			ID:        idFromName(name),
			Name:      name,
			Size:      object.Size,
			MimeType:  MimeType(name),
			Path:      object.Key,
			CreatedAt: object.LastModified,
		}
		if !fn(info) {
			return nil
		}
	}
	return nil
}
