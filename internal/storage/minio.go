package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIO stores uploads as objects named <user_id>/<file name>.
type MinIO struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewMinIO connects to the endpoint and creates the bucket if missing.
func NewMinIO(ctx context.Context, cfg MinioConfig, logger *slog.Logger) (*MinIO, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("storage.bucket.created", "bucket", cfg.Bucket)
	}
	return &MinIO{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

func (m *MinIO) Name() string { return "minio" }

// ObjectName is the key an upload is stored under.
func ObjectName(userID, fileName string) string {
	return path.Join(userID, filepath.Base(fileName))
}

func (m *MinIO) Save(ctx context.Context, userID, fileName string, r io.Reader, size int64) (string, error) {
	key := ObjectName(userID, fileName)
	contentType := mime.TypeByExtension(filepath.Ext(fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	m.logger.Debug("storage.save.ok", "backend", "minio", "key", key, "bytes", info.Size)
	return key, nil
}

// Localize downloads the object into a private temp directory.
func (m *MinIO) Localize(ctx context.Context, location string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "audit-obj-*")
	if err != nil {
		return "", nil, fmt.Errorf("temp dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	dst := filepath.Join(dir, path.Base(location))
	if err := m.client.FGetObject(ctx, m.bucket, location, dst, minio.GetObjectOptions{}); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("get %s: %w", location, err)
	}
	return dst, cleanup, nil
}

func (m *MinIO) Remove(ctx context.Context, location string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, location, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("remove %s: %w", location, err)
	}
	return nil
}
