package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
}

// MinioStorage keeps model binaries as objects named models/<name> in one
// bucket.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage connects to the endpoint and creates the bucket when it is
// missing.
func NewMinioStorage(ctx context.Context, cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
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
	}

	return &MinioStorage{client: client, bucket: cfg.Bucket}, nil
}

func objectName(name string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return path.Join(modelsPrefix, name), nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func (ms *MinioStorage) Save(ctx context.Context, name string, data io.Reader, size int64) error {
	object, err := objectName(name)
	if err != nil {
		return err
	}

	if size <= 0 {
		size = -1
	}
	_, err = ms.client.PutObject(ctx, ms.bucket, object, data, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

func (ms *MinioStorage) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	object, err := objectName(name)
	if err != nil {
		return nil, 0, err
	}

	obj, err := ms.client.GetObject(ctx, ms.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, err
	}

	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isNoSuchKey(err) {
			return nil, 0, fmt.Errorf("object %s: %w", object, ErrNotFound)
		}
		return nil, 0, err
	}

	return obj, stat.Size, nil
}

// Delete removes the object. Removing a missing object succeeds.
func (ms *MinioStorage) Delete(ctx context.Context, name string) error {
	object, err := objectName(name)
	if err != nil {
		return err
	}

	err = ms.client.RemoveObject(ctx, ms.bucket, object, minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return err
	}
	return nil
}
