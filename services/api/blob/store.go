// Package blob reads and writes marker datasets in MinIO or any other
// S3-compatible object store. Each dataset is one JSON object named
// "<dataset>.json".
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/apperr"
	"github.com/02loveslollipop/Shizuku-survey-markers/services/api/config"
)

// ObjectInfo describes a stored dataset.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// Store accesses datasets in a single bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// New creates a Store from configuration.
func New(cfg config.MinIO) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return NewStore(client, cfg.Bucket), nil
}

// NewStore wraps an existing client.
func NewStore(client *minio.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// ObjectKey returns the object name for a normalized dataset id.
func ObjectKey(id string) string {
	return id + ".json"
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Stat returns metadata for a dataset object.
func (s *Store) Stat(ctx context.Context, id string) (ObjectInfo, error) {
	key := ObjectKey(id)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, s.translate(id, "stat", err)
	}
	return ObjectInfo{Key: key, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified}, nil
}

// Fetch downloads the raw dataset JSON.
func (s *Store) Fetch(ctx context.Context, id string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ObjectKey(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.translate(id, "get", err)
	}
	defer obj.Close()

	// GetObject is lazy; missing objects surface on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.translate(id, "read", err)
	}
	return data, nil
}

// DownloadURL returns a presigned GET URL for the dataset object. The
// object must exist.
func (s *Store) DownloadURL(ctx context.Context, id string, ttl time.Duration) (*url.URL, error) {
	if _, err := s.Stat(ctx, id); err != nil {
		return nil, err
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, ObjectKey(id), ttl, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("presign dataset %s: %w", id, err)
	}
	return u, nil
}

// Put uploads a dataset, replacing any previous version.
func (s *Store) Put(ctx context.Context, id string, data []byte) (ObjectInfo, error) {
	key := ObjectKey(id)
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("upload dataset %s: %w", id, err)
	}
	return ObjectInfo{Key: key, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified}, nil
}

func (s *Store) translate(id, op string, err error) error {
	if IsNotFound(err) {
		return apperr.NotFound(fmt.Sprintf("dataset %s not found", id)).
			WithOp("blob." + op).
			WithDetails(map[string]string{"dataset": id})
	}
	return fmt.Errorf("%s dataset %s: %w", op, id, err)
}

// IsNotFound reports whether err is a missing-object response.
func IsNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	}
	return false
}
