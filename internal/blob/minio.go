// Package blob stores uploaded product images in S3-compatible object
// storage and hands back publicly resolvable URLs.
package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/commercebridge/visearch/internal/config"
)

// Uploader stores raw image bytes and returns a URL serving them.
type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// MinIOUploader implements Uploader using a MinIO/S3 bucket. Objects are
// content addressed: the same bytes always map to the same key, so re-uploads
// are harmless overwrites.
type MinIOUploader struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinIOUploader connects to MinIO and ensures the configured bucket exists.
func NewMinIOUploader(ctx context.Context, cfg config.BlobConfig) (*MinIOUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
		policy := fmt.Sprintf(`{
			"Version": "2012-10-17",
			"Statement": [{
				"Effect": "Allow",
				"Principal": {"AWS": ["*"]},
				"Action": ["s3:GetObject"],
				"Resource": ["arn:aws:s3:::%s/*"]
			}]
		}`, cfg.Bucket)
		if err := client.SetBucketPolicy(ctx, cfg.Bucket, policy); err != nil {
			return nil, fmt.Errorf("set bucket policy: %w", err)
		}
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}

	return &MinIOUploader{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket),
	}, nil
}

func (u *MinIOUploader) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	key := objectKey(data, contentType)

	_, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload object %q: %w", key, err)
	}

	return u.publicURL + "/" + key, nil
}

// objectKey derives a content-addressed key from the image bytes.
func objectKey(data []byte, contentType string) string {
	sum := sha256.Sum256(data)
	return "products/" + hex.EncodeToString(sum[:]) + extensionFor(contentType)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

var _ Uploader = (*MinIOUploader)(nil)

// MockUploader satisfies Uploader for testing.
type MockUploader struct {
	UploadFunc func(ctx context.Context, data []byte, contentType string) (string, error)
}

func (m *MockUploader) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, data, contentType)
	}
	return "https://cdn.example.com/" + objectKey(data, contentType), nil
}

var _ Uploader = (*MockUploader)(nil)
