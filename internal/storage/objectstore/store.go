// Package objectstore keeps uploaded project thumbnails in an S3-compatible
// bucket (MinIO in development) and hands out their public URLs.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ShipLog-Showcase/showcase-backend/config"
)

// ErrDisabled is returned when no endpoint is configured.
var ErrDisabled = errors.New("object store not configured")

// MaxThumbnailSize caps a single upload.
const MaxThumbnailSize = 5 << 20

const publicReadPolicy = `{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Principal": {"AWS": ["*"]},
    "Action": ["s3:GetObject"],
    "Resource": ["arn:aws:s3:::%s/thumbnails/*"]
  }]
}`

type Store struct {
	mc      *minio.Client
	bucket  string
	baseURL string
	now     func() time.Time
}

func New(cfg *config.ObjectStoreConfig) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, ErrDisabled
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	base := strings.TrimRight(cfg.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &Store{mc: mc, bucket: cfg.Bucket, baseURL: base, now: time.Now}, nil
}

// EnsureBucket creates the bucket if needed and makes thumbnails publicly
// readable (idempotent).
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.mc.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if !exists {
		if err := s.mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("make bucket: %w", err)
		}
	}
	return s.mc.SetBucketPolicy(ctx, s.bucket, fmt.Sprintf(publicReadPolicy, s.bucket))
}

// PutThumbnail uploads an image for projectID and returns its public URL.
func (s *Store) PutThumbnail(ctx context.Context, projectID, contentType string, r io.Reader, size int64) (string, error) {
	if size > MaxThumbnailSize {
		return "", fmt.Errorf("thumbnail too large: %d bytes", size)
	}
	key := ThumbnailKey(projectID, contentType, s.now())
	_, err := s.mc.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return "", err
	}
	return s.PublicURL(key), nil
}

func (s *Store) PublicURL(key string) string {
	return s.baseURL + "/" + key
}

// ThumbnailKey names a new object. Every upload gets a fresh key so cached
// copies of older thumbnails never shadow it.
func ThumbnailKey(projectID, contentType string, at time.Time) string {
	return fmt.Sprintf("thumbnails/%s/%d%s", strings.ToLower(projectID), at.UnixNano(), extension(contentType))
}

func extension(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	}
	return ""
}
