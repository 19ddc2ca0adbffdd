// Package assets stores uploaded portfolio images in S3-compatible object
// storage and hands out presigned download URLs.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"folio/api/internal/util"
)

const (
	maxUploadBytes = 10 << 20 // 10 MiB
	urlExpiry      = 15 * time.Minute
)

var (
	ErrUnsupportedType = errors.New("unsupported asset content type")
	ErrTooLarge        = errors.New("asset exceeds size limit")
)

var allowedTypes = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/webp":    ".webp",
	"image/gif":     ".gif",
	"image/svg+xml": ".svg",
}

// Config holds object storage connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Service uploads and serves portfolio assets.
type Service struct {
	client *minio.Client
	bucket string
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		log.Printf("assets: created bucket %s", cfg.Bucket)
	}

	return &Service{client: client, bucket: cfg.Bucket}, nil
}

// Asset describes a stored upload.
type Asset struct {
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Upload stores an image under the portfolio's prefix and returns its key.
func (s *Service) Upload(ctx context.Context, portfolioID, contentType string, size int64, body io.Reader) (Asset, error) {
	ext, ok := allowedTypes[contentType]
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if size > maxUploadBytes {
		return Asset{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}

	key := path.Join(portfolioID, util.NewID("ast")+ext)
	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Asset{}, fmt.Errorf("put object %s: %w", key, err)
	}

	return Asset{Key: key, ContentType: contentType, Size: info.Size}, nil
}

// DownloadURL returns a short-lived presigned GET URL for an asset key.
func (s *Service) DownloadURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, urlExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// Delete removes one asset.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// DeletePortfolioAssets removes every asset under a portfolio's prefix.
// Called when a portfolio is deleted.
func (s *Service) DeletePortfolioAssets(ctx context.Context, portfolioID string) error {
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    portfolioID + "/",
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("list assets for %s: %w", portfolioID, obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			log.Printf("assets: remove %s: %v", obj.Key, err)
		}
	}
	return nil
}
