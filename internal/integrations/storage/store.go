// Package storage issues signed upload URLs for task attachments. Bytes never
// pass through the API server.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/taskboard-dev/taskboard/internal/apperr"
	"github.com/taskboard-dev/taskboard/internal/config"
)

type UploadSlot struct {
	URL       string    `json:"upload_url"`
	Key       string    `json:"file_path"`
	ExpiresAt time.Time `json:"expires_at"`
}

type BlobStore interface {
	PresignUpload(ctx context.Context, key, contentType string) (*UploadSlot, error)
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
}

// S3Store works against AWS S3 or any S3 compatible endpoint (MinIO, R2).
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	region    string
	endpoint  string
	publicURL string
	ttl       time.Duration
}

func NewS3Store(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewS3StoreFromConfig(awsCfg, cfg), nil
}

func NewS3StoreFromConfig(awsCfg aws.Config, cfg config.StorageConfig) *S3Store {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	ttl := cfg.UploadTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		ttl:       ttl,
	}
}

func (s *S3Store) PresignUpload(ctx context.Context, key, contentType string) (*UploadSlot, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := s.presigner.PresignPutObject(ctx, input, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return nil, apperr.Upstream("failed to sign upload url", err)
	}

	return &UploadSlot{
		URL:       req.URL,
		Key:       key,
		ExpiresAt: time.Now().Add(s.ttl).UTC(),
	}, nil
}

func (s *S3Store) PublicURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()

	switch {
	case s.publicURL != "":
		return s.publicURL + "/" + escaped
	case s.endpoint != "":
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, escaped)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped)
	}
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apperr.Upstream("failed to delete blob", err)
	}
	return nil
}

// Disabled stands in when no bucket is configured.
type Disabled struct{}

var errNotConfigured = errors.New("missing STORAGE_BUCKET")

func (Disabled) PresignUpload(context.Context, string, string) (*UploadSlot, error) {
	return nil, apperr.Upstream("file storage is not configured", errNotConfigured)
}

func (Disabled) PublicURL(string) string { return "" }

func (Disabled) Delete(context.Context, string) error {
	return apperr.Upstream("file storage is not configured", errNotConfigured)
}
