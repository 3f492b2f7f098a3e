// Package storage is the content store for LLM-generated images (spec §5:
// "the returned artifact is consumed by whoever owns the project"): keyed
// by the opaque image id an llmworker.Result carries, single-writer (the
// worker process, through the engine's Dispatcher), read-many (whatever
// downstream viewer resolves an entity's imageId tag). Adapted from the
// teacher's internal/storage, trimmed from its document/org/project
// namespacing down to one flat image-id keyspace.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/fx"

	appconfig "github.com/chris-arsenault/penguin-tales-sub002/internal/config"
	"github.com/chris-arsenault/penguin-tales-sub002/pkg/logger"
)

var Module = fx.Module("storage",
	fx.Provide(NewService),
)

// Service provides S3-compatible storage for generated images.
type Service struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	cfg           *appconfig.StorageConfig
	log           *slog.Logger
}

// UploadOptions configures an image upload.
type UploadOptions struct {
	ContentType string
	Metadata    map[string]string
}

// UploadResult describes a stored image.
type UploadResult struct {
	ImageID string
	Bucket  string
	ETag    string
	Size    int64
}

// NewService builds a Service from process configuration. An unconfigured
// Storage section yields a disabled Service rather than an error, since a
// run with image generation turned off never needs a content store.
func NewService(cfg *appconfig.Config, log *slog.Logger) (*Service, error) {
	log = log.With(logger.Scope("storage"))
	if !cfg.Storage.IsConfigured() {
		log.Warn("image storage disabled: no configuration provided")
		return &Service{cfg: &cfg.Storage, log: log}, nil
	}

	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.Storage.Endpoint,
				HostnameImmutable: true,
				SigningRegion:     cfg.Storage.Region,
			}, nil
		},
	)

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Storage.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.Storage.AccessKeyID,
			cfg.Storage.SecretAccessKey,
			"",
		)),
		config.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	presignClient := s3.NewPresignClient(client)

	log.Info("image storage initialized",
		slog.String("endpoint", cfg.Storage.Endpoint),
		slog.String("bucket", cfg.Storage.Bucket),
	)

	return &Service{
		client:        client,
		presignClient: presignClient,
		cfg:           &cfg.Storage,
		log:           log,
	}, nil
}

// Enabled reports whether the underlying S3 client was constructed.
func (s *Service) Enabled() bool { return s.client != nil }

// Put stores image bytes under an opaque image id, overwriting any prior
// object at that key (an id is never reused across distinct images, but a
// retried upload for the same id is idempotent).
func (s *Service) Put(ctx context.Context, imageID string, data io.Reader, size int64, opts UploadOptions) (*UploadResult, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("storage: not enabled")
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(imageID),
		Body:          data,
		ContentLength: aws.Int64(size),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	result, err := s.client.PutObject(ctx, input)
	if err != nil {
		s.log.Error("failed to store image", slog.String("image_id", imageID), logger.Error(err))
		return nil, fmt.Errorf("storage: put failed: %w", err)
	}

	etag := ""
	if result.ETag != nil {
		etag = strings.Trim(*result.ETag, "\"")
	}

	s.log.Debug("image stored", slog.String("image_id", imageID), slog.Int64("size", size))
	return &UploadResult{ImageID: imageID, Bucket: s.cfg.Bucket, ETag: etag, Size: size}, nil
}

// Get retrieves an image's bytes by id. Callers own closing the reader.
func (s *Service) Get(ctx context.Context, imageID string) (io.ReadCloser, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("storage: not enabled")
	}
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(imageID),
	})
	if err != nil {
		s.log.Error("failed to fetch image", slog.String("image_id", imageID), logger.Error(err))
		return nil, fmt.Errorf("storage: get failed: %w", err)
	}
	return result.Body, nil
}

// Delete removes an image by id.
func (s *Service) Delete(ctx context.Context, imageID string) error {
	if !s.Enabled() {
		return fmt.Errorf("storage: not enabled")
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(imageID),
	})
	if err != nil {
		s.log.Error("failed to delete image", slog.String("image_id", imageID), logger.Error(err))
		return fmt.Errorf("storage: delete failed: %w", err)
	}
	s.log.Debug("image deleted", slog.String("image_id", imageID))
	return nil
}

// Exists checks whether an image id resolves to a stored object.
func (s *Service) Exists(ctx context.Context, imageID string) (bool, error) {
	if !s.Enabled() {
		return false, fmt.Errorf("storage: not enabled")
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(imageID),
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "NotFound") || strings.Contains(errStr, "404") || strings.Contains(errStr, "NoSuchKey") {
			return false, nil
		}
		return false, fmt.Errorf("storage: head failed: %w", err)
	}
	return true, nil
}

// SignedURLOptions configures a presigned download URL.
type SignedURLOptions struct {
	ExpiresIn time.Duration // 0 means the Service default
}

// SignedURL generates a presigned, time-limited download URL for an image.
func (s *Service) SignedURL(ctx context.Context, imageID string, opts SignedURLOptions) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("storage: not enabled")
	}
	expires := opts.ExpiresIn
	if expires == 0 {
		expires = time.Hour
	}

	presignedReq, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(imageID),
	}, func(po *s3.PresignOptions) {
		po.Expires = expires
	})
	if err != nil {
		s.log.Error("failed to presign URL", slog.String("image_id", imageID), logger.Error(err))
		return "", fmt.Errorf("storage: presign failed: %w", err)
	}
	return presignedReq.URL, nil
}
