// Package storage provides the object store used for exported artifacts.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/storepulse/backend/config"
	"github.com/storepulse/backend/internal/domain"
	"go.uber.org/zap"
)

// Ensure S3ObjectStore implements the domain port
var _ domain.ObjectStore = (*S3ObjectStore)(nil)

// S3ObjectStore uploads artifacts to any S3-compatible backend (AWS S3,
// MinIO, etc.). PutObject overwrites in place, so repeated exports of the
// same artifact name update the stored object rather than duplicating it.
type S3ObjectStore struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

// NewS3ObjectStore creates an object store from configuration. Credential
// and bucket presence are validated by config.Load before this is called.
func NewS3ObjectStore(cfg *config.StorageConfig, logger *zap.Logger) (*S3ObjectStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3ObjectStore{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// Ping verifies the configured bucket is reachable. Called at startup so a
// bad bucket or credentials fail the process, not the first export.
func (s *S3ObjectStore) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("storage bucket %q not reachable: %w", s.bucket, err)
	}
	return nil
}

// Upload writes data to key, creating or overwriting the object.
func (s *S3ObjectStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("storage key is required")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %q: %w", key, err)
	}

	return nil
}

// Exists checks whether an object already exists under key.
func (s *S3ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("storage key is required")
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return false, nil
		}
		// Some S3-compatible services report not-found differently
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey") {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object %q: %w", key, err)
	}

	return true, nil
}
