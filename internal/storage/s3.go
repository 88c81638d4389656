package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Brownbull/gabeda-backend/internal/common/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3Storage implements Storage on an S3 bucket or an S3 compatible store
type S3Storage struct {
	logger *zap.Logger
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Storage creates a new S3 storage client
func NewS3Storage(ctx context.Context, logger *zap.Logger, cfg config.S3StorageConfig) (*S3Storage, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3StorageWithClient(logger, client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3StorageWithClient creates a new S3 storage with a pre-configured client
func NewS3StorageWithClient(logger *zap.Logger, client *s3.Client, bucket, prefix string) *S3Storage {
	return &S3Storage{
		logger: logger.Named("storage.s3"),
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Save uploads content to the bucket
func (s *S3Storage) Save(ctx context.Context, name string, content io.Reader) error {
	// PutObject needs a seekable body to sign the payload
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	key := joinPrefix(s.prefix, name)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	s.logger.Debug("object saved", zap.String("key", key), zap.Int("size", len(data)))
	return nil
}

// Load downloads content from the bucket
func (s *S3Storage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	key := joinPrefix(s.prefix, name)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	return out.Body, nil
}

// Delete removes content from the bucket
func (s *S3Storage) Delete(ctx context.Context, name string) error {
	key := joinPrefix(s.prefix, name)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}
