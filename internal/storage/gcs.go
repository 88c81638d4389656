package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Brownbull/gabeda-backend/internal/common/config"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GCSStorage implements Storage on a Google Cloud Storage bucket
type GCSStorage struct {
	logger *zap.Logger
	client *gcs.Client
	bucket *gcs.BucketHandle
	name   string
	prefix string
}

// NewGCSStorage creates a new GCS storage client
func NewGCSStorage(ctx context.Context, logger *zap.Logger, cfg config.GCSStorageConfig) (*GCSStorage, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStorage{
		logger: logger.Named("storage.gcs"),
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		name:   cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Save writes content to the bucket
func (s *GCSStorage) Save(ctx context.Context, name string, content io.Reader) error {
	object := joinPrefix(s.prefix, name)
	writer := s.bucket.Object(object).NewWriter(ctx)
	writer.ContentType = "text/csv"

	if _, err := io.Copy(writer, content); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	s.logger.Debug("object saved", zap.String("bucket", s.name), zap.String("object", object))
	return nil
}

// Load opens a reader on the object
func (s *GCSStorage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	object := joinPrefix(s.prefix, name)
	reader, err := s.bucket.Object(object).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", s.name, object, err)
	}
	return reader, nil
}

// Delete removes the object
func (s *GCSStorage) Delete(ctx context.Context, name string) error {
	object := joinPrefix(s.prefix, name)
	err := s.bucket.Object(object).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return err
}

// Close releases the underlying client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}
