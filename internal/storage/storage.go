package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/common/cnst"
	"github.com/Brownbull/gabeda-backend/internal/common/config"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a file reference does not resolve to an object
var ErrNotFound = errors.New("file not found")

// Storage is the byte-stream provider behind uploaded files, keyed by an opaque file reference
type Storage interface {
	// Save stores content under name
	Save(ctx context.Context, name string, content io.Reader) error

	// Load opens the content stored under name
	Load(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes the content stored under name
	Delete(ctx context.Context, name string) error
}

// New creates the storage backend selected by the configuration
func New(ctx context.Context, logger *zap.Logger, cfg *config.StorageConfig) (Storage, error) {
	switch cnst.StorageType(cfg.Type) {
	case cnst.StorageDisk:
		return NewDiskStorage(logger, cfg.Disk.Path)
	case cnst.StorageS3:
		return NewS3Storage(ctx, logger, cfg.S3)
	case cnst.StorageGCS:
		return NewGCSStorage(ctx, logger, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// ObjectName builds the reference an upload is stored under:
// uploads/{tenant}/{attempt}/{timestamp}_{file name}
func ObjectName(tenantID uint, attemptID, fileName string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload.csv"
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, base)
	return fmt.Sprintf("uploads/%d/%s/%s_%s", tenantID, attemptID, now.UTC().Format("20060102T150405"), base)
}

// joinPrefix prepends an optional key prefix
func joinPrefix(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(name, "/")
}
