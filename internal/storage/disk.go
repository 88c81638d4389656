package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DiskStorage implements Storage interface using local disk
type DiskStorage struct {
	logger  *zap.Logger
	baseDir string
}

// NewDiskStorage creates a new disk storage
func NewDiskStorage(logger *zap.Logger, baseDir string) (*DiskStorage, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, err
	}

	return &DiskStorage{
		logger:  logger.Named("storage.disk"),
		baseDir: abs,
	}, nil
}

// resolve maps a reference to a path that stays inside the base directory
func (s *DiskStorage) resolve(name string) (string, error) {
	filePath := filepath.Join(s.baseDir, filepath.FromSlash(name))
	if filePath != s.baseDir && !strings.HasPrefix(filePath, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("file reference %q escapes storage root", name)
	}
	return filePath, nil
}

// Save saves a file to disk
func (s *DiskStorage) Save(_ context.Context, name string, content io.Reader) error {
	filePath, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, content); err != nil {
		return err
	}

	s.logger.Debug("file saved", zap.String("name", name))
	return nil
}

// Load loads a file from disk
func (s *DiskStorage) Load(_ context.Context, name string) (io.ReadCloser, error) {
	filePath, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Delete deletes a file from disk
func (s *DiskStorage) Delete(_ context.Context, name string) error {
	filePath, err := s.resolve(name)
	if err != nil {
		return err
	}
	err = os.Remove(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return err
}
