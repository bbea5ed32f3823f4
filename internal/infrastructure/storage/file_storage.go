package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
	"github.com/garyjia/invoice-approval/pkg/utils"
)

// LocalFileStorage implements port.FileStorage for local filesystem
type LocalFileStorage struct {
	baseDir string
	now     func() time.Time
	logger  *zap.Logger
}

// NewLocalFileStorage creates the base directory and returns a LocalFileStorage
func NewLocalFileStorage(baseDir string, logger *zap.Logger) (*LocalFileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalFileStorage{
		baseDir: baseDir,
		now:     time.Now,
		logger:  logger,
	}, nil
}

// SaveUpload streams content to "<timestamp>_<id>_<sanitized name>". Content larger
// than maxBytes (when positive) or empty content is rejected as an invalid payload.
func (s *LocalFileStorage) SaveUpload(ctx context.Context, fileName string, content io.Reader, maxBytes int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_%s_%s",
		s.now().UTC().Format("20060102T150405"),
		uuid.NewString()[:8],
		utils.SanitizeFileName(fileName))
	fullPath := s.GetFullPath(name)

	// Validate path security
	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}

	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		s.logger.Error("Failed to create file", zap.String("path", fullPath), zap.Error(err))
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	reader := content
	if maxBytes > 0 {
		reader = io.LimitReader(content, maxBytes+1)
	}
	written, err := io.Copy(f, reader)
	closeErr := f.Close()

	switch {
	case err != nil:
		err = fmt.Errorf("failed to write file: %w", err)
	case closeErr != nil:
		err = fmt.Errorf("failed to close file: %w", closeErr)
	case written == 0:
		err = fmt.Errorf("%w: uploaded file is empty", workflow.ErrInvalidPayload)
	case maxBytes > 0 && written > maxBytes:
		err = fmt.Errorf("%w: uploaded file exceeds %d bytes", workflow.ErrInvalidPayload, maxBytes)
	}
	if err != nil {
		if rmErr := os.Remove(fullPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Warn("Failed to remove partial upload", zap.String("path", fullPath), zap.Error(rmErr))
		}
		return "", err
	}

	s.logger.Debug("Upload saved",
		zap.String("path", fullPath),
		zap.Int64("size", written))

	return name, nil
}

// Read reads content from the specified relative path
func (s *LocalFileStorage) Read(ctx context.Context, path string) ([]byte, error) {
	fullPath := s.GetFullPath(path)

	// Validate path security
	if err := s.validatePath(fullPath); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		s.logger.Error("Failed to read file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

// Exists checks if a file exists at the specified relative path
func (s *LocalFileStorage) Exists(ctx context.Context, path string) bool {
	fullPath := s.GetFullPath(path)
	if s.validatePath(fullPath) != nil {
		return false
	}
	_, err := os.Stat(fullPath)
	return err == nil
}

// Delete removes a file at the specified relative path; missing files are not an error
func (s *LocalFileStorage) Delete(ctx context.Context, path string) error {
	fullPath := s.GetFullPath(path)

	// Validate path security
	if err := s.validatePath(fullPath); err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Error("Failed to delete file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetFullPath converts a relative path to full path
func (s *LocalFileStorage) GetFullPath(relativePath string) string {
	return filepath.Join(s.baseDir, relativePath)
}

// validatePath checks that the path is safe and within baseDir
func (s *LocalFileStorage) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("%w: path escapes upload directory: %s", workflow.ErrInvalidPayload, fullPath)
	}
	return nil
}

var _ port.FileStorage = (*LocalFileStorage)(nil)
