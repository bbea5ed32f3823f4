package port

import (
	"context"
	"io"
)

// FileStorage defines file storage operations for uploaded documents
type FileStorage interface {
	// SaveUpload stores content under a unique name derived from fileName and returns the relative path
	SaveUpload(ctx context.Context, fileName string, content io.Reader, maxBytes int64) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	GetFullPath(relativePath string) string
}
