package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStorage persists files on disk under a base directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Upload writes the given bytes under the base dir and returns a file URL.
func (s *LocalStorage) Upload(_ context.Context, name string, data []byte, contentType string) (*Object, error) {
	path := s.resolve(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare upload directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload file: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Object{
		Name:        name,
		URL:         "file://" + filepath.ToSlash(abs),
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Delete removes a stored file if present. Missing files are not an error so
// cleanup stays idempotent.
func (s *LocalStorage) Delete(_ context.Context, name string) error {
	if err := os.Remove(s.resolve(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload file: %w", err)
	}
	return nil
}

// Path exposes the underlying absolute path (useful for debugging).
func (s *LocalStorage) Path(name string) string {
	return s.resolve(name)
}

func (s *LocalStorage) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.baseDir, name)
}
