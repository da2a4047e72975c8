package storage

import (
	"context"
	"fmt"

	"github.com/vidyalayaone/profile-api/pkg/config"
)

// Object describes a stored file.
type Object struct {
	Name        string
	URL         string
	ContentType string
	Size        int64
}

// Storage persists raw document bytes. Backends are interchangeable;
// document metadata stays in the relational store either way.
type Storage interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (*Object, error)
	Delete(ctx context.Context, name string) error
}

// New selects the backend from configuration.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Provider {
	case "", "local":
		return NewLocalStorage(cfg.LocalDir)
	case "s3":
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
