// Package storage keeps the bytes of uploaded documents. Metadata lives in
// the database; a Store only maps keys to content.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/tbourn/go-studio-backend/internal/config"
)

// Driver names accepted by New.
const (
	DriverFS = "fs"
	DriverS3 = "s3"
)

// ErrNotFound is returned when a key has no content.
var ErrNotFound = errors.New("blob not found")

// Store is a flat key/value blob store. Put overwrites existing content.
type Store interface {
	Driver() string
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case DriverFS, "":
		return NewFS(cfg.Path)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// cleanKey rejects empty, absolute and escaping keys and normalizes the rest.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("empty key")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.Contains(key, `\`) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return path.Clean(key), nil
}
