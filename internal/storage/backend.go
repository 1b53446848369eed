// Package storage defines the sink interface for mirroring relocated log
// files and a factory over the available backends.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/yunusemregul/hacmanager/internal/config"
	"github.com/yunusemregul/hacmanager/internal/storage/local"
	"github.com/yunusemregul/hacmanager/internal/storage/s3"
)

// Backend is the interface for relocated-log sinks.
type Backend interface {
	// PutObject uploads content to the given key.
	PutObject(ctx context.Context, key string, body io.Reader, size int64) error

	// ObjectExists checks if an object exists at the given key.
	ObjectExists(ctx context.Context, key string) (bool, error)

	// Type returns the backend type identifier ("s3", "local").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}

// New builds the configured sink backend, or nil when none is configured.
func New(ctx context.Context, cfg config.SinkConfig) (Backend, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "local":
		return local.New(local.Config{RootPath: cfg.Local.RootPath, CreateDirs: true})
	case "s3":
		return s3.New(ctx, s3.Config{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
		})
	default:
		return nil, fmt.Errorf("unknown sink backend %q", cfg.Backend)
	}
}
