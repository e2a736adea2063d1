// Package blob selects and wraps the configured blob backend.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"plantkeeper/internal/blob/core"
	"plantkeeper/internal/infra/blob/fs"
	"plantkeeper/internal/infra/blob/memory"
	"plantkeeper/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
	// S3Config configures the S3 driver.
	S3Config = s3.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
)

// Config selects a backend. FSRoot applies to the fs driver, S3 to the s3 driver.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open builds the backend named by cfg.Driver, defaulting to the filesystem.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverS3:
		return s3.New(ctx, cfg.S3)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// PutBytes writes data under key, replacing any existing blob.
func PutBytes(ctx context.Context, store Store, key string, data []byte, contentType string) (Info, error) {
	return store.Put(ctx, key, bytes.NewReader(data), PutOptions{ContentType: contentType, Overwrite: true})
}

// ReadAll returns the full contents stored under key.
func ReadAll(ctx context.Context, store Store, key string) ([]byte, error) {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}
