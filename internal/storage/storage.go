// Package storage provides working-file and published-artifact storage.
// It defines the Storage interface (port) for hexagonal architecture and
// implementations for local disk and S3 storage.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for working files and published artifacts.
// Implementations hold uploaded inputs and extracted segments on disk while a
// job runs and optionally publish the results to S3.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// WorkDir creates (if needed) and returns a directory dedicated to name,
	// typically a job ID, under the storage root.
	WorkDir(ctx context.Context, name string) (string, error)

	// RemoveDir removes a directory previously returned by WorkDir.
	RemoveDir(ctx context.Context, dir string) error

	// UploadToS3 uploads data to S3 under key and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}

// Compile-time checks that both backends implement Storage.
var (
	_ Storage = (*LocalStorage)(nil)
	_ Storage = (*S3Storage)(nil)
)
