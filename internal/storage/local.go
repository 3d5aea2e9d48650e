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
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// ErrOutsideRoot is returned when a directory outside the storage root is
// passed to RemoveDir or an invalid work directory name is requested.
var ErrOutsideRoot = errors.New("path is outside the storage root")

// LocalStorage keeps uploaded recordings and per-job segment directories on
// local disk below a single root. It cannot publish; see S3Storage.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates the root directory if needed. An empty root
// defaults to <os.TempDir()>/audiosplit.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "audiosplit")
	}

	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	return &LocalStorage{root: root}, nil
}

// TempDir returns the storage root.
func (s *LocalStorage) TempDir() string {
	return s.root
}

func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return nil
}

// SaveTemp streams data into a uniquely named file below the root. The
// extension of name is kept so decoders can sniff the container from it:
// "job_input.mp3" becomes "job_input_<random>.mp3".
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	if err := ctxErr(ctx); err != nil {
		return "", err
	}

	ext := filepath.Ext(name)
	f, err := os.CreateTemp(s.root, strings.TrimSuffix(name, ext)+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	path := f.Name()
	_, copyErr := io.Copy(f, data)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	return path, nil
}

// LoadTemp opens a file for reading. The caller closes it.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	f, err := os.Open(path) // #nosec G304 - paths come from this package or the job record
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// CleanupTemp removes every path, skipping ones already gone, and reports
// all failures together.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := ctxErr(ctx); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// WorkDir creates and returns <root>/<name>. name must be a single path
// element such as a job ID.
func (s *LocalStorage) WorkDir(ctx context.Context, name string) (string, error) {
	if err := ctxErr(ctx); err != nil {
		return "", err
	}

	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: invalid work directory name %q", ErrOutsideRoot, name)
	}

	dir := filepath.Join(s.root, name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create work directory: %w", err)
	}
	return dir, nil
}

// RemoveDir removes dir and everything below it. dir must live strictly
// inside the root; a missing directory is not an error.
func (s *LocalStorage) RemoveDir(ctx context.Context, dir string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	if !s.contains(dir) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove directory %s: %w", dir, err)
	}
	return nil
}

func (s *LocalStorage) contains(dir string) bool {
	rel, err := filepath.Rel(s.root, dir)
	if err != nil || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// UploadToS3 always fails with ErrS3NotConfigured.
func (s *LocalStorage) UploadToS3(context.Context, string, io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}
