package bootstrap

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/audiosplit-api/internal/config"
	"github.com/maauso/audiosplit-api/internal/storage"
)

func TestNewDependencies_LocalStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "work")
	cfg := &config.Config{TempDir: dir, MaxConcurrentSegments: 2}

	deps, err := NewDependencies(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NotNil(t, deps.SplitService)

	local, ok := deps.Storage.(*storage.LocalStorage)
	require.True(t, ok)
	assert.Equal(t, dir, local.TempDir())
	assert.DirExists(t, dir)
}

func TestNewDependencies_S3Storage(t *testing.T) {
	cfg := &config.Config{
		TempDir:               t.TempDir(),
		MaxConcurrentSegments: 3,
		S3Bucket:              "segments",
		S3Region:              "us-east-1",
		S3Endpoint:            "http://localhost:9000",
		AWSAccessKeyID:        "test",
		AWSSecretAccessKey:    "test",
	}

	deps, err := NewDependencies(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, ok := deps.Storage.(*storage.S3Storage)
	assert.True(t, ok)
}
