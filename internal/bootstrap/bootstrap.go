// Package bootstrap provides dependency initialization for the audiosplit
// server and CLI.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/audiosplit-api/internal/audio"
	"github.com/maauso/audiosplit-api/internal/config"
	"github.com/maauso/audiosplit-api/internal/job"
	"github.com/maauso/audiosplit-api/internal/storage"
)

// Dependencies holds all initialized dependencies.
type Dependencies struct {
	SplitService *job.SplitService
	Storage      storage.Storage
}

// NewDependencies creates and initializes all dependencies for the application.
// Extra options are applied after the ones derived from cfg.
func NewDependencies(cfg *config.Config, logger *slog.Logger, opts ...job.Option) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize ffprobe/ffmpeg collaborators
	prober := audio.NewFFprobeProber(cfg.FFprobePath)
	extractor := audio.NewFFmpegExtractor(cfg.FFmpegPath)

	// Initialize job repository
	repo := job.NewMemoryRepository()

	svcOpts := append([]job.Option{job.WithMaxConcurrentSegments(cfg.MaxConcurrentSegments)}, opts...)
	svc := job.NewSplitService(
		repo,
		prober,
		extractor,
		store,
		logger,
		svcOpts...,
	)

	return &Dependencies{
		SplitService: svc,
		Storage:      store,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
			slog.String("prefix", cfg.S3Prefix),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
