// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/audiosplit-api/internal/audio"
	"github.com/maauso/audiosplit-api/internal/segment"
)

// Static errors for configuration validation.
var (
	// ErrInvalidConcurrency is returned when MAX_CONCURRENT_SEGMENTS is not positive.
	ErrInvalidConcurrency = errors.New("config: MAX_CONCURRENT_SEGMENTS must be positive")
	// ErrInvalidStrategy is returned when DEFAULT_STRATEGY names an unknown strategy.
	ErrInvalidStrategy = errors.New("config: DEFAULT_STRATEGY is not a known strategy")
	// ErrInvalidQuality is returned when DEFAULT_QUALITY names an unknown preset.
	ErrInvalidQuality = errors.New("config: DEFAULT_QUALITY is not a known quality preset")
	// ErrInvalidUploadLimit is returned when MAX_UPLOAD_MB is negative.
	ErrInvalidUploadLimit = errors.New("config: MAX_UPLOAD_MB must not be negative")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port            int           `env:"PORT, default=8080" json:"port"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS, default=*" json:"allowed_origins"`
	MaxUploadMB     int64         `env:"MAX_UPLOAD_MB, default=512" json:"max_upload_mb"` // 0 disables the cap
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=30s" json:"shutdown_timeout"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/audiosplit" json:"temp_dir"`

	// Processing settings
	MaxConcurrentSegments int    `env:"MAX_CONCURRENT_SEGMENTS, default=3" json:"max_concurrent_segments"`
	DefaultStrategy       string `env:"DEFAULT_STRATEGY, default=random" json:"default_strategy"`
	DefaultQuality        string `env:"DEFAULT_QUALITY, default=high" json:"default_quality"`
	FFmpegPath            string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath           string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3Prefix           string `env:"S3_PREFIX" json:"s3_prefix,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	return load(envconfig.OsLookuper())
}

func load(lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the processing settings are usable.
func (c *Config) Validate() error {
	if c.MaxConcurrentSegments <= 0 {
		return ErrInvalidConcurrency
	}
	if c.MaxUploadMB < 0 {
		return ErrInvalidUploadLimit
	}
	if _, err := segment.ParseStrategy(c.DefaultStrategy); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, c.DefaultStrategy)
	}
	if _, err := audio.ParseQuality(c.DefaultQuality); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidQuality, err)
	}
	return nil
}

// MaxBodyBytes converts MaxUploadMB to the request body cap in bytes.
func (c *Config) MaxBodyBytes() int64 {
	return c.MaxUploadMB << 20
}

// Strategy returns the parsed default strategy, falling back to random.
func (c *Config) Strategy() segment.Strategy {
	s, err := segment.ParseStrategy(c.DefaultStrategy)
	if err != nil {
		return segment.StrategyRandom
	}
	return s
}

// Quality returns the parsed default quality, falling back to high.
func (c *Config) Quality() audio.Quality {
	q, err := audio.ParseQuality(c.DefaultQuality)
	if err != nil {
		return audio.QualityHigh
	}
	return q
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is NewLogger with an explicit destination. The CLI logs to
// stderr so stdout stays reserved for tables and JSON.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, AllowedOrigins: %v, MaxUploadMB: %d, TempDir: %s, MaxConcurrentSegments: %d, DefaultStrategy: %s, DefaultQuality: %s, FFmpegPath: %s, FFprobePath: %s, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.AllowedOrigins,
		c.MaxUploadMB,
		c.TempDir,
		c.MaxConcurrentSegments,
		c.DefaultStrategy,
		c.DefaultQuality,
		c.FFmpegPath,
		c.FFprobePath,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
