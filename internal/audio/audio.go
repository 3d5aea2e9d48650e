// Package audio wraps the ffmpeg toolchain used around segment planning:
// probing a recording for its duration and stream metadata, and extracting
// a planned time range into its own file.
package audio

import (
	"context"
	"errors"

	"github.com/maauso/audiosplit-api/internal/segment"
)

// Static errors for audio operations.
var (
	// ErrFileNotFound is returned when the input file does not exist.
	ErrFileNotFound = errors.New("audio file not found")
	// ErrUnsupportedFormat is returned for extensions outside SupportedFormats.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrUnknownQuality is returned for encoder presets other than high, medium or standard.
	ErrUnknownQuality = errors.New("unknown quality preset")
	// ErrNoAudioStream is returned when a probed file carries no audio stream.
	ErrNoAudioStream = errors.New("no audio stream found")
	// ErrInvalidDuration is returned when the probed duration is missing or not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrToolNotFound is returned when ffmpeg or ffprobe cannot be located.
	ErrToolNotFound = errors.New("required tool not found in PATH")
)

// Info describes a probed audio file.
type Info struct {
	// DurationMs is the total duration in milliseconds.
	DurationMs int64 `json:"duration_ms"`
	// Channels is the channel count of the first audio stream.
	Channels int `json:"channels"`
	// SampleRate is the sample rate in Hz of the first audio stream.
	SampleRate int `json:"sample_rate"`
	// Codec is the codec name of the first audio stream.
	Codec string `json:"codec"`
	// FormatName is the container format reported by ffprobe.
	FormatName string `json:"format_name"`
	// SizeBytes is the file size.
	SizeBytes int64 `json:"size_bytes"`
	// BitRate is the container bitrate in bits/sec, zero when unknown.
	BitRate int64 `json:"bit_rate"`
}

// Prober reads duration and stream metadata from an audio file.
type Prober interface {
	Probe(ctx context.Context, path string) (*Info, error)
}

// EncodeOpts selects the container and quality of an extracted segment.
type EncodeOpts struct {
	// Format is the output container, one of SupportedFormats without the dot.
	Format string
	// Quality selects the encoder preset.
	Quality Quality
}

// Extractor materializes a single planned segment as a file.
type Extractor interface {
	// Extract writes the [seg.Start, seg.End) range of input to output.
	// The output file is overwritten if it already exists.
	Extract(ctx context.Context, input, output string, seg segment.Segment, opts EncodeOpts) error
}
