package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/maauso/audiosplit-api/internal/segment"
)

// FFmpegExtractor implements Extractor using the ffmpeg CLI.
type FFmpegExtractor struct {
	ffmpegPath string
}

// NewFFmpegExtractor creates a new FFmpegExtractor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegExtractor(ffmpegPath string) *FFmpegExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegExtractor{ffmpegPath: ffmpegPath}
}

// Extract re-encodes the [seg.Start, seg.End) range of input into output.
func (e *FFmpegExtractor) Extract(ctx context.Context, input, output string, seg segment.Segment, opts EncodeOpts) error {
	if seg.Duration() <= 0 {
		return fmt.Errorf("%w: segment %s", ErrInvalidDuration, seg)
	}
	if !IsSupportedFormat(opts.Format) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	return e.runFFmpeg(ctx, extractArgs(input, output, seg, opts))
}

// extractArgs builds the ffmpeg invocation for one segment. Seeking happens
// after -i so the cut is sample accurate rather than keyframe aligned.
func extractArgs(input, output string, seg segment.Segment, opts EncodeOpts) []string {
	args := []string{
		"-y",           // Overwrite output
		"-hide_banner", // Keep stderr short for error reports
		"-i", input,
		"-ss", formatMillis(seg.Start),
		"-t", formatMillis(seg.Duration()),
		"-vn", // Drop cover art and any video stream
	}
	args = append(args, EncoderArgs(opts.Format, opts.Quality)...)
	return append(args, output)
}

// formatMillis renders a millisecond offset as seconds for ffmpeg.
func formatMillis(ms int64) string {
	return fmt.Sprintf("%d.%03d", ms/1000, ms%1000)
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (e *FFmpegExtractor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Verify interface implementation at compile time.
var _ Extractor = (*FFmpegExtractor)(nil)
