package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// SupportedFormats lists the accepted input and output containers.
var SupportedFormats = []string{"mp3", "wav", "m4a", "flac", "aac", "ogg"}

// Quality selects an encoder preset.
type Quality string

const (
	// QualityHigh uses 320k for mp3 and 16-bit PCM for wav.
	QualityHigh Quality = "high"
	// QualityMedium uses 192k for mp3.
	QualityMedium Quality = "medium"
	// QualityStandard leaves every setting to the encoder defaults.
	QualityStandard Quality = "standard"
)

// ParseQuality converts a user supplied name into a Quality.
// An empty name selects QualityHigh.
func ParseQuality(name string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "high":
		return QualityHigh, nil
	case "medium":
		return QualityMedium, nil
	case "standard":
		return QualityStandard, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownQuality, name)
	}
}

// IsSupportedFormat reports whether format (with or without a leading dot)
// is one of SupportedFormats.
func IsSupportedFormat(format string) bool {
	return slices.Contains(SupportedFormats, normalizeFormat(format))
}

// FormatFromPath returns the lower-cased extension of path without the dot.
func FormatFromPath(path string) string {
	return normalizeFormat(filepath.Ext(path))
}

func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
}

// ValidateInput checks that path exists and has a supported extension.
func ValidateInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}
	if !IsSupportedFormat(FormatFromPath(path)) {
		return fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, filepath.Ext(path), strings.Join(SupportedFormats, ", "))
	}
	return nil
}

// EncoderArgs returns the ffmpeg output arguments for the given container
// and quality preset.
func EncoderArgs(format string, quality Quality) []string {
	format = normalizeFormat(format)

	var args []string
	switch format {
	case "mp3":
		args = append(args, "-c:a", "libmp3lame")
		switch quality {
		case QualityHigh:
			args = append(args, "-b:a", "320k")
		case QualityMedium:
			args = append(args, "-b:a", "192k")
		}
	case "wav":
		args = append(args, "-c:a", "pcm_s16le")
	case "m4a":
		args = append(args, "-c:a", "aac", "-f", "ipod")
	case "aac":
		args = append(args, "-c:a", "aac", "-f", "adts")
	case "flac":
		args = append(args, "-c:a", "flac")
	case "ogg":
		args = append(args, "-c:a", "libvorbis")
	}
	return args
}

// SegmentFileName returns the artifact name for the 1-based index out of
// count segments, e.g. "lecture_part_03.mp3". The index is zero-padded to
// at least two digits, widened so every name in the set sorts lexically.
func SegmentFileName(stem string, index, count int, format string) string {
	width := max(2, len(strconv.Itoa(count)))
	return fmt.Sprintf("%s_part_%0*d.%s", stem, width, index, normalizeFormat(format))
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
