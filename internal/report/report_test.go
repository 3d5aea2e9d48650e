package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Summary(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	files := []File{
		{Index: 1, Filename: "讲座_part_01.mp3", StartTime: 0, EndTime: 600, DurationMin: 10, FileSizeMB: 1.25},
		{Index: 2, Filename: "讲座_part_02.mp3", StartTime: 600, EndTime: 1290, DurationMin: 11.5, FileSizeMB: 1.5},
	}

	r := New("/in/讲座.mp3", at, Settings{Strategy: "random"}, InputInfo{DurationMs: 1_290_000}, files)

	assert.Equal(t, 2, r.Summary.TotalSegments)
	assert.InDelta(t, 2.75, r.Summary.TotalOutputSizeMB, 1e-9)
	assert.InDelta(t, 21.5, r.Summary.TotalDurationMin, 1e-9)
	assert.Equal(t, time.UTC, r.ProcessingTime.Location())
}

func TestNew_EmptyFiles(t *testing.T) {
	r := New("in.wav", time.Now(), Settings{}, InputInfo{}, nil)

	var buf bytes.Buffer
	require.NoError(t, r.Encode(&buf))
	assert.Contains(t, buf.String(), `"output_files": []`)
}

func TestEncode_KeepsNonASCII(t *testing.T) {
	r := New("/in/讲座.mp3", time.Now(), Settings{}, InputInfo{}, []File{{Index: 1, Filename: "讲座_part_01.mp3"}})

	var buf bytes.Buffer
	require.NoError(t, r.Encode(&buf))
	assert.Contains(t, buf.String(), "讲座_part_01.mp3")
	assert.Contains(t, buf.String(), "\n  \"settings\"")

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, r.OutputFiles, decoded.OutputFiles)
	assert.Equal(t, r.InputFile, decoded.InputFile)
}

func TestConversions(t *testing.T) {
	assert.Equal(t, 1.5, Minutes(90_000))
	assert.Equal(t, 3723.456, Seconds(3_723_456))
	assert.Equal(t, 2.0, MegaBytes(2*1024*1024))
}
