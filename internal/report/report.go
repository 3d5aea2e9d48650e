// Package report builds the processing report written next to the
// extracted segments of a split job.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"
)

// FileName is the name of the report inside a job's output directory.
const FileName = "processing_report.json"

// Report summarizes one split run.
type Report struct {
	InputFile      string    `json:"input_file"`
	ProcessingTime time.Time `json:"processing_time"`
	Settings       Settings  `json:"settings"`
	InputInfo      InputInfo `json:"input_info"`
	OutputFiles    []File    `json:"output_files"`
	Summary        Summary   `json:"summary"`
}

// Settings records the parameters the plan was computed with.
type Settings struct {
	MinDurationMin float64 `json:"min_duration_min"`
	MaxDurationMin float64 `json:"max_duration_min"`
	Strategy       string  `json:"strategy"`
	OutputFormat   string  `json:"output_format"`
	Quality        string  `json:"quality"`
}

// InputInfo describes the source recording.
type InputInfo struct {
	DurationMs  int64   `json:"duration_ms"`
	DurationMin float64 `json:"duration_min"`
	Channels    int     `json:"channels"`
	FrameRate   int     `json:"frame_rate"`
	Codec       string  `json:"codec,omitempty"`
	FileSizeMB  float64 `json:"file_size_mb"`
}

// File describes one extracted segment. Times are in seconds.
type File struct {
	Index       int     `json:"index"`
	Filename    string  `json:"filename"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	DurationMin float64 `json:"duration_min"`
	FileSizeMB  float64 `json:"file_size_mb"`
	URL         string  `json:"url,omitempty"`
}

// Summary aggregates the output files.
type Summary struct {
	TotalSegments     int     `json:"total_segments"`
	TotalOutputSizeMB float64 `json:"total_output_size_mb"`
	TotalDurationMin  float64 `json:"total_duration_min"`
}

// New assembles a report and computes its summary from files.
func New(input string, at time.Time, settings Settings, info InputInfo, files []File) *Report {
	r := &Report{
		InputFile:      input,
		ProcessingTime: at.UTC(),
		Settings:       settings,
		InputInfo:      info,
		OutputFiles:    files,
	}
	if r.OutputFiles == nil {
		r.OutputFiles = []File{}
	}

	r.Summary.TotalSegments = len(files)
	for _, f := range files {
		r.Summary.TotalOutputSizeMB += f.FileSizeMB
		r.Summary.TotalDurationMin += f.DurationMin
	}
	r.Summary.TotalOutputSizeMB = round(r.Summary.TotalOutputSizeMB, 3)
	r.Summary.TotalDurationMin = round(r.Summary.TotalDurationMin, 3)
	return r
}

// Encode writes r as indented JSON. Non-ASCII file names are kept as is.
func (r *Report) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// Decode reads a report previously written by Encode.
func Decode(rd io.Reader) (*Report, error) {
	var r Report
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// Minutes converts milliseconds to minutes rounded to three decimals.
func Minutes(ms int64) float64 {
	return round(float64(ms)/60_000, 3)
}

// Seconds converts milliseconds to seconds rounded to three decimals.
func Seconds(ms int64) float64 {
	return round(float64(ms)/1000, 3)
}

// MegaBytes converts a byte count to MiB rounded to three decimals.
func MegaBytes(n int64) float64 {
	return round(float64(n)/(1024*1024), 3)
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
