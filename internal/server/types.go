// Package server provides the HTTP server for the audiosplit API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// PlanRequest is the HTTP request body for computing a segment plan.
// Bound and strategy semantics are checked by the planner so that they map
// to INVALID_BOUND rather than a generic validation error.
type PlanRequest struct {
	// TotalMs is the length of the timeline in milliseconds.
	TotalMs int64 `json:"total_ms" validate:"gte=0"`
	// MinMs is the minimum segment duration in milliseconds.
	MinMs int64 `json:"min_ms"`
	// MaxMs is the maximum segment duration in milliseconds.
	MaxMs int64 `json:"max_ms"`
	// Strategy is "random", "equal" or "equal-ish"; empty uses the server default.
	Strategy string `json:"strategy"`
	// Seed makes random plans reproducible when set.
	Seed *uint64 `json:"seed,omitempty"`
}

// PlanResponse is the HTTP response for a computed plan.
type PlanResponse struct {
	// Strategy is the strategy that produced the plan.
	Strategy string `json:"strategy"`
	// TotalMs echoes the planned timeline length.
	TotalMs int64 `json:"total_ms"`
	// Count is the number of segments.
	Count int `json:"count"`
	// Segments is the ordered plan.
	Segments []SegmentResponse `json:"segments"`
}

// SegmentResponse describes one planned segment and, for jobs, its artifact.
type SegmentResponse struct {
	Index      int    `json:"index"`
	StartMs    int64  `json:"start_ms"`
	EndMs      int64  `json:"end_ms"`
	DurationMs int64  `json:"duration_ms"`
	Status     string `json:"status,omitempty"`
	FileName   string `json:"filename,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
	URL        string `json:"url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CreateJobRequest is the HTTP request body for creating a new split job.
type CreateJobRequest struct {
	// AudioBase64 is the base64-encoded source recording.
	AudioBase64 string `json:"audio_base64" validate:"required,base64"`
	// FileName is the original file name; its extension identifies the container.
	FileName string `json:"filename" validate:"required"`
	// MinDurationMin is the minimum segment duration in minutes.
	MinDurationMin float64 `json:"min_duration_min" validate:"gt=0"`
	// MaxDurationMin is the maximum segment duration in minutes.
	MaxDurationMin float64 `json:"max_duration_min" validate:"gtfield=MinDurationMin"`
	// Strategy selects how segment durations are chosen.
	Strategy string `json:"strategy" validate:"omitempty,oneof=random equal equal-ish"`
	// OutputFormat is the container for segments; empty keeps the input format.
	OutputFormat string `json:"output_format" validate:"omitempty,oneof=mp3 wav m4a flac aac ogg"`
	// Quality is the encoder preset.
	Quality string `json:"quality" validate:"omitempty,oneof=high medium standard"`
	// PushToS3 indicates whether to upload the segments and report to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobSettings echoes the resolved split parameters of a job.
type JobSettings struct {
	MinDurationMs int64  `json:"min_duration_ms"`
	MaxDurationMs int64  `json:"max_duration_ms"`
	Strategy      string `json:"strategy"`
	OutputFormat  string `json:"output_format"`
	Quality       string `json:"quality"`
	PushToS3      bool   `json:"push_to_s3"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// InputFile is the original file name.
	InputFile string `json:"input_file"`
	// DurationMs is the probed length of the recording, once known.
	DurationMs int64 `json:"duration_ms,omitempty"`
	// Settings are the resolved split parameters.
	Settings JobSettings `json:"settings"`
	// Segments are the planned segments and their extraction state.
	Segments []SegmentResponse `json:"segments"`
	// CompletedSegments counts segments already extracted.
	CompletedSegments int `json:"completed_segments"`
	// ReportURL is the S3 URL of the processing report (if push_to_s3=true and completed).
	ReportURL string `json:"report_url,omitempty"`
	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the job reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Count int           `json:"count"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
