// Package job provides the Job aggregate for audio split jobs.
// It includes the Job entity with its state machine, the per-segment
// progress records, and repository interfaces for persistence.
package job

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/maauso/audiosplit-api/internal/audio"
	"github.com/maauso/audiosplit-api/internal/job/id"
	"github.com/maauso/audiosplit-api/internal/segment"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting to be processed.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the job is being probed, planned or extracted.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates every segment was extracted and the report written.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was manually cancelled.
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut indicates the job did not finish before its deadline.
	StatusTimedOut Status = "TIMED_OUT"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrUnknownStatus is returned by ParseStatus for names that are not a Status.
var ErrUnknownStatus = errors.New("unknown job status")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled, StatusTimedOut},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
	StatusTimedOut:  {},
}

// ParseStatus resolves a status name case-insensitively, e.g. "running".
func ParseStatus(name string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := validTransitions[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, name)
	}
	return st, nil
}

func canTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// PartStatus represents the extraction status of a single planned segment.
type PartStatus string

const (
	// PartStatusPending indicates the segment is waiting to be extracted.
	PartStatusPending PartStatus = "PENDING"
	// PartStatusProcessing indicates the segment is being extracted.
	PartStatusProcessing PartStatus = "PROCESSING"
	// PartStatusCompleted indicates the segment file was written.
	PartStatusCompleted PartStatus = "COMPLETED"
	// PartStatusFailed indicates extraction of the segment failed.
	PartStatusFailed PartStatus = "FAILED"
)

// Part is one planned segment of a job and the artifact extracted for it.
type Part struct {
	// Index is the 1-based position of the segment in the plan.
	Index int
	// Segment is the planned [start, end) range in milliseconds.
	Segment segment.Segment
	// Status is the current extraction status.
	Status PartStatus
	// FileName is the artifact name, e.g. "talk_part_01.mp3".
	FileName string
	// OutputPath is the local path of the extracted file.
	OutputPath string
	// SizeBytes is the size of the extracted file.
	SizeBytes int64
	// URL is the S3 URL if the job publishes to S3.
	URL string
	// Error contains any error message if extraction failed.
	Error string
}

// Settings are the caller supplied split parameters.
type Settings struct {
	// MinDurationMs is the minimum segment duration.
	MinDurationMs int64
	// MaxDurationMs is the maximum segment duration.
	MaxDurationMs int64
	// Strategy selects how segment durations are chosen.
	Strategy segment.Strategy
	// OutputFormat is the container of extracted segments.
	OutputFormat string
	// Quality is the encoder preset.
	Quality audio.Quality
	// PushToS3 indicates whether to upload artifacts and report to S3.
	PushToS3 bool
}

// Bound returns the segment bound described by s.
func (s Settings) Bound() segment.Bound {
	return segment.Bound{Min: s.MinDurationMs, Max: s.MaxDurationMs}
}

// Job represents an audio split job aggregate.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Settings are the split parameters.
	Settings Settings
	// InputName is the original file name supplied by the caller.
	InputName string
	// InputPath is the local path to the source recording.
	InputPath string
	// Info is the probed metadata of the source recording.
	Info *audio.Info
	// Parts contains the planned segments and their extraction state.
	Parts []Part
	// Progress is the percentage of completion (0-100).
	Progress int
	// Error contains any error message if the job failed.
	Error string
	// OutputDir is the directory holding the extracted segments.
	OutputDir string
	// ReportPath is the local path of the processing report.
	ReportPath string
	// ReportURL is the S3 URL of the processing report if pushed.
	ReportURL string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		Parts:     make([]Part, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		j.CompletedAt = j.UpdatedAt
	}
	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED and sets progress to 100.
func (j *Job) Complete() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusCompleted); err != nil {
		return err
	}
	j.Progress = 100
	return nil
}

// Fail transitions the job to FAILED state with an error message.
// The message is only recorded if the transition is allowed.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// Timeout transitions the job to TIMED_OUT state.
func (j *Job) Timeout() error {
	return j.TransitionTo(StatusTimedOut)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetInfo records the probed metadata of the input.
func (j *Job) SetInfo(info *audio.Info) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Info = info
	j.UpdatedAt = time.Now()
}

// SetPlan replaces the parts with one pending part per planned segment.
func (j *Job) SetPlan(plan segment.Plan, names []string, outputDir string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	parts := make([]Part, len(plan))
	for i, seg := range plan {
		parts[i] = Part{
			Index:   i + 1,
			Segment: seg,
			Status:  PartStatusPending,
		}
		if i < len(names) {
			parts[i].FileName = names[i]
		}
	}
	j.Parts = parts
	j.OutputDir = outputDir
	j.UpdatedAt = time.Now()
}

// UpdatePart updates a part by its 0-based position and recomputes progress
// from the number of completed parts.
func (j *Job) UpdatePart(pos int, part Part) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if pos < 0 || pos >= len(j.Parts) {
		return
	}
	j.Parts[pos] = part

	// Extraction accounts for 90%; the report and publishing finish the job.
	j.Progress = j.completedLocked() * 90 / len(j.Parts)
	j.UpdatedAt = time.Now()
}

// CompletedParts returns how many segments have been extracted.
func (j *Job) CompletedParts() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.completedLocked()
}

func (j *Job) completedLocked() int {
	done := 0
	for _, p := range j.Parts {
		if p.Status == PartStatusCompleted {
			done++
		}
	}
	return done
}

// PartAt returns a copy of the part at pos.
func (j *Job) PartAt(pos int) Part {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Parts[pos]
}

// UpdateProgress sets the progress percentage (0-100).
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress = max(0, min(progress, 100))
	j.UpdatedAt = time.Now()
}

// SetReport records where the processing report was written.
func (j *Job) SetReport(path, url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ReportPath = path
	j.ReportURL = url
	j.UpdatedAt = time.Now()
}

// ClearOutput forgets all local artifact paths.
// This is used after the job's working directory has been removed.
func (j *Job) ClearOutput() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.Parts {
		j.Parts[i].OutputPath = ""
	}
	j.InputPath = ""
	j.OutputDir = ""
	j.ReportPath = ""
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(validTransitions[j.Status]) == 0
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	parts := slices.Clone(j.Parts)
	if parts == nil {
		parts = []Part{}
	}

	var info *audio.Info
	if j.Info != nil {
		cp := *j.Info
		info = &cp
	}

	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		Settings:    j.Settings,
		InputName:   j.InputName,
		InputPath:   j.InputPath,
		Info:        info,
		Parts:       parts,
		Progress:    j.Progress,
		Error:       j.Error,
		OutputDir:   j.OutputDir,
		ReportPath:  j.ReportPath,
		ReportURL:   j.ReportURL,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
