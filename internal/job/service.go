package job

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/maauso/audiosplit-api/internal/audio"
	"github.com/maauso/audiosplit-api/internal/report"
	"github.com/maauso/audiosplit-api/internal/segment"
	"github.com/maauso/audiosplit-api/internal/storage"
)

// Static errors for the split service.
var (
	// ErrInvalidInput is returned when the split request is malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrJobNotTerminal is returned when deleting a job that is still running.
	ErrJobNotTerminal = errors.New("job is still in progress")
	// ErrReportNotReady is returned when a job has no processing report yet.
	ErrReportNotReady = errors.New("report not available")
)

// SplitInput contains the input parameters for a split job.
// Exactly one of AudioBase64 and InputPath must be set.
type SplitInput struct {
	// AudioBase64 is the base64-encoded source recording.
	AudioBase64 string
	// InputPath is a local source recording, used by the CLI.
	InputPath string
	// FileName is the original file name; it names the artifacts and, for
	// uploads, identifies the input container. Defaults to the base of InputPath.
	FileName string
	// MinDurationMs is the minimum segment duration.
	MinDurationMs int64
	// MaxDurationMs is the maximum segment duration.
	MaxDurationMs int64
	// Strategy selects how segment durations are chosen.
	Strategy segment.Strategy
	// OutputFormat is the container for segments; empty keeps the input format.
	OutputFormat string
	// Quality is the encoder preset; empty selects high.
	Quality audio.Quality
	// PushToS3 indicates whether to upload segments and report to S3.
	PushToS3 bool
	// OutputDir overrides the per-job working directory.
	OutputDir string
}

// SplitOutput contains the result of a split job.
type SplitOutput struct {
	// JobID is the unique identifier for the job.
	JobID string
	// Status is the final job status.
	Status Status
	// Parts are the extracted segments.
	Parts []Part
	// ReportPath is the local path to the processing report.
	ReportPath string
	// ReportURL is the S3 URL of the processing report (if pushed to S3).
	ReportURL string
	// Error contains any error message if processing failed.
	Error string
}

// PlannerFactory returns a Planner for a single job. Planners own their
// random source, so each job gets its own.
type PlannerFactory func() *segment.Planner

// SplitService orchestrates the split workflow: probe the recording, plan
// the segments, extract them concurrently, write the processing report and
// optionally publish everything to S3.
type SplitService struct {
	repo      Repository
	prober    audio.Prober
	extractor audio.Extractor
	store     storage.Storage
	logger    *slog.Logger

	// maxConcurrentSegments limits parallel ffmpeg extractions.
	maxConcurrentSegments int
	newPlanner            PlannerFactory
	now                   func() time.Time
}

// Option configures a SplitService.
type Option func(*SplitService)

// WithMaxConcurrentSegments sets the number of segments extracted in parallel.
// Non-positive values are ignored.
func WithMaxConcurrentSegments(n int) Option {
	return func(s *SplitService) {
		if n > 0 {
			s.maxConcurrentSegments = n
		}
	}
}

// WithPlannerFactory overrides how planners are created, e.g. to seed them.
func WithPlannerFactory(f PlannerFactory) Option {
	return func(s *SplitService) {
		if f != nil {
			s.newPlanner = f
		}
	}
}

// WithClock overrides the time source used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SplitService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSplitService creates a new SplitService.
func NewSplitService(
	repo Repository,
	prober audio.Prober,
	extractor audio.Extractor,
	store storage.Storage,
	logger *slog.Logger,
	opts ...Option,
) *SplitService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SplitService{
		repo:                  repo,
		prober:                prober,
		extractor:             extractor,
		store:                 store,
		logger:                logger,
		maxConcurrentSegments: 3,
		newPlanner:            func() *segment.Planner { return segment.NewPlanner(nil) },
		now:                   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveSettings validates input and resolves its defaults.
func ResolveSettings(input SplitInput) (Settings, error) {
	var zero Settings

	if (input.AudioBase64 == "") == (input.InputPath == "") {
		return zero, fmt.Errorf("%w: exactly one of audio data or input path is required", ErrInvalidInput)
	}

	name := input.FileName
	if name == "" {
		name = filepath.Base(input.InputPath)
	}
	inFormat := audio.FormatFromPath(name)
	if !audio.IsSupportedFormat(inFormat) {
		return zero, fmt.Errorf("%w: %w: %q", ErrInvalidInput, audio.ErrUnsupportedFormat, name)
	}

	b := segment.Bound{Min: input.MinDurationMs, Max: input.MaxDurationMs}
	if err := b.Validate(); err != nil {
		return zero, err
	}

	strategy := input.Strategy
	if strategy == "" {
		strategy = segment.StrategyRandom
	}
	if !strategy.IsValid() {
		return zero, fmt.Errorf("%w: unknown strategy %q", segment.ErrInvalidBound, strategy)
	}

	format := strings.TrimPrefix(strings.ToLower(input.OutputFormat), ".")
	if format == "" {
		format = inFormat
	}
	if !audio.IsSupportedFormat(format) {
		return zero, fmt.Errorf("%w: %w: output format %q", ErrInvalidInput, audio.ErrUnsupportedFormat, input.OutputFormat)
	}

	quality, err := audio.ParseQuality(string(input.Quality))
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	return Settings{
		MinDurationMs: b.Min,
		MaxDurationMs: b.Max,
		Strategy:      strategy,
		OutputFormat:  format,
		Quality:       quality,
		PushToS3:      input.PushToS3,
	}, nil
}

// CreateJob validates input, creates a new job and persists it.
// The job is created in IN_QUEUE status, ready for processing.
func (s *SplitService) CreateJob(ctx context.Context, input SplitInput) (*Job, error) {
	settings, err := ResolveSettings(input)
	if err != nil {
		return nil, err
	}

	job := New()
	job.Settings = settings
	job.InputName = input.FileName
	if job.InputName == "" {
		job.InputName = filepath.Base(input.InputPath)
	}

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("input", job.InputName),
		slog.Int64("min_duration_ms", settings.MinDurationMs),
		slog.Int64("max_duration_ms", settings.MaxDurationMs),
		slog.String("strategy", string(settings.Strategy)),
		slog.Bool("push_to_s3", settings.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return job, nil
}

// Process creates a job and runs it to completion synchronously.
func (s *SplitService) Process(ctx context.Context, input SplitInput) (*SplitOutput, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.ProcessExistingJob(ctx, job.ID, input)
}

// ProcessExistingJob runs the split workflow for a job created by CreateJob.
// On failure the job is marked FAILED (or CANCELLED/TIMED_OUT when ctx ends)
// and no partial segment files are left behind.
func (s *SplitService) ProcessExistingJob(ctx context.Context, jobID string, input SplitInput) (*SplitOutput, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := job.Start(); err != nil {
		return nil, fmt.Errorf("start job %s: %w", jobID, err)
	}
	s.save(ctx, job)

	logger := s.logger.With(slog.String("job_id", job.ID))
	logger.Info("processing job")

	if runErr := s.run(ctx, job, input, logger); runErr != nil {
		s.finishWithError(ctx, job, runErr, logger)
		return s.output(job), runErr
	}

	if err := job.Complete(); err != nil {
		return s.output(job), fmt.Errorf("complete job %s: %w", jobID, err)
	}
	s.save(ctx, job)

	logger.Info("job completed",
		slog.Int("segments", len(job.Parts)),
		slog.String("output_dir", job.OutputDir),
	)
	return s.output(job), nil
}

// Split processes a local file synchronously. It is the CLI entry point.
func (s *SplitService) Split(ctx context.Context, input SplitInput) (*SplitOutput, error) {
	if input.InputPath == "" {
		return nil, fmt.Errorf("%w: input path is required", ErrInvalidInput)
	}
	if err := audio.ValidateInput(input.InputPath); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return s.Process(ctx, input)
}

func (s *SplitService) run(ctx context.Context, job *Job, input SplitInput, logger *slog.Logger) error {
	settings := job.Settings

	inputPath, cleanup, err := s.materializeInput(ctx, job.ID, input)
	if err != nil {
		return err
	}
	defer cleanup()

	info, err := s.prober.Probe(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("probe input: %w", err)
	}
	job.SetInfo(info)
	logger.Info("probed input",
		slog.Int64("duration_ms", info.DurationMs),
		slog.Int("channels", info.Channels),
		slog.Int("sample_rate", info.SampleRate),
	)

	plan, err := s.newPlanner().Plan(info.DurationMs, settings.Bound(), settings.Strategy)
	if err != nil {
		return fmt.Errorf("plan segments: %w", err)
	}
	if err := plan.Check(info.DurationMs, settings.Bound()); err != nil {
		return fmt.Errorf("plan segments: %w", err)
	}

	outDir := input.OutputDir
	if outDir == "" {
		outDir, err = s.store.WorkDir(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("create work directory: %w", err)
		}
	} else if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	stem := audio.Stem(job.InputName)
	names := make([]string, len(plan))
	for i := range plan {
		names[i] = audio.SegmentFileName(stem, i+1, len(plan), settings.OutputFormat)
	}
	job.SetPlan(plan, names, outDir)
	s.save(ctx, job)
	logger.Info("planned segments", slog.Int("segments", len(plan)), slog.String("strategy", string(settings.Strategy)))

	if err := s.extractAll(ctx, job, inputPath, logger); err != nil {
		return err
	}

	if settings.PushToS3 {
		if err := s.publishParts(ctx, job); err != nil {
			return err
		}
	}

	return s.writeReport(ctx, job, input)
}

// materializeInput returns a local path for the recording. Uploaded data is
// written to a temp file that the returned cleanup removes.
func (s *SplitService) materializeInput(ctx context.Context, jobID string, input SplitInput) (string, func(), error) {
	if input.InputPath != "" {
		return input.InputPath, func() {}, nil
	}

	decoder := base64.NewDecoder(base64.StdEncoding, strings.NewReader(input.AudioBase64))
	path, err := s.store.SaveTemp(ctx, jobID+"_input"+strings.ToLower(filepath.Ext(input.FileName)), decoder)
	if err != nil {
		return "", nil, fmt.Errorf("save input audio: %w", err)
	}
	cleanup := func() {
		if err := s.store.CleanupTemp(context.WithoutCancel(ctx), []string{path}); err != nil {
			s.logger.Warn("failed to remove input temp file",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
	}
	return path, cleanup, nil
}

// extractAll extracts every part with at most maxConcurrentSegments ffmpeg
// processes. The first failure cancels the remaining extractions and every
// file written so far is removed.
func (s *SplitService) extractAll(ctx context.Context, job *Job, inputPath string, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := audio.EncodeOpts{Format: job.Settings.OutputFormat, Quality: job.Settings.Quality}
	sem := make(chan struct{}, s.maxConcurrentSegments)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for pos := range len(job.Clone().Parts) {
		wg.Add(1)
		go func(pos int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			part := job.PartAt(pos)
			part.Status = PartStatusProcessing
			part.OutputPath = filepath.Join(job.OutputDir, part.FileName)
			job.UpdatePart(pos, part)

			err := s.extractor.Extract(ctx, inputPath, part.OutputPath, part.Segment, opts)
			if err == nil {
				var fi os.FileInfo
				if fi, err = os.Stat(part.OutputPath); err == nil {
					part.SizeBytes = fi.Size()
				}
			}
			if err != nil {
				part.Status = PartStatusFailed
				part.Error = err.Error()
				job.UpdatePart(pos, part)
				fail(fmt.Errorf("extract segment %d %s: %w", part.Index, part.Segment, err))
				return
			}

			part.Status = PartStatusCompleted
			job.UpdatePart(pos, part)
			s.save(ctx, job)
			logger.Debug("extracted segment",
				slog.Int("index", part.Index),
				slog.Int64("start_ms", part.Segment.Start),
				slog.Int64("end_ms", part.Segment.End),
			)
		}(pos)
	}
	wg.Wait()

	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}
	if firstErr != nil {
		s.removeParts(job)
		return firstErr
	}
	return nil
}

func (s *SplitService) removeParts(job *Job) {
	var paths []string
	for _, p := range job.Clone().Parts {
		if p.OutputPath != "" {
			paths = append(paths, p.OutputPath)
		}
	}
	if err := s.store.CleanupTemp(context.Background(), paths); err != nil {
		s.logger.Warn("failed to remove partial segments",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SplitService) publishParts(ctx context.Context, job *Job) error {
	for pos, part := range job.Clone().Parts {
		url, err := s.upload(ctx, job.ID+"/"+part.FileName, part.OutputPath)
		if err != nil {
			return fmt.Errorf("publish segment %d: %w", part.Index, err)
		}
		part.URL = url
		job.UpdatePart(pos, part)
	}
	return nil
}

func (s *SplitService) upload(ctx context.Context, key, path string) (string, error) {
	rc, err := s.store.LoadTemp(ctx, path)
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()
	return s.store.UploadToS3(ctx, key, rc)
}

func (s *SplitService) writeReport(ctx context.Context, job *Job, input SplitInput) error {
	snap := job.Clone()
	settings := snap.Settings

	files := make([]report.File, len(snap.Parts))
	for i, p := range snap.Parts {
		files[i] = report.File{
			Index:       p.Index,
			Filename:    p.FileName,
			StartTime:   report.Seconds(p.Segment.Start),
			EndTime:     report.Seconds(p.Segment.End),
			DurationMin: report.Minutes(p.Segment.Duration()),
			FileSizeMB:  report.MegaBytes(p.SizeBytes),
			URL:         p.URL,
		}
	}

	inputFile := input.InputPath
	if inputFile == "" {
		inputFile = snap.InputName
	}
	rep := report.New(inputFile, s.now(),
		report.Settings{
			MinDurationMin: report.Minutes(settings.MinDurationMs),
			MaxDurationMin: report.Minutes(settings.MaxDurationMs),
			Strategy:       string(settings.Strategy),
			OutputFormat:   settings.OutputFormat,
			Quality:        string(settings.Quality),
		},
		report.InputInfo{
			DurationMs:  snap.Info.DurationMs,
			DurationMin: report.Minutes(snap.Info.DurationMs),
			Channels:    snap.Info.Channels,
			FrameRate:   snap.Info.SampleRate,
			Codec:       snap.Info.Codec,
			FileSizeMB:  report.MegaBytes(snap.Info.SizeBytes),
		},
		files,
	)

	path := filepath.Join(snap.OutputDir, report.FileName)
	f, err := os.Create(path) // #nosec G304 - path is built from the job's own output directory
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := rep.Encode(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}

	var url string
	if settings.PushToS3 {
		if url, err = s.upload(ctx, job.ID+"/"+report.FileName, path); err != nil {
			return fmt.Errorf("publish report: %w", err)
		}
	}
	job.UpdateProgress(100)
	job.SetReport(path, url)
	return nil
}

func (s *SplitService) finishWithError(ctx context.Context, job *Job, runErr error, logger *slog.Logger) {
	var transErr error
	switch {
	case errors.Is(runErr, context.DeadlineExceeded):
		transErr = job.Timeout()
	case errors.Is(runErr, context.Canceled):
		transErr = job.Cancel()
	default:
		transErr = job.Fail(runErr.Error())
	}
	if transErr != nil {
		logger.Warn("failed to record job failure", slog.String("error", transErr.Error()))
	}
	s.save(context.WithoutCancel(ctx), job)

	logger.Error("job failed",
		slog.String("status", string(job.GetStatus())),
		slog.String("error", runErr.Error()),
	)
}

// save persists the job, logging instead of failing the workflow.
func (s *SplitService) save(ctx context.Context, job *Job) {
	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SplitService) output(job *Job) *SplitOutput {
	snap := job.Clone()
	return &SplitOutput{
		JobID:      snap.ID,
		Status:     snap.Status,
		Parts:      snap.Parts,
		ReportPath: snap.ReportPath,
		ReportURL:  snap.ReportURL,
		Error:      snap.Error,
	}
}

// GetJob retrieves a job by ID.
func (s *SplitService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all jobs, newest first.
func (s *SplitService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// GetReport loads the processing report of a completed job.
func (s *SplitService) GetReport(ctx context.Context, id string) (*report.Report, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.ReportPath == "" {
		return nil, ErrReportNotReady
	}

	rc, err := s.store.LoadTemp(ctx, job.ReportPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReportNotReady, err)
	}
	defer func() { _ = rc.Close() }()
	return report.Decode(rc)
}

// DeleteJob removes a finished job and its working directory. Jobs that are
// still queued or running cannot be deleted.
func (s *SplitService) DeleteJob(ctx context.Context, id string) error {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !job.IsTerminal() {
		return ErrJobNotTerminal
	}

	if job.OutputDir != "" {
		if err := s.store.RemoveDir(ctx, job.OutputDir); err != nil && !errors.Is(err, storage.ErrOutsideRoot) {
			return fmt.Errorf("remove job files: %w", err)
		}
		// Keep the stored job consistent if the delete below fails.
		job.ClearOutput()
		s.save(ctx, job)
	}

	s.logger.Info("deleting job", slog.String("job_id", id))
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// Plan computes a plan without touching any file. seed, when non-nil,
// makes random plans reproducible.
func (s *SplitService) Plan(total int64, b segment.Bound, strategy segment.Strategy, seed *uint64) (segment.Plan, error) {
	planner := s.newPlanner()
	if seed != nil {
		planner = segment.NewSeededPlanner(*seed)
	}
	return planner.Plan(total, b, strategy)
}
