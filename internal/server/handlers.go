package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/audiosplit-api/internal/audio"
	"github.com/maauso/audiosplit-api/internal/job"
	"github.com/maauso/audiosplit-api/internal/segment"
)

// MaxPlanSegments is the largest plan POST /plans will compute.
const MaxPlanSegments = 100_000

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.SplitService
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
	defaultStrategy    segment.Strategy
	defaultQuality     audio.Quality
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithDefaultStrategy sets the strategy used when a request omits one.
func WithDefaultStrategy(s segment.Strategy) HandlerOption {
	return func(h *Handlers) {
		if s.IsValid() {
			h.defaultStrategy = s
		}
	}
}

// WithDefaultQuality sets the encoder preset used when a request omits one.
func WithDefaultQuality(q audio.Quality) HandlerOption {
	return func(h *Handlers) {
		if q != "" {
			h.defaultQuality = q
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.SplitService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
		defaultStrategy:    segment.StrategyRandom,
		defaultQuality:     audio.QualityHigh,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreatePlan handles POST /plans requests. It only computes the plan; no
// audio is touched.
func (h *Handlers) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !h.decode(w, r, &req) {
		return
	}

	strategy := h.defaultStrategy
	if req.Strategy != "" {
		parsed, err := segment.ParseStrategy(req.Strategy)
		if err != nil {
			h.writeServiceError(w, err, "plan request rejected")
			return
		}
		strategy = parsed
	}

	bound := segment.Bound{Min: req.MinMs, Max: req.MaxMs}
	if err := bound.Validate(); err != nil {
		h.writeServiceError(w, err, "plan request rejected")
		return
	}
	// Every segment is at least Min long, so total/Min bounds the count.
	if req.TotalMs/bound.Min > MaxPlanSegments {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("plan would exceed %d segments", MaxPlanSegments), "TOO_MANY_SEGMENTS")
		return
	}

	plan, err := h.service.Plan(req.TotalMs, bound, strategy, req.Seed)
	if err != nil {
		h.writeServiceError(w, err, "plan request rejected")
		return
	}

	writeJSON(w, http.StatusOK, PlanResponse{
		Strategy: string(strategy),
		TotalMs:  req.TotalMs,
		Count:    len(plan),
		Segments: planSegments(plan),
	})
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if !h.decode(w, r, &req) {
		return
	}

	strategy := h.defaultStrategy
	if req.Strategy != "" {
		parsed, err := segment.ParseStrategy(req.Strategy)
		if err != nil {
			h.writeServiceError(w, err, "job request rejected")
			return
		}
		strategy = parsed
	}
	quality := h.defaultQuality
	if req.Quality != "" {
		quality = audio.Quality(req.Quality)
	}

	input := job.SplitInput{
		AudioBase64:   req.AudioBase64,
		FileName:      req.FileName,
		MinDurationMs: minutesToMillis(req.MinDurationMin),
		MaxDurationMs: minutesToMillis(req.MaxDurationMin),
		Strategy:      strategy,
		OutputFormat:  req.OutputFormat,
		Quality:       quality,
		PushToS3:      req.PushToS3,
	}

	// Create job first (synchronously)
	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, err, "failed to create job")
		return
	}

	// Start processing in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string, inp job.SplitInput) {
			_, processErr := h.service.ProcessExistingJob(ctx, jobID, inp)
			if processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID, input)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.String("filename", req.FileName),
		slog.String("strategy", string(strategy)),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// ListJobs handles GET /jobs requests. An optional ?status= narrows the
// result to one job state.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	var status job.Status
	if q := r.URL.Query().Get("status"); q != "" {
		parsed, err := job.ParseStatus(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_STATUS")
			return
		}
		status = parsed
	}

	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list jobs")
		return
	}
	if status != "" {
		jobs = slices.DeleteFunc(jobs, func(j *job.Job) bool { return j.Status != status })
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs)), Count: len(jobs)}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathJobID(w, r)
	if !ok {
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeServiceError(w, err, "failed to get job")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(foundJob))
}

// GetJobReport handles GET /jobs/{id}/report requests.
func (h *Handlers) GetJobReport(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathJobID(w, r)
	if !ok {
		return
	}

	rep, err := h.service.GetReport(r.Context(), jobID)
	if err != nil {
		h.writeServiceError(w, err, "failed to load report")
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// DeleteJob handles DELETE /jobs/{id} requests. It removes the job and its
// working files; running jobs are rejected.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathJobID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteJob(r.Context(), jobID); err != nil {
		h.writeServiceError(w, err, "failed to delete job")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decode reads and validates a JSON request body, writing the error response
// itself when it returns false.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "BODY_TOO_LARGE")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// writeServiceError maps domain errors to HTTP responses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, segment.ErrInvalidBound):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_BOUND")
	case errors.Is(err, segment.ErrTooShort):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "TOO_SHORT")
	case errors.Is(err, job.ErrInvalidInput), errors.Is(err, audio.ErrUnsupportedFormat), errors.Is(err, audio.ErrUnknownQuality):
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrJobNotTerminal):
		writeError(w, http.StatusConflict, err.Error(), "JOB_IN_PROGRESS")
	case errors.Is(err, job.ErrReportNotReady):
		writeError(w, http.StatusConflict, err.Error(), "REPORT_NOT_READY")
	default:
		h.logger.Error(msg, slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, msg, "INTERNAL_ERROR")
	}
}

func pathJobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return "", false
	}
	return jobID, true
}

func toJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:        j.ID,
		Status:    string(j.Status),
		Progress:  j.Progress,
		Error:     j.Error,
		InputFile: j.InputName,
		Settings: JobSettings{
			MinDurationMs: j.Settings.MinDurationMs,
			MaxDurationMs: j.Settings.MaxDurationMs,
			Strategy:      string(j.Settings.Strategy),
			OutputFormat:  j.Settings.OutputFormat,
			Quality:       string(j.Settings.Quality),
			PushToS3:      j.Settings.PushToS3,
		},
		Segments:          make([]SegmentResponse, 0, len(j.Parts)),
		CompletedSegments: j.CompletedParts(),
		ReportURL:         j.ReportURL,
		CreatedAt:         j.CreatedAt,
	}
	if j.Info != nil {
		resp.DurationMs = j.Info.DurationMs
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	for _, p := range j.Parts {
		resp.Segments = append(resp.Segments, SegmentResponse{
			Index:      p.Index,
			StartMs:    p.Segment.Start,
			EndMs:      p.Segment.End,
			DurationMs: p.Segment.Duration(),
			Status:     string(p.Status),
			FileName:   p.FileName,
			SizeBytes:  p.SizeBytes,
			URL:        p.URL,
			Error:      p.Error,
		})
	}
	return resp
}

func planSegments(plan segment.Plan) []SegmentResponse {
	out := make([]SegmentResponse, len(plan))
	for i, s := range plan {
		out[i] = SegmentResponse{
			Index:      i + 1,
			StartMs:    s.Start,
			EndMs:      s.End,
			DurationMs: s.Duration(),
		}
	}
	return out
}

func minutesToMillis(m float64) int64 {
	return int64(math.Round(m * 60_000))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
