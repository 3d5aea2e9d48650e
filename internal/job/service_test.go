package job

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/audiosplit-api/internal/audio"
	"github.com/maauso/audiosplit-api/internal/report"
	"github.com/maauso/audiosplit-api/internal/segment"
	"github.com/maauso/audiosplit-api/internal/storage"
)

type mockProber struct {
	mock.Mock
}

func (m *mockProber) Probe(ctx context.Context, path string) (*audio.Info, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audio.Info), args.Error(1)
}

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, input, output string, seg segment.Segment, opts audio.EncodeOpts) error {
	args := m.Called(ctx, input, output, seg, opts)
	return args.Error(0)
}

// writeOutput simulates ffmpeg producing the segment file.
func writeOutput(args mock.Arguments) {
	_ = os.WriteFile(args.String(2), []byte("segment-audio"), 0600)
}

// publishingStorage is a real LocalStorage whose S3 upload is mocked.
type publishingStorage struct {
	*storage.LocalStorage
	mock.Mock
}

func (s *publishingStorage) UploadToS3(_ context.Context, key string, data io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, data)
	args := s.Called(key)
	return args.String(0), args.Error(1)
}

type testEnv struct {
	svc       *SplitService
	repo      *MemoryRepository
	prober    *mockProber
	extractor *mockExtractor
	store     *publishingStorage
	root      string
}

var fixedNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	root := t.TempDir()
	local, err := storage.NewLocalStorage(root)
	require.NoError(t, err)

	env := &testEnv{
		repo:      NewMemoryRepository(),
		prober:    &mockProber{},
		extractor: &mockExtractor{},
		store:     &publishingStorage{LocalStorage: local},
		root:      root,
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	env.svc = NewSplitService(env.repo, env.prober, env.extractor, env.store, logger, opts...)
	return env
}

func base64Input(minMs, maxMs int64, strategy segment.Strategy) SplitInput {
	return SplitInput{
		AudioBase64:   base64.StdEncoding.EncodeToString([]byte("fake-mp3-bytes")),
		FileName:      "talk.mp3",
		MinDurationMs: minMs,
		MaxDurationMs: maxMs,
		Strategy:      strategy,
	}
}

func TestNewSplitService(t *testing.T) {
	repo := NewMemoryRepository()

	svc := NewSplitService(repo, nil, nil, nil, nil)
	require.NotNil(t, svc)
	assert.Equal(t, 3, svc.maxConcurrentSegments)
	assert.NotNil(t, svc.logger)

	svc = NewSplitService(repo, nil, nil, nil, nil, WithMaxConcurrentSegments(8))
	assert.Equal(t, 8, svc.maxConcurrentSegments)

	// Invalid value should be ignored
	svc = NewSplitService(repo, nil, nil, nil, nil, WithMaxConcurrentSegments(0))
	assert.Equal(t, 3, svc.maxConcurrentSegments)
}

func TestResolveSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := ResolveSettings(SplitInput{InputPath: "/in/talk.MP3", MinDurationMs: 10, MaxDurationMs: 20})
		require.NoError(t, err)
		assert.Equal(t, segment.StrategyRandom, s.Strategy)
		assert.Equal(t, "mp3", s.OutputFormat)
		assert.Equal(t, audio.QualityHigh, s.Quality)
	})

	t.Run("explicit output", func(t *testing.T) {
		in := base64Input(10, 20, segment.StrategyEqual)
		in.OutputFormat = ".FLAC"
		in.Quality = audio.QualityMedium
		s, err := ResolveSettings(in)
		require.NoError(t, err)
		assert.Equal(t, "flac", s.OutputFormat)
		assert.Equal(t, audio.QualityMedium, s.Quality)
		assert.Equal(t, segment.StrategyEqual, s.Strategy)
	})

	tests := []struct {
		name    string
		mutate  func(*SplitInput)
		wantErr error
	}{
		{"no source", func(in *SplitInput) { in.AudioBase64 = "" }, ErrInvalidInput},
		{"two sources", func(in *SplitInput) { in.InputPath = "/in/talk.mp3" }, ErrInvalidInput},
		{"unsupported input", func(in *SplitInput) { in.FileName = "talk.txt" }, audio.ErrUnsupportedFormat},
		{"unsupported output", func(in *SplitInput) { in.OutputFormat = "opus" }, audio.ErrUnsupportedFormat},
		{"unknown quality", func(in *SplitInput) { in.Quality = "lossless" }, ErrInvalidInput},
		{"inverted bound", func(in *SplitInput) { in.MinDurationMs, in.MaxDurationMs = 20, 10 }, segment.ErrInvalidBound},
		{"unknown strategy", func(in *SplitInput) { in.Strategy = "silence" }, segment.ErrInvalidBound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base64Input(10, 20, segment.StrategyRandom)
			tt.mutate(&in)
			_, err := ResolveSettings(in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResolveSettings_UnknownQualityKeepsCause(t *testing.T) {
	in := base64Input(10, 20, segment.StrategyRandom)
	in.Quality = "lossless"

	_, err := ResolveSettings(in)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, audio.ErrUnknownQuality)
}

func TestSplitService_CreateJob(t *testing.T) {
	env := newTestEnv(t)

	job, err := env.svc.CreateJob(context.Background(), base64Input(10_000, 20_000, segment.StrategyEqual))
	require.NoError(t, err)
	assert.Equal(t, StatusInQueue, job.Status)
	assert.Equal(t, "talk.mp3", job.InputName)

	saved, err := env.repo.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, segment.StrategyEqual, saved.Settings.Strategy)
}

func TestSplitService_CreateJob_InvalidInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CreateJob(context.Background(), base64Input(20_000, 10_000, segment.StrategyEqual))
	assert.ErrorIs(t, err, segment.ErrInvalidBound)

	jobs, _ := env.repo.List(context.Background())
	assert.Empty(t, jobs)
}

func TestSplitService_Process(t *testing.T) {
	env := newTestEnv(t)
	env.prober.On("Probe", mock.Anything, mock.Anything).Return(&audio.Info{
		DurationMs: 95_000, Channels: 2, SampleRate: 44100, Codec: "mp3", SizeBytes: 3 << 20,
	}, nil)
	env.extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything,
		audio.EncodeOpts{Format: "mp3", Quality: audio.QualityHigh}).Run(writeOutput).Return(nil)

	out, err := env.svc.Process(context.Background(), base64Input(10_000, 20_000, segment.StrategyEqual))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, out.Status)
	require.Len(t, out.Parts, 5)
	for i, p := range out.Parts {
		assert.Equal(t, i+1, p.Index)
		assert.Equal(t, PartStatusCompleted, p.Status)
		assert.Equal(t, int64(19_000), p.Segment.Duration())
		assert.FileExists(t, p.OutputPath)
		assert.Equal(t, int64(len("segment-audio")), p.SizeBytes)
	}
	assert.Equal(t, "talk_part_01.mp3", out.Parts[0].FileName)
	assert.Equal(t, "talk_part_05.mp3", out.Parts[4].FileName)
	env.extractor.AssertNumberOfCalls(t, "Extract", 5)

	// The uploaded input is removed; only the job directory remains.
	entries, err := os.ReadDir(env.root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, out.JobID, entries[0].Name())

	f, err := os.Open(out.ReportPath)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rep, err := report.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, "talk.mp3", rep.InputFile)
	assert.Equal(t, fixedNow, rep.ProcessingTime)
	assert.Equal(t, 5, rep.Summary.TotalSegments)
	assert.Equal(t, "equal", rep.Settings.Strategy)
	assert.InDelta(t, 95.0/60, rep.InputInfo.DurationMin, 0.001)
	assert.Equal(t, 76.0, rep.OutputFiles[4].StartTime)
	assert.Equal(t, 95.0, rep.OutputFiles[4].EndTime)

	saved, err := env.svc.GetJob(context.Background(), out.JobID)
	require.NoError(t, err)
	assert.Equal(t, 100, saved.Progress)
	assert.Equal(t, StatusCompleted, saved.Status)
	env.store.AssertNotCalled(t, "UploadToS3", mock.Anything)
}

func TestSplitService_Process_TooShort(t *testing.T) {
	env := newTestEnv(t)
	env.prober.On("Probe", mock.Anything, mock.Anything).Return(&audio.Info{DurationMs: 5_000}, nil)

	out, err := env.svc.Process(context.Background(), base64Input(10_000, 20_000, segment.StrategyRandom))
	require.ErrorIs(t, err, segment.ErrTooShort)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Empty(t, out.Parts)
	assert.Contains(t, out.Error, "shorter than the minimum")
	env.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSplitService_Process_ProbeFailure(t *testing.T) {
	env := newTestEnv(t)
	env.prober.On("Probe", mock.Anything, mock.Anything).Return(nil, audio.ErrNoAudioStream)

	out, err := env.svc.Process(context.Background(), base64Input(10_000, 20_000, segment.StrategyRandom))
	require.ErrorIs(t, err, audio.ErrNoAudioStream)
	assert.Equal(t, StatusFailed, out.Status)
}

func TestSplitService_Process_ExtractFailureRemovesPartials(t *testing.T) {
	env := newTestEnv(t, WithMaxConcurrentSegments(1))
	env.prober.On("Probe", mock.Anything, mock.Anything).Return(&audio.Info{DurationMs: 95_000}, nil)
	env.extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything,
		segment.Segment{Start: 38_000, End: 57_000}, mock.Anything).Return(errors.New("encoder crashed"))
	env.extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(writeOutput).Return(nil)

	out, err := env.svc.Process(context.Background(), base64Input(10_000, 20_000, segment.StrategyEqual))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoder crashed")
	assert.Equal(t, StatusFailed, out.Status)

	leftovers, globErr := filepath.Glob(filepath.Join(env.root, out.JobID, "talk_part_*"))
	require.NoError(t, globErr)
	assert.Empty(t, leftovers)

	var failed int
	for _, p := range out.Parts {
		if p.Status == PartStatusFailed {
			failed++
		}
	}
	assert.GreaterOrEqual(t, failed, 1)
}

func TestSplitService_Process_PushToS3(t *testing.T) {
	env := newTestEnv(t)
	env.prober.On("Probe", mock.Anything, mock.Anything).Return(&audio.Info{DurationMs: 40_000}, nil)
	env.extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(writeOutput).Return(nil)
	env.store.On("UploadToS3", mock.Anything).Return("https://bucket.example/obj", nil)

	in := base64Input(10_000, 20_000, segment.StrategyEqual)
	in.PushToS3 = true
	out, err := env.svc.Process(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, out.Parts, 2)
	for _, p := range out.Parts {
		assert.Equal(t, "https://bucket.example/obj", p.URL)
	}
	assert.Equal(t, "https://bucket.example/obj", out.ReportURL)
	env.store.AssertCalled(t, "UploadToS3", out.JobID+"/talk_part_01.mp3")
	env.store.AssertCalled(t, "UploadToS3", out.JobID+"/talk_part_02.mp3")
	env.store.AssertCalled(t, "UploadToS3", out.JobID+"/"+report.FileName)
}

func TestSplitService_Process_PushToS3NotConfigured(t *testing.T) {
	env := newTestEnv(t)
	env.prober.On("Probe", mock.Anything, mock.Anything).Return(&audio.Info{DurationMs: 40_000}, nil)
	env.extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(writeOutput).Return(nil)
	env.store.On("UploadToS3", mock.Anything).Return("", storage.ErrS3NotConfigured)

	in := base64Input(10_000, 20_000, segment.StrategyEqual)
	in.PushToS3 = true
	out, err := env.svc.Process(context.Background(), in)
	require.ErrorIs(t, err, storage.ErrS3NotConfigured)
	assert.Equal(t, StatusFailed, out.Status)
}

func TestSplitService_Process_Cancelled(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	job, err := env.svc.CreateJob(ctx, base64Input(10_000, 20_000, segment.StrategyEqual))
	require.NoError(t, err)
	cancel()

	out, err := env.svc.ProcessExistingJob(ctx, job.ID, base64Input(10_000, 20_000, segment.StrategyEqual))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusCancelled, out.Status)

	saved, err := env.repo.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, saved.Status)
}

func TestSplitService_ProcessExistingJob_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.ProcessExistingJob(context.Background(), "missing", SplitInput{})
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestSplitService_Split_LocalFile(t *testing.T) {
	env := newTestEnv(t)
	srcDir := t.TempDir()
	input := filepath.Join(srcDir, "lecture.wav")
	require.NoError(t, os.WriteFile(input, []byte("RIFF"), 0600))
	outDir := filepath.Join(srcDir, "lecture_split")

	env.prober.On("Probe", mock.Anything, input).Return(&audio.Info{DurationMs: 15_000}, nil)
	env.extractor.On("Extract", mock.Anything, input, filepath.Join(outDir, "lecture_part_01.wav"),
		segment.Segment{Start: 0, End: 15_000}, audio.EncodeOpts{Format: "wav", Quality: audio.QualityHigh}).
		Run(writeOutput).Return(nil)

	out, err := env.svc.Split(context.Background(), SplitInput{
		InputPath:     input,
		MinDurationMs: 10_000,
		MaxDurationMs: 20_000,
		Strategy:      segment.StrategyRandom,
		OutputDir:     outDir,
	})
	require.NoError(t, err)
	require.Len(t, out.Parts, 1)
	assert.Equal(t, filepath.Join(outDir, report.FileName), out.ReportPath)
	assert.FileExists(t, out.ReportPath)
	assert.FileExists(t, input, "local inputs are never removed")
}

func TestSplitService_Split_MissingFile(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Split(context.Background(), SplitInput{
		InputPath:     "/nonexistent/talk.mp3",
		MinDurationMs: 10,
		MaxDurationMs: 20,
	})
	assert.ErrorIs(t, err, audio.ErrFileNotFound)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSplitService_GetReport(t *testing.T) {
	env := newTestEnv(t)
	env.prober.On("Probe", mock.Anything, mock.Anything).Return(&audio.Info{DurationMs: 40_000}, nil)
	env.extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(writeOutput).Return(nil)

	queued, err := env.svc.CreateJob(context.Background(), base64Input(10_000, 20_000, segment.StrategyEqual))
	require.NoError(t, err)
	_, err = env.svc.GetReport(context.Background(), queued.ID)
	assert.ErrorIs(t, err, ErrReportNotReady)

	out, err := env.svc.Process(context.Background(), base64Input(10_000, 20_000, segment.StrategyEqual))
	require.NoError(t, err)
	rep, err := env.svc.GetReport(context.Background(), out.JobID)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Summary.TotalSegments)

	_, err = env.svc.GetReport(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestSplitService_DeleteJob(t *testing.T) {
	env := newTestEnv(t)
	env.prober.On("Probe", mock.Anything, mock.Anything).Return(&audio.Info{DurationMs: 40_000}, nil)
	env.extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(writeOutput).Return(nil)
	ctx := context.Background()

	out, err := env.svc.Process(ctx, base64Input(10_000, 20_000, segment.StrategyEqual))
	require.NoError(t, err)
	jobDir := filepath.Join(env.root, out.JobID)
	require.DirExists(t, jobDir)

	require.NoError(t, env.svc.DeleteJob(ctx, out.JobID))
	assert.NoDirExists(t, jobDir)
	_, err = env.svc.GetJob(ctx, out.JobID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	queued, err := env.svc.CreateJob(ctx, base64Input(10_000, 20_000, segment.StrategyEqual))
	require.NoError(t, err)
	assert.ErrorIs(t, env.svc.DeleteJob(ctx, queued.ID), ErrJobNotTerminal)

	assert.ErrorIs(t, env.svc.DeleteJob(ctx, "missing"), ErrJobNotFound)
}

// stickyRepository refuses deletes so partial cleanup can be observed.
type stickyRepository struct {
	*MemoryRepository
}

func (r stickyRepository) Delete(context.Context, string) error {
	return errors.New("store unavailable")
}

func TestSplitService_DeleteJob_RepositoryFailure(t *testing.T) {
	env := newTestEnv(t)
	repo := stickyRepository{env.repo}
	env.svc.repo = repo
	env.prober.On("Probe", mock.Anything, mock.Anything).Return(&audio.Info{DurationMs: 40_000}, nil)
	env.extractor.On("Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(writeOutput).Return(nil)
	ctx := context.Background()

	out, err := env.svc.Process(ctx, base64Input(10_000, 20_000, segment.StrategyEqual))
	require.NoError(t, err)

	err = env.svc.DeleteJob(ctx, out.JobID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")
	assert.NoDirExists(t, filepath.Join(env.root, out.JobID))

	stored, err := env.svc.GetJob(ctx, out.JobID)
	require.NoError(t, err)
	assert.Empty(t, stored.OutputDir)
	assert.Empty(t, stored.ReportPath)
	for _, p := range stored.Parts {
		assert.Empty(t, p.OutputPath)
		assert.Equal(t, PartStatusCompleted, p.Status)
	}
	_, err = env.svc.GetReport(ctx, out.JobID)
	assert.ErrorIs(t, err, ErrReportNotReady)
}

func TestSplitService_ListJobs_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := NewWithID("first")
	first.CreatedAt = fixedNow.Add(-time.Hour)
	second := NewWithID("second")
	second.CreatedAt = fixedNow
	require.NoError(t, env.repo.Save(ctx, first))
	require.NoError(t, env.repo.Save(ctx, second))

	jobs, err := env.svc.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "second", jobs[0].ID)
	assert.Equal(t, "first", jobs[1].ID)
}

func TestSplitService_Plan(t *testing.T) {
	env := newTestEnv(t)
	b := segment.Bound{Min: 10, Max: 20}
	seed := uint64(11)

	first, err := env.svc.Plan(500, b, segment.StrategyRandom, &seed)
	require.NoError(t, err)
	second, err := env.svc.Plan(500, b, segment.StrategyRandom, &seed)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NoError(t, first.Check(500, b))

	_, err = env.svc.Plan(5, b, segment.StrategyEqual, nil)
	assert.ErrorIs(t, err, segment.ErrTooShort)
}
