package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iqtlabs/gamutrf/internal/config"
	"github.com/iqtlabs/gamutrf/internal/domain"
	"github.com/iqtlabs/gamutrf/internal/history"
	"github.com/iqtlabs/gamutrf/internal/recorder"
	"github.com/iqtlabs/gamutrf/internal/sigmf"
	"github.com/iqtlabs/gamutrf/internal/sigwindows"
)

// Version is reported by /v1/info and `gamutrf --version`.
var Version = "0.5.0"

// Service represents the core gamutrf recording service interface
type Service interface {
	// Submission
	Submit(req domain.RecordingRequest) (domain.Job, error)
	Excluded(freq float64) bool

	// Worker
	RunWorker(ctx context.Context) error
	ProcessNext(ctx context.Context) (domain.Job, error)

	// Information operations
	Info() Info
	Status() Status
	Jobs(ctx context.Context, limit int) ([]domain.Job, error)
	Job(ctx context.Context, id string) (domain.Job, bool, error)
	Events() *recorder.EventBus
	DryRun(req domain.RecordingRequest) []string
	GetLastError() string

	Close() error
}

// Info is the static description of the recorder.
type Info struct {
	Version      string   `json:"version"`
	SDR          string   `json:"sdr"`
	PathPrefix   string   `json:"path_prefix"`
	FreqExcluded []string `json:"freq_excluded"`
}

// Status is a snapshot of the recording pipeline.
type Status struct {
	Recording  bool         `json:"recording"`
	Current    *domain.Job  `json:"current,omitempty"`
	QueueDepth int          `json:"queue_depth"`
	Pending    []domain.Job `json:"pending"`
	LastError  string       `json:"last_error,omitempty"`
}

// Options overrides collaborators, mainly for tests.
type Options struct {
	Runner recorder.Runner
	Now    func() time.Time
	NewID  func() string
}

// RecorderService is the main service implementation
type RecorderService struct {
	cfg     *config.Config
	queue   *recorder.Queue
	worker  *recorder.Worker
	events  *recorder.EventBus
	history *history.Store
	now     func() time.Time
	newID   func() string

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a recording service for a validated configuration. The job
// history database is opened when cfg.History is set.
func New(cfg *config.Config, opts Options) (Service, error) {
	if cfg.Device() == nil {
		return nil, fmt.Errorf("config has not been validated")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	s := &RecorderService{
		cfg:    cfg,
		queue:  recorder.NewQueue(),
		events: recorder.NewEventBus(0),
		now:    opts.Now,
		newID:  opts.NewID,
	}

	workerOpts := recorder.Options{
		Device:         cfg.Device(),
		Tuning:         cfg.Tuning(),
		PathPrefix:     cfg.Path,
		Encoding:       domain.EncodingS16,
		Runner:         opts.Runner,
		Events:         s.events,
		CaptureTimeout: cfg.CaptureTimeout,
		OnDone:         s.trackOutcome,
		Now:            opts.Now,
	}
	if cfg.SigMF {
		workerOpts.Metadata = sigmf.NewWriter()
	}

	if cfg.History {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open job history: %w", err)
		}
		s.history = store
		workerOpts.Store = store
		slog.Debug("Job history enabled", "db", store.Path())
	}

	s.worker = recorder.NewWorker(s.queue, workerOpts)
	return s, nil
}

// Submit enqueues req and returns the queued job. It never blocks on the
// radio and never re-checks the exclusion ranges.
func (s *RecorderService) Submit(req domain.RecordingRequest) (domain.Job, error) {
	job := domain.Job{
		ID:          s.newID(),
		Request:     req,
		Status:      domain.JobStatusQueued,
		SubmittedAt: s.now(),
	}

	// The queued snapshot must be recorded before the worker can see the job.
	s.record(job, "")
	if err := s.queue.Push(job); err != nil {
		job.Status = domain.JobStatusDone
		job.Error = fmt.Sprintf("failed to queue recording: %v", err)
		job.FinishedAt = s.now()
		s.record(job, job.Error)
		return domain.Job{}, fmt.Errorf("failed to queue recording: %w", err)
	}

	slog.Info("Requested recording",
		"job_id", job.ID,
		"center_freq", req.CenterFreq,
		"sample_count", req.SampleCount,
		"sample_rate", req.SampleRate,
		"queue_depth", s.queue.Len())
	return job, nil
}

func (s *RecorderService) record(job domain.Job, message string) {
	s.events.Publish(recorder.Event{JobID: job.ID, Status: job.Status, Message: message, Job: job})
	if s.history != nil {
		if err := s.history.Save(context.Background(), job); err != nil {
			slog.Warn("Failed to save job", "job_id", job.ID, "status", job.Status, "error", err)
		}
	}
}

// Excluded reports whether freq falls in a configured exclusion range.
func (s *RecorderService) Excluded(freq float64) bool {
	return sigwindows.FreqExcluded(freq, s.cfg.Excluded())
}

// RunWorker drains the queue until ctx is done, then stops accepting jobs.
// Jobs still queued at that point are dropped.
func (s *RecorderService) RunWorker(ctx context.Context) error {
	err := s.worker.Run(ctx)
	s.queue.Close()
	if dropped := s.queue.Len(); dropped > 0 {
		slog.Warn("Dropping queued recordings", "count", dropped)
	}
	return err
}

// ProcessNext runs exactly one queued job.
func (s *RecorderService) ProcessNext(ctx context.Context) (domain.Job, error) {
	return s.worker.ProcessNext(ctx)
}

func (s *RecorderService) trackOutcome(job domain.Job) {
	switch {
	case !job.Succeeded:
		s.setLastError(fmt.Sprintf("Recording %s failed: %s", job.ID, job.Error))
	case job.MetadataError != "":
		s.setLastError(fmt.Sprintf("Recording %s metadata failed: %s", job.ID, job.MetadataError))
	default:
		s.clearLastError()
	}
}

// Info returns the static recorder description.
func (s *RecorderService) Info() Info {
	return Info{
		Version:      Version,
		SDR:          s.cfg.SDR,
		PathPrefix:   s.cfg.Path,
		FreqExcluded: append([]string{}, s.cfg.FreqExcluded...),
	}
}

// Status returns the in-flight job and the queue contents.
func (s *RecorderService) Status() Status {
	status := Status{
		Pending:   s.queue.Pending(),
		LastError: s.GetLastError(),
	}
	status.QueueDepth = len(status.Pending)
	if job, ok := s.worker.Current(); ok && recorder.IsActive(job.Status) {
		status.Recording = true
		status.Current = &job
	}
	return status
}

// Jobs returns recent jobs, newest first. Without a history database only
// the jobs still held by the event buffer are known.
func (s *RecorderService) Jobs(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	if s.history != nil {
		return s.history.Recent(ctx, limit)
	}

	latest := make(map[string]domain.Job)
	for _, e := range s.events.Since(0) {
		latest[e.JobID] = e.Job
	}
	jobs := make([]domain.Job, 0, len(latest))
	for _, job := range latest {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].SubmittedAt.After(jobs[j].SubmittedAt)
	})
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// Job returns one job by id from the history database, or from the event
// buffer when history is disabled.
func (s *RecorderService) Job(ctx context.Context, id string) (domain.Job, bool, error) {
	if s.history != nil {
		return s.history.Get(ctx, id)
	}
	var (
		job   domain.Job
		found bool
	)
	for _, e := range s.events.Since(0) {
		if e.JobID == id {
			job, found = e.Job, true
		}
	}
	return job, found, nil
}

// Events returns the job event bus.
func (s *RecorderService) Events() *recorder.EventBus {
	return s.events
}

// DryRun returns the argument vector a capture of req would run now.
func (s *RecorderService) DryRun(req domain.RecordingRequest) []string {
	sampleFile := recorder.SampleFilePath(s.cfg.Path, s.now(), req, domain.EncodingS16)
	return s.cfg.Device().RecordArgs(sampleFile, req, s.cfg.Tuning())
}

// Close stops accepting jobs and releases the history database.
func (s *RecorderService) Close() error {
	s.queue.Close()
	if s.history != nil {
		return s.history.Close()
	}
	return nil
}

// GetLastError returns the last error message (thread-safe)
func (s *RecorderService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

func (s *RecorderService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

func (s *RecorderService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}
