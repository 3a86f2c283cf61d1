package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iqtlabs/gamutrf/internal/domain"
	"github.com/iqtlabs/gamutrf/internal/sdr"
	"github.com/iqtlabs/gamutrf/internal/sigmf"
)

// MetadataWriter writes the sidecar for a successful capture.
type MetadataWriter interface {
	Write(m sigmf.Metadata) (string, error)
}

// JobStore persists job snapshots.
type JobStore interface {
	Save(ctx context.Context, job domain.Job) error
}

// Options configures a Worker. Device is required.
type Options struct {
	Device     *sdr.Device
	Tuning     sdr.Tuning
	PathPrefix string
	Encoding   domain.Encoding

	// Metadata is nil when sidecars are disabled.
	Metadata MetadataWriter
	Runner   Runner
	Store    JobStore
	Events   *EventBus

	// CaptureTimeout bounds one capture. Zero waits forever.
	CaptureTimeout time.Duration

	// OnDone is called with every finished job.
	OnDone func(job domain.Job)

	Now      func() time.Time
	MkdirAll func(path string, perm os.FileMode) error
}

// Worker is the single consumer of the queue. It owns the radio: exactly one
// capture runs at a time, in queue order.
type Worker struct {
	queue *Queue
	opts  Options

	mu      sync.RWMutex
	current *domain.Job
}

// NewWorker creates a worker draining q.
func NewWorker(q *Queue, opts Options) *Worker {
	if opts.Runner == nil {
		opts.Runner = NewExecRunner()
	}
	if opts.Encoding.Tag == "" {
		opts.Encoding = domain.EncodingS16
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MkdirAll == nil {
		opts.MkdirAll = os.MkdirAll
	}
	return &Worker{queue: q, opts: opts}
}

// SampleFilePath derives the output path for a capture started at t.
func SampleFilePath(prefix string, t time.Time, req domain.RecordingRequest, enc domain.Encoding) string {
	name := fmt.Sprintf("gamutrf_recording%d_%dHz_%dsps.%s",
		t.Unix(), int64(req.CenterFreq), int64(req.SampleRate), enc.Tag)
	return filepath.Join(prefix, name)
}

// Run processes jobs until ctx is done or the queue is closed and drained.
// A job already started is finished before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("Recording worker started", "sdr", w.opts.Device.Kind(), "path", w.opts.PathPrefix)
	for {
		if _, err := w.ProcessNext(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrQueueClosed) {
				slog.Info("Recording worker stopped", "reason", err)
				return nil
			}
			return err
		}
	}
}

// ProcessNext waits for the next job and runs it to completion. The returned
// error only concerns dequeuing; job failures are recorded on the job.
func (w *Worker) ProcessNext(ctx context.Context) (domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return domain.Job{}, err
	}
	job, err := w.queue.Pop(ctx)
	if err != nil {
		return domain.Job{}, err
	}
	job = w.runJob(context.WithoutCancel(ctx), job)
	if w.opts.OnDone != nil {
		w.opts.OnDone(job)
	}
	return job, nil
}

// Current returns the job in flight, if any.
func (w *Worker) Current() (domain.Job, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.current == nil {
		return domain.Job{}, false
	}
	job := *w.current
	job.Args = append([]string(nil), w.current.Args...)
	return job, true
}

// runJob never panics and never returns early: every dequeued job ends in done.
func (w *Worker) runJob(ctx context.Context, job domain.Job) (result domain.Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recording job panicked", "job_id", job.ID, "panic", r)
			job.Succeeded = false
			job.Error = fmt.Sprintf("panic: %v", r)
			job.Status = domain.JobStatusDone
			job.FinishedAt = w.opts.Now()
			w.publish(ctx, job, job.Error)
			result = job
		}
		w.setCurrent(nil)
	}()

	now := w.opts.Now()
	job.StartedAt = now
	job.CapturedAt = now
	w.transition(ctx, &job, domain.JobStatusBuildingCommand, "")

	job.SampleFile = SampleFilePath(w.opts.PathPrefix, now, job.Request, w.opts.Encoding)
	job.DataFile = w.opts.Device.DataFile(job.SampleFile)
	job.Encoding = w.opts.Encoding.Tag
	job.Args = w.opts.Device.RecordArgs(job.SampleFile, job.Request, w.opts.Tuning)

	if err := w.opts.MkdirAll(filepath.Dir(job.SampleFile), 0755); err != nil {
		job.Error = fmt.Sprintf("failed to create output directory: %v", err)
		w.transition(ctx, &job, domain.JobStatusFailed, job.Error)
		w.finish(ctx, &job, domain.JobStatusMetadataSkipped, "")
		return job
	}

	w.transition(ctx, &job, domain.JobStatusExecuting, "")
	slog.Info("Starting recording", "job_id", job.ID, "args", job.Args)

	capture := w.capture(ctx, job)
	job.ExitStatus = capture.ExitStatus
	slog.Info("Record status", "job_id", job.ID, "exit_status", capture.ExitStatus)

	if !capture.OK() {
		job.Error = capture.Err.Error()
		slog.Error("Recording failed", "job_id", job.ID, "exit_status", capture.ExitStatus, "error", capture.Err)
		w.transition(ctx, &job, domain.JobStatusFailed, job.Error)
		w.finish(ctx, &job, domain.JobStatusMetadataSkipped, "")
		return job
	}

	job.Succeeded = true
	w.transition(ctx, &job, domain.JobStatusSucceeded, "")

	if w.opts.Metadata == nil {
		w.finish(ctx, &job, domain.JobStatusMetadataSkipped, "")
		return job
	}

	metaPath, err := w.opts.Metadata.Write(sigmf.Metadata{
		SampleFile: job.SampleFile,
		SampleRate: job.Request.SampleRate,
		Datatype:   w.opts.Encoding.Datatype,
		CenterFreq: job.Request.CenterFreq,
		CapturedAt: job.CapturedAt,
	})
	if err != nil {
		job.MetadataError = err.Error()
		slog.Error("Failed to write sigmf metadata", "job_id", job.ID, "error", err)
		w.finish(ctx, &job, domain.JobStatusMetadataFailed, job.MetadataError)
		return job
	}

	job.MetadataFile = metaPath
	w.finish(ctx, &job, domain.JobStatusMetadataWritten, "")
	return job
}

// capture invokes the executor and turns every failure mode into a result.
func (w *Worker) capture(ctx context.Context, job domain.Job) domain.CaptureResult {
	result := domain.CaptureResult{SampleFile: job.DataFile}

	if w.opts.CaptureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.CaptureTimeout)
		defer cancel()
	}

	out, err := w.opts.Runner.Run(ctx, job.Args)
	result.ExitStatus = out.ExitCode
	switch {
	case err != nil:
		result.Err = fmt.Errorf("capture %s failed: %w", job.Args[0], err)
	case out.ExitCode != 0:
		result.Err = fmt.Errorf("capture %s exited with status %d", job.Args[0], out.ExitCode)
	}
	if result.Err != nil && out.Output != "" {
		result.Err = fmt.Errorf("%w: %s", result.Err, out.Output)
	}
	return result
}

func (w *Worker) finish(ctx context.Context, job *domain.Job, metaStatus domain.JobStatus, message string) {
	w.transition(ctx, job, metaStatus, message)
	job.FinishedAt = w.opts.Now()
	w.transition(ctx, job, domain.JobStatusDone, "")
	slog.Info("Recording job done",
		"job_id", job.ID,
		"succeeded", job.Succeeded,
		"sample_file", job.SampleFile,
		"metadata_file", job.MetadataFile,
		"duration", job.FinishedAt.Sub(job.StartedAt))
}

func (w *Worker) transition(ctx context.Context, job *domain.Job, to domain.JobStatus, message string) {
	if err := checkTransition(job.Status, to); err != nil {
		slog.Error("Job state machine violation", "job_id", job.ID, "error", err)
	}
	job.Status = to
	slog.Debug("Job transition", "job_id", job.ID, "status", to)

	if to == domain.JobStatusDone {
		w.setCurrent(nil)
	} else {
		w.setCurrent(job)
	}
	w.publish(ctx, *job, message)
}

func (w *Worker) publish(ctx context.Context, job domain.Job, message string) {
	if w.opts.Events != nil {
		w.opts.Events.Publish(Event{
			JobID:   job.ID,
			Status:  job.Status,
			Message: message,
			Job:     job,
		})
	}
	if w.opts.Store != nil {
		if err := w.opts.Store.Save(ctx, job); err != nil {
			slog.Warn("Failed to save job", "job_id", job.ID, "status", job.Status, "error", err)
		}
	}
}

func (w *Worker) setCurrent(job *domain.Job) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if job == nil {
		w.current = nil
		return
	}
	snapshot := *job
	w.current = &snapshot
}
