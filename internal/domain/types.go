package domain

import (
	"time"
)

// RecordingRequest is one accepted capture request. It is immutable once queued.
type RecordingRequest struct {
	CenterFreq  float64 `json:"center_freq"`
	SampleCount int64   `json:"sample_count"`
	SampleRate  float64 `json:"sample_rate"`
}

// Encoding describes how captured samples are laid out on disk.
type Encoding struct {
	// Tag is the short code used as the sample file extension.
	Tag string `json:"tag"`
	// Datatype is the SigMF core:datatype for the same layout.
	Datatype string `json:"datatype"`
}

// EncodingS16 is interleaved signed 16-bit I/Q, the default output of every supported SDR tool.
var EncodingS16 = Encoding{Tag: "s16", Datatype: "ci16_le"}

// JobStatus is a stage in the lifecycle of one recording job.
type JobStatus string

const (
	JobStatusQueued          JobStatus = "queued"
	JobStatusBuildingCommand JobStatus = "building-command"
	JobStatusExecuting       JobStatus = "executing"
	JobStatusSucceeded       JobStatus = "succeeded"
	JobStatusFailed          JobStatus = "failed"
	JobStatusMetadataWritten JobStatus = "metadata-written"
	JobStatusMetadataSkipped JobStatus = "metadata-skipped"
	JobStatusMetadataFailed  JobStatus = "metadata-failed"
	JobStatusDone            JobStatus = "done"
)

// CaptureResult is the outcome of one capture binary invocation.
type CaptureResult struct {
	ExitStatus int    `json:"exit_status"`
	SampleFile string `json:"sample_file"`
	Err        error  `json:"-"`
}

// OK reports whether the capture binary ran and exited zero.
func (r CaptureResult) OK() bool {
	return r.Err == nil && r.ExitStatus == 0
}

// Job is the runtime state of one recording request.
type Job struct {
	ID      string           `json:"id"`
	Request RecordingRequest `json:"request"`
	Status  JobStatus        `json:"status"`

	SampleFile string    `json:"sample_file,omitempty"`
	DataFile   string    `json:"data_file,omitempty"`
	Encoding   string    `json:"encoding,omitempty"`
	Args       []string  `json:"args,omitempty"`
	CapturedAt time.Time `json:"captured_at,omitzero"`

	// Outcome
	Succeeded     bool   `json:"succeeded"`
	ExitStatus    int    `json:"exit_status"`
	Error         string `json:"error,omitempty"`
	MetadataFile  string `json:"metadata_file,omitempty"`
	MetadataError string `json:"metadata_error,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}
