package recorder

import (
	"errors"
	"fmt"

	"github.com/iqtlabs/gamutrf/internal/domain"
)

// ErrInvalidTransition is returned for a job status change the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid job transition")

// isValidTransition enforces the job lifecycle:
// queued -> building-command -> executing -> succeeded|failed ->
// metadata-written|metadata-skipped|metadata-failed -> done.
func isValidTransition(from, to domain.JobStatus) bool {
	switch from {
	case domain.JobStatusQueued:
		return to == domain.JobStatusBuildingCommand
	case domain.JobStatusBuildingCommand:
		return to == domain.JobStatusExecuting || to == domain.JobStatusFailed
	case domain.JobStatusExecuting:
		return to == domain.JobStatusSucceeded || to == domain.JobStatusFailed
	case domain.JobStatusSucceeded:
		return to == domain.JobStatusMetadataWritten || to == domain.JobStatusMetadataSkipped || to == domain.JobStatusMetadataFailed
	case domain.JobStatusFailed:
		return to == domain.JobStatusMetadataSkipped
	case domain.JobStatusMetadataWritten, domain.JobStatusMetadataSkipped, domain.JobStatusMetadataFailed:
		return to == domain.JobStatusDone
	default:
		return false
	}
}

func checkTransition(from, to domain.JobStatus) error {
	if !isValidTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// IsActive reports whether status belongs to a dequeued, unfinished job.
func IsActive(status domain.JobStatus) bool {
	switch status {
	case domain.JobStatusQueued, domain.JobStatusDone, "":
		return false
	default:
		return true
	}
}
