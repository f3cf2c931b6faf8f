package download

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type (
	JobStatus string
	MediaKind string

	// Job represents one download attempt. Values returned from the Registry
	// are snapshots; mutating them has no effect on the registry.
	Job struct {
		ID        uuid.UUID
		SourceURL string
		Title     string
		Kind      MediaKind
		Quality   string
		Container string

		Status   JobStatus
		Progress float64
		Speed    string
		ETA      string
		Error    string

		// PostProcessing is set once the engine reports the transfer has finished
		// but the fetch call has not yet returned (e.g. audio extraction, thumbnail
		// embedding). It is only meaningful while Status is Downloading.
		PostProcessing bool

		CreatedAt  time.Time
		FinishedAt time.Time
	}
)

const (
	Starting    JobStatus = "starting"
	Downloading JobStatus = "downloading"
	Completed   JobStatus = "completed"
	Failed      JobStatus = "failed"

	Video MediaKind = "video"
	Audio MediaKind = "audio"
)

// IsTerminal returns true for statuses which can never be left.
func (status JobStatus) IsTerminal() bool {
	return status == Completed || status == Failed
}

// CanTransitionTo reports whether moving from this status to next respects the
// forward-only lifecycle: starting -> downloading -> {completed, failed}, with
// starting -> failed permitted for failures before any transfer.
func (status JobStatus) CanTransitionTo(next JobStatus) bool {
	switch status {
	case Starting:
		return next == Downloading || next == Failed
	case Downloading:
		return next == Completed || next == Failed
	default:
		return false
	}
}

// Directory returns the pluralised directory name used to partition
// downloads of this kind on disk (e.g. "videos").
func (kind MediaKind) Directory() string {
	return string(kind) + "s"
}

func (job Job) String() string {
	return fmt.Sprintf("Job{ID=%s Kind=%s Status=%s Progress=%.1f}", job.ID, job.Kind, job.Status, job.Progress)
}
