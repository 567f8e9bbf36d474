package transfer

import (
	"time"

	"github.com/google/uuid"
)

type Phase int

const (
	PhasePending Phase = iota
	PhaseDownloading
	PhaseUploading
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseDownloading:
		return "downloading"
	case PhaseUploading:
		return "uploading"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Job is the state of one run. It lives only for the duration of Run.
type Job struct {
	ID           string
	SourceName   string
	DeclaredSize int64
	Owner        string
	LocalPath    string
	ObjectKey    string
	Phase        Phase
	StartedAt    time.Time
}

func newJob(src Source, owner string, now time.Time) *Job {
	return &Job{
		ID:           uuid.NewString(),
		SourceName:   src.Name(),
		DeclaredSize: src.Size(),
		Owner:        owner,
		Phase:        PhasePending,
		StartedAt:    now,
	}
}
