package transfer

import (
	"fmt"

	"github.com/dmitrijs2005/filerelay/internal/common"
)

// Error is a failed pipeline run. Kind is one of the common sentinels and
// Err is the underlying cause.
//
// A timeout also matches the failure kind of the phase it happened in, so
// errors.Is(err, common.ErrUploadFailed) is true for an upload timeout.
type Error struct {
	Phase Phase
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Phase, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Phase, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	if e.Kind != common.ErrTransferTimeout {
		return false
	}
	switch e.Phase {
	case PhaseDownloading:
		return target == common.ErrDownloadFailed
	case PhaseUploading:
		return target == common.ErrUploadFailed
	}
	return false
}

// outcome is the metrics label for a run that ended with err.
func outcome(err *Error) string {
	switch err.Kind {
	case common.ErrSizeLimitExceeded:
		return "size_limit"
	case common.ErrDownloadFailed:
		return "download_failed"
	case common.ErrUploadFailed:
		return "upload_failed"
	case common.ErrTransferTimeout:
		return "timeout"
	}
	return "failed"
}
