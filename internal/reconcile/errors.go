package reconcile

import "fmt"

// ErrorCode is the closed taxonomy of errors the cloud layer can report
// per-item. Exhaustive switches over ErrorCode are an explicit design goal:
// adding a case here should force every dispatcher to be revisited.
type ErrorCode string

const (
	// ErrFileUnavailable means a cloud item's bytes cannot be fetched yet
	// (peer has not uploaded it). Per-item, transient; log and continue.
	ErrFileUnavailable ErrorCode = "file_unavailable"
	// ErrQuotaExceeded means the account is out of space. Fatal for the
	// session; stop synchronization.
	ErrQuotaExceeded ErrorCode = "quota_exceeded"
	// ErrServerUnavailable means a transport failure occurred. Transient;
	// the next snapshot retries implicitly.
	ErrServerUnavailable ErrorCode = "server_unavailable"
	// ErrCloudUnavailable means the user has no cloud identity. Fatal for
	// the session.
	ErrCloudUnavailable ErrorCode = "cloud_unavailable"
	// ErrContainerNotFound means the application's cloud container could
	// not be resolved. Fatal for the session.
	ErrContainerNotFound ErrorCode = "container_not_found"
	// ErrInternal is the catch-all for coordinator errors, I/O failures,
	// and decoding errors on metadata snapshots. Per-item; log, continue.
	ErrInternal ErrorCode = "internal"
)

// Fatal reports whether an error of this code should stop the whole
// synchronization session rather than being logged per-item.
func (c ErrorCode) Fatal() bool {
	switch c {
	case ErrQuotaExceeded, ErrCloudUnavailable, ErrContainerNotFound:
		return true
	default:
		return false
	}
}

// SyncError wraps an underlying error with the taxonomy code needed to
// route it correctly. The reconciler never fails outright; it only ever
// emits SyncError values wrapped in DidReceiveError events.
type SyncError struct {
	Code ErrorCode
	Item string // the name of the item the error was reported against
	Err  error
}

func (e *SyncError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Item, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewSyncError builds a SyncError, classifying a nil underlying error as
// itself to keep Error() meaningful.
func NewSyncError(code ErrorCode, item string, err error) *SyncError {
	if err == nil {
		err = fmt.Errorf("%s", code)
	}
	return &SyncError{Code: code, Item: item, Err: err}
}
