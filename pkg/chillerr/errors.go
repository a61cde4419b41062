// Package chillerr defines the typed error kinds shared between the sync
// controller, the submission processor, and the backend-facing clients.
// Network-facing code converts transport errors into these values before
// they reach any orchestration logic.
package chillerr

import (
	"errors"
	"fmt"
)

// Error kinds for metadata extraction and video submission.
var (
	// ErrTimeout indicates an operation exceeded its time bound.
	ErrTimeout = errors.New("request timed out")

	// ErrExtractionFailed indicates metadata could not be extracted from the page.
	ErrExtractionFailed = errors.New("unable to extract video details")

	// ErrNetwork indicates a transient transport-level failure.
	ErrNetwork = errors.New("network error")

	// ErrUnsupportedPlatform indicates the URL belongs to a platform we don't handle.
	ErrUnsupportedPlatform = errors.New("unsupported video platform")

	// ErrDuplicateVideo indicates the backend already holds this video.
	ErrDuplicateVideo = errors.New("video already in library")

	// ErrDuplicateURL indicates the local queue already holds a request for
	// this normalized URL.
	ErrDuplicateURL = errors.New("submission already queued for this URL")
)

// SubmissionError wraps a backend rejection with its reason text.
type SubmissionError struct {
	Reason string
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %s", e.Reason)
}

// IsTerminal reports whether an error should not be retried because a retry
// cannot change the outcome (validation and duplicate rejections).
func IsTerminal(err error) bool {
	return errors.Is(err, ErrDuplicateVideo) ||
		errors.Is(err, ErrUnsupportedPlatform) ||
		errors.Is(err, ErrDuplicateURL)
}
