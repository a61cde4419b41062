// Package queue implements the durable submission queue for user-added
// videos. Requests survive restarts and are drained opportunistically by the
// submission processor.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/bitcrank/chill/pkg/metadata"
)

// Status of a submission request.
type Status string

// Request lifecycle states.
const (
	StatusPending    Status = "pending"    // waiting to be processed
	StatusProcessing Status = "processing" // currently being processed
	StatusCompleted  Status = "completed"  // submitted to the backend
	StatusFailed     Status = "failed"     // failed; retried while RetryCount < MaxRetries
)

// MaxRetries is the retry ceiling. A request failing this many times is
// terminal and no longer auto-retried.
const MaxRetries = 3

// backoffSchedule holds the delay before each retry, indexed by
// min(retryCount-1, len-1).
var backoffSchedule = []time.Duration{30 * time.Second, 120 * time.Second, 300 * time.Second}

// Backoff returns the delay applied after the given failure count.
func Backoff(retryCount int) time.Duration {
	idx := retryCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(backoffSchedule) {
		idx = len(backoffSchedule) - 1
	}
	return backoffSchedule[idx]
}

// Request is one queued video submission.
type Request struct {
	ID               uuid.UUID
	OriginalURL      string
	NormalizedURL    string // unique; duplicate suppression key
	Note             string // optional user note
	Status           Status
	RetryCount       int
	LastErrorMessage string
	Metadata         *metadata.Metadata // cached once extracted
	UserID           uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
	NextRetryAt      *time.Time // set on failure; gates the next attempt
}

// Terminal reports whether the request has exhausted its retries.
func (r *Request) Terminal() bool {
	return r.Status == StatusFailed && r.RetryCount >= MaxRetries
}

// ReadyForRetry reports whether a failed request may be attempted again at
// the given time.
func (r *Request) ReadyForRetry(now time.Time) bool {
	if r.Status != StatusFailed {
		return false
	}
	if r.RetryCount >= MaxRetries {
		return false
	}
	if r.NextRetryAt != nil {
		return !now.Before(*r.NextRetryAt)
	}
	return true
}
