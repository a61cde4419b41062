package queue

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bitcrank/chill/pkg/chillerr"
	"github.com/bitcrank/chill/pkg/database"
	"github.com/bitcrank/chill/pkg/metadata"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "queue.db")})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})

	store, err := New(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestEnqueueAndList(t *testing.T) {
	store := newTestStore(t)
	userID := uuid.New()

	first, err := store.Enqueue("https://twitter.com/a/status/1", "twitter.com/a/status/1", "first", userID)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if first.Status != StatusPending || first.RetryCount != 0 {
		t.Errorf("new request = %+v, want pending with zero retries", first)
	}

	if _, err := store.Enqueue("https://twitter.com/b/status/2", "twitter.com/b/status/2", "", userID); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	requests, err := store.ListPendingOrFailed()
	if err != nil {
		t.Fatalf("ListPendingOrFailed failed: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("len(requests) = %d, want 2", len(requests))
	}
	// Creation order
	if requests[0].ID != first.ID {
		t.Errorf("requests not in creation order")
	}
}

func TestEnqueueRejectsDuplicateURL(t *testing.T) {
	store := newTestStore(t)
	userID := uuid.New()

	if _, err := store.Enqueue("https://twitter.com/a/status/1", "twitter.com/a/status/1", "", userID); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	_, err := store.Enqueue("http://www.twitter.com/a/status/1", "twitter.com/a/status/1", "", userID)
	if !errors.Is(err, chillerr.ErrDuplicateURL) {
		t.Errorf("err = %v, want ErrDuplicateURL", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	store := newTestStore(t)
	req, err := store.Enqueue("https://twitter.com/a/status/1", "twitter.com/a/status/1", "", uuid.New())
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := store.MarkProcessing(req.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	got, err := store.Get(req.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusProcessing {
		t.Errorf("status = %v, want processing", got.Status)
	}

	if err := store.MarkFailed(req.ID, "extraction timed out"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	got, _ = store.Get(req.ID)
	if got.Status != StatusFailed || got.LastErrorMessage != "extraction timed out" {
		t.Errorf("request = %+v, want failed with message", got)
	}

	if err := store.MarkCompleted(req.ID); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	got, _ = store.Get(req.ID)
	if got.Status != StatusCompleted {
		t.Errorf("status = %v, want completed", got.Status)
	}

	// Completed items no longer appear in the drain list
	requests, err := store.ListPendingOrFailed()
	if err != nil {
		t.Fatalf("ListPendingOrFailed failed: %v", err)
	}
	if len(requests) != 0 {
		t.Errorf("drain list holds %d items, want 0", len(requests))
	}
}

func TestBackoffSchedule(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().UTC()
	store.now = func() time.Time { return base }

	req, err := store.Enqueue("https://twitter.com/a/status/1", "twitter.com/a/status/1", "", uuid.New())
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	expected := []time.Duration{30 * time.Second, 120 * time.Second, 300 * time.Second}
	for i, delay := range expected {
		if err := store.IncrementRetry(req.ID); err != nil {
			t.Fatalf("IncrementRetry %d failed: %v", i+1, err)
		}
		got, err := store.Get(req.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.RetryCount != i+1 {
			t.Errorf("retry %d: count = %d, want %d", i+1, got.RetryCount, i+1)
		}
		if got.NextRetryAt == nil {
			t.Fatalf("retry %d: NextRetryAt not set", i+1)
		}
		want := base.Add(delay)
		if got.NextRetryAt.Sub(want).Abs() > time.Second {
			t.Errorf("retry %d: NextRetryAt = %v, want %v", i+1, got.NextRetryAt, want)
		}
	}

	// A fourth failure is terminal: counters and schedule stay untouched.
	if err := store.IncrementRetry(req.ID); err != nil {
		t.Fatalf("IncrementRetry at ceiling failed: %v", err)
	}
	got, err := store.Get(req.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.RetryCount != MaxRetries {
		t.Errorf("retry count = %d, want %d (ceiling)", got.RetryCount, MaxRetries)
	}
	if got.NextRetryAt.Sub(base.Add(300*time.Second)).Abs() > time.Second {
		t.Errorf("NextRetryAt changed at ceiling: %v", got.NextRetryAt)
	}
}

func TestReadyForRetry(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	tests := []struct {
		name string
		req  Request
		want bool
	}{
		{"pending is not retried", Request{Status: StatusPending}, false},
		{"failed with no schedule is ready", Request{Status: StatusFailed, RetryCount: 1}, true},
		{"failed before next retry time", Request{Status: StatusFailed, RetryCount: 1, NextRetryAt: &future}, false},
		{"failed after next retry time", Request{Status: StatusFailed, RetryCount: 1, NextRetryAt: &past}, true},
		{"terminal failure never retried", Request{Status: StatusFailed, RetryCount: MaxRetries, NextRetryAt: &past}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.ReadyForRetry(now); got != tt.want {
				t.Errorf("ReadyForRetry = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSaveMetadataRoundTrip(t *testing.T) {
	store := newTestStore(t)
	req, err := store.Enqueue("https://twitter.com/a/status/1", "twitter.com/a/status/1", "", uuid.New())
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	meta := &metadata.Metadata{
		Title:    "A cat does a backflip",
		Creator:  "catperson",
		Platform: "twitter",
		VideoURL: "https://video.example.com/cat.mp4",
	}
	if err := store.SaveMetadata(req.ID, meta); err != nil {
		t.Fatalf("SaveMetadata failed: %v", err)
	}

	got, err := store.Get(req.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Metadata == nil || *got.Metadata != *meta {
		t.Errorf("Metadata = %+v, want %+v", got.Metadata, meta)
	}
}

func TestCleanup(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().UTC()
	userID := uuid.New()

	// Old completed request
	store.now = func() time.Time { return base.Add(-25 * time.Hour) }
	oldCompleted, err := store.Enqueue("https://twitter.com/a/status/1", "twitter.com/a/status/1", "", userID)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := store.MarkCompleted(oldCompleted.ID); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	// Old terminally failed request
	oldFailed, err := store.Enqueue("https://twitter.com/b/status/2", "twitter.com/b/status/2", "", userID)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	for range MaxRetries {
		if err := store.IncrementRetry(oldFailed.ID); err != nil {
			t.Fatalf("IncrementRetry failed: %v", err)
		}
	}
	if err := store.MarkFailed(oldFailed.ID, "gave up"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	// Old but still-retryable failed request: kept
	oldRetryable, err := store.Enqueue("https://twitter.com/c/status/3", "twitter.com/c/status/3", "", userID)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := store.MarkFailed(oldRetryable.ID, "transient"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	// Fresh completed request: kept
	store.now = func() time.Time { return base }
	freshCompleted, err := store.Enqueue("https://twitter.com/d/status/4", "twitter.com/d/status/4", "", userID)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := store.MarkCompleted(freshCompleted.ID); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	deleted, err := store.Cleanup()
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	remaining, err := store.ListAll()
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("remaining = %d, want 2", len(remaining))
	}
	for _, req := range remaining {
		if req.ID == oldCompleted.ID || req.ID == oldFailed.ID {
			t.Errorf("request %s should have been cleaned up", req.ID)
		}
	}
}
