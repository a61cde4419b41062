// Package submit drains the submission queue: extract metadata, post to the
// backend, and keep retry bookkeeping honest.
package submit

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/bitcrank/chill/internal/backend"
	"github.com/bitcrank/chill/internal/connectivity"
	"github.com/bitcrank/chill/internal/session"
	"github.com/bitcrank/chill/pkg/chillerr"
	"github.com/bitcrank/chill/pkg/metadata"
	"github.com/bitcrank/chill/pkg/queue"
	"github.com/bitcrank/chill/pkg/urlcheck"
)

// Extractor produces video metadata for a URL. Satisfied by
// *metadata.Extractor.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) (*metadata.Metadata, error)
}

// Endpoint posts submissions to the backend. Satisfied by *backend.Client.
type Endpoint interface {
	SubmitVideo(ctx context.Context, accessToken string, sub backend.Submission) error
}

// Config wires the processor's collaborators.
type Config struct {
	Queue     *queue.Store
	Extractor Extractor
	Endpoint  Endpoint
	Monitor   connectivity.Monitor
	Sessions  session.Provider
}

// Processor owns the queue drain. Drain is single-flight: a trigger that
// arrives mid-drain schedules exactly one follow-up pass instead of running
// concurrently.
type Processor struct {
	queue     *queue.Store
	extractor Extractor
	endpoint  Endpoint
	monitor   connectivity.Monitor
	sessions  session.Provider
	now       func() time.Time

	mu       stdsync.Mutex
	draining bool
	pending  bool
}

// NewProcessor creates a processor over the given collaborators.
func NewProcessor(cfg Config) *Processor {
	return &Processor{
		queue:     cfg.Queue,
		extractor: cfg.Extractor,
		endpoint:  cfg.Endpoint,
		monitor:   cfg.Monitor,
		sessions:  cfg.Sessions,
		now:       time.Now,
	}
}

// Queue returns the underlying queue store.
func (p *Processor) Queue() *queue.Store {
	return p.queue
}

// Add validates and enqueues a URL, then triggers a drain. Enqueueing
// itself performs no network I/O, so it succeeds offline; the drain pass
// simply skips until connectivity returns.
func (p *Processor) Add(ctx context.Context, rawURL, note string) (*queue.Request, error) {
	result := urlcheck.Validate(rawURL)
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", chillerr.ErrUnsupportedPlatform, result.Message)
	}

	req, err := p.queue.Enqueue(rawURL, result.NormalizedURL, note, p.userID())
	if err != nil {
		return nil, err
	}

	p.Drain(ctx)
	return req, nil
}

// Drain processes the queue. Concurrent triggers coalesce into one
// follow-up pass.
func (p *Processor) Drain(ctx context.Context) {
	p.mu.Lock()
	if p.draining {
		p.pending = true
		p.mu.Unlock()
		return
	}
	p.draining = true
	p.mu.Unlock()

	for {
		p.drainPass(ctx)

		p.mu.Lock()
		if !p.pending {
			p.draining = false
			p.mu.Unlock()
			return
		}
		p.pending = false
		p.mu.Unlock()
	}
}

// Run triggers drains on connectivity-restored until the context ends.
func (p *Processor) Run(ctx context.Context) {
	changes := p.monitor.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case online := <-changes:
			if online {
				slog.Debug("Connectivity restored, draining queue")
				p.Drain(ctx)
			}
		}
	}
}

func (p *Processor) drainPass(ctx context.Context) {
	if !p.monitor.IsOnline() {
		slog.Debug("Offline, skipping queue drain")
		return
	}

	requests, err := p.queue.ListPendingOrFailed()
	if err != nil {
		slog.Error("Failed to list queued submissions", "error", err)
		return
	}

	now := p.now()
	for _, req := range requests {
		if ctx.Err() != nil {
			return
		}
		if req.Status == queue.StatusFailed && !req.ReadyForRetry(now) {
			continue
		}

		// Per-item isolation: one failure never aborts the pass.
		if err := p.process(ctx, req); err != nil {
			slog.Warn("Submission failed", "id", req.ID, "url", req.NormalizedURL, "error", err)
			p.recordFailure(req, err)
			continue
		}

		if err := p.queue.MarkCompleted(req.ID); err != nil {
			slog.Error("Failed to mark submission completed", "id", req.ID, "error", err)
		} else {
			slog.Info("Submitted video", "id", req.ID, "url", req.NormalizedURL)
		}
	}
}

func (p *Processor) process(ctx context.Context, req *queue.Request) error {
	if err := p.queue.MarkProcessing(req.ID); err != nil {
		return fmt.Errorf("failed to mark processing: %w", err)
	}

	meta := req.Metadata
	if meta == nil {
		var err error
		meta, err = p.extractor.Extract(ctx, req.OriginalURL)
		if err != nil {
			return err
		}
		// Persist so a later retry skips re-extraction.
		if err := p.queue.SaveMetadata(req.ID, meta); err != nil {
			slog.Warn("Failed to cache extracted metadata", "id", req.ID, "error", err)
		}
	}

	return p.endpoint.SubmitVideo(ctx, p.accessToken(), buildSubmission(req, meta))
}

func (p *Processor) recordFailure(req *queue.Request, cause error) {
	if chillerr.IsTerminal(cause) {
		if err := p.queue.MarkTerminallyFailed(req.ID, cause.Error()); err != nil {
			slog.Error("Failed to record terminal failure", "id", req.ID, "error", err)
		}
		return
	}

	if err := p.queue.MarkFailed(req.ID, cause.Error()); err != nil {
		slog.Error("Failed to record failure", "id", req.ID, "error", err)
		return
	}
	if err := p.queue.IncrementRetry(req.ID); err != nil {
		slog.Error("Failed to schedule retry", "id", req.ID, "error", err)
	}
}

func buildSubmission(req *queue.Request, meta *metadata.Metadata) backend.Submission {
	return backend.Submission{
		URL:             req.NormalizedURL,
		Title:           meta.Title,
		Description:     meta.Description,
		ThumbnailURL:    meta.ThumbnailURL,
		CreatorName:     meta.Creator,
		PlatformName:    meta.Platform,
		VideoURL:        meta.VideoURL,
		DurationSeconds: meta.DurationSeconds,
		Note:            req.Note,
		UserID:          req.UserID,
	}
}

func (p *Processor) userID() uuid.UUID {
	if sess := p.sessions.Current(); sess != nil {
		return sess.UserID
	}
	return uuid.Nil
}

func (p *Processor) accessToken() string {
	if sess := p.sessions.Current(); sess != nil {
		return sess.AccessToken
	}
	return ""
}
