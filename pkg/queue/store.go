package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bitcrank/chill/pkg/chillerr"
	"github.com/bitcrank/chill/pkg/database"
	"github.com/bitcrank/chill/pkg/metadata"
)

// Store is the durable submission queue. The submission processor is the
// sole writer during drains; enqueue and the cleanup sweep serialize on the
// underlying transaction lock.
type Store struct {
	db  *database.Database
	now func() time.Time
}

// New creates the queue store on the given database, creating the schema if
// needed.
func New(db *database.Database) (*Store, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS submission_requests (
		id TEXT PRIMARY KEY,
		original_url TEXT NOT NULL,
		normalized_url TEXT NOT NULL UNIQUE,
		note TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error_message TEXT NOT NULL DEFAULT '',
		metadata_json TEXT,
		user_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		next_retry_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_submission_status ON submission_requests(status);
	CREATE INDEX IF NOT EXISTS idx_submission_created ON submission_requests(created_at);
	`

	if err := db.ExecuteSchema(schema); err != nil {
		return nil, fmt.Errorf("failed to create submission queue schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Enqueue persists a new pending request. It performs no network I/O.
// A request whose normalized URL is already queued is rejected with
// chillerr.ErrDuplicateURL.
func (s *Store) Enqueue(originalURL, normalizedURL, note string, userID uuid.UUID) (*Request, error) {
	now := s.now()
	req := &Request{
		ID:            uuid.New(),
		OriginalURL:   originalURL,
		NormalizedURL: normalizedURL,
		Note:          note,
		Status:        StatusPending,
		UserID:        userID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := s.db.DB().Exec(`
		INSERT INTO submission_requests
		(id, original_url, normalized_url, note, status, retry_count, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		req.ID.String(), req.OriginalURL, req.NormalizedURL, req.Note, string(req.Status),
		req.UserID.String(), req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, chillerr.ErrDuplicateURL
		}
		return nil, fmt.Errorf("failed to enqueue submission: %w", err)
	}

	slog.Debug("Enqueued submission", "id", req.ID, "url", req.NormalizedURL)
	return req, nil
}

const requestColumns = `id, original_url, normalized_url, note, status, retry_count,
	last_error_message, metadata_json, user_id, created_at, updated_at, next_retry_at`

// ListPendingOrFailed returns pending and failed requests in creation order.
func (s *Store) ListPendingOrFailed() ([]*Request, error) {
	return s.list(`SELECT ` + requestColumns + `
		FROM submission_requests
		WHERE status IN ('pending', 'failed')
		ORDER BY created_at ASC`)
}

// ListAll returns every queued request in creation order.
func (s *Store) ListAll() ([]*Request, error) {
	return s.list(`SELECT ` + requestColumns + `
		FROM submission_requests
		ORDER BY created_at ASC`)
}

func (s *Store) list(query string, args ...any) ([]*Request, error) {
	rows, err := s.db.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var requests []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

// Get returns a single request by ID.
func (s *Store) Get(id uuid.UUID) (*Request, error) {
	rows, err := s.db.DB().Query(`SELECT `+requestColumns+`
		FROM submission_requests WHERE id = ?`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query submission %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("submission %s not found", id)
	}
	return scanRequest(rows)
}

func scanRequest(rows *sql.Rows) (*Request, error) {
	var req Request
	var idStr, userIDStr, status string
	var metadataJSON sql.NullString
	var nextRetryAt sql.NullTime

	err := rows.Scan(&idStr, &req.OriginalURL, &req.NormalizedURL, &req.Note, &status,
		&req.RetryCount, &req.LastErrorMessage, &metadataJSON, &userIDStr,
		&req.CreatedAt, &req.UpdatedAt, &nextRetryAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}

	req.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt submission id %q: %w", idStr, err)
	}
	req.UserID, err = uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", userIDStr, err)
	}
	req.Status = Status(status)

	if metadataJSON.Valid && metadataJSON.String != "" {
		var meta metadata.Metadata
		if err := json.Unmarshal([]byte(metadataJSON.String), &meta); err != nil {
			return nil, fmt.Errorf("corrupt cached metadata for %s: %w", req.ID, err)
		}
		req.Metadata = &meta
	}
	if nextRetryAt.Valid {
		t := nextRetryAt.Time
		req.NextRetryAt = &t
	}

	return &req, nil
}

// MarkProcessing transitions a request to processing.
func (s *Store) MarkProcessing(id uuid.UUID) error {
	return s.setStatus(id, StatusProcessing)
}

// MarkCompleted transitions a request to completed.
func (s *Store) MarkCompleted(id uuid.UUID) error {
	return s.setStatus(id, StatusCompleted)
}

// MarkFailed transitions a request to failed and records the error message.
func (s *Store) MarkFailed(id uuid.UUID, errorMessage string) error {
	_, err := s.db.DB().Exec(`
		UPDATE submission_requests
		SET status = ?, last_error_message = ?, updated_at = ?
		WHERE id = ?`,
		string(StatusFailed), errorMessage, s.now(), id.String())
	if err != nil {
		return fmt.Errorf("failed to mark submission %s failed: %w", id, err)
	}
	return nil
}

// MarkTerminallyFailed fails the request and exhausts its retries in one
// write. Used for rejections a retry cannot change, like duplicates.
func (s *Store) MarkTerminallyFailed(id uuid.UUID, errorMessage string) error {
	_, err := s.db.DB().Exec(`
		UPDATE submission_requests
		SET status = ?, retry_count = ?, last_error_message = ?, updated_at = ?
		WHERE id = ?`,
		string(StatusFailed), MaxRetries, errorMessage, s.now(), id.String())
	if err != nil {
		return fmt.Errorf("failed to mark submission %s terminally failed: %w", id, err)
	}
	return nil
}

func (s *Store) setStatus(id uuid.UUID, status Status) error {
	_, err := s.db.DB().Exec(`
		UPDATE submission_requests SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), s.now(), id.String())
	if err != nil {
		return fmt.Errorf("failed to mark submission %s %s: %w", id, status, err)
	}
	return nil
}

// SaveMetadata caches extracted metadata on the request so a retry never
// re-extracts.
func (s *Store) SaveMetadata(id uuid.UUID, meta *metadata.Metadata) error {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", id, err)
	}

	_, err = s.db.DB().Exec(`
		UPDATE submission_requests SET metadata_json = ?, updated_at = ? WHERE id = ?`,
		string(encoded), s.now(), id.String())
	if err != nil {
		return fmt.Errorf("failed to save metadata for %s: %w", id, err)
	}
	return nil
}

// IncrementRetry bumps the retry count and schedules the next attempt per
// the backoff schedule. At the retry ceiling it is a no-op: the request
// stays terminally failed with its retry bookkeeping unchanged.
func (s *Store) IncrementRetry(id uuid.UUID) error {
	return s.db.Transaction(func(tx *sql.Tx) error {
		var retryCount int
		err := tx.QueryRow(`SELECT retry_count FROM submission_requests WHERE id = ?`, id.String()).Scan(&retryCount)
		if err != nil {
			return fmt.Errorf("failed to read retry count for %s: %w", id, err)
		}

		if retryCount >= MaxRetries {
			return nil
		}

		retryCount++
		now := s.now()
		nextRetry := now.Add(Backoff(retryCount))

		_, err = tx.Exec(`
			UPDATE submission_requests
			SET retry_count = ?, next_retry_at = ?, updated_at = ?
			WHERE id = ?`,
			retryCount, nextRetry, now, id.String())
		if err != nil {
			return fmt.Errorf("failed to increment retry for %s: %w", id, err)
		}
		return nil
	})
}

// Cleanup deletes completed requests and terminally failed requests older
// than 24 hours. Returns the number deleted.
func (s *Store) Cleanup() (int, error) {
	cutoff := s.now().Add(-24 * time.Hour)

	result, err := s.db.DB().Exec(`
		DELETE FROM submission_requests
		WHERE updated_at < ?
		  AND (status = 'completed' OR (status = 'failed' AND retry_count >= ?))`,
		cutoff, MaxRetries)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up submissions: %w", err)
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		slog.Debug("Cleaned up old submissions", "count", deleted)
	}
	return int(deleted), nil
}
