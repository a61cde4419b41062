// Package cache implements the durable video card cache backing offline
// browsing. Records are keyed by card ID; writes are guarded so that a card
// never regresses to an older server revision regardless of delivery order.
package cache

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bitcrank/chill/pkg/database"
	"github.com/bitcrank/chill/pkg/videocard"
)

// DefaultPurgeDays is the staleness threshold for cached cards.
const DefaultPurgeDays = 90

// Store is the video card cache. All writes go through one Store instance;
// concurrent callers serialize on the underlying database transaction lock.
type Store struct {
	db  *database.Database
	now func() time.Time
}

// New creates the card cache on the given database, creating the schema if
// needed.
func New(db *database.Database) (*Store, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS video_cards (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		creator_display_name TEXT NOT NULL,
		platform_display_name TEXT NOT NULL,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		thumbnail_url TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL,
		synced_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_video_cards_updated ON video_cards(updated_at);
	CREATE INDEX IF NOT EXISTS idx_video_cards_synced ON video_cards(synced_at);
	`

	if err := db.ExecuteSchema(schema); err != nil {
		return nil, fmt.Errorf("failed to create card cache schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// UpsertMany writes the incoming card payloads in a single transaction.
// Payloads missing required fields are rejected (logged, not written).
// An existing card is overwritten only when the incoming updated_at is not
// older than the stored one. Returns the number of cards actually written.
func (s *Store) UpsertMany(dtos []videocard.DTO) (int, error) {
	written := 0

	err := s.db.Transaction(func(tx *sql.Tx) error {
		for _, dto := range dtos {
			card, ok := dto.ToCard()
			if !ok {
				slog.Warn("Rejected card payload missing required fields", "id", dto.ID)
				continue
			}

			var existing time.Time
			err := tx.QueryRow(`SELECT updated_at FROM video_cards WHERE id = ?`, card.ID.String()).Scan(&existing)
			switch {
			case err == sql.ErrNoRows:
				// New card, insert below
			case err != nil:
				return fmt.Errorf("failed to look up card %s: %w", card.ID, err)
			default:
				// Monotonic guard: never regress to an older revision
				if card.UpdatedAt.Before(existing) {
					slog.Debug("Skipped stale card revision", "id", card.ID, "incoming", card.UpdatedAt, "stored", existing)
					continue
				}
			}

			_, err = tx.Exec(`
				INSERT OR REPLACE INTO video_cards
				(id, title, creator_display_name, platform_display_name, duration_seconds, thumbnail_url, updated_at, synced_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				card.ID.String(),
				card.Title,
				card.CreatorDisplayName,
				card.PlatformDisplayName,
				card.DurationSeconds,
				card.ThumbnailURL,
				card.UpdatedAt,
				s.now(),
			)
			if err != nil {
				return fmt.Errorf("failed to upsert card %s: %w", card.ID, err)
			}

			written++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return written, nil
}

// FetchAll returns every cached card ordered by updated_at descending.
func (s *Store) FetchAll() ([]videocard.Card, error) {
	rows, err := s.db.DB().Query(`
		SELECT id, title, creator_display_name, platform_display_name, duration_seconds, thumbnail_url, updated_at, synced_at
		FROM video_cards
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []videocard.Card
	for rows.Next() {
		var card videocard.Card
		var id string
		if err := rows.Scan(&id, &card.Title, &card.CreatorDisplayName, &card.PlatformDisplayName,
			&card.DurationSeconds, &card.ThumbnailURL, &card.UpdatedAt, &card.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		card.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("corrupt card id %q: %w", id, err)
		}
		cards = append(cards, card)
	}

	return cards, rows.Err()
}

// PurgeStale deletes cards not synced within the given number of days and
// returns the number deleted.
func (s *Store) PurgeStale(thresholdDays int) (int, error) {
	threshold := s.now().AddDate(0, 0, -thresholdDays)

	result, err := s.db.DB().Exec(`DELETE FROM video_cards WHERE synced_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale cards: %w", err)
	}

	purged, _ := result.RowsAffected()
	if purged > 0 {
		slog.Info("Purged stale cards", "count", purged, "thresholdDays", thresholdDays)
	}

	return int(purged), nil
}

// DeleteByID removes a single card if present.
func (s *Store) DeleteByID(id uuid.UUID) error {
	_, err := s.db.DB().Exec(`DELETE FROM video_cards WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	return nil
}

// ClearAll removes every cached card and returns the number removed.
func (s *Store) ClearAll() (int, error) {
	result, err := s.db.DB().Exec(`DELETE FROM video_cards`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear card cache: %w", err)
	}

	cleared, _ := result.RowsAffected()
	slog.Warn("Cleared card cache", "count", cleared)
	return int(cleared), nil
}

// Stats summarizes cache freshness for maintenance and the CLI.
type Stats struct {
	TotalEntries int
	FreshEntries int
	StaleEntries int
	OldestSync   time.Time
	NewestSync   time.Time
}

// Stats returns cache statistics relative to the given staleness threshold.
func (s *Store) Stats(thresholdDays int) (Stats, error) {
	threshold := s.now().AddDate(0, 0, -thresholdDays)

	var stats Stats
	err := s.db.DB().QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(synced_at < ?), 0)
		FROM video_cards`, threshold).Scan(&stats.TotalEntries, &stats.StaleEntries)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count cards: %w", err)
	}
	stats.FreshEntries = stats.TotalEntries - stats.StaleEntries

	if stats.TotalEntries > 0 {
		err = s.db.DB().QueryRow(`SELECT synced_at FROM video_cards ORDER BY synced_at ASC LIMIT 1`).Scan(&stats.OldestSync)
		if err != nil {
			return Stats{}, fmt.Errorf("failed to read oldest sync: %w", err)
		}
		err = s.db.DB().QueryRow(`SELECT synced_at FROM video_cards ORDER BY synced_at DESC LIMIT 1`).Scan(&stats.NewestSync)
		if err != nil {
			return Stats{}, fmt.Errorf("failed to read newest sync: %w", err)
		}
	}

	return stats, nil
}
